// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package node

import (
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Opts holds the Sequencer configuration.
type Opts struct {
	Calibration Calibration
	// ConversionTimeout bounds the time spent waiting for one conversion.
	// 0 disables the limit.
	ConversionTimeout time.Duration
	// MaxPolls bounds the number of polls for one conversion. 0 disables the
	// limit.
	MaxPolls int
	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// DefaultOpts uses DefaultCalibration and gives up on a conversion after
// 250ms, about 30 times the conversion time at 128 samples/second.
var DefaultOpts = Opts{
	Calibration:       DefaultCalibration,
	ConversionTimeout: 250 * time.Millisecond,
}

// Sequencer is the acquisition state machine of one cycle.
//
// It is not safe for concurrent use: all calls to HandleEvent must come from
// the same goroutine.
type Sequencer struct {
	c            Collaborators
	opts         Opts
	id           uint8
	prepareSleep func()
	log          *slog.Logger

	state    State
	started  time.Time
	polls    int
	readings Readings
	read     [3]bool
	result   Result
	sent     []byte
}

// NewSequencer returns an Idle Sequencer for the cycle tagged localID.
// prepareSleep is called once, when the cycle enters PreparingSleep. The
// Opts can be nil.
func NewSequencer(c Collaborators, localID uint8, prepareSleep func(), opts *Opts) (*Sequencer, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	s := &Sequencer{c: c, opts: *opts, id: localID, prepareSleep: prepareSleep, log: opts.Logger}
	if s.opts.Calibration.Table == nil {
		s.opts.Calibration = DefaultCalibration
	}
	if s.log == nil {
		s.log = discardLogger()
	}
	s.log = s.log.With("cycle", localID)
	return s, nil
}

// HandleEvent applies ev and returns the resulting state. Events that don't
// apply to the current state are ignored.
func (s *Sequencer) HandleEvent(ev Event) State {
	switch s.state {
	case Idle:
		if ev.Kind == EventStart {
			s.enter(Running)
		}
	case AwaitingReference, AwaitingSensor, AwaitingSupply:
		if ev.Kind == EventPoll {
			s.poll()
		}
	case AwaitingTransmit:
		if ev.Kind != EventTransmitDone {
			break
		}
		if ev.LocalID != s.id {
			s.log.Debug("ignoring foreign completion", "id", ev.LocalID)
			break
		}
		if ev.OK {
			s.log.Debug("transmit done")
		} else {
			s.log.Warn("transmit failed", "payload", string(s.sent))
		}
		s.enter(PreparingSleep)
	}
	return s.state
}

// State returns the current state.
func (s *Sequencer) State() State {
	return s.state
}

// LocalID returns the cycle tag.
func (s *Sequencer) LocalID() uint8 {
	return s.id
}

// Result returns the result computed for this cycle. It is only meaningful
// from AwaitingTransmit on.
func (s *Sequencer) Result() Result {
	return s.result
}

// Readings returns the conversions finished so far.
func (s *Sequencer) Readings() Readings {
	return s.readings
}

func (s *Sequencer) enter(next State) {
	s.log.Debug("transition", "from", s.state, "to", next)
	s.state = next
	switch next {
	case Running:
		s.run()
	case PreparingSleep:
		if s.prepareSleep != nil {
			s.prepareSleep()
		}
	}
}

// run powers the bridge and starts the reference conversion right away: the
// excitation settles faster than the bus transaction takes.
func (s *Sequencer) run() {
	if err := s.c.Power.Out(gpio.High); err != nil {
		s.fail(fmt.Errorf("node: bridge power on: %w", err))
		return
	}
	s.start(Reference)
}

func (s *Sequencer) start(r Role) {
	ch := s.opts.Calibration.Channels[r]
	if err := s.c.Converter.StartConversion(ch.Input, ch.Range); err != nil {
		s.fail(err)
		return
	}
	s.started = s.c.Clock.Now()
	s.polls = 0
	s.enter(awaiting(r))
}

func (s *Sequencer) poll() {
	role, _ := s.state.Role()
	s.polls++
	ready, err := s.c.Converter.IsConversionReady()
	if err != nil {
		s.fail(err)
		return
	}
	if !ready {
		if s.expired() {
			s.fail(fmt.Errorf("%w: %s after %d polls", ErrConversionTimeout, role, s.polls))
		}
		return
	}
	elapsed := s.c.Clock.Now().Sub(s.started)
	raw, err := s.c.Converter.ReadResult()
	if err != nil {
		s.fail(err)
		return
	}
	s.readings[role] = ChannelReading{Raw: raw, Elapsed: elapsed}
	s.read[role] = true
	s.log.Debug("conversion", "role", role, "raw", raw, "elapsed", elapsed)

	switch role {
	case Reference:
		s.start(Sensor)
	case Sensor:
		s.powerOff()
		s.start(Supply)
	case Supply:
		s.powerOff()
		s.finish(Compute(s.readings, &s.opts.Calibration))
	}
}

func (s *Sequencer) expired() bool {
	if s.opts.MaxPolls > 0 && s.polls >= s.opts.MaxPolls {
		return true
	}
	return s.opts.ConversionTimeout > 0 && s.c.Clock.Now().Sub(s.started) > s.opts.ConversionTimeout
}

// fail aborts the acquisition. The supply voltage is reported only if it was
// already converted.
func (s *Sequencer) fail(err error) {
	s.powerOff()
	res := Result{Fault: err}
	if s.read[Supply] {
		res.SupplyMilliVolts = SupplyMilliVolts(s.readings[Supply].Raw, s.opts.Calibration.Channels[Supply].Range)
	}
	s.finish(res)
}

func (s *Sequencer) finish(res Result) {
	s.result = res
	if res.Valid() {
		s.log.Debug("result", "result", res)
	} else {
		s.log.Warn("sensor fault", "err", res.Fault, "supply_mv", res.SupplyMilliVolts)
	}
	s.sent = Encode(res)
	s.log.Info("broadcast", "message", string(s.sent))
	s.enter(AwaitingTransmit)

	id, events := s.id, s.c.Events
	done := func(ok bool) {
		events.Post(Event{Kind: EventTransmitDone, LocalID: id, OK: ok})
	}
	if err := s.c.Transmitter.Broadcast(s.sent, id, done); err != nil {
		s.log.Warn("broadcast rejected", "err", err)
		s.enter(PreparingSleep)
	}
}

// powerOff is idempotent.
func (s *Sequencer) powerOff() {
	if err := s.c.Power.Out(gpio.Low); err != nil {
		s.log.Error("bridge power off", "err", err)
	}
}
