// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package node

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// SchedulerOpts holds the duty cycle configuration.
type SchedulerOpts struct {
	// Period is the time from one wake to the next.
	Period time.Duration
	// MinSleep is the shortest sleep requested when a cycle overran the
	// period.
	MinSleep time.Duration
	// Interval is passed to the Sleeper.
	Interval bool
	// MemoryOff is passed to the Sleeper. With memory off nothing survives
	// the sleep, so each cycle picks a random id; otherwise ids count up.
	MemoryOff bool
	Sequencer Opts
	// Rand returns random bits for cycle ids. Defaults to math/rand/v2.
	Rand func() uint32
}

// DefaultSchedulerOpts is a one minute period with memory powered down.
var DefaultSchedulerOpts = SchedulerOpts{
	Period:    time.Minute,
	MinSleep:  time.Millisecond,
	Interval:  true,
	MemoryOff: true,
	Sequencer: DefaultOpts,
}

// Scheduler runs one Sequencer per wake and suspends the node for the rest
// of the period.
type Scheduler struct {
	c       Collaborators
	sleeper Sleeper
	opts    SchedulerOpts
	log     *slog.Logger

	wakeAt  time.Time
	seq     *Sequencer
	counter uint8
	slept   time.Duration
}

// NewScheduler returns a Scheduler. The Opts can be nil.
func NewScheduler(c Collaborators, sleeper Sleeper, opts *SchedulerOpts) (*Scheduler, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if sleeper == nil {
		return nil, errors.New("node: missing sleeper")
	}
	if opts == nil {
		opts = &DefaultSchedulerOpts
	}
	if opts.Period <= 0 {
		return nil, errors.New("node: period must be positive")
	}
	if opts.MinSleep < 0 {
		return nil, errors.New("node: negative minimum sleep")
	}
	s := &Scheduler{c: c, sleeper: sleeper, opts: *opts, log: opts.Sequencer.Logger}
	if s.opts.Rand == nil {
		s.opts.Rand = rand.Uint32
	}
	if s.log == nil {
		s.log = discardLogger()
	}
	return s, nil
}

// Wake starts a cycle: it records the wake time, picks the cycle id, builds
// a fresh Sequencer and delivers EventStart to it.
func (s *Scheduler) Wake() (State, error) {
	s.wakeAt = s.c.Clock.Now()
	id := s.nextID()
	seq, err := NewSequencer(s.c, id, s.prepareSleep, &s.opts.Sequencer)
	if err != nil {
		return Idle, err
	}
	s.seq = seq
	s.log.Debug("wake", "cycle", id)
	return seq.HandleEvent(Event{Kind: EventStart}), nil
}

// HandleEvent forwards ev to the live Sequencer.
func (s *Scheduler) HandleEvent(ev Event) State {
	if s.seq == nil {
		return Idle
	}
	return s.seq.HandleEvent(ev)
}

// Sequencer returns the Sequencer of the current cycle, nil before the first
// Wake.
func (s *Scheduler) Sequencer() *Sequencer {
	return s.seq
}

// LastSleep returns the duration requested by the last sleep.
func (s *Scheduler) LastSleep() time.Duration {
	return s.slept
}

func (s *Scheduler) nextID() uint8 {
	if s.opts.MemoryOff {
		return uint8(s.opts.Rand())
	}
	s.counter++
	return s.counter
}

// prepareSleep runs once per cycle, on entry to PreparingSleep.
func (s *Scheduler) prepareSleep() {
	// Whatever path led here, the bridge must not stay powered.
	if err := s.c.Power.Out(gpio.Low); err != nil {
		s.log.Error("bridge power off", "err", err)
	}
	elapsed := s.c.Clock.Now().Sub(s.wakeAt)
	d := SleepDuration(s.opts.Period, elapsed, s.opts.MinSleep)
	if elapsed >= s.opts.Period {
		s.log.Warn("cycle overran period", "elapsed", elapsed, "period", s.opts.Period)
	}
	s.slept = d
	s.log.Debug("sleep", "awake", elapsed, "sleep", d)
	if err := s.sleeper.Sleep(d, s.opts.Interval, s.opts.MemoryOff); err != nil {
		s.log.Error("sleep", "err", err)
	}
}

// SleepDuration returns the rest of period after elapsed, never less than
// min.
func SleepDuration(period, elapsed, min time.Duration) time.Duration {
	if d := period - elapsed; d > min {
		return d
	}
	return min
}
