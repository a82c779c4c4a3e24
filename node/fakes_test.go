// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package node

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/rtdnode/ads1115"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// trace is the ordered log of side effects shared by the fakes.
type trace struct {
	mu    sync.Mutex
	steps []string
}

func (t *trace) add(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, fmt.Sprintf(format, args...))
}

func (t *trace) all() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.steps...)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// fakeConverter returns results in order. Each conversion reports not ready
// for busyPolls polls; every poll advances the clock by step.
type fakeConverter struct {
	tr        *trace
	clock     *fakeClock
	step      time.Duration
	busyPolls int
	results   []int16
	err       error

	pending     int
	outstanding bool
	ready       bool
	next        int
}

func (f *fakeConverter) StartConversion(in ads1115.Input, r ads1115.Range) error {
	if f.err != nil {
		return f.err
	}
	if f.outstanding {
		return errors.New("fake: conversion already outstanding")
	}
	f.tr.add("start %s %s", in, r)
	f.outstanding = true
	f.ready = false
	f.pending = f.busyPolls
	return nil
}

func (f *fakeConverter) IsConversionReady() (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.clock.Advance(f.step)
	if f.pending != 0 {
		if f.pending > 0 {
			f.pending--
		}
		return false, nil
	}
	f.tr.add("ready")
	f.ready = true
	return true, nil
}

func (f *fakeConverter) ReadResult() (int16, error) {
	if !f.ready || !f.outstanding {
		return 0, errors.New("fake: read before ready")
	}
	if f.next >= len(f.results) {
		return 0, errors.New("fake: out of results")
	}
	v := f.results[f.next]
	f.next++
	f.outstanding = false
	f.tr.add("read %d", v)
	return v, nil
}

// recordPin traces every level written to the bridge switch.
type recordPin struct {
	*gpiotest.Pin
	tr *trace
}

func (p *recordPin) Out(l gpio.Level) error {
	p.tr.add("power %s", l)
	return p.Pin.Out(l)
}

type fakeTransmitter struct {
	tr      *trace
	err     error
	auto    bool
	autoOK  bool
	payload []byte
	id      uint8
	done    func(ok bool)
}

func (f *fakeTransmitter) Broadcast(payload []byte, localID uint8, done func(ok bool)) error {
	if f.err != nil {
		return f.err
	}
	f.tr.add("broadcast %q id=%d", payload, localID)
	f.payload = append([]byte(nil), payload...)
	f.id = localID
	f.done = done
	if f.auto {
		done(f.autoOK)
	}
	return nil
}

type queue struct {
	events []Event
}

func (q *queue) Post(ev Event) {
	q.events = append(q.events, ev)
}

func (q *queue) pop() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

type sleepCall struct {
	d         time.Duration
	interval  bool
	memoryOff bool
}

type fakeSleeper struct {
	tr    *trace
	calls []sleepCall
}

func (f *fakeSleeper) Sleep(d time.Duration, interval, memoryOff bool) error {
	f.tr.add("sleep %s", d)
	f.calls = append(f.calls, sleepCall{d, interval, memoryOff})
	return nil
}

// rig wires all the fakes together.
type rig struct {
	tr    *trace
	clock *fakeClock
	conv  *fakeConverter
	pin   *recordPin
	tx    *fakeTransmitter
	q     *queue
	sl    *fakeSleeper
}

func newRig(results ...int16) *rig {
	tr := &trace{}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return &rig{
		tr:    tr,
		clock: clock,
		conv:  &fakeConverter{tr: tr, clock: clock, step: 4 * time.Millisecond, busyPolls: 2, results: results},
		pin:   &recordPin{Pin: &gpiotest.Pin{N: "PWR", Num: 9}, tr: tr},
		tx:    &fakeTransmitter{tr: tr},
		q:     &queue{},
		sl:    &fakeSleeper{tr: tr},
	}
}

func (r *rig) collaborators() Collaborators {
	return Collaborators{Converter: r.conv, Power: r.pin, Transmitter: r.tx, Events: r.q, Clock: r.clock}
}

// drive polls until the sequencer leaves the conversion states, then
// delivers the queued events.
func drive(h interface{ HandleEvent(Event) State }, q *queue, maxPolls int) State {
	state := h.HandleEvent(Event{Kind: EventPoll})
	for i := 0; i < maxPolls; i++ {
		if _, ok := state.Role(); !ok {
			break
		}
		state = h.HandleEvent(Event{Kind: EventPoll})
	}
	for {
		ev, ok := q.pop()
		if !ok {
			return state
		}
		state = h.HandleEvent(ev)
	}
}
