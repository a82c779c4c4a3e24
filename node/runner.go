// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package node

import (
	"context"
	"errors"
	"sync"
	"time"
)

// RunnerOpts configures a Runner.
type RunnerOpts struct {
	// PollInterval is the time between two readiness polls.
	PollInterval time.Duration
	// Once makes Run return after the first sleep request instead of
	// waiting for the next wake.
	Once bool
}

// DefaultRunnerOpts polls every 2ms.
var DefaultRunnerOpts = RunnerOpts{PollInterval: 2 * time.Millisecond}

// Runner is the event source of a Scheduler on a host: it wakes the
// Scheduler, feeds it poll ticks and transmit completions, and implements
// the sleep with a timer.
//
// Runner implements EventSink and Sleeper; pass it as both to
// NewScheduler.
type Runner struct {
	opts   RunnerOpts
	notify chan struct{}

	mu      sync.Mutex
	pending []Event

	// Only touched from the Run goroutine.
	asleep   bool
	sleepFor time.Duration
}

// NewRunner returns a Runner. The Opts can be nil.
func NewRunner(opts *RunnerOpts) *Runner {
	if opts == nil {
		opts = &DefaultRunnerOpts
	}
	o := *opts
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultRunnerOpts.PollInterval
	}
	return &Runner{opts: o, notify: make(chan struct{}, 1)}
}

// Post implements EventSink. It never blocks and never drops an event; it
// is safe to call from any goroutine.
func (r *Runner) Post(ev Event) {
	r.mu.Lock()
	r.pending = append(r.pending, ev)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// take returns the posted events in order and empties the queue.
func (r *Runner) take() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	evs := r.pending
	r.pending = nil
	return evs
}

// Sleep implements Sleeper. It ends the current cycle; Run waits d before
// the next wake. interval and memoryOff are handled by the Scheduler on a
// host.
func (r *Runner) Sleep(d time.Duration, interval, memoryOff bool) error {
	if d < 0 {
		return errors.New("node: negative sleep")
	}
	r.asleep = true
	r.sleepFor = d
	return nil
}

// Run drives s until ctx is canceled, or until the first sleep with
// RunnerOpts.Once.
func (r *Runner) Run(ctx context.Context, s *Scheduler) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		r.drain()
		r.asleep = false
		if _, err := s.Wake(); err != nil {
			return err
		}
		ticker.Reset(r.opts.PollInterval)
		for !r.asleep {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				s.HandleEvent(Event{Kind: EventPoll})
			case <-r.notify:
				for _, ev := range r.take() {
					s.HandleEvent(ev)
				}
			}
		}
		if r.opts.Once {
			return nil
		}
		t := time.NewTimer(r.sleepFor)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// drain drops completions left over from the previous cycle.
func (r *Runner) drain() {
	r.take()
	select {
	case <-r.notify:
	default:
	}
}

var (
	_ EventSink = &Runner{}
	_ Sleeper   = &Runner{}
)
