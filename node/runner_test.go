// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package node

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// asyncTransmitter completes every broadcast from another goroutine.
type asyncTransmitter struct {
	sent chan string
}

func (a *asyncTransmitter) Broadcast(payload []byte, localID uint8, done func(ok bool)) error {
	msg := string(payload)
	go func() {
		a.sent <- msg
		done(true)
	}()
	return nil
}

func newRunnerRig(t *testing.T, runner *Runner, period time.Duration, results ...int16) (*Scheduler, *asyncTransmitter) {
	r := newRig(results...)
	r.conv.busyPolls = 1
	tx := &asyncTransmitter{sent: make(chan string, 8)}
	c := Collaborators{Converter: r.conv, Power: r.pin, Transmitter: tx, Events: runner}
	opts := DefaultSchedulerOpts
	opts.Period = period
	s, err := NewScheduler(c, runner, &opts)
	if err != nil {
		t.Fatal(err)
	}
	return s, tx
}

func TestRunnerOnce(t *testing.T) {
	runner := NewRunner(&RunnerOpts{PollInterval: time.Millisecond, Once: true})
	s, tx := newRunnerRig(t, runner, time.Hour, 16000, 17465, 20000)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runner.Run(ctx, s); err != nil {
		t.Fatal(err)
	}
	if got := s.Sequencer().State(); got != PreparingSleep {
		t.Fatalf("state %s", got)
	}
	select {
	case msg := <-tx.sent:
		if !strings.HasPrefix(msg, "P2500 S:") || !strings.HasSuffix(msg, " T:+2350") {
			t.Fatalf("message %q", msg)
		}
	default:
		t.Fatal("nothing sent")
	}
	if d := s.LastSleep(); d <= 0 || d > time.Hour {
		t.Fatalf("LastSleep() = %s", d)
	}
}

func TestRunnerCanceled(t *testing.T) {
	runner := NewRunner(nil)
	s, tx := newRunnerRig(t, runner, time.Hour, 16000, 17465, 20000)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- runner.Run(ctx, s)
	}()
	select {
	case <-tx.sent:
	case <-time.After(10 * time.Second):
		t.Fatal("nothing sent")
	}
	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run didn't return")
	}
}

func TestRunnerRepeats(t *testing.T) {
	runner := NewRunner(&RunnerOpts{PollInterval: time.Millisecond})
	s, tx := newRunnerRig(t, runner, 5*time.Millisecond,
		16000, 17465, 20000, 16000, 17465, 20000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() {
		errc <- runner.Run(ctx, s)
	}()
	for i := 0; i < 2; i++ {
		select {
		case <-tx.sent:
		case <-time.After(10 * time.Second):
			t.Fatalf("cycle %d: nothing sent", i)
		}
	}
	cancel()
	<-errc
}

func TestRunnerPostKeepsEvents(t *testing.T) {
	runner := NewRunner(nil)
	for i := 0; i < 100; i++ {
		runner.Post(Event{Kind: EventTransmitDone, LocalID: uint8(i), OK: true})
	}
	evs := runner.take()
	if len(evs) != 100 {
		t.Fatalf("got %d events", len(evs))
	}
	for i, ev := range evs {
		if ev.LocalID != uint8(i) {
			t.Fatalf("event %d has id %d", i, ev.LocalID)
		}
	}
	if evs := runner.take(); len(evs) != 0 {
		t.Fatalf("queue not emptied: %v", evs)
	}
}

func TestRunnerDrain(t *testing.T) {
	runner := NewRunner(nil)
	runner.Post(Event{Kind: EventTransmitDone})
	runner.Post(Event{Kind: EventTransmitDone})
	runner.drain()
	if evs := runner.take(); len(evs) != 0 {
		t.Fatalf("unexpected %v", evs)
	}
	select {
	case <-runner.notify:
		t.Fatal("notification left after drain")
	default:
	}
	if err := runner.Sleep(-time.Second, false, false); err == nil {
		t.Fatal("expected error")
	}
}
