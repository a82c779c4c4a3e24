// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package transport broadcasts status messages with the retry policy of the
// node radio: a random start delay, then up to Retries resends spaced by
// Interval when a send fails.
//
// A Broadcaster wraps a Sender, such as mqttcast.Client or uartradio.Modem,
// and implements node.Transmitter.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBusy is returned by Broadcast while the previous broadcast is still in
// flight.
var ErrBusy = errors.New("transport: broadcast in progress")

// Sender delivers one copy of a message. seq tags the message.
type Sender interface {
	Send(ctx context.Context, payload []byte, seq uint8) error
}

// Policy is the delivery policy of a Broadcaster.
type Policy struct {
	// Retries is the number of resends after a failed send.
	Retries int
	// Interval separates two sends.
	Interval time.Duration
	// MaxDelay bounds the random delay before the first send, so that nodes
	// waking together don't collide.
	MaxDelay time.Duration
	// Timeout bounds one send. 0 disables the limit.
	Timeout time.Duration
}

// DefaultPolicy resends twice, 4ms apart, after up to 16ms.
var DefaultPolicy = Policy{
	Retries:  2,
	Interval: 4 * time.Millisecond,
	MaxDelay: 16 * time.Millisecond,
	Timeout:  2 * time.Second,
}

// Validate returns an error if p can't be used.
func (p *Policy) Validate() error {
	if p.Retries < 0 {
		return fmt.Errorf("transport: negative retries %d", p.Retries)
	}
	if p.Interval < 0 || p.MaxDelay < 0 || p.Timeout < 0 {
		return errors.New("transport: negative duration")
	}
	return nil
}

// Broadcaster sends messages in the background and reports each outcome
// through a callback.
type Broadcaster struct {
	s    Sender
	p    Policy
	log  *slog.Logger
	wg   sync.WaitGroup
	busy atomic.Bool
}

// New returns a Broadcaster over s. The Policy and the Logger can be nil.
func New(s Sender, p *Policy, log *slog.Logger) (*Broadcaster, error) {
	if s == nil {
		return nil, errors.New("transport: missing sender")
	}
	if p == nil {
		p = &DefaultPolicy
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Broadcaster{s: s, p: *p, log: log}, nil
}

// Broadcast starts delivering payload and returns immediately. done is called
// exactly once, from another goroutine, unless an error is returned.
func (b *Broadcaster) Broadcast(payload []byte, localID uint8, done func(ok bool)) error {
	if !b.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	msg := append([]byte(nil), payload...)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ok := b.deliver(msg, localID)
		b.busy.Store(false)
		if done != nil {
			done(ok)
		}
	}()
	return nil
}

// Wait blocks until every started broadcast called its callback.
func (b *Broadcaster) Wait() {
	b.wg.Wait()
}

func (b *Broadcaster) deliver(msg []byte, seq uint8) bool {
	if b.p.MaxDelay > 0 {
		time.Sleep(rand.N(b.p.MaxDelay + 1))
	}
	for attempt := 0; attempt <= b.p.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(b.p.Interval)
		}
		if err := b.send(msg, seq); err != nil {
			b.log.Warn("send failed", "seq", seq, "attempt", attempt+1, "err", err)
			continue
		}
		b.log.Debug("sent", "seq", seq, "attempt", attempt+1)
		return true
	}
	return false
}

func (b *Broadcaster) send(msg []byte, seq uint8) error {
	ctx := context.Background()
	if b.p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.p.Timeout)
		defer cancel()
	}
	return b.s.Send(ctx, msg, seq)
}
