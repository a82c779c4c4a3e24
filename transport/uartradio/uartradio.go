// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package uartradio broadcasts node status messages through a LoRa modem
// driven by AT commands over a serial port, such as the REYAX RYLR896.
//
// Each message is one "AT+SEND=<address>,<length>,<payload>" command; the
// modem answers "+OK" or "+ERR=<code>". Modem implements transport.Sender.
//
// The port must not block forever on a silent line: a read that times out
// returns (0, nil), as a serial.Port with a read timeout does.
package uartradio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ErrModem is wrapped by the errors the modem reports.
var ErrModem = errors.New("uartradio: modem error")

// MaxPayload is the largest payload of one AT+SEND command.
const MaxPayload = 240

// BroadcastAddress reaches every modem on the network.
const BroadcastAddress = 0

// readTick is the longest single port read, so a canceled context or an
// expired reply timeout is noticed promptly.
const readTick = 50 * time.Millisecond

var (
	errNoAnswer = errors.New("uartradio: no answer")
	errIdle     = errors.New("uartradio: read timeout")
)

// Opts holds the modem options.
type Opts struct {
	// Baud is the serial line speed.
	Baud int
	// Address is the destination modem address.
	Address uint16
	// ReplyTimeout bounds the wait for the modem answer.
	ReplyTimeout time.Duration
}

// DefaultOpts is the modem factory configuration.
var DefaultOpts = Opts{Baud: 115200, Address: BroadcastAddress, ReplyTimeout: time.Second}

// Modem is a handle to an AT command modem.
type Modem struct {
	opts Opts

	mu sync.Mutex
	w  io.Writer
	r  *bufio.Reader
	c  io.Closer
}

// Open opens the serial port name and returns a Modem on it. The Opts can be
// nil.
func Open(name string, opts *Opts) (*Modem, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	p, err := serial.Open(name, &serial.Mode{BaudRate: opts.Baud})
	if err != nil {
		return nil, fmt.Errorf("uartradio: open %s: %w", name, err)
	}
	tick := readTick
	if opts.ReplyTimeout > 0 {
		tick = min(tick, opts.ReplyTimeout)
	}
	if err := p.SetReadTimeout(tick); err != nil {
		p.Close()
		return nil, fmt.Errorf("uartradio: %s: %w", name, err)
	}
	m := New(p, opts)
	m.c = p
	return m, nil
}

// New returns a Modem talking over rw. The Opts can be nil.
func New(rw io.ReadWriter, opts *Opts) *Modem {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Modem{opts: *opts, w: rw, r: bufio.NewReader(idleReader{rw})}
}

// idleReader turns an empty read into errIdle. bufio.Reader would otherwise
// retry it and fail with io.ErrNoProgress.
type idleReader struct {
	r io.Reader
}

func (i idleReader) Read(b []byte) (int, error) {
	n, err := i.r.Read(b)
	if n == 0 && err == nil {
		return 0, errIdle
	}
	return n, err
}

// Ports lists the serial ports of the host.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("uartradio: %w", err)
	}
	return ports, nil
}

// Ping checks that the modem answers.
func (m *Modem) Ping(ctx context.Context) error {
	return m.command(ctx, "AT")
}

// Send implements transport.Sender. The radio frame has no room for seq; it
// is dropped.
func (m *Modem) Send(ctx context.Context, payload []byte, seq uint8) error {
	if len(payload) == 0 || len(payload) > MaxPayload {
		return fmt.Errorf("uartradio: payload length %d out of range", len(payload))
	}
	if strings.ContainsAny(string(payload), "\r\n") {
		return errors.New("uartradio: payload contains a line break")
	}
	return m.command(ctx, fmt.Sprintf("AT+SEND=%d,%d,%s", m.opts.Address, len(payload), payload))
}

// Close closes the serial port, if Open opened it.
func (m *Modem) Close() error {
	if m.c == nil {
		return nil
	}
	return m.c.Close()
}

// command writes cmd and waits for the answer, at most ReplyTimeout or
// until ctx is done. Unsolicited lines, such as received frames, are
// skipped.
func (m *Modem) command(ctx context.Context, cmd string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := io.WriteString(m.w, cmd+"\r\n"); err != nil {
		return fmt.Errorf("uartradio: write: %w", err)
	}
	var deadline time.Time
	if m.opts.ReplyTimeout > 0 {
		deadline = time.Now().Add(m.opts.ReplyTimeout)
	}
	var line string
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("uartradio: %w", err)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return errNoAnswer
		}
		s, err := m.r.ReadString('\n')
		line += s
		switch {
		case errors.Is(err, errIdle):
			continue
		case errors.Is(err, io.EOF):
			if line == "" {
				return errNoAnswer
			}
		case err != nil:
			return fmt.Errorf("uartradio: read: %w", err)
		}
		switch line = strings.TrimSpace(line); {
		case line == "+OK":
			return nil
		case strings.HasPrefix(line, "+ERR="):
			return fmt.Errorf("%w %s", ErrModem, strings.TrimPrefix(line, "+ERR="))
		}
		line = ""
	}
}

func (m *Modem) String() string {
	return fmt.Sprintf("uartradio: address %d", m.opts.Address)
}
