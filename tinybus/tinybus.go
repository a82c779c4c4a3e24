// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tinybus bridges the I²C interfaces of tinygo.org/x/drivers and
// periph.io so that the converter driver runs on either.
package tinybus

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
)

// Bus is a periph i2c.Bus on top of a drivers.I2C.
type Bus struct {
	name string
	mu   sync.Mutex
	b    drivers.I2C
}

// New returns a Bus named name over b.
func New(b drivers.I2C, name string) (*Bus, error) {
	if b == nil {
		return nil, errors.New("tinybus: nil bus")
	}
	if name == "" {
		name = "tinygo"
	}
	return &Bus{name: name, b: b}, nil
}

func (b *Bus) String() string {
	return b.name
}

// Tx implements i2c.Bus.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.b.Tx(addr, w, r); err != nil {
		return fmt.Errorf("tinybus: %s: %w", b.name, err)
	}
	return nil
}

// SetSpeed implements i2c.Bus. The speed of a drivers.I2C is set when it is
// configured, so only a zero frequency is refused.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	if f <= 0 {
		return fmt.Errorf("tinybus: invalid speed %s", f)
	}
	return nil
}

// Halt implements conn.Resource.
func (b *Bus) Halt() error {
	return nil
}

// Periph is a drivers.I2C on top of a periph i2c.Bus, for TinyGo drivers
// used on a host.
type Periph struct {
	Bus i2c.Bus
}

// Tx implements drivers.I2C.
func (p Periph) Tx(addr uint16, w, r []byte) error {
	return p.Bus.Tx(addr, w, r)
}

var (
	_ i2c.Bus     = &Bus{}
	_ drivers.I2C = Periph{}
)
