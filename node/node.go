// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package node

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/GermanBionicSystems/rtdnode/ads1115"
	"periph.io/x/conn/v3/gpio"
)

// Converter is the single-shot converter the Sequencer drives. It is
// implemented by *ads1115.Dev.
type Converter interface {
	StartConversion(in ads1115.Input, r ads1115.Range) error
	IsConversionReady() (bool, error)
	ReadResult() (int16, error)
}

// Transmitter broadcasts a status message.
//
// Broadcast must not block. The transmitter owns retries and calls done
// exactly once when it gave up or succeeded, from any goroutine. localID tags
// the completion and doubles as the message sequence marker; it is not
// unique across cycles.
type Transmitter interface {
	Broadcast(payload []byte, localID uint8, done func(ok bool)) error
}

// Sleeper suspends the node. interval requests a periodic wake timer and
// memoryOff allows working memory to be powered down.
//
// Sleep arms the wake-up and returns; it must not wait for it.
type Sleeper interface {
	Sleep(d time.Duration, interval, memoryOff bool) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// EventSink queues an event for a later HandleEvent call. Post is called from
// transmitter goroutines and must be safe for concurrent use.
type EventSink interface {
	Post(ev Event)
}

// Collaborators are the external parts the core drives.
type Collaborators struct {
	Converter Converter
	// Power switches the sensing bridge excitation. High is on.
	Power       gpio.PinOut
	Transmitter Transmitter
	Events      EventSink
	// Clock defaults to the system clock.
	Clock Clock
}

func (c *Collaborators) check() error {
	if c.Converter == nil {
		return errors.New("node: missing converter")
	}
	if c.Power == nil {
		return errors.New("node: missing power switch")
	}
	if c.Transmitter == nil {
		return errors.New("node: missing transmitter")
	}
	if c.Events == nil {
		return errors.New("node: missing event sink")
	}
	if c.Clock == nil {
		c.Clock = systemClock{}
	}
	return nil
}

// Role names one of the three conversions of a cycle.
type Role int

const (
	// Reference is the voltage across the precision reference resistor.
	Reference Role = iota
	// Sensor is the voltage across the Pt100.
	Sensor
	// Supply is the battery voltage.
	Supply
)

func (r Role) String() string {
	switch r {
	case Reference:
		return "reference"
	case Sensor:
		return "sensor"
	case Supply:
		return "supply"
	}
	return "unknown"
}

// Channel is the converter input and range used for one Role.
type Channel struct {
	Input ads1115.Input
	Range ads1115.Range
}

// Channels is indexed by Role.
type Channels [3]Channel

// DefaultChannels is the wiring of the reference board: reference resistor
// across AIN1-AIN3, Pt100 across AIN0-AIN1, supply on AIN0.
var DefaultChannels = Channels{
	Reference: {Input: ads1115.MuxAIN1AIN3, Range: ads1115.Range2048mV},
	Sensor:    {Input: ads1115.MuxAIN0AIN1, Range: ads1115.Range2048mV},
	Supply:    {Input: ads1115.MuxAIN0GND, Range: ads1115.Range4096mV},
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
