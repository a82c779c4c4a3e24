// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ads1115

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Input selects the multiplexer setting, ie. the differential pair or the
// single-ended input to convert.
type Input byte

// Range is the programmable gain setting, expressed as its full-scale
// voltage.
type Range byte

// DataRate is the number of samples per second.
type DataRate byte

const (
	// MuxAIN0AIN1 converts AIN0 - AIN1.
	MuxAIN0AIN1 Input = iota
	// MuxAIN0AIN3 converts AIN0 - AIN3.
	MuxAIN0AIN3
	// MuxAIN1AIN3 converts AIN1 - AIN3.
	MuxAIN1AIN3
	// MuxAIN2AIN3 converts AIN2 - AIN3.
	MuxAIN2AIN3
	// MuxAIN0GND converts AIN0 referenced to ground.
	MuxAIN0GND
	MuxAIN1GND
	MuxAIN2GND
	MuxAIN3GND
)

const (
	Range6144mV Range = iota
	Range4096mV
	Range2048mV
	Range1024mV
	Range512mV
	Range256mV
)

const (
	Rate8 DataRate = iota
	Rate16
	Rate32
	Rate64
	Rate128
	Rate250
	Rate475
	Rate860
)

const (
	// DefaultAddress is the bus address with the ADDR pin tied to GND.
	DefaultAddress uint16 = 0x48

	// PositiveFullScale is the code returned at or above +full scale.
	PositiveFullScale int16 = 32767
	// NegativeFullScale is the code returned at or below -full scale.
	NegativeFullScale int16 = -32768

	_REGISTER_CONVERSION byte = 0x00
	_REGISTER_CONFIG     byte = 0x01

	// High byte of the config register.
	_BIT_START_SINGLE byte = 0x80
	_BIT_SINGLE_SHOT  byte = 0x01
	_MUX_POS          int  = 4
	_PGA_POS          int  = 1
	// Low byte of the config register.
	_DATA_RATE_POS      int  = 5
	_COMPARATOR_DISABLE byte = 0x03
)

var fullScale = [...]physic.ElectricPotential{
	Range6144mV: 6144 * physic.MilliVolt,
	Range4096mV: 4096 * physic.MilliVolt,
	Range2048mV: 2048 * physic.MilliVolt,
	Range1024mV: 1024 * physic.MilliVolt,
	Range512mV:  512 * physic.MilliVolt,
	Range256mV:  256 * physic.MilliVolt,
}

var samplesPerSecond = [...]int{8, 16, 32, 64, 128, 250, 475, 860}

var inputNames = [...]string{
	MuxAIN0AIN1: "AIN0-AIN1",
	MuxAIN0AIN3: "AIN0-AIN3",
	MuxAIN1AIN3: "AIN1-AIN3",
	MuxAIN2AIN3: "AIN2-AIN3",
	MuxAIN0GND:  "AIN0-GND",
	MuxAIN1GND:  "AIN1-GND",
	MuxAIN2GND:  "AIN2-GND",
	MuxAIN3GND:  "AIN3-GND",
}

var (
	errInvalidInput = errors.New("ads1115: invalid input selector")
	errInvalidRange = errors.New("ads1115: invalid range")
	errInvalidRate  = errors.New("ads1115: invalid data rate")
)

func (i Input) String() string {
	if int(i) < len(inputNames) {
		return inputNames[i]
	}
	return fmt.Sprintf("Input(%d)", byte(i))
}

// FullScale returns the voltage corresponding to PositiveFullScale. It
// returns 0 for an invalid range.
func (r Range) FullScale() physic.ElectricPotential {
	if int(r) < len(fullScale) {
		return fullScale[r]
	}
	return 0
}

func (r Range) String() string {
	return "±" + r.FullScale().String()
}

// SamplesPerSecond returns the conversion rate, 0 for an invalid rate.
func (d DataRate) SamplesPerSecond() int {
	if int(d) < len(samplesPerSecond) {
		return samplesPerSecond[d]
	}
	return 0
}

// ParseInput returns the Input named s, as returned by Input.String.
func ParseInput(s string) (Input, error) {
	for i, n := range inputNames {
		if n == s {
			return Input(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", errInvalidInput, s)
}

// RangeOf returns the Range whose full-scale voltage is v.
func RangeOf(v physic.ElectricPotential) (Range, error) {
	for r, fs := range fullScale {
		if fs == v {
			return Range(r), nil
		}
	}
	return 0, fmt.Errorf("%w %s", errInvalidRange, v)
}

// RateOf returns the DataRate converting sps samples per second.
func RateOf(sps int) (DataRate, error) {
	for d, n := range samplesPerSecond {
		if n == sps {
			return DataRate(d), nil
		}
	}
	return 0, fmt.Errorf("%w %d", errInvalidRate, sps)
}

// Opts holds the configuration options for the device.
type Opts struct {
	// Rate is the data rate used for every conversion. A single conversion
	// takes 1/Rate seconds.
	Rate DataRate
}

// DefaultOpts converts at 128 samples/second, about 8ms per conversion.
var DefaultOpts = Opts{Rate: Rate128}

// Dev is a handle to an ADS1115.
//
// The device is not reentrant: a conversion must be ready and read before
// the next one is started.
type Dev struct {
	d    *i2c.Dev
	mu   sync.Mutex
	opts Opts
}

// NewI2C returns a handle to an ADS1115 at addr. No bus transaction is
// issued. The Opts can be nil.
func NewI2C(b i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Rate > Rate860 {
		return nil, errInvalidRate
	}
	return &Dev{d: &i2c.Dev{Bus: b, Addr: addr}, opts: *opts}, nil
}

// StartConversion configures and triggers a single-shot conversion of in at
// full-scale range r.
func (d *Dev) StartConversion(in Input, r Range) error {
	if in > MuxAIN3GND {
		return errInvalidInput
	}
	if r > Range256mV {
		return errInvalidRange
	}
	w := []byte{
		_REGISTER_CONFIG,
		_BIT_START_SINGLE | byte(in)<<_MUX_POS | byte(r)<<_PGA_POS | _BIT_SINGLE_SHOT,
		byte(d.opts.Rate)<<_DATA_RATE_POS | _COMPARATOR_DISABLE,
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.d.Tx(w, nil); err != nil {
		return fmt.Errorf("ads1115: start %s: %w", in, err)
	}
	return nil
}

// IsConversionReady reports whether the last triggered conversion has
// completed. It issues a single status read and returns immediately.
func (d *Dev) IsConversionReady() (bool, error) {
	r, err := d.readRegister(_REGISTER_CONFIG)
	if err != nil {
		return false, fmt.Errorf("ads1115: status: %w", err)
	}
	return r[0]&_BIT_START_SINGLE != 0, nil
}

// ReadResult returns the raw signed code of the last conversion. It is only
// meaningful after IsConversionReady returned true.
func (d *Dev) ReadResult() (int16, error) {
	r, err := d.readRegister(_REGISTER_CONVERSION)
	if err != nil {
		return 0, fmt.Errorf("ads1115: result: %w", err)
	}
	return int16(uint16(r[0])<<8 | uint16(r[1])), nil
}

// readRegister sets the register pointer with an empty write, then reads
// the register with a separate transaction. Combined write-read
// transactions are not used.
func (d *Dev) readRegister(reg byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.d.Tx([]byte{reg}, nil); err != nil {
		return nil, err
	}
	r := make([]byte, 2)
	if err := d.d.Tx(nil, r); err != nil {
		return nil, err
	}
	return r, nil
}

// CountToPotential converts a raw code to a voltage, scaling by the range's
// full-scale voltage over PositiveFullScale.
func CountToPotential(code int16, r Range) physic.ElectricPotential {
	return physic.ElectricPotential(int64(code) * int64(r.FullScale()) / int64(PositiveFullScale))
}

// Halt implements conn.Resource. The device powers down by itself after each
// single-shot conversion, so there is nothing to stop.
func (d *Dev) Halt() error {
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("ads1115: %s", d.d.String())
}

var _ conn.Resource = &Dev{}
