// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pt100

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// FirstCelsius is the temperature of the first entry of the default table.
const FirstCelsius = -30

var (
	// ErrBelowRange is returned for a resistance below the first table entry.
	ErrBelowRange = errors.New("pt100: resistance below table range")
	// ErrAboveRange is returned for a resistance at or above the last table
	// entry.
	ErrAboveRange = errors.New("pt100: resistance above table range")
	// ErrNotMonotonic is returned by NewTable for a table that isn't
	// strictly increasing.
	ErrNotMonotonic = errors.New("pt100: table is not strictly increasing")
)

// firstCentiOhms is the resistance at FirstCelsius in 0.01Ω.
const firstCentiOhms = 8822

// extraRise holds the rise from FirstCelsius+i to FirstCelsius+i+1 °C in
// 0.01Ω, less the 0.01Ω minimum step. Every entry is thus strictly above the
// previous one; a flat or falling entry overflows uint8 and doesn't compile.
var extraRise = [...]uint8{
	39, 38, 38, 39, 38, 39, 38, 38, 39, 38, // -30 °C
	38, 39, 38, 38, 38, 39, 38, 38, 38, 39, // -20 °C
	38, 38, 38, 38, 38, 39, 38, 38, 38, 38, // -10 °C
	38, 38, 38, 38, 38, 38, 38, 38, 38, 38, // 0 °C
	38, 38, 38, 38, 38, 38, 38, 38, 37, 38, // 10 °C
	38, 38, 38, 38, 37, 38, 38, 38, 38, 37, // 20 °C
	38, 38, 37, 38, 38, 38, 37, 38, 37, 38, // 30 °C
	38, 37, 38, 37, 38, 38, 37, 38, 37, 38, // 40 °C
	37, 38, 37, 38, 37, 38, 37, 37, 38, 37, // 50 °C
	38, 37, 37, 38, 37, 37, 38, 37, 37, 38, // 60 °C
	37, 37, 37, 38, 37, 37, 37, 37, 38, 37, // 70 °C
	37, 37, 37, 37, 37, 37, 38, 37, 37, 37, // 80 °C
	37, 37, 37, 37, 37, 37, 37, 37, 37, 37, // 90 °C
	36, 37, 37, 37, 37, 37, 37, 37, 36, 37, // 100 °C
	37, 37, 37, 36, 37, 37, 37, 36, 37, 37, // 110 °C
	36, 37, 37, 36, 37, 37, 36, 37, 37, 36, // 120 °C
	37, 36, 37, 36, 37, 36, 37, 36, 37, 36, // 130 °C
	37, 36, 37, 36, 37, 36, 36, 37, 36, 37, // 140 °C
	36, 36, 37, 36, 36, 36, 37, 36, 36,     // 150 °C
}

// iec60751 holds the resistance in ohms at FirstCelsius+i °C.
var iec60751 = expand(firstCentiOhms, extraRise[:])

// The table covers -30 °C to 159 °C.
var _ [189]uint8 = extraRise

func expand(first int, rise []uint8) []float64 {
	out := make([]float64, len(rise)+1)
	c := first
	out[0] = float64(c) / 100
	for i, r := range rise {
		c += int(r) + 1
		out[i+1] = float64(c) / 100
	}
	return out
}

// Default is the compiled-in Pt100 table.
var Default = &Table{first: FirstCelsius, ohms: iec60751}

// Table maps integer degrees Celsius to calibrated resistance.
type Table struct {
	first int
	ohms  []float64
}

// NewTable returns a table whose entry i holds the resistance at
// firstCelsius+i °C. ohms must hold at least two strictly increasing values.
func NewTable(firstCelsius int, ohms []float64) (*Table, error) {
	if len(ohms) < 2 {
		return nil, errors.New("pt100: table needs at least two entries")
	}
	for i := 1; i < len(ohms); i++ {
		if !(ohms[i-1] < ohms[i]) {
			return nil, fmt.Errorf("%w: entry %d (%.2f) >= entry %d (%.2f)", ErrNotMonotonic, i-1, ohms[i-1], i, ohms[i])
		}
	}
	t := &Table{first: firstCelsius, ohms: make([]float64, len(ohms))}
	copy(t.ohms, ohms)
	return t, nil
}

// Lookup returns the temperature in °C for a resistance in ohms.
//
// The table is scanned upward for the first entry strictly greater than
// ohm, and the fractional degree is interpolated from the entry below it.
func (t *Table) Lookup(ohm float64) (float64, error) {
	for i, r := range t.ohms {
		if r > ohm {
			if i == 0 {
				return 0, ErrBelowRange
			}
			lo := t.ohms[i-1]
			fraction := (ohm - lo) / (r - lo)
			return fraction + float64(i-1+t.first), nil
		}
	}
	return 0, ErrAboveRange
}

// Temperature is Lookup returning a physic.Temperature.
func (t *Table) Temperature(ohm float64) (physic.Temperature, error) {
	c, err := t.Lookup(ohm)
	if err != nil {
		return 0, err
	}
	return physic.ZeroCelsius + physic.Temperature(c*float64(physic.Kelvin)), nil
}

// Range returns the lowest and highest temperature the table covers.
func (t *Table) Range() (low, high int) {
	return t.first, t.first + len(t.ohms) - 1
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.ohms)
}

// Ohms returns the resistance stored for entry i.
func (t *Table) Ohms(i int) float64 {
	return t.ohms[i]
}

func (t *Table) String() string {
	low, high := t.Range()
	return fmt.Sprintf("pt100: %d°C..%d°C (%.2fΩ..%.2fΩ)", low, high, t.ohms[0], t.ohms[len(t.ohms)-1])
}
