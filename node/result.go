// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package node

import (
	"errors"
	"fmt"
	"time"

	"github.com/GermanBionicSystems/rtdnode/ads1115"
	"github.com/GermanBionicSystems/rtdnode/pt100"
	"periph.io/x/conn/v3/physic"
)

var (
	// ErrSaturated is reported when the reference or sensor reading is at
	// either full-scale code or exactly zero: an open or shorted input, or
	// saturated excitation.
	ErrSaturated = errors.New("node: reading saturated or zero")
	// ErrImplausible is reported for a temperature outside the sanity band.
	ErrImplausible = errors.New("node: implausible temperature")
	// ErrConversionTimeout is reported when a conversion never became ready.
	ErrConversionTimeout = errors.New("node: conversion timeout")
)

// ChannelReading is one finished conversion.
type ChannelReading struct {
	Raw int16
	// Elapsed is the time from StartConversion until readiness was observed.
	Elapsed time.Duration
}

// Readings is indexed by Role.
type Readings [3]ChannelReading

// Result is the outcome of a cycle. A Result with a nil Fault carries a
// temperature; otherwise only the supply voltage is meaningful.
type Result struct {
	// CentiCelsius is the temperature in hundredths of a degree, truncated
	// toward zero.
	CentiCelsius int
	// ConversionTime is the sum of the three conversion times.
	ConversionTime time.Duration
	// SupplyMilliVolts is reported for faults too.
	SupplyMilliVolts int
	Fault            error
}

// Valid reports whether r carries a temperature.
func (r Result) Valid() bool {
	return r.Fault == nil
}

func (r Result) String() string {
	if !r.Valid() {
		return fmt.Sprintf("fault (%v), supply %dmV", r.Fault, r.SupplyMilliVolts)
	}
	sign := ""
	if r.CentiCelsius < 0 {
		sign = "-"
	}
	c := abs(r.CentiCelsius)
	return fmt.Sprintf("%s%d.%02d°C in %s, supply %dmV", sign, c/100, c%100, r.ConversionTime, r.SupplyMilliVolts)
}

// Calibration holds the constants of the ratiometric conversion.
type Calibration struct {
	Channels Channels
	// ReferenceOhms is the precision resistor in series with the Pt100.
	ReferenceOhms float64
	Table         *pt100.Table
	// MinCelsius and MaxCelsius bound plausible temperatures.
	MinCelsius float64
	MaxCelsius float64
}

// DefaultCalibration matches the reference board.
var DefaultCalibration = Calibration{
	Channels:      DefaultChannels,
	ReferenceOhms: 100,
	Table:         pt100.Default,
	MinCelsius:    -100,
	MaxCelsius:    200,
}

// Volts converts a raw code at range r to volts.
func Volts(code int16, r ads1115.Range) float64 {
	return float64(code) / float64(ads1115.PositiveFullScale) * float64(r.FullScale()) / float64(physic.Volt)
}

// Resistance returns the Pt100 resistance from the voltage across the
// reference resistor and across the sensor. Both carry the same current, so
// the excitation voltage cancels out.
func Resistance(referenceVolts, sensorVolts, referenceOhms float64) float64 {
	return referenceOhms * sensorVolts / referenceVolts
}

// SupplyMilliVolts converts the supply reading, truncating toward zero.
func SupplyMilliVolts(code int16, r ads1115.Range) int {
	fullScale := float64(r.FullScale() / physic.MilliVolt)
	return int(fullScale * float64(code) / float64(ads1115.PositiveFullScale))
}

func saturated(code int16) bool {
	return code == ads1115.PositiveFullScale || code == ads1115.NegativeFullScale || code == 0
}

// Compute turns the three readings of a cycle into a Result.
func Compute(rd Readings, cal *Calibration) Result {
	res := Result{
		ConversionTime:   rd[Reference].Elapsed + rd[Sensor].Elapsed + rd[Supply].Elapsed,
		SupplyMilliVolts: SupplyMilliVolts(rd[Supply].Raw, cal.Channels[Supply].Range),
	}
	ref, sensor := rd[Reference].Raw, rd[Sensor].Raw
	if saturated(ref) || saturated(sensor) {
		res.Fault = fmt.Errorf("%w: reference=%d sensor=%d", ErrSaturated, ref, sensor)
		return res
	}
	ohm := Resistance(
		Volts(ref, cal.Channels[Reference].Range),
		Volts(sensor, cal.Channels[Sensor].Range),
		cal.ReferenceOhms)
	celsius, err := cal.Table.Lookup(ohm)
	if err != nil {
		res.Fault = fmt.Errorf("%w (%.2fΩ)", err, ohm)
		return res
	}
	if celsius < cal.MinCelsius || celsius > cal.MaxCelsius {
		res.Fault = fmt.Errorf("%w: %.2f°C", ErrImplausible, celsius)
		return res
	}
	res.CentiCelsius = int(celsius * 100)
	return res
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
