// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package node

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/GermanBionicSystems/rtdnode/ads1115"
	"github.com/GermanBionicSystems/rtdnode/pt100"
)

func readings(ref, sensor, supply int16) Readings {
	return Readings{
		Reference: {Raw: ref, Elapsed: 9 * time.Millisecond},
		Sensor:    {Raw: sensor, Elapsed: 9 * time.Millisecond},
		Supply:    {Raw: supply, Elapsed: 9 * time.Millisecond},
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name   string
		rd     Readings
		centi  int
		supply int
		fault  error
	}{
		{"23.5°C", readings(16000, 17465, 26400), 2350, 3300, nil},
		{"0°C", readings(16000, 16000, 26400), 0, 3300, nil},
		{"-5.1°C", readings(16000, 15680, 26400), -510, 3300, nil},
		{"below table", readings(16000, 8000, 20000), 0, 2500, pt100.ErrBelowRange},
		{"above table", readings(8000, 16000, 20000), 0, 2500, pt100.ErrAboveRange},
		{"reference zero", readings(0, 16000, 20000), 0, 2500, ErrSaturated},
		{"sensor positive full scale", readings(16000, ads1115.PositiveFullScale, 20000), 0, 2500, ErrSaturated},
		{"sensor negative full scale", readings(16000, ads1115.NegativeFullScale, 20000), 0, 2500, ErrSaturated},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := Compute(test.rd, &DefaultCalibration)
			if test.fault != nil {
				if !errors.Is(res.Fault, test.fault) {
					t.Fatalf("fault %v, want %v", res.Fault, test.fault)
				}
			} else if res.Fault != nil {
				t.Fatalf("unexpected fault %v", res.Fault)
			}
			if res.Valid() && res.CentiCelsius != test.centi {
				t.Errorf("centi %d, want %d", res.CentiCelsius, test.centi)
			}
			if res.SupplyMilliVolts != test.supply {
				t.Errorf("supply %d, want %d", res.SupplyMilliVolts, test.supply)
			}
			if res.ConversionTime != 27*time.Millisecond {
				t.Errorf("conversion time %s", res.ConversionTime)
			}
		})
	}
}

func TestComputeImplausible(t *testing.T) {
	cal := DefaultCalibration
	cal.MinCelsius, cal.MaxCelsius = 0, 20
	res := Compute(readings(16000, 17465, 26400), &cal)
	if !errors.Is(res.Fault, ErrImplausible) {
		t.Fatalf("fault %v", res.Fault)
	}
	if res.SupplyMilliVolts != 3300 {
		t.Fatalf("supply %d", res.SupplyMilliVolts)
	}
}

// The excitation cancels out: scaling both bridge voltages by the same
// factor gives the same resistance.
func TestRatiometric(t *testing.T) {
	const ohms = 100
	for _, k := range []float64{0.5, 0.9, 1, 1.7, 3} {
		got := Resistance(k*1.0, k*1.0915625, ohms)
		if math.Abs(got-109.15625) > 1e-9 {
			t.Errorf("k=%g: %gΩ", k, got)
		}
	}
	a := Compute(readings(8000, 8732, 26400), &DefaultCalibration)
	b := Compute(readings(16000, 17464, 26400), &DefaultCalibration)
	if !a.Valid() || a.CentiCelsius != b.CentiCelsius {
		t.Fatalf("%v != %v", a, b)
	}
}

func TestSupplyMilliVolts(t *testing.T) {
	tests := []struct {
		code int16
		r    ads1115.Range
		want int
	}{
		{20000, ads1115.Range4096mV, 2500},
		{26400, ads1115.Range4096mV, 3300},
		{ads1115.PositiveFullScale, ads1115.Range4096mV, 4096},
		{0, ads1115.Range4096mV, 0},
		{-8000, ads1115.Range4096mV, -1000},
	}
	for _, test := range tests {
		if got := SupplyMilliVolts(test.code, test.r); got != test.want {
			t.Errorf("SupplyMilliVolts(%d, %s) = %d, want %d", test.code, test.r, got, test.want)
		}
	}
}

func TestVolts(t *testing.T) {
	if got := Volts(ads1115.PositiveFullScale, ads1115.Range2048mV); got != 2.048 {
		t.Fatalf("got %g", got)
	}
	if got := Volts(0, ads1115.Range2048mV); got != 0 {
		t.Fatalf("got %g", got)
	}
}

func TestResult_String(t *testing.T) {
	tests := []struct {
		r    Result
		want string
	}{
		{Result{CentiCelsius: 2350, ConversionTime: 36 * time.Millisecond, SupplyMilliVolts: 3300}, "23.50°C in 36ms, supply 3300mV"},
		{Result{CentiCelsius: -5, ConversionTime: time.Millisecond, SupplyMilliVolts: 2900}, "-0.05°C in 1ms, supply 2900mV"},
		{Result{Fault: ErrSaturated, SupplyMilliVolts: 2500}, "fault (node: reading saturated or zero), supply 2500mV"},
	}
	for _, test := range tests {
		if got := test.r.String(); got != test.want {
			t.Errorf("got %q, want %q", got, test.want)
		}
	}
}
