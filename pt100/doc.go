// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pt100 converts the resistance of a Pt100 platinum resistance
// thermometer into a temperature.
//
// The conversion is an inverse lookup in a table holding the calibrated
// resistance at every integer degree Celsius, with linear interpolation
// between adjacent entries. Default covers -30°C to 159°C (IEC 60751,
// alpha = 0.00385).
package pt100
