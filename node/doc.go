// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package node is the acquisition and reporting core of a battery powered
// Pt100 temperature node.
//
// Each wake the Scheduler builds a fresh Sequencer. The Sequencer powers the
// sensing bridge, runs three single-shot conversions on an ADS1115
// (reference resistor, Pt100, supply), converts the ratio of the first two
// into a temperature, encodes a short ASCII status message and hands it to a
// Transmitter. Once the transmission completes the Scheduler forces the
// bridge off and asks the Sleeper to suspend for the rest of the period.
//
// Nothing in the core blocks. Progress is made only by HandleEvent, which
// the surrounding runtime calls for the start of a cycle, for every poll tick
// and for transmit completions. Runner is such a runtime for hosts running a
// full Go runtime.
//
// Status message:
//
//	P3300 S:0024 T:+2350    supply 3300mV, conversions took 24ms, 23.50°C
//	P3300 ERR               sensor fault
package node
