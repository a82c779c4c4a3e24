// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package rtdnode is a container for the packages of a battery powered Pt100
// temperature node.
//
// ads1115 drives the converter, pt100 maps resistance to temperature, node
// sequences a measurement cycle and sleeps between cycles, and transport
// with its subpackages broadcasts the status message.
package rtdnode
