// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ads1115 drives a Texas Instruments ADS1115 16-bit delta-sigma
// converter in single-shot mode.
//
// The driver never waits on the hardware. StartConversion triggers a
// conversion, IsConversionReady polls the OS bit of the config register and
// ReadResult fetches the signed result once the poll reported ready. The
// caller decides when to poll again.
//
// Range: ±0.256 V to ±6.144 V full scale, 8 to 860 samples/second.
//
// For detailed information, refer to the [datasheet].
//
// [datasheet]: https://www.ti.com/lit/ds/symlink/ads1115.pdf
package ads1115
