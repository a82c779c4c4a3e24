// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package node

import "fmt"

// messageCap fits "P6144 S:9999 T:+20000" with room to spare.
const messageCap = 32

// Encode formats r as the broadcast status message:
//
//	"P%04d " supply millivolts, then
//	"ERR" on a fault, or
//	"S:%04d T:%+05d" conversion milliseconds and centidegrees.
func Encode(r Result) []byte {
	b := make([]byte, 0, messageCap)
	b = fmt.Appendf(b, "P%04d ", r.SupplyMilliVolts)
	if !r.Valid() {
		return append(b, "ERR"...)
	}
	return fmt.Appendf(b, "S:%04d T:%+05d", r.ConversionTime.Milliseconds(), r.CentiCelsius)
}
