// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"errors"
	"fmt"
	"time"
)

// ErrDecimation is returned for decimation factors outside of the
// supported set.
var ErrDecimation = errors.New("acq: invalid decimation rate")

// Decimation is the hardware sample-rate divisor.
type Decimation uint32

const (
	Dec1     Decimation = 1     // 125 MS/s, buffer length 131 µs
	Dec8     Decimation = 8     // 15.625 MS/s, buffer length 1.048 ms
	Dec64    Decimation = 64    // 1.953 MS/s, buffer length 8.388 ms
	Dec1024  Decimation = 1024  // 122.070 kS/s, buffer length 134.2 ms
	Dec8192  Decimation = 8192  // 15.258 kS/s, buffer length 1.073 s
	Dec65536 Decimation = 65536 // 1.907 kS/s, buffer length 8.589 s
)

// decimations maps the supported decimation factors to the device
// enumerants, in increasing order.
var decimations = [...]Decimation{
	0: Dec1,
	1: Dec8,
	2: Dec64,
	3: Dec1024,
	4: Dec8192,
	5: Dec65536,
}

// Decimations returns the supported decimation factors, in increasing order.
func Decimations() []Decimation {
	out := make([]Decimation, len(decimations))
	copy(out, decimations[:])
	return out
}

// ParseDecimation converts a decimation factor to a Decimation value.
func ParseDecimation(v uint64) (Decimation, error) {
	for _, dec := range decimations {
		if uint64(dec) == v {
			return dec, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrDecimation, v)
}

// Enum returns the device enumerant associated with the decimation factor,
// or -1 if the factor is not supported.
func (dec Decimation) Enum() int {
	for i, v := range decimations {
		if v == dec {
			return i
		}
	}
	return -1
}

// Valid reports whether dec is one of the supported decimation factors.
func (dec Decimation) Valid() bool { return dec.Enum() >= 0 }

// SampleRate returns the effective sampling rate, in Hz.
func (dec Decimation) SampleRate() float64 {
	return SampleRate / float64(dec)
}

// BufferDuration returns the time span covered by a full acquisition buffer.
func (dec Decimation) BufferDuration() time.Duration {
	return time.Duration(float64(dec) * BufferSize / SampleRate * float64(time.Second))
}

// Settle returns the time needed to refill the acquisition buffer factor times.
func (dec Decimation) Settle(factor float64) time.Duration {
	return time.Duration(factor * float64(dec.BufferDuration()))
}

func (dec Decimation) String() string {
	return fmt.Sprintf("1/%d", uint32(dec))
}
