// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rp

// Memory map of the Red Pitaya FPGA.
const (
	hkBase = 0x40000000 // housekeeping
	hkSpan = 0x1000

	oscBase = 0x40100000 // oscilloscope
	oscSpan = 0x30000
)

// Housekeeping registers.
const (
	hkID      = 0x00 // FPGA identifier
	hkDNALow  = 0x04
	hkDNAHigh = 0x08
	hkExpPDir = 0x10 // expansion connector P direction
	hkExpNDir = 0x14 // expansion connector N direction
	hkExpPOut = 0x18 // expansion connector P output
	hkExpNOut = 0x1c // expansion connector N output
	hkExpPIn  = 0x20 // expansion connector P input
	hkExpNIn  = 0x24 // expansion connector N input
	hkLED     = 0x30 // LEDs
)

// Oscilloscope registers.
const (
	oscConfig    = 0x00 // acquisition control
	oscTrigSrc   = 0x04 // trigger source
	oscChAThresh = 0x08 // channel A threshold
	oscChBThresh = 0x0c // channel B threshold
	oscTrigDelay = 0x10 // samples recorded after trigger
	oscDecim     = 0x14 // decimation factor
	oscWPtr      = 0x18 // current write pointer
	oscWPtrTrig  = 0x1c // write pointer at trigger
	oscChAHyst   = 0x20 // channel A hysteresis
	oscChBHyst   = 0x24 // channel B hysteresis
	oscAvg       = 0x28 // averaging enable

	oscChAMem = 0x10000 // channel A sample memory
	oscChBMem = 0x20000 // channel B sample memory
)

// Bits of the oscilloscope configuration register.
const (
	oscArm      = 1 << 0 // start writing samples
	oscRstWrite = 1 << 1 // reset write state machine
	oscTrigged  = 1 << 2 // trigger has arrived and delay elapsed
)

const (
	adcBits  = 14
	adcMask  = 1<<adcBits - 1
	adcSign  = 1 << (adcBits - 1)
	adcScale = 1 << (adcBits - 1) // counts per volt, 1 V full scale
	adcMin   = -adcScale
	adcMax   = adcScale - 1

	wptrMask = 0x3fff

	nPins = 8 // LEDs and expansion lines per connector
)
