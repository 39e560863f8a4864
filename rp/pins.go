// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rp

import (
	"fmt"
)

// Pin is a digital line of the board.
type Pin struct {
	dev  *Device
	name string
	dir  *reg32 // nil for output-only lines
	out  reg32
	mask uint32
}

// LED returns the i-th user LED.
func (dev *Device) LED(i int) (*Pin, error) {
	if i < 0 || i >= nPins {
		return nil, fmt.Errorf("rp: invalid LED index %d", i)
	}
	return &Pin{
		dev:  dev,
		name: fmt.Sprintf("LED%d", i),
		out:  dev.hk.led,
		mask: 1 << i,
	}, nil
}

// DIO returns the i-th line of the P side of the extension connector.
func (dev *Device) DIO(i int) (*Pin, error) {
	if i < 0 || i >= nPins {
		return nil, fmt.Errorf("rp: invalid DIO index %d", i)
	}
	return &Pin{
		dev:  dev,
		name: fmt.Sprintf("DIO%d_P", i),
		dir:  &dev.hk.pdir,
		out:  dev.hk.pout,
		mask: 1 << i,
	}, nil
}

func (pin *Pin) String() string { return pin.name }

// SetOutput configures the line as an output.
func (pin *Pin) SetOutput() error {
	if pin.dir == nil {
		return nil
	}

	pin.dev.mu.Lock()
	defer pin.dev.mu.Unlock()

	pin.dir.set(pin.mask, true)
	if pin.dev.err != nil {
		return fmt.Errorf("rp: could not configure %s as output: %w", pin.name, pin.dev.err)
	}
	return nil
}

// Set drives the line high or low.
func (pin *Pin) Set(high bool) error {
	pin.dev.mu.Lock()
	defer pin.dev.mu.Unlock()

	pin.out.set(pin.mask, high)
	if pin.dev.err != nil {
		return fmt.Errorf("rp: could not set %s: %w", pin.name, pin.dev.err)
	}
	return nil
}

// Get returns the current output state of the line.
func (pin *Pin) Get() (bool, error) {
	pin.dev.mu.Lock()
	defer pin.dev.mu.Unlock()

	v := pin.out.r()
	if pin.dev.err != nil {
		return false, fmt.Errorf("rp: could not read %s: %w", pin.name, pin.dev.err)
	}
	return v&pin.mask != 0, nil
}
