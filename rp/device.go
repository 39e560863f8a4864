// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rp drives the acquisition and digital lines of a Red Pitaya board
// through its memory-mapped FPGA registers.
package rp // import "github.com/go-lpc/rptrig/rp"

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"os"
	"sync"

	"github.com/go-lpc/rptrig/acq"
	"github.com/go-lpc/rptrig/internal/mmap"
)

var _ acq.Device = (*Device)(nil)

// Device is a Red Pitaya board.
// Register access errors are sticky: once an access failed, all the
// following operations fail with that same error.
type Device struct {
	msg *log.Logger

	mu  sync.Mutex
	mem struct {
		fd  *os.File
		hk  *mmap.Handle
		osc *mmap.Handle
	}

	err  error
	buf  [4]byte
	xbuf []byte // sample memory of a channel

	hk struct {
		id   reg32
		pdir reg32
		pout reg32
		led  reg32
	}
	osc struct {
		cfg   reg32
		src   reg32
		thA   reg32
		thB   reg32
		delay reg32
		dec   reg32
		wptr  reg32
		wtrig reg32
		mem   rwer
	}
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger used by the device.
func WithLogger(msg *log.Logger) Option {
	return func(dev *Device) {
		dev.msg = msg
	}
}

// Open opens the board through the provided physical memory device,
// usually /dev/mem.
func Open(devmem string, opts ...Option) (*Device, error) {
	mem, err := os.OpenFile(devmem, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("rp: could not open %q: %w", devmem, err)
	}
	defer func() {
		if err != nil {
			_ = mem.Close()
		}
	}()

	hk, err := mmap.Open(mem, hkBase, hkSpan)
	if err != nil {
		return nil, fmt.Errorf("rp: could not map housekeeping registers: %w", err)
	}
	defer func() {
		if err != nil {
			_ = hk.Close()
		}
	}()

	osc, err := mmap.Open(mem, oscBase, oscSpan)
	if err != nil {
		return nil, fmt.Errorf("rp: could not map oscilloscope registers: %w", err)
	}
	defer func() {
		if err != nil {
			_ = osc.Close()
		}
	}()

	dev := newDevice(hk, osc, opts...)
	dev.mem.fd = mem
	dev.mem.hk = hk
	dev.mem.osc = osc

	id := dev.hk.id.r()
	if err = dev.err; err != nil {
		return nil, fmt.Errorf("rp: could not read FPGA id: %w", err)
	}
	dev.msg.Printf("opened %q (fpga-id=0x%08x)", devmem, id)

	return dev, nil
}

func newDevice(hk, osc rwer, opts ...Option) *Device {
	dev := &Device{
		msg:  log.New(os.Stdout, "rp: ", 0),
		xbuf: make([]byte, 4*acq.BufferSize),
	}
	for _, opt := range opts {
		opt(dev)
	}

	dev.hk.id = newReg32(dev, hk, hkID)
	dev.hk.pdir = newReg32(dev, hk, hkExpPDir)
	dev.hk.pout = newReg32(dev, hk, hkExpPOut)
	dev.hk.led = newReg32(dev, hk, hkLED)

	dev.osc.cfg = newReg32(dev, osc, oscConfig)
	dev.osc.src = newReg32(dev, osc, oscTrigSrc)
	dev.osc.thA = newReg32(dev, osc, oscChAThresh)
	dev.osc.thB = newReg32(dev, osc, oscChBThresh)
	dev.osc.delay = newReg32(dev, osc, oscTrigDelay)
	dev.osc.dec = newReg32(dev, osc, oscDecim)
	dev.osc.wptr = newReg32(dev, osc, oscWPtr)
	dev.osc.wtrig = newReg32(dev, osc, oscWPtrTrig)
	dev.osc.mem = osc

	return dev
}

// Err returns the first register access error, if any.
func (dev *Device) Err() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.err
}

// Reset stops the acquisition, disables the trigger and resets the
// write state machine.
func (dev *Device) Reset() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.osc.src.w(uint32(acq.TrigSrcDisabled))
	dev.osc.cfg.w(oscRstWrite)
	dev.osc.cfg.w(0)
	return dev.err
}

// SetDecimation sets the sample-rate divisor.
func (dev *Device) SetDecimation(dec acq.Decimation) error {
	if !dec.Valid() {
		return fmt.Errorf("rp: could not set decimation: %w: %d", acq.ErrDecimation, uint32(dec))
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.osc.dec.w(uint32(dec))
	return dev.err
}

// SetTriggerLevel sets the trigger threshold of channel A, in volts.
// Levels outside of the ADC range saturate.
func (dev *Device) SetTriggerLevel(v float64) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.osc.thA.w(voltsToCounts(v))
	return dev.err
}

// SetTriggerDelay sets the number of samples recorded after the trigger,
// relative to the middle of the buffer.
func (dev *Device) SetTriggerDelay(delay int) error {
	v := delay + acq.BufferSize/2
	if v < 0 {
		return fmt.Errorf("rp: invalid trigger delay %d", delay)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.osc.delay.w(uint32(v))
	return dev.err
}

// Start starts writing samples to the acquisition buffer.
func (dev *Device) Start() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.osc.cfg.set(oscArm, true)
	return dev.err
}

// SetTriggerSource arms the trigger on the provided source.
func (dev *Device) SetTriggerSource(src acq.TriggerSource) error {
	if src > acq.TrigSrcAWGNE {
		return fmt.Errorf("rp: invalid trigger source %d", src)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.osc.src.w(uint32(src))
	return dev.err
}

// TriggerState returns the state of the trigger.
// The FPGA clears the trigger source once the trigger has fired.
func (dev *Device) TriggerState() (acq.TriggerState, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	src := dev.osc.src.r()
	if dev.err != nil {
		return acq.TrigWaiting, dev.err
	}
	if src == uint32(acq.TrigSrcDisabled) {
		return acq.TrigTriggered, nil
	}
	return acq.TrigWaiting, nil
}

// WritePointer returns the current write pointer and the write pointer at
// the last trigger.
func (dev *Device) WritePointer() (cur, trig int, err error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	cur = int(dev.osc.wptr.r() & wptrMask)
	trig = int(dev.osc.wtrig.r() & wptrMask)
	return cur, trig, dev.err
}

// OldestData reads the channel A samples, in volts, starting with the oldest
// sample of the acquisition buffer.
// OldestData returns the number of samples written to buf.
func (dev *Device) OldestData(buf []float32) (int, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	wp := int(dev.osc.wptr.r() & wptrMask)
	if dev.err != nil {
		return 0, dev.err
	}

	_, err := dev.osc.mem.ReadAt(dev.xbuf, oscChAMem)
	if err != nil {
		dev.err = fmt.Errorf("rp: could not read channel A memory: %w", err)
		return 0, dev.err
	}

	n := min(len(buf), acq.BufferSize)
	beg := (wp + 1) % acq.BufferSize
	for i := range buf[:n] {
		j := 4 * ((beg + i) % acq.BufferSize)
		buf[i] = countsToVolts(binary.LittleEndian.Uint32(dev.xbuf[j:]))
	}
	return n, nil
}

// Close releases the register windows and the memory device.
func (dev *Device) Close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.mem.fd == nil {
		return nil
	}

	var (
		errHK  = dev.mem.hk.Close()
		errOsc = dev.mem.osc.Close()
		errMem = dev.mem.fd.Close()
	)

	dev.mem.fd = nil
	dev.mem.hk = nil
	dev.mem.osc = nil

	if errMem != nil {
		return fmt.Errorf("rp: could not close device mem file: %w", errMem)
	}

	if errHK != nil {
		return fmt.Errorf("rp: could not close mmap housekeeping: %w", errHK)
	}

	if errOsc != nil {
		return fmt.Errorf("rp: could not close mmap oscilloscope: %w", errOsc)
	}

	return nil
}

func voltsToCounts(v float64) uint32 {
	cnt := math.Round(v * adcScale)
	switch {
	case math.IsNaN(cnt):
		cnt = 0
	case cnt < adcMin:
		cnt = adcMin
	case cnt > adcMax:
		cnt = adcMax
	}
	return uint32(int32(cnt)) & adcMask
}

func countsToVolts(raw uint32) float32 {
	cnt := int32(raw & adcMask)
	if cnt&adcSign != 0 {
		cnt -= 1 << adcBits
	}
	return float32(cnt) / adcScale
}
