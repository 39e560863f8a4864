// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-lpc/rptrig/acq"
)

type memRW struct {
	buf []byte
}

func newMemRW(n int) *memRW { return &memRW{buf: make([]byte, n)} }

func (rw *memRW) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, rw.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (rw *memRW) WriteAt(p []byte, off int64) (int, error) {
	n := copy(rw.buf[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (rw *memRW) u32(off int64) uint32 {
	return binary.LittleEndian.Uint32(rw.buf[off:])
}

func (rw *memRW) put(off int64, v uint32) {
	binary.LittleEndian.PutUint32(rw.buf[off:], v)
}

type failingRW struct {
	err error
}

func (rw failingRW) ReadAt(p []byte, off int64) (int, error)  { return 0, rw.err }
func (rw failingRW) WriteAt(p []byte, off int64) (int, error) { return 0, rw.err }

func newTestDevice() (*Device, *memRW, *memRW) {
	var (
		hk  = newMemRW(hkSpan)
		osc = newMemRW(oscSpan)
		dev = newDevice(hk, osc, WithLogger(log.New(io.Discard, "rp: ", 0)))
	)
	return dev, hk, osc
}

func TestDeviceAcquisition(t *testing.T) {
	dev, _, osc := newTestDevice()

	osc.put(oscConfig, oscArm)
	osc.put(oscTrigSrc, uint32(acq.TrigSrcChBNE))

	err := dev.Reset()
	if err != nil {
		t.Fatalf("could not reset: %+v", err)
	}
	if got := osc.u32(oscConfig); got != 0 {
		t.Fatalf("invalid config after reset: got=0x%x", got)
	}
	if got := osc.u32(oscTrigSrc); got != uint32(acq.TrigSrcDisabled) {
		t.Fatalf("invalid trigger source after reset: got=%d", got)
	}

	err = dev.SetDecimation(acq.Dec64)
	if err != nil {
		t.Fatalf("could not set decimation: %+v", err)
	}
	if got, want := osc.u32(oscDecim), uint32(64); got != want {
		t.Fatalf("invalid decimation: got=%d, want=%d", got, want)
	}

	err = dev.SetDecimation(3)
	if !errors.Is(err, acq.ErrDecimation) {
		t.Fatalf("invalid error: got=%v, want=%v", err, acq.ErrDecimation)
	}

	err = dev.SetTriggerLevel(0.1)
	if err != nil {
		t.Fatalf("could not set trigger level: %+v", err)
	}
	if got, want := osc.u32(oscChAThresh), uint32(819); got != want {
		t.Fatalf("invalid threshold: got=%d, want=%d", got, want)
	}

	err = dev.SetTriggerDelay(0)
	if err != nil {
		t.Fatalf("could not set trigger delay: %+v", err)
	}
	if got, want := osc.u32(oscTrigDelay), uint32(acq.BufferSize/2); got != want {
		t.Fatalf("invalid trigger delay: got=%d, want=%d", got, want)
	}
	if err := dev.SetTriggerDelay(-acq.BufferSize); err == nil {
		t.Fatalf("expected an error for a negative delay")
	}

	err = dev.Start()
	if err != nil {
		t.Fatalf("could not start: %+v", err)
	}
	if got := osc.u32(oscConfig); got&oscArm == 0 {
		t.Fatalf("acquisition not armed: config=0x%x", got)
	}

	err = dev.SetTriggerSource(acq.TrigSrcChAPE)
	if err != nil {
		t.Fatalf("could not set trigger source: %+v", err)
	}
	if got, want := osc.u32(oscTrigSrc), uint32(acq.TrigSrcChAPE); got != want {
		t.Fatalf("invalid trigger source: got=%d, want=%d", got, want)
	}
	if err := dev.SetTriggerSource(42); err == nil {
		t.Fatalf("expected an error for an invalid trigger source")
	}

	state, err := dev.TriggerState()
	if err != nil {
		t.Fatalf("could not read trigger state: %+v", err)
	}
	if state != acq.TrigWaiting {
		t.Fatalf("invalid trigger state: got=%v, want=%v", state, acq.TrigWaiting)
	}

	// the FPGA clears the source once triggered.
	osc.put(oscTrigSrc, 0)
	state, err = dev.TriggerState()
	if err != nil {
		t.Fatalf("could not read trigger state: %+v", err)
	}
	if state != acq.TrigTriggered {
		t.Fatalf("invalid trigger state: got=%v, want=%v", state, acq.TrigTriggered)
	}

	err = dev.Close()
	if err != nil {
		t.Fatalf("could not close device: %+v", err)
	}
}

func TestDeviceOldestData(t *testing.T) {
	dev, _, osc := newTestDevice()

	for i := 0; i < acq.BufferSize; i++ {
		osc.put(oscChAMem+4*int64(i), uint32(i)&adcMask)
	}
	const wp = 100
	osc.put(oscWPtr, wp)
	osc.put(oscWPtrTrig, wp-10)

	cur, trig, err := dev.WritePointer()
	if err != nil {
		t.Fatalf("could not read write pointer: %+v", err)
	}
	if cur != wp || trig != wp-10 {
		t.Fatalf("invalid write pointers: cur=%d, trig=%d", cur, trig)
	}

	buf := make([]float32, acq.BufferSize)
	n, err := dev.OldestData(buf)
	if err != nil {
		t.Fatalf("could not read oldest data: %+v", err)
	}
	if n != acq.BufferSize {
		t.Fatalf("invalid number of samples: got=%d, want=%d", n, acq.BufferSize)
	}

	for _, k := range []int{0, 1, 8000, acq.BufferSize - wp - 2, acq.BufferSize - wp - 1, acq.BufferSize - 1} {
		want := countsToVolts(uint32((wp + 1 + k) % acq.BufferSize))
		if got := buf[k]; got != want {
			t.Fatalf("invalid sample[%d]: got=%v, want=%v", k, got, want)
		}
	}

	small := make([]float32, 10)
	n, err = dev.OldestData(small)
	if err != nil {
		t.Fatalf("could not read oldest data: %+v", err)
	}
	if n != len(small) {
		t.Fatalf("invalid number of samples: got=%d, want=%d", n, len(small))
	}
}

func TestConversions(t *testing.T) {
	for _, tc := range []struct {
		v    float64
		want uint32
	}{
		{0, 0},
		{0.1, 819},
		{0.5, 4096},
		{-0.5, 0x3000},
		{1, adcMax},
		{2, adcMax},
		{-1, 0x2000},
		{-3, 0x2000},
	} {
		got := voltsToCounts(tc.v)
		if got != tc.want {
			t.Fatalf("invalid counts for %vV: got=0x%x, want=0x%x", tc.v, got, tc.want)
		}
	}

	for _, tc := range []struct {
		raw  uint32
		want float32
	}{
		{0, 0},
		{4096, 0.5},
		{0x3000, -0.5},
		{0x2000, -1},
		{0xffff_c000 | 0x1000, 0.5},
	} {
		got := countsToVolts(tc.raw)
		if got != tc.want {
			t.Fatalf("invalid volts for 0x%x: got=%v, want=%v", tc.raw, got, tc.want)
		}
	}
}

func TestPins(t *testing.T) {
	dev, hk, _ := newTestDevice()

	hk.put(hkExpPOut, 0x80)

	dio, err := dev.DIO(0)
	if err != nil {
		t.Fatalf("could not get DIO0: %+v", err)
	}
	if got, want := dio.String(), "DIO0_P"; got != want {
		t.Fatalf("invalid pin name: got=%q, want=%q", got, want)
	}

	err = dio.SetOutput()
	if err != nil {
		t.Fatalf("could not configure DIO0: %+v", err)
	}
	if got, want := hk.u32(hkExpPDir), uint32(0x1); got != want {
		t.Fatalf("invalid direction: got=0x%x, want=0x%x", got, want)
	}

	err = dio.Set(true)
	if err != nil {
		t.Fatalf("could not set DIO0: %+v", err)
	}
	if got, want := hk.u32(hkExpPOut), uint32(0x81); got != want {
		t.Fatalf("invalid output: got=0x%x, want=0x%x", got, want)
	}
	high, err := dio.Get()
	if err != nil || !high {
		t.Fatalf("invalid DIO0 state: high=%v, err=%v", high, err)
	}

	err = dio.Set(false)
	if err != nil {
		t.Fatalf("could not clear DIO0: %+v", err)
	}
	if got, want := hk.u32(hkExpPOut), uint32(0x80); got != want {
		t.Fatalf("invalid output: got=0x%x, want=0x%x", got, want)
	}

	led, err := dev.LED(3)
	if err != nil {
		t.Fatalf("could not get LED3: %+v", err)
	}
	if err := led.SetOutput(); err != nil {
		t.Fatalf("could not configure LED3: %+v", err)
	}
	if err := led.Set(true); err != nil {
		t.Fatalf("could not set LED3: %+v", err)
	}
	if got, want := hk.u32(hkLED), uint32(0x8); got != want {
		t.Fatalf("invalid LEDs: got=0x%x, want=0x%x", got, want)
	}

	for _, i := range []int{-1, nPins} {
		if _, err := dev.LED(i); err == nil {
			t.Fatalf("expected an error for LED%d", i)
		}
		if _, err := dev.DIO(i); err == nil {
			t.Fatalf("expected an error for DIO%d", i)
		}
	}
}

func TestStickyError(t *testing.T) {
	var (
		errIO = errors.New("bus error")
		dev   = newDevice(failingRW{errIO}, failingRW{errIO}, WithLogger(log.New(io.Discard, "", 0)))
	)

	err := dev.Reset()
	if !errors.Is(err, errIO) {
		t.Fatalf("invalid error: got=%v, want=%v", err, errIO)
	}

	first := dev.Err()
	for _, f := range []func() error{
		dev.Start,
		func() error { return dev.SetTriggerLevel(0.2) },
		func() error { _, err := dev.TriggerState(); return err },
		func() error { _, err := dev.OldestData(make([]float32, 4)); return err },
	} {
		if err := f(); err != first {
			t.Fatalf("error not sticky: got=%v, want=%v", err, first)
		}
	}

	pin, err := dev.DIO(0)
	if err != nil {
		t.Fatalf("could not get DIO0: %+v", err)
	}
	if err := pin.Set(true); !errors.Is(err, errIO) {
		t.Fatalf("invalid pin error: got=%v, want=%v", err, errIO)
	}
}

func TestDumpRegisters(t *testing.T) {
	dev, hk, osc := newTestDevice()
	hk.put(hkID, 0xcafe)
	osc.put(oscDecim, 8)
	osc.put(oscConfig, oscArm)

	var out bytes.Buffer
	err := dev.DumpRegisters(&out)
	if err != nil {
		t.Fatalf("could not dump registers: %+v", err)
	}

	for _, want := range []string{
		"hk.id:", "0x0000cafe",
		"osc.decimation:", "0x00000008",
		"armed=true", "triggered=false",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in dump:\n%s", want, out.String())
		}
	}
}

func TestOpen(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "not-there"))
	if err == nil {
		t.Fatalf("expected an error")
	}

	fname := filepath.Join(t.TempDir(), "mem")
	f, err := os.Create(fname)
	if err != nil {
		t.Fatalf("could not create fake memory device: %+v", err)
	}
	defer f.Close()

	err = f.Truncate(oscBase + oscSpan)
	if err != nil {
		t.Fatalf("could not resize fake memory device: %+v", err)
	}

	var id [4]byte
	binary.LittleEndian.PutUint32(id[:], 0x1234)
	_, err = f.WriteAt(id[:], hkBase+hkID)
	if err != nil {
		t.Fatalf("could not write FPGA id: %+v", err)
	}

	var msg bytes.Buffer
	dev, err := Open(fname, WithLogger(log.New(&msg, "rp: ", 0)))
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	if !strings.Contains(msg.String(), "fpga-id=0x00001234") {
		t.Fatalf("invalid open message: %q", msg.String())
	}

	err = dev.SetDecimation(acq.Dec1024)
	if err != nil {
		t.Fatalf("could not set decimation: %+v", err)
	}

	var raw [4]byte
	_, err = f.ReadAt(raw[:], oscBase+oscDecim)
	if err != nil {
		t.Fatalf("could not read back decimation: %+v", err)
	}
	if got, want := binary.LittleEndian.Uint32(raw[:]), uint32(1024); got != want {
		t.Fatalf("invalid decimation register: got=%d, want=%d", got, want)
	}

	err = dev.Close()
	if err != nil {
		t.Fatalf("could not close device: %+v", err)
	}
	err = dev.Close()
	if err != nil {
		t.Fatalf("could not close device twice: %+v", err)
	}
}
