// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package acq implements the trigger-driven capture loop of the recorder.
//
// Each capture cycle arms the acquisition device, lets its buffer fill with
// fresh samples, polls for the hardware trigger, reads the sample buffer,
// requests a pulse from the pulse signaler and optionally saves the samples
// to a file.
package acq // import "github.com/go-lpc/rptrig/acq"

const (
	BufferSize = 16384 // number of samples in the acquisition buffer
	SampleRate = 125e6 // ADC sampling clock, in Hz
)

// TriggerSource selects the event that fires the acquisition trigger.
type TriggerSource uint32

const (
	TrigSrcDisabled TriggerSource = iota
	TrigSrcNow                    // trigger immediately
	TrigSrcChAPE                  // channel A, positive edge
	TrigSrcChANE                  // channel A, negative edge
	TrigSrcChBPE                  // channel B, positive edge
	TrigSrcChBNE                  // channel B, negative edge
	TrigSrcExtPE                  // external trigger, positive edge
	TrigSrcExtNE                  // external trigger, negative edge
	TrigSrcAWGPE                  // arbitrary wave generator, positive edge
	TrigSrcAWGNE                  // arbitrary wave generator, negative edge
)

// TriggerState is the state of the acquisition trigger.
type TriggerState uint8

const (
	TrigWaiting TriggerState = iota
	TrigTriggered
)

func (st TriggerState) String() string {
	switch st {
	case TrigWaiting:
		return "waiting"
	case TrigTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// Device is the acquisition device driven by the capture loop.
//
// The monitored channel is channel A.
type Device interface {
	Reset() error
	SetDecimation(dec Decimation) error
	SetTriggerLevel(volts float64) error
	SetTriggerDelay(samples int) error
	Start() error
	SetTriggerSource(src TriggerSource) error
	TriggerState() (TriggerState, error)

	// OldestData fills dst with the oldest samples (in volts) of the
	// monitored channel and returns the number of samples read.
	OldestData(dst []float32) (int, error)

	Close() error
}
