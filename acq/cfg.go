// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"fmt"
	"time"
)

// Config holds the configuration of a recording run.
// A Config is not modified once the run has started.
type Config struct {
	Threshold  float64       // trigger level, in volts
	Decimation Decimation    // sample-rate divisor
	PulseWidth time.Duration // width of the completion pulse
	Captures   int           // number of capture cycles (0: unbounded)
	Template   string        // output file name template (%t: time, %n: cycle)
	Save       bool          // save captured samples to files
	Silent     bool          // do not report triggers

	Settle     float64       // settle time, in units of buffer duration
	PostSettle bool          // settle again once triggered, before reading
	Blocking   bool          // wait for the pulse to complete before the next cycle
	Poll       time.Duration // sleep between two trigger state polls
}

// NewConfig returns the default configuration:
// pulses are sent from the background and the device settles
// for two buffer durations, before and after the trigger.
func NewConfig() Config {
	return Config{
		Threshold:  0.1,
		Decimation: Dec8,
		PulseWidth: 100 * time.Millisecond,
		Captures:   0,
		Template:   "recorded-field-%n-%t.bin",
		Settle:     2,
		PostSettle: true,
		Poll:       100 * time.Microsecond,
	}
}

// ClampThreshold clamps a normalized trigger threshold to 1.
func ClampThreshold(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

// Validate checks the configuration is usable for a run.
func (cfg Config) Validate() error {
	switch {
	case !cfg.Decimation.Valid():
		return fmt.Errorf("%w: %d", ErrDecimation, uint32(cfg.Decimation))
	case cfg.PulseWidth <= 0:
		return fmt.Errorf("acq: invalid pulse width %v", cfg.PulseWidth)
	case cfg.Captures < 0:
		return fmt.Errorf("acq: invalid captures count %d", cfg.Captures)
	case cfg.Settle < 0:
		return fmt.Errorf("acq: invalid settle factor %v", cfg.Settle)
	case cfg.Poll < 0:
		return fmt.Errorf("acq: invalid poll interval %v", cfg.Poll)
	case cfg.Save && cfg.Template == "":
		return fmt.Errorf("acq: empty output file template")
	}
	return nil
}

// SettleTime returns the time given to the device to acquire fresh samples.
func (cfg Config) SettleTime() time.Duration {
	return cfg.Decimation.Settle(cfg.Settle)
}
