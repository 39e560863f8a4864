// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ErrMissingKey is returned when a required key is absent from a
// configuration file.
var ErrMissingKey = errors.New("acq: missing required key")

// LoadConfig reads the INI configuration file fname into cfg.
//
// The file must provide all of:
//
//	[capture]
//	threshold = 0.1
//	decimation = 8
//
//	[output]
//	pulse-width = 0.1
//	field-file = recorded-field-%n-%t.bin
//
//	[general]
//	captures-count = 0
//	save-field = false
//
// The threshold is clamped to 1 and the pulse width is given in seconds.
// cfg is left untouched when an error is returned.
func LoadConfig(fname string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(fname)
	v.SetConfigType("ini")

	err := v.ReadInConfig()
	if err != nil {
		return fmt.Errorf("acq: could not read config file %q: %w", fname, err)
	}

	var (
		o   = *cfg
		get = func(key string) any {
			if err != nil {
				return nil
			}
			if !v.IsSet(key) {
				err = fmt.Errorf("%w %q in %q", ErrMissingKey, key, fname)
				return nil
			}
			return v.Get(key)
		}
		check = func(key string, e error) {
			if err == nil && e != nil {
				err = fmt.Errorf("acq: invalid value for key %q in %q: %w", key, fname, e)
			}
		}
	)

	th, e := cast.ToFloat64E(get("capture.threshold"))
	check("capture.threshold", e)

	dec, e := cast.ToUint64E(get("capture.decimation"))
	check("capture.decimation", e)

	width, e := cast.ToFloat64E(get("output.pulse-width"))
	check("output.pulse-width", e)

	tmpl, e := cast.ToStringE(get("output.field-file"))
	check("output.field-file", e)

	n, e := cast.ToIntE(get("general.captures-count"))
	check("general.captures-count", e)

	save, e := cast.ToBoolE(get("general.save-field"))
	check("general.save-field", e)

	if err != nil {
		return err
	}

	o.Decimation, err = ParseDecimation(dec)
	if err != nil {
		return fmt.Errorf("acq: invalid decimation in %q: %w", fname, err)
	}

	o.Threshold = ClampThreshold(th)
	o.PulseWidth = time.Duration(width * float64(time.Second))
	o.Template = tmpl
	o.Captures = n
	o.Save = save

	err = o.Validate()
	if err != nil {
		return fmt.Errorf("acq: invalid configuration in %q: %w", fname, err)
	}

	*cfg = o
	return nil
}
