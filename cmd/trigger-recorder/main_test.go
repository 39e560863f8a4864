// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/go-lpc/rptrig/acq"
	"github.com/spf13/pflag"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		want func() options
	}{
		{
			name: "defaults",
			want: func() options {
				return options{cfg: acq.NewConfig(), devmem: "/dev/mem"}
			},
		},
		{
			name: "short",
			args: []string{"-n", "5", "-t", "0.3", "-d", "64", "-w", "0.25", "-f", "out-%n.bin", "-S", "-s", "-v"},
			want: func() options {
				cfg := acq.NewConfig()
				cfg.Captures = 5
				cfg.Threshold = 0.3
				cfg.Decimation = acq.Dec64
				cfg.PulseWidth = 250 * time.Millisecond
				cfg.Template = "out-%n.bin"
				cfg.Silent = true
				cfg.Save = true
				return options{cfg: cfg, devmem: "/dev/mem", verbose: true}
			},
		},
		{
			name: "long",
			args: []string{
				"--captures-count=2", "--threshold=4", "--decimation=1",
				"--settle=3", "--post-settle=false", "--blocking",
				"--dev-mem=/tmp/mem",
			},
			want: func() options {
				cfg := acq.NewConfig()
				cfg.Captures = 2
				cfg.Threshold = 1
				cfg.Decimation = acq.Dec1
				cfg.Settle = 3
				cfg.PostSettle = false
				cfg.Blocking = true
				return options{cfg: cfg, devmem: "/tmp/mem"}
			},
		},
		{
			name: "config-file",
			args: []string{"-c", "../../acq/testdata/good.conf", "-t", "0.9", "-n", "1", "-S"},
			want: func() options {
				cfg := acq.NewConfig()
				cfg.Threshold = 0.25
				cfg.Decimation = acq.Dec64
				cfg.PulseWidth = 50 * time.Millisecond
				cfg.Template = "field-%n.bin"
				cfg.Captures = 10
				cfg.Save = true
				cfg.Silent = true
				return options{cfg: cfg, devmem: "/dev/mem"}
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parse(tc.args, new(bytes.Buffer))
			if err != nil {
				t.Fatalf("could not parse args: %+v", err)
			}
			if want := tc.want(); got != want {
				t.Fatalf("invalid options:\ngot= %+v\nwant=%+v", got, want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		want error
	}{
		{"decimation", []string{"-d", "7"}, acq.ErrDecimation},
		{"missing-key", []string{"-c", "../../acq/testdata/missing-key.conf"}, acq.ErrMissingKey},
		{"bad-decimation-file", []string{"-c", "../../acq/testdata/bad-decimation.conf"}, acq.ErrDecimation},
		{"no-file", []string{"-c", filepath.Join(os.TempDir(), "rptrig-no-such-file.conf")}, nil},
		{"pulse-width", []string{"-w", "0"}, nil},
		{"unknown-flag", []string{"--no-such-flag"}, nil},
		{"extra-args", []string{"foo"}, nil},
		{"save-empty-template", []string{"-s", "-f", ""}, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parse(tc.args, new(bytes.Buffer))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("invalid error: got=%+v, want=%+v", err, tc.want)
			}
		})
	}
}

func TestHelp(t *testing.T) {
	for _, arg := range []string{"-h", "--help"} {
		t.Run(arg, func(t *testing.T) {
			var out bytes.Buffer
			_, err := parse([]string{arg}, &out)
			if !errors.Is(err, pflag.ErrHelp) {
				t.Fatalf("invalid error: got=%v, want=%v", err, pflag.ErrHelp)
			}
			for _, want := range []string{"--captures-count", "--field-file", "--silent", "console oscilloscope"} {
				if !strings.Contains(out.String(), want) {
					t.Fatalf("missing %q in usage:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestInterruption(t *testing.T) {
	for _, tc := range []struct {
		sig  os.Signal
		want string
	}{
		{os.Interrupt, "interrupted by user"},
		{syscall.SIGTERM, "interrupted by SIGTERM"},
		{syscall.SIGHUP, "interrupted by hangup"},
	} {
		if got := interruption(tc.sig); got != tc.want {
			t.Fatalf("invalid message: got=%q, want=%q", got, tc.want)
		}
	}
}
