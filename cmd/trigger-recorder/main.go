// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command trigger-recorder records the Red Pitaya input field each time the
// channel A input crosses a threshold, and sends a pulse on LED0 and DIO0_P
// once each capture is done.
//
// Usage: trigger-recorder [options]
//
// Example:
//
//	$> trigger-recorder -t 0.2 -d 64 -n 10 -s -f 'field-%n-%t.bin'
//	$> trigger-recorder -c /etc/rp-trigger-recorder.conf
//
// A configuration file provides the capture, output and general values and
// overrides the ones given on the command line:
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
package main // import "github.com/go-lpc/rptrig/cmd/trigger-recorder"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/rptrig"
	"github.com/go-lpc/rptrig/acq"
	"github.com/spf13/pflag"
)

func main() {
	log.SetPrefix("trigger-recorder: ")
	log.SetFlags(0)

	opts, err := parse(os.Args[1:], os.Stdout)
	switch {
	case errors.Is(err, pflag.ErrHelp):
		os.Exit(0)
	case err != nil:
		log.Fatalf("could not parse arguments: %+v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case sig := <-sigs:
			log.Print(interruption(sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	lvl := tlog.LvlInfo
	if opts.verbose {
		lvl = tlog.LvlDebug
	}
	msg := tlog.NewMsgStream("trigger-recorder", lvl, os.Stdout)

	if v, _ := rptrig.Version(); v != "" {
		msg.Debugf("version %s", v)
	}

	err = rptrig.Run(ctx, opts.cfg, opts.devmem, msg)
	if err != nil {
		log.Fatalf("could not run: %+v", err)
	}
}

type options struct {
	cfg     acq.Config
	devmem  string
	verbose bool
}

func parse(args []string, stdout io.Writer) (options, error) {
	var (
		opts = options{cfg: acq.NewConfig()}
		fs   = pflag.NewFlagSet("trigger-recorder", pflag.ContinueOnError)

		captures = fs.UintP("captures-count", "n", uint(opts.cfg.Captures), "count of captures (0 for infinite)")
		config   = fs.StringP("config", "c", "", "use configuration file")

		threshold = fs.Float64P("threshold", "t", opts.cfg.Threshold, "trigger threshold, [0..1]")
		decim     = fs.Uint64P("decimation", "d", uint64(opts.cfg.Decimation), "field decimation. Allowed: 1, 8, 64, 1024, 8192, 65536")

		width  = fs.Float64P("pulse-width", "w", opts.cfg.PulseWidth.Seconds(), "output TTL pulse width, s")
		tmpl   = fs.StringP("field-file", "f", opts.cfg.Template, "file to store electric field (%n: capture index, %t: local time)")
		silent = fs.BoolP("silent", "S", false, "silent mode: no 'triggered' text output")
		save   = fs.BoolP("save-field", "s", false, "enable field saving")

		settle   = fs.Float64("settle", opts.cfg.Settle, "settle time, in units of buffer duration")
		post     = fs.Bool("post-settle", opts.cfg.PostSettle, "settle again once triggered, before reading the buffer")
		blocking = fs.Bool("blocking", opts.cfg.Blocking, "wait for the pulse to complete before the next capture")
		devmem   = fs.String("dev-mem", "/dev/mem", "path to the physical memory device")
		verbose  = fs.BoolP("verbose", "v", false, "enable verbose output")
	)
	fs.SortFlags = false
	fs.SetOutput(stdout)
	fs.Usage = func() {
		fmt.Fprintf(stdout, "Simple software for RedPitaya device that may be used as a console oscilloscope.\n\n")
		fmt.Fprintf(stdout, "Usage: trigger-recorder [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	err := fs.Parse(args)
	if err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %q", fs.Args())
	}

	opts.devmem = *devmem
	opts.verbose = *verbose

	cfg := &opts.cfg
	cfg.Captures = int(*captures)
	cfg.Threshold = acq.ClampThreshold(*threshold)
	cfg.PulseWidth = time.Duration(*width * float64(time.Second))
	cfg.Template = *tmpl
	cfg.Save = *save
	cfg.Settle = *settle
	cfg.PostSettle = *post
	cfg.Blocking = *blocking

	cfg.Decimation, err = acq.ParseDecimation(*decim)
	if err != nil {
		return opts, err
	}

	if *config != "" {
		err = acq.LoadConfig(*config, cfg)
		if err != nil {
			return opts, err
		}
	}
	cfg.Silent = *silent

	err = cfg.Validate()
	if err != nil {
		return opts, err
	}

	return opts, nil
}

func interruption(sig os.Signal) string {
	switch sig {
	case os.Interrupt:
		return "interrupted by user"
	case syscall.SIGTERM:
		return "interrupted by SIGTERM"
	default:
		return fmt.Sprintf("interrupted by %v", sig)
	}
}
