// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rptrig

import (
	"context"
	"fmt"
	stdlog "log"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/rptrig/acq"
	"github.com/go-lpc/rptrig/pulse"
	"github.com/go-lpc/rptrig/rp"
)

// Board lines driven on each completed capture.
const (
	PulseLED = 0 // LED0
	PulseDIO = 0 // DIO0_P
)

// Run opens the Red Pitaya board behind devmem and records captures
// according to cfg until the run completes or ctx is canceled.
// Run fails without capturing anything if the board can not be initialized.
func Run(ctx context.Context, cfg acq.Config, devmem string, msg log.MsgStream) error {
	dev, err := rp.Open(devmem, rp.WithLogger(stdlog.New(msgWriter{msg}, "", 0)))
	if err != nil {
		return fmt.Errorf("rptrig: could not initialize board: %w", err)
	}

	rec, err := newRecorder(cfg, dev, msg)
	if err != nil {
		_ = dev.Close()
		return err
	}

	err = rec.Run(ctx)
	if err != nil {
		return fmt.Errorf("rptrig: could not run recorder: %w", err)
	}
	return nil
}

func newRecorder(cfg acq.Config, dev *rp.Device, msg log.MsgStream) (*acq.Recorder, error) {
	led, err := dev.LED(PulseLED)
	if err != nil {
		return nil, fmt.Errorf("rptrig: could not get LED: %w", err)
	}

	ttl, err := dev.DIO(PulseDIO)
	if err != nil {
		return nil, fmt.Errorf("rptrig: could not get digital line: %w", err)
	}

	sig := pulse.New(led, ttl, cfg.PulseWidth, pulse.WithMsgStream(msg))
	rec, err := acq.New(cfg, dev, sig, acq.WithMsgStream(msg))
	if err != nil {
		return nil, fmt.Errorf("rptrig: could not create recorder: %w", err)
	}
	return rec, nil
}

// msgWriter forwards driver messages to a message stream.
type msgWriter struct {
	msg log.MsgStream
}

func (w msgWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n > 0 && p[n-1] == '\n' {
		p = p[:n-1]
	}
	w.msg.Debugf("rp: %s", p)
	return n, nil
}
