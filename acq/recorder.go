// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/rptrig/pulse"
	"golang.org/x/sync/errgroup"
)

// State is a state of the capture cycle.
type State uint8

const (
	StateIdle State = iota
	StateArmed
	StateSettling
	StatePolling
	StateTriggered
	StateReading
	StateSignaling
	StatePersisting
	StateStopped
)

func (st State) String() string {
	switch st {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateSettling:
		return "settling"
	case StatePolling:
		return "polling"
	case StateTriggered:
		return "triggered"
	case StateReading:
		return "reading"
	case StateSignaling:
		return "signaling"
	case StatePersisting:
		return "persisting"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", uint8(st))
	}
}

// Recorder runs capture cycles on an acquisition device.
type Recorder struct {
	cfg Config
	dev Device
	sig *pulse.Signaler
	msg log.MsgStream

	now    func() time.Time
	create func(name string) (io.WriteCloser, error)

	state  State
	buf    []float32 // samples of the current cycle
	raw    []byte    // little-endian encoding of buf
	cycles int       // number of completed cycles
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithMsgStream sets the message stream used by the Recorder.
func WithMsgStream(msg log.MsgStream) Option {
	return func(rec *Recorder) {
		rec.msg = msg
	}
}

// WithClock sets the clock used to tag output files.
func WithClock(now func() time.Time) Option {
	return func(rec *Recorder) {
		rec.now = now
	}
}

// WithCreate sets the function used to create output files.
func WithCreate(create func(name string) (io.WriteCloser, error)) Option {
	return func(rec *Recorder) {
		rec.create = create
	}
}

// New creates a new Recorder driving dev and requesting pulses from sig.
// The Recorder takes ownership of dev.
func New(cfg Config, dev Device, sig *pulse.Signaler, opts ...Option) (*Recorder, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("acq: invalid configuration: %w", err)
	}

	rec := &Recorder{
		cfg: cfg,
		dev: dev,
		sig: sig,
		msg: log.NewMsgStream("acq", log.LvlInfo, os.Stdout),
		now: time.Now,
		create: func(name string) (io.WriteCloser, error) {
			return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		},
		buf: make([]float32, BufferSize),
		raw: make([]byte, 4*BufferSize),
	}
	for _, opt := range opts {
		opt(rec)
	}
	return rec, nil
}

// Cycles returns the number of completed capture cycles.
func (rec *Recorder) Cycles() int { return rec.cycles }

// Run runs capture cycles until the configured number of captures has been
// reached or ctx is canceled.
//
// Run returns once the pulse signaler has exited, after having released
// the acquisition device.
func (rec *Recorder) Run(ctx context.Context) error {
	var grp errgroup.Group
	if !rec.cfg.Blocking {
		grp.Go(func() error {
			return rec.sig.Run(ctx)
		})
	}

	rec.msg.Infof(
		"threshold=%gV decimation=%v settle=%v pulse=%v captures=%d",
		rec.cfg.Threshold, rec.cfg.Decimation, rec.cfg.SettleTime(),
		rec.cfg.PulseWidth, rec.cfg.Captures,
	)

	rec.loop(ctx)
	rec.setState(-1, StateStopped)

	rec.sig.Close()
	errSig := grp.Wait()
	errDev := rec.dev.Close()

	rec.msg.Infof(
		"captured %s cycle(s), sent %s pulse(s)",
		humanize.Comma(int64(rec.cycles)),
		humanize.Comma(int64(rec.sig.Pulses())),
	)

	if errSig != nil {
		return fmt.Errorf("acq: could not run pulse signaler: %w", errSig)
	}
	if errDev != nil {
		return fmt.Errorf("acq: could not release device: %w", errDev)
	}
	return nil
}

func (rec *Recorder) loop(ctx context.Context) {
	for c := 0; rec.cfg.Captures == 0 || c < rec.cfg.Captures; c++ {
		if stopped(ctx) {
			return
		}
		if !rec.cycle(ctx, c) {
			return
		}
		rec.cycles++
	}
}

// cycle runs the c-th capture cycle.
// cycle returns false if a stop was requested before the samples were read.
func (rec *Recorder) cycle(ctx context.Context, c int) bool {
	rec.setState(c, StateIdle)
	rec.arm()
	rec.setState(c, StateArmed)

	rec.setState(c, StateSettling)
	if !sleep(ctx, rec.cfg.SettleTime()) {
		return false
	}
	rec.try("set trigger source", rec.dev.SetTriggerSource(TrigSrcChAPE))

	rec.setState(c, StatePolling)
	if !rec.poll(ctx) {
		return false
	}
	rec.setState(c, StateTriggered)
	if !rec.cfg.Silent {
		rec.msg.Infof("triggered (cycle=%d)", c)
	}

	if rec.cfg.PostSettle && !sleep(ctx, rec.cfg.SettleTime()) {
		return false
	}

	rec.setState(c, StateReading)
	data := rec.read()

	rec.setState(c, StateSignaling)
	if rec.cfg.Blocking {
		rec.sig.Pulse()
	} else {
		rec.sig.Request()
	}

	if rec.cfg.Save {
		rec.setState(c, StatePersisting)
		rec.persist(c, data)
	}

	return true
}

func (rec *Recorder) arm() {
	rec.try("reset", rec.dev.Reset())
	rec.try("set decimation", rec.dev.SetDecimation(rec.cfg.Decimation))
	rec.try("set trigger level", rec.dev.SetTriggerLevel(rec.cfg.Threshold))
	rec.try("set trigger delay", rec.dev.SetTriggerDelay(0))
	rec.try("start acquisition", rec.dev.Start())
}

// poll waits for the trigger.
// poll returns false if a stop was requested.
func (rec *Recorder) poll(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		state, err := rec.dev.TriggerState()
		if err == nil && state == TrigTriggered {
			return true
		}

		switch {
		case rec.cfg.Poll > 0:
			time.Sleep(rec.cfg.Poll)
		default:
			runtime.Gosched()
		}
	}
}

func (rec *Recorder) read() []float32 {
	for i := range rec.buf {
		rec.buf[i] = 0
	}

	n, err := rec.dev.OldestData(rec.buf)
	if err != nil {
		rec.msg.Errorf("could not read oldest data: %+v", err)
	}
	n = max(0, min(n, len(rec.buf)))
	return rec.buf[:n]
}

func (rec *Recorder) persist(c int, data []float32) {
	fname := Expand(rec.cfg.Template, rec.now(), c)
	f, err := rec.create(fname)
	if err != nil {
		rec.msg.Errorf("could not create output file %q: %+v", fname, err)
		return
	}

	raw := rec.raw[:4*len(data)]
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}

	_, err = f.Write(raw)
	if err != nil {
		_ = f.Close()
		rec.msg.Errorf("could not write samples to %q: %+v", fname, err)
		return
	}

	err = f.Close()
	if err != nil {
		rec.msg.Errorf("could not close output file %q: %+v", fname, err)
		return
	}
	rec.msg.Debugf("saved %s to %q", humanize.Bytes(uint64(len(raw))), fname)
}

func (rec *Recorder) setState(c int, st State) {
	rec.state = st
	rec.msg.Debugf("cycle=%d state=%v", c, st)
}

// try reports failures of best-effort device calls.
func (rec *Recorder) try(op string, err error) {
	if err == nil {
		return
	}
	rec.msg.Warnf("could not %s: %+v", op, err)
}

func stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleep pauses for d.
// sleep returns false if ctx was canceled in the meantime.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !stopped(ctx)
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-tmr.C:
		return true
	}
}
