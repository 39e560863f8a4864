// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pulse drives the digital lines signaling the completion of a capture.
//
// A Signaler holds at most one pending pulse request: requests issued while
// a request is already pending are coalesced into a single pulse.
package pulse // import "github.com/go-lpc/rptrig/pulse"

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-daq/tdaq/log"
)

// Pin is a digital output line.
type Pin interface {
	Set(high bool) error
}

type outputer interface {
	SetOutput() error
}

// Signaler drives a status indicator and a TTL line high then low for
// each serviced pulse request.
type Signaler struct {
	led   Pin
	ttl   Pin
	width time.Duration
	msg   log.MsgStream

	mu      sync.Mutex
	cond    *sync.Cond
	pending bool // a pulse is owed
	closed  bool

	n atomic.Uint64 // number of pulses sent
}

// Option configures a Signaler.
type Option func(*Signaler)

// WithMsgStream sets the message stream used by the Signaler.
func WithMsgStream(msg log.MsgStream) Option {
	return func(s *Signaler) {
		s.msg = msg
	}
}

// New creates a Signaler driving the led and ttl lines with pulses of the
// provided width.
// Lines that can be configured as outputs are configured as such.
func New(led, ttl Pin, width time.Duration, opts ...Option) *Signaler {
	s := &Signaler{
		led:   led,
		ttl:   ttl,
		width: width,
		msg:   log.NewMsgStream("pulse", log.LvlInfo, io.Discard),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}

	for _, pin := range []Pin{s.led, s.ttl} {
		if o, ok := pin.(outputer); ok {
			_ = o.SetOutput()
		}
	}

	return s
}

// Request asks for a pulse to be sent by Run.
// Request never blocks.
func (s *Signaler) Request() {
	s.mu.Lock()
	s.pending = true
	s.cond.Signal()
	s.mu.Unlock()
}

// Close tells Run to exit once the pending request, if any, has been serviced.
func (s *Signaler) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Signaler) wake() {
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Run services pulse requests until Close is called or ctx is canceled.
// Once ctx is canceled, no further request is serviced.
// Each serviced pulse is followed by a low phase of the same width.
func (s *Signaler) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.wake)
	defer stop()

	for {
		s.mu.Lock()
		for !s.pending && !s.closed && ctx.Err() == nil {
			s.cond.Wait()
		}
		var (
			owed   = s.pending
			closed = s.closed
		)
		s.pending = false
		s.mu.Unlock()

		if ctx.Err() != nil {
			s.msg.Debugf("stop requested")
			return nil
		}

		if !owed {
			if closed {
				return nil
			}
			continue
		}

		s.Pulse()
		s.msg.Debugf("pulse #%d sent (width=%v)", s.Pulses(), s.width)
		time.Sleep(s.width)
	}
}

// Pulse drives both lines high for the pulse width, then low.
// Pulse blocks until the lines are low again.
func (s *Signaler) Pulse() {
	s.set(true)
	time.Sleep(s.width)
	s.set(false)
	s.n.Add(1)
}

func (s *Signaler) set(high bool) {
	for _, pin := range []Pin{s.led, s.ttl} {
		err := pin.Set(high)
		if err != nil {
			s.msg.Warnf("could not drive line (high=%v): %+v", high, err)
		}
	}
}

// Pulses returns the number of pulses sent so far.
func (s *Signaler) Pulses() uint64 {
	return s.n.Load()
}
