// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command rp-trig-srv starts a TDAQ server driving trigger recording runs on
// a Red Pitaya node.
//
// The optional first argument is the path to a default configuration file.
// A /config command may carry the path to another configuration file.
package main // import "github.com/go-lpc/rptrig/cmd/rp-trig-srv"

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/rptrig"
	"github.com/go-lpc/rptrig/acq"
)

func main() {
	cmd := flags.New()

	dev := newServer("/dev/mem")
	if len(cmd.Args) > 0 {
		dev.fname = cmd.Args[0]
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type runFunc func(ctx context.Context, cfg acq.Config, devmem string, msg tlog.MsgStream) error

type server struct {
	devmem string
	fname  string // default configuration file

	mu   sync.Mutex
	cfg  acq.Config
	runs int

	exec runFunc
}

func newServer(devmem string) *server {
	return &server{
		devmem: devmem,
		cfg:    acq.NewConfig(),
		exec:   rptrig.Run,
	}
}

func (srv *server) config() acq.Config {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.cfg
}

func (srv *server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	fname := srv.fname
	if len(req.Body) > 0 {
		dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
		fname = dec.ReadStr()
		if err := dec.Err(); err != nil {
			return fmt.Errorf("could not decode /config request: %w", err)
		}
	}

	cfg := acq.NewConfig()
	if fname != "" {
		err := acq.LoadConfig(fname, &cfg)
		if err != nil {
			ctx.Msg.Errorf("could not load configuration: %+v", err)
			return fmt.Errorf("could not load configuration: %w", err)
		}
	}
	// remote runs never report each trigger.
	cfg.Silent = true

	srv.mu.Lock()
	srv.cfg = cfg
	srv.mu.Unlock()

	ctx.Msg.Infof(
		"configured from %q: threshold=%gV decimation=%v captures=%d save=%v",
		fname, cfg.Threshold, cfg.Decimation, cfg.Captures, cfg.Save,
	)
	return nil
}

func (srv *server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	cfg := srv.config()
	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("could not initialize: %w", err)
	}
	return nil
}

func (srv *server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.mu.Lock()
	srv.cfg = acq.NewConfig()
	srv.cfg.Silent = true
	srv.runs = 0
	srv.mu.Unlock()
	return nil
}

func (srv *server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (srv *server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	srv.mu.Lock()
	n := srv.runs
	srv.mu.Unlock()
	ctx.Msg.Debugf("received /stop command... -> runs=%d", n)
	return nil
}

func (srv *server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return nil
}

func (srv *server) run(ctx tdaq.Context) error {
	cfg := srv.config()

	srv.mu.Lock()
	srv.runs++
	srv.mu.Unlock()

	err := srv.exec(ctx.Ctx, cfg, srv.devmem, ctx.Msg)
	if err != nil {
		ctx.Msg.Errorf("could not run trigger recorder: %+v", err)
		return err
	}

	// a bounded run is over: wait for /stop.
	<-ctx.Ctx.Done()
	return nil
}
