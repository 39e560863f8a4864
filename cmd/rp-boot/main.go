// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command rp-boot starts and supervises the trigger recording processes of a
// Red Pitaya node.
//
// Each argument is a command line, started with its output redirected to a
// log file. An interrupt is forwarded to all the supervised processes, which
// are killed if they did not exit after a grace period.
//
// A process exiting with an error before any interrupt triggers an alert
// mail, sent when the MAIL_USERNAME, MAIL_PASSWORD, MAIL_SERVER, MAIL_PORT
// and MAIL_TGTS (comma separated) environment variables are set.
//
// Example:
//
//	$> rp-boot -pmon "trigger-recorder -c /etc/rp-trigger-recorder.conf"
package main // import "github.com/go-lpc/rptrig/cmd/rp-boot"

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

var (
	doMon   = flag.Bool("pmon", false, "enable pmon monitoring")
	doFreq  = flag.Duration("freq", 1*time.Second, "pmon frequency")
	doGrace = flag.Duration("grace", 2*time.Second, "delay between interrupt and kill of supervised processes")
	logDir  = flag.String("dir", os.Getenv("RPTRIG_LOGDIR"), "directory for log files")

	stop = make(chan os.Signal, 1)
)

func main() {
	flag.Parse()

	log.SetPrefix("rp-boot: ")
	log.SetFlags(0)

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing command to supervise")
	}

	cmds := make([]*exec.Cmd, 0, flag.NArg())
	for _, arg := range flag.Args() {
		args := strings.Fields(arg)
		if len(args) == 0 {
			log.Fatalf("invalid empty command")
		}
		cmds = append(cmds, exec.Command(args[0], args[1:]...))
	}

	alert := newMailerFromEnv().alert

	err := run(*doMon, *doFreq, *doGrace, cmds, *logDir, stop, alert)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type alertFunc func(name string, err error)

func run(doMon bool, freq, grace time.Duration, cmds []*exec.Cmd, dir string, stop chan os.Signal, alert alertFunc) error {
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	if dir == "" {
		dir = "/var/log/rptrig"
	}

	var (
		grp  errgroup.Group
		kill = make(chan int)
		done = make(chan int)
	)
	for i := range cmds {
		cmd := cmds[i]
		grp.Go(func() error {
			return start(cmd, dir, kill, grace, doMon, freq, alert)
		})
	}

	go func() {
		select {
		case <-stop:
			close(kill)
		case <-done:
		}
	}()

	err := grp.Wait()
	close(done)
	if err != nil {
		return fmt.Errorf("could not boot trigger recorders: %w", err)
	}
	return nil
}

func start(cmd *exec.Cmd, dir string, kill chan int, grace time.Duration, doMon bool, freq time.Duration, alert alertFunc) error {
	name := filepath.Base(cmd.Path)
	out, err := os.Create(filepath.Join(dir, name+".log"))
	if err != nil {
		return fmt.Errorf("could not create output log file for %q: %w", name, err)
	}
	defer out.Close()

	cmd.Stdout = out
	cmd.Stderr = out

	log.Printf("starting %q...", name)
	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("could not start %q: %w", name, err)
	}

	if doMon {
		p, err := pmon.Monitor(cmd.Process.Pid)
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return fmt.Errorf("could not start monitoring %q (pid=%d): %w", name, cmd.Process.Pid, err)
		}
		f, err := os.Create(filepath.Join(dir, name+"-pmon.log"))
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return fmt.Errorf("could not create pmon log file for command %q: %w", name, err)
		}
		defer f.Close()
		p.W = f
		p.Freq = freq

		go func() {
			log.Printf("run pmon %q...", name)
			err := p.Run()
			if err != nil {
				log.Printf("could not start monitoring %q: %+v", name, err)
			}
		}()

		defer func() {
			err := p.Kill()
			if err != nil {
				log.Printf("could not stop monitoring %q: %+v", name, err)
			}
		}()
	}

	errch := make(chan error, 1)
	go func() {
		errch <- cmd.Wait()
	}()

	select {
	case <-kill:
		return interrupt(cmd, name, grace, errch)
	case err = <-errch:
		if err != nil {
			alert(name, err)
			return fmt.Errorf("could not run %q: %w", name, err)
		}
	}

	return nil
}

// interrupt asks the process to stop and kills it if it is still running
// after the grace delay.
func interrupt(cmd *exec.Cmd, name string, grace time.Duration, errch chan error) error {
	log.Printf("stopping %q...", name)
	err := cmd.Process.Signal(os.Interrupt)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("could not interrupt %q: %w", name, err)
	}

	tmr := time.NewTimer(grace)
	defer tmr.Stop()

	select {
	case <-errch:
		return nil
	case <-tmr.C:
		log.Printf("killing %q...", name)
		err = cmd.Process.Kill()
		if err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("could not kill %q: %+v", name, err)
		}
		<-errch
		return nil
	}
}
