// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command rp-spy spies the content of the Red Pitaya FPGA registers.
package main // import "github.com/go-lpc/rptrig/cmd/rp-spy"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/rptrig/rp"
)

func main() {
	var (
		devmem = flag.String("dev-mem", "/dev/mem", "path to the physical memory device")
		freq   = flag.Duration("freq", 0, "dump frequency (0: dump once)")
		n      = flag.Int("n", 0, "number of dumps when -freq is set (0: forever)")
	)

	log.SetPrefix("rp-spy: ")
	log.SetFlags(0)

	flag.Parse()

	err := run(os.Stdout, *devmem, *freq, *n)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(w io.Writer, devmem string, freq time.Duration, n int) error {
	dev, err := rp.Open(devmem, rp.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		return fmt.Errorf("could not open device: %w", err)
	}
	defer dev.Close()

	if freq <= 0 {
		n = 1
	}

	for i := 0; n <= 0 || i < n; i++ {
		if i > 0 {
			time.Sleep(freq)
		}
		err = dump(w, dev)
		if err != nil {
			return err
		}
	}

	return dev.Close()
}

func dump(w io.Writer, dev *rp.Device) error {
	fmt.Fprintf(w, "------------------------------------------------\n")
	const layout = "2006-01-02 15:04:05 MST"
	fmt.Fprintf(w, "%v\n", time.Now().Format(layout))

	err := dev.DumpRegisters(w)
	if err != nil {
		return fmt.Errorf("could not dump registers: %w", err)
	}
	return nil
}
