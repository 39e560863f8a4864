// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rp

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// DumpRegisters writes the housekeeping and oscilloscope registers to w.
func (dev *Device) DumpRegisters(w io.Writer) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	type entry struct {
		name string
		reg  reg32
	}

	var (
		tw   = tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
		regs = []entry{
			{"hk.id", dev.hk.id},
			{"hk.exp-p.dir", dev.hk.pdir},
			{"hk.exp-p.out", dev.hk.pout},
			{"hk.led", dev.hk.led},
			{"osc.config", dev.osc.cfg},
			{"osc.trig-src", dev.osc.src},
			{"osc.cha-thresh", dev.osc.thA},
			{"osc.chb-thresh", dev.osc.thB},
			{"osc.trig-delay", dev.osc.delay},
			{"osc.decimation", dev.osc.dec},
			{"osc.wptr", dev.osc.wptr},
			{"osc.wptr-trig", dev.osc.wtrig},
		}
	)

	for _, reg := range regs {
		v := reg.reg.r()
		if dev.err != nil {
			return fmt.Errorf("rp: could not dump %s: %w", reg.name, dev.err)
		}
		fmt.Fprintf(tw, "%s:\t0x%08x\t%d\n", reg.name, v, v)
	}

	cfg := dev.osc.cfg.r()
	fmt.Fprintf(
		tw, "osc.state:\tarmed=%v\ttriggered=%v\n",
		cfg&oscArm != 0, cfg&oscTrigged != 0,
	)

	err := tw.Flush()
	if err != nil {
		return fmt.Errorf("rp: could not flush register dump: %w", err)
	}
	return dev.err
}
