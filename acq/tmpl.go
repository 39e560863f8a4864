// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"strconv"
	"strings"
	"time"
)

const (
	timeTag   = "%t"
	numberTag = "%n"

	timeLayout = "2006-01-02_15-04-05"
)

// Expand expands the output file name template for the cycle-th capture.
// The first occurrence of %t is replaced with the local time and the first
// occurrence of %n with the cycle index.
func Expand(tmpl string, now time.Time, cycle int) string {
	o := strings.Replace(tmpl, timeTag, now.Local().Format(timeLayout), 1)
	o = strings.Replace(o, numberTag, strconv.Itoa(cycle), 1)
	return o
}
