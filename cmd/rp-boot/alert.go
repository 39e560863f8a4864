// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	mail "gopkg.in/gomail.v2"
)

var errMailCredentials = errors.New("missing credentials")

// mailer sends alerts when a supervised process exits on its own with an error.
type mailer struct {
	usr  string
	pwd  string
	srv  string
	port int
	tgts []string

	send func(msg *mail.Message) error
}

func newMailerFromEnv() *mailer {
	m := &mailer{
		usr:  os.Getenv("MAIL_USERNAME"),
		pwd:  os.Getenv("MAIL_PASSWORD"),
		srv:  os.Getenv("MAIL_SERVER"),
		port: atoi(os.Getenv("MAIL_PORT")),
	}
	for _, tgt := range strings.Split(os.Getenv("MAIL_TGTS"), ",") {
		tgt = strings.TrimSpace(tgt)
		if tgt == "" {
			continue
		}
		m.tgts = append(m.tgts, tgt)
	}
	m.send = m.dial
	return m
}

func (m *mailer) dial(msg *mail.Message) error {
	dial := mail.NewDialer(m.srv, m.port, m.usr, m.pwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	return dial.DialAndSend(msg)
}

// alert reports the failure of the named process.
func (m *mailer) alert(name string, err error) {
	log.Printf("process %q exited: %+v", name, err)

	err = m.alertMail(name, err)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func (m *mailer) alertMail(name string, cause error) error {
	if m.usr == "" || m.pwd == "" ||
		m.srv == "" || m.port == 0 ||
		len(m.tgts) == 0 {
		return errMailCredentials
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.usr)
	msg.SetHeader("Bcc", m.tgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[rp-boot] process alert: %q", name))
	msg.SetBody("text/plain", fmt.Sprintf("process: %q\nhost: %s\nerror: %v\ndate: %v",
		name, host, cause, time.Now().UTC().Format(time.RFC3339),
	))

	return m.send(msg)
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
