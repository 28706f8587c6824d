// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sdnotify sends service manager notifications over the
// datagram socket named by NOTIFY_SOCKET. Every method is a no-op when
// the process was not started by systemd.
package sdnotify

import (
	"fmt"
	"net"
	"os"
	"strings"
)

// Notifier sends state strings to one socket.
type Notifier struct {
	socket string
}

// FromEnvironment returns a Notifier for $NOTIFY_SOCKET.
func FromEnvironment() *Notifier {
	return New(os.Getenv("NOTIFY_SOCKET"))
}

// New returns a Notifier for socket. A leading '@' names an abstract
// socket. An empty socket disables notification.
func New(socket string) *Notifier {
	if strings.HasPrefix(socket, "@") {
		socket = "\x00" + socket[1:]
	}
	return &Notifier{socket: socket}
}

// Enabled reports whether notifications go anywhere.
func (n *Notifier) Enabled() bool { return n.socket != "" }

// Notify sends one newline-separated list of assignments such as
// "READY=1".
func (n *Notifier) Notify(state string) error {
	if n.socket == "" {
		return nil
	}
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: n.socket, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("sdnotify: connecting to %s: %w", n.socket, err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(state)); err != nil {
		return fmt.Errorf("sdnotify: sending %q: %w", state, err)
	}
	return nil
}

// Ready reports that startup finished.
func (n *Notifier) Ready() error { return n.Notify("READY=1") }

// Watchdog resets the service watchdog timer.
func (n *Notifier) Watchdog() error { return n.Notify("WATCHDOG=1") }

// Stopping reports that shutdown began.
func (n *Notifier) Stopping() error { return n.Notify("STOPPING=1") }

// Status sets the free-form status line shown by systemctl.
func (n *Notifier) Status(status string) error { return n.Notify("STATUS=" + status) }
