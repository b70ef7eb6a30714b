// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker provides a way to listen for OS signals and relay
// them to a supervised child process.
// By default it listens for os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
// and syscall.SIGQUIT signals.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wardenrun/warden/internal/ctxlog"
)

var termSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
	os.Interrupt,
}

// New creates a new signal broker that listens for OS signals that should terminate the process.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	ch := make(chan os.Signal, 1)

	if len(sigs) == 0 {
		sigs = termSignals
	}

	ctxlog.Debug(ctx, "signalbroker", "detail", "creating signal broker", "signals", sigs)
	signal.Notify(ch, sigs...)

	return ch
}

// ExitCode returns the conventional exit code for termination caused by
// the given signal, i.e. 128 plus the signal number. Interrupt maps to
// 130 and terminate to 143. Unknown signals map to 1.
func ExitCode(sig os.Signal) int {
	s, ok := sig.(syscall.Signal)
	if !ok {
		if sig == os.Interrupt {
			s = syscall.SIGINT
		} else {
			return 1
		}
	}

	return 128 + int(s)
}
