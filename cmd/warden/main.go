// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the warden command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/wardenrun/warden"
	"github.com/wardenrun/warden/cmd"
	"github.com/wardenrun/warden/internal/ctxlog"
	"github.com/wardenrun/warden/internal/signalbroker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, cancel)

	cmd.RootCmd.Version = fmt.Sprintf("%s (commit: %s)", warden.Version, warden.Commit)

	err := cmd.RootCmd.Run(ctx, os.Args)

	if ctx.Err() != nil {
		ctxlog.Logger(ctx).Error("run terminated due to cancellation", "error", ctx.Err())
		os.Exit(1)
	}

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1)
	}
}
