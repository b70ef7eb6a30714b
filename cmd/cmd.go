// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmd contains the command-line interface (CLI) for the module.
package cmd

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wardenrun/warden/cmd/plan"
	"github.com/wardenrun/warden/cmd/run"
)

// RootCmd is the root command for the CLI.
var RootCmd = &cli.Command{
	Commands: []*cli.Command{
		run.RunCmd,
		plan.PlanCmd,
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "warden",
	Description: `Warden is a batch test-runner supervisor. It partitions a test
suite into fixed-size batches and runs each batch in a fresh runner
subprocess, supervising every run with tiered timeouts, completion-marker
detection and reliable force-kill semantics. Long test suites that leak
state or hang in teardown finish deterministically instead of wedging CI.`,
	Usage:     "warden run --profile warden.yaml",
	Copyright: "Copyright (c) wardenrun 2026. All rights reserved.",
	Authors: []any{
		"wardenrun maintainers",
	},
	EnableShellCompletion: true,
}
