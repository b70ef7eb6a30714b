// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run contains the warden run command.
package run

import (
	"bytes"
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/wardenrun/warden/internal/config"
	"github.com/wardenrun/warden/internal/ctxlog"
	"github.com/wardenrun/warden/internal/plan"
	"github.com/wardenrun/warden/internal/progress"
	"github.com/wardenrun/warden/internal/supervise"
	"github.com/wardenrun/warden/internal/tui"
)

const (
	profileFlag        = "profile"
	runnerFlag         = "runner"
	runnerArgFlag      = "runner-arg"
	patternFlag        = "pattern"
	batchSizeFlag      = "batch-size"
	softTimeoutFlag    = "soft-timeout"
	hardTimeoutFlag    = "hard-timeout"
	graceWindowFlag    = "grace-window"
	batchPauseFlag     = "batch-pause"
	markerFlag         = "marker"
	summaryPatternFlag = "summary-pattern"
	outputModeFlag     = "output-mode"
	sweepPatternFlag   = "sweep-pattern"
	maxMemoryFlag      = "max-memory"
	tuiFlag            = "tui"
	reporterBufferSize = 64
	cliExitStr         = ""
)

// RunCmd partitions the work items into batches and supervises a runner
// subprocess for each batch in turn.
var RunCmd = &cli.Command{
	Name: "run",
	Description: `Run a test suite in supervised batches.
Work items are taken from the command line arguments, the profile's explicit
list, or discovered with the profile's glob patterns. They are partitioned
into fixed-size batches and each batch runs in a fresh runner subprocess.

Every subprocess is supervised: a per-batch soft timeout force-kills hung
runners, an absolute hard timeout bounds the whole run, and completion
markers in runner output allow a clean verdict even when the runner hangs
in teardown after its tests have finished.

Profile URLs use Hashicorp's go-getter syntax, which allows fetching the
profile from local paths, git, http and other sources.
See https://github.com/hashicorp/go-getter.
`,
	ArgsUsage: "[work items...]",
	Flags:     runFlags(),
	Action:    actionFunc,
}

// runFlags returns a fresh flag set. Flags carry parse state, so tests
// build their own set instead of sharing RunCmd's.
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    profileFlag,
			Aliases: []string{"f"},
			Usage: "URL of the YAML run profile. " +
				"Supports Hashicorp's go-getter syntax for fetching files from various sources.",
			OnlyOnce: true,
		},
		&cli.StringFlag{
			Name:     runnerFlag,
			Usage:    "Runner executable that receives one batch of work items as arguments",
			OnlyOnce: true,
		},
		&cli.StringSliceFlag{
			Name:  runnerArgFlag,
			Usage: "Fixed argument inserted before the work items. Specify multiple times for multiple arguments.",
		},
		&cli.StringSliceFlag{
			Name:    patternFlag,
			Aliases: []string{"p"},
			Usage:   "Glob pattern used to discover work items. Specify multiple times for multiple patterns.",
		},
		&cli.IntFlag{
			Name:     batchSizeFlag,
			Aliases:  []string{"n"},
			Usage:    "Maximum number of work items per batch",
			OnlyOnce: true,
		},
		&cli.DurationFlag{
			Name:     softTimeoutFlag,
			Usage:    "Per-batch deadline after which the runner is force-killed",
			OnlyOnce: true,
		},
		&cli.DurationFlag{
			Name:     hardTimeoutFlag,
			Usage:    "Absolute deadline per batch after which the supervisor itself exits",
			OnlyOnce: true,
		},
		&cli.DurationFlag{
			Name:     graceWindowFlag,
			Usage:    "How long to wait for a natural exit after a completion marker is seen",
			OnlyOnce: true,
		},
		&cli.DurationFlag{
			Name:     batchPauseFlag,
			Usage:    "Settle pause between consecutive batches",
			OnlyOnce: true,
		},
		&cli.StringSliceFlag{
			Name:  markerFlag,
			Usage: "Output substring that marks the batch's useful work as complete. Specify multiple times for multiple markers.",
		},
		&cli.StringFlag{
			Name:     summaryPatternFlag,
			Usage:    "Regular expression matched against runner output as an additional completion signal",
			OnlyOnce: true,
		},
		&cli.StringFlag{
			Name:     outputModeFlag,
			Usage:    "Output handling: 'captured' scans for completion markers, 'inherited' passes output through",
			OnlyOnce: true,
		},
		&cli.StringFlag{
			Name:     sweepPatternFlag,
			Usage:    "Command-line pattern for reaping stray runner processes after a force-kill",
			OnlyOnce: true,
		},
		&cli.IntFlag{
			Name:     maxMemoryFlag,
			Usage:    "Runner heap ceiling in megabytes, applied via the runner's environment",
			OnlyOnce: true,
		},
		&cli.BoolFlag{
			Name:        tuiFlag,
			Aliases:     []string{"t", "interactive"},
			Usage:       "Run with interactive Terminal User Interface (TUI) showing real-time progress",
			Value:       false,
			DefaultText: "false",
			OnlyOnce:    true,
		},
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)
	logger.Debug("Running run command")

	prof, err := buildProfile(ctx, cmd)
	if err != nil {
		logger.Error(fmt.Sprintf("Invalid configuration: %s", err.Error()))
		return cli.Exit(cliExitStr, 1)
	}

	p, err := buildPlan(ctx, prof)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to build batch plan: %s", err.Error()))
		return cli.Exit(cliExitStr, 1)
	}

	logger.Info("Batch plan built",
		"items", p.ItemCount(), "batches", p.Len(), "batchSize", prof.BatchSize)

	sup, err := buildSupervisor(prof)
	if err != nil {
		logger.Error(fmt.Sprintf("Invalid completion detection settings: %s", err.Error()))
		return cli.Exit(cliExitStr, 1)
	}

	seq := &supervise.Sequencer{
		Supervisor: sup,
		BatchPause: prof.BatchPause.Std(),
	}

	var agg supervise.AggregateResult

	switch cmd.Bool(tuiFlag) {
	case true:
		logger.Info("Starting interactive TUI mode...")

		// Buffer log output so it does not corrupt the TUI display.
		buf := new(bytes.Buffer)
		tuiCtx := ctxlog.NewForTUI(ctx, buf)

		runner := tui.NewRunner(p.Len())

		var tuiErr error

		agg, tuiErr = runner.Run(tuiCtx, func(runCtx context.Context, reporter progress.Reporter) supervise.AggregateResult {
			sup.Reporter = reporter
			return seq.Run(runCtx, p)
		})

		buf.WriteTo(cmd.ErrWriter) //nolint:errcheck // Replay buffered log output after the TUI exits

		if tuiErr != nil {
			logger.Error(fmt.Sprintf("TUI error: %s", tuiErr.Error()))
		}
	default:
		reporter := progress.NewChannelReporter(ctx, reporterBufferSize)
		reporter.Listen(progress.NewPrinter(cmd.Writer))

		sup.Reporter = reporter

		agg = seq.Run(ctx, p)

		reporter.Close()
	}

	if !agg.Success {
		if agg.Err != nil {
			logger.Error(fmt.Sprintf("Run failed: %s", agg.Err.Error()))
		}

		return cli.Exit(cliExitStr, agg.ExitCode)
	}

	return nil
}

// buildProfile loads the profile (if given) and overlays any flags the
// user set on the command line. Command line arguments become the
// explicit work item list.
func buildProfile(ctx context.Context, cmd *cli.Command) (*config.Profile, error) {
	var (
		prof *config.Profile
		err  error
	)

	if url := cmd.String(profileFlag); url != "" {
		prof, err = config.Load(ctx, url)
		if err != nil {
			return nil, err
		}
	} else {
		prof = config.Default()
	}

	if cmd.IsSet(runnerFlag) {
		prof.Runner = cmd.String(runnerFlag)
	}

	if cmd.IsSet(runnerArgFlag) {
		prof.RunnerArgs = cmd.StringSlice(runnerArgFlag)
	}

	if cmd.IsSet(patternFlag) {
		prof.Patterns = cmd.StringSlice(patternFlag)
	}

	if cmd.IsSet(batchSizeFlag) {
		prof.BatchSize = int(cmd.Int(batchSizeFlag))
	}

	if cmd.IsSet(softTimeoutFlag) {
		prof.SoftTimeout = config.Duration(cmd.Duration(softTimeoutFlag))
	}

	if cmd.IsSet(hardTimeoutFlag) {
		prof.HardTimeout = config.Duration(cmd.Duration(hardTimeoutFlag))
	}

	if cmd.IsSet(graceWindowFlag) {
		prof.GraceWindow = config.Duration(cmd.Duration(graceWindowFlag))
	}

	if cmd.IsSet(batchPauseFlag) {
		prof.BatchPause = config.Duration(cmd.Duration(batchPauseFlag))
	}

	if cmd.IsSet(markerFlag) {
		prof.CompletionMarkers = cmd.StringSlice(markerFlag)
	}

	if cmd.IsSet(summaryPatternFlag) {
		prof.SummaryPattern = cmd.String(summaryPatternFlag)
	}

	if cmd.IsSet(outputModeFlag) {
		prof.OutputMode = config.OutputMode(cmd.String(outputModeFlag))
	}

	if cmd.IsSet(sweepPatternFlag) {
		prof.SweepPattern = cmd.String(sweepPatternFlag)
	}

	if cmd.IsSet(maxMemoryFlag) {
		prof.MaxMemoryMB = int(cmd.Int(maxMemoryFlag))
	}

	if args := cmd.Args().Slice(); len(args) > 0 {
		prof.WorkItems = args
	}

	if err := prof.Validate(); err != nil {
		return nil, err
	}

	return prof, nil
}

// buildPlan resolves the work item list and partitions it into batches.
func buildPlan(ctx context.Context, prof *config.Profile) (*plan.Plan, error) {
	var items []plan.WorkItem

	if len(prof.WorkItems) > 0 {
		items = make([]plan.WorkItem, 0, len(prof.WorkItems))
		for _, it := range prof.WorkItems {
			items = append(items, plan.WorkItem(it))
		}
	} else {
		var err error

		items, err = plan.Discover(ctx, plan.FsFactory(), prof.Patterns)
		if err != nil {
			return nil, err
		}
	}

	return plan.Partition(items, prof.BatchSize)
}

// buildSupervisor wires a supervisor from the validated profile.
func buildSupervisor(prof *config.Profile) (*supervise.Supervisor, error) {
	sup := &supervise.Supervisor{
		Runner:       prof.Runner,
		RunnerArgs:   prof.RunnerArgs,
		Env:          prof.Env,
		MaxMemoryMB:  prof.MaxMemoryMB,
		SoftTimeout:  prof.SoftTimeout.Std(),
		HardTimeout:  prof.HardTimeout.Std(),
		GraceWindow:  prof.GraceWindow.Std(),
		SweepPattern: prof.SweepPattern,
	}

	switch prof.OutputMode {
	case config.OutputInherited:
		sup.OutputMode = supervise.OutputInherited
	default:
		sup.OutputMode = supervise.OutputCaptured

		det, err := supervise.NewMarkerDetector(prof.CompletionMarkers, prof.SummaryPattern)
		if err != nil {
			return nil, err
		}

		sup.Detector = det
	}

	return sup, nil
}
