// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package plan contains the warden plan command.
package plan

import (
	"context"
	"fmt"

	"github.com/TylerBrock/colorjson"
	"github.com/urfave/cli/v3"

	"github.com/wardenrun/warden/internal/color"
	"github.com/wardenrun/warden/internal/config"
	"github.com/wardenrun/warden/internal/ctxlog"
	batchplan "github.com/wardenrun/warden/internal/plan"
)

const (
	profileFlag   = "profile"
	patternFlag   = "pattern"
	batchSizeFlag = "batch-size"
	jsonFlag      = "json"
	cliExitStr    = ""
)

// PlanCmd prints the batch plan that a run would execute, without
// spawning any runner.
var PlanCmd = &cli.Command{
	Name: "plan",
	Description: `Show the batch plan without running anything.
Work items are resolved exactly as for the run command and partitioned
into batches, then the plan is printed. Use this to preview how a suite
will be split before committing to a long run.`,
	ArgsUsage: "[work items...]",
	Flags:     planFlags(),
	Action:    actionFunc,
}

// planFlags returns a fresh flag set. Flags carry parse state, so tests
// build their own set instead of sharing PlanCmd's.
func planFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     profileFlag,
			Aliases:  []string{"f"},
			Usage:    "URL of the YAML run profile, using go-getter syntax",
			OnlyOnce: true,
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
		&cli.BoolFlag{
			Name:        jsonFlag,
			Usage:       "Print the plan as JSON",
			Value:       false,
			DefaultText: "false",
			OnlyOnce:    true,
		},
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	prof, err := buildProfile(ctx, cmd)
	if err != nil {
		logger.Error(fmt.Sprintf("Invalid configuration: %s", err.Error()))
		return cli.Exit(cliExitStr, 1)
	}

	p, err := resolvePlan(ctx, prof)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to build batch plan: %s", err.Error()))
		return cli.Exit(cliExitStr, 1)
	}

	if cmd.Bool(jsonFlag) {
		return writeJSON(cmd, p)
	}

	writeText(cmd, p, prof)

	return nil
}

// buildProfile loads the profile (if given) and overlays the plan
// command's flags. The runner is not required here, so only the batch
// partitioning inputs are validated.
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

	if cmd.IsSet(patternFlag) {
		prof.Patterns = cmd.StringSlice(patternFlag)
	}

	if cmd.IsSet(batchSizeFlag) {
		prof.BatchSize = int(cmd.Int(batchSizeFlag))
	}

	if args := cmd.Args().Slice(); len(args) > 0 {
		prof.WorkItems = args
	}

	return prof, nil
}

// resolvePlan resolves work items and partitions them, mirroring what a
// run would execute.
func resolvePlan(ctx context.Context, prof *config.Profile) (*batchplan.Plan, error) {
	var items []batchplan.WorkItem

	if len(prof.WorkItems) > 0 {
		items = make([]batchplan.WorkItem, 0, len(prof.WorkItems))
		for _, it := range prof.WorkItems {
			items = append(items, batchplan.WorkItem(it))
		}
	} else {
		var err error

		items, err = batchplan.Discover(ctx, batchplan.FsFactory(), prof.Patterns)
		if err != nil {
			return nil, err
		}
	}

	return batchplan.Partition(items, prof.BatchSize)
}

func writeText(cmd *cli.Command, p *batchplan.Plan, prof *config.Profile) {
	fmt.Fprintf(cmd.Writer, "%d work items in %d batches (batch size %d)\n\n",
		p.ItemCount(), p.Len(), prof.BatchSize)

	for _, b := range p.Batches {
		fmt.Fprintf(cmd.Writer, "%s:\n", color.Colorize(fmt.Sprintf("batch %d", b.Index+1), color.FgCyan))

		for _, it := range b.Items {
			fmt.Fprintf(cmd.Writer, "  %s\n", it)
		}

		fmt.Fprintln(cmd.Writer)
	}
}

func writeJSON(cmd *cli.Command, p *batchplan.Plan) error {
	batches := make([]any, 0, p.Len())

	for _, b := range p.Batches {
		items := make([]any, 0, len(b.Items))
		for _, it := range b.Items {
			items = append(items, string(it))
		}

		batches = append(batches, map[string]any{
			"index": b.Index,
			"items": items,
		})
	}

	f := colorjson.NewFormatter()
	f.Indent = 2

	if !color.Enabled() {
		f.DisabledColor = true
	}

	out, err := f.Marshal(map[string]any{
		"itemCount": p.ItemCount(),
		"batches":   batches,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Fprintln(cmd.Writer, string(out))

	return nil
}
