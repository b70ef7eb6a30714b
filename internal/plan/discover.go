// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package plan

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/afero"
)

// ErrNoMatches is returned when no pattern resolves to any work item.
var ErrNoMatches = errors.New("no work items matched the given patterns")

// FsFactory returns the filesystem used for work item discovery.
// Tests replace this with an in-memory filesystem.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// Discover resolves glob patterns to work items on the given filesystem.
// Results are deduplicated and sorted so the computed plan is
// deterministic across runs.
func Discover(ctx context.Context, fsys afero.Fs, patterns []string) ([]WorkItem, error) {
	var items []WorkItem

	for _, pattern := range patterns {
		select {
		case <-ctx.Done():
			return nil, ctx.Err() //nolint:wrapcheck
		default:
		}

		matches, err := afero.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to list work items with pattern %s: %w", pattern, err)
		}

		for _, m := range matches {
			items = append(items, WorkItem(m))
		}
	}

	slices.Sort(items)
	items = slices.Compact(items)

	if len(items) == 0 {
		return nil, ErrNoMatches
	}

	return items, nil
}
