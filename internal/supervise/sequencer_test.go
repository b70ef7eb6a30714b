// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package supervise

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wardenrun/warden/internal/plan"
	"github.com/wardenrun/warden/internal/progress"
)

func planOf(t *testing.T, batchSize int, items ...string) *plan.Plan {
	t.Helper()

	wi := make([]plan.WorkItem, 0, len(items))
	for _, it := range items {
		wi = append(wi, plan.WorkItem(it))
	}

	p, err := plan.Partition(wi, batchSize)
	require.NoError(t, err)

	return p
}

func TestSequencerRun_AllSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := newTestSupervisor(t, &Supervisor{
		Runner:     "/bin/sh",
		RunnerArgs: []string{"-c", `echo "batch: $*"`},
	})
	q := &Sequencer{Supervisor: s}

	agg := q.Run(testContext(t), planOf(t, 2, "a", "b", "c"))

	assert.True(t, agg.Success)
	assert.Equal(t, 0, agg.ExitCode)
	require.NoError(t, agg.Err)
	require.Len(t, agg.Batches, 2, "expected 2 batches for 3 items of size 2")
}

func TestSequencerRun_FailFast(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Batch 2 carries the "bad" item and exits 7; batch 3 must never run.
	s, _, _ := newTestSupervisor(t, &Supervisor{
		Runner:     "/bin/sh",
		RunnerArgs: []string{"-c", `case "$0" in bad) exit 7;; esac`},
	})
	q := &Sequencer{Supervisor: s}

	agg := q.Run(testContext(t), planOf(t, 1, "a", "bad", "c"))

	assert.False(t, agg.Success)
	assert.Equal(t, 7, agg.ExitCode)
	require.Error(t, agg.Err)
	require.Len(t, agg.Batches, 2, "third batch must not run after a failure")
	assert.Equal(t, 0, agg.Batches[0].ExitCode)
	assert.Equal(t, 7, agg.Batches[1].ExitCode)
}

func TestSequencerRun_BatchPause(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := newTestSupervisor(t, &Supervisor{
		Runner:     "/bin/sh",
		RunnerArgs: []string{"-c", "exit 0"},
	})
	q := &Sequencer{
		Supervisor: s,
		BatchPause: 150 * time.Millisecond,
	}

	start := time.Now()
	agg := q.Run(testContext(t), planOf(t, 1, "a", "b", "c"))

	assert.True(t, agg.Success)
	// Two pauses between three batches.
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestSequencerRun_ReportsRunFinished(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := testContext(t)
	rep := progress.NewChannelReporter(ctx, 16)
	s, _, _ := newTestSupervisor(t, &Supervisor{
		Runner:     "/bin/sh",
		RunnerArgs: []string{"-c", "exit 0"},
		Reporter:   rep,
	})
	q := &Sequencer{Supervisor: s}

	agg := q.Run(ctx, planOf(t, 2, "a", "b"))
	rep.Close()

	require.True(t, agg.Success)

	var types []progress.EventType
	for ev := range rep.Events() {
		types = append(types, ev.Type)
	}

	assert.Contains(t, types, progress.EventBatchStarted)
	assert.Contains(t, types, progress.EventBatchFinished)
	assert.Equal(t, progress.EventRunFinished, types[len(types)-1], "run-finished must be the last event")
}
