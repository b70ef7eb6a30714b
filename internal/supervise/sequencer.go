// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package supervise

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/wardenrun/warden/internal/ctxlog"
	"github.com/wardenrun/warden/internal/plan"
	"github.com/wardenrun/warden/internal/progress"
)

// Sequencer runs a plan's batches strictly one at a time, failing fast
// on the first batch that does not succeed.
type Sequencer struct {
	// Supervisor executes individual batches.
	Supervisor *Supervisor
	// BatchPause is the settle delay between consecutive batches.
	BatchPause time.Duration
}

// Run executes every batch in the plan in order. The first
// unsuccessful batch stops the run; its exit code becomes the run's
// exit code. Results for batches that never ran are not fabricated.
func (q *Sequencer) Run(ctx context.Context, p *plan.Plan) AggregateResult {
	logger := ctxlog.Logger(ctx)
	total := p.Len()

	agg := AggregateResult{
		Batches: make([]ExecutionResult, 0, total),
		Success: true,
	}

	for i, b := range p.Batches {
		if i > 0 && q.BatchPause > 0 {
			logger.Debug("pausing before next batch", "pause", q.BatchPause)

			select {
			case <-time.After(q.BatchPause):
			case <-ctx.Done():
				agg.Success = false
				agg.ExitCode = normalizeExitCode(-1)
				agg.Err = multierror.Append(agg.Err, fmt.Errorf("%w: %w", ErrRunAborted, ctx.Err()))

				q.reportRunFinished(total, agg)

				return agg
			}
		}

		res := q.Supervisor.RunBatch(ctx, b, total)
		agg.Batches = append(agg.Batches, res)

		if !res.Success() {
			logger.Info("batch failed, stopping run",
				"batch", b.Index+1, "batches", total, "exitCode", res.ExitCode)

			agg.Success = false
			agg.ExitCode = normalizeExitCode(res.ExitCode)

			if res.Err != nil {
				agg.Err = multierror.Append(agg.Err, fmt.Errorf("batch %d: %w", b.Index+1, res.Err))
			} else {
				agg.Err = multierror.Append(agg.Err, fmt.Errorf("batch %d: runner exited with code %d", b.Index+1, res.ExitCode))
			}

			q.reportRunFinished(total, agg)

			return agg
		}

		logger.Info("batch succeeded", "batch", b.Index+1, "batches", total, "duration", res.Duration.Round(time.Millisecond))
	}

	q.reportRunFinished(total, agg)

	return agg
}

func (q *Sequencer) reportRunFinished(total int, agg AggregateResult) {
	if q.Supervisor.Reporter == nil {
		return
	}

	q.Supervisor.Reporter.Report(progress.Event{
		BatchCount: total,
		Type:       progress.EventRunFinished,
		Timestamp:  time.Now(),
		Data: progress.EventData{
			ExitCode: agg.ExitCode,
			Err:      agg.Err,
		},
	})
}
