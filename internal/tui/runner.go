// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wardenrun/warden/internal/progress"
	"github.com/wardenrun/warden/internal/supervise"
)

// RunFunc executes the batch plan, emitting progress to the reporter.
type RunFunc func(ctx context.Context, reporter progress.Reporter) supervise.AggregateResult

// Runner manages the TUI application and progress event integration.
type Runner struct {
	model    *Model
	program  *tea.Program
	reporter *TUIReporter
	mutex    sync.Mutex
}

// TUIReporter implements progress.Reporter and forwards events to the TUI.
type TUIReporter struct {
	program *tea.Program
	closed  bool
	mutex   sync.RWMutex
}

// NewTUIReporter creates a new TUI progress reporter.
func NewTUIReporter(program *tea.Program) *TUIReporter {
	return &TUIReporter{
		program: program,
	}
}

// Report implements progress.Reporter.
func (tr *TUIReporter) Report(event progress.Event) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	if tr.closed || tr.program == nil {
		return
	}

	tr.program.Send(EventMsg{Event: event})
}

// Close implements progress.Reporter.
func (tr *TUIReporter) Close() {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	tr.closed = true
}

// NewRunner creates a new TUI runner for a plan of batchCount batches.
func NewRunner(batchCount int) *Runner {
	model := NewModel(batchCount)
	program := tea.NewProgram(model, tea.WithAltScreen())
	reporter := NewTUIReporter(program)

	return &Runner{
		model:    model,
		program:  program,
		reporter: reporter,
	}
}

// Reporter returns the progress reporter for this TUI runner.
func (r *Runner) Reporter() progress.Reporter {
	return r.reporter
}

// Run starts the TUI and executes the plan with progress reporting.
// The TUI stays on screen after completion until the user quits.
func (r *Runner) Run(ctx context.Context, fn RunFunc) (supervise.AggregateResult, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	resultChan := make(chan supervise.AggregateResult, 1)

	go func() {
		defer close(resultChan)
		resultChan <- fn(ctx, r.reporter)
	}()

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	var (
		result supervise.AggregateResult
		tuiErr error
	)

	select {
	case result = <-resultChan:
		// Plan finished; show the summary until the user quits.
		r.program.Send(RunCompletedMsg{ExitCode: result.ExitCode, Err: result.Err})

		tuiErr = <-tuiDone

		r.reporter.Close()

	case tuiErr = <-tuiDone:
		// User quit (or the TUI errored) while batches were running.
		r.reporter.Close()

		select {
		case result = <-resultChan:
		case <-ctx.Done():
			result = supervise.AggregateResult{
				Success:  false,
				ExitCode: 1,
				Err:      ctx.Err(),
			}
		}

	case <-ctx.Done():
		r.reporter.Close()
		r.program.Quit()

		select {
		case result = <-resultChan:
		default:
			result = supervise.AggregateResult{
				Success:  false,
				ExitCode: 1,
				Err:      ctx.Err(),
			}
		}

		<-tuiDone
	}

	return result, tuiErr
}
