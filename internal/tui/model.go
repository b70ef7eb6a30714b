// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wardenrun/warden/internal/progress"
)

// BatchStatus represents the current state of a batch row in the TUI.
type BatchStatus int

const (
	StatusPending BatchStatus = iota
	StatusRunning
	StatusDetected
	StatusSuccess
	StatusFailed
	StatusTimedOut
)

// String returns a string representation of the batch status.
func (s BatchStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusDetected:
		return "detected"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// batchRow holds the display state for one batch.
type batchRow struct {
	Index      int
	Status     BatchStatus
	StartTime  *time.Time
	EndTime    *time.Time
	LastOutput string
	ExitCode   int
	ErrMsg     string
}

// Model represents the TUI application state.
type Model struct {
	rows       []*batchRow
	batchCount int
	spinner    spinner.Model
	width      int
	height     int
	quitting   bool
	completed  bool
	exitCode   int
	runErr     error
	mutex      sync.RWMutex
	styles     *Styles
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title    lipgloss.Style
	Pending  lipgloss.Style
	Running  lipgloss.Style
	Success  lipgloss.Style
	Failed   lipgloss.Style
	Output   lipgloss.Style
	Help     lipgloss.Style
	Duration lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1),
		Pending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Output: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			MarginTop(1),
		Duration: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
	}
}

// NewModel creates a new TUI model for a plan of batchCount batches.
func NewModel(batchCount int) *Model {
	rows := make([]*batchRow, batchCount)
	for i := range rows {
		rows[i] = &batchRow{Index: i, Status: StatusPending}
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return &Model{
		rows:       rows,
		batchCount: batchCount,
		spinner:    sp,
		styles:     NewStyles(),
	}
}

// row returns the display row for a batch index, growing the row list
// if an event arrives for a batch beyond the announced count.
func (m *Model) row(index int) *batchRow {
	for index >= len(m.rows) {
		m.rows = append(m.rows, &batchRow{Index: len(m.rows), Status: StatusPending})
	}

	return m.rows[index]
}

// processEvent folds one progress event into the row state.
func (m *Model) processEvent(event progress.Event) tea.Cmd {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if event.BatchCount > m.batchCount {
		m.batchCount = event.BatchCount
	}

	switch event.Type {
	case progress.EventBatchStarted:
		r := m.row(event.BatchIndex)
		r.Status = StatusRunning
		now := event.Timestamp
		r.StartTime = &now

	case progress.EventOutputLine:
		m.row(event.BatchIndex).LastOutput = event.Data.OutputLine

	case progress.EventCompletionDetected:
		r := m.row(event.BatchIndex)
		if r.Status == StatusRunning {
			r.Status = StatusDetected
		}

	case progress.EventTimedOut:
		m.row(event.BatchIndex).Status = StatusTimedOut

	case progress.EventBatchFinished:
		r := m.row(event.BatchIndex)
		now := event.Timestamp
		r.EndTime = &now
		r.ExitCode = event.Data.ExitCode

		if r.Status != StatusTimedOut {
			if event.Data.ExitCode == 0 && event.Data.Err == nil {
				r.Status = StatusSuccess
			} else {
				r.Status = StatusFailed
			}
		}

		if event.Data.Err != nil {
			r.ErrMsg = event.Data.Err.Error()
		}

	case progress.EventRunFinished:
		m.completed = true
		m.exitCode = event.Data.ExitCode
		m.runErr = event.Data.Err

	case progress.EventHeartbeat:
		// Elapsed time is derived from StartTime at render.
	}

	return nil
}
