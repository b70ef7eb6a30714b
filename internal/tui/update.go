// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wardenrun/warden/internal/progress"
)

const (
	durationRounding = 100 * time.Millisecond
	minRowWidth      = 40
	ellipsis         = "..."
)

// EventMsg wraps a progress event for the tea framework.
type EventMsg struct {
	Event progress.Event
}

// RunCompletedMsg indicates that the whole run has finished.
type RunCompletedMsg struct {
	ExitCode int
	Err      error
}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		m.spinner.Tick,
	)
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mutex.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.mutex.Unlock()

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case EventMsg:
		return m, m.processEvent(msg.Event)

	case RunCompletedMsg:
		m.mutex.Lock()
		m.completed = true
		m.exitCode = msg.ExitCode
		m.runErr = msg.Err
		m.mutex.Unlock()

		return m, nil

	case tea.QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// handleKeyPress processes keyboard input.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var b strings.Builder

	b.WriteString(m.styles.Title.Render("warden batch runner"))
	b.WriteString("\n")

	for _, r := range m.rows {
		m.renderRow(&b, r)
	}

	if m.completed {
		b.WriteString("\n")

		if m.exitCode == 0 && m.runErr == nil {
			b.WriteString(m.styles.Success.Render("✅ all batches passed"))
		} else {
			b.WriteString(m.styles.Failed.Render(fmt.Sprintf("❌ run failed with exit code %d", m.exitCode)))
		}

		b.WriteString("\n")
	}

	helpText := "'q' to quit"
	if m.completed {
		helpText = "'q' to quit and return to terminal"
	}

	b.WriteString(m.styles.Help.Render(helpText))
	b.WriteString("\n")

	return b.String()
}

// renderRow renders a single batch row with status, timing and the
// last output line.
func (m *Model) renderRow(b *strings.Builder, r *batchRow) {
	var icon, name string

	label := fmt.Sprintf("batch %d/%d", r.Index+1, m.batchCount)

	switch r.Status {
	case StatusPending:
		icon = "⏳"
		name = m.styles.Pending.Render(label)
	case StatusRunning:
		icon = m.spinner.View()
		name = m.styles.Running.Render(label)
	case StatusDetected:
		icon = "🏁"
		name = m.styles.Running.Render(label)
	case StatusSuccess:
		icon = "✅"
		name = m.styles.Success.Render(label)
	case StatusFailed:
		icon = "❌"
		name = m.styles.Failed.Render(label)
	case StatusTimedOut:
		icon = "⏰"
		name = m.styles.Failed.Render(label)
	default:
		icon = "❓"
		name = m.styles.Pending.Render(label)
	}

	left := fmt.Sprintf("%s %s", icon, name)

	if r.StartTime != nil {
		elapsed := time.Since(*r.StartTime)
		if r.EndTime != nil {
			elapsed = r.EndTime.Sub(*r.StartTime)
		}

		left += m.styles.Duration.Render(fmt.Sprintf(" (%v)", elapsed.Round(durationRounding)))
	}

	var right string

	switch {
	case r.ErrMsg != "" && (r.Status == StatusFailed || r.Status == StatusTimedOut):
		right = m.styles.Failed.Render(r.ErrMsg)
	case r.LastOutput != "" && (r.Status == StatusRunning || r.Status == StatusDetected):
		right = m.styles.Output.Render(r.LastOutput)
	}

	width := m.width
	if width < minRowWidth {
		width = minRowWidth
	}

	line := left
	if right != "" {
		line += "  " + right
	}

	if len(line) > width && width > len(ellipsis) {
		line = line[:width-len(ellipsis)] + ellipsis
	}

	b.WriteString(line)
	b.WriteString("\n")
}
