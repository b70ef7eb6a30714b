// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/wardenrun/warden/internal/color"
)

// Printer is a Listener that writes human-readable progress lines.
// One line per lifecycle event: batch N/M started, still running,
// completion detected, finished with timing.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// OnEvent implements Listener.
func (p *Printer) OnEvent(event Event) {
	batch := fmt.Sprintf("batch %d/%d", event.BatchIndex+1, event.BatchCount)

	switch event.Type {
	case EventBatchStarted:
		fmt.Fprintf(p.w, "Starting %s at %s\n", batch, event.Timestamp.Format("15:04:05"))
	case EventHeartbeat:
		fmt.Fprintf(p.w, "Running %s [%s]...\n", batch, event.Data.Elapsed.Round(time.Second))
	case EventOutputLine:
		if event.Data.OutputLine != "" {
			fmt.Fprintf(p.w, "  %s\n", event.Data.OutputLine)
		}
	case EventCompletionDetected:
		fmt.Fprintf(p.w, "%s %s: completion marker seen, waiting for natural exit\n",
			color.Colorize("Detected", color.FgCyan), batch)
	case EventTimedOut:
		fmt.Fprintf(p.w, "%s %s after %s\n",
			color.Colorize("TIMEOUT", color.FgRed, color.Bold), batch, event.Data.Elapsed.Round(time.Second))
	case EventBatchFinished:
		p.printFinished(batch, event)
	case EventRunFinished:
		if event.Data.ExitCode == 0 {
			fmt.Fprintf(p.w, "%s all batches passed\n", color.Colorize("OK", color.FgGreen, color.Bold))
			return
		}

		fmt.Fprintf(p.w, "%s run failed with exit code %d\n",
			color.Colorize("FAILED", color.FgRed, color.Bold), event.Data.ExitCode)
	}
}

func (p *Printer) printFinished(batch string, event Event) {
	elapsed := event.Data.Elapsed.Round(time.Millisecond)

	if event.Data.ExitCode == 0 && event.Data.Err == nil {
		status := color.Colorize("ok", color.FgGreen)
		if event.Data.ForcedKill {
			status = color.Colorize("ok (forced exit)", color.FgGreen)
		}

		fmt.Fprintf(p.w, "Finished %s: %s in %s\n", batch, status, elapsed)

		return
	}

	fmt.Fprintf(p.w, "Finished %s: %s exit code %d in %s\n",
		batch, color.Colorize("failed", color.FgRed), event.Data.ExitCode, elapsed)

	if event.Data.Err != nil {
		fmt.Fprintf(p.w, "  error: %s\n", event.Data.Err)
	}
}
