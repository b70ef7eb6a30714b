// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// Event represents a real-time update from a supervised batch.
// Events are emitted throughout the batch lifecycle to provide feedback
// for the text printer and the TUI.
type Event struct {
	BatchIndex int       // Zero-based index of the batch this event concerns
	BatchCount int       // Total number of batches in the plan
	Type       EventType // What happened
	Message    string    // Human-readable status message
	Timestamp  time.Time // When the event occurred
	Data       EventData // Type-specific data
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventBatchStarted indicates a batch's runner process has been spawned.
	EventBatchStarted EventType = iota
	// EventHeartbeat indicates the batch is still running.
	EventHeartbeat
	// EventOutputLine indicates new runner output is available.
	EventOutputLine
	// EventCompletionDetected indicates a completion marker was seen in output.
	EventCompletionDetected
	// EventTimedOut indicates the batch hit its soft timeout.
	EventTimedOut
	// EventBatchFinished indicates the batch result has been finalized.
	EventBatchFinished
	// EventRunFinished indicates the whole plan has finished.
	EventRunFinished
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventBatchStarted:
		return "started"
	case EventHeartbeat:
		return "heartbeat"
	case EventOutputLine:
		return "output"
	case EventCompletionDetected:
		return "completion-detected"
	case EventTimedOut:
		return "timed-out"
	case EventBatchFinished:
		return "finished"
	case EventRunFinished:
		return "run-finished"
	default:
		return "unknown"
	}
}

// EventData contains type-specific information for progress events.
type EventData struct {
	// For EventOutputLine
	OutputLine string // The most recent complete output line

	// For EventBatchFinished and EventRunFinished
	ExitCode   int   // Exit code
	Err        error // Error if the batch failed
	ForcedKill bool  // True if the runner was force-killed

	// For EventHeartbeat and EventBatchFinished
	Elapsed time.Duration // Time since the batch was spawned
}

// Reporter is the interface for sending progress events.
// Implementations should be non-blocking and tolerate a receiver that
// is not listening.
type Reporter interface {
	// Report sends a progress event.
	Report(event Event)
	// Close signals that no more events will be sent and cleans up resources.
	Close()
}

// Listener receives progress events. The TUI and the text printer
// implement this interface.
type Listener interface {
	// OnEvent is called when a progress event is received.
	// Implementations should handle events quickly to avoid blocking
	// the reporting goroutine.
	OnEvent(event Event)
}

// NullReporter is a no-op implementation of Reporter.
type NullReporter struct{}

// Report implements Reporter.Report by doing nothing.
func (nr *NullReporter) Report(_ Event) {}

// Close implements Reporter.Close by doing nothing.
func (nr *NullReporter) Close() {}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return &NullReporter{}
}
