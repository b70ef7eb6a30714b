// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package supervise

import (
	"time"
)

// Distinguished exit codes used by the supervisor.
const (
	// ExitTimeout is the conventional Unix timeout exit code. It is
	// used both for a batch that hit its soft timeout and for the
	// supervisor's own exit when the hard absolute timeout fires.
	ExitTimeout = 124
)

// State is the lifecycle state of a supervised process.
type State int

const (
	// StateSpawning means the runner process is being started.
	StateSpawning State = iota
	// StateRunning means the runner process is alive and monitored.
	StateRunning
	// StateCompletionDetected means a completion marker was seen in
	// output while the process had not yet exited.
	StateCompletionDetected
	// StateTerminating means a force-kill has been issued.
	StateTerminating
	// StateExited means the process is confirmed dead and its exit
	// status recorded.
	StateExited
)

// String implements the Stringer interface for State.
func (s State) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateRunning:
		return "running"
	case StateCompletionDetected:
		return "completion-detected"
	case StateTerminating:
		return "terminating"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// ExecutionResult is the authoritative per-batch outcome.
type ExecutionResult struct {
	BatchIndex     int           // Zero-based index of the batch in the plan
	ExitCode       int           // Recorded exit code (0 if killed after a valid completion signal)
	Duration       time.Duration // Wall time from spawn to confirmed death
	TimedOut       bool          // True if the soft timeout expired
	ForcedKill     bool          // True if the runner was force-killed
	CompletionSeen bool          // True if a completion marker was observed in output
	Output         []byte        // Combined stdout/stderr in captured mode
	Err            error         // Error, if any
}

// Success reports whether the batch counts as passed: exit code zero,
// no timeout and no supervisor-level error.
func (r ExecutionResult) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut && r.Err == nil
}

// AggregateResult is the process-wide outcome of a run.
// Success is true iff every batch succeeded.
type AggregateResult struct {
	Batches  []ExecutionResult
	Success  bool
	ExitCode int
	Err      error
}

// normalizeExitCode maps internal failure markers to a valid process
// exit code. A -1 (spawn failure or killed-by-signal wait status)
// becomes 1 so the supervisor never exits 0 or negative on failure.
func normalizeExitCode(code int) int {
	if code < 0 || code > 255 {
		return 1
	}

	return code
}
