// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/goccy/go-yaml"
)

var (
	// ErrInvalidProfile is returned when the profile fails validation.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrYamlUnmarshal is returned when the profile YAML cannot be parsed.
	ErrYamlUnmarshal = errors.New("failed to unmarshal YAML")
	// ErrRunnerNotFound is returned when the runner executable cannot be resolved.
	ErrRunnerNotFound = errors.New("runner executable not found")
)

// Defaults for a run profile.
const (
	DefaultBatchSize   = 10
	DefaultSoftTimeout = 8 * time.Minute
	DefaultHardTimeout = 15 * time.Minute
	DefaultGraceWindow = 5 * time.Second
	DefaultBatchPause  = 2 * time.Second
)

// OutputMode selects how the runner's output is handled.
type OutputMode string

const (
	// OutputCaptured pipes the runner's output through the supervisor,
	// which scans it for completion markers.
	OutputCaptured OutputMode = "captured"
	// OutputInherited connects the runner directly to the supervisor's
	// stdout/stderr. No completion detection is possible in this mode.
	OutputInherited OutputMode = "inherited"
)

// Duration wraps time.Duration so profiles can use "8m" style values.
type Duration time.Duration

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (d *Duration) UnmarshalYAML(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("failed to parse duration %q: %w", string(b), err)
	}

	*d = Duration(v)

	return nil
}

// MarshalYAML implements yaml.BytesMarshaler.
func (d Duration) MarshalYAML() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the profile duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Profile is the full configuration for a supervised run.
type Profile struct {
	// Runner is the collaborator executable that runs one test batch.
	// It receives the batch's work items as arguments.
	Runner string `yaml:"runner"`
	// RunnerArgs are fixed arguments inserted before the work items.
	RunnerArgs []string `yaml:"runner_args,omitempty"`
	// WorkItems is an explicit, ordered work item list.
	WorkItems []string `yaml:"work_items,omitempty"`
	// Patterns are glob patterns used to discover work items when
	// WorkItems is empty.
	Patterns []string `yaml:"patterns,omitempty"`
	// BatchSize is the maximum number of work items per batch.
	BatchSize int `yaml:"batch_size"`
	// SoftTimeout is the per-batch deadline. On expiry the runner is
	// force-killed and the batch is recorded as timed out.
	SoftTimeout Duration `yaml:"soft_timeout"`
	// HardTimeout is the absolute safety net, measured from batch spawn.
	// On expiry the whole supervisor exits non-zero.
	HardTimeout Duration `yaml:"hard_timeout"`
	// GraceWindow is how long to wait for a natural exit after a
	// completion marker is seen before force-killing.
	GraceWindow Duration `yaml:"grace_window"`
	// BatchPause is the pause between batches, allowing the OS to
	// release file handles and sockets before the next spawn.
	BatchPause Duration `yaml:"batch_pause"`
	// CompletionMarkers are substrings in runner output that indicate
	// the useful work has finished even if the process has not exited.
	CompletionMarkers []string `yaml:"completion_markers,omitempty"`
	// SummaryPattern is a regular expression matched against output
	// lines as an additional completion signal. When empty, a built-in
	// summary pattern is used.
	SummaryPattern string `yaml:"summary_pattern,omitempty"`
	// OutputMode selects captured or inherited output handling.
	OutputMode OutputMode `yaml:"output_mode"`
	// SweepPattern, when set, is matched against stray process command
	// lines after a force-kill so orphaned runner workers are reaped.
	SweepPattern string `yaml:"sweep_pattern,omitempty"`
	// MaxMemoryMB elevates the runner's memory ceiling via its
	// environment. Zero leaves the ambient value untouched.
	MaxMemoryMB int `yaml:"max_memory_mb,omitempty"`
	// Env holds extra environment overrides for the runner.
	Env map[string]string `yaml:"env,omitempty"`
}

// Default returns a profile populated with default values.
func Default() *Profile {
	return &Profile{
		BatchSize:   DefaultBatchSize,
		SoftTimeout: Duration(DefaultSoftTimeout),
		HardTimeout: Duration(DefaultHardTimeout),
		GraceWindow: Duration(DefaultGraceWindow),
		BatchPause:  Duration(DefaultBatchPause),
		OutputMode:  OutputCaptured,
	}
}

// Parse unmarshals a YAML profile on top of the defaults.
func Parse(data []byte) (*Profile, error) {
	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, errors.Join(ErrYamlUnmarshal, err)
	}

	return p, nil
}

// Validate checks the profile for configuration errors. It is called
// before any subprocess is spawned so that invalid configuration never
// has partial side effects.
func (p *Profile) Validate() error {
	if p.Runner == "" {
		return fmt.Errorf("%w: runner must be set", ErrInvalidProfile)
	}

	if _, err := exec.LookPath(p.Runner); err != nil {
		return errors.Join(ErrRunnerNotFound, err)
	}

	if p.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be at least 1, got %d", ErrInvalidProfile, p.BatchSize)
	}

	if p.SoftTimeout <= 0 || p.HardTimeout <= 0 || p.GraceWindow <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidProfile)
	}

	if p.GraceWindow >= p.SoftTimeout {
		return fmt.Errorf("%w: grace_window (%s) must be shorter than soft_timeout (%s)",
			ErrInvalidProfile, p.GraceWindow.Std(), p.SoftTimeout.Std())
	}

	if p.SoftTimeout > p.HardTimeout {
		return fmt.Errorf("%w: soft_timeout (%s) must not exceed hard_timeout (%s)",
			ErrInvalidProfile, p.SoftTimeout.Std(), p.HardTimeout.Std())
	}

	if p.BatchPause < 0 {
		return fmt.Errorf("%w: batch_pause must not be negative", ErrInvalidProfile)
	}

	switch p.OutputMode {
	case OutputCaptured, OutputInherited:
	default:
		return fmt.Errorf("%w: unknown output_mode %q", ErrInvalidProfile, p.OutputMode)
	}

	if p.OutputMode == OutputInherited && len(p.CompletionMarkers) > 0 {
		return fmt.Errorf("%w: completion_markers require output_mode: captured", ErrInvalidProfile)
	}

	return nil
}
