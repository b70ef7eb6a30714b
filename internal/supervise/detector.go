// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package supervise

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
)

// ErrBadSummaryPattern is returned when a configured summary pattern does not compile.
var ErrBadSummaryPattern = errors.New("invalid summary pattern")

// Detector decides whether accumulated runner output shows that the
// useful work has finished, even if the process has not yet exited.
type Detector interface {
	Detect(output []byte) bool
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(output []byte) bool

// Detect implements Detector.
func (f DetectorFunc) Detect(output []byte) bool {
	return f(output)
}

// defaultSummaryPattern matches the runner's final summary line, which
// carries both a file-count token and a pass/fail token, e.g.
//
//	Test Files  12 passed (12)
//	Test Files  2 failed | 10 passed (12)
var defaultSummaryPattern = regexp.MustCompile(`(?m)^.*Test Files\s+\d+\s+(passed|failed).*$`)

// MarkerDetector matches configured marker substrings and a summary
// line pattern against the accumulated output buffer.
// Matching the summary line rather than a specific last-test name keeps
// detection stable when the test set changes.
type MarkerDetector struct {
	markers [][]byte
	summary *regexp.Regexp
}

// NewMarkerDetector creates a MarkerDetector from marker substrings and
// an optional summary pattern. An empty pattern selects the built-in
// summary line pattern.
func NewMarkerDetector(markers []string, summaryPattern string) (*MarkerDetector, error) {
	d := &MarkerDetector{
		markers: make([][]byte, 0, len(markers)),
		summary: defaultSummaryPattern,
	}

	for _, m := range markers {
		if m == "" {
			continue
		}

		d.markers = append(d.markers, []byte(m))
	}

	if summaryPattern != "" {
		re, err := regexp.Compile(summaryPattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadSummaryPattern, err)
		}

		d.summary = re
	}

	return d, nil
}

// Detect implements Detector.
func (d *MarkerDetector) Detect(output []byte) bool {
	for _, m := range d.markers {
		if bytes.Contains(output, m) {
			return true
		}
	}

	return d.summary.Match(output)
}
