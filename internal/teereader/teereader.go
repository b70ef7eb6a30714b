// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package teereader

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// LastLineTeeReader wraps an io.Reader and captures the complete output
// while tracking the last complete line.
// It is safe for concurrent use.
type LastLineTeeReader struct {
	reader         io.Reader
	fullBuffer     *bytes.Buffer
	lastLine       string
	partialBuilder strings.Builder // buffer for incomplete lines
	mu             sync.RWMutex
}

// NewLastLineTeeReader creates a new LastLineTeeReader that wraps the given reader.
func NewLastLineTeeReader(r io.Reader) *LastLineTeeReader {
	return &LastLineTeeReader{
		reader:     r,
		fullBuffer: &bytes.Buffer{},
	}
}

// Read implements io.Reader. It reads from the underlying reader and updates
// both the full buffer and the last line tracking.
func (lt *LastLineTeeReader) Read(p []byte) (n int, err error) {
	n, err = lt.reader.Read(p)
	if n > 0 {
		lt.mu.Lock()
		defer lt.mu.Unlock()

		lt.fullBuffer.Write(p[:n])
		lt.processNewData(string(p[:n]))
	}

	return n, err //nolint:wrapcheck
}

// processNewData updates the last line based on new data.
// Must be called with the write lock held.
func (lt *LastLineTeeReader) processNewData(data string) {
	lt.partialBuilder.WriteString(data)
	combined := lt.partialBuilder.String()

	lines := strings.Split(combined, "\n")
	if len(lines) == 1 {
		// No newline yet, the partial line stays in the builder.
		return
	}

	// The last element is either empty (data ended with \n) or a partial line.
	lt.lastLine = lines[len(lines)-2]
	lt.partialBuilder.Reset()

	if data[len(data)-1] != '\n' {
		lt.partialBuilder.WriteString(lines[len(lines)-1])
	}
}

// LastLine returns the last complete line that was read.
// Returns an empty string if no complete lines have been read yet.
// If maxLength > 0, the line is truncated to that length with a "..." suffix.
func (lt *LastLineTeeReader) LastLine(maxLength int) string {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	result := lt.lastLine
	if maxLength > 0 && len(result) > maxLength {
		result = result[:maxLength-3] + "..."
	}

	return result
}

// Bytes returns the data that has been read so far.
// The returned slice is only valid until the next Read.
func (lt *LastLineTeeReader) Bytes() []byte {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	return lt.fullBuffer.Bytes()
}

// Len returns the number of bytes captured so far.
func (lt *LastLineTeeReader) Len() int {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	return lt.fullBuffer.Len()
}

// PartialLine returns the current partial line (data after the last newline).
func (lt *LastLineTeeReader) PartialLine() string {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	return lt.partialBuilder.String()
}

// Reset clears all internal buffers. The underlying reader is not affected.
func (lt *LastLineTeeReader) Reset() {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	lt.fullBuffer.Reset()
	lt.lastLine = ""
	lt.partialBuilder.Reset()
}
