// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrettyHandler(t *testing.T) {
	tests := []struct {
		name    string
		options *slog.HandlerOptions
		opts    []Option
	}{
		{
			name:    "with nil options",
			options: nil,
		},
		{
			name: "with custom options",
			options: &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			},
		},
		{
			name:    "with functional options",
			options: &slog.HandlerOptions{},
			opts: []Option{
				WithColour(),
				WithOutputEmptyAttrs(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewPrettyHandler(tt.options, tt.opts...)
			require.NotNil(t, handler)
			assert.NotNil(t, handler.h)
			assert.NotNil(t, handler.b)
			assert.NotNil(t, handler.m)
		})
	}
}

func TestPrettyHandlerHandle(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := NewPrettyHandler(&slog.HandlerOptions{Level: slog.LevelDebug},
		WithDestinationWriter(buf),
	)
	logger := slog.New(handler)

	logger.Info("supervisor started", "batches", 3)

	out := buf.String()
	assert.Contains(t, out, "supervisor started")
	assert.Contains(t, out, "batches")
}

func TestPrettyHandlerLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := NewPrettyHandler(&slog.HandlerOptions{Level: slog.LevelError},
		WithDestinationWriter(buf),
	)

	assert.False(t, handler.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelError))
}

func TestPrettyHandlerWithAttrsAndGroup(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := NewPrettyHandler(&slog.HandlerOptions{Level: slog.LevelDebug},
		WithDestinationWriter(buf),
	)

	withAttrs := handler.WithAttrs([]slog.Attr{slog.String("batch", "1")})
	require.NotNil(t, withAttrs)

	withGroup := handler.WithGroup("run")
	require.NotNil(t, withGroup)

	logger := slog.New(withAttrs)
	logger.Info("hello")
	assert.Contains(t, buf.String(), "batch")
}
