// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  string
	}{
		{EventBatchStarted, "started"},
		{EventHeartbeat, "heartbeat"},
		{EventOutputLine, "output"},
		{EventCompletionDetected, "completion-detected"},
		{EventTimedOut, "timed-out"},
		{EventBatchFinished, "finished"},
		{EventRunFinished, "run-finished"},
		{EventType(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.eventType.String())
		})
	}
}

func TestNullReporter(t *testing.T) {
	reporter := NewNullReporter()
	require.NotNil(t, reporter)

	// These should not panic
	reporter.Report(Event{
		BatchIndex: 0,
		Type:       EventBatchStarted,
		Message:    "test message",
		Timestamp:  time.Now(),
	})

	reporter.Close()
}

func TestChannelReporter_DeliversEvents(t *testing.T) {
	reporter := NewChannelReporter(context.Background(), 4)
	defer reporter.Close()

	reporter.Report(Event{Type: EventBatchStarted, BatchIndex: 1})

	select {
	case ev := <-reporter.Events():
		assert.Equal(t, EventBatchStarted, ev.Type)
		assert.Equal(t, 1, ev.BatchIndex)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestChannelReporter_DropsWhenFull(t *testing.T) {
	reporter := NewChannelReporter(context.Background(), 1)
	defer reporter.Close()

	reporter.Report(Event{Type: EventBatchStarted})
	reporter.Report(Event{Type: EventHeartbeat}) // dropped, channel full

	ev := <-reporter.Events()
	assert.Equal(t, EventBatchStarted, ev.Type)

	select {
	case ev, ok := <-reporter.Events():
		if ok {
			t.Fatalf("expected no further events, got %v", ev.Type)
		}
	default:
	}
}

func TestChannelReporter_ReportAfterCloseIsNoop(t *testing.T) {
	reporter := NewChannelReporter(context.Background(), 1)
	reporter.Close()

	// Must not panic on a closed channel.
	reporter.Report(Event{Type: EventBatchStarted})
}

type collectingListener struct {
	ch chan Event
}

func (cl *collectingListener) OnEvent(event Event) {
	cl.ch <- event
}

func TestChannelReporter_Listen(t *testing.T) {
	reporter := NewChannelReporter(context.Background(), 4)
	listener := &collectingListener{ch: make(chan Event, 4)}

	reporter.Listen(listener)
	reporter.Report(Event{Type: EventBatchFinished, Data: EventData{ExitCode: 2}})

	select {
	case ev := <-listener.ch:
		assert.Equal(t, EventBatchFinished, ev.Type)
		assert.Equal(t, 2, ev.Data.ExitCode)
	case <-time.After(time.Second):
		t.Fatal("listener did not receive event")
	}

	reporter.Close()
}

func TestPrinter(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinter(buf)

	p.OnEvent(Event{Type: EventBatchStarted, BatchIndex: 0, BatchCount: 3, Timestamp: time.Now()})
	p.OnEvent(Event{Type: EventHeartbeat, BatchIndex: 0, BatchCount: 3, Data: EventData{Elapsed: 10 * time.Second}})
	p.OnEvent(Event{Type: EventCompletionDetected, BatchIndex: 0, BatchCount: 3})
	p.OnEvent(Event{Type: EventBatchFinished, BatchIndex: 0, BatchCount: 3, Data: EventData{Elapsed: 12 * time.Second}})
	p.OnEvent(Event{Type: EventTimedOut, BatchIndex: 1, BatchCount: 3, Data: EventData{Elapsed: 8 * time.Minute}})
	p.OnEvent(Event{
		Type: EventBatchFinished, BatchIndex: 1, BatchCount: 3,
		Data: EventData{ExitCode: 124, Err: errors.New("soft timeout"), Elapsed: 8 * time.Minute},
	})
	p.OnEvent(Event{Type: EventRunFinished, Data: EventData{ExitCode: 124}})

	out := buf.String()
	assert.Contains(t, out, "batch 1/3")
	assert.Contains(t, out, "batch 2/3")
	assert.Contains(t, out, "TIMEOUT")
	assert.Contains(t, out, "exit code 124")
	assert.Contains(t, out, "run failed with exit code 124")
}
