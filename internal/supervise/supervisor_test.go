// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package supervise

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wardenrun/warden/internal/ctxlog"
	"github.com/wardenrun/warden/internal/plan"
	"github.com/wardenrun/warden/internal/signalbroker"
)

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	ctxlog.LevelVar.Set(slog.LevelDebug)

	return ctx
}

// newTestSupervisor wires a supervisor with injected signal and exit
// hooks so no test ever touches process-wide signal handling or exits
// the test binary.
func newTestSupervisor(t *testing.T, s *Supervisor) (*Supervisor, chan os.Signal, *[]int) {
	t.Helper()

	sigCh := make(chan os.Signal, 1)
	exitCodes := &[]int{}

	s.sigCh = sigCh
	s.exit = func(code int) { *exitCodes = append(*exitCodes, code) }
	s.sweep = func(context.Context, string) {}

	if s.SoftTimeout == 0 {
		s.SoftTimeout = 20 * time.Second
	}

	if s.HardTimeout == 0 {
		s.HardTimeout = 25 * time.Second
	}

	if s.GraceWindow == 0 {
		s.GraceWindow = time.Second
	}

	return s, sigCh, exitCodes
}

func batchOf(items ...string) plan.Batch {
	wi := make([]plan.WorkItem, 0, len(items))
	for _, it := range items {
		wi = append(wi, plan.WorkItem(it))
	}

	return plan.Batch{Index: 0, Items: wi}
}

func TestRunBatch_Success(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := newTestSupervisor(t, &Supervisor{
		Runner:     "/bin/sh",
		RunnerArgs: []string{"-c", `echo "ran: $0 $1"`},
	})

	res := s.RunBatch(testContext(t), batchOf("spec_a", "spec_b"), 1)

	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.ExitCode, "expected exit code 0")
	assert.True(t, res.Success())
	assert.False(t, res.TimedOut)
	assert.False(t, res.ForcedKill)
	assert.Contains(t, string(res.Output), "ran: spec_a spec_b")
}

func TestRunBatch_NonZeroExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := newTestSupervisor(t, &Supervisor{
		Runner:     "/bin/sh",
		RunnerArgs: []string{"-c", "echo failing; exit 3"},
	})

	res := s.RunBatch(testContext(t), batchOf("spec_a"), 1)

	assert.Equal(t, 3, res.ExitCode, "expected exit code 3")
	assert.False(t, res.Success())
	assert.False(t, res.TimedOut)
}

func TestRunBatch_RunnerNotFound(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := newTestSupervisor(t, &Supervisor{
		Runner: "/not/a/real/runner",
	})

	res := s.RunBatch(testContext(t), batchOf("spec_a"), 1)

	assert.Equal(t, -1, res.ExitCode)
	require.ErrorIs(t, res.Err, ErrCouldNotStartProcess)
}

func TestRunBatch_SoftTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	swept := false
	s, _, _ := newTestSupervisor(t, &Supervisor{
		Runner:       "/bin/sh",
		RunnerArgs:   []string{"-c", "sleep 30"},
		SoftTimeout:  200 * time.Millisecond,
		SweepPattern: "warden-test-runner",
	})
	s.sweep = func(_ context.Context, pattern string) {
		swept = true

		assert.Equal(t, "warden-test-runner", pattern)
	}

	start := time.Now()
	res := s.RunBatch(testContext(t), batchOf("spec_a"), 1)

	assert.Equal(t, ExitTimeout, res.ExitCode, "expected exit code 124")
	assert.True(t, res.TimedOut)
	assert.True(t, res.ForcedKill)
	assert.False(t, res.Success())
	require.ErrorIs(t, res.Err, ErrSoftTimeout)
	assert.True(t, swept, "expected stray sweep after force-kill")
	assert.Less(t, time.Since(start), 10*time.Second, "kill should not wait for the runner's sleep")
}

func TestRunBatch_GraceKillAfterCompletion(t *testing.T) {
	defer goleak.VerifyNone(t)

	det, err := NewMarkerDetector([]string{"ALL TESTS COMPLETE"}, "")
	require.NoError(t, err)

	s, _, _ := newTestSupervisor(t, &Supervisor{
		Runner:      "/bin/sh",
		RunnerArgs:  []string{"-c", `echo "ALL TESTS COMPLETE"; sleep 30`},
		GraceWindow: 200 * time.Millisecond,
		Detector:    det,
	})

	start := time.Now()
	res := s.RunBatch(testContext(t), batchOf("spec_a"), 1)

	// A runner hanging after its completion marker is killed but the
	// batch still counts as a pass.
	assert.Equal(t, 0, res.ExitCode, "expected exit code 0")
	assert.True(t, res.Success())
	assert.True(t, res.ForcedKill)
	assert.True(t, res.CompletionSeen)
	assert.False(t, res.TimedOut)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunBatch_CompletionThenNaturalNonZeroExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	det, err := NewMarkerDetector([]string{"ALL TESTS COMPLETE"}, "")
	require.NoError(t, err)

	s, _, _ := newTestSupervisor(t, &Supervisor{
		Runner:     "/bin/sh",
		RunnerArgs: []string{"-c", `echo "ALL TESTS COMPLETE"; sleep 1; exit 3`},
		Detector:   det,
	})

	res := s.RunBatch(testContext(t), batchOf("spec_a"), 1)

	// Teardown failed after the useful work finished; the recorded
	// exit code is 0.
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, res.CompletionSeen)
	assert.False(t, res.ForcedKill)
}

func TestRunBatch_HardTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, exitCodes := newTestSupervisor(t, &Supervisor{
		Runner:      "/bin/sh",
		RunnerArgs:  []string{"-c", "sleep 30"},
		SoftTimeout: 20 * time.Second,
		HardTimeout: 200 * time.Millisecond,
	})

	res := s.RunBatch(testContext(t), batchOf("spec_a"), 1)

	assert.Equal(t, ExitTimeout, res.ExitCode)
	require.ErrorIs(t, res.Err, ErrHardTimeout)
	require.Len(t, *exitCodes, 1, "expected the process exit hook to fire")
	assert.Equal(t, ExitTimeout, (*exitCodes)[0])
}

func TestRunBatch_SignalRelay(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, sigCh, exitCodes := newTestSupervisor(t, &Supervisor{
		Runner:     "/bin/sh",
		RunnerArgs: []string{"-c", "sleep 30"},
	})
	sigCh <- syscall.SIGTERM

	res := s.RunBatch(testContext(t), batchOf("spec_a"), 1)

	want := signalbroker.ExitCode(syscall.SIGTERM)
	assert.Equal(t, want, res.ExitCode, "expected exit code 143")
	assert.True(t, res.ForcedKill)
	require.ErrorIs(t, res.Err, ErrSignalReceived)
	require.Len(t, *exitCodes, 1)
	assert.Equal(t, want, (*exitCodes)[0])
}

func TestRunBatch_ContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := newTestSupervisor(t, &Supervisor{
		Runner:     "/bin/sh",
		RunnerArgs: []string{"-c", "sleep 30"},
	})

	ctx, cancel := context.WithCancel(testContext(t))
	cancel()

	res := s.RunBatch(ctx, batchOf("spec_a"), 1)

	assert.Equal(t, -1, res.ExitCode)
	assert.True(t, res.ForcedKill)
	require.ErrorIs(t, res.Err, ErrRunAborted)
}

func TestRunBatch_InheritedOutputMode(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := newTestSupervisor(t, &Supervisor{
		Runner:     "/bin/sh",
		RunnerArgs: []string{"-c", "exit 0"},
		OutputMode: OutputInherited,
	})

	res := s.RunBatch(testContext(t), batchOf("spec_a"), 1)

	assert.Equal(t, 0, res.ExitCode)
	assert.Nil(t, res.Output, "inherited mode captures nothing")
}

func TestFinalizer_FirstResultWins(t *testing.T) {
	fin := &finalizer{}

	first := fin.finalize(ExecutionResult{ExitCode: ExitTimeout, TimedOut: true})
	second := fin.finalize(ExecutionResult{ExitCode: 0})

	assert.Equal(t, ExitTimeout, first.ExitCode)
	assert.Equal(t, first, second, "later finalizations must observe the first result")
}

func TestFinalizer_Concurrent(t *testing.T) {
	fin := &finalizer{}

	var wg sync.WaitGroup

	results := make([]ExecutionResult, 8)

	for i := range results {
		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i] = fin.finalize(ExecutionResult{ExitCode: i})
		}()
	}

	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0], r, "all callers must observe the same result")
	}
}

func TestBuildEnv(t *testing.T) {
	s := &Supervisor{
		MaxMemoryMB: 4096,
		Env:         map[string]string{"FOO": "BAR"},
	}

	env := s.buildEnv()

	assert.Contains(t, env, "CI=true")
	assert.Contains(t, env, "WARDEN_TEST_MODE=1")
	assert.Contains(t, env, "NODE_OPTIONS=--max-old-space-size=4096")
	assert.Contains(t, env, "FOO=BAR")
}
