// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package supervise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/wardenrun/warden/internal/ctxlog"
	"github.com/wardenrun/warden/internal/plan"
	"github.com/wardenrun/warden/internal/progress"
	"github.com/wardenrun/warden/internal/signalbroker"
	"github.com/wardenrun/warden/internal/teereader"
)

const (
	maxBufferSize     = 8 * 1024 * 1024  // cap on captured runner output
	heartbeatInterval = 10 * time.Second // interval for the still-running heartbeat
	maxLineLength     = 160              // truncation for progress output lines
	drainWindow       = 250 * time.Millisecond
)

var (
	// ErrBufferOverflow is returned when the output exceeds the max size.
	ErrBufferOverflow = fmt.Errorf("output exceeds max size of %d bytes", maxBufferSize)
	// ErrCouldNotStartProcess is returned when the runner could not be started.
	ErrCouldNotStartProcess = errors.New("could not start runner process")
	// ErrFailedToCreatePipe is returned when the operating system pipe could not be created.
	ErrFailedToCreatePipe = errors.New("failed to create pipe")
	// ErrSoftTimeout is returned when a batch exceeds its per-batch deadline.
	ErrSoftTimeout = errors.New("soft timeout exceeded")
	// ErrHardTimeout is returned when the absolute deadline expires.
	ErrHardTimeout = errors.New("hard timeout exceeded")
	// ErrSignalReceived is returned when an operating system signal interrupted the batch.
	ErrSignalReceived = errors.New("signal received")
	// ErrRunAborted is returned when the surrounding context was cancelled mid-batch.
	ErrRunAborted = errors.New("run aborted")
)

// OutputMode selects how the runner's output is handled.
type OutputMode int

const (
	// OutputCaptured pipes stdout and stderr through the supervisor,
	// which scans them for completion markers.
	OutputCaptured OutputMode = iota
	// OutputInherited connects the runner directly to the supervisor's
	// own stdout/stderr. No completion detection happens in this mode.
	OutputInherited
)

// Environment overrides applied to every runner invocation.
const (
	envCIMarker   = "CI"
	envTestMode   = "WARDEN_TEST_MODE"
	envNodeOpts   = "NODE_OPTIONS"
	nodeHeapTempl = "--max-old-space-size=%d"
)

// Supervisor drives one runner subprocess per batch through its
// lifecycle, enforcing the timeout tiers and emitting the authoritative
// ExecutionResult. It owns the subprocess handle exclusively for the
// batch's duration.
type Supervisor struct {
	// Runner is the collaborator executable that runs one test batch.
	Runner string
	// RunnerArgs are fixed arguments placed before the work items.
	RunnerArgs []string
	// Env holds extra environment overrides for the runner.
	Env map[string]string
	// MaxMemoryMB elevates the runner's heap ceiling when non-zero.
	MaxMemoryMB int
	// SoftTimeout is the per-batch deadline.
	SoftTimeout time.Duration
	// HardTimeout is the absolute safety net, measured from spawn.
	HardTimeout time.Duration
	// GraceWindow is how long to wait for a natural exit after
	// completion detection before force-killing.
	GraceWindow time.Duration
	// OutputMode selects captured or inherited output handling.
	OutputMode OutputMode
	// Detector decides when output shows the useful work is done.
	// Only consulted in captured mode. May be nil.
	Detector Detector
	// SweepPattern, when set, triggers a best-effort kill of stray
	// same-named processes whenever the runner is force-killed.
	SweepPattern string
	// Reporter receives progress events. Defaults to a NullReporter.
	Reporter progress.Reporter

	initOnce sync.Once

	// Injectable hooks so tests never touch process-wide signal
	// handling or exit the test binary.
	sigCh chan os.Signal
	exit  func(code int)
	sweep func(context.Context, string)
}

// finalizer records an ExecutionResult exactly once. Later attempts
// (e.g. a timeout racing the close event) are no-ops that observe the
// first result.
type finalizer struct {
	once sync.Once
	res  ExecutionResult
}

func (f *finalizer) finalize(r ExecutionResult) ExecutionResult {
	f.once.Do(func() {
		f.res = r
	})

	return f.res
}

func (s *Supervisor) init(ctx context.Context) {
	s.initOnce.Do(func() {
		if s.Reporter == nil {
			s.Reporter = progress.NewNullReporter()
		}

		if s.sigCh == nil {
			s.sigCh = signalbroker.New(ctx)
		}

		if s.exit == nil {
			s.exit = os.Exit
		}

		if s.sweep == nil {
			s.sweep = sweepStray
		}
	})
}

// RunBatch supervises one runner invocation for the given batch and
// returns its ExecutionResult. total is the number of batches in the
// plan, used for progress reporting.
func (s *Supervisor) RunBatch(ctx context.Context, b plan.Batch, total int) ExecutionResult {
	s.init(ctx)

	logger := ctxlog.Logger(ctx).With("batch", b.Index+1, "batches", total)
	fin := &finalizer{}

	runnerPath, err := exec.LookPath(s.Runner)
	if err != nil {
		return fin.finalize(ExecutionResult{
			BatchIndex: b.Index,
			ExitCode:   -1,
			Err:        errors.Join(ErrCouldNotStartProcess, err),
		})
	}

	env := s.buildEnv()
	args := slices.Concat([]string{filepath.Base(runnerPath)}, s.RunnerArgs, b.Args())

	files := []*os.File{os.Stdin, os.Stdout, os.Stderr}

	var (
		tee       *teereader.LastLineTeeReader
		pipeW     *os.File
		readDone  chan struct{}
		detectCh  chan struct{}
	)

	if s.OutputMode == OutputCaptured {
		pipeR, w, err := os.Pipe()
		if err != nil {
			return fin.finalize(ExecutionResult{
				BatchIndex: b.Index,
				ExitCode:   -1,
				Err:        errors.Join(ErrFailedToCreatePipe, err),
			})
		}

		pipeW = w
		// One combined stream for stdout and stderr: the detector works
		// on a single accumulated buffer.
		files = []*os.File{os.Stdin, pipeW, pipeW}
		tee = teereader.NewLastLineTeeReader(pipeR)
		readDone = make(chan struct{})
		detectCh = make(chan struct{}, 1)

		go s.monitorOutput(tee, detectCh, readDone)
	}

	logger.Debug("starting runner", "path", runnerPath, "items", len(b.Items))

	ps, err := os.StartProcess(runnerPath, args, &os.ProcAttr{
		Env:   env,
		Files: files,
	})

	if pipeW != nil {
		// The child holds its own descriptors; closing the parent's
		// copy lets the monitor see EOF once the child exits.
		_ = pipeW.Close()
	}

	if err != nil {
		return fin.finalize(ExecutionResult{
			BatchIndex: b.Index,
			ExitCode:   -1,
			Err:        errors.Join(ErrCouldNotStartProcess, err),
		})
	}

	start := time.Now()

	logger.Debug("runner started", "pid", ps.Pid)
	s.Reporter.Report(progress.Event{
		BatchIndex: b.Index,
		BatchCount: total,
		Type:       progress.EventBatchStarted,
		Timestamp:  start,
	})

	res := s.superviseProcess(ctx, logger, fin, ps, b, total, start, tee, readDone, detectCh)

	s.Reporter.Report(progress.Event{
		BatchIndex: b.Index,
		BatchCount: total,
		Type:       progress.EventBatchFinished,
		Timestamp:  time.Now(),
		Data: progress.EventData{
			ExitCode:   res.ExitCode,
			Err:        res.Err,
			ForcedKill: res.ForcedKill,
			Elapsed:    res.Duration,
		},
	})

	return res
}

// superviseProcess is the single control loop racing the process's exit
// against the timeout tiers, completion detection and relayed signals.
func (s *Supervisor) superviseProcess(
	ctx context.Context,
	logger *slog.Logger,
	fin *finalizer,
	ps *os.Process,
	b plan.Batch,
	total int,
	start time.Time,
	tee *teereader.LastLineTeeReader,
	readDone <-chan struct{},
	detectCh <-chan struct{},
) ExecutionResult {
	type waitStatus struct {
		state *os.ProcessState
		err   error
	}

	waitCh := make(chan waitStatus, 1)

	go func() {
		st, err := ps.Wait()
		waitCh <- waitStatus{state: st, err: err}
	}()

	softTimer := time.NewTimer(s.SoftTimeout)
	defer softTimer.Stop()

	hardTimer := time.NewTimer(s.HardTimeout)
	defer hardTimer.Stop()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	var graceCh <-chan time.Time

	state := StateRunning
	completionSeen := false

	collect := func(r ExecutionResult) ExecutionResult {
		r.BatchIndex = b.Index
		r.Duration = time.Since(start)
		r.CompletionSeen = completionSeen

		if tee != nil {
			s.drainOutput(readDone)

			out := tee.Bytes()
			if len(out) > maxBufferSize {
				out = out[:maxBufferSize]
				r.Err = errors.Join(r.Err, ErrBufferOverflow)
			}

			r.Output = slices.Clone(out)
		}

		return fin.finalize(r)
	}

	for {
		select {
		case w := <-waitCh:
			// Normal channel: the process exited on its own. All
			// competing deadlines die with the deferred timer stops.
			code := -1
			if w.state != nil {
				code = w.state.ExitCode()
			}
			logger.Debug("runner exited", "exitCode", code, "state", state.String())

			if completionSeen && code != 0 {
				// Useful work finished; a failed teardown after the
				// marker does not fail the batch.
				return collect(ExecutionResult{ExitCode: 0, Err: w.err})
			}

			return collect(ExecutionResult{ExitCode: code, Err: w.err})

		case <-detectCh:
			if state != StateRunning {
				continue
			}

			state = StateCompletionDetected
			completionSeen = true

			logger.Info("completion marker detected, starting grace window", "grace", s.GraceWindow)
			s.Reporter.Report(progress.Event{
				BatchIndex: b.Index,
				BatchCount: total,
				Type:       progress.EventCompletionDetected,
				Timestamp:  time.Now(),
			})

			graceTimer := time.NewTimer(s.GraceWindow)
			defer graceTimer.Stop()

			graceCh = graceTimer.C

		case <-graceCh:
			// Completion seen but the runner is hanging in teardown.
			state = StateTerminating

			logger.Info("grace window expired, force-killing runner", "pid", ps.Pid)
			s.terminate(ctx, logger, ps)
			<-waitCh

			return collect(ExecutionResult{ExitCode: 0, ForcedKill: true})

		case <-softTimer.C:
			state = StateTerminating

			logger.Warn("soft timeout expired, force-killing runner", "timeout", s.SoftTimeout, "pid", ps.Pid)
			s.Reporter.Report(progress.Event{
				BatchIndex: b.Index,
				BatchCount: total,
				Type:       progress.EventTimedOut,
				Timestamp:  time.Now(),
				Data:       progress.EventData{Elapsed: time.Since(start)},
			})

			s.terminate(ctx, logger, ps)
			<-waitCh

			if completionSeen {
				return collect(ExecutionResult{ExitCode: 0, TimedOut: false, ForcedKill: true})
			}

			return collect(ExecutionResult{
				ExitCode:   ExitTimeout,
				TimedOut:   true,
				ForcedKill: true,
				Err:        ErrSoftTimeout,
			})

		case <-hardTimer.C:
			// Last line of defense: kill and exit regardless of any
			// other bookkeeping in flight.
			state = StateTerminating

			logger.Error("hard timeout expired, terminating supervisor", "timeout", s.HardTimeout)
			s.terminate(ctx, logger, ps)

			res := collect(ExecutionResult{
				ExitCode:   ExitTimeout,
				TimedOut:   true,
				ForcedKill: true,
				Err:        ErrHardTimeout,
			})

			s.exit(ExitTimeout)

			return res

		case sig := <-s.sigCh:
			// Signal relay: no grace period, kill now and exit with
			// the signal-specific code.
			state = StateTerminating

			logger.Info("received signal, force-killing runner", "signal", sig.String(), "pid", ps.Pid)
			s.terminate(ctx, logger, ps)

			select {
			case <-waitCh:
			case <-time.After(drainWindow):
			}

			res := collect(ExecutionResult{
				ExitCode:   signalbroker.ExitCode(sig),
				ForcedKill: true,
				Err:        fmt.Errorf("%w: %s", ErrSignalReceived, sig.String()),
			})

			s.exit(signalbroker.ExitCode(sig))

			return res

		case <-ctx.Done():
			state = StateTerminating

			logger.Info("context cancelled, force-killing runner", "pid", ps.Pid)
			s.terminate(ctx, logger, ps)
			<-waitCh

			return collect(ExecutionResult{
				ExitCode:   -1,
				ForcedKill: true,
				Err:        errors.Join(ErrRunAborted, ctx.Err()),
			})

		case <-heartbeat.C:
			elapsed := time.Since(start).Round(time.Second)

			s.Reporter.Report(progress.Event{
				BatchIndex: b.Index,
				BatchCount: total,
				Type:       progress.EventHeartbeat,
				Timestamp:  time.Now(),
				Data:       progress.EventData{Elapsed: elapsed},
			})

			if tee != nil {
				if line := tee.LastLine(maxLineLength); line != "" {
					s.Reporter.Report(progress.Event{
						BatchIndex: b.Index,
						BatchCount: total,
						Type:       progress.EventOutputLine,
						Timestamp:  time.Now(),
						Data:       progress.EventData{OutputLine: line},
					})
				}
			}
		}
	}
}

// monitorOutput pumps the combined output pipe through the tee reader
// and fires detectCh once when the detector first matches.
func (s *Supervisor) monitorOutput(tee *teereader.LastLineTeeReader, detectCh chan<- struct{}, readDone chan<- struct{}) {
	defer close(readDone)

	detected := false
	buf := make([]byte, 32*1024)

	for {
		n, err := tee.Read(buf)
		if n > 0 && !detected && s.Detector != nil {
			if s.Detector.Detect(tee.Bytes()) {
				detected = true

				select {
				case detectCh <- struct{}{}:
				default:
				}
			}
		}

		if err != nil {
			return
		}
	}
}

// drainOutput waits briefly for the monitor goroutine to see EOF.
// Orphaned runner workers can hold the pipe's write end open, so the
// wait is bounded rather than unconditional.
func (s *Supervisor) drainOutput(readDone <-chan struct{}) {
	if readDone == nil {
		return
	}

	select {
	case <-readDone:
	case <-time.After(drainWindow):
	}
}

// terminate is the only code path that kills the child. It is invoked
// by the grace expiry, both timeout tiers, signal relay and context
// cancellation.
func (s *Supervisor) terminate(ctx context.Context, logger *slog.Logger, ps *os.Process) {
	if err := ps.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			logger.Debug("process already done", "pid", ps.Pid)
		} else {
			logger.Error("process kill error", "pid", ps.Pid, "error", err)
		}
	}

	s.sweep(ctx, s.SweepPattern)
}

// buildEnv constructs the child environment from the ambient
// environment plus the CI marker, the test-mode marker, the optional
// memory ceiling and the profile's overrides.
func (s *Supervisor) buildEnv() []string {
	overrides := map[string]string{
		envCIMarker: "true",
		envTestMode: "1",
	}

	if s.MaxMemoryMB > 0 {
		overrides[envNodeOpts] = fmt.Sprintf(nodeHeapTempl, s.MaxMemoryMB)
	}

	for k, v := range s.Env {
		overrides[k] = v
	}

	env := os.Environ()
	for k, v := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	return env
}
