// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package supervise drives test-runner subprocesses to completion.
//
// A Supervisor owns one batch's subprocess at a time: it spawns the
// runner with the batch's work items as arguments, monitors its output
// for completion markers, enforces the soft/hard/grace timeout tiers,
// and force-kills the process when it will not exit on its own. A
// Sequencer runs the batches of a plan strictly one after another and
// aggregates their results, aborting on the first failure.
//
// There is exactly one code path that terminates the child; normal
// completion, timeouts, errors and relayed signals all funnel into it.
package supervise
