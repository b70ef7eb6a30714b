// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides a real-time terminal user interface for
// monitoring batch execution. It displays one row per batch with a
// status indicator, elapsed time and the last output line from the
// running runner, driven by the progress event stream.
package tui
