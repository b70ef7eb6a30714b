// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress defines the real-time event stream emitted while
// batches run, and the reporters that deliver those events to the plain
// text printer or the TUI.
package progress
