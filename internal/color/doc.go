// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color provides ANSI color codes for terminal output.
// It honours the NO_COLOR and FORCE_COLOR environment variables and
// falls back to terminal detection on stdout.
package color
