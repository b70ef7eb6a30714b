// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package teereader provides an io.Reader wrapper that accumulates all
// output from a supervised process while tracking the last complete line
// for progress display and exposing the buffer for completion scanning.
package teereader
