// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a slog.Logger in a context.Context and provides
// a pretty console handler for human-readable output.
// The log level is read from an environment variable derived from the
// executable name, e.g. WARDEN_LOG_LEVEL for a binary named warden.
package ctxlog
