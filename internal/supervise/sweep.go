// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package supervise

import (
	"context"
	"os/exec"

	"github.com/wardenrun/warden/internal/ctxlog"
)

// sweepStray force-kills processes whose command line matches pattern.
// The runner is known to leave orphaned worker processes behind that a
// kill of the parent alone will not reap. Best effort only; a failed
// sweep is logged and ignored.
func sweepStray(ctx context.Context, pattern string) {
	if pattern == "" {
		return
	}

	cmd := exec.CommandContext(ctx, "pkill", "-KILL", "-f", pattern)
	if err := cmd.Run(); err != nil {
		// pkill exits 1 when nothing matched, which is the common case.
		ctxlog.Debug(ctx, "stray process sweep", "pattern", pattern, "result", err)
		return
	}

	ctxlog.Info(ctx, "killed stray runner processes", "pattern", pattern)
}
