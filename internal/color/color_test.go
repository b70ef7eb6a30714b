// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsColorEnabled(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, isColorEnabled(), "Expected color output to be disabled")

	t.Setenv("NO_COLOR", "")
	t.Setenv("FORCE_COLOR", "1")
	assert.True(t, isColorEnabled(), "Expected color output to be enabled as FORCE_COLOR is set and NO_COLOR is unset")
}

func TestColorizeDisabled(t *testing.T) {
	orig := enabled
	defer func() { enabled = orig }()

	enabled = false
	assert.Equal(t, "plain", Colorize("plain", FgRed), "expected unchanged string when color is disabled")

	enabled = true
	assert.Equal(t, "\033[31mred\033[0m", Colorize("red", FgRed))
	assert.Equal(t, "\033[1;32mboldgreen\033[0m", Colorize("boldgreen", Bold, FgGreen))
}
