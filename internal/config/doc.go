// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config defines the run profile: the runner executable, batch
// size, timeout tiers, completion markers, and output mode for a
// supervised run. Profiles are YAML documents loaded from a local path
// or any go-getter URL.
package config
