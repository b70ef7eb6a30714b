// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package plan computes the batch plan for a run: it resolves work items
// (test files or equivalent handles) and partitions them into
// fixed-size, order-preserving batches.
package plan
