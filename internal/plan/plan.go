// Copyright (c) wardenrun 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package plan

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrInvalidBatchSize is returned when the configured batch size is less than 1.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
	// ErrNoWorkItems is returned when there are no work items to plan.
	ErrNoWorkItems = errors.New("no work items to plan")
)

// WorkItem is a single unit of test work passed to the runner as an argument.
type WorkItem string

// Batch is a fixed-size, ordered subset of work items executed together
// in one runner invocation.
type Batch struct {
	Index int // zero-based position in the plan
	Items []WorkItem
}

// Args returns the batch's work items as plain string arguments.
func (b Batch) Args() []string {
	args := make([]string, len(b.Items))
	for i, item := range b.Items {
		args[i] = string(item)
	}

	return args
}

// Plan is an ordered sequence of batches that exactly partitions the
// original work item list: concatenating the batches yields the input,
// in order, with no duplicates.
type Plan struct {
	Batches []Batch
}

// Len returns the number of batches in the plan.
func (p *Plan) Len() int {
	return len(p.Batches)
}

// ItemCount returns the total number of work items across all batches.
func (p *Plan) ItemCount() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b.Items)
	}

	return n
}

// Items returns the concatenation of all batches, in order.
func (p *Plan) Items() []WorkItem {
	items := make([]WorkItem, 0, p.ItemCount())
	for _, b := range p.Batches {
		items = append(items, b.Items...)
	}

	return items
}

// Partition splits items into batches of at most batchSize, preserving
// order. Every batch except possibly the last has exactly batchSize
// items. It returns ErrInvalidBatchSize for batchSize < 1 and
// ErrNoWorkItems for an empty item list.
func Partition(items []WorkItem, batchSize int) (*Plan, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}

	if len(items) == 0 {
		return nil, ErrNoWorkItems
	}

	p := &Plan{
		Batches: make([]Batch, 0, (len(items)+batchSize-1)/batchSize),
	}

	for chunk := range slices.Chunk(items, batchSize) {
		p.Batches = append(p.Batches, Batch{
			Index: len(p.Batches),
			Items: slices.Clone(chunk),
		})
	}

	return p, nil
}
