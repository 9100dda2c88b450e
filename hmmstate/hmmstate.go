// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package hmmstate enumerates the threading-HMM state space over a
// local tree: pairs (branch, time interval) naming where an additional
// lineage could coalesce, together with the per-interval lineage and
// event counts the transition and emission calculators need.
package hmmstate

import "github.com/skfile/argweaver/tree"

// State names a branch of a local tree (by the index of its child
// node) and the time interval at which a new lineage coalesces onto
// it.
type State struct {
	Branch int32
	Time   int
}

// Space is the enumerated state space S(T) for one local tree under an
// ntimes-point grid: every non-root branch v contributes one state per
// interval in [age(v), ntimes-2].
type Space struct {
	States []State
	// Offset[v] is the index into States of the first state on branch
	// v, or -1 if v contributes no states (the root has none).
	Offset []int
}

// NewSpace builds the state space for tree t under a grid of ntimes
// points.
func NewSpace(t *tree.LocalTree, ntimes int) Space {
	offset := make([]int, t.NNodes())
	for i := range offset {
		offset[i] = -1
	}

	var states []State
	for v := int32(0); v < int32(t.NNodes()); v++ {
		if t.IsRoot(v) {
			continue
		}
		offset[v] = len(states)
		age := t.Age(v)
		for i := age; i <= ntimes-2; i++ {
			states = append(states, State{Branch: v, Time: i})
		}
	}
	return Space{States: states, Offset: offset}
}

// Len returns |S(T)|.
func (sp Space) Len() int {
	return len(sp.States)
}

// Index returns the position of state (v, i) in sp.States, or -1 if no
// such state exists (v is the root, or i is outside the branch's
// range).
func (sp Space) Index(v int32, i int) int {
	off := sp.Offset[v]
	if off < 0 {
		return -1
	}
	idx := off + (i - sp.States[off].Time)
	if idx < off || idx >= len(sp.States) || sp.States[idx].Branch != v {
		return -1
	}
	return idx
}

// LineageCounts is an alias kept for readers who reach this package
// first; CountLineages itself lives in the tree package, which owns
// the local-tree representation it sweeps.
type LineageCounts = tree.LineageCounts

// Count delegates to tree.CountLineages: it is re-exported here so
// that transition-matrix and emission code can depend on hmmstate
// alone for both the state space and the per-interval counters it is
// built from.
func Count(t *tree.LocalTree, ntimes int) LineageCounts {
	return tree.CountLineages(t, ntimes)
}
