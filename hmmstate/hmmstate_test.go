// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package hmmstate_test

import (
	"testing"

	"github.com/skfile/argweaver/hmmstate"
	"github.com/skfile/argweaver/tree"
)

func pairTree() *tree.LocalTree {
	t := tree.New(2)
	t.SetChildren(2, 0, 1)
	t.SetParent(0, 2)
	t.SetParent(1, 2)
	t.SetAge(2, 1)
	t.SetRoot(2)
	return t
}

// TestTwoLeafStateSpace exercises the boundary case of spec-level
// property 10: with two leaves the tree has exactly one non-root
// branch per leaf, and the state space degenerates to a single
// (branch, time) grid per leaf branch.
func TestTwoLeafStateSpace(t *testing.T) {
	pt := pairTree()
	const ntimes = 5
	sp := hmmstate.NewSpace(pt, ntimes)

	// Two branches (leaves 0 and 1), each spanning [0, ntimes-2] = 4
	// intervals, for 8 states total.
	if got, want := sp.Len(), 8; got != want {
		t.Fatalf("state count: got %d, want %d", got, want)
	}
	for _, leaf := range []int32{0, 1} {
		for i := 0; i <= ntimes-2; i++ {
			idx := sp.Index(leaf, i)
			if idx < 0 {
				t.Fatalf("missing state (%d,%d)", leaf, i)
			}
			if sp.States[idx] != (hmmstate.State{Branch: leaf, Time: i}) {
				t.Errorf("state at index %d: got %+v, want (%d,%d)", idx, sp.States[idx], leaf, i)
			}
		}
	}
	if sp.Index(2, 0) != -1 {
		t.Errorf("root should contribute no states")
	}
}

func TestStateSpaceRespectsBranchAge(t *testing.T) {
	tt := tree.New(4)
	tt.SetChildren(4, 0, 1)
	tt.SetParent(0, 4)
	tt.SetParent(1, 4)
	tt.SetAge(4, 2)
	tt.SetChildren(5, 2, 3)
	tt.SetParent(2, 5)
	tt.SetParent(3, 5)
	tt.SetAge(5, 2)
	tt.SetChildren(6, 4, 5)
	tt.SetParent(4, 6)
	tt.SetParent(5, 6)
	tt.SetAge(6, 4)
	tt.SetRoot(6)

	const ntimes = 6
	sp := hmmstate.NewSpace(tt, ntimes)

	// Branch 4 has age 2, so its states start at time 2, not 0.
	if idx := sp.Index(4, 1); idx != -1 {
		t.Errorf("branch 4 should have no state below its own age, got index %d", idx)
	}
	if idx := sp.Index(4, 2); idx == -1 {
		t.Errorf("branch 4 should have a state at its own age")
	}

	want := 0
	for v := int32(0); v < int32(tt.NNodes()); v++ {
		if tt.IsRoot(v) {
			continue
		}
		want += ntimes - 1 - tt.Age(v)
	}
	if got := sp.Len(); got != want {
		t.Errorf("total state count: got %d, want %d", got, want)
	}
}
