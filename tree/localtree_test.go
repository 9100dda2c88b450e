// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree_test

import (
	"testing"

	"github.com/skfile/argweaver/tree"
)

// buildQuartet returns the 4-leaf tree ((0,1)4, (2,3)5)6: leaves 0-3,
// node4 = (0,1) at age 2, node5 = (2,3) at age 2, node6 = (4,5) at
// age 4, the root.
func buildQuartet() *tree.LocalTree {
	t := tree.New(4)
	t.SetChildren(4, 0, 1)
	t.SetParent(0, 4)
	t.SetParent(1, 4)
	t.SetAge(4, 2)

	t.SetChildren(5, 2, 3)
	t.SetParent(2, 5)
	t.SetParent(3, 5)
	t.SetAge(5, 2)

	t.SetChildren(6, 4, 5)
	t.SetParent(4, 6)
	t.SetParent(5, 6)
	t.SetAge(6, 4)
	t.SetRoot(6)

	return t
}

const quartetNTimes = 6

func TestLocalTreeValidate(t *testing.T) {
	qt := buildQuartet()
	if err := qt.Validate(quartetNTimes); err != nil {
		t.Fatalf("valid quartet rejected: %v", err)
	}
}

func TestLocalTreeValidateCatchesAgeTie(t *testing.T) {
	qt := buildQuartet()
	qt.SetAge(4, 2) // already tied with its parent's sibling age; force a tie with its own parent
	qt.SetAge(6, 2)
	if err := qt.Validate(quartetNTimes); err == nil {
		t.Fatalf("expected validation error for a parent/child age tie")
	}
}

func TestSprValidateRejectsNonStrictCoalBound(t *testing.T) {
	qt := buildQuartet()
	// coal_time exactly at coal_node's parent age must be rejected: it
	// would reinsert a node at the same age as its new parent.
	s := tree.Spr{RecombNode: 0, RecombTime: 1, CoalNode: 2, CoalTime: 2}
	if err := s.Validate(qt); err == nil {
		t.Fatalf("expected rejection of coal_time == parent age, got nil")
	}
}

func TestSprValidateRejectsNonStrictLowerCoalBound(t *testing.T) {
	qt := buildQuartet()
	s := tree.Spr{RecombNode: 0, RecombTime: 1, CoalNode: 2, CoalTime: 0}
	if err := s.Validate(qt); err == nil {
		t.Fatalf("expected rejection of coal_time == coal_node age, got nil")
	}
}

func TestApplySPR(t *testing.T) {
	qt := buildQuartet()
	s := tree.Spr{RecombNode: 0, RecombTime: 1, CoalNode: 2, CoalTime: 1}
	if err := s.Validate(qt); err != nil {
		t.Fatalf("spr rejected as invalid: %v", err)
	}
	if err := tree.ApplySPR(qt, s); err != nil {
		t.Fatalf("ApplySPR: %v", err)
	}
	if err := qt.Validate(quartetNTimes); err != nil {
		t.Fatalf("post-SPR tree invalid: %v", err)
	}

	wantParent := map[int32]int32{
		0: 4, 2: 4, 3: 5, 4: 5, 1: 6,
	}
	for n, want := range wantParent {
		if got := qt.Parent(n); got != want {
			t.Errorf("node %d parent: got %d, want %d", n, got, want)
		}
	}
	if got := qt.Age(4); got != 1 {
		t.Errorf("recoal node 4 age: got %d, want 1", got)
	}
	if got := qt.Root(); got != 6 {
		t.Errorf("root: got %d, want 6", got)
	}
}

func TestApplySPRInverseRoundTrip(t *testing.T) {
	qt := buildQuartet()
	s := tree.Spr{RecombNode: 0, RecombTime: 1, CoalNode: 2, CoalTime: 1}

	inv := tree.Inverse(qt, s)

	if err := tree.ApplySPR(qt, s); err != nil {
		t.Fatalf("forward ApplySPR: %v", err)
	}
	if err := inv.Validate(qt); err != nil {
		t.Fatalf("inverse spr invalid on post-image tree: %v", err)
	}
	if err := tree.ApplySPR(qt, inv); err != nil {
		t.Fatalf("inverse ApplySPR: %v", err)
	}
	if err := qt.Validate(quartetNTimes); err != nil {
		t.Fatalf("round-tripped tree invalid: %v", err)
	}

	original := buildQuartet()
	for n := int32(0); n < int32(qt.NNodes()); n++ {
		if got, want := qt.Parent(n), original.Parent(n); got != want {
			t.Errorf("node %d parent after round trip: got %d, want %d", n, got, want)
		}
		if got, want := qt.Age(n), original.Age(n); got != want {
			t.Errorf("node %d age after round trip: got %d, want %d", n, got, want)
		}
	}
	if got, want := qt.Root(), original.Root(); got != want {
		t.Errorf("root after round trip: got %d, want %d", got, want)
	}
}

func TestApplySPRCoalescesOntoBrokenBranch(t *testing.T) {
	// coal_node == recomb_parent: the broken branch's own slot is the
	// regraft target, which ApplySPR resolves by aliasing it to the
	// sibling branch.
	qt := buildQuartet()
	s := tree.Spr{RecombNode: 0, RecombTime: 1, CoalNode: 4, CoalTime: 3}
	if err := tree.ApplySPR(qt, s); err != nil {
		t.Fatalf("ApplySPR: %v", err)
	}
	if err := qt.Validate(quartetNTimes); err != nil {
		t.Fatalf("post-SPR tree invalid: %v", err)
	}
}

func TestCountLineagesCoversEveryBranchOnce(t *testing.T) {
	qt := buildQuartet()
	lc := tree.CountLineages(qt, quartetNTimes)

	total := 0
	for _, n := range lc.NBranches {
		total += n
	}
	// 2(n-1) non-root branches, each spanning at least one interval,
	// plus the always-1 top interval above the root.
	nonRootBranches := 2*qt.NLeaves() - 2
	spanned := 0
	for v := int32(0); v < int32(qt.NNodes()); v++ {
		if qt.IsRoot(v) {
			continue
		}
		spanned += qt.Age(qt.Parent(v)) - qt.Age(v)
	}
	want := spanned + 1 // + the synthetic top interval
	if total != want {
		t.Errorf("sum of NBranches: got %d, want %d (over %d non-root branches)", total, want, nonRootBranches)
	}
	if lc.NBranches[quartetNTimes-1] != 1 {
		t.Errorf("top interval NBranches: got %d, want 1", lc.NBranches[quartetNTimes-1])
	}
}

func TestMapCongruentTreesIdentity(t *testing.T) {
	qt := buildQuartet()
	ids := []int{0, 1, 2, 3}

	mapping := tree.MapCongruentTrees(qt, ids, qt, ids)
	for v := int32(0); v < int32(qt.NNodes()); v++ {
		if mapping[v] != v {
			t.Errorf("node %d: got mapped to %d, want identity", v, mapping[v])
		}
	}
}

func TestRemoveLeafCollapsesParentAndRenumbers(t *testing.T) {
	qt := buildQuartet()
	newTree, oldToNew, err := tree.RemoveLeaf(qt, 3)
	if err != nil {
		t.Fatalf("RemoveLeaf: %v", err)
	}
	if err := newTree.Validate(quartetNTimes); err != nil {
		t.Fatalf("tree after removing leaf 3 is invalid: %v", err)
	}
	if got, want := newTree.NLeaves(), 3; got != want {
		t.Fatalf("NLeaves: got %d, want %d", got, want)
	}

	// leaves 0,1,2 keep their relative order; leaf 3 is dropped.
	wantLeafMap := map[int32]int32{0: 0, 1: 1, 2: 2}
	for old, want := range wantLeafMap {
		if got := oldToNew[old]; got != want {
			t.Errorf("leaf %d: got new id %d, want %d", old, got, want)
		}
	}
	if got := oldToNew[3]; got != tree.NoNode {
		t.Errorf("removed leaf 3: got new id %d, want NoNode", got)
	}
	if got := oldToNew[5]; got != tree.NoNode {
		t.Errorf("collapsed parent node 5: got new id %d, want NoNode", got)
	}

	newLeaf2 := oldToNew[2]
	newCherry := oldToNew[4]
	newRoot := newTree.Root()

	// node5 (old parent of leaves 2,3) is collapsed: leaf 2 now attaches
	// directly to the root at the root's own age, spanning what used to
	// be two branches.
	if got := newTree.Parent(newLeaf2); got != newRoot {
		t.Errorf("leaf 2's new parent: got %d, want root %d", got, newRoot)
	}
	if got, want := newTree.Age(newRoot), qt.Age(6); got != want {
		t.Errorf("root age after collapse: got %d, want %d", got, want)
	}
	if got := newTree.Parent(newCherry); got != newRoot {
		t.Errorf("(0,1) cherry's new parent: got %d, want root %d", got, newRoot)
	}
}

func TestInsertLeafUndoesRemoveLeaf(t *testing.T) {
	qt := buildQuartet()
	shrunk, oldToNew, err := tree.RemoveLeaf(qt, 3)
	if err != nil {
		t.Fatalf("RemoveLeaf: %v", err)
	}

	restored, newLeaf, _ := tree.InsertLeaf(shrunk, oldToNew[2], 2, 0)
	if err := restored.Validate(quartetNTimes); err != nil {
		t.Fatalf("restored tree invalid: %v", err)
	}
	if newLeaf != 3 {
		t.Fatalf("restored leaf id: got %d, want 3 (quartet had exactly 4 leaves)", newLeaf)
	}

	// InsertLeaf renumbers internal nodes (the recoal node always takes
	// the last id), so compare topology and ages through the node
	// correspondence rather than by raw id.
	ids := []int{0, 1, 2, 3}
	m := tree.MapCongruentTrees(qt, ids, restored, ids)
	for n := int32(0); n < int32(qt.NNodes()); n++ {
		wantParent := tree.NoNode
		if p := qt.Parent(n); p != tree.NoNode {
			wantParent = m[p]
		}
		if got, want := restored.Parent(m[n]), wantParent; got != want {
			t.Errorf("node %d parent: got %d, want %d", n, got, want)
		}
		if got, want := restored.Age(m[n]), qt.Age(n); got != want {
			t.Errorf("node %d age: got %d, want %d", n, got, want)
		}
	}
	if got, want := restored.Root(), m[qt.Root()]; got != want {
		t.Errorf("root: got %d, want %d", got, want)
	}
}

func TestRemoveLeafRejectsLastLeaf(t *testing.T) {
	single := tree.New(1)
	single.SetRoot(0)
	if _, _, err := tree.RemoveLeaf(single, 0); err == nil {
		t.Fatalf("expected an error removing the only leaf")
	}
}

func TestMapCongruentTreesLeafPermutation(t *testing.T) {
	qt := buildQuartet()
	ids1 := []int{10, 11, 12, 13}
	ids2 := []int{11, 10, 13, 12} // leaves 0,1 and 2,3 swapped

	mapping := tree.MapCongruentTrees(qt, ids1, qt, ids2)
	if mapping[0] != 1 || mapping[1] != 0 {
		t.Errorf("leaf swap (0,1): got (%d,%d), want (1,0)", mapping[0], mapping[1])
	}
	if mapping[2] != 3 || mapping[3] != 2 {
		t.Errorf("leaf swap (2,3): got (%d,%d), want (3,2)", mapping[2], mapping[3])
	}
	// internal topology is unchanged by relabeling leaves symmetrically
	// within each cherry, so ancestors still map to themselves.
	if mapping[4] != 4 || mapping[5] != 5 || mapping[6] != 6 {
		t.Errorf("internal nodes: got (%d,%d,%d), want (4,5,6)", mapping[4], mapping[5], mapping[6])
	}
}
