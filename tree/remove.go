// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

import "github.com/skfile/argweaver/internal/argerr"

// RemoveLeaf returns a new tree with leaf and its parent excised: the
// leaf's sibling takes the parent's place, and every other node is
// renumbered so leaves again occupy a contiguous 0..n-2 range. It
// returns the new tree and an oldID -> newID mapping (length
// t.NNodes(), NoNode at the removed leaf and its collapsed parent).
//
// t is never modified; this mirrors the resampler's use, which removes
// a leaf from every block of a sub-sequence while the original
// sequence remains available for the deterministic-transition mapping
// step that follows.
func RemoveLeaf(t *LocalTree, leaf int32) (*LocalTree, []int32, error) {
	if t.NLeaves() < 2 {
		return nil, nil, argerr.New(argerr.InvariantViolation, "tree: cannot remove the only leaf")
	}
	p := t.Parent(leaf)
	if p == NoNode {
		return nil, nil, argerr.New(argerr.InvariantViolation, "tree: leaf has no parent to collapse")
	}
	sib := t.Sibling(leaf)

	// substitute bypasses the collapsed parent: every reference to p
	// anywhere in the tree (as a child slot, or as the root) resolves
	// to sib instead, since p no longer exists once leaf is removed.
	substitute := func(n int32) int32 {
		if n == p {
			return sib
		}
		return n
	}

	nOld := t.NLeaves()
	oldN := t.NNodes()
	nNew := nOld - 1

	oldToNew := make([]int32, oldN)
	for i := range oldToNew {
		oldToNew[i] = NoNode
	}
	next := int32(0)
	for i := int32(0); i < int32(nOld); i++ {
		if i == leaf {
			continue
		}
		oldToNew[i] = next
		next++
	}

	newTree := New(nNew)
	nextInternal := int32(nNew)

	var assign func(old int32) int32
	assign = func(old int32) int32 {
		old = substitute(old)
		if old < int32(nOld) {
			return oldToNew[old]
		}
		if oldToNew[old] != NoNode {
			return oldToNew[old]
		}
		c0 := assign(t.Child(old, 0))
		c1 := assign(t.Child(old, 1))
		id := nextInternal
		nextInternal++
		oldToNew[old] = id
		newTree.SetChildren(id, c0, c1)
		newTree.SetParent(c0, id)
		newTree.SetParent(c1, id)
		newTree.SetAge(id, t.Age(old))
		return id
	}

	newRoot := assign(t.Root())
	newTree.SetRoot(newRoot)

	return newTree, oldToNew, nil
}
