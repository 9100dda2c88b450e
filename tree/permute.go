// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

// PermuteLeaves returns a copy of t with its leaves renumbered:
// newOrder[i] names the old leaf id that becomes new leaf i. Topology
// and ages are otherwise unchanged. It is used to restore a consistent
// leaf-id convention across a LocalTrees sequence after an operation
// (such as InsertLeaf) assigns a new leaf a different position than
// the one the surrounding blocks expect.
//
// The second return value is the oldID -> newID mapping (length
// t.NNodes()) this permutation induces over every node, leaves and
// internal alike, so a caller composing PermuteLeaves after another
// renumbering operation can track a node's identity through both.
func PermuteLeaves(t *LocalTree, newOrder []int32) (*LocalTree, []int32) {
	n := len(newOrder)
	newTree := New(n)

	oldToNew := make([]int32, t.NNodes())
	for i := range oldToNew {
		oldToNew[i] = NoNode
	}
	for newID, oldID := range newOrder {
		oldToNew[oldID] = int32(newID)
		newTree.SetAge(int32(newID), t.Age(oldID))
	}

	nextInternal := int32(n)
	var assign func(old int32) int32
	assign = func(old int32) int32 {
		if old < int32(n) {
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
	return newTree, oldToNew
}
