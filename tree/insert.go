// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

// InsertLeaf returns a new tree with an (n+1)th leaf grafted onto
// branch at time at: a fresh internal node splits branch at that age,
// taking the new leaf as its other child. The new leaf is appended as
// leaf id t.NLeaves(); every existing leaf keeps its old id, and
// internal nodes are renumbered. leafAge is the new leaf's own tip age
// (0 for a present-day sample). It is the inverse of RemoveLeaf: for a
// tree produced by RemoveLeaf(orig, k), InsertLeaf grafted back onto
// the same branch and age restores orig's topology and ages up to
// leaf-id reordering; internal node ids can differ from orig's.
//
// The third return value is an oldID -> newID mapping (length
// t.NNodes()) for every node that already existed in t: it is the
// identity on leaves, and t's internal nodes are numbered in postorder
// from t.NLeaves()+1 while the recoalescence node always takes the last
// id, so the mapping is independent of branch and at. It does not
// cover the freshly created leaf or recoalescence node, which have no
// old-tree counterpart.
func InsertLeaf(t *LocalTree, branch int32, at int, leafAge int) (*LocalTree, int32, []int32) {
	nOld := t.NLeaves()
	nNew := nOld + 1
	newLeaf := int32(nOld)
	recoalID := int32(nNew + nOld - 1)

	newTree := New(nNew)
	newTree.SetAge(newLeaf, leafAge)

	oldToNew := make([]int32, t.NNodes())
	for i := range oldToNew {
		oldToNew[i] = NoNode
	}
	for i := int32(0); i < int32(nOld); i++ {
		oldToNew[i] = i
	}
	nextInternal := int32(nNew)

	var assign, childOrRecoal func(old int32) int32
	assign = func(old int32) int32 {
		if old < int32(nOld) {
			return old
		}
		if oldToNew[old] != NoNode {
			return oldToNew[old]
		}
		c0 := childOrRecoal(t.Child(old, 0))
		c1 := childOrRecoal(t.Child(old, 1))
		id := nextInternal
		nextInternal++
		oldToNew[old] = id
		newTree.SetChildren(id, c0, c1)
		newTree.SetParent(c0, id)
		newTree.SetParent(c1, id)
		newTree.SetAge(id, t.Age(old))
		return id
	}
	childOrRecoal = func(old int32) int32 {
		if old != branch {
			return assign(old)
		}
		branchNew := assign(old)
		newTree.SetChildren(recoalID, branchNew, newLeaf)
		newTree.SetParent(branchNew, recoalID)
		newTree.SetParent(newLeaf, recoalID)
		newTree.SetAge(recoalID, at)
		return recoalID
	}

	var newRoot int32
	if t.Root() == branch {
		branchNew := assign(branch)
		newTree.SetChildren(recoalID, branchNew, newLeaf)
		newTree.SetParent(branchNew, recoalID)
		newTree.SetParent(newLeaf, recoalID)
		newTree.SetAge(recoalID, at)
		newRoot = recoalID
	} else {
		newRoot = assign(t.Root())
	}
	newTree.SetRoot(newRoot)

	return newTree, newLeaf, oldToNew
}
