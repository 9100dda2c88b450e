// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

// MapCongruentTrees computes a node-to-node correspondence from t1 to
// t2: leaves are matched by sequence id (ids1[i] is the external id of
// leaf i in t1, ids2[j] the id of leaf j in t2), and internal nodes are
// reconciled in postorder as the lowest common ancestor, in t2, of
// their mapped children. An internal node whose children both map to
// nodes sharing a t2 parent maps to that parent; a node with only one
// mapped child inherits that child's image; a node with neither maps to
// NoNode.
//
// The returned slice has length t1.NNodes() and is indexed by t1 node
// id. When t1 and t2 are the same topology with the same id tables,
// MapCongruentTrees(t1,ids,t1,ids) is the identity mapping.
func MapCongruentTrees(t1 *LocalTree, ids1 []int, t2 *LocalTree, ids2 []int) []int32 {
	mapping := make([]int32, t1.NNodes())
	for i := range mapping {
		mapping[i] = NoNode
	}

	id2leaf2 := make(map[int]int32, len(ids2))
	for j, id := range ids2 {
		id2leaf2[id] = int32(j)
	}

	n1 := t1.NLeaves()
	for i := 0; i < n1; i++ {
		leaf := int32(i)
		if l2, ok := id2leaf2[ids1[i]]; ok {
			mapping[leaf] = l2
		}
	}

	order := t1.Postorder(make([]int32, 0, t1.NNodes()))
	for _, v := range order {
		if t1.IsLeaf(v) {
			continue
		}
		c0, c1 := t1.Child(v, 0), t1.Child(v, 1)
		m0, m1 := mapping[c0], mapping[c1]
		switch {
		case m0 != NoNode && m1 != NoNode:
			mapping[v] = lca(t2, m0, m1)
		case m0 != NoNode:
			mapping[v] = m0
		case m1 != NoNode:
			mapping[v] = m1
		default:
			mapping[v] = NoNode
		}
	}

	return mapping
}

// lca returns the lowest common ancestor of a and b in t.
func lca(t *LocalTree, a, b int32) int32 {
	ancestors := make(map[int32]bool)
	for x := a; x != NoNode; x = t.Parent(x) {
		ancestors[x] = true
	}
	for x := b; x != NoNode; x = t.Parent(x) {
		if ancestors[x] {
			return x
		}
	}
	return NoNode
}
