// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package tree implements the local coalescent tree: a binary tree over
// a fixed set of leaves whose nodes carry integer ages indexing a shared
// time grid, together with the Subtree-Prune-Regraft (SPR) operation
// used to move from one local tree to the next along a chromosome.
//
// A LocalTree is an arena: node records live in one fixed-length slice
// indexed by small integers, and Parent/Child references are indices
// into that slice rather than pointers, following the same
// id-based map of node records used elsewhere in this module's
// pruning and tree-walking code, generalized here to a dense array
// since a local tree's node count (2n-1) never changes after
// construction.
package tree

import "fmt"

// NoNode is the sentinel used for an absent parent or child reference
// (the root's parent, or a leaf's children).
const NoNode = int32(-1)

// LocalNode is one node record in a [LocalTree]'s arena.
type LocalNode struct {
	Parent int32
	Child  [2]int32
	Age    int
}

// IsLeaf reports whether n has no children.
func (n LocalNode) IsLeaf() bool {
	return n.Child[0] == NoNode && n.Child[1] == NoNode
}

// LocalTree is a binary tree over n leaves (indices 0..n-1) and
// 2n-1 total nodes (no unary nodes). Leaves carry no external identity;
// the mapping from leaf index to sequence id is owned by the enclosing
// [argtrees.LocalTrees] permutation table, keeping LocalTree swappable
// between blocks that share leaf count but reorder leaves.
type LocalTree struct {
	nodes []LocalNode
	root  int32
}

// New allocates a LocalTree with nleaves leaves (indices 0..nleaves-1)
// and 2*nleaves-1 total node slots, all with age 0 and no parent/child
// links. The caller is responsible for wiring up the topology (e.g. via
// [LocalTree.SetParent]/[LocalTree.SetChildren]) and setting the root
// with [LocalTree.SetRoot] before the tree is used.
func New(nleaves int) *LocalTree {
	if nleaves < 1 {
		panic("tree: nleaves must be at least 1")
	}
	n := 2*nleaves - 1
	nodes := make([]LocalNode, n)
	for i := range nodes {
		nodes[i] = LocalNode{Parent: NoNode, Child: [2]int32{NoNode, NoNode}}
	}
	return &LocalTree{nodes: nodes, root: NoNode}
}

// NLeaves returns n, the number of leaves.
func (t *LocalTree) NLeaves() int {
	return (len(t.nodes) + 1) / 2
}

// NNodes returns the total number of node slots (2n-1).
func (t *LocalTree) NNodes() int {
	return len(t.nodes)
}

// Root returns the index of the root node, or NoNode if unset.
func (t *LocalTree) Root() int32 {
	return t.root
}

// SetRoot sets the root node index.
func (t *LocalTree) SetRoot(id int32) {
	t.root = id
}

// Node returns a copy of the node record at id.
func (t *LocalTree) Node(id int32) LocalNode {
	return t.nodes[id]
}

// Parent returns the parent of id, or NoNode at the root.
func (t *LocalTree) Parent(id int32) int32 {
	return t.nodes[id].Parent
}

// Child returns child k (0 or 1) of id, or NoNode at a leaf.
func (t *LocalTree) Child(id int32, k int) int32 {
	return t.nodes[id].Child[k]
}

// Age returns the age (a time-grid index) of id.
func (t *LocalTree) Age(id int32) int {
	return t.nodes[id].Age
}

// IsLeaf reports whether id is a leaf.
func (t *LocalTree) IsLeaf(id int32) bool {
	return t.nodes[id].IsLeaf()
}

// IsRoot reports whether id is the root.
func (t *LocalTree) IsRoot(id int32) bool {
	return id == t.root
}

// SetAge sets the age of id.
func (t *LocalTree) SetAge(id int32, age int) {
	t.nodes[id].Age = age
}

// SetParent sets the parent of id.
func (t *LocalTree) SetParent(id, parent int32) {
	t.nodes[id].Parent = parent
}

// SetChildren sets both children of id.
func (t *LocalTree) SetChildren(id, c0, c1 int32) {
	t.nodes[id].Child[0] = c0
	t.nodes[id].Child[1] = c1
}

// ReplaceChild replaces old with replacement among id's children. It
// panics if old is not one of id's current children — a caller error,
// since it would silently corrupt the tree otherwise.
func (t *LocalTree) ReplaceChild(id, old, replacement int32) {
	c := &t.nodes[id].Child
	switch old {
	case c[0]:
		c[0] = replacement
	case c[1]:
		c[1] = replacement
	default:
		panic(fmt.Sprintf("tree: node %d is not a child of %d", old, id))
	}
}

// Sibling returns the other child of Parent(id), i.e. the node that
// shares id's parent. It panics at the root, which has no sibling.
func (t *LocalTree) Sibling(id int32) int32 {
	p := t.nodes[id].Parent
	if p == NoNode {
		panic("tree: root has no sibling")
	}
	c := t.nodes[p].Child
	if c[0] == id {
		return c[1]
	}
	return c[0]
}

// Clone returns a deep, independent copy of t. Cloning is O(n); it is
// used when argtrees copies blocks and by callers that keep the
// pre-image before applying an SPR, never inside ApplySPR itself.
func (t *LocalTree) Clone() *LocalTree {
	nodes := make([]LocalNode, len(t.nodes))
	copy(nodes, t.nodes)
	return &LocalTree{nodes: nodes, root: t.root}
}

// Postorder appends the ids of t's nodes in postorder (children before
// parent) to dst and returns the result. Postorder is the traversal
// order [LocalTree.Validate] and [MapCongruentTrees] rely on.
func (t *LocalTree) Postorder(dst []int32) []int32 {
	var walk func(id int32)
	walk = func(id int32) {
		if id == NoNode {
			return
		}
		n := t.nodes[id]
		if !n.IsLeaf() {
			walk(n.Child[0])
			walk(n.Child[1])
		}
		dst = append(dst, id)
	}
	walk(t.root)
	return dst
}

// Validate checks the structural invariants of a well-formed local
// tree: exactly one root, parent/child links are mutually consistent,
// leaves occupy 0..n-1, parent age is strictly greater than each
// child's age, and no internal node sits at the top grid index
// ntimes-1.
func (t *LocalTree) Validate(ntimes int) error {
	n := t.NLeaves()
	if t.root == NoNode {
		return fmt.Errorf("tree: no root set")
	}
	if t.nodes[t.root].Parent != NoNode {
		return fmt.Errorf("tree: root %d has a parent", t.root)
	}

	seen := make([]bool, len(t.nodes))
	var walk func(id int32) error
	walk = func(id int32) error {
		if seen[id] {
			return fmt.Errorf("tree: node %d visited twice (not a tree)", id)
		}
		seen[id] = true
		node := t.nodes[id]
		isLeaf := node.IsLeaf()
		if isLeaf != (id < int32(n)) {
			return fmt.Errorf("tree: node %d leaf-ness %v inconsistent with index range", id, isLeaf)
		}
		if isLeaf {
			return nil
		}
		if node.Age >= ntimes-1 {
			return fmt.Errorf("tree: internal node %d sits at age %d, must be < %d", id, node.Age, ntimes-1)
		}
		for _, c := range node.Child {
			if c == NoNode {
				return fmt.Errorf("tree: internal node %d missing a child", id)
			}
			if t.nodes[c].Parent != id {
				return fmt.Errorf("tree: node %d child %d does not point back to it", id, c)
			}
			if t.nodes[c].Age >= node.Age {
				return fmt.Errorf("tree: child %d (age %d) is not younger than parent %d (age %d)", c, t.nodes[c].Age, node.Age, id)
			}
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t.root); err != nil {
		return err
	}
	for i := range seen {
		if !seen[i] {
			return fmt.Errorf("tree: node %d is unreachable from the root", i)
		}
	}
	return nil
}
