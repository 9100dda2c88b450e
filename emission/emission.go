// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package emission computes the per-site, per-state emission
// probability of the threading HMM: the Felsenstein pruning likelihood
// of a sequence column under a Jukes-Cantor mutation model, evaluated
// on the candidate local tree with an extra lineage threaded onto a
// given (branch, time) state.
package emission

import (
	"math"

	"github.com/skfile/argweaver/model"
	"github.com/skfile/argweaver/tree"
)

// Base indexes one of the four nucleotides in likelihood vectors.
type Base int

const (
	A Base = iota
	C
	G
	T
	nBases
)

// baseIndex maps a column character to a Base, or -1 for N/ambiguous
// or unphased 0/1 codes (which emit a neutral likelihood instead of
// being pruned).
func baseIndex(c byte) int {
	switch c {
	case 'A', 'a':
		return int(A)
	case 'C', 'c':
		return int(C)
	case 'G', 'g':
		return int(G)
	case 'T', 't':
		return int(T)
	default:
		return -1
	}
}

// jc69Prob returns the Jukes-Cantor transition probability of
// observing the same base (same=true) or a specific different base
// (same=false) after branch length t under rate mu, in closed form —
// the same style the pruning package uses its own closed-form
// transition probabilities rather than a general matrix exponential.
func jc69Prob(mu, t float64, same bool) float64 {
	e := math.Exp(-4 * mu * t / 3)
	if same {
		return 0.25 + 0.75*e
	}
	return 0.25 - 0.25*e
}

// Column is one site's observed bases, one per leaf, indexed by leaf
// id (0..n-1 in the owning LocalTree's leaf numbering).
type Column []byte

// Masked reports whether col should emit a neutral 1.0 regardless of
// topology: every character is 'N' or otherwise unrecognized.
func (col Column) Masked() bool {
	for _, c := range col {
		if baseIndex(c) >= 0 {
			return false
		}
	}
	return true
}

// Prob computes the Felsenstein pruning likelihood of col on t under a
// Jukes-Cantor model with mutation rate mu, with the threaded lineage
// (not a leaf of t) coalescing onto branch newBranch at time newTime.
// If newBranch is tree.NoNode, the likelihood of t alone is returned
// (cmd/arg-sample uses this to score a tree with no thread attached).
//
// Column ambiguity and masked columns (col.Masked()) emit a neutral
// 1.0 per the no-data convention; newBase, when >= 0, supplies the
// observed base of the threaded lineage itself (it has no entry in
// col since it is not yet one of t's leaves).
func Prob(t *tree.LocalTree, m *model.Model, col Column, newBranch int32, newTime int, newBase byte) float64 {
	if col.Masked() {
		return 1.0
	}

	like := make([][4]float64, t.NNodes())
	for v := int32(0); v < int32(t.NNodes()); v++ {
		if t.IsLeaf(v) {
			setLeafLikelihood(&like[v], col[v])
		}
	}

	var postorder []int32
	postorder = t.Postorder(postorder)
	for _, v := range postorder {
		if t.IsLeaf(v) {
			continue
		}
		combineChildren(t, m, like, v)
	}

	root := t.Root()
	rootLike := like[root]

	if newBranch == tree.NoNode {
		return sumAtEquilibrium(rootLike)
	}

	// Thread the new lineage onto newBranch at newTime: its own tip
	// likelihood combines with the branch's likelihood at the
	// coalescence point through two JC69 branch-length terms, one down
	// to the branch's age and one up to newTime.
	var tip [4]float64
	setLeafLikelihood(&tip, newBase)

	branchLen := float64(newTime - t.Age(newBranch))
	if branchLen < 0 {
		branchLen = 0
	}
	tipAt := propagate(m.Mu, float64(newTime), tip)
	branchAt := propagate(m.Mu, branchLen, like[newBranch])
	var merged [4]float64
	for x := 0; x < 4; x++ {
		merged[x] = tipAt[x] * branchAt[x]
	}

	if newBranch == root {
		return sumAtEquilibrium(merged)
	}

	parentLen := float64(t.Age(t.Parent(newBranch)) - newTime)
	if parentLen < 0 {
		parentLen = 0
	}
	// Replace newBranch's contribution to its parent with the merged
	// subtree, propagated up to the parent's age, and recompute
	// upward: this re-prunes from newBranch's sibling through the rest
	// of the tree exactly as combineChildren would.
	atParent := propagate(m.Mu, parentLen, merged)
	return rerootAbove(t, m, like, newBranch, atParent)
}

// propagate applies the Jukes-Cantor transition matrix for branch
// length branchLen to likelihood vector l, returning the likelihood at
// the older end of the branch.
func propagate(mu, branchLen float64, l [4]float64) [4]float64 {
	var out [4]float64
	for x := 0; x < 4; x++ {
		sum := 0.0
		for y := 0; y < 4; y++ {
			sum += jc69Prob(mu, branchLen, x == y) * l[y]
		}
		out[x] = sum
	}
	return out
}

func setLeafLikelihood(dst *[4]float64, c byte) {
	idx := baseIndex(c)
	if idx < 0 {
		*dst = [4]float64{1, 1, 1, 1}
		return
	}
	*dst = [4]float64{}
	dst[idx] = 1
}

func combineChildren(t *tree.LocalTree, m *model.Model, like [][4]float64, v int32) {
	var out [4]float64
	for k := 0; k < 2; k++ {
		c := t.Child(v, k)
		branchLen := float64(t.Age(v) - t.Age(c))
		if branchLen < 0 {
			branchLen = 0
		}
		contrib := propagate(m.Mu, branchLen, like[c])
		if k == 0 {
			out = contrib
		} else {
			for x := 0; x < 4; x++ {
				out[x] *= contrib[x]
			}
		}
	}
	like[v] = out
}

func sumAtEquilibrium(l [4]float64) float64 {
	sum := 0.0
	for x := 0; x < 4; x++ {
		sum += 0.25 * l[x]
	}
	return sum
}

// rerootAbove combines atParentAge — the likelihood vector for v's
// subtree already propagated up to age(parent(v)) — with v's sibling
// (propagated up from its own age the same way combineChildren would),
// then continues upward through each ancestor in turn.
func rerootAbove(t *tree.LocalTree, m *model.Model, like [][4]float64, v int32, atParentAge [4]float64) float64 {
	parent := t.Parent(v)
	sib := t.Sibling(v)

	sibLen := float64(t.Age(parent) - t.Age(sib))
	if sibLen < 0 {
		sibLen = 0
	}
	sibAtParent := propagate(m.Mu, sibLen, like[sib])

	var combined [4]float64
	for x := 0; x < 4; x++ {
		combined[x] = atParentAge[x] * sibAtParent[x]
	}
	if t.IsRoot(parent) {
		return sumAtEquilibrium(combined)
	}

	grandLen := float64(t.Age(t.Parent(parent)) - t.Age(parent))
	if grandLen < 0 {
		grandLen = 0
	}
	return rerootAbove(t, m, like, parent, propagate(m.Mu, grandLen, combined))
}

// InfSitesPenalty reports whether col requires more than one mutation
// on t under a maximum-parsimony count (Fitch's algorithm), and if so
// the log-scale penalty to add, per m.InfSitesPenalty.
func InfSitesPenalty(t *tree.LocalTree, m *model.Model, col Column) float64 {
	if !m.InfSites || col.Masked() {
		return 0
	}
	if fitchMinMutations(t, col) > 1 {
		return m.InfSitesPenalty
	}
	return 0
}

func fitchMinMutations(t *tree.LocalTree, col Column) int {
	sets := make([]uint8, t.NNodes())
	mutations := 0

	var postorder []int32
	postorder = t.Postorder(postorder)
	for _, v := range postorder {
		if t.IsLeaf(v) {
			idx := baseIndex(col[v])
			if idx < 0 {
				sets[v] = 0b1111
			} else {
				sets[v] = 1 << uint(idx)
			}
			continue
		}
		c0, c1 := t.Child(v, 0), t.Child(v, 1)
		inter := sets[c0] & sets[c1]
		if inter != 0 {
			sets[v] = inter
		} else {
			sets[v] = sets[c0] | sets[c1]
			mutations++
		}
	}
	return mutations
}
