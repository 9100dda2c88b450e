// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

import (
	"fmt"

	"github.com/skfile/argweaver/internal/argerr"
)

// ApplySPR performs spr on t in place. Let r = spr.RecombNode,
// rp = Parent(r) (the "recoal" node, reused rather than freed),
// sib = the sibling of r under rp, bp = Parent(rp). The regraft:
//
//  1. detaches rp by linking sib directly to bp;
//  2. re-inserts rp as the parent of spr.CoalNode by splicing it
//     between that node and its prior parent;
//  3. sets Age(rp) = spr.CoalTime;
//  4. recomputes the root.
//
// When spr.CoalNode == rp itself — recoalescing onto the very branch
// that was just broken — sib is used as the coal branch in its place,
// since rp no longer exists as an addressable branch once detached.
//
// ApplySPR does not call spr.Validate; callers that need the legality
// check (most callers, since an illegal SPR is an [argerr.InvariantViolation])
// should call it first.
func ApplySPR(t *LocalTree, spr Spr) error {
	if spr.IsNull() {
		return nil
	}

	r := spr.RecombNode
	rp := t.Parent(r)
	if rp == NoNode {
		return argerr.New(argerr.InvariantViolation, fmt.Sprintf("spr: recomb_node %d has no parent", r))
	}
	sib := t.Sibling(r)
	bp := t.Parent(rp)

	coalNode := spr.CoalNode
	if coalNode == rp {
		coalNode = sib
	}
	coalParent := t.Parent(coalNode)

	// Detach rp: sib takes rp's place under bp.
	if bp != NoNode {
		t.ReplaceChild(bp, rp, sib)
	}
	t.SetParent(sib, bp)

	// If coalNode was sib, its parent pointer above just moved to bp.
	if coalParent == rp {
		coalParent = bp
	}

	// Re-insert rp between coalNode and coalParent.
	t.SetParent(rp, coalParent)
	if coalParent != NoNode {
		t.ReplaceChild(coalParent, coalNode, rp)
	}
	t.SetParent(coalNode, rp)
	t.SetChildren(rp, r, coalNode)
	t.SetAge(rp, spr.CoalTime)

	// Recompute the root: exactly one of {sib, rp} can have become
	// parentless, since the tree had a single root before the SPR.
	switch {
	case t.Parent(rp) == NoNode:
		t.SetRoot(rp)
	case t.Parent(sib) == NoNode:
		t.SetRoot(sib)
	}

	return nil
}

// ApplySPRChecked validates spr against t before applying it, returning
// an [argerr.InvariantViolation] if the SPR is illegal.
func ApplySPRChecked(t *LocalTree, spr Spr) error {
	if err := spr.Validate(t); err != nil {
		return argerr.Wrap(argerr.InvariantViolation, "illegal spr", err)
	}
	return ApplySPR(t, spr)
}

// Inverse returns, given the tree t *before* spr is applied, the SPR
// that — once applied to the tree resulting from ApplySPR(t, spr) —
// reconstructs t. It is used by the round-trip test in this package's
// tests and has no other caller in the core.
//
// The recomb branch and recomb time never change: r's age and the cut
// point above it are untouched by a regraft. What must invert is where
// rp (the recoal node) is reinserted: it moves back onto r's original
// sibling, at r's original parent's original age.
func Inverse(t *LocalTree, spr Spr) Spr {
	if spr.IsNull() {
		return spr
	}
	r := spr.RecombNode
	rp := t.Parent(r)
	sib := t.Sibling(r)
	origAge := t.Age(rp)

	return Spr{RecombNode: r, RecombTime: spr.RecombTime, CoalNode: sib, CoalTime: origAge}
}
