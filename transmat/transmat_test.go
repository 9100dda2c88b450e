// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package transmat_test

import (
	"math"
	"testing"

	"github.com/skfile/argweaver/hmmstate"
	"github.com/skfile/argweaver/model"
	"github.com/skfile/argweaver/transmat"
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

func buildModel(t *testing.T) *model.Model {
	t.Helper()
	grid, err := model.NewTimeGrid(5, 1000, model.Linear)
	if err != nil {
		t.Fatalf("NewTimeGrid: %v", err)
	}
	return model.New(grid, 100, 1e-8, 1e-8)
}

// TestTwoLeafTransitionMatrix exercises property 10: with two leaves
// the tree has one branch per leaf; this checks a same-branch entry
// on leaf branch 0.
func TestTwoLeafTransitionMatrix(t *testing.T) {
	pt := pairTree()
	m := buildModel(t)
	lc := tree.CountLineages(pt, m.NTimes())
	treeLen := 0.0
	for i := 0; i < m.NTimes()-1; i++ {
		treeLen += float64(lc.NBranches[i]) * m.Grid.Dt(i)
	}

	mat := transmat.New(m, lc, treeLen)
	p := mat.Prob(0, 0, 0, 1, 0)
	if math.IsNaN(p) || p < 0 {
		t.Fatalf("same-branch probability is invalid: %v", p)
	}
}

func TestTransitionMatrixRhoZeroLeavesOnlyNoRecomb(t *testing.T) {
	pt := pairTree()
	m := buildModel(t)
	m.Rho = 0
	lc := tree.CountLineages(pt, m.NTimes())

	mat := transmat.New(m, lc, 1.0)
	// With rho=0 the per-interval recombination mass is zero, so
	// norecombs saturates at 1 and any cross-time, same-branch entry
	// other than the diagonal should vanish.
	p := mat.Prob(0, 0, 0, 2, 0)
	if p != 0 {
		t.Errorf("expected zero transition probability with rho=0, got %v", p)
	}
	diag := mat.Prob(0, 1, 0, 1, 0)
	if diag <= 0 {
		t.Errorf("expected a positive no-recombination diagonal, got %v", diag)
	}
}

func TestGetDeterministicTransitionsSkipsBrokenBranch(t *testing.T) {
	pt := pairTree()
	ntimes := 4
	space := hmmstate.NewSpace(pt, ntimes)

	nt := pairTree()
	spr := tree.Spr{RecombNode: 0, RecombTime: 0, CoalNode: 1, CoalTime: 1}
	mapping := []int32{tree.NoNode, 1, 2}

	targets := transmat.GetDeterministicTransitions(pt, nt, spr, mapping, space, space)
	for i, st := range space.States {
		if st.Branch == 0 {
			if targets[i] != -1 {
				t.Errorf("broken branch state %d should have no deterministic target, got %d", i, targets[i])
			}
		}
	}
}
