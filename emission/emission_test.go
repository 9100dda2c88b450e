// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package emission_test

import (
	"math"
	"testing"

	"github.com/skfile/argweaver/emission"
	"github.com/skfile/argweaver/model"
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

func buildModel(t *testing.T, mu float64) *model.Model {
	t.Helper()
	grid, err := model.NewTimeGrid(5, 1000, model.Linear)
	if err != nil {
		t.Fatalf("NewTimeGrid: %v", err)
	}
	return model.New(grid, 100, mu, 1e-8)
}

// TestNoMutationIdenticalColumnScoresHigh mirrors scenario S1: with
// mu=0, identical leaf bases must never require a mutation, so the
// pruning likelihood should equal the root-base equilibrium
// probability exactly (1/4 per base, summed to 1).
func TestNoMutationIdenticalColumnScoresHigh(t *testing.T) {
	pt := pairTree()
	m := buildModel(t, 0)
	col := emission.Column{'A', 'A'}

	p := emission.Prob(pt, m, col, tree.NoNode, 0, 0)
	if math.Abs(p-1) > 1e-9 {
		t.Errorf("mu=0 identical column likelihood: got %v, want 1", p)
	}
}

func TestMaskedColumnEmitsNeutral(t *testing.T) {
	pt := pairTree()
	m := buildModel(t, 1e-8)
	col := emission.Column{'N', 'N'}

	p := emission.Prob(pt, m, col, tree.NoNode, 0, 0)
	if p != 1.0 {
		t.Errorf("masked column: got %v, want 1.0", p)
	}
}

func TestMismatchedColumnRequiresMutationUnderPositiveMu(t *testing.T) {
	pt := pairTree()
	m := buildModel(t, 1e-3)
	same := emission.Column{'A', 'A'}
	diff := emission.Column{'A', 'C'}

	pSame := emission.Prob(pt, m, same, tree.NoNode, 0, 0)
	pDiff := emission.Prob(pt, m, diff, tree.NoNode, 0, 0)
	if pDiff >= pSame {
		t.Errorf("a discordant column should be less likely than a concordant one: same=%v diff=%v", pSame, pDiff)
	}
}

func TestInfSitesPenaltyAppliesOnlyAboveOneMutation(t *testing.T) {
	pt := pairTree()
	m := buildModel(t, 1e-8)
	m.InfSites = true
	m.InfSitesPenalty = -10

	concordant := emission.Column{'A', 'A'}
	if got := emission.InfSitesPenalty(pt, m, concordant); got != 0 {
		t.Errorf("concordant column: got penalty %v, want 0", got)
	}

	discordant := emission.Column{'A', 'C'}
	if got := emission.InfSitesPenalty(pt, m, discordant); got != 0 {
		t.Errorf("discordant column on a 2-leaf tree needs exactly one mutation, should not be penalized: got %v", got)
	}
}
