// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package coalescent_test

import (
	"math/rand/v2"
	"testing"

	"github.com/skfile/argweaver/coalescent"
	"github.com/skfile/argweaver/model"
)

func testModel(t *testing.T) *model.Model {
	t.Helper()
	grid, err := model.NewTimeGrid(10, 1e5, model.Linear)
	if err != nil {
		t.Fatalf("NewTimeGrid: %v", err)
	}
	return model.New(grid, 1e4, 2.5e-8, 1.5e-8)
}

func TestTreeProducesValidTopology(t *testing.T) {
	m := testModel(t)
	rng := rand.New(rand.NewPCG(7, 11))

	tr, err := coalescent.Tree(m, 6, rng)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if err := tr.Validate(m.NTimes()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if tr.NLeaves() != 6 {
		t.Errorf("NLeaves: got %d, want 6", tr.NLeaves())
	}
}

func TestTreeRejectsFewerThanTwoLeaves(t *testing.T) {
	m := testModel(t)
	rng := rand.New(rand.NewPCG(1, 1))
	if _, err := coalescent.Tree(m, 1, rng); err == nil {
		t.Fatalf("expected an error for nseqs < 2")
	}
}

func TestSimulateARGCoversFullRegionAndValidates(t *testing.T) {
	m := testModel(t)
	rng := rand.New(rand.NewPCG(3, 4))

	lt, err := coalescent.SimulateARG(m, 5, 50000, rng)
	if err != nil {
		t.Fatalf("SimulateARG: %v", err)
	}
	if err := lt.Validate(m.NTimes()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got, want := lt.EndCoord-lt.StartCoord, 50000; got != want {
		t.Errorf("region length: got %d, want %d", got, want)
	}
	if lt.TotalBlockLen() != 50000 {
		t.Errorf("TotalBlockLen: got %d, want 50000", lt.TotalBlockLen())
	}
}

func TestSimulateARGWithZeroRecombinationIsOneBlock(t *testing.T) {
	grid, err := model.NewTimeGrid(10, 1e5, model.Linear)
	if err != nil {
		t.Fatalf("NewTimeGrid: %v", err)
	}
	m := model.New(grid, 1e4, 2.5e-8, 0)
	rng := rand.New(rand.NewPCG(9, 9))

	lt, err := coalescent.SimulateARG(m, 4, 10000, rng)
	if err != nil {
		t.Fatalf("SimulateARG: %v", err)
	}
	if len(lt.Blocks) != 1 {
		t.Errorf("blocks: got %d, want 1 (rho=0 should never recombine)", len(lt.Blocks))
	}
}
