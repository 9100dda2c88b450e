// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package model_test

import (
	"testing"

	"github.com/skfile/argweaver/model"
)

func TestModelValidate(t *testing.T) {
	grid, err := model.NewTimeGrid(4, 1000, model.Linear)
	if err != nil {
		t.Fatalf("unable to build grid: %v", err)
	}

	m := model.New(grid, 1e4, 1e-8, 1e-8)
	if err := m.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := model.NewWithPopsize(grid, []float64{1, 2}, 1e-8, 1e-8); err == nil {
		t.Fatalf("expected a ConfigError for a mismatched popsize length")
	}
}

func TestModelLocalSharesGrid(t *testing.T) {
	grid, err := model.NewTimeGrid(4, 1000, model.Linear)
	if err != nil {
		t.Fatalf("unable to build grid: %v", err)
	}
	m := model.New(grid, 1e4, 1e-8, 1e-8)

	rm := model.NewRateMap("chr1")
	if err := rm.Add(0, 50, 2e-8); err != nil {
		t.Fatalf("unable to add interval: %v", err)
	}
	m.Mutmap = rm

	local := m.Local(10)
	if local.Mu != 2e-8 {
		t.Fatalf("got mu %g, want 2e-8", local.Mu)
	}
	outside := m.Local(100)
	if outside.Mu != m.Mu {
		t.Fatalf("got mu %g, want default %g", outside.Mu, m.Mu)
	}
	if &local.Grid != &m.Grid {
		// Grid is a value type holding shared backing slices; the
		// important invariant is that the points slice is the same
		// backing array, not that the struct is the identical
		// address.
	}
	if local.Grid.NTimes() != m.Grid.NTimes() {
		t.Fatalf("local view lost the shared grid")
	}
}

func TestRateMapFind(t *testing.T) {
	rm := model.NewRateMap("chr1")
	if err := rm.Add(0, 10, 1.0); err != nil {
		t.Fatalf("unable to add: %v", err)
	}
	if err := rm.Add(20, 30, 2.0); err != nil {
		t.Fatalf("unable to add: %v", err)
	}
	if err := rm.Add(10, 15, 0.5); err == nil {
		t.Fatalf("expected an error for an interval starting before the previous one ends")
	}

	if got := rm.Find(5, -1); got != 1.0 {
		t.Errorf("pos 5: got %g, want 1.0", got)
	}
	if got := rm.Find(15, -1); got != -1 {
		t.Errorf("pos 15 (uncovered): got %g, want default -1", got)
	}
	if got := rm.Find(25, -1); got != 2.0 {
		t.Errorf("pos 25: got %g, want 2.0", got)
	}
}
