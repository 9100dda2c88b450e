// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package resampler_test

import (
	"math/rand/v2"
	"testing"

	"github.com/skfile/argweaver/argtrees"
	"github.com/skfile/argweaver/emission"
	"github.com/skfile/argweaver/model"
	"github.com/skfile/argweaver/resampler"
	"github.com/skfile/argweaver/tree"
)

type uniformSites struct{}

func (uniformSites) Column(pos int) (emission.Column, byte) {
	return emission.Column{'A', 'A'}, 'A'
}

// tripletTrees builds a 3-leaf LocalTrees over [0,6): leaf 1 cherries
// with leaf 0 below a root that also carries leaf 2.
func tripletTrees(length int) *argtrees.LocalTrees {
	lt := argtrees.New(0, []int{10, 11, 12})
	t := tree.New(3)
	t.SetChildren(3, 0, 1)
	t.SetParent(0, 3)
	t.SetParent(1, 3)
	t.SetAge(3, 1)
	t.SetChildren(4, 3, 2)
	t.SetParent(3, 4)
	t.SetParent(2, 4)
	t.SetAge(4, 3)
	t.SetRoot(4)
	lt.Append(t, tree.NullSpr(), nil, uint32(length))
	return lt
}

func buildModel(t *testing.T) *model.Model {
	t.Helper()
	grid, err := model.NewTimeGrid(4, 100, model.Linear)
	if err != nil {
		t.Fatalf("NewTimeGrid: %v", err)
	}
	return model.New(grid, 10, 0, 0)
}

func TestResamplePreservesWindowLengthAndLeafSet(t *testing.T) {
	lt := tripletTrees(6)
	m := buildModel(t)
	rng := rand.New(rand.NewPCG(3, 3))

	out, res, err := resampler.Resample(lt, 11, m, uniformSites{}, rng, 0, 6)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if out.StartCoord != lt.StartCoord || out.EndCoord != lt.EndCoord {
		t.Fatalf("coordinates: got [%d,%d), want [%d,%d)", out.StartCoord, out.EndCoord, lt.StartCoord, lt.EndCoord)
	}
	if got, want := out.TotalBlockLen(), lt.EndCoord-lt.StartCoord; got != want {
		t.Errorf("total block length: got %d, want %d", got, want)
	}
	if got, want := out.NLeaves(), 3; got != want {
		t.Errorf("leaf count: got %d, want %d", got, want)
	}
	foundLeaf11 := false
	for _, id := range out.SeqIDs {
		if id == 11 {
			foundLeaf11 = true
		}
	}
	if !foundLeaf11 {
		t.Errorf("resampled leaf 11 missing from SeqIDs: %v", out.SeqIDs)
	}
	if len(res.Path) != 6 {
		t.Errorf("sampled path length: got %d, want 6", len(res.Path))
	}
	if err := out.Validate(m.NTimes()); err != nil {
		t.Errorf("resampled LocalTrees invalid: %v", err)
	}
}

func TestResampleRejectsUnknownLeaf(t *testing.T) {
	lt := tripletTrees(6)
	m := buildModel(t)
	rng := rand.New(rand.NewPCG(1, 1))

	if _, _, err := resampler.Resample(lt, 99, m, uniformSites{}, rng, 0, 6); err == nil {
		t.Fatalf("expected an error resampling an id not present in the sequence")
	}
}

// tripletThreeBlocks builds the same topology as tripletTrees but
// split into three congruent 2-wide blocks, so [2,4) is a real
// interior window with its own block boundary on each side.
func tripletThreeBlocks() *argtrees.LocalTrees {
	lt := argtrees.New(0, []int{10, 11, 12})
	mk := func() *tree.LocalTree {
		t := tree.New(3)
		t.SetChildren(3, 0, 1)
		t.SetParent(0, 3)
		t.SetParent(1, 3)
		t.SetAge(3, 1)
		t.SetChildren(4, 3, 2)
		t.SetParent(3, 4)
		t.SetParent(2, 4)
		t.SetAge(4, 3)
		t.SetRoot(4)
		return t
	}
	lt.Append(mk(), tree.NullSpr(), nil, 2)
	lt.Append(mk(), tree.NullSpr(), []int32{0, 1, 2, 3, 4}, 2)
	lt.Append(mk(), tree.NullSpr(), []int32{0, 1, 2, 3, 4}, 2)
	return lt
}

func TestResampleOnInteriorWindowKeepsFlankingCoordinates(t *testing.T) {
	lt := tripletThreeBlocks()
	m := buildModel(t)
	rng := rand.New(rand.NewPCG(5, 5))

	out, res, err := resampler.Resample(lt, 12, m, uniformSites{}, rng, 2, 4)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if out.StartCoord != 0 || out.EndCoord != 6 {
		t.Fatalf("coordinates: got [%d,%d), want [0,6)", out.StartCoord, out.EndCoord)
	}
	if got, want := out.TotalBlockLen(), 6; got != want {
		t.Errorf("total block length: got %d, want %d", got, want)
	}
	if len(res.Path) != 2 {
		t.Errorf("sampled path length over [2,4): got %d, want 2", len(res.Path))
	}
	if err := out.Validate(m.NTimes()); err != nil {
		t.Errorf("resampled LocalTrees invalid: %v", err)
	}
}
