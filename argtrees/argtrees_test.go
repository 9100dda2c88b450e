// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package argtrees_test

import (
	"testing"

	"github.com/skfile/argweaver/argtrees"
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

func TestLocalTreesAppendAndValidate(t *testing.T) {
	lt := argtrees.New(0, []int{10, 20})
	if err := lt.Append(pairTree(), tree.NullSpr(), nil, 50); err != nil {
		t.Fatalf("append first block: %v", err)
	}
	if err := lt.Append(pairTree(), tree.NullSpr(), []int32{0, 1, 2}, 50); err != nil {
		t.Fatalf("append second block: %v", err)
	}
	if lt.EndCoord != 100 {
		t.Fatalf("end coord: got %d, want 100", lt.EndCoord)
	}
	if err := lt.Validate(4); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLocalTreesAppendRejectsNonNullFirstBlock(t *testing.T) {
	lt := argtrees.New(0, []int{10, 20})
	bad := tree.Spr{RecombNode: 0, RecombTime: 0, CoalNode: 1, CoalTime: 1}
	if err := lt.Append(pairTree(), bad, nil, 50); err == nil {
		t.Fatalf("expected rejection of a non-null first-block spr")
	}
}

func TestLocalTreesBlockAt(t *testing.T) {
	lt := argtrees.New(0, []int{10, 20})
	lt.Append(pairTree(), tree.NullSpr(), nil, 50)
	lt.Append(pairTree(), tree.NullSpr(), []int32{0, 1, 2}, 50)

	tests := map[string]struct {
		pos  int
		want int
	}{
		"start of first":  {0, 0},
		"end of first":    {49, 0},
		"start of second": {50, 1},
		"end of second":   {99, 1},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := lt.BlockAt(test.pos)
			if err != nil {
				t.Fatalf("BlockAt(%d): %v", test.pos, err)
			}
			if got != test.want {
				t.Errorf("BlockAt(%d): got block %d, want %d", test.pos, got, test.want)
			}
		})
	}
}

func TestLocalTreesPartitionAndAppendTreesRoundTrip(t *testing.T) {
	lt := argtrees.New(0, []int{10, 20})
	lt.Append(pairTree(), tree.NullSpr(), nil, 50)
	lt.Append(pairTree(), tree.NullSpr(), []int32{0, 1, 2}, 50)

	left, right, err := lt.Partition(50)
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	if left.EndCoord != 50 || right.StartCoord != 50 {
		t.Fatalf("partition bounds: left end %d, right start %d", left.EndCoord, right.StartCoord)
	}

	if err := argtrees.AppendTrees(left, right); err != nil {
		t.Fatalf("append trees: %v", err)
	}
	if err := left.Validate(4); err != nil {
		t.Fatalf("validate reassembled sequence: %v", err)
	}
	if left.EndCoord != 100 {
		t.Errorf("reassembled end coord: got %d, want 100", left.EndCoord)
	}
	// Both halves carry the same congruent pair tree, so re-joining
	// tags the suture block with a null SPR; the two blocks stay
	// separate.
	if !left.Blocks[1].Spr.IsNull() {
		t.Errorf("expected a null spr at the congruent suture, got %+v", left.Blocks[1].Spr)
	}
}

func TestLocalTreesPartitionEmptyMiddleRoundTrip(t *testing.T) {
	lt := argtrees.New(0, []int{10, 20})
	lt.Append(pairTree(), tree.NullSpr(), nil, 100)

	left, right, err := lt.Partition(0)
	if err != nil {
		t.Fatalf("partition at start: %v", err)
	}
	if len(left.Blocks) != 0 {
		t.Fatalf("expected an empty left partition, got %d blocks", len(left.Blocks))
	}

	if err := argtrees.AppendTrees(left, right); err != nil {
		t.Fatalf("append trees: %v", err)
	}
	if len(left.Blocks) != 1 || left.EndCoord != 100 {
		t.Fatalf("expected the original single-block sequence restored, got %d blocks ending at %d", len(left.Blocks), left.EndCoord)
	}
}
