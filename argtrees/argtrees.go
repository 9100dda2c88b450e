// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package argtrees implements LocalTrees: the ordered sequence of
// local-tree blocks that make up one threaded ancestral recombination
// graph over a chromosome, together with the split/concatenate
// operations the resampler uses to re-thread a leaf.
package argtrees

import (
	"fmt"

	"github.com/skfile/argweaver/internal/argerr"
	"github.com/skfile/argweaver/tree"
)

// Block is one maximal genomic interval over which the local tree is
// constant. Spr is the operation that produced Tree from the previous
// block's tree (null on the first block, and on any block whose tree
// did not change relative to its predecessor). Mapping carries, for
// every node of the previous block's tree, the corresponding node in
// Tree (tree.NoNode where the SPR broke that node); it is nil on the
// first block.
type Block struct {
	Tree     *tree.LocalTree
	Spr      tree.Spr
	Mapping  []int32
	BlockLen uint32
}

// LocalTrees is the ordered sequence of blocks spanning
// [StartCoord, EndCoord) on one chromosome, along with the permutation
// from leaf index to external sequence id.
type LocalTrees struct {
	StartCoord int
	EndCoord   int
	SeqIDs     []int
	Blocks     []Block
}

// New returns an empty LocalTrees over [start, start) with the given
// leaf-id permutation. Blocks are appended with Append.
func New(start int, seqIDs []int) *LocalTrees {
	ids := make([]int, len(seqIDs))
	copy(ids, seqIDs)
	return &LocalTrees{StartCoord: start, EndCoord: start, SeqIDs: ids}
}

// NLeaves returns the number of leaves (threads) in every block.
func (lt *LocalTrees) NLeaves() int {
	return len(lt.SeqIDs)
}

// Append appends a block to the end of the sequence, extending
// EndCoord by blocklen. The first appended block must carry a null Spr
// and nil Mapping.
func (lt *LocalTrees) Append(t *tree.LocalTree, spr tree.Spr, mapping []int32, blocklen uint32) error {
	if len(lt.Blocks) == 0 {
		if !spr.IsNull() || mapping != nil {
			return argerr.New(argerr.InvariantViolation, "argtrees: first block must have a null spr and nil mapping")
		}
	}
	lt.Blocks = append(lt.Blocks, Block{Tree: t, Spr: spr, Mapping: mapping, BlockLen: blocklen})
	lt.EndCoord += int(blocklen)
	return nil
}

// BlockAt returns the index of the block containing chromosome
// position pos. It reports an error if pos falls outside
// [StartCoord, EndCoord).
func (lt *LocalTrees) BlockAt(pos int) (idx int, err error) {
	if pos < lt.StartCoord || pos >= lt.EndCoord {
		return 0, argerr.New(argerr.InvariantViolation, fmt.Sprintf("argtrees: position %d outside [%d,%d)", pos, lt.StartCoord, lt.EndCoord))
	}
	cur := lt.StartCoord
	for i, b := range lt.Blocks {
		next := cur + int(b.BlockLen)
		if pos < next {
			return i, nil
		}
		cur = next
	}
	return 0, argerr.New(argerr.InvariantViolation, fmt.Sprintf("argtrees: position %d not covered by any block", pos))
}

// TotalBlockLen returns the sum of every block's BlockLen.
func (lt *LocalTrees) TotalBlockLen() int {
	total := 0
	for _, b := range lt.Blocks {
		total += int(b.BlockLen)
	}
	return total
}

// Validate checks the structural invariants: block lengths sum to the
// coordinate span, the first block has a null SPR and nil mapping,
// every local tree is individually valid, and every non-null SPR is
// legal on its predecessor's tree.
func (lt *LocalTrees) Validate(ntimes int) error {
	if lt.TotalBlockLen() != lt.EndCoord-lt.StartCoord {
		return argerr.New(argerr.InvariantViolation, fmt.Sprintf("argtrees: block lengths sum to %d, want %d", lt.TotalBlockLen(), lt.EndCoord-lt.StartCoord))
	}
	if len(lt.Blocks) == 0 {
		return nil
	}
	first := lt.Blocks[0]
	if !first.Spr.IsNull() || first.Mapping != nil {
		return argerr.New(argerr.InvariantViolation, "argtrees: first block must have a null spr and nil mapping")
	}
	for i, b := range lt.Blocks {
		if err := b.Tree.Validate(ntimes); err != nil {
			return argerr.Wrap(argerr.InvariantViolation, fmt.Sprintf("argtrees: block %d tree", i), err)
		}
		if i == 0 {
			continue
		}
		prev := lt.Blocks[i-1]
		if !b.Spr.IsNull() {
			if err := b.Spr.Validate(prev.Tree); err != nil {
				return argerr.Wrap(argerr.InvariantViolation, fmt.Sprintf("argtrees: block %d spr", i), err)
			}
		}
		if b.Mapping == nil {
			return argerr.New(argerr.InvariantViolation, fmt.Sprintf("argtrees: block %d missing mapping", i))
		}
		if b.Spr.IsNull() && !congruentUnderMapping(b.Mapping) {
			return argerr.New(argerr.InvariantViolation, fmt.Sprintf("argtrees: block %d has a null spr but a non-bijective mapping", i))
		}
	}
	return nil
}

// Partition splits lt at coordinate pos into two independent
// LocalTrees, the first covering [StartCoord, pos) and the second
// [pos, EndCoord). pos must land on a block boundary; splitting inside
// a block would require materializing a sub-block tree, which this
// sequence never needs since every caller partitions at coordinates it
// chose when appending blocks.
func (lt *LocalTrees) Partition(pos int) (left, right *LocalTrees, err error) {
	if pos == lt.StartCoord {
		empty := New(lt.StartCoord, lt.SeqIDs)
		return empty, lt.clone(), nil
	}
	if pos == lt.EndCoord {
		empty := New(lt.EndCoord, lt.SeqIDs)
		return lt.clone(), empty, nil
	}

	cur := lt.StartCoord
	for i, b := range lt.Blocks {
		next := cur + int(b.BlockLen)
		if pos == next {
			left = New(lt.StartCoord, lt.SeqIDs)
			left.Blocks = append(left.Blocks, cloneBlocks(lt.Blocks[:i+1])...)
			left.EndCoord = next

			right = New(pos, lt.SeqIDs)
			tail := cloneBlocks(lt.Blocks[i+1:])
			if len(tail) > 0 {
				tail[0].Spr = tree.NullSpr()
				tail[0].Mapping = nil
			}
			right.Blocks = tail
			right.EndCoord = pos + sumBlockLen(tail)
			return left, right, nil
		}
		if pos < next {
			return nil, nil, argerr.New(argerr.InvariantViolation, fmt.Sprintf("argtrees: position %d does not land on a block boundary", pos))
		}
		cur = next
	}
	return nil, nil, argerr.New(argerr.InvariantViolation, fmt.Sprintf("argtrees: position %d outside range", pos))
}

// AppendTrees mirrors the append_local_trees operation: it concatenates
// right onto the end of lt, reconciling the suture point with
// tree.MapCongruentTrees rather than requiring the caller to already
// know a mapping between lt's last tree and right's first tree. The
// computed mapping is stored on right's first block; when the two trees
// are congruent that block's spr is set to null. The two blocks are not
// merged: a congruent suture stays a block boundary with a null spr.
func AppendTrees(lt, right *LocalTrees) error {
	if lt.EndCoord != right.StartCoord {
		return argerr.New(argerr.InvariantViolation, fmt.Sprintf("argtrees: cannot append %d-starting sequence onto one ending at %d", right.StartCoord, lt.EndCoord))
	}
	if len(right.Blocks) == 0 {
		lt.EndCoord = right.EndCoord
		return nil
	}
	if len(lt.Blocks) == 0 {
		lt.Blocks = cloneBlocks(right.Blocks)
		lt.Blocks[0].Spr = tree.NullSpr()
		lt.Blocks[0].Mapping = nil
		lt.EndCoord = right.EndCoord
		return nil
	}

	last := lt.Blocks[len(lt.Blocks)-1]
	joined := cloneBlocks(right.Blocks)
	mapping := tree.MapCongruentTrees(last.Tree, lt.SeqIDs, joined[0].Tree, right.SeqIDs)
	joined[0].Mapping = mapping
	if congruentUnderMapping(mapping) {
		joined[0].Spr = tree.NullSpr()
	}
	lt.Blocks = append(lt.Blocks, joined...)
	lt.EndCoord = right.EndCoord
	return nil
}

// congruentUnderMapping reports whether mapping is a total bijection
// (every source node maps to a distinct, valid destination node),
// i.e. the suture introduces no real topology change.
func congruentUnderMapping(mapping []int32) bool {
	seen := make(map[int32]bool, len(mapping))
	for _, m := range mapping {
		if m == tree.NoNode {
			return false
		}
		if seen[m] {
			return false
		}
		seen[m] = true
	}
	return true
}

func (lt *LocalTrees) clone() *LocalTrees {
	c := New(lt.StartCoord, lt.SeqIDs)
	c.EndCoord = lt.EndCoord
	c.Blocks = cloneBlocks(lt.Blocks)
	return c
}

func cloneBlocks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		var m []int32
		if b.Mapping != nil {
			m = make([]int32, len(b.Mapping))
			copy(m, b.Mapping)
		}
		out[i] = Block{Tree: b.Tree.Clone(), Spr: b.Spr, Mapping: m, BlockLen: b.BlockLen}
	}
	return out
}

func sumBlockLen(blocks []Block) int {
	total := 0
	for _, b := range blocks {
		total += int(b.BlockLen)
	}
	return total
}
