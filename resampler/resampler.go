// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package resampler implements the leaf-resampling move: pull one
// thread out of a window of a LocalTrees sequence, re-thread it with
// the sampler, and splice the result back in.
package resampler

import (
	"fmt"
	"math/rand/v2"

	"github.com/skfile/argweaver/argtrees"
	"github.com/skfile/argweaver/hmmstate"
	"github.com/skfile/argweaver/internal/argerr"
	"github.com/skfile/argweaver/model"
	"github.com/skfile/argweaver/sampler"
	"github.com/skfile/argweaver/tree"
)

// Resample removes leafID from every block in [a,b) of lt, re-threads
// it with the sampler, and splices the result back in place. a and b
// must land on existing block boundaries (lt.Partition's requirement);
// callers choosing a resampling window pick coordinates that already
// are, such as [lt.StartCoord, lt.EndCoord) for a whole-chromosome
// resample.
//
// Scheduling here is single-threaded and atomic from the caller's
// point of view: the full split -> remove -> re-thread -> splice
// sequence either succeeds, leaving lt untouched and returning a fresh
// LocalTrees, or returns an error without mutating lt at all.
func Resample(lt *argtrees.LocalTrees, leafID int, m *model.Model, sites sampler.Sites, rng *rand.Rand, a, b int) (*argtrees.LocalTrees, *sampler.Result, error) {
	leafIdx, err := leafIndex(lt, leafID)
	if err != nil {
		return nil, nil, err
	}

	left, midRight, err := lt.Partition(a)
	if err != nil {
		return nil, nil, argerr.Wrap(argerr.InvariantViolation, "resampler: splitting at window start", err)
	}
	mid, right, err := midRight.Partition(b)
	if err != nil {
		return nil, nil, argerr.Wrap(argerr.InvariantViolation, "resampler: splitting at window end", err)
	}

	shrunk, err := removeLeafEverywhere(mid, leafIdx, leafID)
	if err != nil {
		return nil, nil, err
	}

	res, err := sampler.Sample(shrunk, m, sites, rng)
	if err != nil {
		return nil, nil, err
	}

	rethreaded, err := graftThread(shrunk, res, leafIdx, mid.SeqIDs)
	if err != nil {
		return nil, nil, err
	}

	out := argtrees.New(lt.StartCoord, left.SeqIDs)
	if err := argtrees.AppendTrees(out, left); err != nil {
		return nil, nil, argerr.Wrap(argerr.InvariantViolation, "resampler: reassembling left", err)
	}
	if err := argtrees.AppendTrees(out, rethreaded); err != nil {
		return nil, nil, argerr.Wrap(argerr.InvariantViolation, "resampler: reassembling window", err)
	}
	if err := argtrees.AppendTrees(out, right); err != nil {
		return nil, nil, argerr.Wrap(argerr.InvariantViolation, "resampler: reassembling right", err)
	}

	return out, res, nil
}

func leafIndex(lt *argtrees.LocalTrees, leafID int) (int, error) {
	for i, id := range lt.SeqIDs {
		if id == leafID {
			return i, nil
		}
	}
	return 0, argerr.New(argerr.InvariantViolation, fmt.Sprintf("resampler: leaf id %d not present", leafID))
}

// removeLeafEverywhere drops leaf leafIdx from every block's tree,
// producing a new LocalTrees whose SeqIDs no longer include leafID.
// Each block's original Spr is translated through the previous block's
// leaf-removal renumbering into a corrective Spr for the shrunk
// sequence; when the translated Spr is unusable (it named the removed
// leaf or its collapsed parent, or no longer validates) the block is
// tagged null only if the recomputed mapping is actually a bijection,
// and an error is returned otherwise rather than silently asserting no
// structural change occurred.
func removeLeafEverywhere(mid *argtrees.LocalTrees, leafIdx int, leafID int) (*argtrees.LocalTrees, error) {
	newSeqIDs := make([]int, 0, len(mid.SeqIDs)-1)
	for _, id := range mid.SeqIDs {
		if id != leafID {
			newSeqIDs = append(newSeqIDs, id)
		}
	}

	out := argtrees.New(mid.StartCoord, newSeqIDs)
	var prevOldToNew []int32

	for i, b := range mid.Blocks {
		shrunkTree, oldToNew, err := tree.RemoveLeaf(b.Tree, int32(leafIdx))
		if err != nil {
			return nil, argerr.Wrap(argerr.InvariantViolation, fmt.Sprintf("resampler: removing leaf from block %d", i), err)
		}
		if i == 0 {
			if err := out.Append(shrunkTree, tree.NullSpr(), nil, b.BlockLen); err != nil {
				return nil, err
			}
			prevOldToNew = oldToNew
			continue
		}

		prevShrunk := out.Blocks[i-1].Tree
		if spr, ok := translateSpr(b.Spr, prevOldToNew); ok {
			if spr.Validate(prevShrunk) == nil {
				candidate := prevShrunk.Clone()
				if tree.ApplySPR(candidate, spr) == nil {
					mapping := tree.MapCongruentTrees(candidate, newSeqIDs, shrunkTree, newSeqIDs)
					if err := out.Append(shrunkTree, spr, mapping, b.BlockLen); err != nil {
						return nil, err
					}
					prevOldToNew = oldToNew
					continue
				}
			}
		}

		mapping := tree.MapCongruentTrees(prevShrunk, newSeqIDs, shrunkTree, newSeqIDs)
		if !congruentMapping(mapping) {
			return nil, argerr.New(argerr.InvariantViolation, fmt.Sprintf("resampler: block %d: leaf removal left a structural change with no derivable corrective spr", i))
		}
		if err := out.Append(shrunkTree, tree.NullSpr(), mapping, b.BlockLen); err != nil {
			return nil, err
		}
		prevOldToNew = oldToNew
	}
	return out, nil
}

// translateSpr maps s's endpoints through oldToNew (a previous block's
// RemoveLeaf renumbering). It reports false when s is already null or
// when either endpoint named the removed leaf or its collapsed parent,
// in which case no corrective spr can be expressed on the shrunk tree.
func translateSpr(s tree.Spr, oldToNew []int32) (tree.Spr, bool) {
	if s.IsNull() {
		return tree.Spr{}, false
	}
	if int(s.RecombNode) >= len(oldToNew) || int(s.CoalNode) >= len(oldToNew) {
		return tree.Spr{}, false
	}
	rn := oldToNew[s.RecombNode]
	cn := oldToNew[s.CoalNode]
	if rn == tree.NoNode || cn == tree.NoNode {
		return tree.Spr{}, false
	}
	return tree.Spr{RecombNode: rn, RecombTime: s.RecombTime, CoalNode: cn, CoalTime: s.CoalTime}, true
}

// congruentMapping reports whether mapping is a total bijection.
func congruentMapping(mapping []int32) bool {
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

// graftThread inserts the sampled thread back into shrunk's blocks:
// every distinct run of identical (branch,time) states in res.Path
// becomes one block, with the leaf grafted via tree.InsertLeaf at that
// state. tree.InsertLeaf always appends a new leaf as the tree's last
// leaf id, so each grafted tree is then permuted back to leafIdx — its
// position in origSeqIDs, the window's pre-removal leaf order — so the
// rethreaded LocalTrees uses the same leaf-id convention as the blocks
// it will be spliced between.
//
// A run boundary within one shrunk block is exactly a thread-side SPR,
// the same event sampler.pathToSPRs records, expressed here in the
// grafted trees' node-id space via composeBlock. A run boundary that
// also crosses a shrunk-block boundary additionally carries whatever
// SPR already separated those blocks before grafting; deriving one
// combined corrective SPR for that compound event is not attempted, so
// such a boundary is tagged null only when the recomputed mapping is a
// bijection, and rejected otherwise.
func graftThread(shrunk *argtrees.LocalTrees, res *sampler.Result, leafIdx int, origSeqIDs []int) (*argtrees.LocalTrees, error) {
	newSeqIDs := append([]int{}, origSeqIDs...)
	out := argtrees.New(shrunk.StartCoord, newSeqIDs)

	if len(res.Path) == 0 {
		return out, nil
	}

	nShrunkLeaves := shrunk.NLeaves()
	order := make([]int32, nShrunkLeaves+1)
	for i := range order {
		switch {
		case i < leafIdx:
			order[i] = int32(i)
		case i == leafIdx:
			order[i] = int32(nShrunkLeaves)
		default:
			order[i] = int32(i - 1)
		}
	}

	// composeBlock returns, for a shrunk block, the oldID -> newID
	// mapping from its base tree into the grafted-and-permuted image
	// every run over that block shares: InsertLeaf's renumbering
	// followed by PermuteLeaves' is the same function regardless of
	// which branch/time the thread lands on, since both depend only on
	// topology (InsertLeaf) or only on order (PermuteLeaves).
	composedFor := make(map[int][]int32)
	composeBlock := func(blockIdx int) []int32 {
		if c, ok := composedFor[blockIdx]; ok {
			return c
		}
		base := shrunk.Blocks[blockIdx].Tree
		probe, _, insMap := tree.InsertLeaf(base, 0, 0, 0)
		probe, permMap := tree.PermuteLeaves(probe, order)
		_ = probe
		composed := make([]int32, base.NNodes())
		for i := range composed {
			composed[i] = permMap[insMap[i]]
		}
		composedFor[blockIdx] = composed
		return composed
	}

	pos := shrunk.StartCoord
	runStart := 0
	var prevTree *tree.LocalTree
	var prevState hmmstate.State
	prevBlockIdx := -1

	flush := func(end int) error {
		blockIdx, err := shrunk.BlockAt(pos)
		if err != nil {
			return argerr.Wrap(argerr.InvariantViolation, "resampler: locating rethreaded run's source block", err)
		}
		base := shrunk.Blocks[blockIdx].Tree
		st := res.Path[pos-shrunk.StartCoord]
		grafted, _, _ := tree.InsertLeaf(base, st.Branch, st.Time, 0)
		grafted, _ = tree.PermuteLeaves(grafted, order)

		var spr tree.Spr
		var mapping []int32
		switch {
		case prevTree == nil:
			spr = tree.NullSpr()
		case prevBlockIdx == blockIdx:
			composed := composeBlock(blockIdx)
			candidate := tree.Spr{
				RecombNode: composed[prevState.Branch],
				RecombTime: prevState.Time,
				CoalNode:   composed[st.Branch],
				CoalTime:   st.Time,
			}
			if !candidate.IsNull() && candidate.Validate(prevTree) == nil {
				spr = candidate
				mapping = tree.MapCongruentTrees(prevTree, newSeqIDs, grafted, newSeqIDs)
			} else {
				m := tree.MapCongruentTrees(prevTree, newSeqIDs, grafted, newSeqIDs)
				if !congruentMapping(m) {
					return argerr.New(argerr.InvariantViolation, fmt.Sprintf("resampler: rethreaded run at %d: derived spr invalid and mapping is not a bijection", pos))
				}
				spr = tree.NullSpr()
				mapping = m
			}
		default:
			m := tree.MapCongruentTrees(prevTree, newSeqIDs, grafted, newSeqIDs)
			if !congruentMapping(m) {
				return argerr.New(argerr.InvariantViolation, fmt.Sprintf("resampler: rethreaded run at %d crosses a block boundary with no derivable corrective spr", pos))
			}
			spr = tree.NullSpr()
			mapping = m
		}

		if err := out.Append(grafted, spr, mapping, uint32(end-pos)); err != nil {
			return err
		}
		prevTree = grafted
		prevState = st
		prevBlockIdx = blockIdx
		pos = end
		return nil
	}

	// A run also breaks at a shrunk block boundary even if the sampled
	// state repeats by coincidence, since the branch id in the state
	// only has meaning relative to the tree of the block it came from.
	curBlock, err := shrunk.BlockAt(shrunk.StartCoord)
	if err != nil {
		return nil, argerr.Wrap(argerr.InvariantViolation, "resampler: locating initial block", err)
	}
	for i := 1; i < len(res.Path); i++ {
		b, err := shrunk.BlockAt(shrunk.StartCoord + i)
		if err != nil {
			return nil, argerr.Wrap(argerr.InvariantViolation, "resampler: locating block for position", err)
		}
		if res.Path[i] == res.Path[runStart] && b == curBlock {
			continue
		}
		if err := flush(shrunk.StartCoord + i); err != nil {
			return nil, err
		}
		runStart = i
		curBlock = b
	}
	if err := flush(shrunk.EndCoord); err != nil {
		return nil, err
	}
	return out, nil
}
