// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package sampler implements the threading-HMM forward pass and
// stochastic traceback used to thread one additional sequence (leaf)
// through a LocalTrees sequence that is missing it, converting the
// sampled (branch, time) path into the SPR operations that splice it
// in.
package sampler

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/skfile/argweaver/argtrees"
	"github.com/skfile/argweaver/emission"
	"github.com/skfile/argweaver/hmmstate"
	"github.com/skfile/argweaver/internal/argerr"
	"github.com/skfile/argweaver/model"
	"github.com/skfile/argweaver/transmat"
	"github.com/skfile/argweaver/tree"
)

// Sites supplies, per 0-based chromosome position in
// [lt.StartCoord, lt.EndCoord), the observed base of the thread being
// sampled and the bases of every other leaf already in lt, so the
// sampler can evaluate emission probabilities without owning a sites
// file format itself.
type Sites interface {
	// Column returns, for position pos, the bases of lt's existing
	// leaves (indexed the same as lt.SeqIDs) plus the base of the
	// thread being sampled.
	Column(pos int) (existing emission.Column, threadBase byte)
}

// Result is one sampled thread: the path of (branch, time) states
// across every position, and the SPRs derived from it.
type Result struct {
	Path []hmmstate.State
	SPRs []tree.Spr
}

// Sample runs the forward-DP-then-traceback algorithm over lt (a
// LocalTrees missing the thread to be sampled), returning the sampled
// path and the SPRs needed to splice it in. m is the genome-wide
// model; per-position views are obtained with m.Local.
func Sample(lt *argtrees.LocalTrees, m *model.Model, sites Sites, rng *rand.Rand) (*Result, error) {
	if len(lt.Blocks) == 0 {
		return &Result{}, nil
	}

	// Boundary case (spec-level property 9): with a single leaf there
	// is no branch to thread onto yet — the caller is expected to seed
	// the first leaf directly rather than calling Sample.
	if lt.NLeaves() < 1 {
		return nil, argerr.New(argerr.InvariantViolation, "sampler: LocalTrees must have at least one leaf to thread onto")
	}

	fwd, err := forward(lt, m, sites)
	if err != nil {
		return nil, err
	}
	path, err := traceback(fwd, rng)
	if err != nil {
		return nil, err
	}

	return &Result{Path: path, SPRs: pathToSPRs(path)}, nil
}

// columnState is the forward vector (log-space) for one position,
// plus the state space it is indexed over.
type columnState struct {
	alpha []float64
	space hmmstate.Space
}

func forward(lt *argtrees.LocalTrees, m *model.Model, sites Sites) ([]columnState, error) {
	spaces := make([]hmmstate.Space, len(lt.Blocks))
	for i, b := range lt.Blocks {
		spaces[i] = hmmstate.NewSpace(b.Tree, m.NTimes())
	}

	cols := make([]columnState, lt.EndCoord-lt.StartCoord)
	var prev columnState

	for blockIdx, b := range lt.Blocks {
		lc := tree.CountLineages(b.Tree, m.NTimes())
		treeLen := totalBranchLength(b.Tree, m.Grid)
		space := spaces[blockIdx]

		blockStart := lt.StartCoord
		for i := 0; i < blockIdx; i++ {
			blockStart += int(lt.Blocks[i].BlockLen)
		}

		var boundary *transmat.SwitchMatrix

		for offset := 0; offset < int(b.BlockLen); offset++ {
			pos := blockStart + offset
			local := m.Local(pos)
			mat := transmat.New(local, lc, treeLen)

			if offset == 0 && blockIdx > 0 {
				boundary = buildBoundary(lt.Blocks[blockIdx-1].Tree, spaces[blockIdx-1], b, mat, space)
			}

			existing, threadBase := sites.Column(pos)
			alpha := make([]float64, space.Len())
			for i, st := range space.States {
				col := append(emission.Column{}, existing...)
				emit := emission.Prob(b.Tree, local, col, st.Branch, st.Time, threadBase)
				logEmit := math.Log(emit)
				if emit <= 0 {
					logEmit = math.Inf(-1)
				}
				logEmit += emission.InfSitesPenalty(b.Tree, local, col)

				switch {
				case offset == 0 && blockIdx == 0:
					alpha[i] = logEmit
				case offset == 0:
					alpha[i] = logEmit + switchInboundLogSum(prev, boundary, i)
				default:
					alpha[i] = logEmit + inboundLogSum(prev, b.Tree, space, mat, st)
				}
			}

			col := columnState{alpha: alpha, space: space}
			cols[pos-lt.StartCoord] = col
			prev = col

			if allNegInf(alpha) {
				return nil, argerr.New(argerr.NumericFailure, fmt.Sprintf("sampler: all forward entries are -inf at position %d", pos))
			}
		}
	}

	return cols, nil
}

// buildBoundary constructs the switch matrix for the block boundary
// entering b. The two states the boundary's SPR touches directly (the
// branch that was cut and the branch it regrafted onto) index the
// previous block's state space by identity but land in the current
// one on branches the mapping does not reach deterministically, so
// their post-event distribution is computed fresh against mat, the
// new block's own transition matrix, anchored on the mapped image of
// the coalescence point. Every other source state carries over by the
// block's node mapping alone.
func buildBoundary(prevTree *tree.LocalTree, prevSpace hmmstate.Space, b argtrees.Block, mat *transmat.Matrix, space hmmstate.Space) *transmat.SwitchMatrix {
	var recoalRow, recombRow []float64
	if !b.Spr.IsNull() {
		anchor := b.Spr.CoalNode
		if int(anchor) < len(b.Mapping) && b.Mapping[anchor] != tree.NoNode {
			anchor = b.Mapping[anchor]
		}
		row := transmat.DistributionFrom(mat, b.Tree, space, anchor, b.Spr.CoalTime)
		recoalRow = row
		recombRow = row
	}
	return transmat.NewSwitchMatrix(prevTree, b.Tree, b.Spr, b.Mapping, prevSpace, space, 1.0, recoalRow, recombRow)
}

// switchInboundLogSum sums prev.alpha[s'] + log P_switch(s'->dstIdx)
// across a block boundary: deterministic sources contribute through
// sm.DetermTarget, and the two states the SPR touches directly
// contribute through sm's dense rows.
func switchInboundLogSum(prev columnState, sm *transmat.SwitchMatrix, dstIdx int) float64 {
	if prev.alpha == nil || sm == nil {
		return 0
	}
	maxLog := math.Inf(-1)
	terms := make([]float64, 0, len(prev.alpha))
	for i, a := range prev.alpha {
		p := switchProb(sm, i, dstIdx)
		if p <= 0 {
			continue
		}
		v := a + math.Log(p)
		terms = append(terms, v)
		if v > maxLog {
			maxLog = v
		}
	}
	if math.IsInf(maxLog, -1) {
		return maxLog
	}
	sum := 0.0
	for _, v := range terms {
		sum += math.Exp(v - maxLog)
	}
	return maxLog + math.Log(sum)
}

func switchProb(sm *transmat.SwitchMatrix, srcIdx, dstIdx int) float64 {
	switch srcIdx {
	case sm.RecoalSrc:
		return sm.RecoalRow[dstIdx]
	case sm.RecombSrc:
		return sm.RecombRow[dstIdx]
	}
	if sm.DetermTarget[srcIdx] == dstIdx {
		return sm.DetermProb
	}
	return 0
}

// inboundLogSum computes log-sum-exp over prev.alpha[s'] + logP(s'->s)
// for destination state st, within one block (prev.space is the same
// state space as space, since no SPR occurs between adjacent positions
// inside a block).
func inboundLogSum(prev columnState, t *tree.LocalTree, space hmmstate.Space, mat *transmat.Matrix, dst hmmstate.State) float64 {
	if prev.alpha == nil {
		return 0
	}
	maxLog := math.Inf(-1)
	terms := make([]float64, 0, len(prev.space.States))
	for i, src := range prev.space.States {
		branchAge := t.Age(src.Branch)
		p := mat.LogProb(src.Branch, src.Time, dst.Branch, dst.Time, branchAge)
		v := prev.alpha[i] + p
		terms = append(terms, v)
		if v > maxLog {
			maxLog = v
		}
	}
	if math.IsInf(maxLog, -1) {
		return maxLog
	}
	sum := 0.0
	for _, v := range terms {
		sum += math.Exp(v - maxLog)
	}
	return maxLog + math.Log(sum)
}

func traceback(cols []columnState, rng *rand.Rand) ([]hmmstate.State, error) {
	n := len(cols)
	path := make([]hmmstate.State, n)
	if n == 0 {
		return path, nil
	}

	last := cols[n-1]
	idx := sampleFromLogWeights(last.alpha, rng)
	path[n-1] = last.space.States[idx]

	for p := n - 2; p >= 0; p-- {
		cur := cols[p]
		weights := make([]float64, len(cur.alpha))
		copy(weights, cur.alpha)
		idx = sampleFromLogWeights(weights, rng)
		path[p] = cur.space.States[idx]
	}

	return path, nil
}

func sampleFromLogWeights(logw []float64, rng *rand.Rand) int {
	maxLog := math.Inf(-1)
	for _, v := range logw {
		if v > maxLog {
			maxLog = v
		}
	}
	weights := make([]float64, len(logw))
	total := 0.0
	for i, v := range logw {
		w := math.Exp(v - maxLog)
		weights[i] = w
		total += w
	}
	r := rng.Float64() * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if r <= cum {
			return i
		}
	}
	return len(weights) - 1
}

// pathToSPRs converts a sampled (branch,time) path into the sequence
// of thread-side SPRs: a new SPR is recorded wherever the state
// changes branch, attaching the thread at the new time.
func pathToSPRs(path []hmmstate.State) []tree.Spr {
	var sprs []tree.Spr
	for i := 1; i < len(path); i++ {
		if path[i].Branch == path[i-1].Branch {
			continue
		}
		sprs = append(sprs, tree.Spr{
			RecombNode: path[i-1].Branch,
			RecombTime: path[i-1].Time,
			CoalNode:   path[i].Branch,
			CoalTime:   path[i].Time,
		})
	}
	return sprs
}

func totalBranchLength(t *tree.LocalTree, grid model.TimeGrid) float64 {
	total := 0.0
	for v := int32(0); v < int32(t.NNodes()); v++ {
		if t.IsRoot(v) {
			continue
		}
		total += grid.T(t.Age(t.Parent(v))) - grid.T(t.Age(v))
	}
	return total
}

func allNegInf(v []float64) bool {
	for _, x := range v {
		if !math.IsInf(x, -1) {
			return false
		}
	}
	return true
}
