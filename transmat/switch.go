// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package transmat

import (
	"github.com/skfile/argweaver/hmmstate"
	"github.com/skfile/argweaver/tree"
)

// Target names one destination state by its position in the next
// block's state space.
type Target struct {
	Index int
	Prob  float64
}

// SwitchMatrix is the between-block transition P_switch: S(T_i) ->
// S(T_{i+1}) across an SPR boundary. Most source states transition
// deterministically to exactly one target (DetermTarget, at
// probability DetermProb); the two states directly touched by the SPR
// — RecoalSrc (on the recomb branch, at the recomb time) and
// RecombSrc (on the coal branch, at the coal time) — instead carry a
// dense row over every target state.
type SwitchMatrix struct {
	Prev, Next hmmstate.Space

	RecoalSrc  int
	RecombSrc  int
	RecoalRow  []float64
	RecombRow  []float64
	DetermProb float64

	// DetermTarget[i] is the index into Next.States that source state
	// i deterministically transitions to, or -1 if i is RecoalSrc or
	// RecombSrc (whose targets are the dense rows above) or has no
	// valid image (the broken branch itself).
	DetermTarget []int
}

// GetDeterministicTransitions computes, for every source state of
// prevTree not equal to RecoalSrc/RecombSrc, the unique target state
// in nextTree reachable via mapping: the node mapping is applied to the
// branch and the time index is kept. States on spr's recomb branch,
// states whose branch maps to tree.NoNode (the branch broken by spr),
// and states whose mapped branch does not span the same time get -1;
// they are not rerouted to another branch.
func GetDeterministicTransitions(prevTree, nextTree *tree.LocalTree, spr tree.Spr, mapping []int32, prevSpace, nextSpace hmmstate.Space) []int {
	targets := make([]int, prevSpace.Len())
	for i := range targets {
		targets[i] = -1
	}

	for i, st := range prevSpace.States {
		v, tm := st.Branch, st.Time
		if v == spr.RecombNode {
			// This branch was cut; its image is handled by the dense
			// RecoalSrc/RecombSrc rows, not a deterministic target.
			continue
		}
		mv := mapping[v]
		if mv == tree.NoNode || int(mv) >= nextTree.NNodes() {
			continue
		}
		idx := nextSpace.Index(mv, tm)
		if idx < 0 {
			// The mapped branch no longer spans this time (its age
			// shifted); no deterministic image exists.
			continue
		}
		targets[i] = idx
	}
	return targets
}

// NewSwitchMatrix builds the switch matrix across the boundary where
// applying spr (legal on prevTree) produces nextTree, with mapping the
// node correspondence [tree.ApplySPR] induces. determProb is the
// shared per-state probability of the deterministic (non-recombining)
// transition; recoalRow/recombRow are the precomputed dense rows for
// the two special source states, each already normalized over
// nextSpace.
func NewSwitchMatrix(prevTree, nextTree *tree.LocalTree, spr tree.Spr, mapping []int32, prevSpace, nextSpace hmmstate.Space, determProb float64, recoalRow, recombRow []float64) *SwitchMatrix {
	determ := GetDeterministicTransitions(prevTree, nextTree, spr, mapping, prevSpace, nextSpace)

	recoalSrc := prevSpace.Index(spr.RecombNode, spr.RecombTime)
	recombSrc := prevSpace.Index(spr.CoalNode, spr.CoalTime)
	if recoalSrc >= 0 {
		determ[recoalSrc] = -1
	}
	if recombSrc >= 0 {
		determ[recombSrc] = -1
	}

	return &SwitchMatrix{
		Prev:         prevSpace,
		Next:         nextSpace,
		RecoalSrc:    recoalSrc,
		RecombSrc:    recombSrc,
		RecoalRow:    recoalRow,
		RecombRow:    recombRow,
		DetermProb:   determProb,
		DetermTarget: determ,
	}
}

// Row returns the distribution over target-state indices for source
// state srcIdx: either one of the two dense rows, or a single
// (target, DetermProb) pair.
func (sm *SwitchMatrix) Row(srcIdx int) []Target {
	switch srcIdx {
	case sm.RecoalSrc:
		return denseRow(sm.RecoalRow)
	case sm.RecombSrc:
		return denseRow(sm.RecombRow)
	}
	t := sm.DetermTarget[srcIdx]
	if t < 0 {
		return nil
	}
	return []Target{{Index: t, Prob: sm.DetermProb}}
}

// DistributionFrom returns, for every state in space, the (unnormalized
// then renormalized) probability of reaching it from (branch, time)
// under mat's within-block formula, applied to t. It builds the two
// dense rows a SwitchMatrix needs for the states a recombination event
// touches directly: the branch that was cut, and the branch it was
// regrafted onto no longer index the same state space as before, so
// their post-event distribution is computed fresh against the new
// tree rather than looked up by identity.
func DistributionFrom(mat *Matrix, t *tree.LocalTree, space hmmstate.Space, branch int32, time int) []float64 {
	branchAge := t.Age(branch)
	out := make([]float64, space.Len())
	total := 0.0
	for i, st := range space.States {
		p := mat.Prob(branch, time, st.Branch, st.Time, branchAge)
		if p < 0 {
			p = 0
		}
		out[i] = p
		total += p
	}
	if total <= 0 {
		return out
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

func denseRow(row []float64) []Target {
	out := make([]Target, 0, len(row))
	for i, p := range row {
		if p > 0 {
			out = append(out, Target{Index: i, Prob: p})
		}
	}
	return out
}
