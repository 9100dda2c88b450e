// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package transmat computes the compressed within-block transition
// matrix and the between-block switch matrix of the threading HMM.
// Both are expressed as small, time-indexed vectors rather than dense
// |S|x|S| matrices, following the factorization in the coalescent
// threading literature this module implements.
package transmat

import (
	"math"

	"github.com/skfile/argweaver/hmmstate"
	"github.com/skfile/argweaver/model"
)

// Matrix holds the D, E, B, G and norecombs vectors for one local tree
// under one Model. All vectors are indexed by time-grid interval and
// have length ntimes-1.
type Matrix struct {
	ntimes  int
	treeLen float64

	d         []float64
	e         []float64
	b         []float64
	g         []float64
	norecombs []float64
}

// New computes the compressed transition matrix for a local tree with
// lineage counts lc, under m (a per-position [model.Model] view, as
// returned by [model.Model.Local]), given the tree's total branch
// length (in generations) treeLen. treeLen enters the
// recombination-time density D and the no-recombination diagonal.
func New(m *model.Model, lc hmmstate.LineageCounts, treeLen float64) *Matrix {
	k := m.NTimes()
	mat := &Matrix{ntimes: k, treeLen: treeLen}

	mat.d = make([]float64, k-1)
	mat.e = make([]float64, k-1)
	mat.b = make([]float64, k-1)
	mat.g = make([]float64, k-1)
	mat.norecombs = make([]float64, k-1)

	rho := m.Rho

	// D[a]: probability mass of a recombination landing in interval a,
	// proportional to the number of branches crossing it and the
	// interval width, normalized by the total opportunity along the
	// tree (treeLen). norecombs[a] is the complementary probability
	// that no recombination occurred on this branch at this site.
	for a := 0; a < k-1; a++ {
		lambda := rho * float64(lc.NBranches[a]) * m.Grid.Dt(a)
		if treeLen > 0 && rho > 0 {
			mat.d[a] = lambda / (rho * treeLen)
		}
		mat.norecombs[a] = math.Exp(-lambda)
	}

	// E[b]: coalescence density into interval b, from a standard
	// piecewise-constant coalescent rate 1/(2N) per lineage pair, and
	// B[i]: cumulative survival of the lineage not yet having
	// coalesced through interval i. Both walk the half-step coal_dt
	// grid so mass concentrates where [model.TimeGrid] placed it.
	cum := 0.0
	run := 1.0
	for i := 0; i < k-1; i++ {
		mat.b[i] = run

		n := float64(lc.NCoals[i])
		rate := 0.0
		if ps := m.Popsize(i); ps > 0 {
			rate = n / (2 * ps)
		}
		width := m.Grid.CoalDt(2*i+1) - m.Grid.CoalDt(2*i)

		surv := math.Exp(-cum)
		mat.e[i] = surv * (1 - math.Exp(-rate*width))
		cum += rate * width
		run *= math.Exp(-rate * width)
	}

	// G[a] bounds the double-counted mass when the coalesced branch is
	// older than the recombination time; on this grid that mass is the
	// same cumulative survival B tracks, reused directly.
	copy(mat.g, mat.b)

	return mat
}

// Prob returns P((v1,a) -> (v2,b)) under this block's compressed
// matrix. branchAge is age(v1), needed only by the same-branch
// formula.
func (mt *Matrix) Prob(v1 int32, a int, v2 int32, b int, branchAge int) float64 {
	minAB := min(a, b)
	indicator := 0.0
	if a <= b {
		indicator = 1
	}

	if v1 != v2 {
		return mt.d[a] * mt.e[b] * (mt.b[minAB] - indicator*mt.g[a])
	}

	p := mt.d[a] * mt.e[b] * (2*mt.b[minAB] - 2*indicator*mt.g[a] - mt.b[min(branchAge, b)])
	if a == b {
		p += mt.norecombs[a]
	}
	return p
}

// LogProb is Prob in natural-log space, used directly by the forward
// recursion's log-sum-exp accumulation.
func (mt *Matrix) LogProb(v1 int32, a int, v2 int32, b int, branchAge int) float64 {
	p := mt.Prob(v1, a, v2, b, branchAge)
	if p <= 0 {
		return math.Inf(-1)
	}
	return math.Log(p)
}

// NTimes returns the number of grid points the matrix was built under.
func (mt *Matrix) NTimes() int {
	return mt.ntimes
}
