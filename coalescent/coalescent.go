// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package coalescent builds random starting genealogies for arg-sim:
// an initial LocalTree under Kingman's coalescent, and a full
// sequentially-Markov-coalescent ARG obtained by injecting random SPRs
// at waiting distances drawn from the recombination rate.
package coalescent

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/skfile/argweaver/argtrees"
	"github.com/skfile/argweaver/internal/argerr"
	"github.com/skfile/argweaver/model"
	"github.com/skfile/argweaver/tree"

	"gonum.org/v1/gonum/stat/distuv"
)

// Tree draws a random genealogy for nseqs present-day leaves under
// Kingman's coalescent: at each step, the waiting time to the next
// coalescence is exponential with rate k(k-1)/(2*Ne), Ne taken from
// m's popsize track at the previously placed event, drawn from
// distuv.Exponential, the distribution type model.TimeGrid uses
// (through its quantiles) to place exponential-mode half-step
// coalescent points.
func Tree(m *model.Model, nseqs int, rng *rand.Rand) (*tree.LocalTree, error) {
	if nseqs < 2 {
		return nil, argerr.New(argerr.ConfigError, fmt.Sprintf("coalescent: nseqs must be at least 2, got %d", nseqs))
	}

	t := tree.New(nseqs)
	active := make([]int32, nseqs)
	for i := range active {
		active[i] = int32(i)
		t.SetAge(int32(i), 0)
	}

	next := int32(nseqs)
	genAge := 0.0
	prevIdx := 0
	for k := len(active); k > 1; k-- {
		ne := m.Popsize(prevIdx)
		rate := float64(k*(k-1)) / (2 * ne)
		exp := distuv.Exponential{Rate: rate}
		genAge += exp.Rand()

		idx := nearestGridIndex(m.Grid, genAge)
		if idx <= prevIdx {
			idx = prevIdx + 1
		}
		if idx > m.NTimes()-2 {
			idx = m.NTimes() - 2
		}
		if idx <= prevIdx {
			return nil, argerr.New(argerr.NumericFailure, "coalescent: time grid has too few points to place every coalescence event; use a larger --ntimes or --maxtime")
		}
		prevIdx = idx

		i := rng.IntN(len(active))
		a := active[i]
		active[i] = active[len(active)-1]
		active = active[:len(active)-1]
		j := rng.IntN(len(active))
		b := active[j]

		id := next
		next++
		t.SetChildren(id, a, b)
		t.SetParent(a, id)
		t.SetParent(b, id)
		t.SetAge(id, idx)
		active[j] = id
	}
	t.SetRoot(active[0])
	return t, nil
}

func nearestGridIndex(grid model.TimeGrid, gen float64) int {
	pts := grid.Points()
	i := sort.Search(len(pts), func(i int) bool { return pts[i] >= gen })
	if i == 0 {
		return 0
	}
	if i == len(pts) {
		return len(pts) - 1
	}
	if pts[i]-gen < gen-pts[i-1] {
		return i
	}
	return i - 1
}

func totalBranchLenGenerations(t *tree.LocalTree, grid model.TimeGrid) float64 {
	total := 0.0
	for v := int32(0); v < int32(t.NNodes()); v++ {
		if t.IsRoot(v) {
			continue
		}
		total += grid.T(t.Age(t.Parent(v))) - grid.T(t.Age(v))
	}
	return total
}

// sampleDistance draws the genomic distance to the next recombination
// event given the current tree length (in generations) and rho; it
// never returns a distance that would overshoot remaining.
func sampleDistance(rho, treeLen float64, remaining int, rng *rand.Rand) int {
	rate := rho * treeLen
	if rate <= 0 {
		return remaining
	}
	exp := distuv.Exponential{Rate: rate}
	d := int(math.Round(exp.Rand()))
	if d < 1 {
		d = 1
	}
	if d > remaining {
		d = remaining
	}
	return d
}

// randomSPR picks a uniformly random valid SPR on t by rejection
// sampling: a random non-root recomb branch and time within its span,
// and a random non-root coal branch and time strictly above
// max(recomb_time, coal_node's own age). It reports ok=false if no
// valid SPR was found after a bounded number of attempts (e.g. a
// 2-leaf tree, where no alternative topology exists).
func randomSPR(t *tree.LocalTree, rng *rand.Rand) (tree.Spr, bool) {
	n := t.NNodes()
	if n < 3 {
		return tree.Spr{}, false
	}
	candidates := make([]int32, 0, n-1)
	for v := int32(0); v < int32(n); v++ {
		if v == t.Root() {
			continue
		}
		candidates = append(candidates, v)
	}

	for attempt := 0; attempt < 50; attempt++ {
		recomb := candidates[rng.IntN(len(candidates))]
		lo, hi := t.Age(recomb), t.Age(t.Parent(recomb))
		if hi <= lo+1 {
			continue
		}
		recombTime := lo + 1 + rng.IntN(hi-lo-1)

		coal := candidates[rng.IntN(len(candidates))]
		if coal == recomb {
			continue
		}
		coalLo, coalHi := t.Age(coal), t.Age(t.Parent(coal))
		lowerBound := coalLo
		if recombTime > lowerBound {
			lowerBound = recombTime
		}
		if coalHi <= lowerBound+1 {
			continue
		}
		coalTime := lowerBound + 1 + rng.IntN(coalHi-lowerBound-1)

		spr := tree.Spr{RecombNode: recomb, RecombTime: recombTime, CoalNode: coal, CoalTime: coalTime}
		if err := spr.Validate(t); err == nil {
			return spr, true
		}
	}
	return tree.Spr{}, false
}

// identityMapping returns the mapping [0,1,...,n-1]: ApplySPR mutates
// a tree's node records in place without renumbering, so a block built
// by cloning and applying an SPR maps onto its predecessor by identity
// except at the node the SPR broke (the recomb node's old parent),
// which SimulateARG then sets to tree.NoNode.
func identityMapping(n int) []int32 {
	m := make([]int32, n)
	for i := range m {
		m[i] = int32(i)
	}
	return m
}

// SimulateARG builds a full LocalTrees sequence of length bp over
// nseqs present-day leaves: an initial coalescent tree, then a chain
// of SPRs placed at genomic distances drawn from an exponential with
// rate rho*treeLen, following the sequentially Markov coalescent
// approximation this module's sampler itself assumes.
func SimulateARG(m *model.Model, nseqs, bp int, rng *rand.Rand) (*argtrees.LocalTrees, error) {
	cur, err := Tree(m, nseqs, rng)
	if err != nil {
		return nil, err
	}

	ids := make([]int, nseqs)
	for i := range ids {
		ids[i] = i
	}
	lt := argtrees.New(0, ids)

	curSpr := tree.NullSpr()
	var curMapping []int32
	pos := 0
	for pos < bp {
		var dist int
		if m.Rho <= 0 || cur.NNodes() < 3 {
			dist = bp - pos
		} else {
			dist = sampleDistance(m.Rho, totalBranchLenGenerations(cur, m.Grid), bp-pos, rng)
		}
		if err := lt.Append(cur, curSpr, curMapping, uint32(dist)); err != nil {
			return nil, err
		}
		pos += dist
		if pos >= bp {
			break
		}

		spr, ok := randomSPR(cur, rng)
		if !ok {
			if err := lt.Append(cur, tree.NullSpr(), identityMapping(cur.NNodes()), uint32(bp-pos)); err != nil {
				return nil, err
			}
			break
		}
		next := cur.Clone()
		if err := tree.ApplySPR(next, spr); err != nil {
			return nil, err
		}
		curSpr = spr
		curMapping = identityMapping(next.NNodes())
		curMapping[cur.Parent(spr.RecombNode)] = tree.NoNode
		cur = next
	}
	return lt, nil
}
