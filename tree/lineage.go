// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

// LineageCounts holds, per time-grid interval, the number of branches
// crossing that interval (NBranches), and the number of recombination
// (NRecombs) and coalescence (NCoals) events the HMM permits in that
// interval. All three are indexed by time-grid interval i in
// [0, ntimes-1].
type LineageCounts struct {
	NBranches []int
	NRecombs  []int
	NCoals    []int
}

// CountLineages sweeps every branch of t across the intervals it spans
// and returns the per-interval counters used by the transition and
// emission calculators.
//
// For every non-root node v, the branch above it spans grid intervals
// [age(v), age(parent(v))-1]; NBranches is incremented once for each
// such interval. NRecombs and NCoals are incremented over the same
// range, plus the interval at age(parent(v)) itself, since a
// recombination or coalescence can occur exactly at the instant the
// branch ends. The root has no real parent, but is treated as a virtual
// branch reaching to the second-to-last grid index (ntimes-2); the very
// top interval (ntimes-1) always reports NBranches = 1 — a single
// surviving lineage above every coalescence — regardless of topology.
//
// A direct consequence: every one of the tree's 2(n-1) non-root
// branches is visited exactly once by this sweep.
func CountLineages(t *LocalTree, ntimes int) LineageCounts {
	lc := LineageCounts{
		NBranches: make([]int, ntimes),
		NRecombs:  make([]int, ntimes),
		NCoals:    make([]int, ntimes),
	}

	for v := int32(0); v < int32(t.NNodes()); v++ {
		if t.IsRoot(v) {
			continue
		}
		age := t.Age(v)
		top := t.Age(t.Parent(v))
		for i := age; i < top; i++ {
			lc.NBranches[i]++
			lc.NRecombs[i]++
			lc.NCoals[i]++
		}
		if top < ntimes {
			lc.NRecombs[top]++
			lc.NCoals[top]++
		}
	}

	root := t.Root()
	rootAge := t.Age(root)
	for i := rootAge; i <= ntimes-2; i++ {
		lc.NRecombs[i]++
		lc.NCoals[i]++
	}
	lc.NBranches[ntimes-1] = 1

	return lc
}
