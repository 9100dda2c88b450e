// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package model

import (
	"fmt"

	"github.com/skfile/argweaver/internal/argerr"
)

// Model holds the demographic and mutation/recombination parameters
// shared by every local tree in an ARG: the discretized time grid, a
// per-interval haploid effective population size, scalar mutation and
// recombination rates, an infinite-sites penalty, phasing flags, and
// optional position-indexed rate tracks.
//
// A Model is built once per chromosome and is read-only for the
// lifetime of a Sampler/Resampler run; [Model.Local] produces
// lightweight per-position views that share the grid and popsize
// storage and only override mu and rho.
type Model struct {
	Grid    TimeGrid
	popsize []float64 // haploid Ne per interval, length Grid.NTimes()

	Mu  float64 // mutation rate, per generation per site
	Rho float64 // recombination rate, per generation per site

	// InfSitesPenalty is a log-scale penalty added to the joint
	// probability when a proposed ARG would require more than one
	// mutation at a site under the infinite-sites assumption.
	InfSitesPenalty float64
	InfSites        bool

	Unphased     bool
	SamplePhase  bool

	Mutmap    *RateMap
	Recombmap *RateMap
}

// New builds a Model from a time grid and a constant population size
// applied to every interval.
func New(grid TimeGrid, popsize, mu, rho float64) *Model {
	ps := make([]float64, grid.NTimes())
	for i := range ps {
		ps[i] = popsize
	}
	return &Model{Grid: grid, popsize: ps, Mu: mu, Rho: rho}
}

// NewWithPopsize builds a Model with an explicit per-interval popsize
// vector. len(popsize) must equal grid.NTimes().
func NewWithPopsize(grid TimeGrid, popsize []float64, mu, rho float64) (*Model, error) {
	if len(popsize) != grid.NTimes() {
		return nil, argerr.New(argerr.ConfigError, fmt.Sprintf("popsize has %d entries, want %d (grid.NTimes())", len(popsize), grid.NTimes()))
	}
	ps := make([]float64, len(popsize))
	copy(ps, popsize)
	return &Model{Grid: grid, popsize: ps, Mu: mu, Rho: rho}, nil
}

// Popsize returns the haploid effective population size of interval i.
func (m *Model) Popsize(i int) float64 { return m.popsize[i] }

// NTimes returns the number of points in the shared time grid.
func (m *Model) NTimes() int { return m.Grid.NTimes() }

// Local returns a view of m for chromosome position pos: it shares the
// grid and popsize storage (no copy) and overrides Mu/Rho from Mutmap/
// Recombmap when those maps cover pos.
func (m *Model) Local(pos int) *Model {
	mu, rho := m.Mu, m.Rho
	if m.Mutmap != nil {
		mu = m.Mutmap.Find(pos, m.Mu)
	}
	if m.Recombmap != nil {
		rho = m.Recombmap.Find(pos, m.Rho)
	}
	if mu == m.Mu && rho == m.Rho {
		return m
	}
	local := *m
	local.Mu = mu
	local.Rho = rho
	return &local
}

// Validate checks the model-level invariants from a ConfigError
// perspective: monotone grid (already enforced by TimeGrid), matching
// popsize length, and non-overlapping rate maps (enforced incrementally
// by RateMap.Add).
func (m *Model) Validate() error {
	if len(m.popsize) != m.Grid.NTimes() {
		return argerr.New(argerr.ConfigError, fmt.Sprintf("popsize has %d entries, want %d", len(m.popsize), m.Grid.NTimes()))
	}
	for i, p := range m.popsize {
		if p <= 0 {
			return argerr.New(argerr.ConfigError, fmt.Sprintf("popsize[%d] = %g, must be positive", i, p))
		}
	}
	if m.Mu < 0 {
		return argerr.New(argerr.ConfigError, fmt.Sprintf("mu must be non-negative, got %g", m.Mu))
	}
	if m.Rho < 0 {
		return argerr.New(argerr.ConfigError, fmt.Sprintf("rho must be non-negative, got %g", m.Rho))
	}
	return nil
}
