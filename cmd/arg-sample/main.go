// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Arg-sample infers an ancestral recombination graph from a sites
// file by Markov chain Monte Carlo: starting from a random genealogy
// over every sequence in the file, it repeatedly resamples one
// sequence's thread at a time against the others, writing the
// resulting ARG and a per-iteration statistics stream.
package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/js-arias/command"

	"github.com/skfile/argweaver/argstat"
	"github.com/skfile/argweaver/argtrees"
	"github.com/skfile/argweaver/coalescent"
	"github.com/skfile/argweaver/emission"
	"github.com/skfile/argweaver/internal/argerr"
	"github.com/skfile/argweaver/model"
	"github.com/skfile/argweaver/resampler"
	"github.com/skfile/argweaver/sites"
	"github.com/skfile/argweaver/smcfile"
	"github.com/skfile/argweaver/tree"
)

var app = &command.Command{
	Usage: "arg-sample -s <sites> [<options>]",
	Short: "sample an ancestral recombination graph from sequence data",
	Long: `
Arg-sample infers an ancestral recombination graph for the sequences named in
a sites file, using a Markov chain Monte Carlo sampler that repeatedly
resamples one sequence's thread against the rest of the genealogy. It writes
the final ARG in SMC format to <prefix>.smc and a per-iteration statistics
stream to <prefix>.stats.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var (
	sitesPath   string
	popsize     float64
	rho         float64
	mu          float64
	ntimes      int
	maxTime     float64
	compress    int
	iters       int
	outPrefix   string
	mutmapPath  string
	recombPath  string
	maskPath    string
	infSites    bool
	gibbs       bool
	climb       int
	seed        int64
	seedSet     bool
)

func setFlags(c *command.Command) {
	c.Flags().StringVar(&sitesPath, "s", "", "sites file")
	c.Flags().Float64Var(&popsize, "N", 1e4, "haploid effective population size")
	c.Flags().Float64Var(&rho, "r", 1.5e-8, "recombination rate per site per generation")
	c.Flags().Float64Var(&mu, "m", 2.5e-8, "mutation rate per site per generation")
	c.Flags().IntVar(&ntimes, "ntimes", 20, "number of discrete coalescence time points")
	c.Flags().Float64Var(&maxTime, "maxtime", 2e5, "maximum coalescence time, in generations")
	c.Flags().IntVar(&compress, "c", 1, "sequence compression factor (parsed but unused: every base pair is its own HMM column)")
	c.Flags().IntVar(&iters, "n", 100, "number of MCMC iterations")
	c.Flags().StringVar(&outPrefix, "o", "", "output file prefix")
	c.Flags().StringVar(&mutmapPath, "mutmap", "", "mutation rate map file")
	c.Flags().StringVar(&recombPath, "recombmap", "", "recombination rate map file")
	c.Flags().StringVar(&maskPath, "maskmap", "", "masked region map file")
	c.Flags().BoolVar(&infSites, "infsites", false, "apply the infinite-sites penalty")
	c.Flags().BoolVar(&gibbs, "gibbs", false, "resample the sequences in turn, one per iteration, instead of one chosen at random")
	c.Flags().IntVar(&climb, "climb", 0, "number of extra resampling passes to run over the first sequence before starting the main chain")
	c.Flags().Int64Var(&seed, "x", 0, "random seed (default: nondeterministic)")
}

func run(c *command.Command, args []string) error {
	seedSet = seed != 0
	if sitesPath == "" {
		return c.UsageError("expecting -s <sites>")
	}
	if outPrefix == "" {
		return c.UsageError("expecting -o <prefix>")
	}

	sf, err := os.Open(sitesPath)
	if err != nil {
		return err
	}
	sd, err := sites.Read(sf)
	sf.Close()
	if err != nil {
		return err
	}

	grid, err := model.NewTimeGrid(ntimes, maxTime, model.Linear)
	if err != nil {
		return err
	}
	m := model.New(grid, popsize, mu, rho)
	m.InfSites = infSites
	if m.InfSites {
		m.InfSitesPenalty = -10
	}

	if mutmapPath != "" {
		rm, err := readRateMap(mutmapPath, sd.Chrom)
		if err != nil {
			return err
		}
		m.Mutmap = rm
	}
	if recombPath != "" {
		rm, err := readRateMap(recombPath, sd.Chrom)
		if err != nil {
			return err
		}
		m.Recombmap = rm
	}
	if maskPath != "" {
		rm, err := readRateMap(maskPath, sd.Chrom)
		if err != nil {
			return err
		}
		sd.Mask(rm)
	}
	if err := m.Validate(); err != nil {
		return err
	}

	var rng *rand.Rand
	if seedSet {
		rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	regionLen := sd.End - sd.Start + 1
	lt, err := coalescent.SimulateARG(m, len(sd.Names), regionLen, rng)
	if err != nil {
		return err
	}
	// coalescent.SimulateARG numbers leaves 0..n-1 in construction order,
	// the same order sd.Names lists them in, so relabeling SeqIDs in
	// place recovers the file's real sequence ids without touching any
	// tree's node numbering.
	copy(lt.SeqIDs, sd.Names)
	lt.StartCoord = sd.Start - 1
	lt.EndCoord = lt.StartCoord + regionLen

	statf, err := os.Create(outPrefix + ".stats")
	if err != nil {
		return err
	}
	defer statf.Close()
	stat, err := argstat.NewWriter(statf)
	if err != nil {
		return err
	}

	schedule := make([]int, 0, iters+climb)
	for i := 0; i < climb; i++ {
		schedule = append(schedule, sd.Names[0])
	}
	for i := 0; i < iters; i++ {
		if gibbs {
			schedule = append(schedule, sd.Names[i%len(sd.Names)])
		} else {
			schedule = append(schedule, sd.Names[rng.IntN(len(sd.Names))])
		}
	}

	recombs := 0
	for i, leafID := range schedule {
		view, err := sd.ForThread(withoutID(lt.SeqIDs, leafID), leafID)
		if err != nil {
			return err
		}
		next, res, err := resampler.Resample(lt, leafID, m, view, rng, lt.StartCoord, lt.EndCoord)
		if err != nil {
			return argerr.Wrap(argerr.NumericFailure, fmt.Sprintf("resampling sequence %d at iteration %d", leafID, i+1), err)
		}
		lt = next
		recombs = countRecombs(lt)

		joint, likelihood, prior := scoreARG(lt, m, sd)
		if err := stat.WriteRow(argstat.Row{
			Iter:       i + 1,
			Joint:      joint,
			Likelihood: likelihood,
			Prior:      prior,
			Recombs:    recombs,
			ArgLen:     totalArgLen(lt, grid),
		}); err != nil {
			return err
		}
		_ = res
	}
	if err := stat.Flush(); err != nil {
		return err
	}

	smcf, err := os.Create(outPrefix + ".smc")
	if err != nil {
		return err
	}
	defer smcf.Close()
	if err := smcfile.Write(smcf, lt, m, sd.Chrom); err != nil {
		return err
	}

	fmt.Fprintf(c.Stdout(), "wrote %s.smc and %s.stats: %d iterations, %d recombinations\n", outPrefix, outPrefix, len(schedule), recombs)
	return nil
}

func readRateMap(path, chrom string) (*model.RateMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return model.ReadRateMap(f, chrom)
}

func withoutID(ids []int, id int) []int {
	out := make([]int, 0, len(ids)-1)
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func countRecombs(lt *argtrees.LocalTrees) int {
	n := 0
	for i, b := range lt.Blocks {
		if i == 0 {
			continue
		}
		if !b.Spr.IsNull() {
			n++
		}
	}
	return n
}

func totalArgLen(lt *argtrees.LocalTrees, grid model.TimeGrid) float64 {
	total := 0.0
	for _, b := range lt.Blocks {
		blen := 0.0
		for v := int32(0); v < int32(b.Tree.NNodes()); v++ {
			if b.Tree.IsRoot(v) {
				continue
			}
			blen += grid.T(b.Tree.Age(b.Tree.Parent(v))) - grid.T(b.Tree.Age(v))
		}
		total += blen * float64(b.BlockLen)
	}
	return total
}

// scoreARG reports an approximate joint log-probability of lt under m
// and the observed data in sd: likelihood is the Felsenstein pruning
// likelihood of every variable site against the block it falls in,
// and prior is the Kingman-coalescent log-density of the first
// block's tree (every block shares the same demographic prior, so
// this avoids the double counting a per-block sum across
// recombination-linked trees would otherwise introduce).
func scoreARG(lt *argtrees.LocalTrees, m *model.Model, sd *sites.Sites) (joint, likelihood, prior float64) {
	for _, pos := range sd.Positions() {
		p := pos - 1
		if p < lt.StartCoord || p >= lt.EndCoord {
			continue
		}
		blockIdx, err := lt.BlockAt(p)
		if err != nil {
			continue
		}
		col := sd.FullColumn(lt.SeqIDs, p)
		if col.Masked() {
			continue
		}
		b := lt.Blocks[blockIdx]
		local := m.Local(p)
		prob := emission.Prob(b.Tree, local, col, tree.NoNode, 0, 0)
		if prob <= 0 {
			likelihood += local.InfSitesPenalty
			continue
		}
		likelihood += math.Log(prob)
		likelihood += emission.InfSitesPenalty(b.Tree, local, col)
	}

	if len(lt.Blocks) > 0 {
		prior = coalescentLogPrior(lt.Blocks[0].Tree, m)
	}
	joint = likelihood + prior
	return joint, likelihood, prior
}

// coalescentLogPrior returns the log-density of t's internal node ages
// under Kingman's coalescent: at each coalescence, the waiting time
// since the previous event is exponential with rate k(k-1)/(2*Ne).
func coalescentLogPrior(t *tree.LocalTree, m *model.Model) float64 {
	type event struct {
		age int
	}
	n := t.NLeaves()
	events := make([]event, 0, n-1)
	for v := int32(n); v < int32(t.NNodes()); v++ {
		events = append(events, event{age: t.Age(v)})
	}
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if events[j].age < events[i].age {
				events[i], events[j] = events[j], events[i]
			}
		}
	}

	logp := 0.0
	prevAge := 0.0
	k := n
	for _, e := range events {
		age := m.Grid.T(e.age)
		w := age - prevAge
		if w < 0 {
			w = 0
		}
		ne := m.Popsize(e.age)
		rate := float64(k*(k-1)) / (2 * ne)
		logp += math.Log(rate) - rate*w
		prevAge = age
		k--
	}
	return logp
}

func main() {
	app.Main()
}
