// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Arg-sim draws a random ancestral recombination graph for a given
// number of present-day sequences under the sequentially Markov
// coalescent, and writes it in SMC format.
package main

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/js-arias/command"

	"github.com/skfile/argweaver/coalescent"
	"github.com/skfile/argweaver/model"
	"github.com/skfile/argweaver/smcfile"
)

var app = &command.Command{
	Usage: "arg-sim -k <nseqs> -L <len> [<options>]",
	Short: "simulate a random ancestral recombination graph",
	Long: `
Arg-sim simulates a starting genealogy for -k present-day sequences over a
region of -L base pairs, under Kingman's coalescent with recombination, and
writes the result in SMC format to <prefix>.smc.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var (
	nseqs     int
	length    int
	popsize   float64
	rho       float64
	mu        float64
	ntimes    int
	maxTime   float64
	outPrefix string
	seed      int64
	seedSet   bool
)

func setFlags(c *command.Command) {
	c.Flags().IntVar(&nseqs, "k", 0, "number of present-day sequences")
	c.Flags().IntVar(&length, "L", 0, "length of the simulated region, in base pairs")
	c.Flags().Float64Var(&popsize, "N", 1e4, "haploid effective population size")
	c.Flags().Float64Var(&rho, "r", 1.5e-8, "recombination rate per site per generation")
	c.Flags().Float64Var(&mu, "m", 2.5e-8, "mutation rate per site per generation")
	c.Flags().IntVar(&ntimes, "ntimes", 20, "number of discrete coalescence time points")
	c.Flags().Float64Var(&maxTime, "maxtime", 2e5, "maximum coalescence time, in generations")
	c.Flags().StringVar(&outPrefix, "o", "", "output file prefix (writes <prefix>.smc)")
	c.Flags().Int64Var(&seed, "x", 0, "random seed (default: nondeterministic)")
}

func run(c *command.Command, args []string) error {
	seedSet = seed != 0
	if nseqs < 2 {
		return c.UsageError("-k must be at least 2")
	}
	if length < 1 {
		return c.UsageError("-L must be at least 1")
	}
	if outPrefix == "" {
		return c.UsageError("expecting -o <prefix>")
	}

	grid, err := model.NewTimeGrid(ntimes, maxTime, model.Linear)
	if err != nil {
		return err
	}
	m := model.New(grid, popsize, mu, rho)
	if err := m.Validate(); err != nil {
		return err
	}

	var rng *rand.Rand
	if seedSet {
		rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	lt, err := coalescent.SimulateARG(m, nseqs, length, rng)
	if err != nil {
		return err
	}

	f, err := os.Create(outPrefix + ".smc")
	if err != nil {
		return err
	}
	defer f.Close()

	if err := smcfile.Write(f, lt, m, "sim"); err != nil {
		return err
	}
	fmt.Fprintf(c.Stdout(), "wrote %s.smc: %d sequences, %d blocks, %d bp\n", outPrefix, lt.NLeaves(), len(lt.Blocks), lt.EndCoord-lt.StartCoord)
	return nil
}

func main() {
	app.Main()
}
