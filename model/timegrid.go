// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package model implements the discretized time grid and the
// per-interval demographic and mutation/recombination rate parameters
// shared by every local tree in an ARG.
package model

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// GridMode selects how the half-step coalescent grid is placed between
// two consecutive time points.
type GridMode int

const (
	// Linear places coal_dt points evenly between t[i] and t[i+1].
	Linear GridMode = iota

	// Exponential places coal_dt points at the quantiles of an
	// exponential distribution truncated to (t[i], t[i+1]), so that
	// probability mass concentrates near t[i].
	Exponential
)

// TimeGrid is a strictly increasing sequence of generations t[0..K-1]
// with t[0] == 0, together with its derived step ([Dt]) and half-step
// coalescent ([CoalDt]) vectors.
//
// A TimeGrid is immutable after construction: [Model] views share one
// TimeGrid value instead of copying it, following the same
// "read-only shared, owned by nobody in particular" style used for
// [Model.popsize] (see Model.Local).
type TimeGrid struct {
	t      []float64
	dt     []float64
	coalDt []float64
}

// NewTimeGrid builds a TimeGrid of ntimes points between 0 and maxTime
// generations. ntimes must be at least 2. The spacing of the points
// themselves is always exponential in generations (more resolution near
// the present, as in the source coalescent HMM literature); mode governs
// only how the half-step coalescent grid is interleaved between points.
func NewTimeGrid(ntimes int, maxTime float64, mode GridMode) (TimeGrid, error) {
	if ntimes < 2 {
		return TimeGrid{}, fmt.Errorf("argweaver/model: ntimes must be at least 2, got %d", ntimes)
	}
	if maxTime <= 0 {
		return TimeGrid{}, fmt.Errorf("argweaver/model: maxTime must be positive, got %g", maxTime)
	}

	t := make([]float64, ntimes)
	// exponential spacing: t[i] = maxTime * (exp(i*c)-1) / (exp((ntimes-1)*c)-1)
	const c = 0.5
	denom := math.Expm1(float64(ntimes-1) * c)
	for i := 1; i < ntimes; i++ {
		t[i] = maxTime * math.Expm1(float64(i)*c) / denom
	}

	return newTimeGridFromPoints(t, mode)
}

// newTimeGridFromPoints validates and wraps an explicit set of points,
// deriving Dt and CoalDt.
func newTimeGridFromPoints(t []float64, mode GridMode) (TimeGrid, error) {
	if len(t) < 2 {
		return TimeGrid{}, fmt.Errorf("argweaver/model: time grid needs at least 2 points")
	}
	if t[0] != 0 {
		return TimeGrid{}, fmt.Errorf("argweaver/model: time grid must start at 0, got %g", t[0])
	}
	for i := 1; i < len(t); i++ {
		if t[i] <= t[i-1] {
			return TimeGrid{}, fmt.Errorf("argweaver/model: time grid must be strictly increasing (t[%d]=%g, t[%d]=%g)", i-1, t[i-1], i, t[i])
		}
	}

	k := len(t)
	dt := make([]float64, k)
	for i := 0; i < k-1; i++ {
		dt[i] = t[i+1] - t[i]
	}
	dt[k-1] = math.Inf(1)

	coalDt := make([]float64, 2*k)
	for i := 0; i < k-1; i++ {
		switch mode {
		case Exponential:
			rate := 2.0 / dt[i]
			exp := distuv.Exponential{Rate: rate}
			coalDt[2*i] = t[i] + quantileWithin(exp, 0.25, dt[i])
			coalDt[2*i+1] = t[i] + quantileWithin(exp, 0.75, dt[i])
		default:
			coalDt[2*i] = t[i] + dt[i]*0.25
			coalDt[2*i+1] = t[i] + dt[i]*0.75
		}
	}
	coalDt[2*(k-1)] = t[k-1]
	coalDt[2*(k-1)+1] = math.Inf(1)

	return TimeGrid{
		t:      slices.Clone(t),
		dt:     dt,
		coalDt: coalDt,
	}, nil
}

// quantileWithin returns the quantile p of an exponential distribution
// truncated to [0, width], by inverse-CDF sampling against the
// renormalized truncated mass.
func quantileWithin(exp distuv.Exponential, p, width float64) float64 {
	cdfWidth := exp.CDF(width)
	if cdfWidth <= 0 {
		return width * p
	}
	return exp.Quantile(p * cdfWidth)
}

// NTimes returns the number of points in the grid (K).
func (g TimeGrid) NTimes() int { return len(g.t) }

// T returns the time (in generations) of grid point i.
func (g TimeGrid) T(i int) float64 { return g.t[i] }

// Dt returns t[i+1]-t[i], or +Inf for the last interval.
func (g TimeGrid) Dt(i int) float64 { return g.dt[i] }

// CoalDt returns the half-step coalescent grid point j, j in [0,2K-1].
func (g TimeGrid) CoalDt(j int) float64 { return g.coalDt[j] }

// Points returns the full grid as a read-only slice.
func (g TimeGrid) Points() []float64 { return g.t }

// ReadTimeGrid reads a time grid from a TSV stream: one generation value
// (a non-negative float) per line, strictly increasing, with the same
// comment-prefixed, blank-line-tolerant style timestage.Read uses for
// time stages.
func ReadTimeGrid(r io.Reader, mode GridMode) (TimeGrid, error) {
	tsv := csv.NewReader(r)
	tsv.Comma = '\t'
	tsv.Comment = '#'
	tsv.FieldsPerRecord = -1

	var pts []float64
	for {
		row, err := tsv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tsv.FieldPos(0)
		if err != nil {
			return TimeGrid{}, fmt.Errorf("on line %d: %v", ln, err)
		}
		v := strings.TrimSpace(row[0])
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return TimeGrid{}, fmt.Errorf("on line %d: read %q: %v", ln, v, err)
		}
		pts = append(pts, f)
	}
	return newTimeGridFromPoints(pts, mode)
}

// Write writes the time grid to a tab-delimited stream, one generation
// value per line, in the same bufio+csv.Writer+Flush+Error sequence
// timestage.Write uses.
func (g TimeGrid) Write(w io.Writer) (err error) {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# time grid\n")
	fmt.Fprintf(bw, "# data save on: %s\n", time.Now().Format(time.RFC3339))

	tsv := csv.NewWriter(bw)
	tsv.Comma = '\t'
	tsv.UseCRLF = true

	for _, v := range g.t {
		row := []string{strconv.FormatFloat(v, 'g', -1, 64)}
		if err := tsv.Write(row); err != nil {
			return err
		}
	}
	tsv.Flush()
	if err := tsv.Error(); err != nil {
		return fmt.Errorf("while writing data: %v", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("while writing data: %v", err)
	}
	return nil
}
