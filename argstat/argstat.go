// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package argstat writes the per-iteration statistics stream produced
// by arg-sample: joint probability, likelihood, prior, recombination
// count, and total ARG branch length, one TSV row per sampled
// iteration.
package argstat

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/skfile/argweaver/internal/argerr"
)

// Row is one iteration's worth of statistics.
type Row struct {
	Iter       int
	Joint      float64
	Likelihood float64
	Prior      float64
	Recombs    int
	ArgLen     float64
}

// Writer appends Row values to a tab-separated stream, header first.
type Writer struct {
	bw  *bufio.Writer
	tsv *csv.Writer
}

// NewWriter wraps w and immediately writes the header line.
func NewWriter(w io.Writer) (*Writer, error) {
	bw := bufio.NewWriter(w)
	tsv := csv.NewWriter(bw)
	tsv.Comma = '\t'
	tsv.UseCRLF = true

	header := []string{"iter", "joint", "likelihood", "prior", "recombs", "arglen"}
	if err := tsv.Write(header); err != nil {
		return nil, argerr.Wrap(argerr.IoError, "argstat: writing header", err)
	}
	return &Writer{bw: bw, tsv: tsv}, nil
}

// WriteRow appends one statistics row.
func (w *Writer) WriteRow(r Row) error {
	row := []string{
		strconv.Itoa(r.Iter),
		strconv.FormatFloat(r.Joint, 'g', -1, 64),
		strconv.FormatFloat(r.Likelihood, 'g', -1, 64),
		strconv.FormatFloat(r.Prior, 'g', -1, 64),
		strconv.Itoa(r.Recombs),
		strconv.FormatFloat(r.ArgLen, 'g', -1, 64),
	}
	if err := w.tsv.Write(row); err != nil {
		return argerr.Wrap(argerr.IoError, "argstat: writing row", err)
	}
	return nil
}

// Flush flushes both the CSV writer and its underlying bufio.Writer,
// reporting any buffered write error.
func (w *Writer) Flush() error {
	w.tsv.Flush()
	if err := w.tsv.Error(); err != nil {
		return argerr.Wrap(argerr.IoError, "argstat: flushing", err)
	}
	if err := w.bw.Flush(); err != nil {
		return argerr.Wrap(argerr.IoError, "argstat: flushing", err)
	}
	return nil
}
