// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package model

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// RateMap is an ordered sequence of non-overlapping half-open intervals
// [Start,End) on a single chromosome, each mapped to a rate value (a
// per-generation-per-site mutation or recombination rate). It backs both
// Model.Mutmap and Model.Recombmap.
type RateMap struct {
	chrom     string
	intervals []rateInterval
}

type rateInterval struct {
	start, end int
	rate       float64
}

// NewRateMap returns an empty rate map for the given chromosome.
func NewRateMap(chrom string) *RateMap {
	return &RateMap{chrom: chrom}
}

// Chrom returns the chromosome this map covers.
func (m *RateMap) Chrom() string { return m.chrom }

// Add inserts a half-open interval [start,end) -> rate. Add requires
// intervals to be added in non-decreasing start order and rejects
// overlap with the previously added interval; this matches the "sorted
// by start, non-overlapping" contract of the map file format.
func (m *RateMap) Add(start, end int, rate float64) error {
	if end <= start {
		return fmt.Errorf("argweaver/model: empty or inverted interval [%d,%d)", start, end)
	}
	if n := len(m.intervals); n > 0 {
		prev := m.intervals[n-1]
		if start < prev.end {
			return fmt.Errorf("argweaver/model: interval [%d,%d) starts before the end of previous interval [%d,%d)", start, end, prev.start, prev.end)
		}
	}
	m.intervals = append(m.intervals, rateInterval{start: start, end: end, rate: rate})
	return nil
}

// Find returns the rate at pos, or def if pos is not covered by any
// interval. Find runs in O(log n) via binary search over interval
// ends.
func (m *RateMap) Find(pos int, def float64) float64 {
	i := sort.Search(len(m.intervals), func(i int) bool {
		return m.intervals[i].end > pos
	})
	if i == len(m.intervals) {
		return def
	}
	iv := m.intervals[i]
	if pos < iv.start || pos >= iv.end {
		return def
	}
	return iv.rate
}

// ReadRateMap reads a TSV rate-map file: "chrom start end rate",
// half-open, sorted by start, one chromosome per call. Rows for a
// chromosome other than chrom are skipped, following the
// project package's convention of tolerating extra columns/rows in a
// shared-format file.
func ReadRateMap(r io.Reader, chrom string) (*RateMap, error) {
	tab := csv.NewReader(r)
	tab.Comma = '\t'
	tab.Comment = '#'
	tab.FieldsPerRecord = -1

	m := NewRateMap(chrom)
	for {
		row, err := tab.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tab.FieldPos(0)
		if err != nil {
			return nil, fmt.Errorf("on line %d: %v", ln, err)
		}
		if len(row) < 4 {
			return nil, fmt.Errorf("on line %d: expecting 4 fields, got %d", ln, len(row))
		}
		c := strings.TrimSpace(row[0])
		if c != chrom {
			continue
		}
		start, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("on line %d: field \"start\": %v", ln, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, fmt.Errorf("on line %d: field \"end\": %v", ln, err)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("on line %d: field \"rate\": %v", ln, err)
		}
		if err := m.Add(start, end, rate); err != nil {
			return nil, fmt.Errorf("on line %d: %v", ln, err)
		}
	}
	return m, nil
}

// Write writes the rate map as a TSV "chrom start end rate" file.
func (m *RateMap) Write(w io.Writer) error {
	tab := csv.NewWriter(w)
	tab.Comma = '\t'
	tab.UseCRLF = true

	for _, iv := range m.intervals {
		row := []string{
			m.chrom,
			strconv.Itoa(iv.start),
			strconv.Itoa(iv.end),
			strconv.FormatFloat(iv.rate, 'g', -1, 64),
		}
		if err := tab.Write(row); err != nil {
			return fmt.Errorf("when writing data: %v", err)
		}
	}
	tab.Flush()
	if err := tab.Error(); err != nil {
		return fmt.Errorf("when writing data: %v", err)
	}
	return nil
}
