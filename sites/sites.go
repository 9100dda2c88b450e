// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package sites implements the line-oriented sites-file format: a
// header naming the sequences and the chromosome region, followed by
// one line per variable position giving the observed base of every
// sequence at that position. Positions not listed come back as an
// all-N column and carry no emission information.
package sites

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/skfile/argweaver/emission"
	"github.com/skfile/argweaver/internal/argerr"
	"github.com/skfile/argweaver/model"
)

// Sites holds one chromosome region's worth of variable-site data: the
// sequence ids in column order, the region bounds, and the sparse set
// of positions that carry an observed column.
type Sites struct {
	Names    []int
	Chrom    string
	Start    int // 1-based, inclusive
	End      int // 1-based, inclusive
	Unphased bool

	positions []int
	columns   [][]byte
}

// New returns an empty Sites over [start, end] for the given sequence
// ids, in the column order they will appear in every data line.
func New(names []int, chrom string, start, end int) *Sites {
	ns := make([]int, len(names))
	copy(ns, names)
	return &Sites{Names: ns, Chrom: chrom, Start: start, End: end}
}

// NLeaves returns the number of sequences named in the header.
func (s *Sites) NLeaves() int { return len(s.Names) }

// Positions returns the sorted, strictly increasing positions that
// carry a recorded column.
func (s *Sites) Positions() []int { return s.positions }

func validBase(c byte, unphased bool) bool {
	switch c {
	case 'A', 'C', 'G', 'T', 'N':
		return true
	case '0', '1':
		return unphased
	default:
		return false
	}
}

// Add records the column observed at pos, a string of length
// len(s.Names) over {A,C,G,T,N} (plus {0,1} when s.Unphased). Rows
// must be added in strictly increasing pos order, matching the file
// format's own requirement.
func (s *Sites) Add(pos int, column string) error {
	if pos < s.Start || pos > s.End {
		return argerr.New(argerr.FormatError, fmt.Sprintf("sites: position %d outside region [%d,%d]", pos, s.Start, s.End))
	}
	if len(column) != len(s.Names) {
		return argerr.New(argerr.FormatError, fmt.Sprintf("sites: position %d: column has %d characters, want %d", pos, len(column), len(s.Names)))
	}
	if n := len(s.positions); n > 0 && pos <= s.positions[n-1] {
		return argerr.New(argerr.FormatError, fmt.Sprintf("sites: position %d is not strictly increasing after %d", pos, s.positions[n-1]))
	}
	for i := 0; i < len(column); i++ {
		if !validBase(column[i], s.Unphased) {
			return argerr.New(argerr.FormatError, fmt.Sprintf("sites: position %d: invalid base %q", pos, column[i]))
		}
	}
	s.positions = append(s.positions, pos)
	s.columns = append(s.columns, []byte(column))
	return nil
}

// find returns the index of pos in s.positions, or -1 if pos carries
// no recorded column.
func (s *Sites) find(pos int) int {
	i := sort.SearchInts(s.positions, pos)
	if i < len(s.positions) && s.positions[i] == pos {
		return i
	}
	return -1
}

// Read parses a sites file: a NAMES header line listing every sequence
// id, a REGION header line giving the chromosome and its bounds, then
// one "<pos>\t<column>" line per variable position. Both header lines
// must come before any data line; hand-parsed rather than
// forced through encoding/csv because the header lines are not
// tab-separated data rows.
func Read(r io.Reader) (*Sites, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var s *Sites
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "NAMES"):
			fields := strings.Fields(line)[1:]
			names := make([]int, len(fields))
			for i, f := range fields {
				id, err := strconv.Atoi(f)
				if err != nil {
					return nil, argerr.New(argerr.FormatError, fmt.Sprintf("sites: line %d: invalid sequence id %q", lineNo, f))
				}
				names[i] = id
			}
			if s == nil {
				s = &Sites{}
			}
			s.Names = names
		case strings.HasPrefix(line, "REGION"):
			fields := strings.Fields(line)
			if len(fields) != 4 {
				return nil, argerr.New(argerr.FormatError, fmt.Sprintf("sites: line %d: expecting \"REGION chrom start end\"", lineNo))
			}
			start, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, argerr.New(argerr.FormatError, fmt.Sprintf("sites: line %d: invalid start %q", lineNo, fields[2]))
			}
			end, err := strconv.Atoi(fields[3])
			if err != nil {
				return nil, argerr.New(argerr.FormatError, fmt.Sprintf("sites: line %d: invalid end %q", lineNo, fields[3]))
			}
			if s == nil {
				s = &Sites{}
			}
			s.Chrom = fields[1]
			s.Start = start
			s.End = end
		default:
			if s == nil || s.Names == nil || s.Chrom == "" {
				return nil, argerr.New(argerr.FormatError, fmt.Sprintf("sites: line %d: data line before NAMES/REGION headers", lineNo))
			}
			parts := strings.SplitN(line, "\t", 2)
			if len(parts) != 2 {
				return nil, argerr.New(argerr.FormatError, fmt.Sprintf("sites: line %d: expecting \"pos\\tcolumn\"", lineNo))
			}
			pos, err := strconv.Atoi(parts[0])
			if err != nil {
				return nil, argerr.New(argerr.FormatError, fmt.Sprintf("sites: line %d: invalid position %q", lineNo, parts[0]))
			}
			if err := s.Add(pos, parts[1]); err != nil {
				return nil, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, argerr.Wrap(argerr.IoError, "sites: reading", err)
	}
	if s == nil || s.Names == nil {
		return nil, argerr.New(argerr.FormatError, "sites: missing NAMES header")
	}
	if s.Chrom == "" {
		return nil, argerr.New(argerr.FormatError, "sites: missing REGION header")
	}
	return s, nil
}

// Write writes s back out in the sites-file format.
func (s *Sites) Write(w io.Writer) (err error) {
	bw := bufio.NewWriter(w)

	fmt.Fprint(bw, "NAMES")
	for _, id := range s.Names {
		fmt.Fprintf(bw, " %d", id)
	}
	fmt.Fprint(bw, "\n")
	fmt.Fprintf(bw, "REGION %s %d %d\n", s.Chrom, s.Start, s.End)
	for i, pos := range s.positions {
		fmt.Fprintf(bw, "%d\t%s\n", pos, s.columns[i])
	}

	if err := bw.Flush(); err != nil {
		return argerr.Wrap(argerr.IoError, "sites: writing", err)
	}
	return nil
}

// Mask overwrites every recorded column whose position falls inside
// one of rm's intervals with all-N, the same convention an unlisted
// position already carries. rm's rate values are ignored; only
// interval membership matters.
func (s *Sites) Mask(rm *model.RateMap) {
	blank := make([]byte, len(s.Names))
	for i := range blank {
		blank[i] = 'N'
	}
	for i, pos := range s.positions {
		if rm.Find(pos, -1) >= 0 {
			copy(s.columns[i], blank)
		}
	}
}

// FullColumn returns the observed bases at the 0-based chromosome
// position pos, ordered by ids, for scoring a tree whose leaves are
// exactly ids (no thread held out). Positions with no recorded column
// come back all-N, same as an unlisted position in View.Column.
func (s *Sites) FullColumn(ids []int, pos int) emission.Column {
	index := make(map[int]int, len(s.Names))
	for i, id := range s.Names {
		index[id] = i
	}
	col := make(emission.Column, len(ids))
	filePos := pos + 1
	i := s.find(filePos)
	if i < 0 {
		for j := range col {
			col[j] = 'N'
		}
		return col
	}
	row := s.columns[i]
	for j, id := range ids {
		if idx, ok := index[id]; ok {
			col[j] = row[idx]
		} else {
			col[j] = 'N'
		}
	}
	return col
}

// View binds a concrete leaf ordering to s, adapting it to
// sampler.Sites for a thread being sampled out of the sequences named
// in s.
type View struct {
	s           *Sites
	existingIdx []int
	threadIdx   int
}

// ForThread returns a View of s over existingIDs (the leaf order of an
// argtrees.LocalTrees, i.e. its SeqIDs) plus the id of the thread being
// sampled. Every id in existingIDs and threadID must appear in
// s.Names.
func (s *Sites) ForThread(existingIDs []int, threadID int) (*View, error) {
	index := make(map[int]int, len(s.Names))
	for i, id := range s.Names {
		index[id] = i
	}
	existingIdx := make([]int, len(existingIDs))
	for i, id := range existingIDs {
		idx, ok := index[id]
		if !ok {
			return nil, argerr.New(argerr.ConfigError, fmt.Sprintf("sites: sequence id %d not present in sites file", id))
		}
		existingIdx[i] = idx
	}
	threadIdx, ok := index[threadID]
	if !ok {
		return nil, argerr.New(argerr.ConfigError, fmt.Sprintf("sites: thread sequence id %d not present in sites file", threadID))
	}
	return &View{s: s, existingIdx: existingIdx, threadIdx: threadIdx}, nil
}

// Column implements sampler.Sites. pos is the 0-based chromosome
// coordinate used by argtrees.LocalTrees; it is translated to the
// file's 1-based convention before lookup. Positions with no recorded
// column are reported as all-N, which emission.Column.Masked treats as
// carrying no information.
func (v *View) Column(pos int) (emission.Column, byte) {
	filePos := pos + 1
	i := v.s.find(filePos)
	if i < 0 {
		col := make(emission.Column, len(v.existingIdx))
		for j := range col {
			col[j] = 'N'
		}
		return col, 'N'
	}
	row := v.s.columns[i]
	col := make(emission.Column, len(v.existingIdx))
	for j, idx := range v.existingIdx {
		col[j] = row[idx]
	}
	return col, row[v.threadIdx]
}
