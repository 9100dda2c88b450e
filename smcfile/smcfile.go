// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package smcfile serializes a LocalTrees sequence to and from the SMC
// text format: a NAMES/REGION header followed by one TREE line (the
// block's tree in Newick) and an optional SPR line (the operation that
// produced it from the previous block) per block.
package smcfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/skfile/argweaver/argtrees"
	"github.com/skfile/argweaver/internal/argerr"
	"github.com/skfile/argweaver/model"
	"github.com/skfile/argweaver/tree"
)

// Write serializes lt to the SMC format. chrom is recorded in the
// REGION header, whose bounds are written 1-based and inclusive; TREE
// records carry lt's own 0-based, half-open block bounds.
func Write(w io.Writer, lt *argtrees.LocalTrees, m *model.Model, chrom string) (err error) {
	bw := bufio.NewWriter(w)

	fmt.Fprint(bw, "NAMES")
	for _, id := range lt.SeqIDs {
		fmt.Fprintf(bw, " %d", id)
	}
	fmt.Fprint(bw, "\n")
	fmt.Fprintf(bw, "REGION %s %d %d\n", chrom, lt.StartCoord+1, lt.EndCoord)

	pos := lt.StartCoord
	for i, b := range lt.Blocks {
		end := pos + int(b.BlockLen)
		nwk, err := encodeNewick(b.Tree, lt.SeqIDs, m.Grid)
		if err != nil {
			return argerr.Wrap(argerr.InvariantViolation, fmt.Sprintf("smcfile: block %d", i), err)
		}
		fmt.Fprintf(bw, "TREE %d %d %s\n", pos, end, nwk)
		if !b.Spr.IsNull() {
			fmt.Fprintf(bw, "SPR %d %d %d %d %d\n", pos, b.Spr.RecombNode, b.Spr.RecombTime, b.Spr.CoalNode, b.Spr.CoalTime)
		}
		pos = end
	}

	if err := bw.Flush(); err != nil {
		return argerr.Wrap(argerr.IoError, "smcfile: writing", err)
	}
	return nil
}

// Read parses an SMC file, reconstructing a LocalTrees sequence
// against m's time grid (generations are snapped back to grid
// indices; the reader requires an exact match, which always holds for
// a file this package itself wrote). It returns the chromosome name
// from the REGION header.
func Read(r io.Reader, m *model.Model) (lt *argtrees.LocalTrees, chrom string, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var seqIDs []int
	var pendingTree *tree.LocalTree
	var pendingStart, pendingEnd int
	havePending := false

	flush := func(spr tree.Spr, hasSpr bool) error {
		if !havePending {
			return nil
		}
		var useSpr tree.Spr
		var mapping []int32
		if len(lt.Blocks) == 0 {
			useSpr = tree.NullSpr()
		} else {
			mapping = tree.MapCongruentTrees(lt.Blocks[len(lt.Blocks)-1].Tree, seqIDs, pendingTree, seqIDs)
			if hasSpr {
				useSpr = spr
			} else {
				useSpr = tree.NullSpr()
			}
		}
		if err := lt.Append(pendingTree, useSpr, mapping, uint32(pendingEnd-pendingStart)); err != nil {
			return err
		}
		havePending = false
		return nil
	}

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "NAMES":
			seqIDs = make([]int, len(fields)-1)
			for i, f := range fields[1:] {
				id, err := strconv.Atoi(f)
				if err != nil {
					return nil, "", argerr.New(argerr.FormatError, fmt.Sprintf("smcfile: line %d: invalid sequence id %q", lineNo, f))
				}
				seqIDs[i] = id
			}
		case "REGION":
			if len(fields) != 4 {
				return nil, "", argerr.New(argerr.FormatError, fmt.Sprintf("smcfile: line %d: expecting \"REGION chrom start end\"", lineNo))
			}
			if seqIDs == nil {
				return nil, "", argerr.New(argerr.FormatError, fmt.Sprintf("smcfile: line %d: REGION before NAMES", lineNo))
			}
			chrom = fields[1]
			start, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, "", argerr.New(argerr.FormatError, fmt.Sprintf("smcfile: line %d: invalid start %q", lineNo, fields[2]))
			}
			lt = argtrees.New(start-1, seqIDs)
		case "TREE":
			if lt == nil {
				return nil, "", argerr.New(argerr.FormatError, fmt.Sprintf("smcfile: line %d: TREE before NAMES/REGION", lineNo))
			}
			if len(fields) < 4 {
				return nil, "", argerr.New(argerr.FormatError, fmt.Sprintf("smcfile: line %d: expecting \"TREE start end newick\"", lineNo))
			}
			if err := flush(tree.Spr{}, false); err != nil {
				return nil, "", err
			}
			bs, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, "", argerr.New(argerr.FormatError, fmt.Sprintf("smcfile: line %d: invalid block start %q", lineNo, fields[1]))
			}
			be, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, "", argerr.New(argerr.FormatError, fmt.Sprintf("smcfile: line %d: invalid block end %q", lineNo, fields[2]))
			}
			nwk := strings.Join(fields[3:], " ")
			t, err := decodeNewick(nwk, seqIDs, m.Grid)
			if err != nil {
				return nil, "", argerr.Wrap(argerr.FormatError, fmt.Sprintf("smcfile: line %d", lineNo), err)
			}
			if err := t.Validate(m.NTimes()); err != nil {
				return nil, "", argerr.Wrap(argerr.InvariantViolation, fmt.Sprintf("smcfile: line %d", lineNo), err)
			}
			pendingTree, pendingStart, pendingEnd, havePending = t, bs, be, true
		case "SPR":
			if !havePending {
				return nil, "", argerr.New(argerr.FormatError, fmt.Sprintf("smcfile: line %d: SPR with no preceding TREE", lineNo))
			}
			if len(fields) != 6 {
				return nil, "", argerr.New(argerr.FormatError, fmt.Sprintf("smcfile: line %d: expecting \"SPR pos recomb_node recomb_time coal_node coal_time\"", lineNo))
			}
			vals := make([]int, 4)
			for i, f := range fields[2:] {
				v, err := strconv.Atoi(f)
				if err != nil {
					return nil, "", argerr.New(argerr.FormatError, fmt.Sprintf("smcfile: line %d: invalid field %q", lineNo, f))
				}
				vals[i] = v
			}
			spr := tree.Spr{RecombNode: int32(vals[0]), RecombTime: vals[1], CoalNode: int32(vals[2]), CoalTime: vals[3]}
			if err := flush(spr, true); err != nil {
				return nil, "", err
			}
		default:
			return nil, "", argerr.New(argerr.FormatError, fmt.Sprintf("smcfile: line %d: unrecognized record %q", lineNo, fields[0]))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, "", argerr.Wrap(argerr.IoError, "smcfile: reading", err)
	}
	if err := flush(tree.Spr{}, false); err != nil {
		return nil, "", err
	}
	if lt == nil {
		return nil, "", argerr.New(argerr.FormatError, "smcfile: missing NAMES/REGION header")
	}
	return lt, chrom, nil
}

// encodeNewick renders t as Newick text, with leaf names taken from
// seqIDs (indexed the same as t's leaf ids) and branch lengths the
// generations spanned by grid, per node age. Every leaf is assumed
// present-day (age 0); the decoder relies on this to recover absolute
// ages from root-to-leaf cumulative branch length alone.
func encodeNewick(t *tree.LocalTree, seqIDs []int, grid model.TimeGrid) (string, error) {
	var buf strings.Builder
	var write func(v int32) error
	write = func(v int32) error {
		if t.IsLeaf(v) {
			if int(v) >= len(seqIDs) {
				return fmt.Errorf("leaf %d has no sequence id", v)
			}
			buf.WriteString(strconv.Itoa(seqIDs[v]))
		} else {
			buf.WriteByte('(')
			if err := write(t.Child(v, 0)); err != nil {
				return err
			}
			buf.WriteByte(',')
			if err := write(t.Child(v, 1)); err != nil {
				return err
			}
			buf.WriteByte(')')
		}
		if !t.IsRoot(v) {
			length := grid.T(t.Age(t.Parent(v))) - grid.T(t.Age(v))
			buf.WriteByte(':')
			buf.WriteString(strconv.FormatFloat(length, 'g', -1, 64))
		}
		return nil
	}
	if err := write(t.Root()); err != nil {
		return "", err
	}
	buf.WriteByte(';')
	return buf.String(), nil
}

type nwkNode struct {
	name     string
	children []*nwkNode
	length   float64
	hasLen   bool
}

func parseNewick(s string) (*nwkNode, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, ";") {
		return nil, fmt.Errorf("newick: missing terminating ';'")
	}
	s = s[:len(s)-1]
	pos := 0

	var parse func() (*nwkNode, error)
	parse = func() (*nwkNode, error) {
		n := &nwkNode{}
		if pos < len(s) && s[pos] == '(' {
			pos++
			for {
				child, err := parse()
				if err != nil {
					return nil, err
				}
				n.children = append(n.children, child)
				if pos >= len(s) {
					return nil, fmt.Errorf("newick: unexpected end of input")
				}
				if s[pos] == ',' {
					pos++
					continue
				}
				if s[pos] == ')' {
					pos++
					break
				}
				return nil, fmt.Errorf("newick: expected ',' or ')' at byte %d", pos)
			}
		}
		start := pos
		for pos < len(s) && s[pos] != ':' && s[pos] != ',' && s[pos] != ')' {
			pos++
		}
		n.name = s[start:pos]
		if pos < len(s) && s[pos] == ':' {
			pos++
			lstart := pos
			for pos < len(s) && s[pos] != ',' && s[pos] != ')' {
				pos++
			}
			v, err := strconv.ParseFloat(s[lstart:pos], 64)
			if err != nil {
				return nil, fmt.Errorf("newick: invalid branch length %q", s[lstart:pos])
			}
			n.length, n.hasLen = v, true
		}
		return n, nil
	}

	root, err := parse()
	if err != nil {
		return nil, err
	}
	if pos != len(s) {
		return nil, fmt.Errorf("newick: trailing data at byte %d", pos)
	}
	return root, nil
}

// decodeNewick parses s back into a LocalTree. Node ids are assigned
// in the same convention the rest of this module uses: leaves keep
// the position of their name in seqIDs, internal nodes are numbered in
// postorder starting at len(seqIDs), so a tree this package wrote and
// then read back carries the same node ids it started with.
func decodeNewick(s string, seqIDs []int, grid model.TimeGrid) (*tree.LocalTree, error) {
	root, err := parseNewick(s)
	if err != nil {
		return nil, err
	}

	nameToLeaf := make(map[string]int32, len(seqIDs))
	for i, id := range seqIDs {
		nameToLeaf[strconv.Itoa(id)] = int32(i)
	}

	n := len(seqIDs)
	t := tree.New(n)

	leafDepth := make(map[int32]float64, n)
	var depth func(nd *nwkNode, parentDepth float64) error
	depth = func(nd *nwkNode, parentDepth float64) error {
		d := parentDepth
		if nd.hasLen {
			d = parentDepth + nd.length
		}
		if len(nd.children) == 0 {
			id, ok := nameToLeaf[nd.name]
			if !ok {
				return fmt.Errorf("newick: unknown leaf name %q", nd.name)
			}
			leafDepth[id] = d
			return nil
		}
		for _, c := range nd.children {
			if err := depth(c, d); err != nil {
				return err
			}
		}
		return nil
	}
	if err := depth(root, 0); err != nil {
		return nil, err
	}
	if len(leafDepth) != n {
		return nil, fmt.Errorf("newick: expected %d leaves, found %d", n, len(leafDepth))
	}
	rootAgeGen := leafDepth[0]
	for id, d := range leafDepth {
		if math.Abs(d-rootAgeGen) > 1e-6 {
			return nil, fmt.Errorf("newick: leaf %d depth %g inconsistent with leaf 0 depth %g; ancient (non-present-day) leaves are not supported by this round trip", id, d, rootAgeGen)
		}
	}

	pts := grid.Points()
	ageOf := func(d float64) (int, error) {
		gen := rootAgeGen - d
		i := sort.Search(len(pts), func(i int) bool { return pts[i] >= gen-1e-6 })
		if i < len(pts) && math.Abs(pts[i]-gen) < 1e-6 {
			return i, nil
		}
		return 0, fmt.Errorf("newick: age %g generations does not match any grid point", gen)
	}

	next := int32(n)
	var build func(nd *nwkNode, parentDepth float64) (int32, error)
	build = func(nd *nwkNode, parentDepth float64) (int32, error) {
		d := parentDepth
		if nd.hasLen {
			d = parentDepth + nd.length
		}
		if len(nd.children) == 0 {
			id := nameToLeaf[nd.name]
			t.SetAge(id, 0)
			return id, nil
		}
		if len(nd.children) != 2 {
			return 0, fmt.Errorf("newick: internal node has %d children, want 2", len(nd.children))
		}
		c0, err := build(nd.children[0], d)
		if err != nil {
			return 0, err
		}
		c1, err := build(nd.children[1], d)
		if err != nil {
			return 0, err
		}
		age, err := ageOf(d)
		if err != nil {
			return 0, err
		}
		id := next
		next++
		t.SetChildren(id, c0, c1)
		t.SetParent(c0, id)
		t.SetParent(c1, id)
		t.SetAge(id, age)
		return id, nil
	}
	root32, err := build(root, 0)
	if err != nil {
		return nil, err
	}
	t.SetRoot(root32)
	return t, nil
}
