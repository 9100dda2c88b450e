// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package model

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Param is a keyword identifying a scalar Model parameter in a
// parameter file.
type Param string

// Valid parameters understood by [ReadParams].
const (
	ParamMu       Param = "mu"
	ParamRho      Param = "rho"
	ParamNTimes   Param = "ntimes"
	ParamMaxTime  Param = "maxtime"
	ParamInfSites Param = "infsites_penalty"
)

var paramHeader = []string{"parameter", "value"}

// ReadParams reads scalar model parameters (mu, rho, ntimes, maxtime,
// infsites_penalty) from a "parameter\tvalue" TSV stream, in the same
// header-checked, lowercased-keyword style walkparam.Read uses. Popsize
// and the rate maps are not part of this format; they are read
// separately (constant popsize is a CLI flag, per-interval popsize and
// rate maps are their own files).
func ReadParams(r io.Reader) (mu, rho, maxTime float64, ntimes int, infSitesPenalty float64, err error) {
	tsv := csv.NewReader(r)
	tsv.Comma = '\t'
	tsv.Comment = '#'

	head, err := tsv.Read()
	if err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("on header: %v", err)
	}
	fields := make(map[string]int, len(head))
	for i, h := range head {
		fields[strings.ToLower(h)] = i
	}
	for _, h := range paramHeader {
		if _, ok := fields[h]; !ok {
			return 0, 0, 0, 0, 0, fmt.Errorf("expecting field %q", h)
		}
	}

	for {
		row, rerr := tsv.Read()
		if errors.Is(rerr, io.EOF) {
			break
		}
		ln, _ := tsv.FieldPos(0)
		if rerr != nil {
			return 0, 0, 0, 0, 0, fmt.Errorf("on row %d: %v", ln, rerr)
		}

		p := Param(strings.ToLower(row[fields["parameter"]]))
		v := row[fields["value"]]
		switch p {
		case ParamMu:
			mu, err = strconv.ParseFloat(v, 64)
		case ParamRho:
			rho, err = strconv.ParseFloat(v, 64)
		case ParamMaxTime:
			maxTime, err = strconv.ParseFloat(v, 64)
		case ParamNTimes:
			ntimes, err = strconv.Atoi(v)
		case ParamInfSites:
			infSitesPenalty, err = strconv.ParseFloat(v, 64)
		}
		if err != nil {
			return 0, 0, 0, 0, 0, fmt.Errorf("on row %d, field %q: %v", ln, "value", err)
		}
	}
	return mu, rho, maxTime, ntimes, infSitesPenalty, nil
}

// WriteParams writes the scalar model parameters of m as a
// "parameter\tvalue" TSV stream.
func WriteParams(w io.Writer, m *Model) error {
	tsv := csv.NewWriter(w)
	tsv.Comma = '\t'
	tsv.UseCRLF = true

	if err := tsv.Write(paramHeader); err != nil {
		return err
	}
	rows := [][2]string{
		{string(ParamMu), strconv.FormatFloat(m.Mu, 'g', -1, 64)},
		{string(ParamRho), strconv.FormatFloat(m.Rho, 'g', -1, 64)},
		{string(ParamNTimes), strconv.Itoa(m.Grid.NTimes())},
		{string(ParamInfSites), strconv.FormatFloat(m.InfSitesPenalty, 'g', -1, 64)},
	}
	for _, row := range rows {
		if err := tsv.Write(row[:]); err != nil {
			return fmt.Errorf("when writing data: %v", err)
		}
	}
	tsv.Flush()
	return tsv.Error()
}
