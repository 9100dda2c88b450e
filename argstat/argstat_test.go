// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package argstat_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/skfile/argweaver/argstat"
)

func TestWriterHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	w, err := argstat.NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WriteRow(argstat.Row{Iter: 1, Joint: -10.5, Likelihood: -8.5, Prior: -2, Recombs: 3, ArgLen: 120.25}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\r\n"), "\r\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (header + 1 row): %q", len(lines), buf.String())
	}
	if lines[0] != "iter\tjoint\tlikelihood\tprior\trecombs\targlen" {
		t.Errorf("header: got %q", lines[0])
	}
	if lines[1] != "1\t-10.5\t-8.5\t-2\t3\t120.25" {
		t.Errorf("row: got %q", lines[1])
	}
}
