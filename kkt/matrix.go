// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kkt implements the sparse KKT matrix assembler (spec.md §4.2),
// the direct LDLᵀ engine with iterative refinement (§4.3), and the KKT
// system driver's reduced solves (§4.4).
package kkt

// Matrix is a symmetric indefinite sparse matrix stored as the upper
// triangle in compressed-sparse-column form. The nonzero pattern is fixed
// once NewFromEntries has built it; only Vals changes afterwards (spec.md
// §3, §9).
type Matrix struct {
	N      int
	ColPtr []int
	RowIdx []int
	Vals   []float64
}

// CSCEntry is a single upper-triangle pending nonzero (row <= col)
// gathered during assembly, before the entries are grouped by column and
// compacted into Matrix's CSC arrays.
type CSCEntry struct {
	Row, Col int
}

// NewFromEntries builds a Matrix's fixed pattern from a deduplicated entry
// list in any order: entries are grouped by column, and within a column
// rows keep their input order (they are not sorted). Duplicate (row,col)
// pairs are not merged here - Assemble's add helper guarantees each
// logical slot maps to a single entry before calling this.
func NewFromEntries(n int, entries []CSCEntry) *Matrix {
	m := &Matrix{N: n, ColPtr: make([]int, n+1), Vals: make([]float64, len(entries))}
	m.RowIdx = make([]int, len(entries))
	for _, e := range entries {
		m.ColPtr[e.Col+1]++
	}
	for c := 0; c < n; c++ {
		m.ColPtr[c+1] += m.ColPtr[c]
	}
	next := append([]int(nil), m.ColPtr...)
	for _, e := range entries {
		idx := next[e.Col]
		m.RowIdx[idx] = e.Row
		next[e.Col]++
	}
	return m
}

// IndexOf returns the Vals index for (row,col), or -1 if absent. Used only
// at assembly time to build the index map; the hot path never searches.
func (m *Matrix) IndexOf(row, col int) int {
	if row > col {
		row, col = col, row
	}
	for k := m.ColPtr[col]; k < m.ColPtr[col+1]; k++ {
		if m.RowIdx[k] == row {
			return k
		}
	}
	return -1
}

// MulVec computes y = K x using the symmetric view of the stored upper
// triangle (spec.md §4.3's refinement residual requires this, not just
// the stored triangle).
func (m *Matrix) MulVec(y, x []float64) {
	for i := range y {
		y[i] = 0
	}
	for col := 0; col < m.N; col++ {
		for k := m.ColPtr[col]; k < m.ColPtr[col+1]; k++ {
			row := m.RowIdx[k]
			v := m.Vals[k]
			y[row] += v * x[col]
			if row != col {
				y[col] += v * x[row]
			}
		}
	}
}

// Dense materializes the symmetric matrix densely; used by the reference
// LDL backend (ldl.go) which factorizes densely behind the sparse
// update/solve interface.
func (m *Matrix) Dense() [][]float64 {
	d := make([][]float64, m.N)
	for i := range d {
		d[i] = make([]float64, m.N)
	}
	for col := 0; col < m.N; col++ {
		for k := m.ColPtr[col]; k < m.ColPtr[col+1]; k++ {
			row := m.RowIdx[k]
			d[row][col] = m.Vals[k]
			d[col][row] = m.Vals[k]
		}
	}
	return d
}
