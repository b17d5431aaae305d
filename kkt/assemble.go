// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kkt

import (
	"fmt"

	"github.com/lindenhollow/conesolve/cone"
)

// UpperCSC is a square matrix stored as the upper triangle in CSC form,
// the storage spec.md §3 requires for P.
type UpperCSC struct {
	N      int
	ColPtr []int
	RowIdx []int
	Vals   []float64
}

// CSC is a general m-by-n sparse matrix in column-major compressed form,
// the storage spec.md §3 requires for A.
type CSC struct {
	Rows, Cols int
	ColPtr     []int
	RowIdx     []int
	Vals       []float64
}

// MulVec computes y = A x.
func (A *CSC) MulVec(y, x []float64) {
	for i := range y {
		y[i] = 0
	}
	for col := 0; col < A.Cols; col++ {
		xv := x[col]
		for k := A.ColPtr[col]; k < A.ColPtr[col+1]; k++ {
			y[A.RowIdx[k]] += A.Vals[k] * xv
		}
	}
}

// MulVecTrans computes y = Aᵀ x.
func (A *CSC) MulVecTrans(y, x []float64) {
	for i := range y {
		y[i] = 0
	}
	for col := 0; col < A.Cols; col++ {
		s := 0.0
		for k := A.ColPtr[col]; k < A.ColPtr[col+1]; k++ {
			s += A.Vals[k] * x[A.RowIdx[k]]
		}
		y[col] = s
	}
}

// MulVec computes y = P x for the symmetric matrix stored as its upper
// triangle, mirroring both halves explicitly (spec.md §4.4 step 4 needs
// the full symmetric product, e.g. ξᵀPx₁, not just the stored half).
func (P *UpperCSC) MulVec(y, x []float64) {
	for i := range y {
		y[i] = 0
	}
	for col := 0; col < P.N; col++ {
		for k := P.ColPtr[col]; k < P.ColPtr[col+1]; k++ {
			row := P.RowIdx[k]
			v := P.Vals[k]
			y[row] += v * x[col]
			if row != col {
				y[col] += v * x[row]
			}
		}
	}
}

// Assemble builds K's fixed nonzero pattern and the index map from the
// problem data, per spec.md §4.2. epsReg is the static regularization
// added once to the leading n diagonal; it is never re-applied to that
// block (spec.md §4.2's "not overwritten during iterations").
func Assemble(P *UpperCSC, A *CSC, cones *cone.Set, epsReg float64) (*Matrix, *Map, error) {
	n, m := P.N, A.Rows
	if A.Cols != n {
		return nil, nil, fmt.Errorf("kkt: A has %d columns, want %d to match P", A.Cols, n)
	}
	if cones.Dim != m {
		return nil, nil, fmt.Errorf("kkt: cone dimensions sum to %d, want %d to match A's rows", cones.Dim, m)
	}

	numSOC := 0
	for _, c := range cones.Cones {
		if c.Kind() == cone.SOC {
			numSOC++
		}
	}
	p := 2 * numSOC
	order := n + m + p

	seen := make(map[[2]int]bool)
	var entries []CSCEntry
	add := func(row, col int) {
		if row > col {
			row, col = col, row
		}
		key := [2]int{row, col}
		if !seen[key] {
			seen[key] = true
			entries = append(entries, CSCEntry{Row: row, Col: col})
		}
	}

	// P block, including the leading-diagonal static regularization slot.
	for col := 0; col < n; col++ {
		for k := P.ColPtr[col]; k < P.ColPtr[col+1]; k++ {
			add(P.RowIdx[k], col)
		}
		add(col, col) // ensure epsI has somewhere to land even if P lacks it
	}

	// Aᵀ block: A's (row i, col j) becomes K's (row j, col n+i).
	for j := 0; j < n; j++ {
		for k := A.ColPtr[j]; k < A.ColPtr[j+1]; k++ {
			i := A.RowIdx[k]
			add(j, n+i)
		}
	}

	// Cone blocks: dense upper-triangle for everything except SOC, which
	// is sparsified to a diagonal plus two bordering columns.
	for i, c := range cones.Cones {
		off := n + cones.Offsets[i]
		d := c.Dim()
		if _, isSOC := c.(cone.Rank2Scaler); isSOC {
			for k := 0; k < d; k++ {
				add(off+k, off+k)
			}
			continue
		}
		for r := 0; r < d; r++ {
			for cc := r; cc < d; cc++ {
				add(off+r, off+cc)
			}
		}
	}

	// SOC bordering columns and extra diagonal entries.
	socIdx := 0
	for i, c := range cones.Cones {
		if _, ok := c.(cone.Rank2Scaler); !ok {
			continue
		}
		off := n + cones.Offsets[i]
		d := c.Dim()
		extraU := n + m + 2*socIdx
		extraV := extraU + 1
		for k := 0; k < d; k++ {
			add(off+k, extraU)
			add(off+k, extraV)
		}
		add(extraU, extraU)
		add(extraV, extraV)
		socIdx++
	}

	K := NewFromEntries(order, entries)

	mp := &Map{N: order, n: n, m: m, p: p}
	mp.Dsigns = make([]int8, order)
	for i := 0; i < n; i++ {
		mp.Dsigns[i] = 1
	}
	for i := n; i < n+m; i++ {
		mp.Dsigns[i] = -1
	}
	for i := 0; i < numSOC; i++ {
		mp.Dsigns[n+m+2*i] = -1
		mp.Dsigns[n+m+2*i+1] = 1
	}

	mp.PIdx = make([]int, len(P.Vals))
	for col := 0; col < n; col++ {
		for k := P.ColPtr[col]; k < P.ColPtr[col+1]; k++ {
			mp.PIdx[k] = K.IndexOf(P.RowIdx[k], col)
		}
	}
	mp.AIdx = make([]int, len(A.Vals))
	for j := 0; j < n; j++ {
		for k := A.ColPtr[j]; k < A.ColPtr[j+1]; k++ {
			i := A.RowIdx[k]
			mp.AIdx[k] = K.IndexOf(j, n+i)
		}
	}

	mp.ConeDiag = make([][]int, len(cones.Cones))
	mp.ConeDense = make([][]int, len(cones.Cones))
	mp.socSlot = make([]*socSlots, len(cones.Cones))
	socIdx = 0
	for i, c := range cones.Cones {
		off := n + cones.Offsets[i]
		d := c.Dim()
		if _, isSOC := c.(cone.Rank2Scaler); isSOC {
			diag := make([]int, d)
			for k := 0; k < d; k++ {
				diag[k] = K.IndexOf(off+k, off+k)
			}
			mp.ConeDiag[i] = diag

			extraU := n + m + 2*socIdx
			extraV := extraU + 1
			s := &socSlots{uIdx: make([]int, d), vIdx: make([]int, d)}
			for k := 0; k < d; k++ {
				s.uIdx[k] = K.IndexOf(off+k, extraU)
				s.vIdx[k] = K.IndexOf(off+k, extraV)
			}
			s.diagPos[0] = K.IndexOf(extraU, extraU)
			s.diagPos[1] = K.IndexOf(extraV, extraV)
			mp.socSlot[i] = s
			socIdx++
			continue
		}
		dense := make([]int, 0, d*(d+1)/2)
		diag := make([]int, d)
		for r := 0; r < d; r++ {
			for cc := r; cc < d; cc++ {
				idx := K.IndexOf(off+r, off+cc)
				dense = append(dense, idx)
				if cc == r {
					diag[r] = idx
				}
			}
		}
		mp.ConeDense[i] = dense
		// Populated for every cone, not only SOC: Zero/Nonneg have an
		// exactly-diagonal Hessian and the KKT update loop writes this
		// directly instead of probing MulHs with unit vectors (spec.md
		// §4.1's get_Hs_block is a uniform per-cone operation).
		mp.ConeDiag[i] = diag
	}

	maxConeDim := 0
	for _, c := range cones.Cones {
		if d := c.Dim(); d > maxConeDim {
			maxConeDim = d
		}
	}
	mp.scratchDiag = make([]float64, maxConeDim)
	mp.scratchWork = make([]float64, maxConeDim)
	mp.scratchUnit = make([]float64, maxConeDim)
	mp.scratchU = make([]float64, maxConeDim)
	mp.scratchV = make([]float64, maxConeDim)
	mp.scratchDense = make([]float64, maxConeDim*(maxConeDim+1)/2)
	mp.scratchCols = make([][]float64, maxConeDim)
	for k := range mp.scratchCols {
		mp.scratchCols[k] = make([]float64, maxConeDim)
	}

	mp.RegRows = make([]int, 0, m+p)
	for i := n; i < order; i++ {
		mp.RegRows = append(mp.RegRows, K.IndexOf(i, i))
	}

	// Write P's values and the leading static regularization once.
	for col := 0; col < n; col++ {
		for k := P.ColPtr[col]; k < P.ColPtr[col+1]; k++ {
			K.Vals[mp.PIdx[k]] += P.Vals[k]
		}
	}
	if epsReg != 0 {
		for i := 0; i < n; i++ {
			K.Vals[K.IndexOf(i, i)] += epsReg
		}
	}
	for j := 0; j < n; j++ {
		for k := A.ColPtr[j]; k < A.ColPtr[j+1]; k++ {
			K.Vals[mp.AIdx[k]] = A.Vals[k]
		}
	}

	return K, mp, nil
}
