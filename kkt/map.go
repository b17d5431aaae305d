// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kkt

// socSlots is the per-SOC-cone bookkeeping for the rank-2 sparsification
// (spec.md §3): indices into K.Vals for the u and v bordering columns
// (one entry per local row of the cone's block) and for the two
// alternating ±eta2 diagonal entries on the extra variables.
type socSlots struct {
	uIdx, vIdx []int
	diagPos    [2]int
}

// Map records, for every logical slot in the problem data (spec.md §3's
// "data-to-matrix map"), the CSC nonzero index it was assigned at
// assembly. Steady-state updates are then pure gather/scatter by these
// precomputed positions - no symbolic work is repeated.
type Map struct {
	// PIdx[k] is the K.Vals index of the k-th nonzero of P. The leading
	// static regularization is not among these slots: Assemble adds it to
	// the n leading diagonal entries once and never touches it again
	// (spec.md §4.2).
	PIdx []int
	// AIdx[k] is the K.Vals index of the k-th nonzero of A, placed as Aᵀ.
	AIdx []int
	// ConeDiag[i] holds the diagonal K.Vals indices for cone i's block.
	ConeDiag [][]int
	// ConeDense[i] holds the dense upper-triangle K.Vals indices for cone
	// i's block, in row-major (local row, then local col >= row) order.
	// Empty for SOC cones, which use socSlot instead.
	ConeDense [][]int
	// socSlot[i] is non-nil iff cone i is a second-order cone.
	socSlot []*socSlots
	// RegRows lists, for every row in the m+p lower block, its diagonal
	// K.Vals index; the sign static regularization applies there is
	// Dsigns[n+i] (spec.md §4.3 step 3: re-applied every outer iteration).
	RegRows []int
	Dsigns  []int8
	N       int // order of K = n + m + p
	n, m, p int

	// scratch for UpdateScalingBlocks, sized once at Assemble time to the
	// largest single cone block so every call reuses the same buffers
	// instead of allocating per cone per outer iteration.
	scratchDiag, scratchWork, scratchUnit []float64
	scratchU, scratchV                    []float64
	scratchCols                           [][]float64
	scratchDense                          []float64
}
