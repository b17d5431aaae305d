// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kkt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindenhollow/conesolve/cone"
)

// small problem: n=2, m=2, single nonnegative cone, P = I, A = I.
func smallSetup(t *testing.T) (*Matrix, *Map) {
	P := &UpperCSC{N: 2, ColPtr: []int{0, 1, 2}, RowIdx: []int{0, 1}, Vals: []float64{1, 1}}
	A := &CSC{Rows: 2, Cols: 2, ColPtr: []int{0, 1, 2}, RowIdx: []int{0, 1}, Vals: []float64{1, 1}}
	cones, err := cone.NewSet([]cone.Spec{{Kind: cone.Nonneg, Dim: 2}})
	require.NoError(t, err)
	K, mp, err := Assemble(P, A, cones, 1e-8)
	require.NoError(t, err)
	return K, mp
}

func TestAssembleProducesSymmetricPattern(t *testing.T) {
	K, _ := smallSetup(t)
	assert.Equal(t, 4, K.N) // n=2, m=2, p=0
	// diagonal entries must all exist
	for i := 0; i < K.N; i++ {
		assert.GreaterOrEqual(t, K.IndexOf(i, i), 0)
	}
}

func TestMulVecMatchesDense(t *testing.T) {
	K, _ := smallSetup(t)
	dense := K.Dense()
	x := []float64{1, 2, 3, 4}
	y := make([]float64, 4)
	K.MulVec(y, x)
	for i := 0; i < 4; i++ {
		want := 0.0
		for j := 0; j < 4; j++ {
			want += dense[i][j] * x[j]
		}
		assert.InDelta(t, want, y[i], 1e-9)
	}
}

func TestDenseLDLSolvesIdentityLikeSystem(t *testing.T) {
	K, _ := smallSetup(t)
	f := NewDenseLDL(K.N)
	f.UpdateValues(K)
	require.NoError(t, f.Refactor())
	b := []float64{1, 1, 1, 1}
	x := make([]float64, 4)
	f.Solve(x, b)
	r := make([]float64, 4)
	K.MulVec(r, x)
	for i := range r {
		assert.InDelta(t, b[i], r[i], 1e-6)
	}
}

func TestRefineReducesResidual(t *testing.T) {
	K, mp := smallSetup(t)
	f := NewDenseLDL(K.N)
	f.UpdateValues(K)
	require.NoError(t, f.Refactor())
	b := []float64{1, -2, 3, 0.5}
	x := make([]float64, 4)
	f.Solve(x, b)
	settings := RefinementSettings{Enable: true, RelTol: 1e-12, AbsTol: 1e-12, MaxIter: 5, StopRatio: 5}
	Refine(f, K, settings, x, b, 1e-8, mp.Dsigns)
	// The residual must hold against the true (unregularized) K, recovered
	// by undoing the same +epsReg*Dsigns*x that Refine corrects for.
	r := make([]float64, 4)
	K.MulVec(r, x)
	for i := range r {
		r[i] -= 1e-8 * float64(mp.Dsigns[i]) * x[i]
		assert.InDelta(t, b[i], r[i], 1e-6)
	}
}

// TestUpdateScalingBlocksWritesExactNonnegDiagonal checks the O(d)
// GetHsBlock path UpdateScalingBlocks now takes for an exactly-diagonal
// cone against the value GetHsBlock itself reports (spec.md §4.1's
// get_Hs_block, previously only wired for SOC).
func TestUpdateScalingBlocksWritesExactNonnegDiagonal(t *testing.T) {
	K, mp := smallSetup(t)
	cones, err := cone.NewSet([]cone.Spec{{Kind: cone.Nonneg, Dim: 2}})
	require.NoError(t, err)
	s := []float64{2, 3}
	z := []float64{4, 5}
	require.True(t, cones.UpdateScaling(s, z, 1))

	UpdateScalingBlocks(K, mp, cones, 0, false)

	c := cones.Cones[0]
	want := make([]float64, 2)
	c.GetHsBlock(want)
	for k, idx := range mp.ConeDiag[0] {
		assert.InDelta(t, -want[k], K.Vals[idx], 1e-12)
	}
}

func TestSystemConstantRHSAndSolveRunWithoutError(t *testing.T) {
	K, mp := smallSetup(t)
	cones, err := cone.NewSet([]cone.Spec{{Kind: cone.Nonneg, Dim: 2}})
	require.NoError(t, err)
	f := NewDenseLDL(K.N)
	P := &UpperCSC{N: 2, ColPtr: []int{0, 1, 2}, RowIdx: []int{0, 1}, Vals: []float64{1, 1}}
	sys := NewSystem(K, mp, f, cones, RefinementSettings{Enable: true, RelTol: 1e-10, AbsTol: 1e-10, MaxIter: 3, StopRatio: 5}, P, []float64{1, 1}, []float64{1, 1}, 1e-8)

	s := []float64{1, 1}
	z := []float64{1, 1}
	require.True(t, cones.UpdateScaling(s, z, 1))
	UpdateScalingBlocks(K, mp, cones, 1e-8, true)
	require.NoError(t, sys.Refactor())
	sys.SolveConstantRHS()

	rhsX := []float64{0, 0}
	rhsZ := []float64{0, 0}
	ds := []float64{0, 0}
	x := []float64{1, 1}
	dx, dz, dsOut, dtau, dkappa := sys.Solve(rhsX, rhsZ, 0, 0, ds, x, 1, 1, cone.Affine)
	assert.Len(t, dx, 2)
	assert.Len(t, dz, 2)
	assert.Len(t, dsOut, 2)
	assert.NotNil(t, dtau)
	assert.NotNil(t, dkappa)
}
