// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conesolve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindenhollow/conesolve/cone"
	"github.com/lindenhollow/conesolve/kkt"
)

func zeroP(n int) *kkt.UpperCSC {
	return &kkt.UpperCSC{N: n, ColPtr: make([]int, n+1)}
}

func identityP(n int) *kkt.UpperCSC {
	colPtr := make([]int, n+1)
	rowIdx := make([]int, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		colPtr[i+1] = i + 1
		rowIdx[i] = i
		vals[i] = 1
	}
	return &kkt.UpperCSC{N: n, ColPtr: colPtr, RowIdx: rowIdx, Vals: vals}
}

// TestNewProblemRejectsBadDimensions checks the construction-time
// validation spec.md §3 requires (q length n, A m-by-n, cone dims
// summing to m) surfaces as a sentinel error, never a panic.
func TestNewProblemRejectsBadDimensions(t *testing.T) {
	P := zeroP(2)
	A := &kkt.CSC{Rows: 2, Cols: 2, ColPtr: []int{0, 1, 2}, RowIdx: []int{0, 1}, Vals: []float64{1, 1}}

	_, err := NewProblem(P, []float64{1}, A, []float64{0, 0}, []cone.Spec{{Kind: cone.Nonneg, Dim: 2}}, DefaultSettings())
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewProblem(P, []float64{1, 1}, A, []float64{0, 0}, []cone.Spec{{Kind: cone.Nonneg, Dim: 1}}, DefaultSettings())
	assert.ErrorIs(t, err, ErrBadCones)
}

// TestNewProblemRejectsBadSettings checks Settings.Validate is consulted
// before any assembly work happens.
func TestNewProblemRejectsBadSettings(t *testing.T) {
	P := zeroP(1)
	A := &kkt.CSC{Rows: 1, Cols: 1, ColPtr: []int{0, 1}, RowIdx: []int{0}, Vals: []float64{1}}
	bad := DefaultSettings()
	bad.MaxIter = 0
	_, err := NewProblem(P, []float64{1}, A, []float64{0}, []cone.Spec{{Kind: cone.Nonneg, Dim: 1}}, bad)
	assert.ErrorIs(t, err, ErrBadSettings)
}

// TestSolveLPOnSimplex is spec.md §8 scenario S1: minimize x1+x2 subject
// to x >= 0 and x1+x2 = 1. Every point on the simplex is optimal with
// value 1; the solver need only land on the feasible set with a gap
// close to zero.
func TestSolveLPOnSimplex(t *testing.T) {
	P := zeroP(2)
	q := []float64{1, 1}
	A := &kkt.CSC{
		Rows: 3, Cols: 2,
		ColPtr: []int{0, 2, 4},
		RowIdx: []int{0, 1, 0, 2},
		Vals:   []float64{1, -1, 1, -1},
	}
	b := []float64{1, 0, 0}
	cones := []cone.Spec{
		{Kind: cone.Zero, Dim: 1},
		{Kind: cone.Nonneg, Dim: 2},
	}

	p, err := NewProblem(P, q, A, b, cones, DefaultSettings())
	require.NoError(t, err)

	sol := p.Solve()
	require.Contains(t, []Status{Solved, AlmostSolved}, sol.Status)

	assert.InDelta(t, 1.0, sol.X[0]+sol.X[1], 1e-4)
	assert.GreaterOrEqual(t, sol.X[0], -1e-4)
	assert.GreaterOrEqual(t, sol.X[1], -1e-4)
	assert.InDelta(t, 1.0, sol.ObjVal, 1e-3)
}

// TestSolveQPProjectsOntoNonnegativeOrthant is spec.md §8 scenario S2:
// minimize (1/2)||x-c||^2 subject to x >= 0, whose solution is the
// Euclidean projection of c onto the nonnegative orthant. With c already
// nonnegative the projection is c itself.
func TestSolveQPProjectsOntoNonnegativeOrthant(t *testing.T) {
	c := []float64{1, 2, 3}
	P := identityP(3)
	q := []float64{-c[0], -c[1], -c[2]}
	A := &kkt.CSC{
		Rows: 3, Cols: 3,
		ColPtr: []int{0, 1, 2, 3},
		RowIdx: []int{0, 1, 2},
		Vals:   []float64{-1, -1, -1},
	}
	b := []float64{0, 0, 0}
	cones := []cone.Spec{{Kind: cone.Nonneg, Dim: 3}}

	p, err := NewProblem(P, q, A, b, cones, DefaultSettings())
	require.NoError(t, err)

	sol := p.Solve()
	require.Contains(t, []Status{Solved, AlmostSolved}, sol.Status)
	assert.InDeltaSlice(t, c, sol.X, 1e-3)
}

// TestSolveSOCPMinimizesEpigraphVariable is spec.md §8 scenario S3:
// minimize t subject to ||[x1,x2]|| <= t and x1+x2=1. Variables are laid
// out as x=[x1,x2,t]; the SOC block's own coordinate order is (t,x1,x2)
// so s_soc = (t,x1,x2) is built via A_soc = -I with the rows permuted to
// match, exactly as S1/S2 build s = x through A = -I. Optimum is
// x*=[0.5,0.5,1/sqrt(2)], value 1/sqrt(2). This scenario is the one that
// exercises socCone.LambdaInvCircOp on every iteration (kkt/driver.go's
// predictor/corrector Delta-s recovery), so a wrong Jordan-algebra
// inverse there would show up here as a non-convergent or wrong solve.
func TestSolveSOCPMinimizesEpigraphVariable(t *testing.T) {
	P := zeroP(3)
	q := []float64{0, 0, 1}
	A := &kkt.CSC{
		Rows: 4, Cols: 3,
		ColPtr: []int{0, 2, 4, 5},
		RowIdx: []int{0, 2, 0, 3, 1},
		Vals:   []float64{1, -1, 1, -1, -1},
	}
	b := []float64{1, 0, 0, 0}
	cones := []cone.Spec{
		{Kind: cone.Zero, Dim: 1},
		{Kind: cone.SOC, Dim: 3},
	}

	p, err := NewProblem(P, q, A, b, cones, DefaultSettings())
	require.NoError(t, err)

	sol := p.Solve()
	require.Contains(t, []Status{Solved, AlmostSolved}, sol.Status)

	want := 1 / math.Sqrt2
	assert.InDelta(t, 0.5, sol.X[0], 1e-3)
	assert.InDelta(t, 0.5, sol.X[1], 1e-3)
	assert.InDelta(t, want, sol.X[2], 1e-3)
	assert.InDelta(t, want, sol.ObjVal, 1e-3)
}

// TestSolveDetectsPrimalInfeasibility is spec.md §8 scenario S4: x >= 0
// and x <= -1 have no common point, so the solver must report
// PrimalInfeasible via the HSDE certificate (rx_inf ~ 0, bTz < 0) rather
// than exhausting MaxIter.
func TestSolveDetectsPrimalInfeasibility(t *testing.T) {
	P := zeroP(1)
	q := []float64{0}
	A := &kkt.CSC{
		Rows: 2, Cols: 1,
		ColPtr: []int{0, 2},
		RowIdx: []int{0, 1},
		Vals:   []float64{-1, 1},
	}
	b := []float64{0, -1}
	cones := []cone.Spec{{Kind: cone.Nonneg, Dim: 2}}

	p, err := NewProblem(P, q, A, b, cones, DefaultSettings())
	require.NoError(t, err)

	sol := p.Solve()
	assert.Equal(t, PrimalInfeasible, sol.Status)
}

// TestSolveDetectsDualInfeasibility is spec.md §8 scenario S5: minimize
// -x subject to x >= 0 is unbounded below, so the solver must report
// DualInfeasible via the HSDE certificate (rz_inf ~ 0, qTx < 0).
func TestSolveDetectsDualInfeasibility(t *testing.T) {
	P := zeroP(1)
	q := []float64{-1}
	A := &kkt.CSC{
		Rows: 1, Cols: 1,
		ColPtr: []int{0, 1},
		RowIdx: []int{0},
		Vals:   []float64{-1},
	}
	b := []float64{0}
	cones := []cone.Spec{{Kind: cone.Nonneg, Dim: 1}}

	p, err := NewProblem(P, q, A, b, cones, DefaultSettings())
	require.NoError(t, err)

	sol := p.Solve()
	assert.Equal(t, DualInfeasible, sol.Status)
}

// TestSolvePowerConeRecoversKnownOptimum is spec.md §8 scenario S6 run
// end to end through Solve rather than only the cone-internal unit tests
// in cone/cone_test.go: minimize -w subject to (u1,u2,w) in the
// generalized power cone with alpha=(0.5,0.5) and u1=u2=1. The cone's
// defining inequality sqrt(u1*u2) >= |w| then pins the optimal w to 1,
// the feasibility boundary.
func TestSolvePowerConeRecoversKnownOptimum(t *testing.T) {
	P := zeroP(3)
	q := []float64{0, 0, -1}
	A := &kkt.CSC{
		Rows: 5, Cols: 3,
		ColPtr: []int{0, 2, 4, 5},
		RowIdx: []int{0, 2, 1, 3, 4},
		Vals:   []float64{1, -1, 1, -1, -1},
	}
	// Rows 0-1: u1=1, u2=1 (zero cone). Rows 2-4: power cone block
	// (u1,u2,w) = (x1,x2,x3) via A_power = -I, b_power = 0.
	b := []float64{1, 1, 0, 0, 0}
	cones := []cone.Spec{
		{Kind: cone.Zero, Dim: 2},
		{Kind: cone.Power, Dim: 3, Params: []float64{0.5, 0.5}},
	}

	p, err := NewProblem(P, q, A, b, cones, DefaultSettings())
	require.NoError(t, err)

	sol := p.Solve()
	require.Contains(t, []Status{Solved, AlmostSolved}, sol.Status)

	assert.InDelta(t, 1.0, sol.X[0], 1e-3)
	assert.InDelta(t, 1.0, sol.X[1], 1e-3)
	assert.InDelta(t, 1.0, sol.X[2], 2e-2)
}

// TestSolveEqualityOnlyFastPath is spec.md §8 boundary behaviour 8: a
// problem whose only cone is Zero (pure equality constraints) must solve
// in exactly one outer iteration. minimize x1+x2+x3 s.t. x1+x2+x3=3 has
// optimal value 3 at whatever point the single Newton solve lands on.
func TestSolveEqualityOnlyFastPath(t *testing.T) {
	P := zeroP(3)
	q := []float64{1, 1, 1}
	A := &kkt.CSC{
		Rows: 1, Cols: 3,
		ColPtr: []int{0, 1, 2, 3},
		RowIdx: []int{0, 0, 0},
		Vals:   []float64{1, 1, 1},
	}
	b := []float64{3}
	cones := []cone.Spec{{Kind: cone.Zero, Dim: 1}}

	p, err := NewProblem(P, q, A, b, cones, DefaultSettings())
	require.NoError(t, err)

	sol := p.Solve()
	require.Contains(t, []Status{Solved, AlmostSolved}, sol.Status)
	assert.Equal(t, 1, sol.Iterations)
	assert.InDelta(t, 3.0, sol.X[0]+sol.X[1]+sol.X[2], 1e-6)
}

// TestSolveHonorsCancellation checks that an already-closed Cancel
// channel aborts the outer loop before any iteration completes.
func TestSolveHonorsCancellation(t *testing.T) {
	P := identityP(3)
	q := []float64{-1, -2, -3}
	A := &kkt.CSC{
		Rows: 3, Cols: 3,
		ColPtr: []int{0, 1, 2, 3},
		RowIdx: []int{0, 1, 2},
		Vals:   []float64{-1, -1, -1},
	}
	b := []float64{0, 0, 0}
	cones := []cone.Spec{{Kind: cone.Nonneg, Dim: 3}}

	settings := DefaultSettings()
	cancel := make(chan struct{})
	close(cancel)
	settings.Cancel = cancel

	p, err := NewProblem(P, q, A, b, cones, settings)
	require.NoError(t, err)

	sol := p.Solve()
	assert.Equal(t, Cancelled, sol.Status)
	assert.Equal(t, 0, sol.Iterations)
}
