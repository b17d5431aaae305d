// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conesolve

import (
	"math"

	"github.com/lindenhollow/conesolve/cone"
	"github.com/lindenhollow/conesolve/kkt"
)

// Variables is the augmented HSDE iterate V = (x, s, z, τ, κ) (spec.md §3).
type Variables struct {
	X, S, Z    []float64
	Tau, Kappa float64
}

func NewVariables(n, m int) *Variables {
	return &Variables{X: make([]float64, n), S: make([]float64, m), Z: make([]float64, m)}
}

// Initialize sets the starting iterate: two fixed KKT solves (identity
// cone scaling, since no iterate exists yet to scale from) followed by
// shifting (s, z) into the interior of 𝒦 × 𝒦* and τ = κ = 1 (spec.md §4.6).
func (v *Variables) Initialize(sys *kkt.System, cones *cone.Set, n, m int) {
	rhs1x := make([]float64, n)
	rhs1z := make([]float64, m)
	copy(rhs1z, sys.ConstantB())
	sol1x, sol1z := sys.SolveIdentity(rhs1x, rhs1z)

	rhs2x := make([]float64, n)
	copy(rhs2x, sys.ConstantNegQ())
	rhs2z := make([]float64, m)
	_, sol2z := sys.SolveIdentity(rhs2x, rhs2z)

	copy(v.X, sol1x)
	for i := range v.S {
		v.S[i] = -sol1z[i]
	}
	copy(v.Z, sol2z)

	for i, c := range cones.Cones {
		sBlock := cones.Block(v.S, i)
		zBlock := cones.Block(v.Z, i)
		if c.IsSymmetric() {
			c.ShiftToCone(sBlock)
			c.ShiftToCone(zBlock)
		} else {
			c.UnitInitialization(sBlock, zBlock)
		}
	}

	v.Tau, v.Kappa = 1, 1
}

// Mu is the centrality parameter (sᵀz + τκ)/(ν+1).
func (v *Variables) Mu(cones *cone.Set) float64 {
	sz := dotSlice(v.S, v.Z)
	return (sz + v.Tau*v.Kappa) / float64(cones.Degree()+1)
}

// StepSearch finds the largest step length along (dx, ds, dz, dtau,
// dkappa) that keeps every cone's barrier finite and τ, κ positive,
// backtracking geometrically when a tentative step fails the barrier
// check (spec.md §4.6), grounded on lbfgsb/driver.go's
// searchOptimalStep backtracking shape.
func StepSearch(v *Variables, dx, ds, dz []float64, dtau, dkappa float64, cones *cone.Set, backtrack, minStep float64) float64 {
	alphaMax := 1.0
	for i, c := range cones.Cones {
		sBlock := cones.Block(v.S, i)
		zBlock := cones.Block(v.Z, i)
		dsBlock := cones.Block(ds, i)
		dzBlock := cones.Block(dz, i)
		az, as := c.StepLength(dzBlock, dsBlock, zBlock, sBlock, alphaMax)
		alphaMax = math.Min(alphaMax, math.Min(az, as))
	}
	if dtau < 0 {
		alphaMax = math.Min(alphaMax, -v.Tau/dtau)
	}
	if dkappa < 0 {
		alphaMax = math.Min(alphaMax, -v.Kappa/dkappa)
	}
	// α = min(cone_step_lengths) · backtrack_factor (spec.md §4.6).
	alphaMax *= backtrack

	// barrierRetryShrink backs off further when the barrier-finiteness
	// check itself fails at alphaMax; spec.md is silent on this factor,
	// so it is a fixed constant rather than Settings.LinesearchBacktrackStep.
	const barrierRetryShrink = 0.99
	alpha := alphaMax
	for alpha > minStep {
		if barrierFinite(v, dx, ds, dz, alpha, cones) {
			return alpha
		}
		alpha *= barrierRetryShrink
	}
	return 0
}

func barrierFinite(v *Variables, dx, ds, dz []float64, alpha float64, cones *cone.Set) bool {
	for i, c := range cones.Cones {
		sBlock := cones.Block(v.S, i)
		zBlock := cones.Block(v.Z, i)
		dsBlock := cones.Block(ds, i)
		dzBlock := cones.Block(dz, i)
		b := c.ComputeBarrier(zBlock, sBlock, dzBlock, dsBlock, alpha)
		if math.IsInf(b, 1) || math.IsNaN(b) {
			return false
		}
	}
	return true
}

// Step advances every variable by alpha along the given Newton direction.
func (v *Variables) Step(dx, ds, dz []float64, dtau, dkappa, alpha float64) {
	for i := range v.X {
		v.X[i] += alpha * dx[i]
	}
	for i := range v.S {
		v.S[i] += alpha * ds[i]
	}
	for i := range v.Z {
		v.Z[i] += alpha * dz[i]
	}
	v.Tau += alpha * dtau
	v.Kappa += alpha * dkappa
}
