// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conesolve implements the numerical core of an interior-point
// conic optimization solver: the homogeneous self-dual embedding (HSDE)
// Mehrotra predictor-corrector iteration, wired to the cone interface in
// package cone and the KKT linear-system layer in package kkt.
package conesolve

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/lindenhollow/conesolve/cone"
	"github.com/lindenhollow/conesolve/kkt"
)

// Problem bundles the immutable problem data and settings of spec.md §3/§6
// with the assembled KKT system, grounded on lbfgsb/driver.go's
// optimizer/workspace split: Problem plays the role of the teacher's
// immutable Optimizer, Solution's working fields play the role of its
// mutable Workspace/iterLoc.
type Problem struct {
	n, m int
	P    *kkt.UpperCSC
	q    []float64
	A    *kkt.CSC
	b    []float64
	cones *cone.Set

	settings Settings

	sys *kkt.System
	vars *Variables
	res  *Residuals
}

// NewProblem validates the problem dimensions against spec.md §3 (q of
// length n, A m×n, b of length m, cone dimensions summing to m) and
// assembles the fixed-pattern KKT matrix once (spec.md §4.2); it does not
// run any outer iteration. P is taken as given: whether it is stored as an
// upper triangle and is positive semidefinite is not checked.
func NewProblem(P *kkt.UpperCSC, q []float64, A *kkt.CSC, b []float64, cones []cone.Spec, settings Settings) (*Problem, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	n := P.N
	if len(q) != n {
		return nil, fmt.Errorf("%w: q has length %d, want %d", ErrDimensionMismatch, len(q), n)
	}
	if A.Cols != n {
		return nil, fmt.Errorf("%w: A has %d columns, want %d", ErrDimensionMismatch, A.Cols, n)
	}
	m := A.Rows
	if len(b) != m {
		return nil, fmt.Errorf("%w: b has length %d, want %d", ErrDimensionMismatch, len(b), m)
	}

	coneSet, err := cone.NewSet(cones)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCones, err)
	}
	if coneSet.Dim != m {
		return nil, fmt.Errorf("%w: cone dimensions sum to %d, want %d", ErrBadCones, coneSet.Dim, m)
	}
	if settings.EnableThirdOrderCorrection {
		for _, c := range coneSet.Cones {
			if s, ok := c.(interface{ SetThirdOrderCorrection(bool) }); ok {
				s.SetThirdOrderCorrection(true)
			}
		}
	}

	epsReg := settings.StaticRegularizationEps
	if !settings.StaticRegularizationEnable {
		epsReg = 0
	}
	K, mp, err := kkt.Assemble(P, A, coneSet, epsReg)
	if err != nil {
		return nil, err
	}

	factor := kkt.NewDenseLDL(K.N)
	refine := kkt.RefinementSettings{
		Enable:    settings.IterativeRefinementEnable,
		RelTol:    settings.IterativeRefinementRelTol,
		AbsTol:    settings.IterativeRefinementAbsTol,
		MaxIter:   settings.IterativeRefinementMaxIter,
		StopRatio: settings.IterativeRefinementStopRatio,
	}
	sys := kkt.NewSystem(K, mp, factor, coneSet, refine, P, q, b, epsReg)

	return &Problem{
		n: n, m: m, P: P, q: q, A: A, b: b, cones: coneSet,
		settings: settings,
		sys:      sys,
		vars:     NewVariables(n, m),
		res:      NewResiduals(n, m),
	}, nil
}

// Solution is the result of a Solve call (spec.md §6: x, y (=z), s,
// status, iterations, residuals, gap, time).
type Solution struct {
	X, Y, S    []float64
	Status     Status
	Iterations int
	Gap        float64
	ObjVal     float64
	Time       time.Duration

	PrimalResidual float64
	DualResidual   float64
}

// Solve drives the outer IPM loop of spec.md §4.7 to completion: it
// initializes the augmented variables, then repeats residual update, cone
// scaling refresh, KKT update, affine/combined predictor-corrector solves,
// line search and variable update until a terminal Status is reached.
func (p *Problem) Solve() (sol Solution) {
	start := time.Now()
	log := p.settings.Logger
	iter := 0

	// A panic inside a cone, KKT or factorizer operation surfaces as a
	// NumericalError status instead of escaping Solve.
	defer func() {
		if r := recover(); r != nil {
			sol = p.finish(NumericalError, iter, start)
		}
	}()

	if err := p.sys.InitializeIdentity(); err != nil {
		return p.finish(NumericalError, 0, start)
	}
	p.vars.Initialize(p.sys, p.cones, p.n, p.m)

	if p.isPureEquality() {
		return p.solveEqualityOnly(start)
	}

	status := Solving

	for {
		if status != Solving {
			break
		}
		if p.settings.Cancel != nil {
			cancelled := false
			select {
			case <-p.settings.Cancel:
				cancelled = true
			default:
			}
			if cancelled {
				status = Cancelled
				break
			}
		}
		if iter >= p.settings.MaxIter {
			status = p.almostOrMaxIters()
			break
		}
		if time.Since(start) >= p.settings.timeLimitOrInf() {
			status = TimeLimit
			break
		}

		// Step 1: residuals reflect the current variables.
		p.res.Update(p.P, p.A, p.q, p.b, p.vars.X, p.vars.S, p.vars.Z, p.vars.Tau, p.vars.Kappa)
		mu := p.vars.Mu(p.cones)

		// Termination check happens against the variables at loop head,
		// before any new direction is computed, per spec.md §4.7 step 7.
		if s, done := p.checkConvergence(); done {
			status = s
			break
		}

		// Step 2: cone scalings from the same (s, z, mu).
		if !p.cones.UpdateScaling(p.vars.S, p.vars.Z, mu) {
			if log != nil && log.enable(LogPerIter) {
				log.log("iter %d: cone scaling failed, terminating\n", iter)
			}
			status = NumericalError
			break
		}

		// Step 3: KKT update and constant RHS.
		eps := p.settings.StaticRegularizationEps
		regEnable := p.settings.StaticRegularizationEnable
		kkt.UpdateScalingBlocks(p.sys.K, p.sys.Map, p.cones, eps, regEnable)
		if err := p.sys.Refactor(); err != nil {
			status = NumericalError
			break
		}
		p.sys.SolveConstantRHS()
		if hasNaN(p.sys.Sol()) {
			status = NumericalError
			break
		}

		// Step 4: affine (predictor) step.
		dsAff := make([]float64, p.m)
		for i, c := range p.cones.Cones {
			c.AffineDs(p.cones.Block(dsAff, i), p.cones.Block(p.vars.S, i))
		}
		dxAff, dzAff, dsAffOut, dtauAff, dkappaAff := p.sys.Solve(
			p.res.Rx, p.res.Rz, p.res.RTau, -p.vars.Kappa,
			dsAff, p.vars.X, p.vars.Tau, p.vars.Kappa, cone.Affine)
		if hasNaN(dxAff) || hasNaN(dzAff) || hasNaN(dsAffOut) || math.IsNaN(dtauAff) || math.IsNaN(dkappaAff) {
			status = NumericalError
			break
		}
		alphaAff := StepSearch(p.vars, dxAff, dsAffOut, dzAff, dtauAff, dkappaAff, p.cones, p.settings.LinesearchBacktrackStep, p.settings.MinTerminateStepLength)

		// Step 5: Mehrotra centering parameter.
		sigma := math.Pow(1-alphaAff, 3)
		const sigmaMin = 1e-4
		if sigma < sigmaMin {
			sigma = sigmaMin
		} else if sigma > 1 {
			sigma = 1
		}
		sigmaMu := sigma * mu

		// Step 6: combined (corrector) step.
		dsComb := make([]float64, p.m)
		for i, c := range p.cones.Cones {
			stepZBlock := p.cones.Block(dzAff, i)
			stepSBlock := p.cones.Block(dsAffOut, i)
			c.CombinedDsShift(p.cones.Block(dsComb, i), stepZBlock, stepSBlock, sigmaMu)
		}
		dxComb, dzComb, dsCombOut, dtauComb, dkappaComb := p.sys.Solve(
			p.res.Rx, p.res.Rz, p.res.RTau, -p.vars.Kappa+sigmaMu,
			dsComb, p.vars.X, p.vars.Tau, p.vars.Kappa, cone.Combined)
		if hasNaN(dxComb) || hasNaN(dzComb) || hasNaN(dsCombOut) || math.IsNaN(dtauComb) || math.IsNaN(dkappaComb) {
			status = NumericalError
			break
		}
		alpha := StepSearch(p.vars, dxComb, dsCombOut, dzComb, dtauComb, dkappaComb, p.cones, p.settings.LinesearchBacktrackStep, p.settings.MinTerminateStepLength)
		if alpha <= 0 {
			status = InsufficientProgress
			break
		}

		// Step 8: atomically advance every variable together.
		p.vars.Step(dxComb, dsCombOut, dzComb, dtauComb, dkappaComb, alpha)

		if log != nil && log.enable(LogPerIter) {
			log.out("iter %4d  mu=%10.3e  alpha_aff=%6.3f  sigma=%6.3f  alpha=%6.3f\n", iter, mu, alphaAff, sigma, alpha)
		}

		iter++
	}

	return p.finish(status, iter, start)
}

// isPureEquality reports whether the Cartesian cone is the trivial
// {0}-dimensional product: a single Zero block. spec.md §8 boundary
// behaviour 8 says such a problem has no barrier term at all, so the
// Mehrotra iteration collapses to one exact Newton solve.
func (p *Problem) isPureEquality() bool {
	if len(p.cones.Cones) != 1 {
		return false
	}
	return p.cones.Cones[0].Kind() == cone.Zero
}

// solveEqualityOnly is the fast path for isPureEquality: with no
// inequality cone present sigma*mu and the cone barrier vanish, so the
// affine predictor direction already solves the (linear) KKT system
// exactly; a single full step along it finishes the problem in one
// outer iteration instead of running the full predictor-corrector loop.
func (p *Problem) solveEqualityOnly(start time.Time) Solution {
	p.res.Update(p.P, p.A, p.q, p.b, p.vars.X, p.vars.S, p.vars.Z, p.vars.Tau, p.vars.Kappa)

	eps := p.settings.StaticRegularizationEps
	regEnable := p.settings.StaticRegularizationEnable
	if !p.cones.UpdateScaling(p.vars.S, p.vars.Z, 0) {
		return p.finish(NumericalError, 0, start)
	}
	kkt.UpdateScalingBlocks(p.sys.K, p.sys.Map, p.cones, eps, regEnable)
	if err := p.sys.Refactor(); err != nil {
		return p.finish(NumericalError, 0, start)
	}
	p.sys.SolveConstantRHS()
	if hasNaN(p.sys.Sol()) {
		return p.finish(NumericalError, 0, start)
	}

	ds := make([]float64, p.m)
	dx, dz, dsOut, dtau, dkappa := p.sys.Solve(
		p.res.Rx, p.res.Rz, p.res.RTau, -p.vars.Kappa,
		ds, p.vars.X, p.vars.Tau, p.vars.Kappa, cone.Affine)
	if hasNaN(dx) || hasNaN(dz) || hasNaN(dsOut) || math.IsNaN(dtau) || math.IsNaN(dkappa) {
		return p.finish(NumericalError, 0, start)
	}

	// The Zero cone has no barrier to stay away from, so the full Newton
	// step is taken rather than a backtracked one.
	p.vars.Step(dx, dsOut, dz, dtau, dkappa, 1)
	p.res.Update(p.P, p.A, p.q, p.b, p.vars.X, p.vars.S, p.vars.Z, p.vars.Tau, p.vars.Kappa)

	if status, done := p.checkConvergence(); done {
		return p.finish(status, 1, start)
	}
	return p.finish(AlmostSolved, 1, start)
}

// checkConvergence implements spec.md §4.7 step 7: primal/dual/gap
// residual norms against eps_abs/eps_rel, and the infeasibility
// certificates against eps_infeasible. Evaluated against the
// tau-normalized residuals the HSDE iteration actually drives to zero.
func (p *Problem) checkConvergence() (Status, bool) {
	tau := p.vars.Tau
	if tau <= 0 {
		return NumericalError, true
	}

	bInf := infNorm(p.b)
	qInf := infNorm(p.q)

	primalRes := infNorm(p.res.Rz) / tau
	dualRes := infNorm(p.res.Rx) / tau
	gap := math.Abs(p.res.Sz) / tau / tau

	primalTol := p.settings.EpsAbs + p.settings.EpsRel*bInf
	dualTol := p.settings.EpsAbs + p.settings.EpsRel*qInf
	objScale := math.Max(1, math.Max(math.Abs(p.res.Qx/tau), math.Abs(p.res.Bz/tau)))
	gapTol := p.settings.EpsAbs + p.settings.EpsRel*objScale

	if primalRes <= primalTol && dualRes <= dualTol && gap <= gapTol {
		return Solved, true
	}

	// Infeasibility certificates use the tau-independent residuals
	// (spec.md §4.5/§8 Boundary, certificate inequalities). As tau -> 0,
	// the stationarity equation Px+Aᵀz+q*tau=0 reduces to rx_inf ≈ 0, with
	// the duality equation's sign carried by bᵀz; dually, Ax+s-b*tau=0
	// reduces to rz_inf ≈ 0, with the sign carried by qᵀx.
	if primalInfeasible(p.res.RxInf, p.res.Bz, p.settings.EpsInfeasible) {
		return PrimalInfeasible, true
	}
	if dualInfeasible(p.res.RzInf, p.res.Qx, p.settings.EpsInfeasible) {
		return DualInfeasible, true
	}

	return Solving, false
}

// primalInfeasible tests the certificate bᵀz < 0 with Aᵀz (+Px) ≈ 0,
// i.e. ‖rx_inf‖∞ <= eps (an absolute bound) while bᵀz < -eps
// (spec.md §1 HSDE infeasibility certificates, §4.5).
func primalInfeasible(rxInf []float64, bz, eps float64) bool {
	return infNorm(rxInf) <= eps && bz < -eps
}

// dualInfeasible tests the certificate qᵀx < 0 with Ax+s ≈ 0 (rz_inf ≈ 0),
// the dual-side mirror of primalInfeasible.
func dualInfeasible(rzInf []float64, qx, eps float64) bool {
	return infNorm(rzInf) <= eps && qx < -eps
}

// almostOrMaxIters is consulted only once MaxIter is exhausted: if the
// last computed residuals already sit within a loosened tolerance band,
// report AlmostSolved rather than the bare iteration-limit failure
// (spec.md §7's "Solved / AlmostSolved (looser tolerance band)").
func (p *Problem) almostOrMaxIters() Status {
	const loose = 1000.0
	tau := p.vars.Tau
	if tau <= 0 {
		return MaxIters
	}
	bInf, qInf := infNorm(p.b), infNorm(p.q)
	primalRes := infNorm(p.res.Rz) / tau
	dualRes := infNorm(p.res.Rx) / tau
	gap := math.Abs(p.res.Sz) / tau / tau
	primalTol := loose * (p.settings.EpsAbs + p.settings.EpsRel*bInf)
	dualTol := loose * (p.settings.EpsAbs + p.settings.EpsRel*qInf)
	objScale := math.Max(1, math.Max(math.Abs(p.res.Qx/tau), math.Abs(p.res.Bz/tau)))
	gapTol := loose * (p.settings.EpsAbs + p.settings.EpsRel*objScale)
	if primalRes <= primalTol && dualRes <= dualTol && gap <= gapTol {
		return AlmostSolved
	}
	return MaxIters
}

func (p *Problem) finish(status Status, iter int, start time.Time) Solution {
	tau := p.vars.Tau
	if tau <= 0 {
		tau = 1
	}
	x := make([]float64, p.n)
	y := make([]float64, p.m)
	s := make([]float64, p.m)
	for i := range x {
		x[i] = p.vars.X[i] / tau
	}
	for i := range y {
		y[i] = p.vars.Z[i] / tau
	}
	for i := range s {
		s[i] = p.vars.S[i] / tau
	}

	objVal := (0.5*p.res.XPx/(tau*tau) + p.res.Qx/tau)
	gap := math.Abs(dotSlice(s, y))

	return Solution{
		X: x, Y: y, S: s,
		Status:         status,
		Iterations:     iter,
		Gap:            gap,
		ObjVal:         objVal,
		Time:           time.Since(start),
		PrimalResidual: infNorm(p.res.Rz) / tau,
		DualResidual:   infNorm(p.res.Rx) / tau,
	}
}

func infNorm(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Norm(x, math.Inf(1))
}

func hasNaN(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
