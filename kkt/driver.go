// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kkt

import "github.com/lindenhollow/conesolve/cone"

// System is the KKT system driver (spec.md §4.4): it owns the factorized
// matrix, the index map, and the constant right-hand-side solve that is
// reused unchanged across every predictor/corrector solve within an outer
// iteration (only the scaling blocks change per iteration, not q, b or P).
type System struct {
	K      *Matrix
	Map    *Map
	Factor Factorizer
	Refine RefinementSettings
	Cones  *cone.Set

	n, m, p int
	P       *UpperCSC
	q, b    []float64
	negQ    []float64
	epsReg  float64

	x2, z2  []float64 // cached solve of K[x2;z2;0] = [-q; b; 0]
	x2Px2   float64   // x2ᵀ P x2, cached alongside x2/z2

	// scratch, reused across Solve calls to avoid per-call allocation
	// (spec.md §9: "No allocation occurs on the hot path"). workx plays
	// the role of spec.md's single ξ/ξ−x₂ workx buffer: step 4 fills it
	// with ξ, then overwrites it in place with ξ−x₂ once ξᵀPx1 has been
	// read out. px1 is similarly reused first for Px1, then for P(ξ−x₂).
	rhs, sol []float64
	wtlinvds []float64
	workz    []float64
	workx    []float64
	px1      []float64
	dx, dz   []float64
	dsOut    []float64

	// per-cone scratch, sized to the largest single cone block so every
	// cone iteration in Solve reuses the same buffer instead of
	// allocating one per cone per call.
	coneTmp, hsDz, hsWork []float64
}

// NewSystem wires a freshly-assembled K/Map to its problem data and
// chosen Factorizer backend. epsReg is the same static-regularization
// magnitude Assemble baked into K.Vals (0 if disabled); Refine needs it
// to subtract the regularization back out of K's residual.
func NewSystem(K *Matrix, mp *Map, factor Factorizer, cones *cone.Set, refine RefinementSettings, P *UpperCSC, q, b []float64, epsReg float64) *System {
	negQ := make([]float64, len(q))
	for i, qi := range q {
		negQ[i] = -qi
	}
	maxConeDim := 0
	for _, c := range cones.Cones {
		if d := c.Dim(); d > maxConeDim {
			maxConeDim = d
		}
	}
	return &System{
		K: K, Map: mp, Factor: factor, Refine: refine, Cones: cones,
		n: mp.n, m: mp.m, p: mp.p, P: P, q: q, b: b, negQ: negQ, epsReg: epsReg,
		x2: make([]float64, mp.n), z2: make([]float64, mp.m),
		rhs:      make([]float64, mp.N),
		sol:      make([]float64, mp.N),
		wtlinvds: make([]float64, mp.m),
		workz:    make([]float64, mp.m),
		workx:    make([]float64, mp.n),
		px1:      make([]float64, mp.n),
		dx:       make([]float64, mp.n),
		dz:       make([]float64, mp.m),
		dsOut:    make([]float64, mp.m),
		coneTmp:  make([]float64, maxConeDim),
		hsDz:     make([]float64, maxConeDim),
		hsWork:   make([]float64, maxConeDim),
	}
}

// ConstantB returns the problem's b vector (used by the caller to build
// the RHS of the first fixed initialization solve, spec.md §4.6).
func (sys *System) ConstantB() []float64 { return sys.b }

// ConstantNegQ returns -q (used by the caller to build the RHS of the
// second fixed initialization solve, spec.md §4.6).
func (sys *System) ConstantNegQ() []float64 { return sys.negQ }

// InitializeIdentity overwrites every cone scaling slot in K with an
// identity block (spec.md §4.6: the two fixed initialization solves run
// before any iterate exists to scale cones from) and refactorises.
func (sys *System) InitializeIdentity() error {
	for i, c := range sys.Cones.Cones {
		d := c.Dim()
		if s := sys.Map.socSlot[i]; s != nil {
			for k := 0; k < d; k++ {
				sys.K.Vals[sys.Map.ConeDiag[i][k]] = -1
				sys.K.Vals[s.uIdx[k]] = 0
				sys.K.Vals[s.vIdx[k]] = 0
			}
			sys.K.Vals[s.diagPos[0]] = -1
			sys.K.Vals[s.diagPos[1]] = 1
			continue
		}
		idx := 0
		for r := 0; r < d; r++ {
			for cc := r; cc < d; cc++ {
				if cc == r {
					sys.K.Vals[sys.Map.ConeDense[i][idx]] = -1
				} else {
					sys.K.Vals[sys.Map.ConeDense[i][idx]] = 0
				}
				idx++
			}
		}
	}
	sys.Factor.UpdateValues(sys.K)
	return sys.Factor.Refactor()
}

// SolveIdentity solves K [x;z] = [rhsX; rhsZ] against whatever scaling is
// currently factorized (used with InitializeIdentity for spec.md §4.6's
// two fixed initialization solves).
func (sys *System) SolveIdentity(rhsX, rhsZ []float64) (x, z []float64) {
	for i := range sys.rhs {
		sys.rhs[i] = 0
	}
	copy(sys.rhs[:sys.n], rhsX)
	copy(sys.rhs[sys.n:sys.n+sys.m], rhsZ)
	sol := make([]float64, sys.Map.N)
	sys.Factor.Solve(sol, sys.rhs)
	Refine(sys.Factor, sys.K, sys.Refine, sol, sys.rhs, sys.epsReg, sys.Map.Dsigns)
	return sol[:sys.n], sol[sys.n : sys.n+sys.m]
}

// Sol exposes the last SolveConstantRHS result buffer so callers can
// check it for NaN/Inf before trusting the cached x2/z2 it was derived
// from (spec.md §4.7 step 3: "if any NaN, terminate NumericalError").
func (sys *System) Sol() []float64 { return sys.sol }

// Refactor re-derives the factorization from K's current values (spec.md
// §4.3 step 4: every outer iteration, after UpdateScalingBlocks has
// rewritten the Hessian blocks).
func (sys *System) Refactor() error {
	sys.Factor.UpdateValues(sys.K)
	return sys.Factor.Refactor()
}

// solveExtended solves K*sol = rhs (rhs/sol both length N = n+m+p, the p
// tail left at zero by callers that don't use it) with iterative
// refinement against K's symmetric view.
func (sys *System) solveExtended(sol, rhs []float64) {
	sys.Factor.Solve(sol, rhs)
	Refine(sys.Factor, sys.K, sys.Refine, sol, rhs, sys.epsReg, sys.Map.Dsigns)
}

// SolveConstantRHS computes the part of the KKT solve that depends only
// on the problem data, not on the current iterate (spec.md §4.4: solved
// once per outer iteration, reused by every predictor/corrector call).
func (sys *System) SolveConstantRHS() {
	for i := range sys.rhs {
		sys.rhs[i] = 0
	}
	for i := 0; i < sys.n; i++ {
		sys.rhs[i] = -sys.q[i]
	}
	for i := 0; i < sys.m; i++ {
		sys.rhs[sys.n+i] = sys.b[i]
	}
	sys.solveExtended(sys.sol, sys.rhs)
	copy(sys.x2, sys.sol[:sys.n])
	copy(sys.z2, sys.sol[sys.n:sys.n+sys.m])
	sys.P.MulVec(sys.px1, sys.x2)
	sys.x2Px2 = dot(sys.x2, sys.px1)
}

// Solve performs one KKT linear-system solve of the HSDE Newton system
// (spec.md §4.4, steps 1-7). x is the current iterate's x (needed for
// ξ = x/τ in step 4); ds is the per-cone complementarity contribution the
// caller already built via AffineDs or CombinedDsShift. steptype selects
// the spec.md §4.4 step 1 shortcut: on the affine solve, AffineDs has set
// ds = s, and Wᵀ(λ\s) reduces to s itself, so the reduced RHS block is
// ds's own value rather than a LambdaInvCircOp+GemvW round trip.
func (sys *System) Solve(rhsX, rhsZ []float64, rhsTau, rhsKappa float64, ds, x []float64, tau, kappa float64, steptype cone.StepType) (dx, dz, dsOut []float64, dtau, dkappa float64) {
	// Step 1: Wᵀ(λ\ds) for symmetric cones; asymmetric cones carry their
	// Hessian scaling directly on ds, with no explicit W factor.
	for i, c := range sys.Cones.Cones {
		block := sys.Cones.Block(sys.wtlinvds, i)
		dsBlock := sys.Cones.Block(ds, i)
		if !c.IsSymmetric() {
			copy(block, dsBlock)
			continue
		}
		if steptype == cone.Affine {
			copy(block, dsBlock)
			continue
		}
		tmp := sys.coneTmp[:c.Dim()]
		c.LambdaInvCircOp(tmp, dsBlock)
		c.GemvW(true, tmp, block, 1, 0)
	}

	// Step 2: assemble the reduced z right-hand side.
	for i := range sys.workz {
		sys.workz[i] = sys.wtlinvds[i] - rhsZ[i]
	}

	// Step 3: reduced solve for (x1, z1).
	for i := range sys.rhs {
		sys.rhs[i] = 0
	}
	copy(sys.rhs[:sys.n], rhsX)
	copy(sys.rhs[sys.n:sys.n+sys.m], sys.workz)
	sys.solveExtended(sys.sol, sys.rhs)
	x1 := sys.sol[:sys.n]
	z1 := sys.sol[sys.n : sys.n+sys.m]

	// Step 4: closed-form dtau, per spec.md §4.4 step 4. workx is reused
	// in place: first as ξ = x/τ, then as ξ−x2 once ξ's own dot product
	// with Px1 has been read out.
	for i := range sys.workx {
		sys.workx[i] = x[i] / tau
	}
	sys.P.MulVec(sys.px1, x1)
	xiPx1 := dot(sys.workx, sys.px1)

	for i := range sys.workx {
		sys.workx[i] -= sys.x2[i]
	}
	sys.P.MulVec(sys.px1, sys.workx)
	diffPdiff := dot(sys.workx, sys.px1)

	num := rhsTau - rhsKappa/tau + dot(sys.q, x1) + dot(sys.b, z1) + 2*xiPx1
	den := kappa/tau - dot(sys.q, sys.x2) - dot(sys.b, sys.z2) + diffPdiff - sys.x2Px2
	dtau = num / den

	// Step 5: dx, dz recovery.
	dx, dz = sys.dx, sys.dz
	for i := range dx {
		dx[i] = x1[i] + dtau*sys.x2[i]
	}
	for i := range dz {
		dz[i] = z1[i] + dtau*sys.z2[i]
	}

	// Step 6: ds recovery, branching on symmetry exactly as step 1 did.
	dsOut = sys.dsOut
	for i, c := range sys.Cones.Cones {
		dzBlock := sys.Cones.Block(dz, i)
		dsBlock := sys.Cones.Block(dsOut, i)
		hsDz := sys.hsDz[:c.Dim()]
		work := sys.hsWork[:c.Dim()]
		c.MulHs(hsDz, dzBlock, work)
		dsOrig := sys.Cones.Block(ds, i)
		if c.IsSymmetric() {
			wtl := sys.Cones.Block(sys.wtlinvds, i)
			for k := range dsBlock {
				dsBlock[k] = -wtl[k] - hsDz[k]
			}
		} else {
			for k := range dsBlock {
				dsBlock[k] = -dsOrig[k] - hsDz[k]
			}
		}
	}

	// Step 7: dkappa from kappa*dtau + tau*dkappa = -rhsKappa.
	dkappa = -(rhsKappa + kappa*dtau) / tau

	return dx, dz, dsOut, dtau, dkappa
}

func dot(x, y []float64) float64 {
	s := 0.0
	for i := range x {
		s += x[i] * y[i]
	}
	return s
}
