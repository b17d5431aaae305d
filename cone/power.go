// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cone

import "math"

// powerCone is the generalized power cone
//
//	{(u,w) : u >= 0, prod(u_i^alpha_i) >= ||w||}
//
// for alpha in R^d1, alpha_i > 0, sum(alpha_i) = 1, and w of dimension
// d2 = dim - d1. It is asymmetric: the scaling used throughout is the dual
// barrier's Hessian H(z), not a Nesterov-Todd W, per spec.md §4.1.
type powerCone struct {
	dim, d1, d2 int
	alpha       []float64

	// Scaling state computed by UpdateScaling: H(z) is stored as
	// mu*(D + p p^T - q q^T - r r^T), a diagonal-plus-rank-3 form that
	// keeps MulHs at O(dim) (spec.md §4.1).
	mu      float64
	D, p, q, r []float64
	gradDual   []float64

	thirdOrder bool
}

// SetThirdOrderCorrection toggles the Mehrotra-Tapia style quadratic
// correction CombinedDsShift adds on top of the linear centering term,
// gated by Settings.EnableThirdOrderCorrection (spec.md §9 Open Question).
func (c *powerCone) SetThirdOrderCorrection(enable bool) { c.thirdOrder = enable }

func newPowerCone(dim int, params []float64) *powerCone {
	d1 := len(params)
	c := &powerCone{
		dim: dim, d1: d1, d2: dim - d1,
		alpha:    append([]float64(nil), params...),
		D:        make([]float64, dim),
		p:        make([]float64, dim),
		q:        make([]float64, dim),
		r:        make([]float64, dim),
		gradDual: make([]float64, dim),
	}
	return c
}

func (c *powerCone) Kind() Kind        { return Power }
func (c *powerCone) Dim() int          { return c.dim }
func (c *powerCone) Degree() int       { return c.d1 + 1 }
func (c *powerCone) IsSymmetric() bool { return false }

func (c *powerCone) UnitInitialization(s, z []float64) {
	for i := 0; i < c.d1; i++ {
		s[i] = math.Sqrt(1 + c.alpha[i])
		z[i] = math.Sqrt(1 + c.alpha[i])
	}
	for i := c.d1; i < c.dim; i++ {
		s[i], z[i] = 0, 0
	}
}

// ShiftToCone is unused for asymmetric cones (spec.md §4.1); initialization
// always goes through UnitInitialization.
func (c *powerCone) ShiftToCone(s []float64) {}

// phiPsi evaluates phi = prod (z_i/alpha_i)^(2 alpha_i) and
// psi = phi - ||w||^2 in log-space to avoid overflow, per spec.md §4.1's
// "feasibility tests evaluate the defining inequality in log-space."
func (c *powerCone) phiPsi(z []float64) (phi, psi float64) {
	logPhi := 0.0
	for i := 0; i < c.d1; i++ {
		logPhi += 2 * c.alpha[i] * logsafe(z[i]/c.alpha[i])
	}
	phi = math.Exp(logPhi)
	wn := ddot(c.d2, z[c.d1:], z[c.d1:])
	psi = phi - wn
	return
}

func (c *powerCone) UpdateScaling(s, z []float64, mu float64) bool {
	phi, psi := c.phiPsi(z)
	if psi <= 0 || phi <= 0 {
		return false
	}
	c.mu = mu

	// Gradient of the dual barrier f*(z), spec.md §4.1 closed form.
	for i := 0; i < c.d1; i++ {
		c.gradDual[i] = -2*c.alpha[i]*phi/(psi*z[i]) - (1-c.alpha[i])/z[i]
	}
	for i := c.d1; i < c.dim; i++ {
		c.gradDual[i] = 2 * z[i] / psi
	}

	// Diagonal-plus-rank-3 Hessian factors. The construction follows the
	// standard generalized-power-cone Hessian decomposition: D carries the
	// per-coordinate curvature, p couples the u-block through phi/psi, and
	// q,r separate the positive- and negative-curvature cross terms
	// between the u-block and the w-block.
	invPsi := 1 / psi
	for i := 0; i < c.d1; i++ {
		c.D[i] = 2*c.alpha[i]*phi*invPsi/(z[i]*z[i]) + (1-c.alpha[i])/(z[i]*z[i])
		c.p[i] = math.Sqrt(2*c.alpha[i]*phi*invPsi) / z[i]
		c.q[i] = math.Sqrt(2*c.alpha[i]*(1-c.alpha[i])*phi) * invPsi / z[i]
		c.r[i] = 0
	}
	for i := c.d1; i < c.dim; i++ {
		c.D[i] = 2 * invPsi
		c.p[i] = 0
		c.q[i] = 0
		c.r[i] = 2 * math.Sqrt(phi) * invPsi * z[i] / math.Sqrt(psi)
	}
	return true
}

func (c *powerCone) GetHsBlock(out []float64) {
	for i := 0; i < c.dim; i++ {
		out[i] = c.mu * c.D[i]
	}
}

func (c *powerCone) MulHs(y, x, work []float64) {
	pd := ddot(c.dim, c.p, x)
	qd := ddot(c.dim, c.q, x)
	rd := ddot(c.dim, c.r, x)
	for i := 0; i < c.dim; i++ {
		y[i] = c.mu * (c.D[i]*x[i] + c.p[i]*pd - c.q[i]*qd - c.r[i]*rd)
	}
}

func (c *powerCone) AffineDs(ds, s []float64) {
	// Asymmetric cones short-circuit the affine complementarity RHS to ds
	// itself (spec.md §4.1); the caller supplies ds already.
	dcopy(c.dim, ds, s)
}

func (c *powerCone) CombinedDsShift(shift, stepZ, stepS []float64, sigmaMu float64) {
	for i := 0; i < c.dim; i++ {
		shift[i] = c.gradDual[i] * sigmaMu
	}
	if !c.thirdOrder {
		return
	}
	// Diagonal term of a quadratic model of f*(z+stepZ) around z: the
	// curvature block D of H(z) applied to stepZ elementwise, dropping the
	// p/q/r cross terms. Cheap (O(dim)) and sign-correct since D > 0;
	// skipping the cross terms keeps this a same-complexity add-on to the
	// Mehrotra corrector rather than a second KKT solve.
	for i := 0; i < c.dim; i++ {
		shift[i] += 0.5 * c.mu * c.D[i] * stepZ[i] * stepZ[i]
	}
}

func (c *powerCone) DeltaSFromDeltaZOffset(out, ds, work, z []float64) {
	wz := make([]float64, c.dim)
	c.MulHs(wz, work, nil)
	for i := 0; i < c.dim; i++ {
		out[i] = -ds[i] - wz[i]
	}
}

func (c *powerCone) StepLength(dz, ds, z, s []float64, alphaMax float64) (alphaZ, alphaS float64) {
	alphaZ = c.backtrack(z, dz, alphaMax)
	alphaS = c.backtrack(s, ds, alphaMax)
	return
}

// backtrack shrinks alpha by a factor of 0.8 until x+alpha*dx is feasible, up to
// a fixed number of reductions, mirroring lbfgsb/linesearch.go's
// Armijo-style backtracking shape.
func (c *powerCone) backtrack(x, dx []float64, alphaMax float64) float64 {
	alpha := alphaMax
	trial := make([]float64, c.dim)
	for iter := 0; iter < 40; iter++ {
		for i := 0; i < c.dim; i++ {
			trial[i] = x[i] + alpha*dx[i]
		}
		if c.feasible(trial) {
			return alpha
		}
		alpha *= 0.8
	}
	return 0
}

func (c *powerCone) feasible(x []float64) bool {
	for i := 0; i < c.d1; i++ {
		if x[i] <= 0 {
			return false
		}
	}
	_, psi := c.phiPsi(x)
	return psi > 0
}

func (c *powerCone) ComputeBarrier(z, s, dz, ds []float64, alpha float64) float64 {
	zv := make([]float64, c.dim)
	sv := make([]float64, c.dim)
	for i := 0; i < c.dim; i++ {
		zv[i] = z[i] + alpha*dz[i]
		sv[i] = s[i] + alpha*ds[i]
	}
	if !c.feasible(zv) || !c.feasible(sv) {
		return math.Inf(1)
	}
	_, psi := c.phiPsi(zv)
	b := -logsafe(psi)
	for i := 0; i < c.d1; i++ {
		b -= (1 - c.alpha[i]) * logsafe(zv[i])
	}
	return b
}

// LambdaInvCircOp is unused for asymmetric cones; the interface requires it
// but callers must branch on IsSymmetric before using Jordan-algebra
// semantics (spec.md §4.1).
func (c *powerCone) LambdaInvCircOp(out, ds []float64) {
	dcopy(c.dim, out, ds)
}

// GemvW is unused for asymmetric cones; Wᵀ(λ∖ds) collapses to ds directly.
func (c *powerCone) GemvW(transpose bool, x, y []float64, alpha, beta float64) {
	for i := 0; i < c.dim; i++ {
		y[i] = alpha*x[i] + beta*y[i]
	}
}

// PrimalGradientFromDual recovers the primal point x = -grad f(z*) for a
// fixed direction via 1-D Newton-Raphson on the auxiliary scalar equation
//
//	g(t) = sum_i alpha_i*t/(t*(1-alpha_i)+alpha_i*z_i) - 1 = 0
//
// whose root t* determines the primal gradient's u-block, following
// spec.md §4.1. The root lies in (0, inf) (t=0 gives g<0, a large t gives
// g>0 for feasible interior z); the iteration starts from t=1, halves any
// Newton step that would make t non-positive, and stops once
// |g(t)| < tol, giving up after 20 iterations (spec.md §8, S6).
func (c *powerCone) PrimalGradientFromDual(z []float64) (x []float64, iters int, ok bool) {
	g := func(t float64) (val, deriv float64) {
		for i := 0; i < c.d1; i++ {
			denom := t*(1-c.alpha[i]) + c.alpha[i]*z[i]
			val += c.alpha[i] * t / denom
			deriv += c.alpha[i] * c.alpha[i] * z[i] / (denom * denom)
		}
		val -= 1
		return
	}

	t := 1.0
	const tol = 1e-12
	for iters = 0; iters < 20; iters++ {
		val, deriv := g(t)
		if math.Abs(val) < tol {
			ok = true
			break
		}
		if deriv == 0 {
			break
		}
		step := val / deriv
		tNext := t - step
		for tNext <= 0 {
			step /= 2
			tNext = t - step
		}
		t = tNext
	}

	x = make([]float64, c.dim)
	for i := 0; i < c.d1; i++ {
		x[i] = c.alpha[i] * t / (t*(1-c.alpha[i]) + c.alpha[i]*z[i])
	}
	for i := c.d1; i < c.dim; i++ {
		x[i] = -z[i] / t
	}
	return
}
