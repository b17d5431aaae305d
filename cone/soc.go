// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cone

import "math"

// socCone is the second-order (quadratic) cone
// {(u0,u1) : u0 >= ||u1||}. Its Nesterov-Todd scaling is the
// "hyperbolic rotation" W built from a single J-unit vector wbar
// (J = diag(1,-I)):
//
//	W = eta * [ wbar0          wbar1^T                ]
//	          [ wbar1   I + wbar1 wbar1^T/(1+wbar0)    ]
//
// stored here as the scalar eta, wbar0, and the vector wbar1 so that
// MulHs/GemvW apply the block without materializing the dense matrix -
// the "rank-2" structure spec.md §3 sparsifies into K's extra p columns.
type socCone struct {
	dim   int
	eta   float64
	wbar0 float64
	wbar1 []float64
	lambda []float64
}

func newSOCCone(dim int) *socCone {
	return &socCone{dim: dim, wbar1: make([]float64, dim-1), lambda: make([]float64, dim)}
}

func (c *socCone) Kind() Kind        { return SOC }
func (c *socCone) Dim() int          { return c.dim }
func (c *socCone) Degree() int       { return 1 }
func (c *socCone) IsSymmetric() bool { return true }

func (c *socCone) UnitInitialization(s, z []float64) {
	s[0], z[0] = 1, 1
	for i := 1; i < c.dim; i++ {
		s[i], z[i] = 0, 0
	}
}

// jnorm computes the Jordan-algebra norm sqrt(x0^2 - ||x1||^2), or -1 if x
// is not in the interior of the cone.
func jnorm(x []float64) float64 {
	rest := ddot(len(x)-1, x[1:], x[1:])
	v := x[0]*x[0] - rest
	if v <= 0 || x[0] <= 0 {
		return -1
	}
	return math.Sqrt(v)
}

func (c *socCone) ShiftToCone(s []float64) {
	if jnorm(s) > 0 {
		return
	}
	norm1 := dnrm2(c.dim-1, s[1:])
	s[0] = norm1*(1+1e-8) + 1e-8
}

func (c *socCone) UpdateScaling(s, z []float64, mu float64) bool {
	sJ, zJ := jnorm(s), jnorm(z)
	if sJ <= 0 || zJ <= 0 {
		return false
	}
	n := c.dim
	sbar := make([]float64, n)
	zbar := make([]float64, n)
	for i := 0; i < n; i++ {
		sbar[i] = s[i] / sJ
		zbar[i] = z[i] / zJ
	}
	// gamma = sqrt((1 + sbar . zbar)/2) is half the Jordan norm of
	// sbar + J zbar, so dividing by 2*gamma leaves wbar a J-unit vector.
	gamma := math.Sqrt((1 + ddot(n, sbar, zbar)) / 2)
	if gamma <= 0 {
		return false
	}
	c.wbar0 = (sbar[0] + zbar[0]) / (2 * gamma)
	for i := 1; i < n; i++ {
		c.wbar1[i-1] = (sbar[i] - zbar[i]) / (2 * gamma)
	}
	c.eta = math.Sqrt(sJ / zJ)

	// lambda = W z, the unique Jordan-frame point with Wz = W^-1 s = lambda.
	c.applyW(z, c.lambda)
	return true
}

// applyW computes y = W x (equally W^T x, since the block form in the type
// doc comment is symmetric) using that closed block form.
func (c *socCone) applyW(x, y []float64) {
	n := c.dim
	y[0] = c.eta * (c.wbar0*x[0] + ddot(n-1, c.wbar1, x[1:]))
	dot1 := ddot(n-1, c.wbar1, x[1:])
	coeff := dot1 / (1 + c.wbar0)
	for i := 1; i < n; i++ {
		y[i] = c.eta * (c.wbar1[i-1]*x[0] + x[i] + c.wbar1[i-1]*coeff)
	}
}

// Rank2Scaler is implemented by cones whose WᵀW Hessian block the KKT
// assembler sparsifies into a diagonal plus two bordering columns rather
// than storing densely (spec.md §3). Only SOC implements it.
type Rank2Scaler interface {
	// Rank2 writes the two bordering columns u, v (each of cone dimension)
	// and returns eta2, the magnitude of the alternating ±eta2 diagonal
	// entries the assembler places on the two extra KKT rows/columns, such
	// that WᵀW ≈ diag(D) + u uᵀ - v vᵀ once those two variables are
	// eliminated by the LDLᵀ factorization.
	Rank2(u, v []float64) (eta2 float64)
}

func (c *socCone) Rank2(u, v []float64) float64 {
	n := c.dim
	u[0] = c.eta * c.wbar0
	v[0] = c.eta * c.wbar0
	for i := 1; i < n; i++ {
		u[i] = c.eta * c.wbar1[i-1]
		v[i] = -c.eta * c.wbar1[i-1]
	}
	return c.eta * c.eta
}

func (c *socCone) GetHsBlock(out []float64) {
	// Diagonal part only; the off-diagonal rank-2 contribution is carried
	// by the KKT assembler's U columns (spec.md §3), not by GetHsBlock.
	out[0] = c.eta * c.eta * (c.wbar0*c.wbar0 + ddot(c.dim-1, c.wbar1, c.wbar1))
	for i := 1; i < c.dim; i++ {
		out[i] = c.eta * c.eta * (1 + c.wbar1[i-1]*c.wbar1[i-1])
	}
}

func (c *socCone) MulHs(y, x, work []float64) {
	c.applyW(x, work)
	c.applyW(work, y)
}

func (c *socCone) AffineDs(ds, s []float64) {
	dcopy(c.dim, ds, s)
}

func (c *socCone) CombinedDsShift(shift, stepZ, stepS []float64, sigmaMu float64) {
	// shift = stepS circ stepZ - sigmaMu*e1, the SOC circle product of two
	// step directions minus the centering target on the identity element.
	n := c.dim
	shift[0] = ddot(n, stepS, stepZ) - sigmaMu
	for i := 1; i < n; i++ {
		shift[i] = stepS[0]*stepZ[i] + stepS[i]*stepZ[0]
	}
}

func (c *socCone) DeltaSFromDeltaZOffset(out, ds, work, z []float64) {
	n := c.dim
	wz := make([]float64, n)
	c.MulHs(wz, work, out)
	for i := 0; i < n; i++ {
		out[i] = -ds[i] - wz[i]
	}
}

func (c *socCone) StepLength(dz, ds, z, s []float64, alphaMax float64) (alphaZ, alphaS float64) {
	alphaZ = c.maxStep(z, dz, alphaMax)
	alphaS = c.maxStep(s, ds, alphaMax)
	return
}

// maxStep bounds alpha so that x + alpha*dx stays in the interior of the
// cone, via the standard SOC ratio test on the Jordan quadratic form.
func (c *socCone) maxStep(x, dx []float64, alphaMax float64) float64 {
	n := c.dim
	a := dx[0]*dx[0] - ddot(n-1, dx[1:], dx[1:])
	b := 2 * (x[0]*dx[0] - ddot(n-1, x[1:], dx[1:]))
	cc := x[0]*x[0] - ddot(n-1, x[1:], x[1:])
	alpha := alphaMax
	if a < 0 || (a == 0 && b < 0) {
		disc := b*b - 4*a*cc
		if disc >= 0 {
			root := (-b - math.Sqrt(disc)) / (2 * a)
			if root > 0 {
				alpha = math.Min(alpha, root)
			}
		}
	} else if b < 0 {
		alpha = math.Min(alpha, -cc/b)
	}
	return alpha
}

func (c *socCone) ComputeBarrier(z, s, dz, ds []float64, alpha float64) float64 {
	n := c.dim
	sv := make([]float64, n)
	zv := make([]float64, n)
	for i := 0; i < n; i++ {
		sv[i] = s[i] + alpha*ds[i]
		zv[i] = z[i] + alpha*dz[i]
	}
	sJ, zJ := jnorm(sv), jnorm(zv)
	if sJ <= 0 || zJ <= 0 {
		return math.Inf(1)
	}
	return -logsafe(sJ*sJ) - logsafe(zJ*zJ)
}

func (c *socCone) LambdaInvCircOp(out, ds []float64) {
	n := c.dim
	lJ2 := c.lambda[0]*c.lambda[0] - ddot(n-1, c.lambda[1:], c.lambda[1:])
	lInvDs := ddot(n-1, c.lambda[1:], ds[1:])
	out[0] = (c.lambda[0]*ds[0] - lInvDs) / lJ2
	for i := 1; i < n; i++ {
		out[i] = (ds[i] - out[0]*c.lambda[i]) / c.lambda[0]
	}
}

func (c *socCone) GemvW(transpose bool, x, y []float64, alpha, beta float64) {
	n := c.dim
	tmp := make([]float64, n)
	c.applyW(x, tmp)
	for i := 0; i < n; i++ {
		y[i] = alpha*tmp[i] + beta*y[i]
	}
}
