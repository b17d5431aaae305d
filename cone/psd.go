// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cone

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// psdCone is the cone of symmetric positive-semidefinite d-by-d matrices,
// represented in "svec" form as a vector of length dim = d(d+1)/2: the
// lower triangle column-major, with off-diagonal entries scaled by
// sqrt(2) so that the Euclidean inner product on the vector matches the
// trace inner product on the matrix (spec.md §4.1's "congruence" scaling).
//
// The Nesterov-Todd scaling matrix W is never materialized densely; it is
// applied as a congruence W^T (.) W on the unpacked matrix via
// gonum/mat's dense BLAS-backed Mul, grounded in
// hrautila-go.opt__acent.go's use of a Cholesky-based dense SPD solve
// (there lapack.PosvFloat, here gonum/mat.Cholesky) per SPEC_FULL.md §2.
type psdCone struct {
	dim int
	d   int // matrix order, dim = d(d+1)/2

	// ls, lz are the Cholesky factors of the unpacked s and z matrices;
	// rz holds Lz^-1 Ls so that the congruence factor can be reapplied
	// without refactorizing on every MulHs call.
	ls, lz, rz *mat.Dense
	lambda     []float64
}

func newPSDCone(dim int) *psdCone {
	d := matOrderFromSvecDim(dim)
	return &psdCone{dim: dim, d: d, lambda: make([]float64, dim)}
}

func matOrderFromSvecDim(dim int) int {
	// dim = d(d+1)/2  =>  d = (sqrt(8*dim+1)-1)/2
	return int(math.Round((math.Sqrt(float64(8*dim+1)) - 1) / 2))
}

func (c *psdCone) Kind() Kind        { return PSD }
func (c *psdCone) Dim() int          { return c.dim }
func (c *psdCone) Degree() int       { return c.d }
func (c *psdCone) IsSymmetric() bool { return true }

// unvec unpacks svec x into the dense symmetric matrix m (allocated d-by-d).
func (c *psdCone) unvec(x []float64, m *mat.Dense) {
	const sqrt2 = math.Sqrt2
	k := 0
	for j := 0; j < c.d; j++ {
		for i := j; i < c.d; i++ {
			v := x[k]
			if i != j {
				v /= sqrt2
			}
			m.Set(i, j, v)
			m.Set(j, i, v)
			k++
		}
	}
}

// vec packs the lower triangle of the dense symmetric matrix m into svec x.
func (c *psdCone) vec(m *mat.Dense, x []float64) {
	const sqrt2 = math.Sqrt2
	k := 0
	for j := 0; j < c.d; j++ {
		for i := j; i < c.d; i++ {
			v := m.At(i, j)
			if i != j {
				v *= sqrt2
			}
			x[k] = v
			k++
		}
	}
}

func (c *psdCone) UnitInitialization(s, z []float64) {
	dzero(s)
	dzero(z)
	k := 0
	for j := 0; j < c.d; j++ {
		for i := j; i < c.d; i++ {
			if i == j {
				s[k], z[k] = 1, 1
			}
			k++
		}
	}
}

func (c *psdCone) ShiftToCone(s []float64) {
	m := mat.NewDense(c.d, c.d, nil)
	c.unvec(s, m)
	var eig mat.EigenSym
	sym := mat.NewSymDense(c.d, nil)
	for i := 0; i < c.d; i++ {
		for j := 0; j < c.d; j++ {
			sym.SetSym(i, j, m.At(i, j))
		}
	}
	if !eig.Factorize(sym, false) {
		return
	}
	minEig := math.Inf(1)
	for _, v := range eig.Values(nil) {
		minEig = math.Min(minEig, v)
	}
	if minEig >= 1e-8 {
		return
	}
	shift := 1e-8 - minEig
	for i := 0; i < c.d; i++ {
		m.Set(i, i, m.At(i, i)+shift)
	}
	c.vec(m, s)
}

func (c *psdCone) UpdateScaling(s, z []float64, mu float64) bool {
	ms := mat.NewDense(c.d, c.d, nil)
	mz := mat.NewDense(c.d, c.d, nil)
	c.unvec(s, ms)
	c.unvec(z, mz)

	symS := denseToSym(ms)
	symZ := denseToSym(mz)

	var cs, cz mat.Cholesky
	if !cs.Factorize(symS) || !cz.Factorize(symZ) {
		return false
	}
	var lsT, lzT mat.TriDense
	cs.LTo(&lsT)
	cz.LTo(&lzT)
	var ls, lz mat.Dense
	ls.CloneFrom(&lsT)
	lz.CloneFrom(&lzT)
	c.ls, c.lz = &ls, &lz

	// rz = Lz^-1 Ls via SVD of Lz^T Ls, following the standard
	// Nesterov-Todd congruence construction for the PSD cone.
	var prod mat.Dense
	prod.Mul(lz.T(), &ls)
	var svd mat.SVD
	if !svd.Factorize(&prod, mat.SVDFull) {
		return false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sv := svd.Values(nil)

	var sigmaInvSqrt mat.Dense
	sigmaInvSqrt.CloneFrom(&u)
	sigmaInvSqrt.Zero()
	for i, s := range sv {
		sigmaInvSqrt.Set(i, i, 1/math.Sqrt(s))
	}

	// R = Ls * V * Sigma^-1/2 * U^T * Lz^T  (so that W(x) = R^T x R).
	var r mat.Dense
	r.Mul(&ls, &v)
	r.Mul(&r, &sigmaInvSqrt)
	r.Mul(&r, u.T())
	var rOut mat.Dense
	rOut.Mul(&r, lz.T())
	c.rz = &rOut
	c.computeLambda(sv)
	return true
}

// computeLambda sets lambda to the diagonal eigen-frame point, whose svec
// diagonal entries are the singular values sv of Lz^T Ls (the NT frame's
// defining property W z = W^-1 s = lambda).
func (c *psdCone) computeLambda(sv []float64) {
	dzero(c.lambda)
	k := 0
	for j := 0; j < c.d; j++ {
		for i := j; i < c.d; i++ {
			if i == j && j < len(sv) {
				c.lambda[k] = sv[j]
			}
			k++
		}
	}
}

func denseToSym(m *mat.Dense) *mat.SymDense {
	n, _ := m.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, m.At(i, j))
		}
	}
	return sym
}

// congruence applies out = R^T * mat(x) * R for the stored congruence
// factor R, packing the result back into svec form.
func (c *psdCone) congruence(out, x []float64) {
	mx := mat.NewDense(c.d, c.d, nil)
	c.unvec(x, mx)
	var tmp, res mat.Dense
	tmp.Mul(c.rz.T(), mx)
	res.Mul(&tmp, c.rz)
	c.vec(&res, out)
}

func (c *psdCone) GetHsBlock(out []float64) {
	// Diagonal approximation of the symmetric-Kronecker Hessian block;
	// exact off-diagonal terms are carried by MulHs for the actual solve.
	c.congruence(out, identitySvec(c.dim, c.d))
}

// identitySvec returns the svec of the d-by-d identity matrix.
func identitySvec(dim, d int) []float64 {
	v := make([]float64, dim)
	k := 0
	for j := 0; j < d; j++ {
		for i := j; i < d; i++ {
			if i == j {
				v[k] = 1
			}
			k++
		}
	}
	return v
}

func (c *psdCone) MulHs(y, x, work []float64) {
	c.congruence(y, x)
}

func (c *psdCone) AffineDs(ds, s []float64) {
	dcopy(c.dim, ds, s)
}

func (c *psdCone) CombinedDsShift(shift, stepZ, stepS []float64, sigmaMu float64) {
	// symmetrized product (stepS o stepZ) in matrix form, minus sigmaMu*I.
	ms := mat.NewDense(c.d, c.d, nil)
	mz := mat.NewDense(c.d, c.d, nil)
	c.unvec(stepS, ms)
	c.unvec(stepZ, mz)
	var prod, prodT, sym mat.Dense
	prod.Mul(ms, mz)
	prodT.CloneFrom(prod.T())
	sym.Add(&prod, &prodT)
	sym.Scale(0.5, &sym)
	for i := 0; i < c.d; i++ {
		sym.Set(i, i, sym.At(i, i)-sigmaMu)
	}
	c.vec(&sym, shift)
}

func (c *psdCone) DeltaSFromDeltaZOffset(out, ds, work, z []float64) {
	wz := make([]float64, c.dim)
	c.MulHs(wz, work, nil)
	for i := 0; i < c.dim; i++ {
		out[i] = -ds[i] - wz[i]
	}
}

func (c *psdCone) StepLength(dz, ds, z, s []float64, alphaMax float64) (alphaZ, alphaS float64) {
	alphaZ = c.maxStep(z, dz, alphaMax)
	alphaS = c.maxStep(s, ds, alphaMax)
	return
}

func (c *psdCone) maxStep(x, dx []float64, alphaMax float64) float64 {
	mx := mat.NewDense(c.d, c.d, nil)
	mdx := mat.NewDense(c.d, c.d, nil)
	c.unvec(x, mx)
	c.unvec(dx, mdx)
	symX := denseToSym(mx)
	var cx mat.Cholesky
	if !cx.Factorize(symX) {
		return 0
	}
	var lxT mat.TriDense
	cx.LTo(&lxT)
	var lx mat.Dense
	lx.CloneFrom(&lxT)
	var lxInv mat.Dense
	if err := lxInv.Inverse(&lx); err != nil {
		return 0
	}
	var m mat.Dense
	m.Mul(&lxInv, mdx)
	m.Mul(&m, lxInv.T())
	symM := denseToSym(&m)
	var eig mat.EigenSym
	if !eig.Factorize(symM, false) {
		return alphaMax
	}
	minEig := 0.0
	for _, v := range eig.Values(nil) {
		minEig = math.Min(minEig, v)
	}
	if minEig >= 0 {
		return alphaMax
	}
	return math.Min(alphaMax, -1/minEig)
}

func (c *psdCone) ComputeBarrier(z, s, dz, ds []float64, alpha float64) float64 {
	sv := make([]float64, c.dim)
	zv := make([]float64, c.dim)
	for i := 0; i < c.dim; i++ {
		sv[i] = s[i] + alpha*ds[i]
		zv[i] = z[i] + alpha*dz[i]
	}
	ms := mat.NewDense(c.d, c.d, nil)
	mz := mat.NewDense(c.d, c.d, nil)
	c.unvec(sv, ms)
	c.unvec(zv, mz)
	var cs, cz mat.Cholesky
	if !cs.Factorize(denseToSym(ms)) || !cz.Factorize(denseToSym(mz)) {
		return math.Inf(1)
	}
	return -2 * (logDetFromCholesky(&cs) + logDetFromCholesky(&cz))
}

func logDetFromCholesky(c *mat.Cholesky) float64 {
	return c.LogDet()
}

func (c *psdCone) LambdaInvCircOp(out, ds []float64) {
	// lambda is diagonal in its own eigen-frame; the left-inverse circle
	// product on the diagonal frame reduces to a Sylvester-style divide.
	md := mat.NewDense(c.d, c.d, nil)
	c.unvec(ds, md)
	res := mat.NewDense(c.d, c.d, nil)
	for i := 0; i < c.d; i++ {
		for j := 0; j < c.d; j++ {
			li := c.diagLambda(i)
			lj := c.diagLambda(j)
			res.Set(i, j, md.At(i, j)*2/(li+lj))
		}
	}
	c.vec(res, out)
}

func (c *psdCone) diagLambda(i int) float64 {
	k := 0
	for j := 0; j < c.d; j++ {
		for ii := j; ii < c.d; ii++ {
			if ii == j && j == i {
				return c.lambda[k]
			}
			k++
		}
	}
	return 1
}

func (c *psdCone) GemvW(transpose bool, x, y []float64, alpha, beta float64) {
	tmp := make([]float64, c.dim)
	c.congruence(tmp, x)
	for i := 0; i < c.dim; i++ {
		y[i] = alpha*tmp[i] + beta*y[i]
	}
}
