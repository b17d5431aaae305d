// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cone

import "math"

// nonnegCone is R^dim_+, self-dual, with Nesterov-Todd scaling
// w_i = sqrt(s_i/z_i) and lambda_i = sqrt(s_i*z_i) = w_i*z_i = s_i/w_i.
type nonnegCone struct {
	dim    int
	w      []float64
	lambda []float64
}

func newNonnegCone(dim int) *nonnegCone {
	return &nonnegCone{dim: dim, w: make([]float64, dim), lambda: make([]float64, dim)}
}

func (c *nonnegCone) Kind() Kind        { return Nonneg }
func (c *nonnegCone) Dim() int          { return c.dim }
func (c *nonnegCone) Degree() int       { return c.dim }
func (c *nonnegCone) IsSymmetric() bool { return true }

func (c *nonnegCone) UnitInitialization(s, z []float64) {
	for i := 0; i < c.dim; i++ {
		s[i], z[i] = 1, 1
	}
}

func (c *nonnegCone) ShiftToCone(s []float64) {
	minS := math.Inf(1)
	for i := 0; i < c.dim; i++ {
		minS = math.Min(minS, s[i])
	}
	if minS < 1e-8 {
		shift := 1e-8 - minS
		for i := 0; i < c.dim; i++ {
			s[i] += shift
		}
	}
}

func (c *nonnegCone) UpdateScaling(s, z []float64, mu float64) bool {
	for i := 0; i < c.dim; i++ {
		if s[i] <= 0 || z[i] <= 0 {
			return false
		}
		c.w[i] = math.Sqrt(s[i] / z[i])
		c.lambda[i] = math.Sqrt(s[i] * z[i])
	}
	return true
}

func (c *nonnegCone) GetHsBlock(out []float64) {
	for i := 0; i < c.dim; i++ {
		out[i] = c.w[i] * c.w[i]
	}
}

func (c *nonnegCone) MulHs(y, x, work []float64) {
	for i := 0; i < c.dim; i++ {
		y[i] = c.w[i] * c.w[i] * x[i]
	}
}

func (c *nonnegCone) AffineDs(ds, s []float64) {
	dcopy(c.dim, ds, s)
}

func (c *nonnegCone) CombinedDsShift(shift, stepZ, stepS []float64, sigmaMu float64) {
	for i := 0; i < c.dim; i++ {
		shift[i] = stepZ[i]*stepS[i] - sigmaMu
	}
}

func (c *nonnegCone) DeltaSFromDeltaZOffset(out, ds, work, z []float64) {
	for i := 0; i < c.dim; i++ {
		out[i] = -ds[i] - c.w[i]*c.w[i]*work[i]
	}
}

func (c *nonnegCone) StepLength(dz, ds, z, s []float64, alphaMax float64) (alphaZ, alphaS float64) {
	alphaZ, alphaS = alphaMax, alphaMax
	for i := 0; i < c.dim; i++ {
		if dz[i] < 0 {
			alphaZ = math.Min(alphaZ, -z[i]/dz[i])
		}
		if ds[i] < 0 {
			alphaS = math.Min(alphaS, -s[i]/ds[i])
		}
	}
	return
}

func (c *nonnegCone) ComputeBarrier(z, s, dz, ds []float64, alpha float64) float64 {
	b := 0.0
	for i := 0; i < c.dim; i++ {
		b -= logsafe(s[i]+alpha*ds[i]) + logsafe(z[i]+alpha*dz[i])
	}
	return b
}

func (c *nonnegCone) LambdaInvCircOp(out, ds []float64) {
	for i := 0; i < c.dim; i++ {
		out[i] = ds[i] / c.lambda[i]
	}
}

func (c *nonnegCone) GemvW(transpose bool, x, y []float64, alpha, beta float64) {
	for i := 0; i < c.dim; i++ {
		y[i] = alpha*c.w[i]*x[i] + beta*y[i]
	}
}
