// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cone

// zeroCone is the cone {0}^dim: its dual is all of R^dim, so every z is
// dual-feasible and the only feasible s is the origin. It carries no
// scaling state and contributes nothing to the barrier.
type zeroCone struct {
	dim int
}

func newZeroCone(dim int) *zeroCone { return &zeroCone{dim: dim} }

func (c *zeroCone) Kind() Kind      { return Zero }
func (c *zeroCone) Dim() int        { return c.dim }
func (c *zeroCone) Degree() int     { return 0 }
func (c *zeroCone) IsSymmetric() bool { return true }

func (c *zeroCone) UnitInitialization(s, z []float64) {
	dzero(s[:c.dim])
	dzero(z[:c.dim])
}

func (c *zeroCone) ShiftToCone(s []float64) {
	dzero(s[:c.dim])
}

func (c *zeroCone) UpdateScaling(s, z []float64, mu float64) bool { return true }

func (c *zeroCone) GetHsBlock(out []float64) {
	dzero(out[:c.dim])
}

func (c *zeroCone) MulHs(y, x, work []float64) {
	dzero(y[:c.dim])
}

func (c *zeroCone) AffineDs(ds, s []float64) {
	dzero(ds[:c.dim])
}

func (c *zeroCone) CombinedDsShift(shift, stepZ, stepS []float64, sigmaMu float64) {
	dzero(shift[:c.dim])
}

func (c *zeroCone) DeltaSFromDeltaZOffset(out, ds, work, z []float64) {
	dzero(out[:c.dim])
}

func (c *zeroCone) StepLength(dz, ds, z, s []float64, alphaMax float64) (float64, float64) {
	return alphaMax, alphaMax
}

func (c *zeroCone) ComputeBarrier(z, s, dz, ds []float64, alpha float64) float64 {
	return 0
}

func (c *zeroCone) LambdaInvCircOp(out, ds []float64) {
	dzero(out[:c.dim])
}

func (c *zeroCone) GemvW(transpose bool, x, y []float64, alpha, beta float64) {
	dscal(c.dim, beta, y[:c.dim])
}

func dzero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}
