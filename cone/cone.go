// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cone implements the per-cone feasibility, scaling, Hessian
// product, step-length and barrier operations consumed by the homogeneous
// self-dual embedding iteration and the KKT system driver.
package cone

// Kind is a closed tagged-union of the supported cone kinds. Dispatch is
// performed once per cone per phase (never per element) through one Cone
// interface method call per cone block, following the "avoid
// dynamic-dispatch cost on hot inner products" guidance of spec.md §9.
type Kind int

const (
	Zero Kind = iota
	Nonneg
	SOC
	PSD
	Power
)

func (k Kind) String() string {
	switch k {
	case Zero:
		return "Zero"
	case Nonneg:
		return "Nonneg"
	case SOC:
		return "SOC"
	case PSD:
		return "PSD"
	case Power:
		return "Power"
	default:
		return "Unknown"
	}
}

// StepType distinguishes the affine (predictor) solve from the combined
// (corrector) solve in the KKT driver's reduced system (spec.md §4.4).
type StepType int

const (
	Affine StepType = iota
	Combined
)

// Cone is the uniform interface every cone kind exposes to the HSDE
// iteration and the KKT layer (spec.md §4.1). All vector arguments are
// already restricted to this cone's own block; callers own the slicing.
type Cone interface {
	Kind() Kind
	Dim() int
	// Degree is the cone's barrier degree, summed with all other cones'
	// to form ν in μ = (sᵀz+τκ)/(ν+1).
	Degree() int
	IsSymmetric() bool

	UnitInitialization(s, z []float64)
	// ShiftToCone nudges an infeasible (s,z) pair (from the two fixed
	// initialization KKT solves, spec.md §4.6) into the cone's interior.
	// Symmetric cones only; asymmetric cones use UnitInitialization instead.
	ShiftToCone(s []float64)

	UpdateScaling(s, z []float64, mu float64) bool
	GetHsBlock(out []float64)
	MulHs(y, x, work []float64)

	AffineDs(ds, s []float64)
	CombinedDsShift(shift, stepZ, stepS []float64, sigmaMu float64)
	DeltaSFromDeltaZOffset(out, ds, work, z []float64)

	StepLength(dz, ds, z, s []float64, alphaMax float64) (alphaZ, alphaS float64)
	ComputeBarrier(z, s, dz, ds []float64, alpha float64) float64

	// LambdaInvCircOp and GemvW apply only to symmetric cones; asymmetric
	// cones implement them as the ds/dual-Hessian shortcuts spec.md §4.1
	// describes and callers must check IsSymmetric before relying on the
	// Jordan-algebra semantics.
	LambdaInvCircOp(out, ds []float64)
	GemvW(transpose bool, x, y []float64, alpha, beta float64)
}

// New constructs the cone implementation for kind with the given block
// dimension and kind-specific parameters (only Power uses params, the
// exponent vector α).
func New(kind Kind, dim int, params []float64) Cone {
	switch kind {
	case Zero:
		return newZeroCone(dim)
	case Nonneg:
		return newNonnegCone(dim)
	case SOC:
		return newSOCCone(dim)
	case PSD:
		return newPSDCone(dim)
	case Power:
		return newPowerCone(dim, params)
	default:
		panic("cone: unknown kind")
	}
}
