// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conesolve

import (
	"gonum.org/v1/gonum/floats"

	"github.com/lindenhollow/conesolve/kkt"
)

// Residuals holds the primal/dual/centrality residuals and the
// intermediates spec.md §4.5 fixes a computation order for so every
// dot product is computed exactly once per iteration.
type Residuals struct {
	Px []float64 // length n, reused across calls
	RxInf, RzInf []float64
	Rx, Rz       []float64
	RTau         float64

	Qx, Bz, Sz, XPx float64

	atz []float64 // scratch Aᵀz, length n
	ax  []float64 // scratch Ax, length m
}

// NewResiduals allocates the workspace vectors once, per spec.md §5's
// "no allocation on the hot path" rule.
func NewResiduals(n, m int) *Residuals {
	return &Residuals{
		Px:    make([]float64, n),
		RxInf: make([]float64, n),
		RzInf: make([]float64, m),
		Rx:    make([]float64, n),
		Rz:    make([]float64, m),
		atz:   make([]float64, n),
		ax:    make([]float64, m),
	}
}

// Update recomputes every residual from the current variables, in the
// exact order spec.md §4.5 specifies so later terms can reuse earlier
// intermediates. The scalar reductions (qᵀx, bᵀz, sᵀz, xᵀPx) go through
// gonum/floats.Dot rather than a hand-rolled loop (SPEC_FULL.md §2); only
// the single-cone hot-path kernels in package cone keep the teacher's
// manual unrolled style, since those run inside the per-cone dispatch and
// must not take an interface-dispatch detour.
func (r *Residuals) Update(P *kkt.UpperCSC, A *kkt.CSC, q, b []float64, x, s, z []float64, tau, kappa float64) {
	r.Qx = floats.Dot(q, x)
	r.Bz = floats.Dot(b, z)
	r.Sz = floats.Dot(s, z)

	P.MulVec(r.Px, x)
	r.XPx = floats.Dot(x, r.Px)

	A.MulVecTrans(r.atz, z)
	for i := range r.RxInf {
		r.RxInf[i] = -r.Px[i] - r.atz[i]
	}

	A.MulVec(r.ax, x)
	for i := range r.RzInf {
		r.RzInf[i] = r.ax[i] + s[i]
	}

	for i := range r.Rx {
		r.Rx[i] = r.RxInf[i] - q[i]*tau
	}
	for i := range r.Rz {
		r.Rz[i] = r.RzInf[i] - b[i]*tau
	}
	r.RTau = r.Qx + r.Bz + kappa + r.XPx/tau
}

func dotSlice(x, y []float64) float64 {
	return floats.Dot(x, y)
}
