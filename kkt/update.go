// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kkt

import "github.com/lindenhollow/conesolve/cone"

// UpdateScalingBlocks performs the numeric update described in spec.md
// §4.3: every cone's current Hessian block is written into K (negated,
// since K's (2,2) block holds -WᵀW), SOC cones additionally write their
// sign-flipped rank-2 bordering columns and extra diagonal entries, and
// the static regularization is re-applied to the m+p lower block (never
// the leading n block, which keeps its one-time epsI).
func UpdateScalingBlocks(K *Matrix, mp *Map, cones *cone.Set, eps float64, regEnable bool) {
	for i, c := range cones.Cones {
		d := c.Dim()
		diag := mp.scratchDiag[:d]
		if s := mp.socSlot[i]; s != nil {
			c.GetHsBlock(diag)
			for k := 0; k < d; k++ {
				K.Vals[mp.ConeDiag[i][k]] = -diag[k]
			}
			u, v := mp.scratchU[:d], mp.scratchV[:d]
			eta2 := c.(cone.Rank2Scaler).Rank2(u, v)
			for k := 0; k < d; k++ {
				K.Vals[s.uIdx[k]] = -u[k]
				K.Vals[s.vIdx[k]] = -v[k]
			}
			K.Vals[s.diagPos[0]] = -eta2
			K.Vals[s.diagPos[1]] = eta2
			continue
		}

		if c.Kind() == cone.Zero || c.Kind() == cone.Nonneg {
			// Exactly-diagonal Hessian: write GetHsBlock's O(d) diagonal
			// straight into K.Vals, skipping the unit-vector MulHs probe
			// below (which is still required for PSD/Power, whose scaled
			// Hessian carries genuine off-diagonal terms that GetHsBlock
			// only approximates or omits).
			c.GetHsBlock(diag)
			for k := 0; k < d; k++ {
				K.Vals[mp.ConeDiag[i][k]] = -diag[k]
			}
			continue
		}

		dense := mp.scratchDense[:d*(d+1)/2]
		unit := mp.scratchUnit[:d]
		work := mp.scratchWork[:d]
		cols := mp.scratchCols[:d]
		for k := 0; k < d; k++ {
			for j := range unit {
				unit[j] = 0
			}
			unit[k] = 1
			c.MulHs(cols[k][:d], unit, work)
		}
		idx := 0
		for r := 0; r < d; r++ {
			for cc := r; cc < d; cc++ {
				dense[idx] = cols[cc][r]
				idx++
			}
		}
		for k, di := range mp.ConeDense[i] {
			K.Vals[di] = -dense[k]
		}
	}

	if regEnable {
		for i, row := range mp.RegRows {
			sign := float64(mp.Dsigns[mp.n+i])
			K.Vals[row] += sign * eps
		}
	}
}
