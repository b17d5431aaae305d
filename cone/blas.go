// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cone

import "math"

// Level-1 vector kernels used on the hot path inside cone dispatch. These
// are unrolled, allocation-free, and deliberately not routed through
// gonum/floats — see SPEC_FULL.md §2.

// daxpy computes y += a*x element-wise.
func daxpy(n int, a float64, x []float64, y []float64) {
	if n <= 0 || a == 0 {
		return
	}
	m := n % 4
	for i := 0; i < m; i++ {
		y[i] += a * x[i]
	}
	for i := m; i < n; i += 4 {
		y[i] += a * x[i]
		y[i+1] += a * x[i+1]
		y[i+2] += a * x[i+2]
		y[i+3] += a * x[i+3]
	}
}

// ddot computes the dot product of x and y.
func ddot(n int, x, y []float64) (dot float64) {
	m := n % 4
	for i := 0; i < m; i++ {
		dot += x[i] * y[i]
	}
	for i := m; i < n; i += 4 {
		dot += x[i]*y[i] + x[i+1]*y[i+1] + x[i+2]*y[i+2] + x[i+3]*y[i+3]
	}
	return dot
}

// dscal scales x in place by a.
func dscal(n int, a float64, x []float64) {
	for i := 0; i < n; i++ {
		x[i] *= a
	}
}

// dcopy copies n elements of src into dst.
func dcopy(n int, dst, src []float64) {
	copy(dst[:n], src[:n])
}

// dnrm2 computes the Euclidean norm of x.
func dnrm2(n int, x []float64) float64 {
	scale, ssq := 0.0, 1.0
	for i := 0; i < n; i++ {
		ax := math.Abs(x[i])
		if ax == 0 {
			continue
		}
		if scale < ax {
			s := scale / ax
			ssq = 1 + ssq*s*s
			scale = ax
		} else {
			s := ax / scale
			ssq += s * s
		}
	}
	return scale * math.Sqrt(ssq)
}

// logsafe returns log(x) for x > 0 and a large finite negative surrogate for
// x <= 0, so feasibility predicates built on it never poison NaN (spec.md
// §6, §9).
func logsafe(x float64) float64 {
	if x <= 0 {
		return -1e300
	}
	return math.Log(x)
}
