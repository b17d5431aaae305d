// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conesolve

import "errors"

// Sentinel construction-time errors. These cover malformed problem data
// and settings only; faults that arise while solving surface as a
// Status, never as an error (spec.md §7).
var (
	ErrDimensionMismatch = errors.New("conesolve: dimension mismatch between P, q, A, b and cones")
	ErrBadSettings       = errors.New("conesolve: invalid settings")
	ErrBadCones          = errors.New("conesolve: invalid cone specification")
)
