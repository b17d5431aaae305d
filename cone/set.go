// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cone

import (
	"errors"
	"fmt"
)

// ErrBadCone is returned by NewSet when a cone specification is malformed,
// following the sentinel-error discipline of katalvlaran-lvlath's
// matrix/errors.go (checked with errors.Is, wrapped with context via %w).
var ErrBadCone = errors.New("cone: invalid cone specification")

// Spec describes one block of the Cartesian product cone (spec.md §3).
type Spec struct {
	Kind   Kind
	Dim    int
	Params []float64 // only Power uses this: the exponent vector alpha
}

// Set is the ordered Cartesian product of cones that 𝒦 in spec.md §1
// refers to: every operation the HSDE iteration needs is dispatched once
// per cone per phase over this slice, never per element (spec.md §9).
type Set struct {
	Cones   []Cone
	Offsets []int // Offsets[i] is the starting index of Cones[i]'s block
	Dim     int
	degree  int
}

// NewSet validates specs and builds the dispatch set. Dimensions must be
// positive and Power cones must carry a valid alpha (len>0, all positive,
// summing to 1 within tolerance).
func NewSet(specs []Spec) (*Set, error) {
	s := &Set{Offsets: make([]int, len(specs)), Cones: make([]Cone, len(specs))}
	offset := 0
	for i, sp := range specs {
		if sp.Dim <= 0 {
			return nil, fmt.Errorf("%w: cone %d has non-positive dimension %d", ErrBadCone, i, sp.Dim)
		}
		if sp.Kind == Power {
			if err := validatePowerParams(sp.Params, sp.Dim); err != nil {
				return nil, fmt.Errorf("%w: cone %d: %v", ErrBadCone, i, err)
			}
		}
		s.Cones[i] = New(sp.Kind, sp.Dim, sp.Params)
		s.Offsets[i] = offset
		offset += sp.Dim
		s.degree += s.Cones[i].Degree()
	}
	s.Dim = offset
	return s, nil
}

func validatePowerParams(alpha []float64, dim int) error {
	if len(alpha) == 0 || len(alpha) >= dim {
		return fmt.Errorf("alpha length must satisfy 0 < d1 < dim")
	}
	sum := 0.0
	for _, a := range alpha {
		if a <= 0 {
			return fmt.Errorf("alpha entries must be positive")
		}
		sum += a
	}
	if sum < 1-1e-8 || sum > 1+1e-8 {
		return fmt.Errorf("alpha must sum to 1, got %g", sum)
	}
	return nil
}

// Degree is ν = sum of the cones' barrier degrees (spec.md GLOSSARY).
func (s *Set) Degree() int { return s.degree }

// Block returns the sub-slice of a full-length vector of dimension s.Dim
// belonging to cone i.
func (s *Set) Block(v []float64, i int) []float64 {
	lo := s.Offsets[i]
	return v[lo : lo+s.Cones[i].Dim()]
}

// UnitInitialization sets (s,z) to each cone's canonical interior point.
func (s *Set) UnitInitialization(s_, z []float64) {
	for i, c := range s.Cones {
		c.UnitInitialization(s.Block(s_, i), s.Block(z, i))
	}
}

// ShiftToCone shifts each symmetric cone's block of s into the interior;
// asymmetric cones are left untouched (they use UnitInitialization only).
func (s *Set) ShiftToCone(s_ []float64) {
	for i, c := range s.Cones {
		if c.IsSymmetric() {
			c.ShiftToCone(s.Block(s_, i))
		}
	}
}

// UpdateScaling refreshes every cone's scaling state from (s,z,mu). It
// returns false as soon as any cone reports numerical infeasibility,
// matching spec.md §4.7 step 2's "if any cone fails scaling" branch.
func (s *Set) UpdateScaling(s_, z []float64, mu float64) bool {
	for i, c := range s.Cones {
		if !c.UpdateScaling(s.Block(s_, i), s.Block(z, i), mu) {
			return false
		}
	}
	return true
}
