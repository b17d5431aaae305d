// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conesolve

import (
	"fmt"
	"time"
)

// Settings holds every tunable of the outer iteration and the KKT
// layer (spec.md §6). Zero-value Settings is never valid; use
// DefaultSettings and override individual fields.
type Settings struct {
	MaxIter    int
	TimeLimit  time.Duration
	EpsAbs     float64
	EpsRel     float64
	EpsInfeasible float64

	StaticRegularizationEnable bool
	StaticRegularizationEps    float64

	IterativeRefinementEnable    bool
	IterativeRefinementRelTol    float64
	IterativeRefinementAbsTol    float64
	IterativeRefinementMaxIter   int
	IterativeRefinementStopRatio float64

	LinesearchBacktrackStep float64
	MinTerminateStepLength  float64

	// EnableThirdOrderCorrection turns on the commented-out-in-source
	// Mehrotra-Tapia third-order corrector for the generalized power
	// cone (spec.md §9 Open Question, SPEC_FULL.md §3).
	EnableThirdOrderCorrection bool

	// Cancel, if non-nil, is polled at the top of every outer iteration;
	// a closed or ready channel aborts the loop with Status Cancelled
	// (spec.md §5's optional cancellation flag).
	Cancel <-chan struct{}

	Logger *Logger
}

// DefaultSettings returns the defaults enumerated in spec.md §6.
func DefaultSettings() Settings {
	return Settings{
		MaxIter:       200,
		TimeLimit:     0, // 0 means +inf
		EpsAbs:        1e-8,
		EpsRel:        1e-8,
		EpsInfeasible: 1e-8,

		StaticRegularizationEnable: true,
		StaticRegularizationEps:    1e-8,

		IterativeRefinementEnable:    true,
		IterativeRefinementRelTol:    1e-10,
		IterativeRefinementAbsTol:    1e-12,
		IterativeRefinementMaxIter:   10,
		IterativeRefinementStopRatio: 2.0,

		LinesearchBacktrackStep: 0.8,
		MinTerminateStepLength:  1e-4,

		EnableThirdOrderCorrection: false,
	}
}

// Validate rejects settings combinations that would make the outer loop
// meaningless (spec.md §6 bounds on each tunable).
func (s *Settings) Validate() error {
	switch {
	case s.MaxIter <= 0:
		return fmt.Errorf("%w: max_iter must be positive", ErrBadSettings)
	case s.EpsAbs < 0 || s.EpsRel < 0:
		return fmt.Errorf("%w: eps_abs/eps_rel must be non-negative", ErrBadSettings)
	case s.EpsInfeasible <= 0:
		return fmt.Errorf("%w: eps_infeasible must be positive", ErrBadSettings)
	case s.StaticRegularizationEps < 0:
		return fmt.Errorf("%w: static_regularization_eps must be non-negative", ErrBadSettings)
	case s.IterativeRefinementMaxIter < 0:
		return fmt.Errorf("%w: iterative_refinement_max_iter must be non-negative", ErrBadSettings)
	case s.LinesearchBacktrackStep <= 0 || s.LinesearchBacktrackStep >= 1:
		return fmt.Errorf("%w: linesearch_backtrack_step must lie in (0,1)", ErrBadSettings)
	case s.MinTerminateStepLength <= 0:
		return fmt.Errorf("%w: min_terminate_step_length must be positive", ErrBadSettings)
	}
	return nil
}

func (s *Settings) timeLimitOrInf() time.Duration {
	if s.TimeLimit <= 0 {
		return time.Duration(1<<63 - 1)
	}
	return s.TimeLimit
}
