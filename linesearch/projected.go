// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linesearch computes step lengths along a search direction.
package linesearch

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/boxopt"
)

const (
	backtrackSigma = 1.0e-4
	backtrackBeta  = 0.5
	backtrackExit  = 64
)

// Backtrack configures the projected backtracking search.
// Zero fields select the defaults σ = 10⁻⁴, β = ½ and 64 contractions.
type Backtrack struct {
	Sigma    float64 // decrease quality σ ∈ (0,1)
	Beta     float64 // contraction factor β ∈ (0,1)
	MaxSteps int     // number of contractions before giving up
}

// Projected returns the largest t = 2ᵐ (m ≤ 0) satisfying the projected sufficient decrease condition
//
//	𝒇(P(𝐱 + t𝐝)) ≤ 𝒇(𝐱) - σt‖𝐱 - P(𝐱 - t∇𝒇(P(𝐱)))‖²
//
// d must be a descent direction at P(x): ∇𝒇(P(𝐱))ᵀ𝐝 < 0.
func Projected(f boxopt.Objective, p boxopt.Projector, x, d []float64, sigma float64) (float64, error) {
	return ProjectedWith(f, p, x, d, Backtrack{Sigma: sigma})
}

// ProjectedWith is Projected with explicit backtracking constants.
// The accepted step is the first of 1, β, β², … satisfying the decrease condition.
// The search fails with ErrLineSearchDiverged once the projected trial point
// rounds back to x or the contractions are exhausted.
func ProjectedWith(f boxopt.Objective, p boxopt.Projector, x, d []float64, bt Backtrack) (float64, error) {

	n := len(x)
	if len(d) != n {
		return 0, errors.Wrapf(boxopt.ErrDimension, "direction has %d entries, want %d", len(d), n)
	}

	sigma, beta, exit := bt.Sigma, bt.Beta, bt.MaxSteps
	if beta == 0 {
		beta = backtrackBeta
	}
	if exit <= 0 {
		exit = backtrackExit
	}
	switch {
	case !(sigma > 0 && sigma < 1):
		return 0, errors.Wrapf(boxopt.ErrInvalidParameter, "sigma %v not in (0,1)", sigma)
	case !(beta > 0 && beta < 1):
		return 0, errors.Wrapf(boxopt.ErrInvalidParameter, "beta %v not in (0,1)", beta)
	}

	xp := make([]float64, n)
	p.Project(xp, x)
	g := make([]float64, n)
	f.Gradient(xp, g)

	if gd := floats.Dot(g, d); !(gd < 0) {
		return 0, errors.Wrapf(boxopt.ErrInvalidDirection, "directional derivative %v", gd)
	}

	fx := f.Evaluate(x)
	trial := make([]float64, n)

	t := 1.0
	for k := 0; k <= exit; k++ {
		// f(P(x + td))
		floats.AddScaledTo(trial, x, t, d)
		p.Project(trial, trial)
		if floats.Equal(trial, x) {
			return 0, errors.Wrapf(boxopt.ErrLineSearchDiverged, "step %v no longer moves the iterate", t)
		}
		lhs := f.Evaluate(trial)

		// ‖x - P(x - tg)‖²
		floats.AddScaledTo(trial, x, -t, g)
		p.Project(trial, trial)
		dist := floats.Distance(x, trial, 2)

		if lhs <= fx-sigma*t*dist*dist {
			return t, nil
		}
		t *= beta
	}
	return 0, errors.Wrapf(boxopt.ErrLineSearchDiverged, "no sufficient decrease after %d contractions", exit)
}
