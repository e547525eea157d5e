// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linesearch

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/boxopt"
)

const (
	wolfeSigma = 1.0e-3
	wolfeRho   = 1.0e-2
	wolfeExit  = 100

	machEps = 0x1p-52
)

// Wolfe configures the Wolfe-Powell search.
// Zero fields select σ = 10⁻³, ρ = 10⁻² and 100 trial steps.
type Wolfe struct {
	Sigma    float64 // sufficient decrease constant σ ∈ (0,½)
	Rho      float64 // curvature constant ρ ∈ (σ,1)
	MaxSteps int     // number of trial steps before giving up
}

// WolfePowell returns a step t satisfying the Wolfe-Powell conditions
//
//	W1: 𝒇(𝐱 + t𝐝) ≤ 𝒇(𝐱) + σt∇𝒇(𝐱)ᵀ𝐝
//	W2: ∇𝒇(𝐱 + t𝐝)ᵀ𝐝 ≥ ρ∇𝒇(𝐱)ᵀ𝐝
//
// starting from t = 1. When t = 1 violates W1 the step is halved until W1 holds,
// when it satisfies W1 but not W2 the step is doubled until W1 fails; the
// bracket found is then bisected until W2 holds.
//
// When the decrease predicted by ∇𝒇(𝐱)ᵀ𝐝 over the unit step, the current
// contraction or the remaining bracket is below the floating point resolution
// of 𝒇(𝐱), the conditions can no longer be told apart from rounding noise and
// the search fails with ErrRoundingPrecision.
func WolfePowell(f boxopt.Objective, x, d []float64, opt Wolfe) (float64, error) {

	n := len(x)
	if len(d) != n {
		return 0, errors.Wrapf(boxopt.ErrDimension, "direction has %d entries, want %d", len(d), n)
	}

	sigma, rho, exit := opt.Sigma, opt.Rho, opt.MaxSteps
	if sigma == 0 {
		sigma = wolfeSigma
	}
	if rho == 0 {
		rho = wolfeRho
	}
	if exit <= 0 {
		exit = wolfeExit
	}
	switch {
	case !(sigma > 0 && sigma < 0.5):
		return 0, errors.Wrapf(boxopt.ErrInvalidParameter, "sigma %v not in (0,1/2)", sigma)
	case !(rho > sigma && rho < 1):
		return 0, errors.Wrapf(boxopt.ErrInvalidParameter, "rho %v not in (sigma,1)", rho)
	}

	g := make([]float64, n)
	f.Gradient(x, g)
	gd := floats.Dot(g, d)
	if !(gd < 0) {
		return 0, errors.Wrapf(boxopt.ErrInvalidDirection, "directional derivative %v", gd)
	}
	fx := f.Evaluate(x)

	w := wolfeState{f: f, x: x, d: d, fx: fx, gd: gd, sigma: sigma, rho: rho,
		trial: make([]float64, n), grad: make([]float64, n)}

	t := 1.0
	var lo, hi float64
	steps := 0
	diverged := func() (float64, error) {
		return 0, errors.Wrapf(boxopt.ErrLineSearchDiverged, "wolfe conditions not met after %d steps", exit)
	}

	// The first order decrease over a step interval of length t is below the resolution of 𝒇(𝐱).
	flat := func(t float64) bool {
		return -t*gd <= machEps*math.Abs(fx)
	}
	stalled := func() (float64, error) {
		return 0, errors.Wrapf(boxopt.ErrRoundingPrecision, "directional derivative %v at f %v", gd, fx)
	}
	if flat(t) {
		return stalled()
	}

	switch {
	case !w.armijo(t):
		for t /= 2; !w.armijo(t); t /= 2 {
			if flat(t) {
				return stalled()
			}
			if steps++; steps > exit {
				return diverged()
			}
		}
		lo, hi = t, 2*t
	case w.curvature(t):
		return t, nil
	default:
		for t *= 2; w.armijo(t); t *= 2 {
			if steps++; steps > exit {
				return diverged()
			}
		}
		lo, hi = t/2, t
	}

	// lo satisfies W1 and hi violates it
	for !w.curvature(lo) {
		if flat(hi - lo) {
			return stalled()
		}
		if steps++; steps > exit {
			return diverged()
		}
		t = (lo + hi) / 2
		if w.armijo(t) {
			lo = t
		} else {
			hi = t
		}
	}
	return lo, nil
}

type wolfeState struct {
	f           boxopt.Objective
	x, d        []float64
	fx, gd      float64
	sigma, rho  float64
	trial, grad []float64
}

func (w *wolfeState) armijo(t float64) bool {
	floats.AddScaledTo(w.trial, w.x, t, w.d)
	return w.f.Evaluate(w.trial) <= w.fx+w.sigma*t*w.gd
}

func (w *wolfeState) curvature(t float64) bool {
	floats.AddScaledTo(w.trial, w.x, t, w.d)
	w.f.Gradient(w.trial, w.grad)
	return floats.Dot(w.grad, w.d) >= w.rho*w.gd
}
