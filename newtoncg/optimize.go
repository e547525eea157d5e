// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package newtoncg implements the projected inexact Newton-CG method for
//
//	minimize 𝒇(𝐱) subject to 𝐱 ∈ 𝓑
//
// where 𝓑 is a box. Each iteration solves the Newton system on the reduced
// hessian approximately with a truncated conjugate gradient loop, falls back to
// steepest descent when no useful curvature is found, and takes a projected
// backtracking step:
//
//	𝐱ₖ₊₁ = P(𝐱ₖ + tₖ𝐝ₖ)
//
// The iteration stops once ‖𝐱ₖ - P(𝐱ₖ - ∇𝒇(𝐱ₖ))‖ ≤ ε.
package newtoncg

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/curioloop/boxopt"
	"github.com/curioloop/boxopt/numdiff"
)

const (
	defaultEps           = 1.0e-3
	defaultSigma         = 1.0e-4
	defaultMaxIterations = 10000
)

// Settings configures the solver. Settings are passed by value; zero fields
// except Eps select the defaults.
type Settings struct {
	// Stationarity tolerance ε > 0.
	Eps float64
	// Decrease quality σ ∈ (0,1) of the projected backtracking search.
	Sigma float64
	// The iteration stops with ErrNonConvergence after this many outer iterations.
	MaxIterations int
	// Log the progress of every outer iteration at debug level.
	Verbose bool
	// Approximation of the reduced hessian product. Defaults to numdiff.ProjectedHessVec.
	HessVec boxopt.HessVecFunc
	// Destination of diagnostics. Defaults to a disabled logger.
	Logger *zerolog.Logger
}

// DefaultSettings returns ε = 10⁻³, σ = 10⁻⁴ and a cap of 10000 iterations.
func DefaultSettings() Settings {
	return Settings{
		Eps:           defaultEps,
		Sigma:         defaultSigma,
		MaxIterations: defaultMaxIterations,
	}
}

func (s Settings) normalize() (Settings, error) {
	if !(s.Eps > 0) {
		return s, errors.Wrapf(boxopt.ErrInvalidTolerance, "eps %v", s.Eps)
	}
	if s.Sigma == 0 {
		s.Sigma = defaultSigma
	}
	if !(s.Sigma > 0 && s.Sigma < 1) {
		return s, errors.Wrapf(boxopt.ErrInvalidParameter, "sigma %v not in (0,1)", s.Sigma)
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = defaultMaxIterations
	}
	if s.HessVec == nil {
		s.HessVec = numdiff.ProjectedHessVec
	}
	if s.Logger == nil {
		nop := zerolog.Nop()
		s.Logger = &nop
	}
	return s, nil
}

// Result contains the final result of the optimization process.
type Result struct {
	OK           bool      // Whether the optimization was converged.
	F            float64   // Final function value.
	X, G         []float64 // Final solution and gradient.
	Stationarity float64   // Final ‖𝐱 - P(𝐱 - ∇𝒇(𝐱))‖.
	Summary                // Optimization summary.
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status      boxopt.Status // Final status after optimization.
	NumIter     int           // Number of outer iterations performed.
	NumInner    int           // Number of conjugate gradient steps performed.
	NumFallback int           // Number of steepest descent fallbacks.
	NumEval     int           // Number of function evaluations by the driver and line search.
	NumGrad     int           // Number of gradient evaluations by the driver and line search.
}

// Solve minimizes f over the feasible set of p starting from P(x0).
func Solve(f boxopt.Objective, p boxopt.Projector, x0 []float64, s Settings) (*Result, error) {
	return SolveContext(context.Background(), f, p, x0, s)
}

// SolveContext is Solve bounded by ctx, which is checked once per outer iteration.
//
// When the iteration stops before convergence the error wraps ErrNonConvergence,
// the context error or the line search error, and the returned Result holds the
// last feasible iterate.
func SolveContext(ctx context.Context, f boxopt.Objective, p boxopt.Projector, x0 []float64, s Settings) (*Result, error) {

	s, err := s.normalize()
	if err != nil {
		return nil, err
	}
	switch {
	case len(x0) == 0:
		return nil, errors.Wrap(boxopt.ErrDimension, "empty x0")
	case f == nil || p == nil:
		return nil, errors.New("objective and projector are required")
	}
	if dp, ok := p.(boxopt.Dimensioned); ok && dp.Dim() != len(x0) {
		return nil, errors.Wrapf(boxopt.ErrDimension, "x0 has %d entries but projector has %d", len(x0), dp.Dim())
	}

	d := newDriver(f, p, x0, s)
	return d.run(ctx)
}

// forcing returns ηₖ = min(½, √sₖ)·sₖ.
func forcing(stationarity float64) float64 {
	return math.Min(0.5, math.Sqrt(stationarity)) * stationarity
}
