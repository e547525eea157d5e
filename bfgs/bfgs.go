// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bfgs implements the globalized BFGS quasi-Newton descent for
// unconstrained smooth problems. The inverse hessian approximation 𝐁ₖ starts
// from the identity, the step length satisfies the Wolfe-Powell conditions and
// the iteration stops once ‖∇𝒇(𝐱ₖ)‖ ≤ ε.
package bfgs

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/boxopt"
	"github.com/curioloop/boxopt/linesearch"
	"github.com/curioloop/boxopt/objective"
)

const (
	defaultEps           = 1.0e-3
	defaultMaxIterations = 10000
)

// Settings configures the solver. Zero fields except Eps select the defaults.
type Settings struct {
	// Gradient norm tolerance ε > 0.
	Eps float64
	// The iteration stops with ErrNonConvergence after this many iterations.
	MaxIterations int
	// Constants of the Wolfe-Powell step length search.
	Search linesearch.Wolfe
	// Log every iteration at debug level.
	Verbose bool
	// Destination of diagnostics. Defaults to a disabled logger.
	Logger *zerolog.Logger
}

// DefaultSettings returns ε = 10⁻³ and a cap of 10000 iterations.
func DefaultSettings() Settings {
	return Settings{Eps: defaultEps, MaxIterations: defaultMaxIterations}
}

func (s Settings) normalize() (Settings, error) {
	if !(s.Eps > 0) {
		return s, errors.Wrapf(boxopt.ErrInvalidTolerance, "eps %v", s.Eps)
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = defaultMaxIterations
	}
	if s.Logger == nil {
		nop := zerolog.Nop()
		s.Logger = &nop
	}
	return s, nil
}

// Result contains the final result of the optimization process.
type Result struct {
	OK      bool          // Whether the optimization was converged.
	F       float64       // Final function value.
	X, G    []float64     // Final solution and gradient.
	H       *mat.SymDense // Final inverse hessian approximation.
	Summary               // Optimization summary.
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status   boxopt.Status // Final status after optimization.
	NumIter  int           // Number of iterations performed.
	NumReset int           // Number of times 𝐁ₖ was reset to the identity.
	NumEval  int           // Number of function evaluations.
	NumGrad  int           // Number of gradient evaluations.
}

// Solve minimizes f starting from x0.
func Solve(f boxopt.Objective, x0 []float64, s Settings) (*Result, error) {
	return SolveContext(context.Background(), f, x0, s)
}

// SolveContext is Solve bounded by ctx, which is checked once per iteration.
//
// Each iteration takes 𝐝ₖ = -𝐁ₖ∇𝒇(𝐱ₖ), or -∇𝒇(𝐱ₖ) with 𝐁ₖ reset to 𝐈 when that
// is not a descent direction, and updates
//
//	𝐬ₖ = tₖ𝐝ₖ, 𝐲ₖ = ∇𝒇(𝐱ₖ₊₁) - ∇𝒇(𝐱ₖ), ρₖ = 1 / 𝐲ₖᵀ𝐬ₖ
//	𝐁ₖ₊₁ = (𝐈 - ρₖ𝐬ₖ𝐲ₖᵀ)𝐁ₖ(𝐈 - ρₖ𝐲ₖ𝐬ₖᵀ) + ρₖ𝐬ₖ𝐬ₖᵀ
//
// when 𝐲ₖᵀ𝐬ₖ > 0. Otherwise 𝐁ₖ₊₁ = 𝐈.
//
// A tolerance below what the floating point resolution of 𝒇 allows ends the
// iteration with status Stalled and an error wrapping ErrRoundingPrecision.
func SolveContext(ctx context.Context, f boxopt.Objective, x0 []float64, s Settings) (*Result, error) {

	s, err := s.normalize()
	if err != nil {
		return nil, err
	}
	if len(x0) == 0 {
		return nil, errors.Wrap(boxopt.ErrDimension, "empty x0")
	}

	d := newDriver(f, x0, s)
	return d.run(ctx)
}

type driver struct {
	settings Settings
	c        *objective.Counter
	log      *zerolog.Logger

	x, g, xn, gn, d, s, y []float64
	h                     *mat.SymDense
	hy                    *mat.VecDense
	summary               Summary
}

func newDriver(f boxopt.Objective, x0 []float64, s Settings) *driver {
	n := len(x0)
	d := &driver{
		settings: s,
		c:        objective.Count(f),
		log:      s.Logger,
		x:        append([]float64(nil), x0...),
		g:        make([]float64, n),
		xn:       make([]float64, n),
		gn:       make([]float64, n),
		d:        make([]float64, n),
		s:        make([]float64, n),
		y:        make([]float64, n),
		h:        mat.NewSymDense(n, nil),
		hy:       mat.NewVecDense(n, nil),
	}
	d.reset()
	return d
}

// reset sets 𝐁 = 𝐈.
func (d *driver) reset() {
	n := d.h.SymmetricDim()
	d.h.Zero()
	for i := 0; i < n; i++ {
		d.h.SetSym(i, i, 1)
	}
}

// direction stores -𝐁∇𝒇(𝐱) into d and falls back to -∇𝒇(𝐱) with 𝐁 = 𝐈 when it
// is not a descent direction.
func (d *driver) direction() (fallback bool) {
	n := len(d.x)
	dv := mat.NewVecDense(n, d.d)
	dv.MulVec(d.h, mat.NewVecDense(n, d.g))
	floats.Scale(-1, d.d)
	if !(floats.Dot(d.g, d.d) < 0) {
		d.reset()
		floats.ScaleTo(d.d, -1, d.g)
		d.summary.NumReset++
		return true
	}
	return false
}

// update applies the inverse BFGS update in the expanded form
//
//	𝐁 + (ρ²𝐲ᵀ𝐁𝐲 + ρ)𝐬𝐬ᵀ - ρ(𝐬(𝐁𝐲)ᵀ + (𝐁𝐲)𝐬ᵀ)
func (d *driver) update() (curved bool) {
	ys := floats.Dot(d.y, d.s)
	if !(ys > 0) {
		d.reset()
		d.summary.NumReset++
		return false
	}
	n := len(d.x)
	sv, yv := mat.NewVecDense(n, d.s), mat.NewVecDense(n, d.y)
	d.hy.MulVec(d.h, yv)
	yhy := mat.Dot(yv, d.hy)
	rho := 1 / ys
	d.h.RankTwo(d.h, -rho, sv, d.hy)
	d.h.SymRankOne(d.h, rho*rho*yhy+rho, sv)
	return true
}

func (d *driver) run(ctx context.Context) (res *Result, err error) {

	st := d.settings
	d.c.Gradient(d.x, d.g)
	gnorm := floats.Norm(d.g, 2)
	if st.Verbose {
		d.log.Debug().Int("n", len(d.x)).Float64("eps", st.Eps).Float64("grad_norm", gnorm).Msg("running bfgs descent")
	}

	status := boxopt.Converged
	for gnorm > st.Eps {
		if d.summary.NumIter >= st.MaxIterations {
			status = boxopt.IterationLimit
			err = errors.Wrapf(boxopt.ErrNonConvergence,
				"gradient norm %.3e after %d iterations", gnorm, d.summary.NumIter)
			break
		}
		if cerr := ctx.Err(); cerr != nil {
			status = boxopt.Cancelled
			err = errors.Wrapf(cerr, "cancelled after %d iterations", d.summary.NumIter)
			break
		}

		fallback := d.direction()
		t, lerr := linesearch.WolfePowell(d.c, d.x, d.d, st.Search)
		if lerr != nil {
			status = boxopt.Failed
			if errors.Is(lerr, boxopt.ErrRoundingPrecision) {
				status = boxopt.Stalled
			}
			err = errors.Wrapf(lerr, "iteration %d", d.summary.NumIter+1)
			break
		}

		floats.AddScaledTo(d.xn, d.x, t, d.d)
		d.c.Gradient(d.xn, d.gn)
		floats.SubTo(d.s, d.xn, d.x)
		floats.SubTo(d.y, d.gn, d.g)
		curved := d.update()

		d.x, d.xn = d.xn, d.x
		d.g, d.gn = d.gn, d.g
		gnorm = floats.Norm(d.g, 2)
		d.summary.NumIter++

		if st.Verbose {
			d.log.Debug().
				Int("iter", d.summary.NumIter).
				Float64("f", d.c.Objective.Evaluate(d.x)).
				Float64("grad_norm", gnorm).
				Float64("step", t).
				Bool("fallback", fallback).
				Bool("curvature", curved).
				Floats64("x", d.x).
				Msg("iterate")
		}
	}

	d.summary.Status = status
	d.summary.NumEval = d.c.Evals()
	d.summary.NumGrad = d.c.Grads()
	res = &Result{
		OK:      status == boxopt.Converged,
		F:       d.c.Objective.Evaluate(d.x),
		X:       append([]float64(nil), d.x...),
		G:       append([]float64(nil), d.g...),
		H:       mat.NewSymDense(len(d.x), nil),
		Summary: d.summary,
	}
	res.H.CopySym(d.h)

	switch {
	case err != nil:
		d.log.Warn().Err(err).Stringer("status", status).Int("iter", res.NumIter).Float64("grad_norm", gnorm).Msg("bfgs descent stopped")
	case st.Verbose:
		d.log.Debug().
			Stringer("status", status).
			Int("iter", res.NumIter).
			Int("reset", res.NumReset).
			Int("evals", res.NumEval).
			Int("grads", res.NumGrad).
			Float64("f", res.F).
			Float64("grad_norm", gnorm).
			Msg("bfgs descent terminated")
	}
	return
}
