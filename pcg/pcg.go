// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pcg solves symmetric positive definite linear systems 𝐀𝐲 = 𝐛 with
// the preconditioned conjugate gradient method.
//
// # Reference:
//
//   - Nocedal, J., & Wright, S. J. (2006). Numerical optimization. Algorithm 5.3.
package pcg

import (
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/boxopt"
)

const defaultDelta = 1.0e-6

// Settings configures Solve. Zero fields select the defaults.
type Settings struct {
	// Residual tolerance: the iteration stops once ‖𝐀𝐲 - 𝐛‖ ≤ Delta. Defaults to 10⁻⁶.
	Delta float64
	// Defaults to 10n.
	MaxIterations int
	// Defaults to Jacobi.
	Preconditioner Preconditioner
	// Log every iteration at debug level.
	Verbose bool
	// Destination of diagnostics. Defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Result holds the solution and how it was reached.
type Result struct {
	Y        []float64 // Approximate solution.
	Residual float64   // Final ‖𝐀𝐲 - 𝐛‖.
	NumIter  int       // Number of CG steps.
}

func (s Settings) normalize(a mat.Symmetric) (Settings, error) {
	n := a.SymmetricDim()
	switch {
	case s.Delta == 0:
		s.Delta = defaultDelta
	case !(s.Delta > 0):
		return s, errors.Wrapf(boxopt.ErrInvalidTolerance, "delta %v", s.Delta)
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = 10 * n
	}
	if s.Preconditioner == nil {
		jac, err := NewJacobi(a)
		if err != nil {
			return s, err
		}
		s.Preconditioner = jac
	}
	if s.Logger == nil {
		nop := zerolog.Nop()
		s.Logger = &nop
	}
	return s, nil
}

// Solve finds 𝐲 with ‖𝐀𝐲 - 𝐛‖ ≤ δ starting from 𝐲₀ = 𝐌⁻¹𝐛.
//
//	𝐫₀ = 𝐛 - 𝐀𝐲₀, 𝐳₀ = 𝐌⁻¹𝐫₀, 𝐩₀ = 𝐳₀
//	αₖ = 𝐫ₖᵀ𝐳ₖ / 𝐩ₖᵀ𝐀𝐩ₖ
//	𝐲ₖ₊₁ = 𝐲ₖ + αₖ𝐩ₖ
//	𝐫ₖ₊₁ = 𝐫ₖ - αₖ𝐀𝐩ₖ
//	𝐳ₖ₊₁ = 𝐌⁻¹𝐫ₖ₊₁
//	βₖ = 𝐫ₖ₊₁ᵀ𝐳ₖ₊₁ / 𝐫ₖᵀ𝐳ₖ
//	𝐩ₖ₊₁ = 𝐳ₖ₊₁ + βₖ𝐩ₖ
//
// A direction with 𝐩ₖᵀ𝐀𝐩ₖ ≤ 0 proves 𝐀 is not positive definite and stops the
// iteration with ErrNotPositiveDefinite. Exhausting MaxIterations returns the
// last iterate together with ErrNonConvergence.
func Solve(a mat.Symmetric, b []float64, s Settings) (*Result, error) {

	n := a.SymmetricDim()
	if len(b) != n {
		return nil, errors.Wrapf(boxopt.ErrDimension, "right hand side has %d entries, want %d", len(b), n)
	}
	s, err := s.normalize(a)
	if err != nil {
		return nil, err
	}
	log := s.Logger

	y := make([]float64, n)
	r := make([]float64, n)
	z := make([]float64, n)
	p := make([]float64, n)
	ap := make([]float64, n)

	yv, rv := mat.NewVecDense(n, y), mat.NewVecDense(n, r)
	pv, apv := mat.NewVecDense(n, p), mat.NewVecDense(n, ap)

	if err = s.Preconditioner.Solve(y, b); err != nil {
		return nil, errors.Wrap(err, "initial guess")
	}
	rv.MulVec(a, yv)
	floats.SubTo(r, b, r)
	if err = s.Preconditioner.Solve(z, r); err != nil {
		return nil, errors.Wrap(err, "initial residual")
	}
	copy(p, z)
	rz := floats.Dot(r, z)

	res := &Result{Y: y, Residual: floats.Norm(r, 2)}
	for res.Residual > s.Delta {
		if res.NumIter >= s.MaxIterations {
			err = errors.Wrapf(boxopt.ErrNonConvergence,
				"residual %.3e after %d iterations", res.Residual, res.NumIter)
			break
		}

		apv.MulVec(a, pv)
		pap := floats.Dot(p, ap)
		if !(pap > 0) {
			err = errors.Wrapf(boxopt.ErrNotPositiveDefinite,
				"curvature %v along search direction at iteration %d", pap, res.NumIter+1)
			break
		}

		alpha := rz / pap
		floats.AddScaled(y, alpha, p)
		floats.AddScaled(r, -alpha, ap)
		res.Residual = floats.Norm(r, 2)
		res.NumIter++

		if s.Verbose {
			log.Debug().Int("iter", res.NumIter).Float64("alpha", alpha).Float64("residual", res.Residual).Msg("iterate")
		}
		if res.Residual <= s.Delta {
			break
		}

		if err = s.Preconditioner.Solve(z, r); err != nil {
			err = errors.Wrapf(err, "preconditioner at iteration %d", res.NumIter)
			break
		}
		rzNew := floats.Dot(r, z)
		beta := rzNew / rz
		floats.AddScaledTo(p, z, beta, p)
		rz = rzNew
	}

	if math.IsNaN(res.Residual) && err == nil {
		err = errors.Wrap(boxopt.ErrNotPositiveDefinite, "residual is not a number")
	}
	switch {
	case err != nil:
		log.Warn().Err(err).Int("iter", res.NumIter).Float64("residual", res.Residual).Msg("pcg stopped")
	case s.Verbose:
		log.Debug().Int("iter", res.NumIter).Float64("residual", res.Residual).Msg("pcg terminated")
	}
	return res, err
}
