// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package boxopt holds the vocabulary shared by the solvers of this module:
// the objective and projector capabilities they consume and the errors they
// report.
//
// The solvers themselves live in sub packages:
//   - newtoncg: projected inexact Newton-CG for box constrained problems
//   - bfgs: unconstrained quasi-Newton descent
//   - pcg: preconditioned conjugate gradient for 𝐀𝐲 = 𝐛
package boxopt

// Objective is a smooth function 𝒇 : ℝⁿ → ℝ with its gradient.
// Implementations must be deterministic and must not retain x.
type Objective interface {
	// Evaluate returns 𝒇(𝐱).
	Evaluate(x []float64) float64
	// Gradient stores ∇𝒇(𝐱) into grad.
	Gradient(x, grad []float64)
}

// HessianVector is implemented by objectives with an exact hessian product.
type HessianVector interface {
	// HessVec stores ∇²𝒇(𝐱)𝐝 into dst.
	HessVec(x, d, dst []float64)
}

// Projector is the Euclidean projection onto a closed convex feasible set.
type Projector interface {
	// Project stores P(𝐱) into dst. dst may alias x.
	Project(dst, x []float64)
	// ActiveSet returns the ascending indices of the coordinates of x
	// lying at one of their bounds.
	ActiveSet(x []float64) []int
}

// Dimensioned is implemented by projectors that know the problem dimension.
type Dimensioned interface {
	Dim() int
}

// HessVecFunc stores an approximation of ∇²𝒇(𝐱)𝐝 into dst,
// where x is a feasible point of p.
type HessVecFunc func(f Objective, p Projector, x, d, dst []float64)
