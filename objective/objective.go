// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package objective provides ready-made implementations of boxopt.Objective.
package objective

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/boxopt"
	"github.com/curioloop/boxopt/box"
	"github.com/curioloop/boxopt/numdiff"
)

// Quadratic is 𝒇(𝐱) = ½𝐱ᵀ𝐀𝐱 + 𝐛ᵀ𝐱 + c with symmetric 𝐀.
// 𝐀 may be indefinite.
type Quadratic struct {
	a mat.Symmetric
	b *mat.VecDense
	c float64
}

// NewQuadratic creates a quadratic objective. A nil b means 𝐛 = 0.
func NewQuadratic(a mat.Symmetric, b []float64, c float64) (*Quadratic, error) {
	n := a.SymmetricDim()
	if b == nil {
		b = make([]float64, n)
	}
	if len(b) != n {
		return nil, errors.Wrapf(boxopt.ErrDimension, "linear term has %d entries, want %d", len(b), n)
	}
	return &Quadratic{a: a, b: mat.NewVecDense(n, append([]float64(nil), b...)), c: c}, nil
}

// Valley is the quadratic 𝒇(𝐱) = ‖𝐱 - 𝐩‖² with its unique minimizer at 𝐩.
// It panics with ErrDimension when p is empty.
func Valley(p []float64) *Quadratic {
	n := len(p)
	if n == 0 {
		panic(errors.Wrap(boxopt.ErrDimension, "empty minimizer"))
	}
	a := mat.NewSymDense(n, nil)
	b := make([]float64, n)
	for i, v := range p {
		a.SetSym(i, i, 2)
		b[i] = -2 * v
	}
	q, err := NewQuadratic(a, b, floats.Dot(p, p))
	if err != nil {
		panic(err)
	}
	return q
}

// Dim returns the number of variables.
func (q *Quadratic) Dim() int { return q.a.SymmetricDim() }

// Evaluate returns ½𝐱ᵀ𝐀𝐱 + 𝐛ᵀ𝐱 + c.
func (q *Quadratic) Evaluate(x []float64) float64 {
	xv := mat.NewVecDense(q.Dim(), x)
	return 0.5*mat.Inner(xv, q.a, xv) + mat.Dot(q.b, xv) + q.c
}

// Gradient stores 𝐀𝐱 + 𝐛 into grad.
func (q *Quadratic) Gradient(x, grad []float64) {
	n := q.Dim()
	if len(x) != n || len(grad) != n {
		panic("bound check error")
	}
	gv := mat.NewVecDense(n, grad)
	gv.MulVec(q.a, mat.NewVecDense(n, x))
	gv.AddVec(gv, q.b)
}

// HessVec stores the exact product 𝐀𝐝 into dst. The hessian does not depend on x.
func (q *Quadratic) HessVec(_, d, dst []float64) {
	n := q.Dim()
	mat.NewVecDense(n, dst).MulVec(q.a, mat.NewVecDense(n, d))
}

// Func adapts a pair of closures to boxopt.Objective.
type Func struct {
	F func(x []float64) float64
	G func(x, grad []float64)
}

func (f Func) Evaluate(x []float64) float64 { return f.F(x) }

func (f Func) Gradient(x, grad []float64) { f.G(x, grad) }

// Numeric is an objective whose gradient is estimated by finite differences.
// It must not be shared between goroutines.
type Numeric struct {
	approx numdiff.Gradient
}

// NewNumeric wraps f. Optional bounds keep the difference steps inside the box.
func NewNumeric(f func(x []float64) float64, method numdiff.Method, bounds []box.Bound) *Numeric {
	return &Numeric{approx: numdiff.Gradient{
		Func:      f,
		Method:    method,
		Bounds:    bounds,
		NotChkBnd: true,
	}}
}

func (n *Numeric) Evaluate(x []float64) float64 { return n.approx.Func(x) }

// Gradient panics when the dimension of x does not match grad or the bounds.
func (n *Numeric) Gradient(x, grad []float64) {
	if err := n.approx.Diff(x, grad); err != nil {
		panic(err)
	}
}

// Rosenbrock is the extended Rosenbrock function
//
//	𝒇(𝐱) = ∑ 100(xᵢ₊₁ - xᵢ²)² + (1 - xᵢ)²
//
// with its global minimum at (1,…,1).
type Rosenbrock struct{}

func (Rosenbrock) Evaluate(x []float64) (f float64) {
	for i := 0; i+1 < len(x); i++ {
		a, b := x[i+1]-x[i]*x[i], 1-x[i]
		f += 100*a*a + b*b
	}
	return
}

func (Rosenbrock) Gradient(x, grad []float64) {
	if len(x) != len(grad) {
		panic("bound check error")
	}
	for i := range grad {
		grad[i] = 0
	}
	for i := 0; i+1 < len(x); i++ {
		a := x[i+1] - x[i]*x[i]
		grad[i] += -400*a*x[i] - 2*(1-x[i])
		grad[i+1] += 200 * a
	}
}

// Counter counts the evaluations forwarded to an objective.
// It is safe for concurrent use when the wrapped objective is.
type Counter struct {
	boxopt.Objective
	evals, grads atomic.Int64
}

// Count wraps f.
func Count(f boxopt.Objective) *Counter {
	return &Counter{Objective: f}
}

func (c *Counter) Evaluate(x []float64) float64 {
	c.evals.Add(1)
	return c.Objective.Evaluate(x)
}

func (c *Counter) Gradient(x, grad []float64) {
	c.grads.Add(1)
	c.Objective.Gradient(x, grad)
}

// Evals returns the number of objective evaluations.
func (c *Counter) Evals() int { return int(c.evals.Load()) }

// Grads returns the number of gradient evaluations.
func (c *Counter) Grads() int { return int(c.grads.Load()) }
