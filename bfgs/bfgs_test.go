// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfgs

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/curioloop/boxopt"
	"github.com/curioloop/boxopt/linesearch"
	"github.com/curioloop/boxopt/objective"
)

func TestRosenbrock(t *testing.T) {

	f := objective.Rosenbrock{}
	x0 := []float64{-1.2, 1}

	s := DefaultSettings()
	s.Eps = 1e-6
	r, err := Solve(f, x0, s)
	require.NoError(t, err)

	switch {
	case !r.OK:
		t.Fatal("TestRosenbrock: Not Converge")
	case r.F > 1e-10:
		t.Fatal("TestRosenbrock: Object Too Large")
	case floats.Norm(r.G, 2) > 1e-6:
		t.Fatal("TestRosenbrock: Gradient Too Large")
	case r.NumIter > 200:
		t.Fatal("TestRosenbrock: Too Many Iterations")
	}

	ref, err := optimize.Minimize(optimize.Problem{
		Func: f.Evaluate,
		Grad: func(grad, x []float64) { f.Gradient(x, grad) },
	}, x0, &optimize.Settings{GradientThreshold: 1e-8}, &optimize.BFGS{})
	require.NoError(t, err)
	assert.InDeltaSlice(t, ref.X, r.X, 1e-4)
	assert.InDeltaSlice(t, []float64{1, 1}, r.X, 1e-4)
}

// quadratic returns a well conditioned 4×4 quadratic and its minimizer.
func quadratic(t *testing.T) (*objective.Quadratic, []float64) {
	t.Helper()
	a := mat.NewSymDense(4, []float64{
		6, 1, 0, 0.5,
		1, 5, 1, 0,
		0, 1, 4, -1,
		0.5, 0, -1, 3,
	})
	b := []float64{1, -2, 3, -4}
	f, err := objective.NewQuadratic(a, b, 0)
	require.NoError(t, err)

	// 𝐀𝐱 = -𝐛
	var chol mat.Cholesky
	require.True(t, chol.Factorize(a))
	var want mat.VecDense
	require.NoError(t, chol.SolveVecTo(&want, mat.NewVecDense(4, []float64{-1, 2, -3, 4})))
	return f, want.RawVector().Data
}

func TestQuadratic(t *testing.T) {

	f, want := quadratic(t)

	r, err := Solve(f, []float64{5, 5, 5, 5}, Settings{Eps: 1e-6})
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, r.X, 1e-6)

	// the final approximation stays symmetric positive definite
	require.Equal(t, 4, r.H.SymmetricDim())
	var hc mat.Cholesky
	assert.True(t, hc.Factorize(r.H))

	ref, err := optimize.Minimize(optimize.Problem{
		Func: f.Evaluate,
		Grad: func(grad, x []float64) { f.Gradient(x, grad) },
	}, []float64{5, 5, 5, 5}, &optimize.Settings{GradientThreshold: 1e-8}, &optimize.BFGS{})
	require.NoError(t, err)
	assert.InDelta(t, ref.F, r.F, 1e-10)
}

func TestRoundingFloor(t *testing.T) {

	f, want := quadratic(t)

	// the tolerance is far below what the resolution of 𝒇 can certify
	r, err := Solve(f, []float64{5, 5, 5, 5}, Settings{Eps: 1e-300})
	require.True(t, errors.Is(err, boxopt.ErrRoundingPrecision), "%v", err)
	require.NotNil(t, r)

	switch {
	case r.OK:
		t.Fatal("TestRoundingFloor: stalled solve reported convergence")
	case r.Status != boxopt.Stalled:
		t.Fatalf("TestRoundingFloor: unexpected status %v", r.Status)
	case r.Status.String() != "ROUNDING ERRORS PREVENT PROGRESS":
		t.Fatal("TestRoundingFloor: unexpected status message")
	case floats.Norm(r.G, 2) > 1e-6:
		t.Fatal("TestRoundingFloor: stalled far from the minimizer")
	}
	assert.InDeltaSlice(t, want, r.X, 1e-6)
}

func TestSecantUpdate(t *testing.T) {

	d := newDriver(objective.Rosenbrock{}, []float64{0, 0, 0}, DefaultSettings())
	copy(d.s, []float64{0.5, -1, 0.25})
	copy(d.y, []float64{1, -1.5, 2})
	require.True(t, d.update())

	// 𝐁₊𝐲 = 𝐬
	hy := mat.NewVecDense(3, nil)
	hy.MulVec(d.h, mat.NewVecDense(3, d.y))
	assert.InDeltaSlice(t, d.s, hy.RawVector().Data, 1e-12)

	// no curvature resets the approximation
	copy(d.y, []float64{-1, 0, 0})
	require.False(t, d.update())
	assert.True(t, mat.Equal(d.h, eye(3)))
	assert.Equal(t, 1, d.summary.NumReset)
}

func TestDirectionFallback(t *testing.T) {

	d := newDriver(objective.Valley([]float64{0, 0}), []float64{1, 2}, DefaultSettings())
	copy(d.g, []float64{2, 4})

	require.False(t, d.direction())
	assert.Equal(t, []float64{-2, -4}, d.d)

	// an ascent direction from 𝐁 = -𝐈 is replaced with steepest descent
	d.h.SetSym(0, 0, -1)
	d.h.SetSym(1, 1, -1)
	require.True(t, d.direction())
	assert.Equal(t, []float64{-2, -4}, d.d)
	assert.True(t, mat.Equal(d.h, eye(2)))
}

func TestErrors(t *testing.T) {

	f := objective.Rosenbrock{}
	x0 := []float64{-1.2, 1}

	for _, eps := range []float64{0, -1, math.NaN()} {
		_, err := Solve(f, x0, Settings{Eps: eps})
		assert.True(t, errors.Is(err, boxopt.ErrInvalidTolerance), "eps %v", eps)
	}

	_, err := Solve(f, nil, DefaultSettings())
	assert.True(t, errors.Is(err, boxopt.ErrDimension))

	_, err = Solve(f, x0, Settings{Eps: 1e-3, Search: linesearch.Wolfe{Sigma: 0.7}})
	assert.True(t, errors.Is(err, boxopt.ErrInvalidParameter))

	r, err := Solve(f, x0, Settings{Eps: 1e-12, MaxIterations: 3})
	require.True(t, errors.Is(err, boxopt.ErrNonConvergence))
	assert.Equal(t, boxopt.IterationLimit, r.Status)
	assert.Equal(t, 3, r.NumIter)
	assert.Less(t, r.F, f.Evaluate(x0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err = SolveContext(ctx, f, x0, DefaultSettings())
	require.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, boxopt.Cancelled, r.Status)
	assert.Equal(t, x0, r.X)

	liar := objective.Func{
		F: func([]float64) float64 { return 0 },
		G: func(_, g []float64) { g[0], g[1] = 1, 0 },
	}
	r, err = Solve(liar, []float64{0, 0}, Settings{Eps: 1e-3, Search: linesearch.Wolfe{MaxSteps: 30}})
	require.True(t, errors.Is(err, boxopt.ErrLineSearchDiverged))
	assert.Equal(t, boxopt.Failed, r.Status)
}

func eye(n int) *mat.SymDense {
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, 1)
	}
	return m
}
