// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/boxopt"
	"github.com/curioloop/boxopt/box"
	"github.com/curioloop/boxopt/numdiff"
)

func TestQuadratic(t *testing.T) {

	a := mat.NewSymDense(2, []float64{
		2, 1,
		1, 4,
	})
	q, err := NewQuadratic(a, []float64{-1, 3}, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Dim())

	x := []float64{1, -2}
	// ½(2 - 4 + 16) + (-1 - 6) + 5
	assert.InDelta(t, 5.0, q.Evaluate(x), 1e-15)

	g := make([]float64, 2)
	q.Gradient(x, g)
	assert.Equal(t, []float64{-1, -4}, g)

	hd := make([]float64, 2)
	q.HessVec(x, []float64{1, 1}, hd)
	assert.Equal(t, []float64{3, 5}, hd)

	_, err = NewQuadratic(a, []float64{1}, 0)
	assert.True(t, errors.Is(err, boxopt.ErrDimension))
}

func TestValley(t *testing.T) {

	v := Valley([]float64{0, 1})
	assert.Zero(t, v.Evaluate([]float64{0, 1}))
	assert.InDelta(t, 1.0, v.Evaluate([]float64{1, 1}), 1e-15)

	g := make([]float64, 2)
	v.Gradient([]float64{1, 1}, g)
	assert.Equal(t, []float64{2, 0}, g)

	for _, p := range [][]float64{nil, {}} {
		func() {
			defer func() {
				err, ok := recover().(error)
				require.True(t, ok, "Valley(%v) must panic with an error", p)
				assert.True(t, errors.Is(err, boxopt.ErrDimension))
			}()
			Valley(p)
		}()
	}
}

func TestNumeric(t *testing.T) {

	r := Rosenbrock{}
	x := []float64{-1.2, 1, 0.7, 1.5}
	want := make([]float64, 4)
	r.Gradient(x, want)

	for _, m := range []numdiff.Method{numdiff.Forward, numdiff.Central} {
		num := NewNumeric(r.Evaluate, m, nil)
		got := make([]float64, 4)
		num.Gradient(x, got)
		for i := range got {
			if math.Abs(got[i]-want[i]) > 1e-4*math.Max(1, math.Abs(want[i])) {
				t.Fatalf("method %d: gradient %v, want %v", m, got, want)
			}
		}
		assert.Equal(t, r.Evaluate(x), num.Evaluate(x))
	}

	// steps near the bound are taken inwards
	bounded := NewNumeric(func(x []float64) float64 {
		if x[0] > 1 {
			return math.NaN()
		}
		return x[0] * x[0]
	}, numdiff.Forward, []box.Bound{{Lower: 0, Upper: 1}})
	g := []float64{0}
	bounded.Gradient([]float64{1}, g)
	assert.InDelta(t, 2.0, g[0], 1e-6)
}

func TestRosenbrock(t *testing.T) {

	r := Rosenbrock{}
	one := []float64{1, 1, 1}
	assert.Zero(t, r.Evaluate(one))

	g := make([]float64, 3)
	r.Gradient(one, g)
	assert.Equal(t, []float64{0, 0, 0}, g)

	assert.InDelta(t, 24.2, r.Evaluate([]float64{-1.2, 1}), 1e-12)
}

func TestCounter(t *testing.T) {

	c := Count(Func{
		F: func(x []float64) float64 { return x[0] },
		G: func(x, g []float64) { g[0] = 1 },
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := []float64{0}
			c.Evaluate([]float64{1})
			c.Gradient([]float64{1}, g)
			c.Gradient([]float64{1}, g)
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, c.Evals())
	assert.Equal(t, 16, c.Grads())
}
