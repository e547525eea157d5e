// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package box

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curioloop/boxopt"
)

func TestNew(t *testing.T) {

	_, err := New(nil, 0)
	require.True(t, errors.Is(err, boxopt.ErrInvalidBound))

	_, err = New([]Bound{{0, 1}, {2, 1}}, 0)
	require.True(t, errors.Is(err, boxopt.ErrInvalidBound))

	_, err = New([]Bound{{0, 1}}, -1)
	require.True(t, errors.Is(err, boxopt.ErrInvalidBound))

	_, err = FromSlices([]float64{0, 0}, []float64{1})
	require.True(t, errors.Is(err, boxopt.ErrDimension))

	b, err := New([]Bound{{0, 1}, {math.NaN(), 2}, {-1, math.Inf(1)}, {math.NaN(), math.NaN()}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Dim())
	assert.Equal(t, DefaultTol, b.Tol())

	bnd := b.Bounds()
	assert.True(t, math.IsInf(bnd[1].Lower, -1))
	assert.True(t, math.IsInf(bnd[2].Upper, 1))
	assert.True(t, math.IsInf(bnd[3].Lower, -1) && math.IsInf(bnd[3].Upper, 1))
}

func TestProject(t *testing.T) {

	b, err := New([]Bound{{0, 1}, {math.NaN(), 2}, {-1, math.Inf(1)}, {math.NaN(), math.NaN()}}, 0)
	require.NoError(t, err)

	x := []float64{-3, 5, -7, 1e9}
	p := make([]float64, 4)
	b.Project(p, x)
	assert.Equal(t, []float64{0, 2, -1, 1e9}, p)

	x = []float64{3, -5, 7, -1e9}
	b.Project(x, x)
	assert.Equal(t, []float64{1, -5, 7, -1e9}, x)

	// feasible points are left untouched
	x = []float64{0.5, 2, -1, 0}
	b.Project(p, x)
	assert.Equal(t, x, p)
}

func TestProjectIdempotent(t *testing.T) {

	a := []float64{-2, 1, 0, -5, 3}
	u := []float64{2, 2, 0, 5, 7}
	b, err := FromSlices(a, u)
	require.NoError(t, err)

	rnd := rand.New(rand.NewPCG(1, 2))
	x, p, q := make([]float64, 5), make([]float64, 5), make([]float64, 5)
	for k := 0; k < 200; k++ {
		for i := range x {
			x[i] = 20 * (rnd.Float64() - 0.5)
		}
		b.Project(p, x)
		b.Project(q, p)
		switch {
		case !slices.Equal(p, q):
			t.Fatalf("projection not idempotent at %v", x)
		case !b.Contains(p):
			t.Fatalf("projection %v not feasible", p)
		}
	}
}

func TestActiveSet(t *testing.T) {

	b, err := FromSlices([]float64{1, 1, -1}, []float64{2, 2, 1})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, b.ActiveSet([]float64{1, 2, 0}))
	assert.Equal(t, []int{2}, b.ActiveSet([]float64{1.5, 1.5, 1 - DefaultTol/2}))
	assert.Empty(t, b.ActiveSet([]float64{1.5, 1.5, 0}))

	free, err := New([]Bound{{math.NaN(), math.NaN()}}, 0)
	require.NoError(t, err)
	assert.Empty(t, free.ActiveSet([]float64{0}))
}

func TestStationarity(t *testing.T) {

	b, err := FromSlices([]float64{1, 1}, []float64{2, 2})
	require.NoError(t, err)

	// gradient pointing out of the box at a corner is stationary
	assert.Zero(t, Stationarity(b, []float64{1, 1}, []float64{2, 2}))

	// x - P(x - g) = (2,2) - (1,1)
	assert.InDelta(t, math.Sqrt2, Stationarity(b, []float64{2, 2}, []float64{4, 4}), 1e-15)

	// interior point with small gradient reduces to ‖g‖
	assert.InDelta(t, 0.5, Stationarity(b, []float64{1.5, 1.5}, []float64{0.3, 0.4}), 1e-15)
}
