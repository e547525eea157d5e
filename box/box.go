// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package box implements the Euclidean projection onto an axis-aligned box
//
//	𝓑 = { 𝐱 ∈ ℝⁿ : lᵢ ≤ xᵢ ≤ uᵢ }
//
// where either side of a coordinate may be absent.
package box

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/boxopt"
)

// DefaultTol is the distance below which a coordinate is considered to lie on its bound.
const DefaultTol = 1.0e-6

type bndHint uint8

const (
	bndNo   bndHint = iota // unbounded
	bndLow                 // only lower bound
	bndBoth                // both lower and upper bounds
	bndUp                  // only upper bound
)

// Bound represents the bounds of one variable.
// NaN or infinity on a side means that side is unbounded.
type Bound struct {
	Lower, Upper float64
}

func (b Bound) hint() bndHint {
	l := !math.IsNaN(b.Lower) && !math.IsInf(b.Lower, -1)
	u := !math.IsNaN(b.Upper) && !math.IsInf(b.Upper, 1)
	switch {
	case l && u:
		return bndBoth
	case l:
		return bndLow
	case u:
		return bndUp
	default:
		return bndNo
	}
}

// Box is a box projector. It is immutable after construction and
// safe for concurrent use.
type Box struct {
	bounds []Bound
	hints  []bndHint
	tol    float64
}

// New creates a box from per-variable bounds.
// A tol of zero selects DefaultTol.
func New(bounds []Bound, tol float64) (*Box, error) {
	switch {
	case len(bounds) == 0:
		return nil, errors.Wrap(boxopt.ErrInvalidBound, "box dimension must be greater than 0")
	case tol < 0 || math.IsNaN(tol):
		return nil, errors.Wrapf(boxopt.ErrInvalidBound, "active tolerance %v must not be less than 0", tol)
	case tol == 0:
		tol = DefaultTol
	}

	b := &Box{
		bounds: make([]Bound, len(bounds)),
		hints:  make([]bndHint, len(bounds)),
		tol:    tol,
	}
	for k, bnd := range bounds {
		h := bnd.hint()
		if h == bndBoth && bnd.Lower > bnd.Upper {
			return nil, errors.Wrapf(boxopt.ErrInvalidBound, "bound range at %d has no feasible solution", k)
		}
		if h == bndLow || h == bndNo {
			bnd.Upper = math.Inf(1)
		}
		if h == bndUp || h == bndNo {
			bnd.Lower = math.Inf(-1)
		}
		b.bounds[k], b.hints[k] = bnd, h
	}
	return b, nil
}

// FromSlices creates the box [a, b] with the default active tolerance.
func FromSlices(a, b []float64) (*Box, error) {
	if len(a) != len(b) {
		return nil, errors.Wrapf(boxopt.ErrDimension, "lower has %d entries but upper has %d", len(a), len(b))
	}
	bounds := make([]Bound, len(a))
	for i := range bounds {
		bounds[i] = Bound{a[i], b[i]}
	}
	return New(bounds, 0)
}

// Uniform creates the box [lower, upper]ⁿ.
func Uniform(n int, lower, upper float64) (*Box, error) {
	bounds := make([]Bound, max(n, 0))
	for i := range bounds {
		bounds[i] = Bound{lower, upper}
	}
	return New(bounds, 0)
}

// Dim returns the number of variables.
func (b *Box) Dim() int { return len(b.bounds) }

// Tol returns the active tolerance.
func (b *Box) Tol() float64 { return b.tol }

// Bounds returns a copy of the normalized bounds.
// Missing sides are reported as infinities.
func (b *Box) Bounds() []Bound {
	return append([]Bound(nil), b.bounds...)
}

// Project stores the projection of x into dst.
//
//	𝚙𝚛𝚘𝚓 xᵢ = uᵢ    if xᵢ > uᵢ
//	𝚙𝚛𝚘𝚓 xᵢ = lᵢ    if xᵢ < lᵢ
//	𝚙𝚛𝚘𝚓 xᵢ = xᵢ    otherwise
func (b *Box) Project(dst, x []float64) {
	if len(dst) != len(b.bounds) || len(x) != len(b.bounds) {
		panic("bound check error")
	}
	for i, bnd := range b.bounds {
		xi := x[i]
		switch h := b.hints[i]; {
		case h <= bndBoth && h != bndNo && xi < bnd.Lower:
			xi = bnd.Lower
		case h >= bndBoth && xi > bnd.Upper:
			xi = bnd.Upper
		}
		dst[i] = xi
	}
}

// ActiveSet returns the indices of the coordinates of x within Tol of a bound.
func (b *Box) ActiveSet(x []float64) []int {
	if len(x) != len(b.bounds) {
		panic("bound check error")
	}
	var active []int
	for i, bnd := range b.bounds {
		h, xi := b.hints[i], x[i]
		if h == bndNo {
			continue
		}
		if (h <= bndBoth && xi <= bnd.Lower+b.tol) || (h >= bndBoth && xi >= bnd.Upper-b.tol) {
			active = append(active, i)
		}
	}
	return active
}

// Contains reports whether x lies inside the box.
func (b *Box) Contains(x []float64) bool {
	if len(x) != len(b.bounds) {
		return false
	}
	for i, bnd := range b.bounds {
		if x[i] < bnd.Lower || x[i] > bnd.Upper || math.IsNaN(x[i]) {
			return false
		}
	}
	return true
}

// Stationarity returns the projected gradient norm ‖𝐱 - P(𝐱 - 𝐠)‖₂,
// which vanishes exactly at constrained first-order optimal points.
func Stationarity(p boxopt.Projector, x, g []float64) float64 {
	if len(x) != len(g) {
		panic("bound check error")
	}
	w := make([]float64, len(x))
	floats.SubTo(w, x, g)
	p.Project(w, w)
	return floats.Distance(x, w, 2)
}
