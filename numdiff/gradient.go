// Package numdiff estimates derivatives of smooth functions by finite differences.
package numdiff

import (
	"math"

	"github.com/pkg/errors"

	"github.com/curioloop/boxopt"
	"github.com/curioloop/boxopt/box"
)

var machEps = math.Nextafter(1, 2) - 1
var sqrtEps = math.Sqrt(machEps)
var cubeEps = math.Cbrt(machEps)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use central difference in interior points and the second order accuracy
	// forward or backward difference near the boundary.
	Central
)

// Gradient estimates the gradient of a scalar function 𝒇 : ℝⁿ → ℝ.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
//
// # License
//
//   - https://github.com/scipy/scipy/blob/main/LICENSE.txt
//
// A Gradient keeps scratch buffers between calls and must not be shared between goroutines.
type Gradient struct {
	// Function of which to estimate the gradient.
	Func func(x []float64) float64
	// Finite difference method to use.
	Method Method
	// Lower and upper bounds on independent variables.
	// Use it to limit the range of function evaluation.
	Bounds []box.Bound
	// Relative step size used to compute absolute step size.
	// The default absolute step size is computed as h = RelStep * sign(x0) * max(1, abs(x0)) with RelStep being selected automatically.
	// Otherwise, absolute step size is computed as h = RelStep * sign(x0) * abs(x0) when RelStep is provided.
	RelStep float64
	// Absolute step size to use, possibly adjusted to fit into the bounds.
	// For Central method the sign of AbsStep is ignored.
	AbsStep float64
	// Don't check if x0 is out of bounds.
	NotChkBnd bool

	x       []float64
	absStep []float64
	oneSide []bool
}

func (gd *Gradient) check(x0, grad []float64) error {
	n := len(x0)
	switch {
	case n == 0:
		return errors.Wrap(boxopt.ErrDimension, "empty x0")
	case gd.Method != Forward && gd.Method != Central:
		return errors.Errorf("unknown method %d", gd.Method)
	case gd.Func == nil:
		return errors.New("object function is required")
	case len(grad) != n:
		return errors.Wrapf(boxopt.ErrDimension, "gradient has %d entries, want %d", len(grad), n)
	}

	if gd.Bounds != nil {
		if len(gd.Bounds) != n {
			return errors.Wrapf(boxopt.ErrDimension, "bounds have %d entries, want %d", len(gd.Bounds), n)
		}
		for i, b := range gd.Bounds {
			l, u := lower(b), upper(b)
			if l > u {
				return errors.Wrapf(boxopt.ErrInvalidBound, "bound range at %d has no feasible solution", i)
			}
			if !gd.NotChkBnd && (x0[i] < l || x0[i] > u) {
				return errors.Wrapf(boxopt.ErrInvalidBound, "x0 violates bound constraints at %d", i)
			}
		}
	}

	if len(gd.absStep) != n {
		gd.x = make([]float64, n)
		gd.absStep = make([]float64, n)
		gd.oneSide = make([]bool, n)
	}
	return nil
}

// Diff stores the finite difference approximation of ∇𝒇(x0) into grad.
// x0 is not modified.
func (gd *Gradient) Diff(x0, grad []float64) error {

	if err := gd.check(x0, grad); err != nil {
		return err
	}

	bnd := false
	for _, b := range gd.Bounds {
		if bnd = !(math.IsInf(lower(b), -1) && math.IsInf(upper(b), 1)); bnd {
			break
		}
	}

	gd.absoluteStep(x0)
	gd.adjustToBounds(x0, bnd)

	copy(gd.x, x0)
	if gd.Method == Central {
		gd.approxCentral(grad)
	} else {
		gd.approxForward(grad)
	}
	return nil
}

func lower(b box.Bound) float64 {
	if math.IsNaN(b.Lower) {
		return math.Inf(-1)
	}
	return b.Lower
}

func upper(b box.Bound) float64 {
	if math.IsNaN(b.Upper) {
		return math.Inf(1)
	}
	return b.Upper
}

func (gd *Gradient) absoluteStep(x0 []float64) {
	h := gd.absStep
	if len(h) != len(x0) {
		panic("bound check error")
	}

	eps := sqrtEps
	if gd.Method == Central {
		eps = cubeEps
	}

	abs, rel := gd.AbsStep, gd.RelStep
	for i, v := range x0 {
		if abs == 0 && rel == 0 {
			h[i] = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
			continue
		}
		s := abs
		if s == 0 {
			s = math.Copysign(rel, v) * math.Abs(v)
		}
		// the step vanishes in floating point
		if (v+s)-v == 0 {
			s = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
		h[i] = s
	}
}

// adjustToBounds flips or shrinks the steps so that every evaluation stays inside the bounds.
// Central steps that do not fit switch to a one-sided second order formula.
func (gd *Gradient) adjustToBounds(x0 []float64, bnd bool) {
	h, o := gd.absStep, gd.oneSide
	for i := range o {
		o[i] = false
	}
	if gd.Method == Central {
		for i, v := range h {
			h[i] = math.Abs(v)
		}
	}
	if !bnd {
		return
	}

	b := gd.Bounds
	if len(x0) != len(b) || len(x0) != len(h) {
		panic("bound check error")
	}

	for i, x := range x0 {
		ld, ud := x-lower(b[i]), upper(b[i])-x
		if gd.Method == Forward {
			h0 := h[i]
			violated := x+h0 < lower(b[i]) || x+h0 > upper(b[i])
			fitting := math.Abs(h0) < math.Max(ld, ud)
			switch {
			case violated && fitting:
				h[i] = -h0
			case !fitting && ud >= ld:
				h[i] = ud
			case !fitting:
				h[i] = -ld
			}
			continue
		}
		central := ld >= h[i] && ud >= h[i]
		if !central {
			if ud >= ld {
				h[i] = math.Min(h[i], 0.5*ud)
			} else {
				h[i] = -math.Min(h[i], 0.5*ld)
			}
			o[i] = true
			if minDist := math.Min(ud, ld); math.Abs(h[i]) <= minDist {
				h[i] = minDist
				o[i] = false
			}
		}
	}
}

func (gd *Gradient) approxForward(grad []float64) {
	x, h, fun := gd.x, gd.absStep, gd.Func
	f0 := fun(x)
	for i, s := range h {
		t := x[i]
		x[i] = t + s
		grad[i] = (fun(x) - f0) / s
		x[i] = t
	}
}

func (gd *Gradient) approxCentral(grad []float64) {
	x, h, o, fun := gd.x, gd.absStep, gd.oneSide, gd.Func
	var f0 float64
	for _, side := range o {
		if side {
			f0 = fun(x)
			break
		}
	}
	for i, s := range h {
		t := x[i]
		d := 1.0 / (2 * s)
		if o[i] {
			x[i] = t + s
			f1 := fun(x)
			x[i] = t + 2*s
			f2 := fun(x)
			grad[i] = (4*f1 - 3*f0 - f2) * d
		} else {
			x[i] = t - s
			f1 := fun(x)
			x[i] = t + s
			f2 := fun(x)
			grad[i] = (f2 - f1) * d
		}
		x[i] = t
	}
}
