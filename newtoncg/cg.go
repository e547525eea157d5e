// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package newtoncg

import (
	"gonum.org/v1/gonum/floats"
)

// innerStat describes one pass of the truncated CG loop.
type innerStat struct {
	steps    int  // number of CG steps taken
	negCurv  bool // stopped on non-positive curvature
	solved   bool // the residual met ηₖ
	fallback bool // dₖ is the steepest descent direction
}

// innerWork holds the scratch vectors of the inner loop.
type innerWork struct {
	xj, rj, dj, dA []float64
}

func newInnerWork(n int) innerWork {
	return innerWork{
		xj: make([]float64, n),
		rj: make([]float64, n),
		dj: make([]float64, n),
		dA: make([]float64, n),
	}
}

// truncatedCG approximately solves the reduced Newton system 𝐇ᵣ𝐝 = -∇𝒇(𝐱ₖ) and
// stores the resulting direction into dk.
//
// Starting from 𝐱ⱼ = 𝐱ₖ, 𝐫ⱼ = ∇𝒇(𝐱ₖ), 𝐝ⱼ = -𝐫ⱼ the loop runs while ‖𝐫ⱼ‖ > ηₖ:
//
//	ρⱼ = 𝐝ⱼᵀ𝐇ᵣ𝐝ⱼ             stop if ρⱼ ≤ ε‖𝐝ⱼ‖²
//	tⱼ = ‖𝐫ⱼ‖² / ρⱼ
//	𝐱ⱼ₊₁ = 𝐱ⱼ + tⱼ𝐝ⱼ
//	𝐫ⱼ₊₁ = 𝐫ⱼ + tⱼ𝐇ᵣ𝐝ⱼ
//	βⱼ = ‖𝐫ⱼ₊₁‖² / ‖𝐫ⱼ‖²
//	𝐝ⱼ₊₁ = -𝐫ⱼ₊₁ + βⱼ𝐝ⱼ
//
// The direction is 𝐱ⱼ - 𝐱ₖ. When no CG step was taken, or the partial step
// is not a descent direction, it is -∇𝒇(𝐱ₖ) instead.
func (d *driver) truncatedCG(xk, gk []float64, eta float64, dk []float64) (stat innerStat) {

	n := len(xk)
	w := &d.inner
	if len(gk) != n || len(dk) != n || len(w.xj) != n {
		panic("bound check error")
	}

	xj, rj, dj, dA := w.xj, w.rj, w.dj, w.dA
	copy(xj, xk)
	copy(rj, gk)
	floats.ScaleTo(dj, -1, rj)

	eps := d.settings.Eps
	rr := floats.Dot(rj, rj)
	for rr > eta*eta {
		if stat.steps >= d.maxInner {
			break
		}

		d.settings.HessVec(d.f, d.p, xk, dj, dA)
		rho := floats.Dot(dj, dA)

		// The model is not convex enough along dⱼ.
		if rho <= eps*floats.Dot(dj, dj) {
			stat.negCurv = true
			break
		}

		tj := rr / rho
		floats.AddScaled(xj, tj, dj)
		floats.AddScaled(rj, tj, dA)

		rrNew := floats.Dot(rj, rj)
		beta := rrNew / rr
		floats.Scale(beta, dj)
		floats.Sub(dj, rj)

		rr = rrNew
		stat.steps++
	}
	stat.solved = rr <= eta*eta

	floats.SubTo(dk, xj, xk)
	if stat.steps == 0 || !(floats.Dot(gk, dk) < 0) {
		floats.ScaleTo(dk, -1, gk)
		stat.fallback = true
	}
	return
}
