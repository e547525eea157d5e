// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package newtoncg

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/boxopt"
	"github.com/curioloop/boxopt/box"
	"github.com/curioloop/boxopt/linesearch"
	"github.com/curioloop/boxopt/objective"
)

// driver owns the state of one solve. Nothing in it is shared with other solves.
type driver struct {
	settings Settings
	f        boxopt.Objective   // used for hessian products
	c        *objective.Counter // used for values and gradients
	p        boxopt.Projector
	log      *zerolog.Logger
	maxInner int

	xk, gk, dk   []float64
	stationarity float64
	eta          float64
	inner        innerWork
	summary      Summary
}

func newDriver(f boxopt.Objective, p boxopt.Projector, x0 []float64, s Settings) *driver {
	n := len(x0)
	d := &driver{
		settings: s,
		f:        f,
		c:        objective.Count(f),
		p:        p,
		log:      s.Logger,
		maxInner: max(2*n, 10),
		xk:       make([]float64, n),
		gk:       make([]float64, n),
		dk:       make([]float64, n),
		inner:    newInnerWork(n),
	}
	// The initial point may be infeasible.
	p.Project(d.xk, x0)
	return d
}

// evaluate refreshes the gradient, the stationarity measure and the forcing term at xₖ.
func (d *driver) evaluate() {
	d.c.Gradient(d.xk, d.gk)
	d.stationarity = box.Stationarity(d.p, d.xk, d.gk)
	d.eta = forcing(d.stationarity)
}

func (d *driver) run(ctx context.Context) (res *Result, err error) {

	s := d.settings
	d.evaluate()
	d.printInit()

	status := boxopt.Converged
	for d.stationarity > s.Eps {
		if d.summary.NumIter >= s.MaxIterations {
			status = boxopt.IterationLimit
			err = errors.Wrapf(boxopt.ErrNonConvergence,
				"stationarity %.3e after %d iterations", d.stationarity, d.summary.NumIter)
			break
		}
		if cerr := ctx.Err(); cerr != nil {
			status = boxopt.Cancelled
			err = errors.Wrapf(cerr, "cancelled after %d iterations", d.summary.NumIter)
			break
		}

		inner := d.truncatedCG(d.xk, d.gk, d.eta, d.dk)
		d.summary.NumInner += inner.steps
		if inner.fallback {
			d.summary.NumFallback++
		}

		tk, lerr := linesearch.Projected(d.c, d.p, d.xk, d.dk, s.Sigma)
		if errors.Is(lerr, boxopt.ErrLineSearchDiverged) && !inner.fallback {
			// Clipping the active components can remove all decrease along the projected arc.
			d.log.Debug().Err(lerr).Int("iter", d.summary.NumIter+1).Msg("retry with steepest descent")
			floats.ScaleTo(d.dk, -1, d.gk)
			inner.fallback = true
			d.summary.NumFallback++
			tk, lerr = linesearch.Projected(d.c, d.p, d.xk, d.dk, s.Sigma)
		}
		if lerr != nil {
			status = boxopt.Failed
			err = errors.Wrapf(lerr, "iteration %d", d.summary.NumIter+1)
			break
		}

		var decrease float64
		if s.Verbose {
			decrease = d.sufficientDecrease(tk)
		}

		// xₖ₊₁ = P(xₖ + tₖdₖ)
		floats.AddScaled(d.xk, tk, d.dk)
		d.p.Project(d.xk, d.xk)
		d.evaluate()
		d.summary.NumIter++

		d.printIter(inner, tk, decrease)
	}

	d.summary.Status = status
	res = d.result()
	d.printExit(res, err)
	return
}

// sufficientDecrease returns σt‖𝐱ₖ - P(𝐱ₖ - t∇𝒇(𝐱ₖ))‖², the least decrease the accepted step t guarantees.
func (d *driver) sufficientDecrease(t float64) float64 {
	w := d.inner.dA
	floats.AddScaledTo(w, d.xk, -t, d.gk)
	d.p.Project(w, w)
	dist := floats.Distance(d.xk, w, 2)
	return d.settings.Sigma * t * dist * dist
}

func (d *driver) result() *Result {
	d.summary.NumEval = d.c.Evals()
	d.summary.NumGrad = d.c.Grads()
	return &Result{
		OK:           d.summary.Status == boxopt.Converged,
		F:            d.c.Objective.Evaluate(d.xk),
		X:            append([]float64(nil), d.xk...),
		G:            append([]float64(nil), d.gk...),
		Stationarity: d.stationarity,
		Summary:      d.summary,
	}
}

func (d *driver) printInit() {
	if !d.settings.Verbose {
		return
	}
	d.log.Debug().
		Int("n", len(d.xk)).
		Float64("eps", d.settings.Eps).
		Float64("sigma", d.settings.Sigma).
		Float64("stationarity", d.stationarity).
		Msg("running projected inexact newton-cg")
}

func (d *driver) printIter(inner innerStat, step, decrease float64) {
	if !d.settings.Verbose {
		return
	}
	d.log.Debug().
		Int("iter", d.summary.NumIter).
		Float64("f", d.c.Objective.Evaluate(d.xk)).
		Float64("stationarity", d.stationarity).
		Float64("eta", d.eta).
		Float64("step", step).
		Float64("decrease", decrease).
		Int("inner", inner.steps).
		Bool("negative_curvature", inner.negCurv).
		Bool("fallback", inner.fallback).
		Floats64("x", d.xk).
		Msg("iterate")
}

func (d *driver) printExit(res *Result, err error) {
	if err != nil {
		d.log.Warn().Err(err).
			Stringer("status", res.Status).
			Int("iter", res.NumIter).
			Float64("stationarity", res.Stationarity).
			Msg("projected inexact newton-cg stopped")
		return
	}
	if !d.settings.Verbose {
		return
	}
	d.log.Debug().
		Stringer("status", res.Status).
		Int("iter", res.NumIter).
		Int("inner", res.NumInner).
		Int("fallback", res.NumFallback).
		Int("evals", res.NumEval).
		Int("grads", res.NumGrad).
		Float64("f", res.F).
		Float64("stationarity", res.Stationarity).
		Msg("projected inexact newton-cg terminated")
}
