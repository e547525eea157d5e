package numdiff

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/boxopt"
)

// HessVec stores the forward difference approximation of ∇²𝒇(𝐱)𝐝 into dst:
//
//	∇²𝒇(𝐱)𝐝 ≈ (∇𝒇(𝐱 + h𝐝) - ∇𝒇(𝐱)) / h
//
// where h = √ε max(1,‖𝐱‖) / ‖𝐝‖. A zero d yields a zero product.
func HessVec(f boxopt.Objective, x, d, dst []float64) {
	if len(x) != len(d) || len(x) != len(dst) {
		panic("bound check error")
	}
	dNorm := floats.Norm(d, 2)
	if dNorm == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	h := sqrtEps * math.Max(1, floats.Norm(x, 2)) / dNorm

	g0 := make([]float64, len(x))
	xh := make([]float64, len(x))
	f.Gradient(x, g0)
	floats.AddScaledTo(xh, x, h, d)
	f.Gradient(xh, dst)
	floats.Sub(dst, g0)
	floats.Scale(1/h, dst)
}

// ProjectedHessVec approximates the product of the reduced Hessian at a feasible x with d.
// The reduced Hessian keeps the rows and columns of the free variables and
// replaces the block of the active set 𝓐(𝐱) with the identity:
//
//	[∇²𝒇(𝐱)]ᵣᵢⱼ = δᵢⱼ          if i ∈ 𝓐(𝐱) or j ∈ 𝓐(𝐱)
//	[∇²𝒇(𝐱)]ᵣᵢⱼ = [∇²𝒇(𝐱)]ᵢⱼ  otherwise
//
// so only the free part of d is used in the gradient difference and the
// active entries of the product equal those of d. Objectives implementing
// boxopt.HessianVector use their exact product instead of the difference.
func ProjectedHessVec(f boxopt.Objective, p boxopt.Projector, x, d, dst []float64) {
	if len(x) != len(d) || len(x) != len(dst) {
		panic("bound check error")
	}
	active := p.ActiveSet(x)

	dr := make([]float64, len(d))
	copy(dr, d)
	for _, i := range active {
		dr[i] = 0
	}
	if hv, ok := f.(boxopt.HessianVector); ok {
		hv.HessVec(x, dr, dst)
	} else {
		HessVec(f, x, dr, dst)
	}
	for _, i := range active {
		dst[i] = d[i]
	}
}

var _ boxopt.HessVecFunc = ProjectedHessVec
