// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcg

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/boxopt"
)

// Preconditioner applies 𝐌⁻¹ for a symmetric positive definite 𝐌 ≈ 𝐀.
type Preconditioner interface {
	// Solve stores the solution 𝐳 of 𝐌𝐳 = 𝐫 into dst.
	Solve(dst, r []float64) error
}

// Identity is the trivial preconditioner 𝐌 = 𝐈.
type Identity struct{}

func (Identity) Solve(dst, r []float64) error {
	if len(dst) != len(r) {
		panic("bound check error")
	}
	copy(dst, r)
	return nil
}

// Jacobi is the diagonal preconditioner 𝐌 = diag(𝐀).
type Jacobi struct {
	inv []float64
}

// NewJacobi fails with ErrNotPositiveDefinite when a diagonal entry of a is not positive.
func NewJacobi(a mat.Symmetric) (*Jacobi, error) {
	n := a.SymmetricDim()
	inv := make([]float64, n)
	for i := range inv {
		aii := a.At(i, i)
		if !(aii > 0) {
			return nil, errors.Wrapf(boxopt.ErrNotPositiveDefinite, "diagonal entry %d is %v", i, aii)
		}
		inv[i] = 1 / aii
	}
	return &Jacobi{inv: inv}, nil
}

func (j *Jacobi) Solve(dst, r []float64) error {
	if len(dst) != len(j.inv) || len(r) != len(j.inv) {
		panic("bound check error")
	}
	for i, v := range r {
		dst[i] = v * j.inv[i]
	}
	return nil
}

// Cholesky preconditions with the complete factorization 𝐀 = 𝐋𝐋ᵀ.
// The first iterate is then exact up to rounding.
type Cholesky struct {
	chol mat.Cholesky
}

// NewCholesky fails with ErrNotPositiveDefinite when a cannot be factorized.
func NewCholesky(a mat.Symmetric) (*Cholesky, error) {
	c := new(Cholesky)
	if !c.chol.Factorize(a) {
		return nil, errors.Wrap(boxopt.ErrNotPositiveDefinite, "cholesky factorization failed")
	}
	return c, nil
}

func (c *Cholesky) Solve(dst, r []float64) error {
	n := c.chol.SymmetricDim()
	if len(dst) != n || len(r) != n {
		panic("bound check error")
	}
	return c.chol.SolveVecTo(mat.NewVecDense(n, dst), mat.NewVecDense(n, r))
}
