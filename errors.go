// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package boxopt

import "github.com/pkg/errors"

var (
	// ErrInvalidTolerance reports a non-positive stationarity tolerance.
	ErrInvalidTolerance = errors.New("tolerance must be greater than 0")
	// ErrInvalidParameter reports a solver or line search constant out of range.
	ErrInvalidParameter = errors.New("parameter out of range")
	// ErrInvalidDirection reports a search direction that is not a descent direction.
	ErrInvalidDirection = errors.New("descent direction check failed")
	// ErrLineSearchDiverged reports a line search that exhausted its trial budget.
	ErrLineSearchDiverged = errors.New("line search did not find an acceptable step")
	// ErrRoundingPrecision reports a step length search whose decrease is below the resolution of the objective.
	ErrRoundingPrecision = errors.New("rounding errors prevent progress")
	// ErrNonConvergence reports an iteration budget exhausted before the tolerance was met.
	ErrNonConvergence = errors.New("iteration limit reached before convergence")
	// ErrInvalidBound reports a bound range without feasible points.
	ErrInvalidBound = errors.New("invalid bound")
	// ErrDimension reports operands of mismatched dimension.
	ErrDimension = errors.New("dimension mismatch")
	// ErrNotPositiveDefinite reports a matrix that must be positive definite but is not.
	ErrNotPositiveDefinite = errors.New("matrix is not positive definite")
)
