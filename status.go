// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package boxopt

import "fmt"

// Status is the final state of a solve.
type Status int

const (
	// Converged the optimality measure fell below the tolerance.
	Converged Status = iota
	// IterationLimit the iteration budget was exhausted.
	IterationLimit
	// Cancelled the context was done before convergence.
	Cancelled
	// Failed the line search could not produce a step.
	Failed
	// Stalled the achievable decrease fell below the floating point resolution of the objective.
	Stalled
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "CONVERGENCE: NORM_OF_PROJECTED_GRADIENT_<=_EPS"
	case IterationLimit:
		return "STOP: TOTAL NO. of ITERATIONS REACHED LIMIT"
	case Cancelled:
		return "STOP: CONTEXT DONE"
	case Failed:
		return "ABNORMAL_TERMINATION_IN_LNSRCH"
	case Stalled:
		return "ROUNDING ERRORS PREVENT PROGRESS"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}
