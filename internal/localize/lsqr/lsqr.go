// Package lsqr solves the sparse linear least-squares problem min ||Ax-b||2
// that backs the LIN_LSQR and FLOW_COMBINATION localization methods, via
// gonum's QR-based least-squares solver.
package lsqr

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Termination distinguishes a normal solve from one gonum flagged as
// ill-conditioned.
type Termination int

const (
	TerminationConverged Termination = iota
	TerminationIllConditioned
)

// Solve returns the least-squares solution x of a·x = b, plus the
// termination type. a is row-major, one row per measurement.
func Solve(a [][]float64, b []float64) ([]float64, Termination, error) {
	rows := len(a)
	if rows == 0 || len(b) != rows {
		return nil, TerminationConverged, fmt.Errorf("lsqr: empty or mismatched system (%d rows, %d measurements)", rows, len(b))
	}
	cols := len(a[0])
	flat := make([]float64, 0, rows*cols)
	for _, row := range a {
		if len(row) != cols {
			return nil, TerminationConverged, fmt.Errorf("lsqr: ragged matrix row")
		}
		flat = append(flat, row...)
	}

	A := mat.NewDense(rows, cols, flat)
	B := mat.NewVecDense(rows, append([]float64(nil), b...))

	var x mat.VecDense
	if err := x.SolveVec(A, B); err != nil {
		return nil, TerminationIllConditioned, fmt.Errorf("lsqr: %w", err)
	}

	out := make([]float64, cols)
	for i := 0; i < cols; i++ {
		out[i] = x.AtVec(i)
	}
	return out, TerminationConverged, nil
}
