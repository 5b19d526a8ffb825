package bnb

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// relaxResult is the outcome of solving one node's LP relaxation.
type relaxResult struct {
	feasible  bool
	unbounded bool
	obj       float64   // minimized objective value c·x
	x         []float64 // values for the original model variables
}

// solveRelaxation solves the LP relaxation
//
//	minimize c·x  s.t.  ineq rows, eq rows, lb <= x <= ub
//
// by lowering to gonum's standard form. Variable bounds are emitted as
// inequality rows; lp.Convert splits each free variable into a positive
// pair, so the original values are recovered as x[i] = xStd[i] - xStd[n+i].
func solveRelaxation(c []float64, ineq, eq []linRow, lb, ub []float64) (relaxResult, error) {
	n := len(c)

	nBound := 0
	for i := 0; i < n; i++ {
		if !math.IsInf(lb[i], -1) {
			nBound++
		}
		if !math.IsInf(ub[i], 1) {
			nBound++
		}
	}

	gRows := len(ineq) + nBound
	var g *mat.Dense
	var h []float64
	if gRows > 0 {
		g = mat.NewDense(gRows, n, nil)
		h = make([]float64, gRows)
		r := 0
		for _, row := range ineq {
			for id, coef := range row.coefs {
				g.Set(r, id, coef)
			}
			h[r] = row.rhs
			r++
		}
		for i := 0; i < n; i++ {
			if !math.IsInf(ub[i], 1) {
				g.Set(r, i, 1)
				h[r] = ub[i]
				r++
			}
			if !math.IsInf(lb[i], -1) {
				g.Set(r, i, -1)
				h[r] = -lb[i]
				r++
			}
		}
	}

	var a *mat.Dense
	var b []float64
	if len(eq) > 0 {
		a = mat.NewDense(len(eq), n, nil)
		b = make([]float64, len(eq))
		for r, row := range eq {
			for id, coef := range row.coefs {
				a.Set(r, id, coef)
			}
			b[r] = row.rhs
		}
	}

	// lp.Convert checks its matrix arguments against nil interfaces, so a
	// nil *mat.Dense must be passed as a literal nil, not a typed nil.
	var gM, aM mat.Matrix
	if g != nil {
		gM = g
	}
	if a != nil {
		aM = a
	}
	cStd, aStd, bStd := lp.Convert(c, gM, h, aM, b)

	opt, xStd, err := lp.Simplex(cStd, aStd, bStd, 0, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return relaxResult{feasible: false}, nil
		case errors.Is(err, lp.ErrUnbounded):
			return relaxResult{feasible: true, unbounded: true}, nil
		default:
			return relaxResult{}, err
		}
	}

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = xStd[i] - xStd[n+i]
	}
	return relaxResult{feasible: true, obj: opt, x: x}, nil
}

// mostFractional picks the integral variable whose value is furthest from
// an integer (fractional part closest to 1/2). Returns the variable index
// and its distance to the nearest integer; a distance below the caller's
// integrality tolerance means the point is integer feasible.
func mostFractional(x []float64, integral []bool) (int, float64) {
	best := -1
	bestFrac := 0.0
	for i, isInt := range integral {
		if !isInt {
			continue
		}
		frac := math.Abs(x[i] - math.Round(x[i]))
		if frac > bestFrac {
			best = i
			bestFrac = frac
		}
	}
	return best, bestFrac
}

// snap rounds integral variables to the nearest integer and clamps every
// value to its bounds.
func snap(x []float64, integral []bool, lb, ub []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if integral[i] {
			v = math.Round(v)
		}
		out[i] = math.Min(math.Max(v, lb[i]), ub[i])
	}
	return out
}
