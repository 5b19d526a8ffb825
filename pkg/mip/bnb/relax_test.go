package bnb

import (
	"math"
	"testing"
)

func TestSolveRelaxationEqualityOnlyFreeVariables(t *testing.T) {
	// Free variables and no inequality rows leave the inequality matrix
	// unallocated; the relaxation must still solve through the
	// equality-only path. minimize x + y subject to x + y == 4.
	c := []float64{1, 1}
	eq := []linRow{{coefs: map[int]float64{0: 1, 1: 1}, rhs: 4, name: "sum"}}
	lb := []float64{math.Inf(-1), math.Inf(-1)}
	ub := []float64{math.Inf(1), math.Inf(1)}

	res, err := solveRelaxation(c, nil, eq, lb, ub)
	if err != nil {
		t.Fatalf("relaxation failed: %v", err)
	}
	if !res.feasible || res.unbounded {
		t.Fatalf("expected a bounded feasible relaxation, got %+v", res)
	}
	if !almostEqual(res.obj, 4) {
		t.Fatalf("expected objective 4, got %v", res.obj)
	}
	if !almostEqual(res.x[0]+res.x[1], 4) {
		t.Fatalf("expected x+y=4, got %v", res.x[0]+res.x[1])
	}
}

func TestSolveRelaxationBoundsOnlyNoRows(t *testing.T) {
	// No constraint rows at all: bounds alone become the inequality
	// matrix and the equality side stays unallocated.
	c := []float64{-1}
	res, err := solveRelaxation(c, nil, nil, []float64{0}, []float64{3})
	if err != nil {
		t.Fatalf("relaxation failed: %v", err)
	}
	if !res.feasible || res.unbounded {
		t.Fatalf("expected a bounded feasible relaxation, got %+v", res)
	}
	if !almostEqual(res.x[0], 3) {
		t.Fatalf("expected x at its upper bound, got %v", res.x[0])
	}
}
