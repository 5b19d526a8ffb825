package bnb

import (
	"math"
	"testing"

	"github.com/agorelick/CNalign/pkg/mip"
)

// rowHolds checks a lowered inequality row at a concrete assignment.
func rowHolds(r linRow, x map[int]float64) bool {
	v := 0.0
	for id, c := range r.coefs {
		v += c * x[id]
	}
	return v <= r.rhs+1e-9
}

func TestCompileBigMIndicator(t *testing.T) {
	m := mip.NewModel()
	b := m.Binary("b")
	x := m.Continuous("x", 0, 10)
	m.AddIndicator("cap", b, 1, mip.ExprOf(x), mip.LessEqual, 2)

	comp, err := compile(m)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(comp.ineq) != 1 {
		t.Fatalf("expected 1 lowered row, got %d", len(comp.ineq))
	}
	row := comp.ineq[0]

	// Triggered: x <= 2 must bind.
	if rowHolds(row, map[int]float64{b.ID(): 1, x.ID(): 5}) {
		t.Fatal("triggered indicator should reject x=5")
	}
	if !rowHolds(row, map[int]float64{b.ID(): 1, x.ID(): 2}) {
		t.Fatal("triggered indicator should accept x=2")
	}
	// Off: any x within bounds passes.
	if !rowHolds(row, map[int]float64{b.ID(): 0, x.ID(): 10}) {
		t.Fatal("inactive indicator should accept x=10")
	}
}

func TestCompileIndicatorNeedsFiniteBounds(t *testing.T) {
	m := mip.NewModel()
	b := m.Binary("b")
	x := m.Continuous("x", 0, math.Inf(1))
	m.AddIndicator("cap", b, 1, mip.ExprOf(x), mip.LessEqual, 2)

	if _, err := compile(m); err == nil {
		t.Fatal("expected an error for an indicator over an unbounded variable")
	}
}

func TestCompileAndEncoding(t *testing.T) {
	m := mip.NewModel()
	a := m.Binary("a")
	b := m.Binary("b")
	y := m.Binary("y")
	m.AddAnd("and", y, a, b)

	comp, err := compile(m)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	check := func(av, bv, yv float64) bool {
		x := map[int]float64{a.ID(): av, b.ID(): bv, y.ID(): yv}
		for _, r := range comp.ineq {
			if !rowHolds(r, x) {
				return false
			}
		}
		return true
	}
	// Only assignments with y = a*b satisfy the encoding.
	for _, tc := range []struct {
		a, b, y float64
		ok      bool
	}{
		{1, 1, 1, true}, {1, 0, 0, true}, {0, 0, 0, true},
		{1, 1, 0, false}, {0, 1, 1, false},
	} {
		if got := check(tc.a, tc.b, tc.y); got != tc.ok {
			t.Fatalf("AND encoding: a=%v b=%v y=%v expected ok=%v", tc.a, tc.b, tc.y, tc.ok)
		}
	}
}

func TestCompileOrEncoding(t *testing.T) {
	m := mip.NewModel()
	a := m.Binary("a")
	b := m.Binary("b")
	y := m.Binary("y")
	m.AddOr("or", y, a, b)

	comp, err := compile(m)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	check := func(av, bv, yv float64) bool {
		x := map[int]float64{a.ID(): av, b.ID(): bv, y.ID(): yv}
		for _, r := range comp.ineq {
			if !rowHolds(r, x) {
				return false
			}
		}
		return true
	}
	for _, tc := range []struct {
		a, b, y float64
		ok      bool
	}{
		{0, 0, 0, true}, {1, 0, 1, true}, {1, 1, 1, true},
		{1, 0, 0, false}, {0, 0, 1, false},
	} {
		if got := check(tc.a, tc.b, tc.y); got != tc.ok {
			t.Fatalf("OR encoding: a=%v b=%v y=%v expected ok=%v", tc.a, tc.b, tc.y, tc.ok)
		}
	}
}

func TestIncumbentPoolRankingAndDedupe(t *testing.T) {
	p := newIncumbentPool(2)
	p.offer([]float64{1}, 1)
	p.offer([]float64{2}, 5)
	p.offer([]float64{2}, 5) // duplicate assignment
	p.offer([]float64{3}, 3)

	if len(p.entries) != 2 {
		t.Fatalf("expected pool trimmed to 2, got %d", len(p.entries))
	}
	if p.best().obj != 5 || p.worst() != 3 {
		t.Fatalf("expected best 5 worst 3, got best %v worst %v", p.best().obj, p.worst())
	}
}
