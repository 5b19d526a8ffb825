package mip

import (
	"fmt"
	"sort"
	"strings"
)

// Term is a single coefficient*variable product within a linear expression.
type Term struct {
	Var  *Var
	Coef float64
}

// LinExpr is a linear expression over decision variables plus a constant
// offset. Expressions are built incrementally and then frozen inside a
// constraint or objective; the Add methods return the receiver so terms can
// be chained.
//
// Repeated Add calls for the same variable accumulate into a single term
// when the expression is compiled, so callers are free to emit coefficients
// in whatever order the formulation produces them.
type LinExpr struct {
	terms []Term
	cons  float64
}

// NewExpr returns an empty expression (zero constant, no terms).
func NewExpr() *LinExpr {
	return &LinExpr{}
}

// ExprOf returns an expression consisting of the single term 1*v.
func ExprOf(v *Var) *LinExpr {
	return NewExpr().Add(v, 1)
}

// Add appends coef*v to the expression.
func (e *LinExpr) Add(v *Var, coef float64) *LinExpr {
	e.terms = append(e.terms, Term{Var: v, Coef: coef})
	return e
}

// AddConst adds a constant offset to the expression.
func (e *LinExpr) AddConst(c float64) *LinExpr {
	e.cons += c
	return e
}

// AddExpr appends scale*other to the expression, term by term.
func (e *LinExpr) AddExpr(other *LinExpr, scale float64) *LinExpr {
	for _, t := range other.terms {
		e.terms = append(e.terms, Term{Var: t.Var, Coef: scale * t.Coef})
	}
	e.cons += scale * other.cons
	return e
}

// Terms returns the raw term list. Coefficients for a variable may be split
// across several terms; use Coefficients for the merged view.
func (e *LinExpr) Terms() []Term { return e.terms }

// Constant returns the constant offset of the expression.
func (e *LinExpr) Constant() float64 { return e.cons }

// Coefficients returns the merged coefficient per variable ID, dropping
// exact zeros produced by cancellation.
func (e *LinExpr) Coefficients() map[int]float64 {
	m := make(map[int]float64, len(e.terms))
	for _, t := range e.terms {
		m[t.Var.id] += t.Coef
	}
	for id, c := range m {
		if c == 0 {
			delete(m, id)
		}
	}
	return m
}

// Eval computes the expression value under the given assignment of variable
// ID to value. Variables absent from the assignment evaluate as zero.
func (e *LinExpr) Eval(values map[int]float64) float64 {
	v := e.cons
	for _, t := range e.terms {
		v += t.Coef * values[t.Var.id]
	}
	return v
}

func (e *LinExpr) String() string {
	coefs := e.Coefficients()
	ids := make([]int, 0, len(coefs))
	for id := range coefs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteString(" + ")
		}
		fmt.Fprintf(&b, "%g*x%d", coefs[id], id)
	}
	if e.cons != 0 || len(ids) == 0 {
		if len(ids) > 0 {
			b.WriteString(" + ")
		}
		fmt.Fprintf(&b, "%g", e.cons)
	}
	return b.String()
}
