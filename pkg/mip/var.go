package mip

import "fmt"

// VarKind classifies a decision variable.
type VarKind int

const (
	// Continuous variables take any real value within their bounds.
	Continuous VarKind = iota
	// Integer variables are restricted to integral values within bounds.
	Integer
	// Binary variables are integer variables with bounds [0,1].
	Binary
)

func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("VarKind(%d)", int(k))
	}
}

// Var is a handle to a decision variable owned by a Model. Vars are created
// through the Model's factory methods and are immutable afterwards except
// for bound tightening via Model.SetBounds during construction.
type Var struct {
	id   int
	name string
	kind VarKind
	lb   float64
	ub   float64
}

// ID returns the variable's index within its model (creation order).
func (v *Var) ID() int { return v.id }

// Name returns the variable's name as given at creation.
func (v *Var) Name() string { return v.name }

// Kind returns the variable's kind.
func (v *Var) Kind() VarKind { return v.kind }

// Bounds returns the variable's lower and upper bound.
func (v *Var) Bounds() (lb, ub float64) { return v.lb, v.ub }

func (v *Var) String() string {
	return fmt.Sprintf("%s(%s,[%g,%g])", v.name, v.kind, v.lb, v.ub)
}
