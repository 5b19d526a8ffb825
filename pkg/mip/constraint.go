package mip

import "fmt"

// Sense is the relational operator of a linear constraint.
type Sense int

const (
	LessEqual Sense = iota
	Equal
	GreaterEqual
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case Equal:
		return "=="
	case GreaterEqual:
		return ">="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Constraint is a relationship posted to a Model. The concrete types are
// LinearConstraint, IndicatorConstraint, AndConstraint and OrConstraint;
// engines switch on the concrete type when compiling the model.
type Constraint interface {
	// ConstrName returns the constraint's name (possibly auto-generated).
	ConstrName() string
	// String returns a human-readable rendering for diagnostics.
	String() string
}

// LinearConstraint enforces expr sense rhs.
type LinearConstraint struct {
	Name  string
	Expr  *LinExpr
	Sense Sense
	RHS   float64
}

func (c *LinearConstraint) ConstrName() string { return c.Name }

func (c *LinearConstraint) String() string {
	return fmt.Sprintf("%s: %s %s %g", c.Name, c.Expr, c.Sense, c.RHS)
}

// IndicatorConstraint enforces "if Bin == BinValue then Expr Sense RHS".
// Nothing is implied when the binary takes the other value.
type IndicatorConstraint struct {
	Name     string
	Bin      *Var
	BinValue int // 0 or 1
	Expr     *LinExpr
	Sense    Sense
	RHS      float64
}

func (c *IndicatorConstraint) ConstrName() string { return c.Name }

func (c *IndicatorConstraint) String() string {
	return fmt.Sprintf("%s: (%s==%d) -> %s %s %g", c.Name, c.Bin.Name(), c.BinValue, c.Expr, c.Sense, c.RHS)
}

// AndConstraint enforces Target = Operands[0] AND ... AND Operands[n-1]
// over binary variables.
type AndConstraint struct {
	Name     string
	Target   *Var
	Operands []*Var
}

func (c *AndConstraint) ConstrName() string { return c.Name }

func (c *AndConstraint) String() string {
	return fmt.Sprintf("%s: %s = AND(%s...)", c.Name, c.Target.Name(), c.Operands[0].Name())
}

// OrConstraint enforces Target = Operands[0] OR ... OR Operands[n-1]
// over binary variables.
type OrConstraint struct {
	Name     string
	Target   *Var
	Operands []*Var
}

func (c *OrConstraint) ConstrName() string { return c.Name }

func (c *OrConstraint) String() string {
	return fmt.Sprintf("%s: %s = OR(%s...)", c.Name, c.Target.Name(), c.Operands[0].Name())
}
