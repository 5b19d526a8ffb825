package bnb

import (
	"fmt"
	"math"

	"github.com/agorelick/CNalign/pkg/mip"
)

// linRow is one linear inequality or equality row in compiled form:
// sum(coefs[i] * x[i]) <= rhs (or == rhs for equality rows).
type linRow struct {
	coefs map[int]float64
	rhs   float64
	name  string
}

// compiled is the model lowered to matrix-ready form: variable bounds and
// integrality markers plus inequality and equality rows. Indicator
// constraints are expanded to big-M rows using the finite variable bounds;
// And/Or constraints use their standard linear encodings.
type compiled struct {
	nVars    int
	lb       []float64
	ub       []float64
	integral []bool
	ineq     []linRow
	eq       []linRow
	// bounded records that every variable has finite bounds, which makes
	// every relaxation of the model bounded too.
	bounded bool
}

func compile(m *mip.Model) (*compiled, error) {
	vars := m.Vars()
	c := &compiled{
		nVars:    len(vars),
		lb:       make([]float64, len(vars)),
		ub:       make([]float64, len(vars)),
		integral: make([]bool, len(vars)),
		bounded:  true,
	}
	for i, v := range vars {
		c.lb[i], c.ub[i] = v.Bounds()
		c.integral[i] = v.Kind() != mip.Continuous
		if math.IsInf(c.lb[i], 0) || math.IsInf(c.ub[i], 0) {
			c.bounded = false
		}
	}

	for _, constr := range m.Constraints() {
		switch ct := constr.(type) {
		case *mip.LinearConstraint:
			c.addLinear(ct.Name, ct.Expr, ct.Sense, ct.RHS)
		case *mip.IndicatorConstraint:
			if err := c.addIndicator(ct); err != nil {
				return nil, err
			}
		case *mip.AndConstraint:
			c.addAnd(ct)
		case *mip.OrConstraint:
			c.addOr(ct)
		default:
			return nil, fmt.Errorf("bnb: unsupported constraint type %T", constr)
		}
	}
	return c, nil
}

// addLinear lowers expr sense rhs into <= / == rows, folding the
// expression constant into the right-hand side.
func (c *compiled) addLinear(name string, expr *mip.LinExpr, sense mip.Sense, rhs float64) {
	coefs := expr.Coefficients()
	b := rhs - expr.Constant()
	switch sense {
	case mip.LessEqual:
		c.ineq = append(c.ineq, linRow{coefs: coefs, rhs: b, name: name})
	case mip.GreaterEqual:
		c.ineq = append(c.ineq, linRow{coefs: negate(coefs), rhs: -b, name: name})
	case mip.Equal:
		c.eq = append(c.eq, linRow{coefs: coefs, rhs: b, name: name})
	}
}

// addIndicator expands "(bin==v) -> expr sense rhs" into big-M rows. The
// big-M constant is the tightest bound implied by the variable bounds, so
// every variable reachable from an indicator must have finite bounds.
func (c *compiled) addIndicator(ct *mip.IndicatorConstraint) error {
	coefs := ct.Expr.Coefficients()
	b := ct.RHS - ct.Expr.Constant()
	binID := ct.Bin.ID()

	le := func() error {
		hi, err := c.rowMax(coefs, ct.ConstrName())
		if err != nil {
			return err
		}
		m := math.Max(hi-b, 0)
		row := cloneCoefs(coefs)
		if ct.BinValue == 1 {
			// expr + M*bin <= b + M
			row[binID] += m
			c.ineq = append(c.ineq, linRow{coefs: row, rhs: b + m, name: ct.ConstrName()})
		} else {
			// expr - M*bin <= b
			row[binID] -= m
			c.ineq = append(c.ineq, linRow{coefs: row, rhs: b, name: ct.ConstrName()})
		}
		return nil
	}
	ge := func() error {
		lo, err := c.rowMin(coefs, ct.ConstrName())
		if err != nil {
			return err
		}
		m := math.Max(b-lo, 0)
		row := negate(coefs)
		if ct.BinValue == 1 {
			// -expr + M*bin <= -b + M
			row[binID] += m
			c.ineq = append(c.ineq, linRow{coefs: row, rhs: -b + m, name: ct.ConstrName()})
		} else {
			// -expr - M*bin <= -b
			row[binID] -= m
			c.ineq = append(c.ineq, linRow{coefs: row, rhs: -b, name: ct.ConstrName()})
		}
		return nil
	}

	switch ct.Sense {
	case mip.LessEqual:
		return le()
	case mip.GreaterEqual:
		return ge()
	case mip.Equal:
		if err := le(); err != nil {
			return err
		}
		return ge()
	}
	return nil
}

// addAnd lowers target = AND(ops): target <= op_i for each i, and
// sum(ops) - target <= k-1.
func (c *compiled) addAnd(ct *mip.AndConstraint) {
	t := ct.Target.ID()
	sum := map[int]float64{t: -1}
	for _, op := range ct.Operands {
		c.ineq = append(c.ineq, linRow{
			coefs: map[int]float64{t: 1, op.ID(): -1},
			rhs:   0,
			name:  ct.ConstrName(),
		})
		sum[op.ID()] += 1
	}
	c.ineq = append(c.ineq, linRow{coefs: sum, rhs: float64(len(ct.Operands) - 1), name: ct.ConstrName()})
}

// addOr lowers target = OR(ops): op_i <= target for each i, and
// target <= sum(ops).
func (c *compiled) addOr(ct *mip.OrConstraint) {
	t := ct.Target.ID()
	sum := map[int]float64{t: 1}
	for _, op := range ct.Operands {
		c.ineq = append(c.ineq, linRow{
			coefs: map[int]float64{op.ID(): 1, t: -1},
			rhs:   0,
			name:  ct.ConstrName(),
		})
		sum[op.ID()] -= 1
	}
	c.ineq = append(c.ineq, linRow{coefs: sum, rhs: 0, name: ct.ConstrName()})
}

// rowMax returns the supremum of coefs·x over the variable bounds.
func (c *compiled) rowMax(coefs map[int]float64, name string) (float64, error) {
	v := 0.0
	for id, coef := range coefs {
		w := coef * c.ub[id]
		if coef < 0 {
			w = coef * c.lb[id]
		}
		if math.IsInf(w, 0) {
			return 0, fmt.Errorf("bnb: indicator %q needs finite bounds on variable %d", name, id)
		}
		v += w
	}
	return v, nil
}

// rowMin returns the infimum of coefs·x over the variable bounds.
func (c *compiled) rowMin(coefs map[int]float64, name string) (float64, error) {
	v := 0.0
	for id, coef := range coefs {
		w := coef * c.lb[id]
		if coef < 0 {
			w = coef * c.ub[id]
		}
		if math.IsInf(w, 0) {
			return 0, fmt.Errorf("bnb: indicator %q needs finite bounds on variable %d", name, id)
		}
		v += w
	}
	return v, nil
}

func negate(coefs map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(coefs))
	for id, c := range coefs {
		out[id] = -c
	}
	return out
}

func cloneCoefs(coefs map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(coefs))
	for id, c := range coefs {
		out[id] = c
	}
	return out
}
