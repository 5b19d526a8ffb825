// Package mip provides a solver-agnostic modeling layer for mixed-integer
// programs with indicator and logical constraints and lexicographic
// multi-objective structure.
//
// A Model is built incrementally: variables are created through factory
// methods, constraints and objectives are posted, and the finished model is
// handed to an Engine. Models are safe for concurrent reads during solving
// but must be constructed sequentially; engines treat a model as immutable.
//
// The objective structure follows the blend/priority convention: objectives
// sharing an Index are blended by weighted sum into one priority level;
// levels are optimized in strictly decreasing Priority order, each later
// level constrained not to degrade the levels before it. The model sense is
// always maximization; minimize by negating the expression.
package mip

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Objective is one weighted component of the multi-objective structure.
type Objective struct {
	Expr     *LinExpr
	Index    int
	Priority int
	Weight   float64
	Name     string
}

// Level is one lexicographic priority level: the weighted blend of all
// objectives sharing an index.
type Level struct {
	Index    int
	Priority int
	Expr     *LinExpr
	Names    []string
}

// Model owns all declared variables, constraints and objectives.
type Model struct {
	mu          sync.RWMutex
	vars        []*Var
	constraints []Constraint
	objectives  []Objective
	autoName    int
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{}
}

// Continuous creates a continuous variable with the given bounds.
func (m *Model) Continuous(name string, lb, ub float64) *Var {
	return m.addVar(name, Continuous, lb, ub)
}

// Integer creates an integer variable with the given bounds.
func (m *Model) Integer(name string, lb, ub float64) *Var {
	return m.addVar(name, Integer, lb, ub)
}

// Binary creates a binary variable.
func (m *Model) Binary(name string) *Var {
	return m.addVar(name, Binary, 0, 1)
}

func (m *Model) addVar(name string, kind VarKind, lb, ub float64) *Var {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := &Var{id: len(m.vars), name: name, kind: kind, lb: lb, ub: ub}
	m.vars = append(m.vars, v)
	return v
}

// SetBounds tightens a variable's bounds during model construction.
func (m *Model) SetBounds(v *Var, lb, ub float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.lb, v.ub = lb, ub
}

// AddConstr posts expr sense rhs under an auto-generated name.
func (m *Model) AddConstr(expr *LinExpr, sense Sense, rhs float64) {
	m.AddNamedConstr(m.nextName(), expr, sense, rhs)
}

// AddNamedConstr posts expr sense rhs under the given name.
func (m *Model) AddNamedConstr(name string, expr *LinExpr, sense Sense, rhs float64) {
	m.addConstraint(&LinearConstraint{Name: name, Expr: expr, Sense: sense, RHS: rhs})
}

// AddIndicator posts "if bin == binValue then expr sense rhs".
func (m *Model) AddIndicator(name string, bin *Var, binValue int, expr *LinExpr, sense Sense, rhs float64) {
	if name == "" {
		name = m.nextName()
	}
	m.addConstraint(&IndicatorConstraint{Name: name, Bin: bin, BinValue: binValue, Expr: expr, Sense: sense, RHS: rhs})
}

// AddAnd posts target = AND(operands...).
func (m *Model) AddAnd(name string, target *Var, operands ...*Var) {
	if name == "" {
		name = m.nextName()
	}
	m.addConstraint(&AndConstraint{Name: name, Target: target, Operands: operands})
}

// AddOr posts target = OR(operands...).
func (m *Model) AddOr(name string, target *Var, operands ...*Var) {
	if name == "" {
		name = m.nextName()
	}
	m.addConstraint(&OrConstraint{Name: name, Target: target, Operands: operands})
}

func (m *Model) addConstraint(c Constraint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = append(m.constraints, c)
}

func (m *Model) nextName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoName++
	return fmt.Sprintf("c%d", m.autoName)
}

// AddObjective registers one weighted objective component. Objectives with
// the same index must share a priority; they are blended by weight.
func (m *Model) AddObjective(expr *LinExpr, index, priority int, weight float64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objectives = append(m.objectives, Objective{Expr: expr, Index: index, Priority: priority, Weight: weight, Name: name})
}

// Vars returns all variables in creation order.
func (m *Model) Vars() []*Var {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vars
}

// VarCount returns the number of declared variables.
func (m *Model) VarCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vars)
}

// Constraints returns all posted constraints.
func (m *Model) Constraints() []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.constraints
}

// ConstraintCount returns the number of posted constraints.
func (m *Model) ConstraintCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.constraints)
}

// Objectives returns the registered objective components.
func (m *Model) Objectives() []Objective {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objectives
}

// Levels groups objectives by index into blended priority levels, ordered
// by decreasing priority (the order engines must optimize them in).
func (m *Model) Levels() []Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byIndex := make(map[int]*Level)
	order := make([]int, 0)
	for _, o := range m.objectives {
		lv, ok := byIndex[o.Index]
		if !ok {
			lv = &Level{Index: o.Index, Priority: o.Priority, Expr: NewExpr()}
			byIndex[o.Index] = lv
			order = append(order, o.Index)
		}
		lv.Expr.AddExpr(o.Expr, o.Weight)
		lv.Names = append(lv.Names, o.Name)
	}
	levels := make([]Level, 0, len(byIndex))
	for _, idx := range order {
		levels = append(levels, *byIndex[idx])
	}
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Priority > levels[j].Priority })
	return levels
}

// Validate checks the model for structural errors: inverted bounds,
// non-finite bounds on integer variables, non-binary operands in logical
// constraints, and objective groups with conflicting priorities.
func (m *Model) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.vars {
		if v.lb > v.ub {
			return fmt.Errorf("variable %q has inverted bounds [%g,%g]", v.name, v.lb, v.ub)
		}
		if math.IsNaN(v.lb) || math.IsNaN(v.ub) {
			return fmt.Errorf("variable %q has NaN bound", v.name)
		}
	}
	for _, c := range m.constraints {
		switch ct := c.(type) {
		case *IndicatorConstraint:
			if ct.Bin.kind != Binary {
				return fmt.Errorf("indicator %q: %q is not binary", ct.Name, ct.Bin.name)
			}
			if ct.BinValue != 0 && ct.BinValue != 1 {
				return fmt.Errorf("indicator %q: trigger value %d is not 0/1", ct.Name, ct.BinValue)
			}
		case *AndConstraint:
			if err := checkLogical(ct.Name, ct.Target, ct.Operands); err != nil {
				return err
			}
		case *OrConstraint:
			if err := checkLogical(ct.Name, ct.Target, ct.Operands); err != nil {
				return err
			}
		}
	}
	prioByIndex := make(map[int]int)
	for _, o := range m.objectives {
		if p, ok := prioByIndex[o.Index]; ok && p != o.Priority {
			return fmt.Errorf("objective %q: index %d has conflicting priorities %d and %d", o.Name, o.Index, p, o.Priority)
		}
		prioByIndex[o.Index] = o.Priority
	}
	return nil
}

func checkLogical(name string, target *Var, operands []*Var) error {
	if target.kind != Binary {
		return fmt.Errorf("logical constraint %q: target %q is not binary", name, target.name)
	}
	if len(operands) == 0 {
		return fmt.Errorf("logical constraint %q: no operands", name)
	}
	for _, op := range operands {
		if op.kind != Binary {
			return fmt.Errorf("logical constraint %q: operand %q is not binary", name, op.name)
		}
	}
	return nil
}

func (m *Model) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("Model{vars: %d, constraints: %d, objectives: %d}", len(m.vars), len(m.constraints), len(m.objectives))
}
