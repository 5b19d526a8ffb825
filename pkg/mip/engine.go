package mip

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrInfeasible indicates the model admits no assignment satisfying all
// hard constraints. It is a terminal outcome distinct from a zero-quality
// solution: no solution pool is produced.
var ErrInfeasible = errors.New("model is infeasible")

// ErrUnbounded indicates an objective level is unbounded over the feasible
// region.
var ErrUnbounded = errors.New("model is unbounded")

// ErrNoObjective indicates Solve was called on a model without objectives.
var ErrNoObjective = errors.New("model has no objective")

// ProgressKind identifies the trigger point of a progress event.
type ProgressKind int

const (
	// LevelStarted is emitted when the engine begins optimizing a new
	// priority level.
	LevelStarted ProgressKind = iota
	// Improved is emitted when the incumbent objective value of the
	// current level improves.
	Improved
	// Periodic is emitted at regular intervals during search within a
	// level, whether or not the incumbent moved.
	Periodic
)

// ProgressEvent is a snapshot of search progress delivered to the
// registered ProgressFunc. Events are delivered synchronously on the
// engine's search path; handlers must be fast and non-blocking.
type ProgressEvent struct {
	Kind ProgressKind
	// Level is the zero-based priority level currently being optimized
	// (0 = highest priority).
	Level int
	// Incumbent is the best objective value found so far on this level;
	// only meaningful when HasIncumbent is true.
	Incumbent    float64
	HasIncumbent bool
	// Nodes is the number of search nodes explored on this level.
	Nodes int64
	// Elapsed is the wall time spent on this level so far.
	Elapsed time.Duration
}

// Action is the handler's instruction back to the engine.
type Action int

const (
	// Continue keeps searching.
	Continue Action = iota
	// StopLevel abandons the current priority level, keeping its
	// incumbent, and advances to the next level (or terminates the
	// search if this was the last level). It never aborts the whole run.
	StopLevel
)

// ProgressFunc receives progress events during search. A panic inside the
// handler must not crash the search; engines recover and treat the event
// as Continue.
type ProgressFunc func(ProgressEvent) Action

// Credentials identifies the caller to a licensed remote solver service.
// Engines that run in-process ignore it.
type Credentials struct {
	AccessID  string
	Secret    string
	LicenseID int
}

// SolveConfig collects per-solve options.
type SolveConfig struct {
	PoolSize    int
	Progress    ProgressFunc
	Workers     int
	Credentials *Credentials
}

// SolveOption configures a Solve call.
type SolveOption func(*SolveConfig)

// WithPoolSize bounds the number of ranked solutions retained. Values < 1
// select a pool of exactly one (the best solution).
func WithPoolSize(n int) SolveOption {
	return func(c *SolveConfig) { c.PoolSize = n }
}

// WithProgress registers a progress handler for level-start and periodic
// search events.
func WithProgress(f ProgressFunc) SolveOption {
	return func(c *SolveConfig) { c.Progress = f }
}

// WithWorkers sets the number of parallel workers used for node
// evaluation. Values <= 1 select sequential search.
func WithWorkers(n int) SolveOption {
	return func(c *SolveConfig) { c.Workers = n }
}

// WithCredentials passes license credentials to engines that need them.
func WithCredentials(cr *Credentials) SolveOption {
	return func(c *SolveConfig) { c.Credentials = cr }
}

// Solution is one feasible assignment from the solution pool.
type Solution struct {
	values     []float64
	objectives []float64
}

// NewSolution builds a solution from per-variable values (indexed by
// variable ID) and per-level objective values (highest priority first).
func NewSolution(values []float64, objectives []float64) Solution {
	return Solution{values: values, objectives: objectives}
}

// Value returns the variable's value in this solution.
func (s Solution) Value(v *Var) float64 {
	if v == nil || v.id >= len(s.values) {
		return math.NaN()
	}
	return s.values[v.id]
}

// ValueByID returns the value of the variable with the given ID.
func (s Solution) ValueByID(id int) float64 {
	if id < 0 || id >= len(s.values) {
		return math.NaN()
	}
	return s.values[id]
}

// ObjectiveValue returns the blended objective value of the given priority
// level (0 = highest priority) under this solution.
func (s Solution) ObjectiveValue(level int) float64 {
	if level < 0 || level >= len(s.objectives) {
		return math.NaN()
	}
	return s.objectives[level]
}

// Levels returns the number of objective levels recorded.
func (s Solution) Levels() int { return len(s.objectives) }

// Result is the outcome of a completed solve: a ranked pool of solutions,
// best first according to the engine's own ranking.
type Result struct {
	Solutions []Solution
}

// Best returns the top-ranked solution. Results returned from a successful
// Solve always contain at least one solution.
func (r *Result) Best() Solution { return r.Solutions[0] }

// Engine is the optimization engine contract. Implementations must honor
// the lexicographic level structure of the model: each priority level is
// optimized in turn and later levels must not degrade the values achieved
// by earlier ones. Solve returns ErrInfeasible when no assignment satisfies
// the hard constraints, and respects ctx cancellation by returning the best
// pool found so far together with ctx.Err().
type Engine interface {
	Solve(ctx context.Context, m *Model, opts ...SolveOption) (*Result, error)
}
