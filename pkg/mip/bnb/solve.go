// Package bnb implements the mip.Engine contract with a pure-Go
// branch-and-bound search over LP relaxations.
//
// The engine lowers the model once (big-M expansion of indicator rows,
// linear encodings of And/Or), then optimizes the model's priority levels
// in order. Each level runs a depth-first branch-and-bound: the node's LP
// relaxation is solved with gonum's simplex, fractional integer variables
// are branched on most-infeasible-first, and integer-feasible points update
// the incumbent and the solution pool. After a level finishes, its achieved
// value is fixed as a hard constraint so later levels cannot degrade it.
//
// Progress events are delivered synchronously at level start, on incumbent
// improvement, and periodically during search; a StopLevel action abandons
// only the current level, keeping its incumbent.
package bnb

import (
	"context"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/agorelick/CNalign/internal/parallel"
	"github.com/agorelick/CNalign/pkg/mip"
)

const (
	// intTol is the integrality tolerance: a relaxation value within
	// intTol of an integer is treated as integral.
	intTol = 1e-5
	// improveEps guards bound pruning and incumbent comparisons.
	improveEps = 1e-9
	// levelSlack is the tolerance used when fixing an achieved level
	// value before optimizing the next level.
	levelSlack = 1e-6
	// emitEvery controls how many nodes are expanded between periodic
	// progress events.
	emitEvery = 16
)

// Engine is the bundled lexicographic MILP engine. The zero value is not
// usable; create engines with New. An Engine is safe for sequential reuse;
// Stats reports on the most recent solve.
type Engine struct {
	mon *monitor
}

// New creates an engine.
func New() *Engine {
	return &Engine{mon: newMonitor()}
}

// Stats returns search statistics for the most recent Solve call.
func (e *Engine) Stats() SearchStats {
	return e.mon.snapshot()
}

type node struct {
	lb    []float64
	ub    []float64
	depth int
	// bound is the parent relaxation value, a valid upper bound on every
	// solution in this subtree. Root nodes carry +Inf.
	bound float64
}

type evalOutcome struct {
	nd  node
	res relaxResult
	err error
}

// Solve implements mip.Engine.
func (e *Engine) Solve(ctx context.Context, m *mip.Model, opts ...mip.SolveOption) (*mip.Result, error) {
	cfg := &mip.SolveConfig{}
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 1
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	levels := m.Levels()
	if len(levels) == 0 {
		return nil, mip.ErrNoObjective
	}
	comp, err := compile(m)
	if err != nil {
		return nil, err
	}

	e.mon = newMonitor()

	var wpool *parallel.WorkerPool
	batch := 1
	if cfg.Workers > 1 {
		wpool = parallel.NewWorkerPool(cfg.Workers)
		defer wpool.Shutdown()
		batch = cfg.Workers
	}

	levelCoefs := make([]map[int]float64, len(levels))
	for i, lv := range levels {
		levelCoefs[i] = lv.Expr.Coefficients()
	}

	extra := make([]linRow, 0, len(levels))
	var pool *incumbentPool
	var best []float64

	for li, lv := range levels {
		e.mon.level()
		coefs := levelCoefs[li]
		cost := make([]float64, comp.nVars)
		for id, w := range coefs {
			cost[id] = -w // engine minimizes; model sense is maximize
		}

		finalLevel := li == len(levels)-1
		capWanted := 1
		if finalLevel {
			capWanted = cfg.PoolSize
		}
		pool = newIncumbentPool(capWanted)
		hasInc := false
		incVal := math.Inf(-1)
		if best != nil {
			hasInc = true
			incVal = evalCoefs(coefs, best) + lv.Expr.Constant()
			pool.offer(best, incVal)
		}

		emit := makeEmitter(cfg.Progress, li, e.mon)
		emit(mip.ProgressEvent{Kind: mip.LevelStarted, Level: li})

		cutoffNow := func() float64 {
			if pool.cap == 1 {
				if hasInc {
					return incVal
				}
				return math.Inf(-1)
			}
			if pool.full() {
				return pool.worst()
			}
			return math.Inf(-1)
		}

		root := node{lb: cloneBounds(comp.lb), ub: cloneBounds(comp.ub), bound: math.Inf(1)}
		stack := []node{root}
		ineq := append(append([]linRow{}, comp.ineq...), extra...)
		stopped := false
		var sinceEmit int64

		for len(stack) > 0 && !stopped {
			select {
			case <-ctx.Done():
				if pool.empty() {
					return nil, ctx.Err()
				}
				return buildResult(pool, levels, levelCoefs), ctx.Err()
			default:
			}

			take := batch
			if take > len(stack) {
				take = len(stack)
			}
			popped := stack[len(stack)-take:]
			stack = stack[:len(stack)-take]

			// The parent bound dominates the subtree; nodes it already
			// rules out skip their LP solve entirely.
			nodes := make([]node, 0, len(popped))
			for _, nd := range popped {
				if nd.bound <= cutoffNow()+improveEps {
					e.mon.node(nd.depth)
					e.mon.pruned()
					continue
				}
				nodes = append(nodes, nd)
			}
			if len(nodes) == 0 {
				continue
			}
			outcomes := e.evaluate(ctx, wpool, cost, ineq, comp, nodes)

			for _, out := range outcomes {
				e.mon.node(out.nd.depth)
				sinceEmit++
				if out.err != nil {
					return nil, out.err
				}
				res := out.res
				if !res.feasible {
					e.mon.pruned()
					continue
				}
				if res.unbounded {
					// A model whose variables all carry finite bounds has
					// no unbounded relaxation; the simplex verdict is a
					// numerical failure at this node, not a property of
					// the model. Discard the node and keep searching.
					if comp.bounded {
						e.mon.pruned()
						log.WithFields(log.Fields{
							"level": li,
							"depth": out.nd.depth,
						}).Warn("bounded relaxation reported unbounded; discarding node")
						continue
					}
					if pool.empty() {
						return nil, mip.ErrUnbounded
					}
					return buildResult(pool, levels, levelCoefs), mip.ErrUnbounded
				}
				relaxVal := -res.obj // maximize view of the subtree bound

				if relaxVal <= cutoffNow()+improveEps {
					e.mon.pruned()
					continue
				}

				j, frac := mostFractional(res.x, comp.integral)
				if j < 0 || frac <= intTol {
					x := snap(res.x, comp.integral, out.nd.lb, out.nd.ub)
					val := evalCoefs(coefs, x) + lv.Expr.Constant()
					pool.offer(x, val)
					if !hasInc || val > incVal+improveEps {
						hasInc = true
						incVal = val
						e.mon.incumbent()
						if emit(mip.ProgressEvent{Kind: mip.Improved, Level: li, Incumbent: incVal, HasIncumbent: true}) == mip.StopLevel {
							stopped = true
							break
						}
					}
					continue
				}

				down := node{lb: cloneBounds(out.nd.lb), ub: cloneBounds(out.nd.ub), depth: out.nd.depth + 1, bound: relaxVal}
				down.ub[j] = math.Floor(res.x[j])
				up := node{lb: cloneBounds(out.nd.lb), ub: cloneBounds(out.nd.ub), depth: out.nd.depth + 1, bound: relaxVal}
				up.lb[j] = math.Ceil(res.x[j])
				// Explore the child nearest the relaxation value first
				// (the stack pops last-in).
				if res.x[j]-math.Floor(res.x[j]) < 0.5 {
					stack = append(stack, up, down)
				} else {
					stack = append(stack, down, up)
				}
			}

			if !stopped && sinceEmit >= emitEvery {
				sinceEmit = 0
				ev := mip.ProgressEvent{Kind: mip.Periodic, Level: li, HasIncumbent: hasInc}
				if hasInc {
					ev.Incumbent = incVal
				}
				if emit(ev) == mip.StopLevel {
					stopped = true
				}
			}
		}

		if stopped {
			e.mon.stoppedLevel()
			log.WithFields(log.Fields{"level": li, "incumbent": incVal}).Debug("priority level stopped early")
		}
		if !hasInc {
			// Later levels inherit a feasible incumbent from the level
			// before, so only the first level can land here.
			return nil, mip.ErrInfeasible
		}

		best = pool.best().x
		log.WithFields(log.Fields{
			"level":     li,
			"objective": incVal,
			"names":     lv.Names,
		}).Debug("priority level finished")

		if !finalLevel {
			// Hold this level's value: lv.Expr >= incVal - levelSlack.
			fix := linRow{
				coefs: negate(coefs),
				rhs:   -(incVal - lv.Expr.Constant() - levelSlack),
				name:  "fix_level",
			}
			extra = append(extra, fix)
		}
	}

	return buildResult(pool, levels, levelCoefs), nil
}

// evaluate solves the LP relaxations of a batch of nodes, in parallel when
// a worker pool is available.
func (e *Engine) evaluate(ctx context.Context, wpool *parallel.WorkerPool, cost []float64, ineq []linRow, comp *compiled, nodes []node) []evalOutcome {
	outcomes := make([]evalOutcome, len(nodes))
	if wpool == nil || len(nodes) == 1 {
		for i, nd := range nodes {
			e.mon.lpSolve()
			res, err := solveRelaxation(cost, ineq, comp.eq, nd.lb, nd.ub)
			outcomes[i] = evalOutcome{nd: nd, res: res, err: err}
		}
		return outcomes
	}

	done := make(chan int, len(nodes))
	for i, nd := range nodes {
		i, nd := i, nd
		e.mon.lpSolve()
		err := wpool.Submit(ctx, func() {
			res, err := solveRelaxation(cost, ineq, comp.eq, nd.lb, nd.ub)
			outcomes[i] = evalOutcome{nd: nd, res: res, err: err}
			done <- i
		})
		if err != nil {
			outcomes[i] = evalOutcome{nd: nd, err: err}
			done <- i
		}
	}
	for range nodes {
		<-done
	}
	return outcomes
}

// makeEmitter wraps the caller's progress handler with panic recovery and
// elapsed/node bookkeeping. A panicking handler logs and continues; a
// faulty progress read must not crash an otherwise healthy search.
func makeEmitter(f mip.ProgressFunc, level int, mon *monitor) func(mip.ProgressEvent) mip.Action {
	return func(ev mip.ProgressEvent) (act mip.Action) {
		if f == nil {
			return mip.Continue
		}
		s := mon.snapshot()
		ev.Nodes = s.NodesExplored
		ev.Elapsed = s.SearchTime
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{"level": level, "panic": r}).Warn("progress handler panicked; continuing search")
				act = mip.Continue
			}
		}()
		return f(ev)
	}
}

func buildResult(pool *incumbentPool, levels []mip.Level, levelCoefs []map[int]float64) *mip.Result {
	sols := make([]mip.Solution, 0, len(pool.entries))
	for _, e := range pool.entries {
		objs := make([]float64, len(levels))
		for i := range levels {
			objs[i] = evalCoefs(levelCoefs[i], e.x) + levels[i].Expr.Constant()
		}
		x := make([]float64, len(e.x))
		copy(x, e.x)
		sols = append(sols, mip.NewSolution(x, objs))
	}
	return &mip.Result{Solutions: sols}
}

func evalCoefs(coefs map[int]float64, x []float64) float64 {
	v := 0.0
	for id, c := range coefs {
		v += c * x[id]
	}
	return v
}

func cloneBounds(b []float64) []float64 {
	out := make([]float64, len(b))
	copy(out, b)
	return out
}
