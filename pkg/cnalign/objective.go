package cnalign

import (
	"github.com/agorelick/CNalign/pkg/mip"
)

// Objective level indexes and priorities. The clonality count runs at the
// higher priority; the error blend only breaks ties among solutions with
// the maximal count.
const (
	levelClonality = 0
	levelError     = 1

	priorityClonality = 2
	priorityError     = 1
)

// ComposeObjectives attaches the lexicographic objective to the problem's
// model:
//
//	level 0 (priority 2): maximize n_clonal
//	level 1 (priority 1): maximize -(1-w)*tcn_error - w*mcn_error
//
// The two error terms are registered as separate weighted objectives on
// the same index; the engine blends them into a single level expression.
// With w = 0 the MCN error drops out entirely, and symmetrically for
// w = 1.
func ComposeObjectives(p *Problem) {
	w := p.Config.MCNWeight
	m := p.Model

	m.AddObjective(mip.ExprOf(p.NClonal), levelClonality, priorityClonality, 1, "n_clonal")
	m.AddObjective(mip.NewExpr().Add(p.TCNError, -1), levelError, priorityError, 1-w, "tcn_error")
	m.AddObjective(mip.NewExpr().Add(p.MCNError, -1), levelError, priorityError, w, "mcn_error")
}
