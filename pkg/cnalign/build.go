package cnalign

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/agorelick/CNalign/pkg/mip"
)

// SampleVars are the per-sample decision variables.
type SampleVars struct {
	Ploidy       *mip.Var // pl[t]
	InvPurity    *mip.Var // z[t] = 1/purity
	HomdelMb     *mip.Var // total homozygously deleted Mb, capped
	CNASegments  *mip.Var // count of CNA-bearing segments, bounded below
}

// SideMetrics are the per-cell integrality and consistency metrics for one
// side (TCN or MCN) of the copy-number call.
type SideMetrics struct {
	Value            *mip.Var // the continuous copy number
	Int              *mip.Var // nearest integer, bound within ±0.5
	IntErr           *mip.Var // |Value - Int|
	Spread           *mip.Var // |Value - segment average|
	CloseToInt       *mip.Var
	CloseToAvg       *mip.Var
	Match            *mip.Var // CloseToInt AND CloseToAvg
	MatchAndAvgAtInt *mip.Var // Match AND segment's AvgCloseToInt
	Gain             *mip.Var
	Loss             *mip.Var
	CNA              *mip.Var // Gain OR Loss
}

// SideAverages are the per-segment cross-sample average metrics for one
// side.
type SideAverages struct {
	Avg           *mip.Var // mean of Value over samples
	AvgInt        *mip.Var // nearest integer to the average
	AvgIntErr     *mip.Var
	AvgCloseToInt *mip.Var
}

// SegmentVars are the per-segment decision variables.
type SegmentVars struct {
	AllMatch *mip.Var // segment counts as clonal
	TCN      SideAverages
	MCN      SideAverages
}

// CellVars are the per-(sample,segment) decision variables.
type CellVars struct {
	N1             *mip.Var // allele-1 copies
	TCN            SideMetrics
	MCN            SideMetrics
	MatchBoth      *mip.Var // TCN and MCN both match with averages at integers
	MatchBothLarge *mip.Var // MatchBoth AND LargeEnough
	Eligible       *mip.Var // MatchBothLarge AND IsCNA; the unit counted toward clonality
	IsCNA          *mip.Var
	IsHomdel       *mip.Var
	LargeEnough    *mip.Var
	// TCNErrTerm/MCNErrTerm mask the error contributions to clonal
	// segments; nil unless Obj2ClonalOnly is set.
	TCNErrTerm *mip.Var
	MCNErrTerm *mip.Var
}

// Problem is the fully built optimization problem: the solver model plus a
// typed repository mapping every variable to its owning entity, so results
// are read back structurally instead of by name-prefix matching.
type Problem struct {
	Model  *mip.Model
	Table  *ObservationTable
	Config Config

	Samples  map[string]*SampleVars
	Segments map[string]*SegmentVars
	Cells    map[CellKey]*CellVars

	AvgPloidy *mip.Var
	NClonal   *mip.Var
	TCNError  *mip.Var
	MCNError  *mip.Var
}

// BuildProblem declares all decision variables and constraints for the
// measurement table under the given configuration. The returned Problem is
// immutable: hand its Model to an engine and read values back through the
// repository fields.
func BuildProblem(table *ObservationTable, cfg Config) (*Problem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := mip.NewModel()
	samples := table.Samples()
	segments := table.Segments()
	n := float64(len(samples))
	maxCN := cfg.MaxCopies

	p := &Problem{
		Model:    m,
		Table:    table,
		Config:   cfg,
		Samples:  make(map[string]*SampleVars, len(samples)),
		Segments: make(map[string]*SegmentVars, len(segments)),
		Cells:    make(map[CellKey]*CellVars, len(samples)*len(segments)),
	}

	for _, t := range samples {
		p.Samples[t] = &SampleVars{
			Ploidy:      m.Continuous(fmt.Sprintf("pl[%s]", t), cfg.MinPloidy, cfg.MaxPloidy),
			InvPurity:   m.Continuous(fmt.Sprintf("z[%s]", t), 1/cfg.MaxPurity, 1/cfg.MinPurity),
			HomdelMb:    m.Continuous(fmt.Sprintf("homdel_mb[%s]", t), 0, cfg.MaxHomdelMb),
			CNASegments: m.Integer(fmt.Sprintf("n_cna_segments[%s]", t), float64(cfg.MinCNASegmentsPerSample), float64(len(segments))),
		}
	}

	p.AvgPloidy = m.Continuous("avg_ploidy", cfg.MinPloidy, cfg.MaxPloidy)
	avg := mip.ExprOf(p.AvgPloidy)
	for _, t := range samples {
		avg.Add(p.Samples[t].Ploidy, -1/n)
	}
	m.AddNamedConstr("c_pl_avg", avg, mip.Equal, 0)

	p.NClonal = m.Integer("n_clonal", 0, float64(len(segments)))

	nCells := float64(len(samples) * len(segments))
	p.TCNError = m.Continuous("tcn_error_clonal", 0, nCells)
	p.MCNError = m.Continuous("mcn_error_clonal", 0, nCells)

	for _, s := range segments {
		p.Segments[s] = &SegmentVars{
			AllMatch: m.Binary(fmt.Sprintf("allmatch[%s]", s)),
			TCN:      buildAverages(m, "tcn", s, maxCN),
			MCN:      buildAverages(m, "mcn", s, maxCN),
		}
	}

	for _, t := range samples {
		for _, s := range segments {
			key := CellKey{Sample: t, Segment: s}
			p.Cells[key] = buildCell(m, p, key, cfg, maxCN)
		}
	}

	// Segment averages and the avg-at-integer predicates.
	for _, s := range segments {
		sv := p.Segments[s]
		avgTCN := mip.ExprOf(sv.TCN.Avg)
		avgMCN := mip.ExprOf(sv.MCN.Avg)
		for _, t := range samples {
			cell := p.Cells[CellKey{Sample: t, Segment: s}]
			avgTCN.Add(cell.TCN.Value, -1/n)
			avgMCN.Add(cell.MCN.Value, -1/n)
		}
		m.AddNamedConstr(fmt.Sprintf("c_tcn_avg[%s]", s), avgTCN, mip.Equal, 0)
		m.AddNamedConstr(fmt.Sprintf("c_mcn_avg[%s]", s), avgMCN, mip.Equal, 0)
		addRounding(m, "tcn_avg", s, sv.TCN.Avg, sv.TCN.AvgInt, sv.TCN.AvgIntErr)
		m.AddIndicator(fmt.Sprintf("c_tcn_avg_close[%s]", s), sv.TCN.AvgCloseToInt, 1, mip.ExprOf(sv.TCN.AvgIntErr), mip.LessEqual, cfg.DeltaTCNAvgToInt)
		addRounding(m, "mcn_avg", s, sv.MCN.Avg, sv.MCN.AvgInt, sv.MCN.AvgIntErr)
		m.AddIndicator(fmt.Sprintf("c_mcn_avg_close[%s]", s), sv.MCN.AvgCloseToInt, 1, mip.ExprOf(sv.MCN.AvgIntErr), mip.LessEqual, cfg.DeltaMCNAvgToInt)

		// Segment is clonal when enough samples carry an eligible,
		// matching CNA: count >= rho * n_samples.
		count := mip.NewExpr()
		for _, t := range samples {
			count.Add(p.Cells[CellKey{Sample: t, Segment: s}].Eligible, 1)
		}
		m.AddIndicator(fmt.Sprintf("c_allmatch[%s]", s), sv.AllMatch, 1, count, mip.GreaterEqual, cfg.Rho*n)
	}

	// Per-sample totals: homozygous-deletion megabases and CNA segments.
	for _, t := range samples {
		sv := p.Samples[t]
		homdel := mip.ExprOf(sv.HomdelMb)
		cna := mip.ExprOf(sv.CNASegments)
		for _, s := range segments {
			cell := p.Cells[CellKey{Sample: t, Segment: s}]
			homdel.Add(cell.IsHomdel, -table.Cell(t, s).Mb)
			cna.Add(cell.IsCNA, -1)
		}
		m.AddNamedConstr(fmt.Sprintf("c_homdel_mb[%s]", t), homdel, mip.Equal, 0)
		m.AddNamedConstr(fmt.Sprintf("c_n_cna[%s]", t), cna, mip.Equal, 0)
	}

	// n_clonal counts clonal segments.
	clonal := mip.ExprOf(p.NClonal)
	for _, s := range segments {
		clonal.Add(p.Segments[s].AllMatch, -1)
	}
	m.AddNamedConstr("c_n_clonal", clonal, mip.Equal, 0)

	buildErrorAccumulators(m, p, cfg)

	if err := m.Validate(); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"samples":     len(samples),
		"segments":    len(segments),
		"variables":   m.VarCount(),
		"constraints": m.ConstraintCount(),
	}).Debug("copy-number alignment model built")
	return p, nil
}

func buildAverages(m *mip.Model, side, s string, maxCN float64) SideAverages {
	return SideAverages{
		Avg:           m.Continuous(fmt.Sprintf("%s_avg[%s]", side, s), 0, maxCN),
		AvgInt:        m.Integer(fmt.Sprintf("%s_avg_int[%s]", side, s), 0, maxCN),
		AvgIntErr:     m.Continuous(fmt.Sprintf("%s_avg_int_err[%s]", side, s), 0, 1),
		AvgCloseToInt: m.Binary(fmt.Sprintf("%s_avg_close_to_int[%s]", side, s)),
	}
}

func buildSide(m *mip.Model, side, t, s string, maxCN float64) SideMetrics {
	name := func(stem string) string { return fmt.Sprintf("%s%s[%s,%s]", side, stem, t, s) }
	return SideMetrics{
		Value:            m.Continuous(name(""), 0, maxCN),
		Int:              m.Integer(name("_int"), 0, maxCN),
		IntErr:           m.Continuous(name("_int_err"), 0, 1),
		Spread:           m.Continuous(name("_spread"), 0, maxCN),
		CloseToInt:       m.Binary(name("_close_to_int")),
		CloseToAvg:       m.Binary(name("_close_to_avg")),
		Match:            m.Binary(name("_match")),
		MatchAndAvgAtInt: m.Binary(name("_match_and_avg_at_int")),
		Gain:             m.Binary(name("_gain")),
		Loss:             m.Binary(name("_loss")),
		CNA:              m.Binary(name("_cna")),
	}
}

func buildCell(m *mip.Model, p *Problem, key CellKey, cfg Config, maxCN float64) *CellVars {
	t, s := key.Sample, key.Segment
	obs := p.Table.Cell(t, s)
	rel := CopyNumberRelation(obs)
	sample := p.Samples[t]
	seg := p.Segments[s]

	cell := &CellVars{
		N1:             m.Continuous(fmt.Sprintf("n1[%s,%s]", t, s), 0, maxCN),
		TCN:            buildSide(m, "tcn", t, s, maxCN),
		MCN:            buildSide(m, "mcn", t, s, maxCN),
		MatchBoth:      m.Binary(fmt.Sprintf("match_both[%s,%s]", t, s)),
		MatchBothLarge: m.Binary(fmt.Sprintf("match_both_and_large_enough[%s,%s]", t, s)),
		Eligible:       m.Binary(fmt.Sprintf("match_both_and_large_enough_and_cna[%s,%s]", t, s)),
		IsCNA:          m.Binary(fmt.Sprintf("is_cna[%s,%s]", t, s)),
		IsHomdel:       m.Binary(fmt.Sprintf("is_homdel[%s,%s]", t, s)),
		LargeEnough:    m.Binary(fmt.Sprintf("large_enough[%s,%s]", t, s)),
	}

	// Segment length is data, so the large-enough flag is fixed here
	// rather than left to the solver.
	if obs.Mb >= cfg.MinAlignedSegMb {
		m.SetBounds(cell.LargeEnough, 1, 1)
	} else {
		m.SetBounds(cell.LargeEnough, 0, 0)
	}

	// The signal relation, posted exactly: n1 and mcn are linear in the
	// sample's ploidy and inverse purity.
	addRelation(m, fmt.Sprintf("c_n1[%s,%s]", t, s), cell.N1, rel.N1, sample)
	addRelation(m, fmt.Sprintf("c_mcn[%s,%s]", t, s), cell.MCN.Value, rel.MCN, sample)
	tcnSum := mip.ExprOf(cell.TCN.Value).Add(cell.N1, -1).Add(cell.MCN.Value, -1)
	m.AddNamedConstr(fmt.Sprintf("c_tcn[%s,%s]", t, s), tcnSum, mip.Equal, 0)

	addSideConstraints(m, t, s, "tcn", cell.TCN, seg.TCN, cfg.DeltaTCNToInt, cfg.DeltaTCNToAvg, rel.TCNWildtype)
	addSideConstraints(m, t, s, "mcn", cell.MCN, seg.MCN, cfg.DeltaMCNToInt, cfg.DeltaMCNToAvg, rel.MCNWildtype)

	m.AddAnd(fmt.Sprintf("c_match_both[%s,%s]", t, s), cell.MatchBoth, cell.TCN.MatchAndAvgAtInt, cell.MCN.MatchAndAvgAtInt)
	m.AddOr(fmt.Sprintf("c_is_cna[%s,%s]", t, s), cell.IsCNA, cell.TCN.CNA, cell.MCN.CNA)
	m.AddIndicator(fmt.Sprintf("c_is_homdel[%s,%s]", t, s), cell.IsHomdel, 1, mip.ExprOf(cell.TCN.Value), mip.LessEqual, 0.5)
	m.AddAnd(fmt.Sprintf("c_match_large[%s,%s]", t, s), cell.MatchBothLarge, cell.MatchBoth, cell.LargeEnough)
	m.AddAnd(fmt.Sprintf("c_eligible[%s,%s]", t, s), cell.Eligible, cell.MatchBothLarge, cell.IsCNA)

	return cell
}

// addRelation posts v == form(pl, z).
func addRelation(m *mip.Model, name string, v *mip.Var, form LinearForm, sample *SampleVars) {
	expr := mip.ExprOf(v).
		Add(sample.Ploidy, -form.Ploidy).
		Add(sample.InvPurity, -form.InvPurity)
	m.AddNamedConstr(name, expr, mip.Equal, form.Const)
}

// addRounding posts the nearest-integer relation: the integer variable is
// bound within ±0.5 of the value (symmetric, so ties may round either
// way), and the error variable dominates the absolute deviation.
func addRounding(m *mip.Model, stem, id string, value, intVar, errVar *mip.Var) {
	m.AddNamedConstr(fmt.Sprintf("c_%s_int_ub[%s]", stem, id),
		mip.ExprOf(intVar).Add(value, -1), mip.LessEqual, 0.5)
	m.AddNamedConstr(fmt.Sprintf("c_%s_int_lb[%s]", stem, id),
		mip.ExprOf(intVar).Add(value, -1), mip.GreaterEqual, -0.5)
	m.AddNamedConstr(fmt.Sprintf("c_%s_err_pos[%s]", stem, id),
		mip.ExprOf(errVar).Add(intVar, -1).Add(value, 1), mip.GreaterEqual, 0)
	m.AddNamedConstr(fmt.Sprintf("c_%s_err_neg[%s]", stem, id),
		mip.ExprOf(errVar).Add(intVar, 1).Add(value, -1), mip.GreaterEqual, 0)
}

func addSideConstraints(m *mip.Model, t, s, side string, sm SideMetrics, sa SideAverages, deltaInt, deltaAvg, wildtype float64) {
	id := fmt.Sprintf("%s,%s", t, s)

	// Closeness to the nearest integer.
	addRounding(m, side, id, sm.Value, sm.Int, sm.IntErr)
	m.AddIndicator(fmt.Sprintf("c_%s_close_to_int[%s]", side, id),
		sm.CloseToInt, 1, mip.ExprOf(sm.IntErr), mip.LessEqual, deltaInt)

	// Closeness to the cross-sample average (spread).
	m.AddNamedConstr(fmt.Sprintf("c_%s_spread_pos[%s]", side, id),
		mip.ExprOf(sm.Spread).Add(sa.Avg, -1).Add(sm.Value, 1), mip.GreaterEqual, 0)
	m.AddNamedConstr(fmt.Sprintf("c_%s_spread_neg[%s]", side, id),
		mip.ExprOf(sm.Spread).Add(sa.Avg, 1).Add(sm.Value, -1), mip.GreaterEqual, 0)
	m.AddIndicator(fmt.Sprintf("c_%s_close_to_avg[%s]", side, id),
		sm.CloseToAvg, 1, mip.ExprOf(sm.Spread), mip.LessEqual, deltaAvg)

	// Match when close to integer, consistent across samples, and the
	// shared average itself sits at an integer.
	m.AddAnd(fmt.Sprintf("c_%s_match[%s]", side, id), sm.Match, sm.CloseToInt, sm.CloseToAvg)
	m.AddAnd(fmt.Sprintf("c_%s_match_avg[%s]", side, id), sm.MatchAndAvgAtInt, sm.Match, sa.AvgCloseToInt)

	// Gain/loss relative to the wild-type reference copies.
	m.AddIndicator(fmt.Sprintf("c_%s_gain[%s]", side, id),
		sm.Gain, 1, mip.ExprOf(sm.Int), mip.GreaterEqual, wildtype+1)
	m.AddIndicator(fmt.Sprintf("c_%s_loss[%s]", side, id),
		sm.Loss, 1, mip.ExprOf(sm.Int), mip.LessEqual, wildtype-1)
	m.AddOr(fmt.Sprintf("c_%s_cna[%s]", side, id), sm.CNA, sm.Gain, sm.Loss)
}

// buildErrorAccumulators defines the two scalar error totals, either over
// every cell or masked to cells of clonal segments. Cells are visited in
// table order so the emitted rows are identical run to run.
func buildErrorAccumulators(m *mip.Model, p *Problem, cfg Config) {
	tcnTotal := mip.ExprOf(p.TCNError)
	mcnTotal := mip.ExprOf(p.MCNError)

	for _, t := range p.Table.Samples() {
		for _, s := range p.Table.Segments() {
			cell := p.Cells[CellKey{Sample: t, Segment: s}]
			if !cfg.Obj2ClonalOnly {
				tcnTotal.Add(cell.TCN.IntErr, -1)
				mcnTotal.Add(cell.MCN.IntErr, -1)
				continue
			}
			// Clonal-only: the cell contributes err * allmatch,
			// linearized with the standard product-of-bounded-and-binary
			// rows. The error is at most 0.5 (the integer variable is
			// bound within ±0.5), so the unit big-M is valid.
			allmatch := p.Segments[s].AllMatch
			cell.TCNErrTerm = maskedTerm(m, fmt.Sprintf("tcn_int_err_term[%s,%s]", t, s), cell.TCN.IntErr, allmatch)
			cell.MCNErrTerm = maskedTerm(m, fmt.Sprintf("mcn_int_err_term[%s,%s]", t, s), cell.MCN.IntErr, allmatch)
			tcnTotal.Add(cell.TCNErrTerm, -1)
			mcnTotal.Add(cell.MCNErrTerm, -1)
		}
	}
	m.AddNamedConstr("c_tcn_error", tcnTotal, mip.Equal, 0)
	m.AddNamedConstr("c_mcn_error", mcnTotal, mip.Equal, 0)
}

// maskedTerm creates term = err when mask is 1 and 0 otherwise:
// term <= err, term <= mask, term >= err - (1-mask), term >= 0 (bound).
func maskedTerm(m *mip.Model, name string, errVar, mask *mip.Var) *mip.Var {
	term := m.Continuous(name, 0, 1)
	m.AddConstr(mip.ExprOf(term).Add(errVar, -1), mip.LessEqual, 0)
	m.AddConstr(mip.ExprOf(term).Add(mask, -1), mip.LessEqual, 0)
	m.AddConstr(mip.ExprOf(term).Add(errVar, -1).Add(mask, -1), mip.GreaterEqual, -1)
	return term
}
