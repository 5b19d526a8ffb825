package cnalign

import (
	"math"

	"github.com/pkg/errors"
)

// SideCall is the deterministic per-cell call for one side (TCN or MCN) at
// fixed ploidy and purity.
type SideCall struct {
	Value      float64
	Int        float64
	IntErr     float64
	Spread     float64
	CloseToInt bool
	CloseToAvg bool
	Gain       bool
	Loss       bool
}

// Match reports closeness to integer and to the cross-sample average.
func (s SideCall) Match() bool { return s.CloseToInt && s.CloseToAvg }

// CNA reports a gain or loss relative to wild type.
func (s SideCall) CNA() bool { return s.Gain || s.Loss }

// CellCall is the full deterministic call for one cell.
type CellCall struct {
	N1          float64
	TCN         SideCall
	MCN         SideCall
	LargeEnough bool
	IsCNA       bool
	IsHomdel    bool
	Eligible    bool
}

// SideAverage is the per-segment cross-sample summary for one side.
type SideAverage struct {
	Avg        float64
	AvgInt     float64
	AvgIntErr  float64
	CloseToInt bool
}

// Evaluation is the outcome of calling every cell at fixed per-sample
// latents: the quantities the optimizer's variables would take when ploidy
// and purity are pinned and every predicate is set to the maximal
// assignment consistent with its defining constraint.
type Evaluation struct {
	Cells       map[CellKey]CellCall
	TCNAverages map[string]SideAverage
	MCNAverages map[string]SideAverage
	AllMatch    map[string]bool
	NClonal     int
	TCNError    float64
	MCNError    float64
	HomdelMb    map[string]float64
	CNASegments map[string]int
	AvgPloidy   float64
}

// Evaluate computes the deterministic calls for the whole table at the
// given per-sample ploidies and purities. Error totals follow the
// configuration's clonal-only masking. The latents must cover every sample
// and respect the configured bounds.
func Evaluate(table *ObservationTable, cfg Config, ploidy, purity map[string]float64) (*Evaluation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	samples := table.Samples()
	segments := table.Segments()
	for _, sm := range samples {
		pl, ok := ploidy[sm]
		if !ok {
			return nil, errors.Errorf("no ploidy given for sample %q", sm)
		}
		if pl < cfg.MinPloidy || pl > cfg.MaxPloidy {
			return nil, errors.Errorf("sample %q: ploidy %g outside [%g,%g]", sm, pl, cfg.MinPloidy, cfg.MaxPloidy)
		}
		pu, ok := purity[sm]
		if !ok {
			return nil, errors.Errorf("no purity given for sample %q", sm)
		}
		if pu < cfg.MinPurity || pu > cfg.MaxPurity {
			return nil, errors.Errorf("sample %q: purity %g outside [%g,%g]", sm, pu, cfg.MinPurity, cfg.MaxPurity)
		}
	}

	ev := &Evaluation{
		Cells:       map[CellKey]CellCall{},
		TCNAverages: map[string]SideAverage{},
		MCNAverages: map[string]SideAverage{},
		AllMatch:    map[string]bool{},
		HomdelMb:    map[string]float64{},
		CNASegments: map[string]int{},
	}
	n := float64(len(samples))
	for _, sm := range samples {
		ev.AvgPloidy += ploidy[sm] / n
	}

	// First pass: values and segment averages.
	values := map[CellKey]Relation{}
	for _, sg := range segments {
		var tcnSum, mcnSum float64
		for _, sm := range samples {
			k := CellKey{Sample: sm, Segment: sg}
			rel := CopyNumberRelation(table.Cell(sm, sg))
			values[k] = rel
			z := 1 / purity[sm]
			tcnSum += rel.TCN.Eval(ploidy[sm], z)
			mcnSum += rel.MCN.Eval(ploidy[sm], z)
		}
		ev.TCNAverages[sg] = sideAverage(tcnSum/n, cfg.DeltaTCNAvgToInt)
		ev.MCNAverages[sg] = sideAverage(mcnSum/n, cfg.DeltaMCNAvgToInt)
	}

	// Second pass: per-cell calls and segment clonality.
	for _, sg := range segments {
		eligible := 0
		for _, sm := range samples {
			k := CellKey{Sample: sm, Segment: sg}
			obs := table.Cell(sm, sg)
			rel := values[k]
			z := 1 / purity[sm]

			cell := CellCall{
				N1:          rel.N1.Eval(ploidy[sm], z),
				LargeEnough: obs.Mb >= cfg.MinAlignedSegMb,
			}
			cell.TCN = sideCall(rel.TCN.Eval(ploidy[sm], z), ev.TCNAverages[sg].Avg, cfg.DeltaTCNToInt, cfg.DeltaTCNToAvg, rel.TCNWildtype)
			cell.MCN = sideCall(rel.MCN.Eval(ploidy[sm], z), ev.MCNAverages[sg].Avg, cfg.DeltaMCNToInt, cfg.DeltaMCNToAvg, rel.MCNWildtype)
			cell.IsCNA = cell.TCN.CNA() || cell.MCN.CNA()
			cell.IsHomdel = cell.TCN.Value <= 0.5
			matchBoth := cell.TCN.Match() && ev.TCNAverages[sg].CloseToInt &&
				cell.MCN.Match() && ev.MCNAverages[sg].CloseToInt
			cell.Eligible = matchBoth && cell.LargeEnough && cell.IsCNA
			if cell.Eligible {
				eligible++
			}
			if cell.IsHomdel {
				ev.HomdelMb[sm] += obs.Mb
			}
			if cell.IsCNA {
				ev.CNASegments[sm]++
			}
			ev.Cells[k] = cell
		}
		if float64(eligible) >= cfg.Rho*n {
			ev.AllMatch[sg] = true
			ev.NClonal++
		}
	}

	for k, cell := range ev.Cells {
		if cfg.Obj2ClonalOnly && !ev.AllMatch[k.Segment] {
			continue
		}
		ev.TCNError += cell.TCN.IntErr
		ev.MCNError += cell.MCN.IntErr
	}
	return ev, nil
}

func sideCall(value, avg, deltaInt, deltaAvg, wildtype float64) SideCall {
	rounded := math.Round(value)
	s := SideCall{
		Value:  value,
		Int:    rounded,
		IntErr: math.Abs(value - rounded),
		Spread: math.Abs(value - avg),
	}
	s.CloseToInt = s.IntErr <= deltaInt
	s.CloseToAvg = s.Spread <= deltaAvg
	s.Gain = rounded >= wildtype+1
	s.Loss = rounded <= wildtype-1 && rounded >= 0
	return s
}

func sideAverage(avg, delta float64) SideAverage {
	rounded := math.Round(avg)
	return SideAverage{
		Avg:        avg,
		AvgInt:     rounded,
		AvgIntErr:  math.Abs(avg - rounded),
		CloseToInt: math.Abs(avg-rounded) <= delta,
	}
}
