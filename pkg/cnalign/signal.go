// Package cnalign infers allele-specific integer copy-number states across
// multiple tumor samples by aligning noisy log-ratio and allele-fraction
// signal through a lexicographic mixed-integer program.
//
// The package is organized around five stages: the signal-to-copy-number
// relation (pure algebra, this file), the problem builder (build.go), the
// objective composer (objective.go), the stagnation-aware solve controller
// (stagnation.go), and the solution pool extractor (extract.go). Align ties
// the stages into one single-shot run.
package cnalign

import (
	"fmt"
	"math"
)

// BAF is the B-allele-frequency observation for one cell. It is either an
// observed fraction or explicitly unavailable; the copy-number relation
// branches on which variant it is, so callers never compare against a
// sentinel value.
type BAF struct {
	value    float64
	observed bool
}

// ObservedBAF wraps a measured allele fraction.
func ObservedBAF(v float64) BAF {
	return BAF{value: v, observed: true}
}

// BAFUnavailable marks the allele fraction as missing; only the total-copy
// signal is used for such cells.
func BAFUnavailable() BAF {
	return BAF{}
}

// Observed reports whether an allele fraction was measured.
func (b BAF) Observed() bool { return b.observed }

// Value returns the measured fraction; it is only meaningful when
// Observed is true.
func (b BAF) Value() float64 { return b.value }

func (b BAF) String() string {
	if !b.observed {
		return "NA"
	}
	return fmt.Sprintf("%g", b.value)
}

// Observation is the raw per-cell measurement for one (sample, segment)
// pair.
type Observation struct {
	LogR float64 // log-ratio of observed to expected intensity
	BAF  BAF     // allele fraction, possibly unavailable
	GC   float64 // germline copy number, typically 2
	Mb   float64 // segment length in megabases
}

// LinearForm is a value linear in the per-sample latents: ploidy pl and
// inverse purity z. The copy-number relation returns these forms so the
// problem builder can post them as exact linear constraints.
type LinearForm struct {
	Ploidy    float64 // coefficient on pl
	InvPurity float64 // coefficient on z
	Const     float64
}

// Eval computes the form at a concrete ploidy and inverse purity.
func (f LinearForm) Eval(pl, z float64) float64 {
	return f.Ploidy*pl + f.InvPurity*z + f.Const
}

// Plus returns the term-wise sum of two forms.
func (f LinearForm) Plus(g LinearForm) LinearForm {
	return LinearForm{
		Ploidy:    f.Ploidy + g.Ploidy,
		InvPurity: f.InvPurity + g.InvPurity,
		Const:     f.Const + g.Const,
	}
}

// Relation is the algebraic mapping from one cell's raw signal to its
// allele-1, minor and total copy numbers, as linear forms over the sample's
// (ploidy, inverse purity). It also carries the wild-type reference copies
// that gain/loss calls compare against.
type Relation struct {
	N1  LinearForm
	MCN LinearForm
	TCN LinearForm
	// TCNWildtype and MCNWildtype are the copy counts of an unaltered
	// cell: (g, g-1) when the allele fraction is observed, (g, 0) when
	// only total-copy signal exists.
	TCNWildtype float64
	MCNWildtype float64
}

// CopyNumberRelation derives the relation for one observation. These are
// algebraic identities, not approximations; the sign structure is encoded
// exactly since downstream integrality and error terms depend on it.
//
// With c = 2^logR and c1 = 2^(logR+1), the observed-BAF branch is
//
//	n1  = -b·c·pl + b·c1 − b·c1·z + c·pl − c1 + c1·z + g − g·z − 1 + z
//	mcn =  b·c·pl − b·c1 + b·c1·z + 1 − z
//
// and the unavailable-BAF branch is
//
//	n1  = 2·z·c + c·pl − 2c − g·z + g
//	mcn = 0
//
// tcn = n1 + mcn in both branches.
func CopyNumberRelation(obs Observation) Relation {
	c := math.Exp2(obs.LogR)
	c1 := math.Exp2(obs.LogR + 1)
	g := obs.GC

	var rel Relation
	if obs.BAF.Observed() {
		b := obs.BAF.Value()
		rel.N1 = LinearForm{
			Ploidy:    c - b*c,
			InvPurity: c1 - b*c1 - g + 1,
			Const:     b*c1 - c1 + g - 1,
		}
		rel.MCN = LinearForm{
			Ploidy:    b * c,
			InvPurity: b*c1 - 1,
			Const:     1 - b*c1,
		}
		rel.TCNWildtype = g
		rel.MCNWildtype = g - 1
	} else {
		rel.N1 = LinearForm{
			Ploidy:    c,
			InvPurity: 2*c - g,
			Const:     g - 2*c,
		}
		rel.MCN = LinearForm{}
		rel.TCNWildtype = g
		rel.MCNWildtype = 0
	}
	rel.TCN = rel.N1.Plus(rel.MCN)
	return rel
}
