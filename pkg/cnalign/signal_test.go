package cnalign

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synthObs generates the exact signal a tumor with the given latent state
// would emit: logR from the ratio of observed to expected total copies,
// BAF from the minor-allele fraction, both diluted by normal contamination.
func synthObs(ploidy, purity, tcn, mcn, g, mb float64) Observation {
	obsTotal := g*(1-purity) + purity*tcn
	expTotal := g*(1-purity) + purity*ploidy
	return Observation{
		LogR: math.Log2(obsTotal / expTotal),
		BAF:  ObservedBAF(((1 - purity) + purity*mcn) / obsTotal),
		GC:   g,
		Mb:   mb,
	}
}

func TestRelationRecoversBalancedDiploid(t *testing.T) {
	obs := Observation{LogR: 0, BAF: ObservedBAF(0.5), GC: 2, Mb: 10}
	rel := CopyNumberRelation(obs)

	// Pure diploid sample: pl=2, purity=1 so z=1.
	assert.InDelta(t, 2.0, rel.TCN.Eval(2, 1), 1e-9)
	assert.InDelta(t, 1.0, rel.MCN.Eval(2, 1), 1e-9)
	assert.InDelta(t, 1.0, rel.N1.Eval(2, 1), 1e-9)
}

func TestRelationInvertsSynthesizedSignal(t *testing.T) {
	cases := []struct {
		name               string
		ploidy, purity     float64
		tcn, mcn           float64
	}{
		{"diploid wild type", 2, 1.0, 2, 1},
		{"gain at high purity", 2, 0.9, 3, 1},
		{"single-copy loss", 2, 0.7, 1, 0},
		{"homozygous deletion", 2, 0.8, 0, 0},
		{"tetraploid background", 4, 0.6, 4, 2},
		{"cnloh", 2, 0.5, 2, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := synthObs(tc.ploidy, tc.purity, tc.tcn, tc.mcn, 2, 10)
			rel := CopyNumberRelation(obs)
			z := 1 / tc.purity
			assert.InDelta(t, tc.tcn, rel.TCN.Eval(tc.ploidy, z), 1e-9)
			assert.InDelta(t, tc.mcn, rel.MCN.Eval(tc.ploidy, z), 1e-9)
			assert.InDelta(t, tc.tcn-tc.mcn, rel.N1.Eval(tc.ploidy, z), 1e-9)
		})
	}
}

func TestRelationTCNIsSumOfAlleles(t *testing.T) {
	for _, obs := range []Observation{
		{LogR: 0.3, BAF: ObservedBAF(0.34), GC: 2, Mb: 10},
		{LogR: -0.8, BAF: ObservedBAF(0.1), GC: 2, Mb: 10},
		{LogR: 0.1, BAF: BAFUnavailable(), GC: 2, Mb: 10},
		{LogR: 0.0, BAF: ObservedBAF(0.5), GC: 1, Mb: 10},
	} {
		rel := CopyNumberRelation(obs)
		for _, pl := range []float64{1.5, 2, 3.7} {
			for _, z := range []float64{1, 1.5, 4} {
				sum := rel.N1.Eval(pl, z) + rel.MCN.Eval(pl, z)
				assert.InDelta(t, sum, rel.TCN.Eval(pl, z), 1e-12,
					"tcn must equal n1+mcn at pl=%v z=%v", pl, z)
			}
		}
	}
}

func TestRelationBranchSelection(t *testing.T) {
	withBAF := CopyNumberRelation(Observation{LogR: 0.2, BAF: ObservedBAF(0.4), GC: 2, Mb: 10})
	require.NotZero(t, withBAF.MCN.Ploidy, "observed BAF must produce a live MCN form")
	assert.Equal(t, 2.0, withBAF.TCNWildtype)
	assert.Equal(t, 1.0, withBAF.MCNWildtype)

	noBAF := CopyNumberRelation(Observation{LogR: 0.2, BAF: BAFUnavailable(), GC: 2, Mb: 10})
	assert.Zero(t, noBAF.MCN.Ploidy)
	assert.Zero(t, noBAF.MCN.InvPurity)
	assert.Zero(t, noBAF.MCN.Const)
	assert.Equal(t, 2.0, noBAF.TCNWildtype)
	assert.Equal(t, 0.0, noBAF.MCNWildtype)
}

func TestRelationNoBAFBranchTracksTotalSignal(t *testing.T) {
	// Without BAF, a logR of 0 at full purity means tcn equals ploidy.
	rel := CopyNumberRelation(Observation{LogR: 0, BAF: BAFUnavailable(), GC: 2, Mb: 10})
	assert.InDelta(t, 2.0, rel.TCN.Eval(2, 1), 1e-9)
	assert.InDelta(t, 3.0, rel.TCN.Eval(3, 1), 1e-9)

	// One extra copy doubles with the signal: logR = log2(3/2) at pl=2.
	gained := CopyNumberRelation(Observation{LogR: math.Log2(1.5), BAF: BAFUnavailable(), GC: 2, Mb: 10})
	assert.InDelta(t, 3.0, gained.TCN.Eval(2, 1), 1e-9)
}

func TestBAFStringer(t *testing.T) {
	assert.Equal(t, "NA", BAFUnavailable().String())
	assert.Equal(t, "0.42", ObservedBAF(0.42).String())
}

func TestLinearFormPlus(t *testing.T) {
	a := LinearForm{Ploidy: 1, InvPurity: 2, Const: 3}
	b := LinearForm{Ploidy: -1, InvPurity: 0.5, Const: 1}
	sum := a.Plus(b)
	assert.Equal(t, LinearForm{Ploidy: 0, InvPurity: 2.5, Const: 4}, sum)
	assert.InDelta(t, sum.Eval(2, 2), 9, 1e-12)
}
