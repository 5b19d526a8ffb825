package cnalign

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorelick/CNalign/pkg/mip"
)

// solutionFromValues assembles a mip.Solution assigning the given values
// to named problem variables, zero elsewhere.
func solutionFromValues(p *Problem, values map[*mip.Var]float64) mip.Solution {
	x := make([]float64, p.Model.VarCount())
	for v, val := range values {
		x[v.ID()] = val
	}
	objs := []float64{0, 0}
	return mip.NewSolution(x, objs)
}

func TestExtractSolutionsLayout(t *testing.T) {
	tab := pairTable(t)
	cfg := DefaultConfig()
	cfg.MCNWeight = 0.5
	p, err := BuildProblem(tab, cfg)
	require.NoError(t, err)

	sol := solutionFromValues(p, map[*mip.Var]float64{
		p.NClonal:                  1,
		p.TCNError:                 0.4,
		p.MCNError:                 0.2,
		p.Samples["A"].Ploidy:      2.0000004,
		p.Samples["B"].Ploidy:      2.1,
		p.Samples["A"].InvPurity:   1.25,
		p.Samples["B"].InvPurity:   2.0,
		p.Segments["seg2"].AllMatch: 1,
		p.Cells[CellKey{Sample: "A", Segment: "seg2"}].TCN.Value: 3.0,
		p.Cells[CellKey{Sample: "A", Segment: "seg2"}].MCN.Value: 1.0,
	})
	res := &mip.Result{Solutions: []mip.Solution{sol}}

	out, err := ExtractSolutions(p, res)
	require.NoError(t, err)

	require.Equal(t, []string{"Solution_1"}, out.Columns)
	// Rows: Obj1, Obj2, 2 pl, 2 pu, 2 allmatch, 4 tcn, 4 mcn.
	require.Len(t, out.Variables, 2+2+2+2+4+4)
	require.Len(t, out.Values, len(out.Variables))

	row := func(name string) float64 {
		for i, n := range out.Variables {
			if n == name {
				return out.Values[i][0]
			}
		}
		t.Fatalf("row %q not found", name)
		return 0
	}

	assert.Equal(t, 1.0, row("Obj1"))
	// Obj2 recomputed from the error totals: -(0.5*0.4 + 0.5*0.2).
	assert.InDelta(t, -0.3, row("Obj2"), 1e-9)
	// Six-decimal rounding.
	assert.Equal(t, 2.0, row("pl[A]"))
	assert.Equal(t, 2.1, row("pl[B]"))
	// Purity is the reciprocal of the inverse-purity variable.
	assert.InDelta(t, 0.8, row("pu[A]"), 1e-9)
	assert.InDelta(t, 0.5, row("pu[B]"), 1e-9)
	assert.Equal(t, 1.0, row("allmatch[seg2]"))
	assert.Equal(t, 0.0, row("allmatch[seg1]"))
	assert.Equal(t, 3.0, row("tcn[A,seg2]"))
	assert.Equal(t, 1.0, row("mcn[A,seg2]"))
}

func TestExtractSolutionsMultipleColumns(t *testing.T) {
	tab := pairTable(t)
	p, err := BuildProblem(tab, DefaultConfig())
	require.NoError(t, err)

	s1 := solutionFromValues(p, map[*mip.Var]float64{p.NClonal: 2, p.Samples["A"].InvPurity: 1, p.Samples["B"].InvPurity: 1})
	s2 := solutionFromValues(p, map[*mip.Var]float64{p.NClonal: 1, p.Samples["A"].InvPurity: 1, p.Samples["B"].InvPurity: 1})
	res := &mip.Result{Solutions: []mip.Solution{s1, s2}}

	out, err := ExtractSolutions(p, res)
	require.NoError(t, err)
	assert.Equal(t, []string{"Solution_1", "Solution_2"}, out.Columns)
	assert.Equal(t, 2.0, out.Values[0][0], "best solution fills the first column")
	assert.Equal(t, 1.0, out.Values[0][1])
}

func TestExtractSolutionsEmptyResult(t *testing.T) {
	tab := pairTable(t)
	p, err := BuildProblem(tab, DefaultConfig())
	require.NoError(t, err)
	_, err = ExtractSolutions(p, &mip.Result{})
	assert.Error(t, err)
}

func TestWriteTSV(t *testing.T) {
	tab := pairTable(t)
	p, err := BuildProblem(tab, DefaultConfig())
	require.NoError(t, err)
	sol := solutionFromValues(p, map[*mip.Var]float64{
		p.NClonal:                1,
		p.Samples["A"].InvPurity: 1.25,
		p.Samples["B"].InvPurity: 1.25,
	})
	out, err := ExtractSolutions(p, &mip.Result{Solutions: []mip.Solution{sol}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, out.WriteTSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "Variable\tSolution_1", lines[0])
	assert.Equal(t, "Obj1\t1", lines[1])
	assert.Len(t, lines, 1+len(out.Variables))
}
