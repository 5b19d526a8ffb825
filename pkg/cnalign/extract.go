package cnalign

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/agorelick/CNalign/pkg/mip"
)

// SolutionTable is the long-form report over the solution pool: one row
// per reported quantity, one column per pooled solution, best first.
type SolutionTable struct {
	// Variables names the rows: Obj1, Obj2, then pl, pu, allmatch, tcn
	// and mcn entries in model order.
	Variables []string
	// Columns are the per-solution headers, Solution_1 through
	// Solution_k.
	Columns []string
	// Values is indexed [row][column]; every entry is rounded to six
	// decimals.
	Values [][]float64
}

// ExtractSolutions reads every pooled solution back through the problem's
// variable repository. Obj1 is the clonal segment count; Obj2 is the
// blended error objective recomputed from the error totals, so it is
// comparable across solutions even when a level was cut off early.
// Purities are reported (pu = 1/z), not the inverse purity the model
// optimizes over.
func ExtractSolutions(p *Problem, res *mip.Result) (*SolutionTable, error) {
	if res == nil || len(res.Solutions) == 0 {
		return nil, errors.New("no solutions to extract")
	}
	samples := p.Table.Samples()
	segments := p.Table.Segments()
	w := p.Config.MCNWeight

	t := &SolutionTable{}
	t.Variables = append(t.Variables, "Obj1", "Obj2")
	for _, sm := range samples {
		t.Variables = append(t.Variables, fmt.Sprintf("pl[%s]", sm))
	}
	for _, sm := range samples {
		t.Variables = append(t.Variables, fmt.Sprintf("pu[%s]", sm))
	}
	for _, sg := range segments {
		t.Variables = append(t.Variables, fmt.Sprintf("allmatch[%s]", sg))
	}
	for _, sm := range samples {
		for _, sg := range segments {
			t.Variables = append(t.Variables, fmt.Sprintf("tcn[%s,%s]", sm, sg))
		}
	}
	for _, sm := range samples {
		for _, sg := range segments {
			t.Variables = append(t.Variables, fmt.Sprintf("mcn[%s,%s]", sm, sg))
		}
	}

	for i, sol := range res.Solutions {
		t.Columns = append(t.Columns, fmt.Sprintf("Solution_%d", i+1))

		col := make([]float64, 0, len(t.Variables))
		col = append(col, sol.Value(p.NClonal))
		obj2 := -(1-w)*sol.Value(p.TCNError) - w*sol.Value(p.MCNError)
		col = append(col, obj2)
		for _, sm := range samples {
			col = append(col, sol.Value(p.Samples[sm].Ploidy))
		}
		for _, sm := range samples {
			col = append(col, 1/sol.Value(p.Samples[sm].InvPurity))
		}
		for _, sg := range segments {
			col = append(col, sol.Value(p.Segments[sg].AllMatch))
		}
		for _, sm := range samples {
			for _, sg := range segments {
				col = append(col, sol.Value(p.Cells[CellKey{Sample: sm, Segment: sg}].TCN.Value))
			}
		}
		for _, sm := range samples {
			for _, sg := range segments {
				col = append(col, sol.Value(p.Cells[CellKey{Sample: sm, Segment: sg}].MCN.Value))
			}
		}

		for r, v := range col {
			if i == 0 {
				t.Values = append(t.Values, make([]float64, len(res.Solutions)))
			}
			t.Values[r][i] = round6(v)
		}
	}
	return t, nil
}

// WriteTSV writes the table with a Variable column followed by one column
// per solution.
func (t *SolutionTable) WriteTSV(w io.Writer) error {
	if _, err := fmt.Fprint(w, "Variable"); err != nil {
		return errors.Wrap(err, "writing solution table")
	}
	for _, c := range t.Columns {
		if _, err := fmt.Fprintf(w, "\t%s", c); err != nil {
			return errors.Wrap(err, "writing solution table")
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return errors.Wrap(err, "writing solution table")
	}
	for r, name := range t.Variables {
		if _, err := fmt.Fprint(w, name); err != nil {
			return errors.Wrap(err, "writing solution table")
		}
		for c := range t.Columns {
			if _, err := fmt.Fprintf(w, "\t%s", strconv.FormatFloat(t.Values[r][c], 'g', -1, 64)); err != nil {
				return errors.Wrap(err, "writing solution table")
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return errors.Wrap(err, "writing solution table")
		}
	}
	return nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
