package cnalign

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableCells(samples, segments []string) map[CellKey]Observation {
	cells := map[CellKey]Observation{}
	for _, sm := range samples {
		for _, sg := range segments {
			cells[CellKey{Sample: sm, Segment: sg}] = Observation{
				LogR: 0, BAF: ObservedBAF(0.5), GC: 2, Mb: 10,
			}
		}
	}
	return cells
}

func TestNewObservationTableOrdersDeterministically(t *testing.T) {
	cells := tableCells([]string{"B", "A"}, []string{"seg2", "seg1"})
	tab, err := NewObservationTable(cells)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, tab.Samples())
	assert.Equal(t, []string{"seg1", "seg2"}, tab.Segments())
	assert.Equal(t, 2, tab.NumSamples())
	assert.Equal(t, 2, tab.NumSegments())
}

func TestNewObservationTableRejectsMissingCell(t *testing.T) {
	cells := tableCells([]string{"A", "B"}, []string{"seg1", "seg2"})
	delete(cells, CellKey{Sample: "B", Segment: "seg2"})
	_, err := NewObservationTable(cells)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cross product")
}

func TestNewObservationTableRejectsBadMeasurements(t *testing.T) {
	for name, mutate := range map[string]func(*Observation){
		"non-finite logR": func(o *Observation) { o.LogR = math.Inf(1) },
		"NaN BAF":         func(o *Observation) { o.BAF = ObservedBAF(math.NaN()) },
		"zero GC":         func(o *Observation) { o.GC = 0 },
		"negative mb":     func(o *Observation) { o.Mb = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cells := tableCells([]string{"A"}, []string{"seg1"})
			obs := cells[CellKey{Sample: "A", Segment: "seg1"}]
			mutate(&obs)
			cells[CellKey{Sample: "A", Segment: "seg1"}] = obs
			_, err := NewObservationTable(cells)
			assert.Error(t, err)
		})
	}
}

func TestNewObservationTableRejectsEmpty(t *testing.T) {
	_, err := NewObservationTable(nil)
	assert.Error(t, err)
}

func TestReadObservationTable(t *testing.T) {
	input := strings.Join([]string{
		"sample\tsegment\tlogR\tBAF\tGC\tmb",
		"A\tseg1\t0.0\t0.5\t2\t10",
		"A\tseg2\t0.3\tNA\t2\t20",
		"B\tseg1\t-0.1\t0.45\t2\t10",
		"B\tseg2\t0.25\t\t2\t20",
	}, "\n")

	tab, err := ReadObservationTable(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, tab.Samples())

	withBAF := tab.Cell("A", "seg1")
	assert.True(t, withBAF.BAF.Observed())
	assert.Equal(t, 0.5, withBAF.BAF.Value())

	missing := tab.Cell("A", "seg2")
	assert.False(t, missing.BAF.Observed(), "NA must mark BAF unavailable")
	alsoMissing := tab.Cell("B", "seg2")
	assert.False(t, alsoMissing.BAF.Observed(), "empty field must mark BAF unavailable")
}

func TestReadObservationTableMissingColumn(t *testing.T) {
	input := "sample\tsegment\tlogR\tGC\tmb\nA\tseg1\t0\t2\t10"
	_, err := ReadObservationTable(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAF")
}

func TestReadObservationTableDuplicateCell(t *testing.T) {
	input := strings.Join([]string{
		"sample\tsegment\tlogR\tBAF\tGC\tmb",
		"A\tseg1\t0.0\t0.5\t2\t10",
		"A\tseg1\t0.1\t0.4\t2\t10",
	}, "\n")
	_, err := ReadObservationTable(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
