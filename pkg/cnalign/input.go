package cnalign

import (
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// CellKey identifies one (sample, segment) cell.
type CellKey struct {
	Sample  string
	Segment string
}

// ObservationTable is the validated input measurement table: exactly one
// Observation for every (sample, segment) pair in the cross product of the
// table's samples and segments.
type ObservationTable struct {
	samples  []string
	segments []string
	cells    map[CellKey]Observation
}

// NewObservationTable validates and assembles a table from raw cells.
// Sample and segment order follows first appearance in the map's sorted
// key order, matching the deterministic ordering used for variable naming.
// Validation enforces the cross-product invariant and finite measurements;
// violations are input-shape errors reported before any model is built.
func NewObservationTable(cells map[CellKey]Observation) (*ObservationTable, error) {
	if len(cells) == 0 {
		return nil, errors.New("input table is empty")
	}
	sampleSet := map[string]struct{}{}
	segmentSet := map[string]struct{}{}
	for k := range cells {
		sampleSet[k.Sample] = struct{}{}
		segmentSet[k.Segment] = struct{}{}
	}
	samples := sortedKeys(sampleSet)
	segments := sortedKeys(segmentSet)

	t := &ObservationTable{
		samples:  samples,
		segments: segments,
		cells:    make(map[CellKey]Observation, len(cells)),
	}
	for _, sm := range samples {
		for _, sg := range segments {
			k := CellKey{Sample: sm, Segment: sg}
			obs, ok := cells[k]
			if !ok {
				return nil, errors.Errorf("missing observation for sample %q segment %q: the full sample x segment cross product is required", sm, sg)
			}
			if err := checkObservation(k, obs); err != nil {
				return nil, err
			}
			t.cells[k] = obs
		}
	}
	return t, nil
}

func checkObservation(k CellKey, obs Observation) error {
	if !isFinite(obs.LogR) {
		return errors.Errorf("cell (%s,%s): non-finite logR %v", k.Sample, k.Segment, obs.LogR)
	}
	if obs.BAF.Observed() && !isFinite(obs.BAF.Value()) {
		return errors.Errorf("cell (%s,%s): non-finite BAF %v", k.Sample, k.Segment, obs.BAF.Value())
	}
	if !isFinite(obs.GC) || obs.GC <= 0 {
		return errors.Errorf("cell (%s,%s): germline copy number must be a positive finite value, got %v", k.Sample, k.Segment, obs.GC)
	}
	if !isFinite(obs.Mb) || obs.Mb <= 0 {
		return errors.Errorf("cell (%s,%s): segment length must be a positive finite value, got %v", k.Sample, k.Segment, obs.Mb)
	}
	return nil
}

// Samples returns the sample identifiers in table order.
func (t *ObservationTable) Samples() []string { return t.samples }

// Segments returns the segment identifiers in table order.
func (t *ObservationTable) Segments() []string { return t.segments }

// Cell returns the observation for the given pair. The cross-product
// invariant guarantees presence for valid identifiers.
func (t *ObservationTable) Cell(sample, segment string) Observation {
	return t.cells[CellKey{Sample: sample, Segment: segment}]
}

// NumSamples returns the number of samples.
func (t *ObservationTable) NumSamples() int { return len(t.samples) }

// NumSegments returns the number of segments.
func (t *ObservationTable) NumSegments() int { return len(t.segments) }

// ReadObservationTable parses a tab-separated measurement table with a
// header row of: sample, segment, logR, BAF, GC, mb. An empty, "NA" or
// "NaN" BAF field marks the allele fraction unavailable; the same
// normalization is applied for every caller so the relation's branch
// selection stays consistent.
func ReadObservationTable(r io.Reader) (*ObservationTable, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	col := map[string]int{}
	for i, h := range header {
		col[h] = i
	}
	for _, want := range []string{"sample", "segment", "logR", "BAF", "GC", "mb"} {
		if _, ok := col[want]; !ok {
			return nil, errors.Errorf("input table is missing column %q", want)
		}
	}

	cells := map[CellKey]Observation{}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading record %d", line)
		}
		line++

		k := CellKey{Sample: rec[col["sample"]], Segment: rec[col["segment"]]}
		obs := Observation{}
		if obs.LogR, err = strconv.ParseFloat(rec[col["logR"]], 64); err != nil {
			return nil, errors.Wrapf(err, "record %d: logR", line)
		}
		obs.BAF, err = parseBAF(rec[col["BAF"]])
		if err != nil {
			return nil, errors.Wrapf(err, "record %d: BAF", line)
		}
		if obs.GC, err = strconv.ParseFloat(rec[col["GC"]], 64); err != nil {
			return nil, errors.Wrapf(err, "record %d: GC", line)
		}
		if obs.Mb, err = strconv.ParseFloat(rec[col["mb"]], 64); err != nil {
			return nil, errors.Wrapf(err, "record %d: mb", line)
		}
		if _, dup := cells[k]; dup {
			return nil, errors.Errorf("record %d: duplicate cell (%s,%s)", line, k.Sample, k.Segment)
		}
		cells[k] = obs
	}
	return NewObservationTable(cells)
}

func parseBAF(field string) (BAF, error) {
	switch field {
	case "", "NA", "NaN", "nan":
		return BAFUnavailable(), nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return BAF{}, err
	}
	if math.IsNaN(v) {
		return BAFUnavailable(), nil
	}
	return ObservedBAF(v), nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
