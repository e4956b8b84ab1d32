package raylog

import (
	"fmt"
	"io"
	"math"
)

// Summary of a primary/verify stream pair.
type PairReport struct {
	Width      int
	Records    int
	Intersect  int
	Occluded   int
	ActiveRays int

	// Active lanes whose verify state reports a hit. For occlusion queries
	// a hit is a lane whose geometry id was set by the query.
	Hits int
}

// Walk a primary and a verify stream in lock-step and check that every pair
// of records carries the same header. Returns a summary of the logged queries.
func ComparePairs(primary, verify io.Reader, width int) (*PairReport, error) {
	pr, err := NewRecordReader(primary, width)
	if err != nil {
		return nil, err
	}
	vr, err := NewRecordReader(verify, width)
	if err != nil {
		return nil, err
	}

	report := &PairReport{Width: width}
	for {
		before, errP := pr.Next()
		after, errV := vr.Next()
		if errP == io.EOF && errV == io.EOF {
			return report, nil
		}
		if errP == io.EOF || errV == io.EOF {
			return report, fmt.Errorf("%w: %s stream ended after %d records", ErrRecordCountMismatch, endedStream(errP, "primary", "verify"), report.Records)
		}
		if errP != nil {
			return report, fmt.Errorf("primary stream: %w", errP)
		}
		if errV != nil {
			return report, fmt.Errorf("verify stream: %w", errV)
		}

		if before.Op != after.Op || before.Mask != after.Mask || before.ActiveCount != after.ActiveCount {
			return report, fmt.Errorf(
				"%w: record %d: primary (%s, mask %#x, count %d) != verify (%s, mask %#x, count %d)",
				ErrPairMismatch, report.Records,
				before.Op, before.Mask, before.ActiveCount,
				after.Op, after.Mask, after.ActiveCount,
			)
		}

		report.Records++
		switch after.Op {
		case Intersect:
			report.Intersect++
		case Occluded:
			report.Occluded++
		}

		for _, lane := range after.ActiveLanes() {
			report.ActiveRays++
			if ray := after.Packet.Lane(lane); ray.Hit() {
				report.Hits++
			}
		}
	}
}

func endedStream(errFirst error, first, second string) string {
	if errFirst == io.EOF {
		return first
	}
	return second
}

// A lane whose hit data differs between two runs.
type LaneMismatch struct {
	Record int
	Lane   int
	Field  string
	A, B   string
}

func (m LaneMismatch) String() string {
	return fmt.Sprintf("record %d lane %d: %s %s != %s", m.Record, m.Lane, m.Field, m.A, m.B)
}

// The result of comparing two verify streams.
type RunDiff struct {
	Width      int
	Records    int
	Mismatches []LaneMismatch
}

// Compare two verify streams recorded by different runs over the same query
// sequence. Hit data of active lanes is compared; floating point fields are
// considered equal if they differ by at most epsilon.
func CompareRuns(a, b io.Reader, width int, epsilon float32) (*RunDiff, error) {
	ra, err := NewRecordReader(a, width)
	if err != nil {
		return nil, err
	}
	rb, err := NewRecordReader(b, width)
	if err != nil {
		return nil, err
	}

	diff := &RunDiff{Width: width}
	for {
		recA, errA := ra.Next()
		recB, errB := rb.Next()
		if errA == io.EOF && errB == io.EOF {
			return diff, nil
		}
		if errA == io.EOF || errB == io.EOF {
			return diff, fmt.Errorf("%w: %s run ended after %d records", ErrRecordCountMismatch, endedStream(errA, "first", "second"), diff.Records)
		}
		if errA != nil {
			return diff, errA
		}
		if errB != nil {
			return diff, errB
		}

		if recA.Op != recB.Op || recA.Mask != recB.Mask {
			return diff, fmt.Errorf("%w: record %d: queries differ between runs", ErrPairMismatch, diff.Records)
		}

		for _, lane := range recA.ActiveLanes() {
			diff.Mismatches = append(diff.Mismatches, compareLane(diff.Records, lane, recA.Packet.Lane(lane), recB.Packet.Lane(lane), epsilon)...)
		}
		diff.Records++
	}
}

func compareLane(record, lane int, a, b Ray1, epsilon float32) []LaneMismatch {
	var out []LaneMismatch

	ids := []struct {
		name string
		a, b uint32
	}{
		{"geomID", a.GeomID, b.GeomID},
		{"primID", a.PrimID, b.PrimID},
		{"instID", a.InstID, b.InstID},
	}
	for _, id := range ids {
		if id.a != id.b {
			out = append(out, LaneMismatch{record, lane, id.name, fmtID(id.a), fmtID(id.b)})
		}
	}

	floats := []struct {
		name string
		a, b float32
	}{
		{"tfar", a.TFar, b.TFar},
		{"u", a.U, b.U},
		{"v", a.V, b.V},
	}
	for _, f := range floats {
		if !floatEq(f.a, f.b, epsilon) {
			out = append(out, LaneMismatch{record, lane, f.name, fmt.Sprint(f.a), fmt.Sprint(f.b)})
		}
	}

	return out
}

func floatEq(a, b, epsilon float32) bool {
	if a == b {
		return true
	}
	// NaN != NaN
	if math.IsNaN(float64(a)) && math.IsNaN(float64(b)) {
		return true
	}
	return float32(math.Abs(float64(a-b))) <= epsilon
}

func fmtID(id uint32) string {
	if id == InvalidID {
		return "invalid"
	}
	return fmt.Sprint(id)
}
