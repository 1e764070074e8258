package handlers

import "testing"

func TestDoctorClean(t *testing.T) {
	report := Doctor(grid2x2(t))
	if !report.OK {
		t.Errorf("clean grid reported not OK: %+v", report)
	}
	if report.Overlaps != 0 || report.Gaps != 0 || report.Invalid != 0 {
		t.Errorf("clean grid counts = %+v, want all zero", report)
	}
}

func TestDoctorFindsOverlaps(t *testing.T) {
	report := Doctor(newTestCollection(t, []testRegion{
		{"a", rect(t, 0, 0, 1, 1)},
		{"b", rect(t, 0.75, 0, 1.75, 1)},
	}))
	if report.OK {
		t.Error("overlapping regions reported OK")
	}
	if report.Overlaps != 1 {
		t.Errorf("Overlaps = %d, want 1", report.Overlaps)
	}
}

func TestDoctorFindsGaps(t *testing.T) {
	report := Doctor(ringAroundCenter(t))
	if report.OK {
		t.Error("ring with hole reported OK")
	}
	if report.Gaps != 1 {
		t.Errorf("Gaps = %d, want 1", report.Gaps)
	}
	if report.Overlaps != 0 {
		t.Errorf("Overlaps = %d, want 0", report.Overlaps)
	}
}

func TestDoctorDoesNotMutate(t *testing.T) {
	c := ringAroundCenter(t)
	before := totalArea(c)
	Doctor(c)
	if !approx(totalArea(c), before, 0) {
		t.Error("doctor scan changed the collection")
	}
}
