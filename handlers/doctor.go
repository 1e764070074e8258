package handlers

import "log"

// DoctorReport is the result of a read-only topology scan.
type DoctorReport struct {
	OK       bool `json:"ok"`
	Overlaps int  `json:"overlap_count"`
	Gaps     int  `json:"gap_count"`
	Invalid  int  `json:"invalid_count"`
}

// Doctor scans a collection for invalid geometries, overlaps, and gaps. It
// mutates nothing and never fails: geometry-kernel trouble during the scan is
// reported as a defect count, not raised.
func Doctor(c *Collection) (report DoctorReport) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("doctor scan aborted early: %v", r)
			report.OK = false
		}
	}()

	for i := 0; i < c.Len(); i++ {
		if !c.Region(i).Geom.IsValid() {
			report.Invalid++
		}
	}

	if overlaps, err := FindOverlaps(c); err == nil {
		report.Overlaps = len(overlaps)
	} else {
		log.Printf("doctor: overlap scan failed: %v", err)
		report.Overlaps = -1
	}

	if gaps, err := FindGaps(c); err == nil {
		report.Gaps = len(gaps)
	} else {
		log.Printf("doctor: gap scan failed: %v", err)
		report.Gaps = -1
	}

	report.OK = report.Invalid == 0 && report.Overlaps == 0 && report.Gaps == 0
	return report
}

// cleanForNesting verifies the preconditions on a parent partition: valid
// geometries and no overlaps. Holes are allowed.
func cleanForNesting(c *Collection) bool {
	for i := 0; i < c.Len(); i++ {
		if !c.Region(i).Geom.IsValid() {
			return false
		}
	}
	overlaps, err := FindOverlaps(c)
	if err != nil {
		return false
	}
	return len(overlaps) == 0
}
