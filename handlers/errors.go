package handlers

import (
	"fmt"
	"strings"
)

// InvalidGeometryError reports a malformed input polygon that survived one
// make-valid attempt. Detected at ingestion or index-build time.
type InvalidGeometryError struct {
	Key    string
	Reason string
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid geometry %q: %s", e.Key, e.Reason)
}

// RepairError reports a geometric operation that produced an invalid result
// for one region after a bounded number of retries. Fatal for that region
// only; the rest of the collection is still repaired.
type RepairError struct {
	Key    string
	Op     string
	Reason string
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("repair failed for %q during %s: %s", e.Key, e.Op, e.Reason)
}

// DiagnosticKind classifies non-fatal findings collected during assignment
// and repair.
type DiagnosticKind int

const (
	// DiagUnresolvableOverlap marks an overlap whose area exceeds the
	// relative threshold; the contributing regions are left untouched.
	DiagUnresolvableOverlap DiagnosticKind = iota
	// DiagUnresolvableGap marks a gap left unfilled for the same reason.
	DiagUnresolvableGap
	// DiagAssignmentAmbiguity marks a source covered by more than one
	// target; resolved deterministically but worth a look.
	DiagAssignmentAmbiguity
	// DiagRepairFailure marks a region whose repaired geometry came out
	// invalid; the region keeps its previous geometry.
	DiagRepairFailure
	// DiagDisconnected marks a region the pipeline left with more
	// components than it started with.
	DiagDisconnected
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagUnresolvableOverlap:
		return "unresolvable overlap"
	case DiagUnresolvableGap:
		return "unresolvable gap"
	case DiagAssignmentAmbiguity:
		return "assignment ambiguity"
	case DiagRepairFailure:
		return "repair failure"
	case DiagDisconnected:
		return "disconnected region"
	}
	return "unknown"
}

// Diagnostic is a per-region (or per-region-set) finding reported alongside
// the successfully repaired collection instead of aborting the batch.
type Diagnostic struct {
	Kind   DiagnosticKind
	Keys   []string
	Area   float64
	Detail string
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s [%s]", d.Kind, strings.Join(d.Keys, ", "))
	if d.Detail != "" {
		s += ": " + d.Detail
	}
	return s
}
