package handlers

import "testing"

func TestAssignCoveredSources(t *testing.T) {
	sources := grid2x2(t)
	targets := newTestCollection(t, []testRegion{
		{"left", rect(t, 0, 0, 1, 2)},
		{"right", rect(t, 1, 0, 2, 2)},
	})

	assignment, diags, err := Assign(sources, targets)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	want := map[string]string{"a": "left", "b": "right", "c": "left", "d": "right"}
	for key, target := range want {
		if got := assignment.ByKey[key]; got != target {
			t.Errorf("ByKey[%q] = %q, want %q", key, got, target)
		}
	}
	if unassigned := assignment.Unassigned(sources); len(unassigned) != 0 {
		t.Errorf("unexpected unassigned sources: %v", unassigned)
	}
}

func TestAssignLargestOverlap(t *testing.T) {
	// No target covers the straddling source; 0.6 of it lies in "left".
	sources := newTestCollection(t, []testRegion{
		{"s", rect(t, 0.4, 0, 1.4, 1)},
	})
	targets := newTestCollection(t, []testRegion{
		{"left", rect(t, 0, 0, 1, 1)},
		{"right", rect(t, 1, 0, 2, 1)},
	})

	assignment, _, err := Assign(sources, targets)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got := assignment.ByKey["s"]; got != "left" {
		t.Errorf("ByKey[s] = %q, want left", got)
	}
}

func TestAssignAreaTieBreaksToSmallestKey(t *testing.T) {
	sources := newTestCollection(t, []testRegion{
		{"s", rect(t, 0.5, 0, 1.5, 1)},
	})
	targets := newTestCollection(t, []testRegion{
		{"b", rect(t, 1, 0, 2, 1)},
		{"a", rect(t, 0, 0, 1, 1)},
	})

	assignment, _, err := Assign(sources, targets)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got := assignment.ByKey["s"]; got != "a" {
		t.Errorf("ByKey[s] = %q, want a", got)
	}
}

func TestAssignUnassigned(t *testing.T) {
	sources := newTestCollection(t, []testRegion{
		{"near", square(t, 0, 0, 1)},
		{"far", square(t, 50, 50, 1)},
	})
	targets := newTestCollection(t, []testRegion{
		{"t", rect(t, 0, 0, 2, 2)},
	})

	assignment, _, err := Assign(sources, targets)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, ok := assignment.ByKey["far"]; ok {
		t.Error("disjoint source should stay unassigned")
	}
	unassigned := assignment.Unassigned(sources)
	if len(unassigned) != 1 || unassigned[0] != "far" {
		t.Errorf("Unassigned = %v, want [far]", unassigned)
	}
}

func TestAssignAmbiguousCoverage(t *testing.T) {
	sources := newTestCollection(t, []testRegion{
		{"s", rect(t, 0.25, 0.25, 0.75, 0.75)},
	})
	// Both targets cover the source in full.
	targets := newTestCollection(t, []testRegion{
		{"t1", rect(t, 0, 0, 1, 1)},
		{"t2", rect(t, 0, 0, 1, 1)},
	})

	assignment, diags, err := Assign(sources, targets)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got := assignment.ByKey["s"]; got != "t1" {
		t.Errorf("ByKey[s] = %q, want first covering target t1", got)
	}
	if len(assignment.Ambiguous) != 1 || assignment.Ambiguous[0] != "s" {
		t.Errorf("Ambiguous = %v, want [s]", assignment.Ambiguous)
	}
	found := false
	for _, diag := range diags {
		if diag.Kind == DiagAssignmentAmbiguity {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an ambiguity diagnostic, got %v", diags)
	}
}
