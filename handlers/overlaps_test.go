package handlers

import "testing"

func TestFindOverlaps(t *testing.T) {
	c := newTestCollection(t, []testRegion{
		{"a", rect(t, 0, 0, 1, 1)},
		{"b", rect(t, 0.75, 0, 1.75, 1)},
	})
	overlaps, err := FindOverlaps(c)
	if err != nil {
		t.Fatalf("FindOverlaps: %v", err)
	}
	if len(overlaps) != 1 {
		t.Fatalf("got %d overlaps, want 1", len(overlaps))
	}

	if !approx(overlaps[0].Area, 0.25, 1e-9) {
		t.Errorf("overlap area = %v, want 0.25", overlaps[0].Area)
	}
	if len(overlaps[0].Contributors) != 2 {
		t.Errorf("contributors = %v, want both regions", overlaps[0].Contributors)
	}
}

func TestFindOverlapsIgnoresSharedBoundaries(t *testing.T) {
	overlaps, err := FindOverlaps(grid2x2(t))
	if err != nil {
		t.Fatalf("FindOverlaps: %v", err)
	}
	if len(overlaps) != 0 {
		t.Errorf("clean grid reported %d overlaps", len(overlaps))
	}
}

func TestResolveOverlaps(t *testing.T) {
	c := newTestCollection(t, []testRegion{
		{"a", rect(t, 0, 0, 1, 1)},
		{"b", rect(t, 0.75, 0, 1.75, 1)},
	})
	union := c.Union()
	unionArea := union.Area()

	resolved, diags, err := ResolveOverlaps(c, nil)
	if err != nil {
		t.Fatalf("ResolveOverlaps: %v", err)
	}
	for _, diag := range diags {
		if diag.Kind == DiagUnresolvableOverlap {
			t.Errorf("unexpected unresolvable overlap: %v", diag)
		}
	}

	remaining, err := FindOverlaps(resolved)
	if err != nil {
		t.Fatalf("FindOverlaps after resolve: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("%d overlaps remain after resolve", len(remaining))
	}
	if !approx(totalArea(resolved), unionArea, 1e-9) {
		t.Errorf("total area = %v, want union area %v preserved", totalArea(resolved), unionArea)
	}

	// Both boundaries share length 1 with the overlap strip; the tie breaks
	// to the smaller key, so "a" absorbs the strip.
	a, _ := resolved.Get("a")
	b, _ := resolved.Get("b")
	if !approx(a.Area(), 1, 1e-9) {
		t.Errorf("a area = %v, want 1", a.Area())
	}
	if !approx(b.Area(), 0.75, 1e-9) {
		t.Errorf("b area = %v, want 0.75", b.Area())
	}
}

func TestResolveOverlapsThreshold(t *testing.T) {
	c := newTestCollection(t, []testRegion{
		{"a", rect(t, 0, 0, 1, 1)},
		{"b", rect(t, 0.75, 0, 1.75, 1)},
	})

	// Overlap is 0.25 of the largest contributor; a threshold of 0.1
	// leaves it in place and reports it.
	resolved, diags, err := ResolveOverlaps(c, Threshold(0.1))
	if err != nil {
		t.Fatalf("ResolveOverlaps: %v", err)
	}

	found := false
	for _, diag := range diags {
		if diag.Kind == DiagUnresolvableOverlap && approx(diag.Area, 0.25, 1e-9) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an unresolvable overlap diagnostic, got %v", diags)
	}

	a, _ := resolved.Get("a")
	b, _ := resolved.Get("b")
	if !approx(a.Area(), 1, 1e-9) || !approx(b.Area(), 1, 1e-9) {
		t.Errorf("regions above threshold were modified: a = %v, b = %v", a.Area(), b.Area())
	}
}

func TestResolveOverlapsNoop(t *testing.T) {
	c := grid2x2(t)
	resolved, diags, err := ResolveOverlaps(c, nil)
	if err != nil {
		t.Fatalf("ResolveOverlaps: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("clean grid produced diagnostics: %v", diags)
	}
	if !approx(totalArea(resolved), 4, 1e-9) {
		t.Errorf("total area = %v, want 4", totalArea(resolved))
	}
}
