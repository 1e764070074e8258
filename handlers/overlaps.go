package handlers

import (
	"fmt"
	"log"

	"github.com/twpayne/go-geos"
)

// Overlap is a maximal connected piece of area claimed by two or more
// regions in a collection that is meant to be a clean partition.
type Overlap struct {
	Geom         *geos.Geom
	Area         float64
	Contributors []string
}

// Passes of overlap resolution before giving up: subtracting an overlap can
// leave slivers that show up as fresh overlaps on the next scan.
const maxOverlapPasses = 5

// FindOverlaps returns the connected components of all pairwise positive-area
// intersections within the collection, each with its contributing regions in
// collection order. Caller owns the returned geometries.
func FindOverlaps(c *Collection) ([]Overlap, error) {
	si, err := c.index()
	if err != nil {
		return nil, err
	}

	var pieces []*geos.Geom
	for i := 0; i < c.Len(); i++ {
		region := c.Region(i)
		for _, candidate := range si.Candidates(region.Geom) {
			if candidate.Index <= i {
				continue
			}
			if !region.Geom.Intersects(candidate.Geom) {
				continue
			}
			intersection := keepPolygonal(region.Geom.Intersection(candidate.Geom))
			if intersection == nil || intersection.IsEmpty() || intersection.Area() == 0 {
				continue
			}
			pieces = append(pieces, intersection)
		}
	}
	if len(pieces) == 0 {
		return nil, nil
	}

	merged := CascadedUnion(pieces)
	var overlaps []Overlap
	for _, component := range polygonalComponents(merged) {
		geom := component.Clone()
		overlap := Overlap{Geom: geom, Area: geom.Area()}
		for _, candidate := range si.Candidates(geom) {
			if intersectionArea(geom, candidate.Geom) > 0 {
				overlap.Contributors = append(overlap.Contributors, candidate.Key)
			}
		}
		overlaps = append(overlaps, overlap)
	}
	return overlaps, nil
}

// ResolveOverlaps removes overlapping area from a collection. Each overlap is
// subtracted from every contributor, then given back to the single
// contributor sharing the greatest boundary length with it, which preserves
// adjacency better than an area-based winner. Overlaps larger than
// relativeThreshold times the largest contributing region are left alone and
// reported; nil disables that guard. The scan repeats until no resolvable
// overlap remains or the pass cap is hit.
func ResolveOverlaps(c *Collection, relativeThreshold *float64) (*Collection, []Diagnostic, error) {
	cur := c
	var diags []Diagnostic

	err := guard("resolve overlaps", func() error {
		for pass := 0; pass < maxOverlapPasses; pass++ {
			overlaps, err := FindOverlaps(cur)
			if err != nil {
				return err
			}
			if len(overlaps) == 0 {
				return nil
			}

			var resolvable []Overlap
			for _, overlap := range overlaps {
				if relativeThreshold != nil && overlap.Area > *relativeThreshold*maxRegionArea(cur, overlap.Contributors) {
					continue
				}
				resolvable = append(resolvable, overlap)
			}
			if len(resolvable) == 0 {
				return nil
			}
			if pass == 0 {
				log.Printf("resolving %d overlap(s)...", len(resolvable))
			}

			next, passDiags := resolvePass(cur, resolvable)
			diags = append(diags, passDiags...)
			cur = next
		}
		return nil
	})
	if err != nil {
		return nil, diags, err
	}

	// Whatever survived the passes is reported, not silently dropped.
	remaining, err := FindOverlaps(cur)
	if err != nil {
		return nil, diags, err
	}
	for _, overlap := range remaining {
		diags = append(diags, Diagnostic{
			Kind: DiagUnresolvableOverlap,
			Keys: overlap.Contributors,
			Area: overlap.Area,
		})
	}
	return cur, diags, nil
}

// resolvePass subtracts the given overlaps from every contributor and merges
// each overlap into its shared-perimeter winner.
func resolvePass(c *Collection, overlaps []Overlap) (*Collection, []Diagnostic) {
	geoms := make([]*geos.Geom, len(overlaps))
	for i, overlap := range overlaps {
		geoms[i] = overlap.Geom
	}
	removeUnion := CascadedUnion(geoms)

	replacements := make(map[string]*geos.Geom)
	current := func(key string) *geos.Geom {
		if g, ok := replacements[key]; ok {
			return g
		}
		region, _ := c.Get(key)
		return region.Geom
	}

	for i := 0; i < c.Len(); i++ {
		region := c.Region(i)
		if !region.Geom.Intersects(removeUnion) {
			continue
		}
		replacements[region.Key] = keepPolygonal(region.Geom.Difference(removeUnion))
	}

	for _, overlap := range overlaps {
		winner := ""
		best := -1.0
		for _, key := range overlap.Contributors {
			length := sharedBoundaryLength(overlap.Geom, current(key))
			if length > best || (length == best && key < winner) {
				best = length
				winner = key
			}
		}
		if winner == "" {
			continue
		}
		merged := current(winner).Union(overlap.Geom)
		replacements[winner] = merged
	}

	var diags []Diagnostic
	for key, geom := range replacements {
		if geom.IsValid() {
			continue
		}
		repaired := keepPolygonal(geom.MakeValid())
		if repaired != nil && repaired.IsValid() && !repaired.IsEmpty() {
			replacements[key] = repaired
			continue
		}
		// Fail closed for this region only: keep its pre-pass geometry.
		region, _ := c.Get(key)
		diags = append(diags, Diagnostic{
			Kind:   DiagRepairFailure,
			Keys:   []string{key},
			Detail: "overlap subtraction produced an invalid polygon",
		})
		replacements[key] = region.Geom
	}

	return c.withGeometries(replacements), diags
}

func maxRegionArea(c *Collection, keys []string) float64 {
	max := 0.0
	for _, key := range keys {
		if region, ok := c.Get(key); ok {
			if area := region.Area(); area > max {
				max = area
			}
		}
	}
	return max
}

// guard converts geometry-kernel panics into errors so one bad region cannot
// take down the whole batch.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: geometry kernel failure: %v", op, r)
		}
	}()
	return fn()
}
