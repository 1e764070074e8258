package handlers

import (
	"log"

	"github.com/twpayne/go-geos"
)

// Gap is a maximal connected hole in the union of a collection, together
// with the regions that border it along positive-length boundary.
type Gap struct {
	Geom      *geos.Geom
	Area      float64
	Borderers []string
}

// FindGaps extracts the interior holes of the collection's union as Gap
// values. Caller owns the returned geometries.
func FindGaps(c *Collection) ([]Gap, error) {
	si, err := c.index()
	if err != nil {
		return nil, err
	}

	union := c.Union()
	if union == nil {
		return nil, nil
	}
	holes := holesOf(union)

	gaps := make([]Gap, 0, len(holes))
	for _, hole := range holes {
		gap := Gap{Geom: hole, Area: hole.Area()}
		for _, candidate := range si.Candidates(hole) {
			if sharedBoundaryLength(hole, candidate.Geom) > 0 {
				gap.Borderers = append(gap.Borderers, candidate.Key)
			}
		}
		gaps = append(gaps, gap)
	}
	return gaps, nil
}

// GapFillOptions controls FillGaps.
type GapFillOptions struct {
	// Threshold skips any gap larger than Threshold times the largest
	// bordering region. Nil disables the guard.
	Threshold *float64
	// HolesToKeep marks deliberate holes (lakes, exclaves): any gap with
	// positive-area intersection with one of these regions is never filled.
	HolesToKeep *Collection
	// Partition splits a gap bordering several regions into one piece per
	// borderer. When false, the whole gap goes to the single borderer with
	// the greatest shared perimeter, which can fabricate adjacency between
	// the other borderers and the winner's far neighbors.
	Partition bool
}

// FillGaps closes the holes in the union of a collection by merging each gap
// (or its partition pieces) into bordering regions.
func FillGaps(c *Collection, opts GapFillOptions) (*Collection, []Diagnostic, error) {
	var result *Collection
	var diags []Diagnostic

	err := guard("fill gaps", func() error {
		gaps, err := FindGaps(c)
		if err != nil {
			return err
		}
		if len(gaps) == 0 {
			result = c
			return nil
		}
		log.Printf("filling %d gap(s)...", len(gaps))

		additions := make(map[string][]*geos.Geom)
		partitioned := false
		for _, gap := range gaps {
			if len(gap.Borderers) == 0 || keptHole(gap, opts.HolesToKeep) {
				continue
			}
			if opts.Threshold != nil && gap.Area > *opts.Threshold*maxRegionArea(c, gap.Borderers) {
				diags = append(diags, Diagnostic{
					Kind: DiagUnresolvableGap,
					Keys: gap.Borderers,
					Area: gap.Area,
				})
				continue
			}

			if len(gap.Borderers) == 1 || !opts.Partition {
				winner := sharedPerimeterWinner(gap.Geom, gap.Borderers, c)
				additions[winner] = append(additions[winner], gap.Geom)
				continue
			}

			pieces := partitionGap(gap, c)
			if pieces == nil {
				// Degenerate partition input; fall back to a single winner.
				winner := sharedPerimeterWinner(gap.Geom, gap.Borderers, c)
				additions[winner] = append(additions[winner], gap.Geom)
				continue
			}
			partitioned = true
			for key, piece := range pieces {
				additions[key] = append(additions[key], piece)
			}
		}

		replacements := make(map[string]*geos.Geom, len(additions))
		for key, pieces := range additions {
			region, _ := c.Get(key)
			merged := CascadedUnion(append(pieces, region.Geom))
			merged = keepPolygonal(merged)
			if !merged.IsValid() {
				repaired := keepPolygonal(merged.MakeValid())
				if repaired == nil || !repaired.IsValid() || repaired.IsEmpty() {
					diags = append(diags, Diagnostic{
						Kind:   DiagRepairFailure,
						Keys:   []string{key},
						Detail: "gap merge produced an invalid polygon",
					})
					continue
				}
				merged = repaired
			}
			replacements[key] = merged
		}
		result = c.withGeometries(replacements)

		// The partition pieces meet along computed boundaries; numerical
		// slack there can leave hairline overlaps. Resolve them so the
		// no-overlap invariant holds on output.
		if partitioned {
			cleaned, cleanupDiags, err := ResolveOverlaps(result, nil)
			if err != nil {
				return err
			}
			diags = append(diags, cleanupDiags...)
			result = cleaned
		}
		return nil
	})
	if err != nil {
		return nil, diags, err
	}
	return result, diags, nil
}

func keptHole(gap Gap, holesToKeep *Collection) bool {
	if holesToKeep == nil {
		return false
	}
	for i := 0; i < holesToKeep.Len(); i++ {
		if intersectionArea(gap.Geom, holesToKeep.Region(i).Geom) > 0 {
			return true
		}
	}
	return false
}

// sharedPerimeterWinner picks the bordering region sharing the greatest
// boundary length with the given geometry; ties break to the smallest key.
func sharedPerimeterWinner(geom *geos.Geom, borderers []string, c *Collection) string {
	winner := ""
	best := -1.0
	for _, key := range borderers {
		region, ok := c.Get(key)
		if !ok {
			continue
		}
		length := sharedBoundaryLength(geom, region.Geom)
		if length > best || (length == best && key < winner) {
			best = length
			winner = key
		}
	}
	return winner
}

// partitionGap splits a multi-borderer gap into one piece per borderer so
// that every part of the gap goes to its geometrically nearest neighbor.
// The split is a Voronoi diagram seeded with points densified along each
// borderer's shared arc with the gap; each Voronoi cell, clipped to the gap,
// belongs to the borderer that produced its seed. Returns nil when the seed
// configuration is degenerate; the caller falls back to a single winner.
func partitionGap(gap Gap, c *Collection) map[string]*geos.Geom {
	step := gap.Geom.Length() / 32
	if step <= 0 {
		return nil
	}

	type seededBorderer struct {
		key   string
		seeds []*geos.Geom
	}
	var borderers []seededBorderer
	var allSeeds []*geos.Geom
	for _, key := range gap.Borderers {
		region, _ := c.Get(key)
		arc := gap.Geom.Intersection(region.Geom)
		sb := seededBorderer{key: key}
		for _, line := range lineComponents(arc) {
			dense := line.Densify(step)
			for _, part := range lineComponents(dense) {
				for _, coord := range coordsOf(part) {
					seed := geos.NewPoint(coord)
					sb.seeds = append(sb.seeds, seed)
					allSeeds = append(allSeeds, seed)
				}
			}
		}
		if len(sb.seeds) > 0 {
			borderers = append(borderers, sb)
		}
	}
	if len(borderers) < 2 || len(allSeeds) < 3 {
		return nil
	}

	sites := geos.NewCollection(geos.TypeIDMultiPoint, allSeeds)
	diagram := sites.VoronoiDiagram(nil, 0, 0)
	if diagram == nil || diagram.IsEmpty() {
		return nil
	}

	pieceLists := make(map[string][]*geos.Geom)
	for _, cell := range polygonalComponents(diagram) {
		piece := keepPolygonal(cell.Intersection(gap.Geom))
		if piece == nil || piece.IsEmpty() || piece.Area() == 0 {
			continue
		}
		owner := ""
		for _, sb := range borderers {
			for _, seed := range sb.seeds {
				if cell.Intersects(seed) {
					owner = sb.key
					break
				}
			}
			if owner != "" {
				break
			}
		}
		if owner == "" {
			continue
		}
		pieceLists[owner] = append(pieceLists[owner], piece)
	}

	pieces := make(map[string]*geos.Geom, len(pieceLists))
	var assigned []*geos.Geom
	for key, list := range pieceLists {
		merged := keepPolygonal(CascadedUnion(list))
		pieces[key] = merged
		assigned = append(assigned, merged)
	}
	if len(pieces) < 2 {
		return nil
	}

	// The diagram's envelope clipping can leave uncovered slivers near the
	// gap boundary; hand them to the overall perimeter winner.
	covered := CascadedUnion(assigned)
	leftover := keepPolygonal(gap.Geom.Difference(covered))
	if leftover != nil && !leftover.IsEmpty() && leftover.Area() > 0 {
		winner := sharedPerimeterWinner(leftover, gap.Borderers, c)
		if winner != "" {
			if prev, ok := pieces[winner]; ok {
				merged := prev.Union(leftover)
				pieces[winner] = merged
			} else {
				pieces[winner] = leftover.Clone()
			}
		}
	}
	return pieces
}
