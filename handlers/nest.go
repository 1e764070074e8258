package handlers

import (
	"fmt"
	"log"

	"github.com/twpayne/go-geos"
)

// NestWithin constrains a repaired collection to a coarser partition: every
// region is clipped to the parent it shares the most area with, and the
// clipped-off remainders are redistributed to neighbors inside the right
// parent by the gap partitioning machinery. Parents must be valid,
// non-overlapping, and in the same coordinate frame as the collection; holes
// in the parent layer are fine.
func NestWithin(c, parents *Collection, gapThreshold *float64) (*Collection, []Diagnostic, error) {
	if parents == nil || parents.Len() == 0 {
		return nil, nil, fmt.Errorf("nesting requires a nonempty parent collection")
	}
	if !cleanForNesting(parents) {
		return nil, nil, fmt.Errorf("parent collection must be valid and overlap-free before nesting")
	}

	var diags []Diagnostic
	var result *Collection
	err := guard("nest", func() error {
		assignment, err := assignByLargestArea(c, parents)
		if err != nil {
			return err
		}

		// Clip every region to its parent.
		replacements := make(map[string]*geos.Geom, c.Len())
		children := make(map[string][]string, parents.Len())
		for i := 0; i < c.Len(); i++ {
			region := c.Region(i)
			parentKey, ok := assignment[region.Key]
			if !ok {
				diags = append(diags, Diagnostic{
					Kind:   DiagRepairFailure,
					Keys:   []string{region.Key},
					Detail: "no parent region overlaps; left unclipped",
				})
				continue
			}
			parent, _ := parents.Get(parentKey)
			clipped := keepPolygonal(region.Geom.Intersection(parent.Geom))
			if clipped == nil || clipped.IsEmpty() {
				diags = append(diags, Diagnostic{
					Kind:   DiagRepairFailure,
					Keys:   []string{region.Key},
					Detail: "clipping to parent emptied the region",
				})
				continue
			}
			replacements[region.Key] = clipped
			children[parentKey] = append(children[parentKey], region.Key)
		}
		clippedCollection := c.withGeometries(replacements)

		// Clipping moves area across parent lines, so the redistribution
		// has to happen parent by parent: each parent's uncovered residue
		// is treated as gaps among that parent's own children.
		final := make(map[string]*geos.Geom)
		for p := 0; p < parents.Len(); p++ {
			parent := parents.Region(p)
			keys := children[parent.Key]
			if len(keys) == 0 {
				continue
			}

			sub := NewCollection()
			for _, key := range keys {
				region, _ := clippedCollection.Get(key)
				if err := sub.Add(key, region.Geom, region.Properties); err != nil {
					return err
				}
			}

			subUnion := sub.Union()
			residue := keepPolygonal(parent.Geom.Difference(subUnion))

			filled := sub
			for _, component := range polygonalComponents(residue) {
				gap := Gap{Geom: component, Area: component.Area()}
				for _, key := range keys {
					region, _ := filled.Get(key)
					if sharedBoundaryLength(component, region.Geom) > 0 {
						gap.Borderers = append(gap.Borderers, key)
					}
				}
				if len(gap.Borderers) == 0 {
					continue
				}
				var additions map[string]*geos.Geom
				if len(gap.Borderers) > 1 {
					additions = partitionGap(gap, filled)
				}
				if additions == nil {
					winner := sharedPerimeterWinner(component, gap.Borderers, filled)
					additions = map[string]*geos.Geom{winner: component.Clone()}
				}
				merged := make(map[string]*geos.Geom, len(additions))
				for key, piece := range additions {
					region, _ := filled.Get(key)
					merged[key] = keepPolygonal(region.Geom.Union(piece))
				}
				filled = filled.withGeometries(merged)
			}
			for _, key := range keys {
				region, _ := filled.Get(key)
				final[key] = region.Geom
			}
		}

		log.Printf("nested %d regions into %d parents", len(final), parents.Len())
		result = c.withGeometries(final)
		return nil
	})
	if err != nil {
		return nil, diags, err
	}

	// Redistribution inside one parent cannot overlap a neighbor parent's
	// children, but the clip boundaries themselves can carry slack.
	cleaned, cleanupDiags, err := ResolveOverlaps(result, gapThreshold)
	if err != nil {
		return nil, diags, err
	}
	diags = append(diags, cleanupDiags...)
	return cleaned, diags, nil
}
