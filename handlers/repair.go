package handlers

import (
	"log"

	"github.com/twpayne/go-geos"
)

// Threshold is a convenience for the optional relative-threshold parameters.
func Threshold(v float64) *float64 {
	return &v
}

// Fraction of a region's area below which a newly created disconnected
// fragment is reabsorbed into a neighbor instead of reported.
const defaultDisconnectionThreshold = 1e-4

// SmartRepairOptions configures the full repair pipeline.
type SmartRepairOptions struct {
	// Snapped skips the snap-to-grid step when the input is already
	// quantized.
	Snapped bool
	// GridSize overrides the automatic snap grid; zero picks one from the
	// collection's extent.
	GridSize float64
	// RelativeThreshold leaves any overlap larger than this fraction of its
	// largest contributor unresolved. Nil resolves everything.
	RelativeThreshold *float64
	// FillGaps closes holes in the union after overlaps are resolved.
	FillGaps bool
	// FillGapsThreshold leaves any gap larger than this fraction of its
	// largest borderer unfilled. Nil fills everything.
	FillGapsThreshold *float64
	// NestWithin, when set, clips and redistributes the repaired regions so
	// they exactly tile this coarser partition.
	NestWithin *Collection
	// MinRookLength converts rook adjacencies shorter than this to queen
	// adjacencies after the repair. Zero disables the conversion.
	MinRookLength float64
	// HolesToKeep marks deliberate holes that gap filling must not close.
	HolesToKeep *Collection
	// DisconnectionThreshold overrides the relative size below which a
	// fragment split off a region during repair is reabsorbed. Zero picks
	// the default.
	DisconnectionThreshold float64
}

// SmartRepair runs the full topology repair pipeline: snap to a grid, resolve
// overlaps, fill gaps with multi-way partitioning, optionally nest within a
// coarser partition, reabsorb tiny fragments the repair disconnected, and
// optionally convert short rook adjacencies to queen. The result covers the
// same territory as the input up to the requested thresholds, with no
// overlapping regions.
func SmartRepair(c *Collection, opts SmartRepairOptions) (*Collection, []Diagnostic, error) {
	var diags []Diagnostic

	cur := c
	if !opts.Snapped {
		snapped, err := SnapToGrid(cur, opts.GridSize)
		if err != nil {
			return nil, nil, err
		}
		cur = snapped
	}

	resolved, overlapDiags, err := ResolveOverlaps(cur, opts.RelativeThreshold)
	if err != nil {
		return nil, diags, err
	}
	diags = append(diags, overlapDiags...)
	cur = resolved

	if opts.FillGaps {
		filled, gapDiags, err := FillGaps(cur, GapFillOptions{
			Threshold:   opts.FillGapsThreshold,
			HolesToKeep: opts.HolesToKeep,
			Partition:   true,
		})
		if err != nil {
			return nil, diags, err
		}
		diags = append(diags, gapDiags...)
		cur = filled
	}

	if opts.NestWithin != nil {
		nested, nestDiags, err := NestWithin(cur, opts.NestWithin, opts.FillGapsThreshold)
		if err != nil {
			return nil, diags, err
		}
		diags = append(diags, nestDiags...)
		cur = nested
	}

	threshold := opts.DisconnectionThreshold
	if threshold <= 0 {
		threshold = defaultDisconnectionThreshold
	}
	cleaned, fragmentDiags, err := reabsorbFragments(c, cur, threshold)
	if err != nil {
		return nil, diags, err
	}
	diags = append(diags, fragmentDiags...)
	cur = cleaned

	if opts.MinRookLength > 0 {
		converted, rookDiags, err := RookToQueen(cur, nil, opts.MinRookLength)
		if err != nil {
			return nil, diags, err
		}
		diags = append(diags, rookDiags...)
		cur = converted
	}

	log.Printf("repair complete: %d regions, %d diagnostic(s)", cur.Len(), len(diags))
	return cur, diags, nil
}

// QuickRepair is the cheap pipeline: resolve overlaps and close gaps by
// whole-gap absorption, no snapping, no partitioning, no nesting. Suitable
// for data whose defects are known to be hairline slivers.
func QuickRepair(c *Collection, relativeThreshold *float64) (*Collection, []Diagnostic, error) {
	resolved, diags, err := ResolveOverlaps(c, relativeThreshold)
	if err != nil {
		return nil, diags, err
	}
	filled, gapDiags, err := FillGaps(resolved, GapFillOptions{
		Threshold: relativeThreshold,
		Partition: false,
	})
	if err != nil {
		return nil, diags, err
	}
	return filled, append(diags, gapDiags...), nil
}

// reabsorbFragments compares each repaired region against its original. A
// region that gained connected components picked up fragments from the
// repair; fragments smaller than threshold times the larger of the two areas
// are handed to the neighbor sharing the most boundary. Larger new fragments
// are reported as disconnections and left in place.
func reabsorbFragments(before, after *Collection, threshold float64) (*Collection, []Diagnostic, error) {
	var diags []Diagnostic
	var result *Collection

	err := guard("reabsorb fragments", func() error {
		si, err := after.index()
		if err != nil {
			return err
		}

		type orphan struct {
			source string
			geom   *geos.Geom
		}
		var orphans []orphan
		trimmed := make(map[string]*geos.Geom)
		for i := 0; i < after.Len(); i++ {
			region := after.Region(i)
			original, ok := before.Get(region.Key)
			if !ok || numComponents(region.Geom) <= numComponents(original.Geom) {
				continue
			}

			limit := threshold * maxFloat(region.Geom.Area(), original.Area())
			var kept, small []*geos.Geom
			for _, component := range polygonalComponents(region.Geom) {
				if component.Area() < limit {
					small = append(small, component.Clone())
				} else {
					kept = append(kept, component.Clone())
				}
			}
			if len(kept) == 0 {
				// Every component is tiny; keep the region as is rather
				// than empty it out.
				diags = append(diags, Diagnostic{
					Kind:   DiagDisconnected,
					Keys:   []string{region.Key},
					Detail: "region fragmented into pieces below the reabsorption threshold",
				})
				continue
			}
			if len(small) == 0 {
				diags = append(diags, Diagnostic{
					Kind:   DiagDisconnected,
					Keys:   []string{region.Key},
					Detail: "region left disconnected after repair",
				})
				continue
			}
			for _, g := range small {
				orphans = append(orphans, orphan{source: region.Key, geom: g})
			}
			if len(kept) == 1 {
				trimmed[region.Key] = kept[0]
			} else {
				trimmed[region.Key] = geos.NewCollection(geos.TypeIDMultiPolygon, kept)
				diags = append(diags, Diagnostic{
					Kind:   DiagDisconnected,
					Keys:   []string{region.Key},
					Detail: "region left disconnected after repair",
				})
			}
		}

		cur := after.withGeometries(trimmed)
		additions := make(map[string][]*geos.Geom)
		for _, o := range orphans {
			var neighbors []string
			for _, candidate := range si.Candidates(o.geom) {
				if candidate.Key == o.source {
					continue
				}
				region, _ := cur.Get(candidate.Key)
				if sharedBoundaryLength(o.geom, region.Geom) > 0 {
					neighbors = append(neighbors, candidate.Key)
				}
			}
			if len(neighbors) == 0 {
				// Nowhere to put it; give it back to its source.
				neighbors = []string{o.source}
			}
			winner := sharedPerimeterWinner(o.geom, neighbors, cur)
			additions[winner] = append(additions[winner], o.geom)
		}

		replacements := make(map[string]*geos.Geom, len(additions))
		for key, pieces := range additions {
			region, _ := cur.Get(key)
			merged := keepPolygonal(CascadedUnion(append(pieces, region.Geom)))
			replacements[key] = merged
		}
		result = cur.withGeometries(replacements)
		return nil
	})
	if err != nil {
		return nil, diags, err
	}
	return result, diags, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
