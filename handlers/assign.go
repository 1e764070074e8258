package handlers

import (
	"log"
	"runtime"

	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

// Assignment maps each source region to at most one target region. Sources
// with no covering target and no positive-area overlap stay unassigned.
type Assignment struct {
	ByKey map[string]string
	// Ambiguous lists sources covered by more than one target. The target
	// collection is then not a clean partition; the assignment falls back
	// to the first covering target in collection order.
	Ambiguous []string
}

// Unassigned returns the source keys with no target, in source order.
func (a *Assignment) Unassigned(sources *Collection) []string {
	var keys []string
	for i := 0; i < sources.Len(); i++ {
		key := sources.Region(i).Key
		if _, ok := a.ByKey[key]; !ok {
			keys = append(keys, key)
		}
	}
	return keys
}

type assignResult struct {
	target    string
	assigned  bool
	ambiguous bool
}

// Assign maps every source to the target that covers it or, when no target
// covers the whole source, to the candidate with the largest intersection
// area. Area ties break to the smallest target key.
func Assign(sources, targets *Collection) (*Assignment, []Diagnostic, error) {
	targetIndex, err := targets.index()
	if err != nil {
		return nil, nil, err
	}

	pp := utils.NewParallelProcessor(runtime.NumCPU())
	results := pp.ProcessIndexed(sources.Len(), func(i int) interface{} {
		return assignOne(sources.Region(i), targetIndex)
	}, "Assigning sources")

	assignment := &Assignment{ByKey: make(map[string]string, sources.Len())}
	var diags []Diagnostic
	for i, raw := range results {
		result := raw.(assignResult)
		key := sources.Region(i).Key
		if result.assigned {
			assignment.ByKey[key] = result.target
		}
		if result.ambiguous {
			assignment.Ambiguous = append(assignment.Ambiguous, key)
			diags = append(diags, Diagnostic{
				Kind:   DiagAssignmentAmbiguity,
				Keys:   []string{key, result.target},
				Detail: "multiple covering targets; kept first in collection order",
			})
			log.Printf("source %q is covered by multiple targets; assigned to %q", key, result.target)
		}
	}
	return assignment, diags, nil
}

func assignOne(source Region, targetIndex *utils.SpatialIndex) assignResult {
	candidates := targetIndex.Candidates(source.Geom)

	// Covering targets first. Candidates come back in collection order, so
	// the first hit is the deterministic tie-break winner.
	var covering *utils.IndexedRegion
	coveringCount := 0
	for _, candidate := range candidates {
		if candidate.Geom.Covers(source.Geom) {
			coveringCount++
			if covering == nil {
				covering = candidate
			}
		}
	}
	if covering != nil {
		return assignResult{
			target:    covering.Key,
			assigned:  true,
			ambiguous: coveringCount > 1,
		}
	}

	// Fall back to largest intersection area; ties break to the smallest
	// target key.
	bestArea := 0.0
	bestKey := ""
	for _, candidate := range candidates {
		area := intersectionArea(source.Geom, candidate.Geom)
		if area > bestArea || (area == bestArea && area > 0 && candidate.Key < bestKey) {
			bestArea = area
			bestKey = candidate.Key
		}
	}
	if bestArea > 0 {
		return assignResult{target: bestKey, assigned: true}
	}
	return assignResult{}
}

func intersectionArea(a, b *geos.Geom) float64 {
	if !a.Intersects(b) {
		return 0
	}
	intersection := a.Intersection(b)
	if intersection == nil {
		return 0
	}
	area := intersection.Area()
	return area
}

// assignByLargestArea maps every region of c to the candidate in targets
// with the largest intersection area, skipping regions with no positive-area
// overlap. This is the nesting rule: a region belongs to the parent it mostly
// lies in.
func assignByLargestArea(c, targets *Collection) (map[string]string, error) {
	targetIndex, err := targets.index()
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, c.Len())
	for i := 0; i < c.Len(); i++ {
		region := c.Region(i)
		bestArea := 0.0
		bestKey := ""
		for _, candidate := range targetIndex.Candidates(region.Geom) {
			area := intersectionArea(region.Geom, candidate.Geom)
			if area > bestArea || (area == bestArea && area > 0 && candidate.Key < bestKey) {
				bestArea = area
				bestKey = candidate.Key
			}
		}
		if bestArea > 0 {
			out[region.Key] = bestKey
		}
	}
	return out, nil
}
