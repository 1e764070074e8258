package handlers

import (
	"runtime"

	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

// Piece is one nonempty pairwise intersection between a source and a target
// region.
type Piece struct {
	SourceKey string
	TargetKey string
	Geom      *geos.Geom
	Area      float64
}

// AreaCutoff selects which pieces Intersections keeps. The zero value keeps
// any piece with positive area; KeepBoundary keeps zero-area (boundary-only)
// pieces too, which matters when boundary touching is the point, e.g. for
// adjacency work.
type AreaCutoff struct {
	keepZeroArea bool
	minArea      float64
}

// KeepBoundary keeps every nonempty intersection, including zero-area ones.
func KeepBoundary() AreaCutoff {
	return AreaCutoff{keepZeroArea: true}
}

// MinArea keeps pieces whose area exceeds the cutoff.
func MinArea(cutoff float64) AreaCutoff {
	return AreaCutoff{minArea: cutoff}
}

func (c AreaCutoff) keeps(area float64) bool {
	if c.keepZeroArea {
		return true
	}
	return area > c.minArea
}

// Intersections decomposes two collections into their pairwise intersection
// pieces. Output is stable: grouped by source in collection order, then by
// target in collection order. Empty intersections are never emitted.
func Intersections(sources, targets *Collection, cutoff AreaCutoff) ([]Piece, error) {
	targetIndex, err := targets.index()
	if err != nil {
		return nil, err
	}

	pp := utils.NewParallelProcessor(runtime.NumCPU())
	results := pp.ProcessIndexed(sources.Len(), func(i int) interface{} {
		source := sources.Region(i)
		var pieces []Piece
		for _, candidate := range targetIndex.Candidates(source.Geom) {
			if !source.Geom.Intersects(candidate.Geom) {
				continue
			}
			intersection := source.Geom.Intersection(candidate.Geom)
			if intersection == nil || intersection.IsEmpty() {
				continue
			}
			area := intersection.Area()
			if !cutoff.keeps(area) {
				continue
			}
			pieces = append(pieces, Piece{
				SourceKey: source.Key,
				TargetKey: candidate.Key,
				Geom:      intersection,
				Area:      area,
			})
		}
		return pieces
	}, "Computing intersections")

	var all []Piece
	for _, raw := range results {
		all = append(all, raw.([]Piece)...)
	}
	return all, nil
}
