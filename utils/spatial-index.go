package utils

import (
	"fmt"
	"math"
	"sort"

	"github.com/twpayne/go-geos"
)

// SpatialIndex is a uniform-grid bounding-box index over a collection of
// regions. Candidates returns every region whose bounding box intersects the
// query's bounding box: a superset of the true intersectors, never a subset.
// Exact predicates are the caller's job via the geometry kernel.
//
// The index is read-only after construction and safe to share across workers.
type SpatialIndex struct {
	regions  []*IndexedRegion
	cellSize float64
	grid     map[cellKey][]*IndexedRegion
}

type IndexedRegion struct {
	Key    string
	Geom   *geos.Geom
	Index  int
	bounds *geos.Box2D
}

type cellKey struct {
	x, y int
}

func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialIndex{
		cellSize: cellSize,
		grid:     make(map[cellKey][]*IndexedRegion),
	}
}

// CellSizeForBounds picks a grid cell size so that n regions spread over the
// given extent land in a few regions per cell on average.
func CellSizeForBounds(bounds *geos.Box2D, n int) float64 {
	if bounds == nil || n <= 0 {
		return 1
	}
	extent := math.Max(bounds.MaxX-bounds.MinX, bounds.MaxY-bounds.MinY)
	if extent <= 0 {
		return 1
	}
	cells := math.Sqrt(float64(n))
	if cells < 1 {
		cells = 1
	}
	return extent / cells
}

// Add inserts a region into the index. Nil, empty, and zero-area geometries
// are a precondition violation and rejected at build time.
func (si *SpatialIndex) Add(key string, geom *geos.Geom) error {
	if geom == nil {
		return fmt.Errorf("region %q: nil geometry", key)
	}
	if geom.IsEmpty() {
		return fmt.Errorf("region %q: empty geometry", key)
	}
	if geom.Area() <= 0 {
		return fmt.Errorf("region %q: zero-area geometry", key)
	}
	bounds := geom.Bounds()
	if bounds == nil {
		return fmt.Errorf("region %q: no bounds", key)
	}

	region := &IndexedRegion{
		Key:    key,
		Geom:   geom,
		Index:  len(si.regions),
		bounds: bounds,
	}
	si.regions = append(si.regions, region)
	for _, cell := range si.cellsFor(bounds) {
		si.grid[cell] = append(si.grid[cell], region)
	}
	return nil
}

func (si *SpatialIndex) cellsFor(bounds *geos.Box2D) []cellKey {
	minX := int(math.Floor(bounds.MinX / si.cellSize))
	minY := int(math.Floor(bounds.MinY / si.cellSize))
	maxX := int(math.Floor(bounds.MaxX / si.cellSize))
	maxY := int(math.Floor(bounds.MaxY / si.cellSize))

	cells := make([]cellKey, 0, (maxX-minX+1)*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			cells = append(cells, cellKey{x, y})
		}
	}
	return cells
}

// Candidates returns the regions whose bounding boxes intersect the query
// geometry's bounding box, in insertion order.
func (si *SpatialIndex) Candidates(query *geos.Geom) []*IndexedRegion {
	if query == nil {
		return nil
	}
	return si.CandidatesBounds(query.Bounds())
}

// CandidatesBounds is Candidates for an explicit bounding box.
func (si *SpatialIndex) CandidatesBounds(bounds *geos.Box2D) []*IndexedRegion {
	if bounds == nil {
		return nil
	}

	seen := make(map[int]*IndexedRegion)
	for _, cell := range si.cellsFor(bounds) {
		for _, candidate := range si.grid[cell] {
			if boundsIntersect(candidate.bounds, bounds) {
				seen[candidate.Index] = candidate
			}
		}
	}

	candidates := make([]*IndexedRegion, 0, len(seen))
	for _, candidate := range seen {
		candidates = append(candidates, candidate)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Index < candidates[j].Index
	})
	return candidates
}

// Len returns the number of indexed regions.
func (si *SpatialIndex) Len() int {
	return len(si.regions)
}

func boundsIntersect(a, b *geos.Box2D) bool {
	return a.MinX <= b.MaxX && b.MinX <= a.MaxX &&
		a.MinY <= b.MaxY && b.MinY <= a.MaxY
}
