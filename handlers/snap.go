package handlers

import (
	"log"
	"math"

	"github.com/twpayne/go-geos"
)

// SnapToGrid quantizes every vertex of every region to the nearest multiple
// of gridSize. A non-positive gridSize picks a grid of 10^(magnitude(extent) - 10),
// no larger than 1e-10 times the collection's bounding extent: small enough
// to leave the shapes alone, large enough to kill the near-duplicate
// vertices that make boolean operations throw. Snapping is a pure coordinate
// transform and idempotent.
func SnapToGrid(c *Collection, gridSize float64) (*Collection, error) {
	if gridSize <= 0 {
		bounds := c.Bounds()
		if bounds == nil {
			return c, nil
		}
		extent := math.Max(bounds.MaxX-bounds.MinX, bounds.MaxY-bounds.MinY)
		if extent <= 0 {
			return c, nil
		}
		magnitude := int(math.Floor(math.Log10(extent))) - 10
		gridSize = math.Pow(10, float64(magnitude))
	}
	log.Printf("snapping all geometries to a grid of size %e", gridSize)

	replacements := make(map[string]*geos.Geom, c.Len())
	for i := 0; i < c.Len(); i++ {
		region := c.Region(i)
		snapped := snapGeometry(region.Geom, gridSize)
		if snapped == nil || snapped.IsEmpty() {
			return nil, &RepairError{Key: region.Key, Op: "snap", Reason: "geometry collapsed on the grid"}
		}
		if !snapped.IsValid() {
			// Snapping can fold a near-degenerate ring onto itself.
			repaired := keepPolygonal(snapped.MakeValidWithParams(geos.MakeValidLinework, geos.MakeValidDiscardCollapsed))
			if repaired == nil || repaired.IsEmpty() || !repaired.IsValid() {
				return nil, &RepairError{Key: region.Key, Op: "snap", Reason: snapped.IsValidReason()}
			}
			snapped = repaired
		}
		replacements[region.Key] = snapped
	}
	return c.withGeometries(replacements), nil
}

func snapGeometry(g *geos.Geom, gridSize float64) *geos.Geom {
	var polygons []*geos.Geom
	for _, polygon := range polygonalComponents(g) {
		if snapped := snapPolygon(polygon, gridSize); snapped != nil {
			polygons = append(polygons, snapped)
		}
	}
	switch len(polygons) {
	case 0:
		return nil
	case 1:
		return polygons[0]
	}
	return geos.NewCollection(geos.TypeIDMultiPolygon, polygons)
}

func snapPolygon(polygon *geos.Geom, gridSize float64) *geos.Geom {
	exterior := snapRing(polygon.ExteriorRing(), gridSize)
	if exterior == nil {
		return nil
	}
	rings := [][][]float64{exterior}
	for r := 0; r < polygon.NumInteriorRings(); r++ {
		if ring := snapRing(polygon.InteriorRing(r), gridSize); ring != nil {
			rings = append(rings, ring)
		}
	}
	return geos.NewPolygon(rings)
}

// snapRing quantizes a ring's coordinates, dropping vertices that collapse
// onto their predecessor. Rings left with fewer than four points are
// degenerate and discarded.
func snapRing(ring *geos.Geom, gridSize float64) [][]float64 {
	if ring == nil {
		return nil
	}
	var coords [][]float64
	for _, coord := range coordsOf(ring) {
		x := math.Round(coord[0]/gridSize) * gridSize
		y := math.Round(coord[1]/gridSize) * gridSize
		if n := len(coords); n > 0 && coords[n-1][0] == x && coords[n-1][1] == y {
			continue
		}
		coords = append(coords, []float64{x, y})
	}
	if len(coords) > 0 {
		first, last := coords[0], coords[len(coords)-1]
		if first[0] != last[0] || first[1] != last[1] {
			coords = append(coords, []float64{first[0], first[1]})
		}
	}
	if len(coords) < 4 {
		return nil
	}
	return coords
}
