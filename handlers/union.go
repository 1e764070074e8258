package handlers

import (
	"github.com/twpayne/go-geos"
)

// CascadedUnion unions a set of geometries with a balanced divide-and-conquer
// tree. Inputs are not consumed; intermediates are destroyed as the tree
// collapses.
func CascadedUnion(geoms []*geos.Geom) *geos.Geom {
	switch len(geoms) {
	case 0:
		return nil
	case 1:
		return geoms[0].Clone()
	}

	mid := len(geoms) / 2
	left := CascadedUnion(geoms[:mid])
	right := CascadedUnion(geoms[mid:])
	result := left.Union(right)
	return result
}

// polygonalComponents explodes a geometry into its polygonal parts, skipping
// points and lines. A plain polygon comes back as a one-element slice.
func polygonalComponents(g *geos.Geom) []*geos.Geom {
	if g == nil || g.IsEmpty() {
		return nil
	}
	switch g.TypeID() {
	case geos.TypeIDPolygon:
		return []*geos.Geom{g}
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		var components []*geos.Geom
		for i := 0; i < g.NumGeometries(); i++ {
			components = append(components, polygonalComponents(g.Geometry(i))...)
		}
		return components
	}
	return nil
}

// keepPolygonal reduces a geometry to the union of its polygonal parts.
// Make-valid and intersection results can be GeometryCollections with stray
// lines and points; those are dropped.
func keepPolygonal(g *geos.Geom) *geos.Geom {
	if g == nil {
		return nil
	}
	switch g.TypeID() {
	case geos.TypeIDPolygon, geos.TypeIDMultiPolygon:
		return g
	}
	components := polygonalComponents(g)
	if len(components) == 0 {
		return geos.NewEmptyPolygon()
	}
	return CascadedUnion(components)
}

// lineComponents explodes a geometry into its linear parts.
func lineComponents(g *geos.Geom) []*geos.Geom {
	if g == nil || g.IsEmpty() {
		return nil
	}
	switch g.TypeID() {
	case geos.TypeIDLineString, geos.TypeIDLinearRing:
		return []*geos.Geom{g}
	case geos.TypeIDMultiLineString, geos.TypeIDGeometryCollection:
		var components []*geos.Geom
		for i := 0; i < g.NumGeometries(); i++ {
			components = append(components, lineComponents(g.Geometry(i))...)
		}
		return components
	}
	return nil
}

// coordsOf reads the coordinate sequence of a point, line, or ring.
func coordsOf(g *geos.Geom) [][]float64 {
	seq := g.CoordSeq()
	if seq == nil {
		return nil
	}
	size := seq.Size()
	coords := make([][]float64, 0, size)
	for i := 0; i < size; i++ {
		coords = append(coords, []float64{seq.X(i), seq.Y(i)})
	}
	return coords
}

// holesOf extracts the interior holes of a (multi)polygon as polygons.
func holesOf(g *geos.Geom) []*geos.Geom {
	var holes []*geos.Geom
	for _, polygon := range polygonalComponents(g) {
		for r := 0; r < polygon.NumInteriorRings(); r++ {
			ring := polygon.InteriorRing(r)
			coords := coordsOf(ring)
			if len(coords) < 4 {
				continue
			}
			hole := geos.NewPolygon([][][]float64{coords})
			if hole != nil && !hole.IsEmpty() {
				holes = append(holes, hole)
			}
		}
	}
	return holes
}

// sharedBoundaryLength measures the length of the linear intersection of two
// interior-disjoint geometries.
func sharedBoundaryLength(a, b *geos.Geom) float64 {
	shared := a.Intersection(b)
	if shared == nil || shared.IsEmpty() {
		return 0
	}
	length := shared.Length()
	return length
}

// numComponents counts the polygonal components of a geometry.
func numComponents(g *geos.Geom) int {
	return len(polygonalComponents(g))
}
