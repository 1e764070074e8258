package handlers

import (
	"log"

	"github.com/twpayne/go-geos"
)

// RookToQueen demotes rook adjacencies shorter than minLength to queen
// adjacencies. Around each short shared arc it removes a disk slightly wider
// than the arc from every region it cuts, then hands each region back a pie
// wedge from the disk's center to that region's arc of the circle. All the
// regions around the disk then meet at its center, so the short shared
// segment collapses to a single point while every previously existing
// adjacency keeps a positive-length radius.
func RookToQueen(c *Collection, graph *AdjacencyGraph, minLength float64) (*Collection, []Diagnostic, error) {
	if minLength <= 0 {
		return c, nil, nil
	}
	if graph == nil {
		var err error
		graph, err = Adjacencies(c)
		if err != nil {
			return nil, nil, err
		}
	}

	var diags []Diagnostic
	var result *Collection
	err := guard("rook to queen", func() error {
		disks := shortAdjacencyDisks(graph, minLength)
		if len(disks) == 0 {
			result = c
			return nil
		}
		disks = mergeDisks(disks)
		log.Printf("converting %d short rook adjacencies to queen...", len(disks))

		si, err := c.index()
		if err != nil {
			return err
		}

		replacements := make(map[string]*geos.Geom)
		current := func(key string) *geos.Geom {
			if g, ok := replacements[key]; ok {
				return g
			}
			region, _ := c.Get(key)
			return region.Geom
		}

		for _, disk := range disks {
			centroid := disk.Centroid()
			center := coordsOf(centroid)[0]

			for _, candidate := range si.Candidates(disk) {
				geom := current(candidate.Key)
				if !geom.Intersects(disk) {
					continue
				}

				carved := keepPolygonal(geom.Difference(disk))
				for _, wedge := range wedgesFor(carved, disk, center) {
					merged := keepPolygonal(carved.Union(wedge))
					carved = merged
				}

				if !carved.IsValid() {
					repaired := keepPolygonal(carved.MakeValid())
					if repaired == nil || !repaired.IsValid() || repaired.IsEmpty() {
						diags = append(diags, Diagnostic{
							Kind:   DiagRepairFailure,
							Keys:   []string{candidate.Key},
							Detail: "adjacency conversion produced an invalid polygon",
						})
						continue
					}
					carved = repaired
				}
				replacements[candidate.Key] = carved
			}
		}
		result = c.withGeometries(replacements)

		// Where an arc of a disk faced open space (map edge or kept hole)
		// there is no wedge, which leaves a hole inside the disk. Fill the
		// single-borderer ones; multi-borderer leftovers stay open so the
		// conversion is not undone.
		gaps, err := FindGaps(result)
		if err != nil {
			return err
		}
		patches := make(map[string]*geos.Geom)
		for _, gap := range gaps {
			inDisk := false
			for _, disk := range disks {
				if intersectionArea(gap.Geom, disk) > 0 {
					inDisk = true
					break
				}
			}
			if inDisk && len(gap.Borderers) == 1 {
				key := gap.Borderers[0]
				region, _ := result.Get(key)
				base := region.Geom
				if prev, ok := patches[key]; ok {
					base = prev
				}
				patches[key] = keepPolygonal(base.Union(gap.Geom))
			}
		}
		if len(patches) > 0 {
			result = result.withGeometries(patches)
		}
		return nil
	})
	if err != nil {
		return nil, diags, err
	}
	return result, diags, nil
}

// shortAdjacencyDisks builds one disk per connected component of each rook
// edge shorter than minLength, centered on the component's chord midpoint
// with radius 0.6 times its length, just wide enough to swallow the arc.
func shortAdjacencyDisks(graph *AdjacencyGraph, minLength float64) []*geos.Geom {
	var disks []*geos.Geom
	for _, edge := range graph.Edges {
		if !edge.Rook() || edge.Length >= minLength {
			continue
		}
		merged := edge.Shared.LineMerge()
		for _, line := range lineComponents(merged) {
			coords := coordsOf(line)
			if len(coords) < 2 {
				continue
			}
			first, last := coords[0], coords[len(coords)-1]
			center := geos.NewPoint([]float64{(first[0] + last[0]) / 2, (first[1] + last[1]) / 2})
			disk := center.Buffer(0.6*line.Length(), 8)
			disks = append(disks, disk)
		}
	}
	return disks
}

// mergeDisks collapses intersecting disks into convex blobs so the wedge
// construction sees each cluster exactly once. Convex hulls can newly
// intersect each other, so hull-taking repeats until the pieces are
// pairwise disjoint.
func mergeDisks(disks []*geos.Geom) []*geos.Geom {
	polys := disks
	for {
		union := CascadedUnion(polys)
		components := polygonalComponents(union)
		hulls := make([]*geos.Geom, 0, len(components))
		for _, component := range components {
			hulls = append(hulls, component.ConvexHull())
		}

		if len(hulls) == 1 {
			return hulls
		}
		check := CascadedUnion(hulls)
		disjoint := numComponents(check) == len(hulls)
		if disjoint {
			return hulls
		}
		polys = hulls
	}
}

// wedgesFor builds the pie wedges for one region around one disk: one wedge
// per arc where the carved region still touches the disk.
func wedgesFor(carved, disk *geos.Geom, center []float64) []*geos.Geom {
	contact := carved.Intersection(disk)
	merged := contact.LineMerge()

	var wedges []*geos.Geom
	for _, arc := range lineComponents(merged) {
		coords := coordsOf(arc)
		if len(coords) < 2 {
			continue
		}
		ring := append(coords, center, coords[0])
		wedge := geos.NewPolygon([][][]float64{ring})
		if wedge == nil || wedge.IsEmpty() || !wedge.IsValid() {
			continue
		}
		wedges = append(wedges, wedge)
	}
	return wedges
}
