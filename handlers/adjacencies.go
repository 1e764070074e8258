package handlers

import (
	"log"
	"runtime"

	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

// AdjacencyEdge is an unordered pair of regions whose boundaries touch. A
// positive shared length is rook adjacency; zero length (isolated points) is
// queen.
type AdjacencyEdge struct {
	A      string
	B      string
	Length float64
	Shared *geos.Geom
}

func (e AdjacencyEdge) Queen() bool {
	return e.Length == 0
}

func (e AdjacencyEdge) Rook() bool {
	return e.Length > 0
}

// AdjacencyGraph is the contiguity graph of a collection. Overlaps carries a
// diagnostic per pair of regions whose interiors intersect; that is evidence
// of topological problems in the input.
type AdjacencyGraph struct {
	Edges    []AdjacencyEdge
	Overlaps []Diagnostic

	neighbors map[string][]int
}

// Neighbors returns the edges incident to the given region.
func (g *AdjacencyGraph) Neighbors(key string) []AdjacencyEdge {
	edges := make([]AdjacencyEdge, 0, len(g.neighbors[key]))
	for _, i := range g.neighbors[key] {
		edges = append(edges, g.Edges[i])
	}
	return edges
}

// Edge returns the edge between two regions, if any.
func (g *AdjacencyGraph) Edge(a, b string) (AdjacencyEdge, bool) {
	for _, i := range g.neighbors[a] {
		edge := g.Edges[i]
		if edge.A == b || edge.B == b {
			return edge, true
		}
	}
	return AdjacencyEdge{}, false
}

type adjacencyResult struct {
	edges    []AdjacencyEdge
	overlaps []Diagnostic
}

// Adjacencies builds the adjacency graph of a collection: one edge per pair
// of regions whose boundaries intersect, with the shared boundary geometry
// and its length. Self-pairs are excluded.
func Adjacencies(c *Collection) (*AdjacencyGraph, error) {
	si, err := c.index()
	if err != nil {
		return nil, err
	}

	pp := utils.NewParallelProcessor(runtime.NumCPU())
	results := pp.ProcessIndexed(c.Len(), func(i int) interface{} {
		region := c.Region(i)
		boundary := region.Geom.Boundary()

		var result adjacencyResult
		for _, candidate := range si.Candidates(region.Geom) {
			// Each unordered pair once.
			if candidate.Index <= i {
				continue
			}
			if !region.Geom.Intersects(candidate.Geom) {
				continue
			}

			otherBoundary := candidate.Geom.Boundary()
			shared := boundary.Intersection(otherBoundary)
			if shared == nil || shared.IsEmpty() {
				continue
			}

			result.edges = append(result.edges, AdjacencyEdge{
				A:      region.Key,
				B:      candidate.Key,
				Length: shared.Length(),
				Shared: shared,
			})

			if area := intersectionArea(region.Geom, candidate.Geom); area > 0 {
				result.overlaps = append(result.overlaps, Diagnostic{
					Kind: DiagUnresolvableOverlap,
					Keys: []string{region.Key, candidate.Key},
					Area: area,
				})
			}
		}
		return result
	}, "Computing adjacencies")

	graph := &AdjacencyGraph{neighbors: make(map[string][]int)}
	for _, raw := range results {
		result := raw.(adjacencyResult)
		for _, edge := range result.edges {
			graph.neighbors[edge.A] = append(graph.neighbors[edge.A], len(graph.Edges))
			graph.neighbors[edge.B] = append(graph.neighbors[edge.B], len(graph.Edges))
			graph.Edges = append(graph.Edges, edge)
		}
		graph.Overlaps = append(graph.Overlaps, result.overlaps...)
	}

	if len(graph.Overlaps) > 0 {
		log.Printf("found %d overlapping pairs while computing adjacencies; this could be evidence of topological problems", len(graph.Overlaps))
	}
	return graph, nil
}
