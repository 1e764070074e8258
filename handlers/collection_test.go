package handlers

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/twpayne/go-geos"
)

func rect(t *testing.T, minX, minY, maxX, maxY float64) *geos.Geom {
	t.Helper()
	g := geos.NewPolygon([][][]float64{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
	if g == nil || g.IsEmpty() {
		t.Fatalf("failed to build rectangle (%v, %v, %v, %v)", minX, minY, maxX, maxY)
	}
	return g
}

func square(t *testing.T, x, y, size float64) *geos.Geom {
	t.Helper()
	return rect(t, x, y, x+size, y+size)
}

type testRegion struct {
	key  string
	geom *geos.Geom
}

func newTestCollection(t *testing.T, regions []testRegion) *Collection {
	t.Helper()
	c := NewCollection()
	for _, region := range regions {
		if err := c.Add(region.key, region.geom, nil); err != nil {
			t.Fatalf("Add(%q): %v", region.key, err)
		}
	}
	return c
}

// grid2x2 builds four unit squares tiling [0,2] x [0,2].
func grid2x2(t *testing.T) *Collection {
	t.Helper()
	return newTestCollection(t, []testRegion{
		{"a", square(t, 0, 0, 1)},
		{"b", square(t, 1, 0, 1)},
		{"c", square(t, 0, 1, 1)},
		{"d", square(t, 1, 1, 1)},
	})
}

// ringAroundCenter builds the eight unit squares of a 3x3 grid with the
// center cell missing.
func ringAroundCenter(t *testing.T) *Collection {
	t.Helper()
	c := NewCollection()
	keys := []string{"sw", "s", "se", "w", "e", "nw", "n", "ne"}
	i := 0
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if x == 1 && y == 1 {
				continue
			}
			if err := c.Add(keys[i], square(t, float64(x), float64(y), 1), nil); err != nil {
				t.Fatalf("Add(%q): %v", keys[i], err)
			}
			i++
		}
	}
	return c
}

func totalArea(c *Collection) float64 {
	total := 0.0
	for i := 0; i < c.Len(); i++ {
		total += c.Region(i).Area()
	}
	return total
}

func approx(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestCollectionAddDuplicateKey(t *testing.T) {
	c := NewCollection()
	if err := c.Add("a", square(t, 0, 0, 1), nil); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := c.Add("a", square(t, 1, 0, 1), nil); err == nil {
		t.Fatal("expected duplicate key to be rejected")
	}
}

func TestCollectionAddRejectsEmpty(t *testing.T) {
	c := NewCollection()
	if err := c.Add("nil", nil, nil); err == nil {
		t.Fatal("expected nil geometry to be rejected")
	}
	if err := c.Add("empty", geos.NewEmptyPolygon(), nil); err == nil {
		t.Fatal("expected empty geometry to be rejected")
	}
}

func TestCollectionOrderAndLookup(t *testing.T) {
	c := grid2x2(t)
	if c.Len() != 4 {
		t.Fatalf("Len = %d, want 4", c.Len())
	}
	want := []string{"a", "b", "c", "d"}
	for i, key := range c.Keys() {
		if key != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, key, want[i])
		}
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("Get(c) not found")
	}
	if _, ok := c.Get("z"); ok {
		t.Error("Get(z) found a region that was never added")
	}
}

func TestCollectionUnion(t *testing.T) {
	c := grid2x2(t)
	union := c.Union()
	if !approx(union.Area(), 4, 1e-9) {
		t.Errorf("union area = %v, want 4", union.Area())
	}
}

func TestCollectionBounds(t *testing.T) {
	c := grid2x2(t)
	bounds := c.Bounds()
	if bounds == nil {
		t.Fatal("Bounds returned nil")
	}
	if bounds.MinX != 0 || bounds.MinY != 0 || bounds.MaxX != 2 || bounds.MaxY != 2 {
		t.Errorf("bounds = %+v, want (0, 0, 2, 2)", bounds)
	}
}

func TestCollectionFromGeoJSON(t *testing.T) {
	payload := []byte(`{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {"GEOID": "001"},
			 "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
			{"type": "Feature", "properties": {"GEOID": "002"},
			 "geometry": {"type": "Polygon", "coordinates": [[[1,0],[2,0],[2,1],[1,1],[1,0]]]}}
		]
	}`)
	c, errs := CollectionFromGeoJSON(payload, "GEOID")
	if len(errs) != 0 {
		t.Fatalf("ingestion errors: %v", errs)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("001"); !ok {
		t.Error("region 001 missing")
	}
	region, _ := c.Get("002")
	if region.Properties["GEOID"] != "002" {
		t.Errorf("properties not carried through: %v", region.Properties)
	}
}

func TestCollectionFromGeoJSONPositionalKeys(t *testing.T) {
	payload := []byte(`{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {},
			 "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}
		]
	}`)
	c, errs := CollectionFromGeoJSON(payload, "")
	if len(errs) != 0 {
		t.Fatalf("ingestion errors: %v", errs)
	}
	if _, ok := c.Get("0"); !ok {
		t.Error("expected positional key 0")
	}
}

func TestCollectionGeoJSONRoundTrip(t *testing.T) {
	c := newTestCollection(t, []testRegion{
		{"a", square(t, 0, 0, 1)},
		{"b", square(t, 1, 0, 1)},
	})
	data, err := c.GeoJSON()
	if err != nil {
		t.Fatalf("GeoJSON: %v", err)
	}

	var fc map[string]interface{}
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if fc["type"] != "FeatureCollection" {
		t.Errorf("type = %v, want FeatureCollection", fc["type"])
	}

	back, errs := CollectionFromGeoJSON(data, "key")
	if len(errs) != 0 {
		t.Fatalf("re-ingestion errors: %v", errs)
	}
	if back.Len() != 2 {
		t.Fatalf("round trip Len = %d, want 2", back.Len())
	}
	if !approx(totalArea(back), 2, 1e-9) {
		t.Errorf("round trip total area = %v, want 2", totalArea(back))
	}
}
