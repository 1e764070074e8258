package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

// Region is a polygonal geometry with a stable key within its collection.
// Regions are value objects: repair stages never mutate a region's geometry,
// they build new regions.
type Region struct {
	Key        string
	Geom       *geos.Geom
	Properties map[string]interface{}
}

func (r Region) Area() float64 {
	return r.Geom.Area()
}

func (r Region) Perimeter() float64 {
	return r.Geom.Length()
}

// Collection is an ordered, key-unique set of regions. A single collection
// can act as "sources" or "targets" depending on the operation.
type Collection struct {
	regions []Region
	byKey   map[string]int
}

func NewCollection() *Collection {
	return &Collection{byKey: make(map[string]int)}
}

// Add appends a region. Nil or empty geometries and duplicate keys are
// rejected; an invalid geometry gets one make-valid attempt, else the add
// fails closed.
func (c *Collection) Add(key string, geom *geos.Geom, properties map[string]interface{}) error {
	if _, exists := c.byKey[key]; exists {
		return fmt.Errorf("duplicate region key %q", key)
	}
	if geom == nil || geom.IsEmpty() {
		return &InvalidGeometryError{Key: key, Reason: "nil or empty geometry"}
	}
	if !geom.IsValid() {
		reason := geom.IsValidReason()
		repaired := geom.MakeValidWithParams(geos.MakeValidLinework, geos.MakeValidDiscardCollapsed)
		repaired = keepPolygonal(repaired)
		if repaired == nil || repaired.IsEmpty() || !repaired.IsValid() {
			return &InvalidGeometryError{Key: key, Reason: reason}
		}
		log.Printf("made region %q valid (%s)", key, reason)
		geom = repaired
	}
	if typeID := geom.TypeID(); typeID != geos.TypeIDPolygon && typeID != geos.TypeIDMultiPolygon {
		geom = keepPolygonal(geom)
		if geom == nil || geom.IsEmpty() {
			return &InvalidGeometryError{Key: key, Reason: "no polygonal component"}
		}
	}

	c.byKey[key] = len(c.regions)
	c.regions = append(c.regions, Region{Key: key, Geom: geom, Properties: properties})
	return nil
}

func (c *Collection) Len() int {
	return len(c.regions)
}

func (c *Collection) Region(i int) Region {
	return c.regions[i]
}

func (c *Collection) Get(key string) (Region, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Region{}, false
	}
	return c.regions[i], true
}

func (c *Collection) Keys() []string {
	keys := make([]string, len(c.regions))
	for i, region := range c.regions {
		keys[i] = region.Key
	}
	return keys
}

// Bounds returns the bounding box of the whole collection.
func (c *Collection) Bounds() *geos.Box2D {
	var bounds *geos.Box2D
	for _, region := range c.regions {
		b := region.Geom.Bounds()
		if b == nil {
			continue
		}
		if bounds == nil {
			bounds = b
			continue
		}
		if b.MinX < bounds.MinX {
			bounds.MinX = b.MinX
		}
		if b.MinY < bounds.MinY {
			bounds.MinY = b.MinY
		}
		if b.MaxX > bounds.MaxX {
			bounds.MaxX = b.MaxX
		}
		if b.MaxY > bounds.MaxY {
			bounds.MaxY = b.MaxY
		}
	}
	return bounds
}

// Union returns the union of every region in the collection.
func (c *Collection) Union() *geos.Geom {
	geoms := make([]*geos.Geom, len(c.regions))
	for i, region := range c.regions {
		geoms[i] = region.Geom
	}
	return CascadedUnion(geoms)
}

// index builds a bounding-box index over the collection. Zero-area regions
// surface as InvalidGeometryError here.
func (c *Collection) index() (*utils.SpatialIndex, error) {
	cellSize := utils.CellSizeForBounds(c.Bounds(), c.Len())
	si := utils.NewSpatialIndex(cellSize)
	for _, region := range c.regions {
		if err := si.Add(region.Key, region.Geom); err != nil {
			return nil, &InvalidGeometryError{Key: region.Key, Reason: err.Error()}
		}
	}
	return si, nil
}

// withGeometries builds a new collection with the same keys, order, and
// properties but replacement geometries. Keys missing from geoms keep their
// current geometry.
func (c *Collection) withGeometries(geoms map[string]*geos.Geom) *Collection {
	out := NewCollection()
	for _, region := range c.regions {
		geom := region.Geom
		if replacement, ok := geoms[region.Key]; ok && replacement != nil {
			geom = replacement
		}
		out.byKey[region.Key] = len(out.regions)
		out.regions = append(out.regions, Region{
			Key:        region.Key,
			Geom:       geom,
			Properties: region.Properties,
		})
	}
	return out
}

type geoJSONFeature struct {
	Type       string                 `json:"type"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

// CollectionFromGeoJSON parses a GeoJSON FeatureCollection into a Collection.
// Region keys come from the keyProperty of each feature, falling back to the
// feature's position. Per-feature ingestion failures are collected, not
// fatal.
func CollectionFromGeoJSON(data []byte, keyProperty string) (*Collection, []error) {
	var fc geoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, []error{fmt.Errorf("parse feature collection: %w", err)}
	}

	collection := NewCollection()
	var errs []error
	for i, feature := range fc.Features {
		key := strconv.Itoa(i)
		if keyProperty != "" {
			if v, ok := feature.Properties[keyProperty]; ok {
				key = fmt.Sprintf("%v", v)
			}
		}
		geom, err := geos.NewGeomFromGeoJSON(string(feature.Geometry))
		if err != nil {
			errs = append(errs, &InvalidGeometryError{Key: key, Reason: err.Error()})
			continue
		}
		if err := collection.Add(key, geom, feature.Properties); err != nil {
			errs = append(errs, err)
		}
	}
	return collection, errs
}

// GeoJSON encodes the collection back to a FeatureCollection.
func (c *Collection) GeoJSON() ([]byte, error) {
	fc := geoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]geoJSONFeature, 0, len(c.regions)),
	}
	for _, region := range c.regions {
		props := region.Properties
		if props == nil {
			props = map[string]interface{}{"key": region.Key}
		}
		fc.Features = append(fc.Features, geoJSONFeature{
			Type:       "Feature",
			Geometry:   json.RawMessage(region.Geom.ToGeoJSON(-1)),
			Properties: props,
		})
	}
	return json.Marshal(fc)
}
