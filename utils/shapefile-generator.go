package utils

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
)

type shapeFeatureCollection struct {
	Type     string         `json:"type"`
	Features []shapeFeature `json:"features"`
}

type shapeFeature struct {
	Type       string                 `json:"type"`
	Geometry   shapeGeometry          `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type shapeGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// GenerateShapefileZip packages a repaired FeatureCollection as a zip holding
// both the GeoJSON and a shapefile (.shp/.shx/.dbf). Only polygonal features
// are written to the shapefile; the repair pipeline emits nothing else.
func GenerateShapefileZip(name string, jsonData []byte) ([]byte, error) {
	var fc shapeFeatureCollection
	if err := json.Unmarshal(jsonData, &fc); err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("no features to export")
	}

	var zipBuffer bytes.Buffer
	zipWriter := zip.NewWriter(&zipBuffer)

	jsonFile, err := zipWriter.Create(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("create json entry: %w", err)
	}
	if _, err := jsonFile.Write(jsonData); err != nil {
		return nil, fmt.Errorf("write json entry: %w", err)
	}

	if err := addShapefileToZip(zipWriter, name, fc.Features); err != nil {
		return nil, fmt.Errorf("add shapefile: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return zipBuffer.Bytes(), nil
}

func addShapefileToZip(zipWriter *zip.Writer, name string, features []shapeFeature) error {
	tempDir, err := os.MkdirTemp("", "shapefile_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	shapefilePath := filepath.Join(tempDir, name+".shp")
	if err := writeShapefile(shapefilePath, features); err != nil {
		return err
	}

	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		filePath := strings.TrimSuffix(shapefilePath, ".shp") + ext
		content, err := os.ReadFile(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		entry, err := zipWriter.Create(name + ext)
		if err != nil {
			return err
		}
		if _, err := entry.Write(content); err != nil {
			return err
		}
	}
	return nil
}

func writeShapefile(path string, features []shapeFeature) error {
	shape, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}
	defer shape.Close()

	fields := fieldsFromProperties(features[0].Properties)
	shape.SetFields(fields)

	record := 0
	for i, feature := range features {
		polygon, err := polygonFromGeoJSON(feature.Geometry)
		if err != nil {
			log.Printf("skipping feature %d: %v", i, err)
			continue
		}
		shape.Write(polygon)
		writeAttributes(shape, feature.Properties, fields, record)
		record++
	}
	return nil
}

func polygonFromGeoJSON(geom shapeGeometry) (*shp.Polygon, error) {
	var rings [][][]float64
	switch geom.Type {
	case "Polygon":
		if err := json.Unmarshal(geom.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("polygon coordinates: %w", err)
		}
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(geom.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("multipolygon coordinates: %w", err)
		}
		for _, poly := range polys {
			rings = append(rings, poly...)
		}
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", geom.Type)
	}

	polygon := &shp.Polygon{}
	for _, ring := range rings {
		start := int32(len(polygon.Points))
		for _, coord := range ring {
			if len(coord) >= 2 {
				polygon.Points = append(polygon.Points, shp.Point{X: coord[0], Y: coord[1]})
			}
		}
		if int32(len(polygon.Points)) > start {
			polygon.Parts = append(polygon.Parts, start)
		}
	}
	if len(polygon.Points) == 0 {
		return nil, fmt.Errorf("no coordinates")
	}
	return polygon, nil
}

func fieldsFromProperties(properties map[string]interface{}) []shp.Field {
	keys := make([]string, 0, len(properties))
	for key := range properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]shp.Field, 0, len(keys))
	for _, key := range keys {
		// DBF limits field names to 10 characters.
		fieldName := key
		if len(fieldName) > 10 {
			fieldName = fieldName[:10]
		}
		switch v := properties[key].(type) {
		case string:
			length := len(v)
			if length < 50 {
				length = 50
			}
			if length > 254 {
				length = 254
			}
			fields = append(fields, shp.StringField(fieldName, uint8(length)))
		case float64:
			fields = append(fields, shp.FloatField(fieldName, 15, 5))
		case int, int32, int64:
			fields = append(fields, shp.NumberField(fieldName, 15))
		default:
			fields = append(fields, shp.StringField(fieldName, 100))
		}
	}

	if len(fields) == 0 {
		fields = append(fields, shp.NumberField("ID", 10))
	}
	return fields
}

func writeAttributes(shape *shp.Writer, properties map[string]interface{}, fields []shp.Field, record int) {
	for i, field := range fields {
		fieldName := strings.TrimRight(string(field.Name[:]), "\x00")

		if fieldName == "ID" && len(properties) == 0 {
			shape.WriteAttribute(record, i, strconv.Itoa(record+1))
			continue
		}

		var value interface{}
		found := false
		for propKey, propValue := range properties {
			if strings.EqualFold(propKey, fieldName) ||
				(len(propKey) > 10 && strings.EqualFold(propKey[:10], fieldName)) {
				value = propValue
				found = true
				break
			}
		}

		switch field.Fieldtype {
		case 'N':
			num := 0
			if found {
				switch v := value.(type) {
				case float64:
					num = int(v)
				case int:
					num = v
				case string:
					num, _ = strconv.Atoi(v)
				}
			}
			shape.WriteAttribute(record, i, num)
		case 'F':
			num := 0.0
			if found {
				switch v := value.(type) {
				case float64:
					num = v
				case int:
					num = float64(v)
				case string:
					num, _ = strconv.ParseFloat(v, 64)
				}
			}
			shape.WriteAttribute(record, i, num)
		default:
			text := ""
			if found {
				text = fmt.Sprintf("%v", value)
			}
			shape.WriteAttribute(record, i, text)
		}
	}
}
