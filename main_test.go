package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const doctorFixture = `{
	"key": "id",
	"collection": {
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {"id": "a"},
			 "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
			{"type": "Feature", "properties": {"id": "b"},
			 "geometry": {"type": "Polygon", "coordinates": [[[1,0],[2,0],[2,1],[1,1],[1,0]]]}}
		]
	}
}`

func TestDoctorHandler(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/doctor", strings.NewReader(doctorFixture))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	doctorHandler(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	var report struct {
		OK       bool `json:"ok"`
		Overlaps int  `json:"overlap_count"`
		Gaps     int  `json:"gap_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("response is not a report: %v", err)
	}
	if !report.OK || report.Overlaps != 0 || report.Gaps != 0 {
		t.Errorf("clean tiling reported %+v", report)
	}
}

func TestDoctorHandlerBadPayload(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/doctor", strings.NewReader("not geojson"))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	doctorHandler(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
