package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/mggg/maup/handlers"
	"github.com/mggg/maup/utils"
)

type assignRequest struct {
	Sources json.RawMessage `json:"sources"`
	Targets json.RawMessage `json:"targets"`
	Key     string          `json:"key"`
}

type intersectionsRequest struct {
	Sources      json.RawMessage `json:"sources"`
	Targets      json.RawMessage `json:"targets"`
	Key          string          `json:"key"`
	MinArea      float64         `json:"min_area"`
	KeepBoundary bool            `json:"keep_boundary"`
}

type repairRequest struct {
	Collection        json.RawMessage `json:"collection"`
	Key               string          `json:"key"`
	RelativeThreshold *float64        `json:"relative_threshold"`
	Snapped           bool            `json:"snapped"`
	GridSize          float64         `json:"grid_size"`
	FillGaps          *bool           `json:"fill_gaps"`
	FillGapsThreshold *float64        `json:"fill_gaps_threshold"`
	NestWithin        json.RawMessage `json:"nest_within"`
	MinRookLength     float64         `json:"min_rook_length"`
	HolesToKeep       json.RawMessage `json:"holes_to_keep"`
}

func main() {
	log.Printf("=== Starting Spatial Assignment and Repair Server ===")

	// Register handlers
	http.HandleFunc("/assign", assignHandler)
	http.HandleFunc("/intersections", intersectionsHandler)
	http.HandleFunc("/adjacencies", adjacenciesHandler)
	http.HandleFunc("/doctor", doctorHandler)
	http.HandleFunc("/quick-repair", quickRepairHandler)
	http.HandleFunc("/smart-repair", smartRepairHandler)

	log.Printf("Registered all HTTP handlers")

	// Start the HTTP server on port 8080
	log.Printf("Server is listening on port 8080...")
	fmt.Println("Server is listening on port 8080...")

	err := http.ListenAndServe(":8080", nil)
	if err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func readBody(w http.ResponseWriter, r *http.Request) string {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method, only POST allowed", http.StatusMethodNotAllowed)
		return ""
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusInternalServerError)
		return ""
	}
	defer r.Body.Close()

	return string(body)
}

// readCollection parses a GeoJSON FeatureCollection, logging per-feature
// ingestion failures. Returns nil only when nothing could be ingested.
func readCollection(payload []byte, keyProperty string) *handlers.Collection {
	collection, errs := handlers.CollectionFromGeoJSON(payload, keyProperty)
	for _, err := range errs {
		log.Printf("skipped feature: %v", err)
	}
	if collection == nil || collection.Len() == 0 {
		return nil
	}
	return collection
}

func assignHandler(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("PANIC recovered in assignHandler: %v", rec)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}()

	log.Printf("=== Assignment request received ===")
	var request assignRequest
	if err := json.Unmarshal([]byte(readBody(w, r)), &request); err != nil {
		http.Error(w, "ERROR: malformed request body", http.StatusBadRequest)
		return
	}

	sources := readCollection(request.Sources, request.Key)
	targets := readCollection(request.Targets, request.Key)
	if sources == nil || targets == nil {
		http.Error(w, "ERROR: both sources and targets are required", http.StatusBadRequest)
		return
	}

	assignment, diags, err := handlers.Assign(sources, targets)
	if err != nil {
		http.Error(w, fmt.Sprintf("ERROR: assignment failed: %v", err), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"assignment":  assignment.ByKey,
		"unassigned":  assignment.Unassigned(sources),
		"ambiguous":   assignment.Ambiguous,
		"diagnostics": diagnosticStrings(diags),
	}
	jsonResponse, _ := json.Marshal(response)
	log.Printf("Assigned %d of %d sources. Sending response", len(assignment.ByKey), sources.Len())
	sendResponse(w, jsonResponse)
}

func intersectionsHandler(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("PANIC recovered in intersectionsHandler: %v", rec)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}()

	log.Printf("=== Intersections request received ===")
	var request intersectionsRequest
	if err := json.Unmarshal([]byte(readBody(w, r)), &request); err != nil {
		http.Error(w, "ERROR: malformed request body", http.StatusBadRequest)
		return
	}

	sources := readCollection(request.Sources, request.Key)
	targets := readCollection(request.Targets, request.Key)
	if sources == nil || targets == nil {
		http.Error(w, "ERROR: both sources and targets are required", http.StatusBadRequest)
		return
	}

	cutoff := handlers.MinArea(request.MinArea)
	if request.KeepBoundary {
		cutoff = handlers.KeepBoundary()
	}
	pieces, err := handlers.Intersections(sources, targets, cutoff)
	if err != nil {
		http.Error(w, fmt.Sprintf("ERROR: intersections failed: %v", err), http.StatusInternalServerError)
		return
	}

	features := make([]map[string]interface{}, 0, len(pieces))
	for _, piece := range pieces {
		features = append(features, map[string]interface{}{
			"type":     "Feature",
			"geometry": json.RawMessage(piece.Geom.ToGeoJSON(-1)),
			"properties": map[string]interface{}{
				"source": piece.SourceKey,
				"target": piece.TargetKey,
				"area":   piece.Area,
			},
		})
	}
	jsonResponse, _ := json.Marshal(map[string]interface{}{
		"type":     "FeatureCollection",
		"features": features,
	})
	log.Printf("Computed %d intersection piece(s). Sending response", len(pieces))
	sendResponse(w, jsonResponse)
}

func adjacenciesHandler(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("PANIC recovered in adjacenciesHandler: %v", rec)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}()

	log.Printf("=== Adjacency request received ===")
	collection, _ := readCollectionRequest(w, r)
	if collection == nil {
		return
	}

	graph, err := handlers.Adjacencies(collection)
	if err != nil {
		http.Error(w, fmt.Sprintf("ERROR: adjacency computation failed: %v", err), http.StatusInternalServerError)
		return
	}

	type edgeJSON struct {
		A      string  `json:"a"`
		B      string  `json:"b"`
		Length float64 `json:"length"`
		Rook   bool    `json:"rook"`
	}
	edges := make([]edgeJSON, 0, len(graph.Edges))
	for _, edge := range graph.Edges {
		edges = append(edges, edgeJSON{A: edge.A, B: edge.B, Length: edge.Length, Rook: edge.Rook()})
	}
	jsonResponse, _ := json.Marshal(map[string]interface{}{
		"edges":    edges,
		"overlaps": diagnosticStrings(graph.Overlaps),
	})
	log.Printf("Found %d adjacency edge(s). Sending response", len(edges))
	sendResponse(w, jsonResponse)
}

func doctorHandler(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("PANIC recovered in doctorHandler: %v", rec)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}()

	log.Printf("=== Doctor request received ===")
	collection, _ := readCollectionRequest(w, r)
	if collection == nil {
		return
	}

	report := handlers.Doctor(collection)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(report)
}

func quickRepairHandler(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("PANIC recovered in quickRepairHandler: %v", rec)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}()

	log.Printf("=== Quick repair request received ===")
	request, collection := readRepairRequest(w, r)
	if collection == nil {
		return
	}

	repaired, diags, err := handlers.QuickRepair(collection, request.RelativeThreshold)
	if err != nil {
		http.Error(w, fmt.Sprintf("ERROR: repair failed: %v", err), http.StatusInternalServerError)
		return
	}

	geoJSON, err := repaired.GeoJSON()
	if err != nil {
		http.Error(w, fmt.Sprintf("ERROR: encoding failed: %v", err), http.StatusInternalServerError)
		return
	}
	jsonResponse, _ := json.Marshal(map[string]interface{}{
		"collection":  json.RawMessage(geoJSON),
		"diagnostics": diagnosticStrings(diags),
	})
	log.Printf("Quick repair complete. Sending response")
	sendResponse(w, jsonResponse)
}

func smartRepairHandler(w http.ResponseWriter, r *http.Request) {
	// Add panic recovery to prevent server crashes
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("PANIC recovered in smartRepairHandler: %v", rec)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}()

	log.Printf("=== Smart repair request received ===")
	log.Printf("Content-Type: %s", r.Header.Get("Content-Type"))
	request, collection := readRepairRequest(w, r)
	if collection == nil {
		return
	}

	opts := handlers.SmartRepairOptions{
		Snapped:           request.Snapped,
		GridSize:          request.GridSize,
		RelativeThreshold: request.RelativeThreshold,
		FillGaps:          request.FillGaps == nil || *request.FillGaps,
		FillGapsThreshold: request.FillGapsThreshold,
		MinRookLength:     request.MinRookLength,
	}
	if len(request.NestWithin) > 0 {
		opts.NestWithin = readCollection(request.NestWithin, request.Key)
	}
	if len(request.HolesToKeep) > 0 {
		opts.HolesToKeep = readCollection(request.HolesToKeep, request.Key)
	}

	repaired, diags, err := handlers.SmartRepair(collection, opts)
	if err != nil {
		http.Error(w, fmt.Sprintf("ERROR: repair failed: %v", err), http.StatusInternalServerError)
		return
	}
	for _, diag := range diags {
		log.Printf("diagnostic: %s", diag)
	}

	geoJSON, err := repaired.GeoJSON()
	if err != nil {
		http.Error(w, fmt.Sprintf("ERROR: encoding failed: %v", err), http.StatusInternalServerError)
		return
	}
	zipData, err := utils.GenerateShapefileZip("repaired_regions", geoJSON)
	if err != nil {
		http.Error(w, fmt.Sprintf("ERROR: shapefile generation failed: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("Smart repair complete. Sending zip response")
	sendZipResponse(w, zipData)
}

// readCollectionRequest reads one collection from either a JSON body
// ({"collection": ..., "key": ...}, or a bare FeatureCollection) or a
// multipart form upload.
func readCollectionRequest(w http.ResponseWriter, r *http.Request) (*handlers.Collection, string) {
	request, collection := readRepairRequest(w, r)
	if collection == nil {
		return nil, ""
	}
	return collection, request.Key
}

func readRepairRequest(w http.ResponseWriter, r *http.Request) (repairRequest, *handlers.Collection) {
	var request repairRequest

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "multipart/") {
		multiPartRequest := utils.ReadMultiPartForm(r, "file")
		request.Key = multiPartRequest.Properties.KeyProperty

		payload := multiPartRequest.File
		if payload == "" {
			if multiPartRequest.Properties.FeatureCollection != "" {
				payload = multiPartRequest.Properties.FeatureCollection
			} else if multiPartRequest.Properties.FilePath != "" {
				payload = readFile(multiPartRequest.Properties)
			} else {
				http.Error(w, "ERROR: No suitable files found", http.StatusBadRequest)
				return request, nil
			}
		}
		request.Collection = json.RawMessage(payload)
	} else {
		body := readBody(w, r)
		if body == "" {
			return request, nil
		}
		if err := json.Unmarshal([]byte(body), &request); err != nil || len(request.Collection) == 0 {
			// Accept a bare FeatureCollection too.
			request.Collection = json.RawMessage(body)
		}
	}

	collection := readCollection(request.Collection, request.Key)
	if collection == nil {
		http.Error(w, "ERROR: no ingestible features in request", http.StatusBadRequest)
		return request, nil
	}
	return request, collection
}

func diagnosticStrings(diags []handlers.Diagnostic) []string {
	out := make([]string, 0, len(diags))
	for _, diag := range diags {
		out = append(out, diag.String())
	}
	return out
}

func readFile(properties utils.Properties) string {
	file, _ := os.ReadFile(properties.FilePath)

	return string(file)
}

func sendResponse(w http.ResponseWriter, response []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(response)
}

func sendZipResponse(w http.ResponseWriter, zipData []byte) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=\"repaired_regions.zip\"")
	w.WriteHeader(http.StatusOK)
	w.Write(zipData)
}
