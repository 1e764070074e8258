package utils

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"testing"
)

func TestReadMultiPartForm(t *testing.T) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "regions.json")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	writer.WriteField("key", "GEOID")
	writer.WriteField("saveFile", "true")
	writer.Close()

	r := httptest.NewRequest("POST", "/smart-repair", &body)
	r.Header.Set("Content-Type", writer.FormDataContentType())

	result := ReadMultiPartForm(r, "file")
	if result.File == "" {
		t.Fatal("uploaded file not read")
	}
	if result.Properties.KeyProperty != "GEOID" {
		t.Errorf("KeyProperty = %q, want GEOID", result.Properties.KeyProperty)
	}
	if !result.Properties.SaveFile {
		t.Error("SaveFile flag not parsed")
	}
}

func TestReadMultiPartFormNotMultipart(t *testing.T) {
	r := httptest.NewRequest("POST", "/smart-repair", bytes.NewBufferString("{}"))
	r.Header.Set("Content-Type", "application/json")

	result := ReadMultiPartForm(r, "file")
	if result.File != "" || result.Properties.FeatureCollection != "" {
		t.Errorf("non-multipart request produced %+v", result)
	}
}
