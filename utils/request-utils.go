package utils

import (
	"io"
	"mime/multipart"
	"net/http"
)

// MultipartResult holds the payload of a multipart repair request: either an
// uploaded file or inline form values.
type MultipartResult struct {
	File       string
	Properties Properties
}

type Properties struct {
	FilePath          string
	SaveFile          bool
	FeatureCollection string
	KeyProperty       string
}

const maxMultipartMemory = 512 << 20

// ReadMultiPartForm extracts the uploaded file (under fileKey) and the known
// form values from a multipart request.
func ReadMultiPartForm(r *http.Request, fileKey string) MultipartResult {
	result := MultipartResult{}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil || r.MultipartForm == nil {
		return result
	}

	var fileHeader *multipart.FileHeader
	if headers := r.MultipartForm.File[fileKey]; len(headers) > 0 {
		fileHeader = headers[0]
	}

	for key, value := range r.MultipartForm.Value {
		if len(value) == 0 {
			continue
		}
		switch key {
		case "filepath":
			result.Properties.FilePath = value[0]
		case "saveFile":
			result.Properties.SaveFile = value[0] == "true"
		case "featureCollection":
			result.Properties.FeatureCollection = value[0]
		case "key":
			result.Properties.KeyProperty = value[0]
		}
	}

	if fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			return result
		}
		defer file.Close()
		if fullFile, err := io.ReadAll(file); err == nil {
			result.File = string(fullFile)
		}
	}

	return result
}
