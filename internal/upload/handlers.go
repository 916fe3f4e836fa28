package upload

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/mkeller3/pg-upload-anything-api/internal/upload/ingest"
	"github.com/mkeller3/pg-upload-anything-api/internal/upload/loader"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type uploadURLRequest struct {
	URL string `json:"url"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// httpError maps the ingestion error taxonomy onto status codes: every
// classified failure is the caller's problem (400), anything unexpected is
// ours (500).
func httpError(w http.ResponseWriter, err error) {
	var validationErr *ingest.ValidationError
	var fetchErr *ingest.FetchError
	var geomErr *ingest.GeometryError
	var loadErr *loader.LoadError

	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &fetchErr),
		errors.As(err, &geomErr),
		errors.As(err, &loadErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("[upload] internal error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// UploadFileHandler ingests one multipart upload. Containers (zip, xlsx)
// answer with one outcome per member; single files answer with a
// one-element list or a 400 when the load was rejected outright.
func UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "There was an error uploading the file. Error: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !validContentType(contentType) {
		http.Error(w, "Please upload a valid file type. "+strings.Join(ingest.ValidFileTypes, " ,"), http.StatusBadRequest)
		return
	}

	fileName := filepath.Base(header.Filename)
	savedPath, err := service.SaveUpload(file, fileName)
	if err != nil {
		http.Error(w, "There was an error uploading the file. Error: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer service.CleanMedia(ingest.CleanString(ingest.BaseName(fileName)))
	defer service.CleanMedia(fileName)

	ctx := r.Context()
	switch {
	case contentType == "application/zip":
		results, err := service.ExpandArchive(ctx, savedPath, fileName)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, results)

	case contentType == xlsxContentType:
		writeJSON(w, service.ExpandWorkbook(ctx, savedPath))

	case contentType == "text/csv":
		result := service.UploadCSVFile(ctx, savedPath, fileName)
		if !result.Status {
			http.Error(w, result.Error, http.StatusBadRequest)
			return
		}
		writeJSON(w, []ingest.Result{result})

	default:
		result := service.UploadGeographicFile(ctx, savedPath, ingest.BaseName(fileName))
		if !result.Status {
			http.Error(w, result.Error, http.StatusBadRequest)
			return
		}
		writeJSON(w, []ingest.Result{result})
	}
}

// UploadURLHandler ingests remote data: ArcGIS services, Google Sheets,
// OGC API - Features, OGC WFS, or a flat file over HTTP.
func UploadURLHandler(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	results, err := client.Upload(r.Context(), req.URL)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, results)
}

func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "UP"})
}

func validContentType(contentType string) bool {
	for _, valid := range ingest.ValidFileTypes {
		if contentType == valid {
			return true
		}
	}
	return false
}
