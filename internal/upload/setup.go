// Package upload exposes the ingestion engine over HTTP: one endpoint for
// uploaded files, one for remote URLs, each answering with per-member
// outcomes.
package upload

import (
	"log"
	"os"
	"strings"

	"github.com/mkeller3/pg-upload-anything-api/internal/db"
	"github.com/mkeller3/pg-upload-anything-api/internal/upload/ingest"
	"github.com/mkeller3/pg-upload-anything-api/internal/upload/loader"
	"github.com/mkeller3/pg-upload-anything-api/internal/upload/remote"
)

// service and client are wired once in Init and read-only afterward.
var (
	service *ingest.Service
	client  *remote.Client
)

func Init() {
	mediaDir := strings.TrimSpace(os.Getenv("MEDIA_DIR"))
	if mediaDir == "" {
		mediaDir = "./media"
	}
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		log.Fatal("Failed to create media dir: ", err)
	}

	catalogPath := strings.TrimSpace(os.Getenv("GEOGRAPHY_CATALOG"))
	if catalogPath == "" {
		catalogPath = "geographies.json"
	}
	catalog, err := ingest.LoadCatalog(catalogPath)
	if err != nil {
		log.Fatal("Failed to load geography catalog: ", err)
	}

	service = &ingest.Service{
		Loader:   loader.New(loader.LoadFromEnv()),
		DB:       db.DB,
		MediaDir: mediaDir,
		Catalog:  catalog,
	}
	client = remote.NewClient(service, mediaDir)

	log.Printf("[upload] loaded %d geography shapes from %s", len(catalog), catalogPath)
}
