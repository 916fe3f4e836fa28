package upload

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Post("/upload_file", UploadFileHandler)
	r.Post("/upload_url", UploadURLHandler)
	r.Get("/health_check", HealthCheckHandler)

	return r
}
