package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/mkeller3/pg-upload-anything-api/internal/db"
	"github.com/mkeller3/pg-upload-anything-api/internal/middleware"
	"github.com/mkeller3/pg-upload-anything-api/internal/upload"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")
	db.Connect()
	upload.Init()

	port := os.Getenv("PORT")
	if port == "" {
		port = "5050"
	}

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)
	r.Get("/", RootHandler)

	r.Mount("/api/v1", upload.SetupRoutes())

	fmt.Println("Server listening on port :" + port + "...")

	http.ListenAndServe("0.0.0.0:"+port, r)
}
