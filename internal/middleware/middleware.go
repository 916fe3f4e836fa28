package middleware

import (
	"net/http"
	"os"
	"strings"
	"sync"
)

var (
	allowedOnce sync.Once
	allowed     map[string]struct{}
)

// allowedOrigins builds the CORS allow-list from CORS_ORIGINS (comma
// separated). Resolved lazily so .env files loaded in main are honored.
func allowedOrigins() map[string]struct{} {
	allowedOnce.Do(func() {
		allowed = map[string]struct{}{
			"http://localhost:5173": {},
			"http://localhost:8080": {},
		}
		for _, origin := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowed[origin] = struct{}{}
			}
		}
	})
	return allowed
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Echo the origin back only if it's on the allow-list
		if _, ok := allowedOrigins()[origin]; ok {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin") // important for caches
			w.Header().Set("Access-Control-Allow-Methods",
				"GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers",
				"Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
