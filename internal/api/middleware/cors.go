package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// local web client dev servers
var devOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:5000",
}

// CORS allows the web client to call the API with its session cookie
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           600,
	})
}

// FrontendCORS builds the allow-list from FRONTEND_URL, which may hold
// several comma-separated origins. Dev servers are added outside production.
func FrontendCORS(frontendURL string, production bool) func(http.Handler) http.Handler {
	var origins []string
	for _, o := range strings.Split(frontendURL, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	if !production {
		origins = append(origins, devOrigins...)
	}
	return CORS(origins)
}
