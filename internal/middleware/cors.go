package middleware

import (
	"net/http"
	"strings"

	"github.com/benvon/voice-planner/internal/request"
	"github.com/rs/cors"
)

const defaultOrigin = "http://localhost:3000"

// AllowedOrigins parses a comma-separated origin list, dropping blanks and duplicates
func AllowedOrigins(frontendURL string) []string {
	seen := map[string]bool{}
	var origins []string
	for _, o := range strings.Split(frontendURL, ",") {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		origins = []string{defaultOrigin}
	}
	return origins
}

// CORS answers preflight requests and sets CORS headers for the configured front end origins
func CORS(frontendURL string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   AllowedOrigins(frontendURL),
		AllowCredentials: true,
		MaxAge:           86400,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", request.UserIDHeader},
	})
	return c.Handler
}
