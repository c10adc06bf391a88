package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS applies the allowed origin policy. origins is the comma-separated
// VEVURN_CORS_ORIGINS value.
func CORS(origins string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   splitOrigins(origins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

func splitOrigins(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
