package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// NewCORSMiddleware returns a CORS middleware for a comma-separated list of
// allowed origins. Wildcards are not used so the Authorization header can be
// sent with credentials. Preflight requests are answered with 204.
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:       origins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Authorization", "Content-Type"},
		AllowCredentials:     true,
		MaxAge:               86400,
		OptionsSuccessStatus: http.StatusNoContent,
	})
	return c.Handler
}
