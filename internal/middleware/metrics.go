package middleware

import "net/http"

// StatusRecorder receives the status code of every response.
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// NewMetricsMiddleware reports each response status to rec.
func NewMetricsMiddleware(rec StatusRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sr, r)
			rec.RecordHTTPStatus(sr.statusCode)
		})
	}
}
