package middleware

import (
	"net/http"
	"time"
)

// HTTPObserver records finished requests.
type HTTPObserver interface {
	ObserveHTTP(method, path string, status int, elapsed time.Duration)
}

type HTTPMetrics struct {
	observer HTTPObserver
}

func NewHTTPMetrics(observer HTTPObserver) *HTTPMetrics {
	return &HTTPMetrics{observer: observer}
}

// Apply labels requests by the ServeMux pattern that matched them. It must wrap
// the mux directly: the mux records the pattern on the *http.Request it is
// given. Unmatched requests are labelled "unmatched".
func (m *HTTPMetrics) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.observer.ObserveHTTP(r.Method, path, rec.status, time.Since(start))
	})
}
