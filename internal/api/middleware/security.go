package middleware

import "net/http"

// SecurityHeaders adds response headers appropriate for a JSON API:
// responses must never be sniffed, framed, or cached (they can carry
// credential status).
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
