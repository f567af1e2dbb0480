package middleware

import (
	"log"
	"net/http"

	"blockrand/internal/randomization"
)

// VerifyBalance rescans the history after every mutating request and logs
// if the incremental balance counts have drifted from it
func VerifyBalance(tracker *randomization.Tracker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			if tracker == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
				return
			}
			if err := tracker.Verify(); err != nil {
				log.Printf("[VerifyBalance] %s %s: %v", r.Method, r.URL.Path, err)
			}
		})
	}
}
