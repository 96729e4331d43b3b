package middleware

import (
	"net/http"

	"livepoll/internal/apperr"
	"livepoll/internal/service"
)

// LimitParticipant throttles participant writes per participant id. Runs after RequireParticipant.
func LimitParticipant(limiter *service.CallerLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && !limiter.Allow(GetParticipantID(r.Context())) {
				WriteError(w, r, apperr.RateLimited("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
