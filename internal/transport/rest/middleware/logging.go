package middleware

import (
	"net/http"
	"time"

	"livepoll/internal/logger"
	"livepoll/internal/metrics"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// RequestLogger tags the request context with its request id, then logs and counts the
// request by route template once it completes. Must run after chi's RequestID.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.WithFields(r.Context(), logrus.Fields{"request_id": chimw.GetReqID(r.Context())})
		rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rw, r.WithContext(ctx))

		status := rw.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routeTemplate(r)
		metrics.IncRequest(r.Method, route, status)

		logger.WithContext(ctx).WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        route,
			"status":      status,
			"bytes":       rw.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request")
	})
}

// routeTemplate keeps metric labels bounded: ids in the path collapse into their template
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
