package middleware

import (
	"encoding/json"
	"net/http"

	"livepoll/internal/apperr"
	"livepoll/internal/logger"
)

// WriteJSON writes data with the given status
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError maps err onto its status code and the {"error","message"} body. Internal
// errors are logged and their cause is not exposed.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.FromError(err)
	status := appErr.StatusCode()
	if status >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	WriteJSON(w, status, appErr)
}
