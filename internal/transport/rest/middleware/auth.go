package middleware

import (
	"context"
	"net/http"
	"strings"

	"livepoll/internal/apperr"
	"livepoll/internal/logger"
	"livepoll/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	ProfessorIDKey   contextKey = "professorId"
	ParticipantIDKey contextKey = "participantId"
	ParticipantOfKey contextKey = "participantOf"
)

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authSvc *service.AuthService
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authSvc *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authSvc: authSvc}
}

// RequireProfessor validates a professor JWT from the Authorization header
func (m *AuthMiddleware) RequireProfessor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			WriteError(w, r, apperr.Unauthorized("missing authorization header", nil))
			return
		}

		claims, err := m.authSvc.ValidateProfessorToken(token)
		if err != nil {
			WriteError(w, r, apperr.Unauthorized("invalid or expired token", err))
			return
		}

		ctx := context.WithValue(r.Context(), ProfessorIDKey, claims.ProfessorID)
		ctx = logger.WithFields(ctx, logrus.Fields{"professor_id": claims.ProfessorID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireParticipant validates a participant JWT from the Authorization header or the token
// query param. The token must be scoped to the {handle} of the route.
func (m *AuthMiddleware) RequireParticipant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			WriteError(w, r, apperr.Unauthorized("missing authorization", nil))
			return
		}

		claims, err := m.authSvc.ValidateParticipantToken(token)
		if err != nil {
			WriteError(w, r, apperr.Unauthorized("invalid or expired token", err))
			return
		}
		if handle := mux.Vars(r)["handle"]; handle != "" && !strings.EqualFold(handle, claims.Handle) {
			WriteError(w, r, apperr.Forbidden("token not valid for this page", nil))
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, ParticipantIDKey, claims.ParticipantID)
		ctx = context.WithValue(ctx, ParticipantOfKey, claims.ProfessorID)
		ctx = logger.WithFields(ctx, logrus.Fields{"participant_id": claims.ParticipantID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Identity returns the verified professor identity of the request; the zero value when absent
func Identity(ctx context.Context) service.Identity {
	if v, ok := ctx.Value(ProfessorIDKey).(string); ok {
		return service.Identity{ProfessorID: v}
	}
	return service.Identity{}
}

// GetParticipantID extracts the participant id from context
func GetParticipantID(ctx context.Context) string {
	if v, ok := ctx.Value(ParticipantIDKey).(string); ok {
		return v
	}
	return ""
}

// GetParticipantOf returns the professor whose page the participant joined
func GetParticipantOf(ctx context.Context) string {
	if v, ok := ctx.Value(ParticipantOfKey).(string); ok {
		return v
	}
	return ""
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
