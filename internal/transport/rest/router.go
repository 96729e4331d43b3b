package rest

import (
	"net/http"

	_ "livepoll/docs"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest/handler"
	"livepoll/internal/transport/rest/middleware"
	"livepoll/internal/transport/ws"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService      *service.AuthService
	ActivityService  *service.ActivityService
	ResponseService  *service.ResponseService
	UpvoteService    *service.UpvoteService
	LiveService      *service.LiveService
	RunService       *service.RunService
	ExportService    *service.ExportService
	SynthesisService *service.SynthesisService
	DraftService     *service.DraftService
	FolderService    *service.FolderService
	SessionService   *service.SessionService
	WSHub            *ws.Hub

	// ParticipantLimiter throttles participant writes; nil disables it
	ParticipantLimiter *service.CallerLimiter
	CORSAllowedOrigins string
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	activityHandler := handler.NewActivityHandler(c.ActivityService, c.ResponseService)
	liveHandler := handler.NewLiveHandler(c.LiveService)
	participantHandler := handler.NewParticipantHandler(c.ActivityService, c.ResponseService, c.UpvoteService)
	runHandler := handler.NewRunHandler(c.RunService, c.ExportService)
	synthesisHandler := handler.NewSynthesisHandler(c.SynthesisService, c.DraftService)
	folderHandler := handler.NewFolderHandler(c.FolderService)
	sessionHandler := handler.NewSessionHandler(c.SessionService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.LiveService)

	authMW := middleware.NewAuthMiddleware(c.AuthService)

	r.Use(middleware.RequestLogger)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	v1.HandleFunc("/p/{handle}/join", authHandler.Join).Methods("POST")
	v1.HandleFunc("/p/{handle}/live", liveHandler.Current).Methods("GET")
	v1.HandleFunc("/s/{code}", sessionHandler.Resolve).Methods("GET")
	v1.HandleFunc("/s/{code}/join", sessionHandler.Join).Methods("POST")

	// WebSocket routes (token in query param)
	v1.HandleFunc("/ws/presenter", wsHandler.PresenterWS).Methods("GET")
	v1.HandleFunc("/ws/p/{handle}", wsHandler.ParticipantWS).Methods("GET")

	// Professor routes
	prof := v1.NewRoute().Subrouter()
	prof.Use(authMW.RequireProfessor)

	prof.HandleFunc("/activities", activityHandler.Create).Methods("POST")
	prof.HandleFunc("/activities", activityHandler.List).Methods("GET")
	prof.HandleFunc("/activities/{activityId}", activityHandler.Get).Methods("GET")
	prof.HandleFunc("/activities/{activityId}", activityHandler.Update).Methods("PATCH")
	prof.HandleFunc("/activities/{activityId}", activityHandler.Delete).Methods("DELETE")
	prof.HandleFunc("/activities/{activityId}/status", activityHandler.Transition).Methods("POST")
	prof.HandleFunc("/activities/{activityId}/results", activityHandler.Results).Methods("GET")
	prof.HandleFunc("/responses/{responseId}/status", activityHandler.Moderate).Methods("PATCH")

	prof.HandleFunc("/live", liveHandler.Activate).Methods("PUT")
	prof.HandleFunc("/live", liveHandler.Deactivate).Methods("DELETE")

	prof.HandleFunc("/activities/{activityId}/runs", runHandler.Archive).Methods("POST")
	prof.HandleFunc("/activities/{activityId}/runs", runHandler.List).Methods("GET")
	prof.HandleFunc("/activities/{activityId}/export", runHandler.ExportLive).Methods("GET")
	prof.HandleFunc("/runs/{runId}", runHandler.Get).Methods("GET")
	prof.HandleFunc("/runs/{runId}/export", runHandler.ExportRun).Methods("GET")

	prof.HandleFunc("/activities/{activityId}/synthesis", synthesisHandler.Request).Methods("POST")
	prof.HandleFunc("/activities/{activityId}/synthesis", synthesisHandler.Get).Methods("GET")
	prof.HandleFunc("/ai/draft", synthesisHandler.Draft).Methods("POST")

	prof.HandleFunc("/folders", folderHandler.Create).Methods("POST")
	prof.HandleFunc("/folders", folderHandler.List).Methods("GET")
	prof.HandleFunc("/folders/{folderId}", folderHandler.Rename).Methods("PATCH")
	prof.HandleFunc("/folders/{folderId}", folderHandler.Delete).Methods("DELETE")

	prof.HandleFunc("/sessions", sessionHandler.Create).Methods("POST")
	prof.HandleFunc("/sessions", sessionHandler.List).Methods("GET")
	prof.HandleFunc("/sessions/{sessionId}", sessionHandler.Get).Methods("GET")
	prof.HandleFunc("/sessions/{sessionId}", sessionHandler.Update).Methods("PATCH")
	prof.HandleFunc("/sessions/{sessionId}", sessionHandler.Delete).Methods("DELETE")

	// Participant routes (token scoped to {handle})
	part := v1.PathPrefix("/p/{handle}").Subrouter()
	part.Use(authMW.RequireParticipant)
	if c.ParticipantLimiter != nil {
		part.Use(middleware.LimitParticipant(c.ParticipantLimiter))
	}

	part.HandleFunc("/activities/{activityId}", participantHandler.GetActivity).Methods("GET")
	part.HandleFunc("/activities/{activityId}/responses", participantHandler.Submit).Methods("POST")
	part.HandleFunc("/activities/{activityId}/responses/mine", participantHandler.Mine).Methods("GET")
	part.HandleFunc("/activities/{activityId}/results", participantHandler.Results).Methods("GET")
	part.HandleFunc("/responses/{responseId}", participantHandler.UpdateResponse).Methods("PUT")
	part.HandleFunc("/responses/{responseId}/upvote", participantHandler.Upvote).Methods("POST")

	var h http.Handler = r
	h = middleware.CORS(c.CORSAllowedOrigins)(h)
	h = chimw.RequestID(h)
	h = chimw.Recoverer(h)
	return h
}
