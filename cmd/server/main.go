package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livepoll/internal/app"
	"livepoll/internal/config"
	"livepoll/internal/logger"
	"livepoll/internal/metrics"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest"
	"livepoll/internal/transport/ws"

	"github.com/sirupsen/logrus"
)

// Participant writes allowed per participant per window
const (
	participantWriteLimit  = 30
	participantWriteWindow = 10 * time.Second
)

// @title           Livepoll API
// @version         1.0
// @description     Live classroom polling: activities, responses, live pointer, runs, sessions and synthesis
// @BasePath        /v1
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	metrics.Register()
	log := logger.L()
	ctx := context.Background()

	log.WithFields(logrus.Fields{
		"storage":           cfg.StorageBackend,
		"submission_policy": cfg.SubmissionPolicy,
		"synthesis_model":   cfg.AI.Models.Synthesis,
		"draft_model":       cfg.AI.Models.Draft,
		"ai_enabled":        cfg.AI.IsEnabled(),
	}).Info("starting livepoll")

	store, err := app.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open storage")
	}
	defer store.Close(context.Background())

	// AI collaborators; nil falls back to the mock
	var summarizer service.Summarizer
	var drafter service.Drafter
	aiClient, err := service.NewAIClient(ctx, cfg.AI)
	if err != nil {
		log.WithError(err).Warn("AI client unavailable, using mock")
	} else if aiClient != nil {
		summarizer = aiClient
		drafter = aiClient
	} else {
		log.Info("GEMINI_API_KEY not set, using mock AI")
	}
	aiLimiter := service.NewCallerLimiter(cfg.AIRateLimit, cfg.AIRateWindow)

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	defer wsHub.Stop()

	// Initialize services
	authSvc := service.NewAuthService(store.Profiles, cfg.JWTSecret)
	liveSvc := service.NewLiveService(store.Activities, store.Profiles, store.Feed)
	activitySvc := service.NewActivityService(store.Activities, store.Responses, store.Folders, store.Profiles, liveSvc, store.Aggregates, cfg.DefaultProfanityFilter)
	responseSvc := service.NewResponseService(store.Activities, store.Responses, store.Profiles, service.NewProfanityChecker(), store.Aggregates, cfg.SubmissionPolicy)
	upvoteSvc := service.NewUpvoteService(store.Activities, store.Responses, store.Profiles, store.Aggregates)
	runSvc := service.NewRunService(store.Activities, store.Runs, store.Aggregates)
	exportSvc := service.NewExportService(store.Activities, store.Responses, runSvc)
	synthesisSvc := service.NewSynthesisService(store.Activities, store.Responses, store.Runs, store.Syntheses, store.Sessions, summarizer, aiLimiter, time.Duration(cfg.AI.TimeoutMS)*time.Millisecond)
	draftSvc := service.NewDraftService(drafter, aiLimiter)
	folderSvc := service.NewFolderService(store.Folders, store.Activities)
	sessionSvc := service.NewSessionService(store.Sessions, store.Activities, store.Profiles, store.Codes, authSvc)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	activitySvc.SetBroadcaster(wsHub)
	responseSvc.SetBroadcaster(wsHub)
	upvoteSvc.SetBroadcaster(wsHub)
	runSvc.SetBroadcaster(wsHub)
	synthesisSvc.SetBroadcaster(wsHub)
	sessionSvc.SetBroadcaster(wsHub)

	router := rest.NewRouter(&rest.Container{
		AuthService:        authSvc,
		ActivityService:    activitySvc,
		ResponseService:    responseSvc,
		UpvoteService:      upvoteSvc,
		LiveService:        liveSvc,
		RunService:         runSvc,
		ExportService:      exportSvc,
		SynthesisService:   synthesisSvc,
		DraftService:       draftSvc,
		FolderService:      folderSvc,
		SessionService:     sessionSvc,
		WSHub:              wsHub,
		ParticipantLimiter: service.NewCallerLimiter(participantWriteLimit, participantWriteWindow),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("ListenAndServe failed")
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	// let in-flight syntheses persist their result
	synthesisSvc.Wait()

	log.Info("server exited")
}
