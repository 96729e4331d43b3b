package main

import (
	"context"
	"errors"
	"os"
	"time"

	"livepoll/internal/app"
	"livepoll/internal/apperr"
	"livepoll/internal/config"
	"livepoll/internal/logger"
	"livepoll/internal/model"
	"livepoll/internal/service"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.L()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.StorageBackend == config.StorageMemory {
		log.Fatal("seeding in-memory storage has no effect, set STORAGE_BACKEND=mongo")
	}
	store, err := app.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open storage")
	}
	defer store.Close(context.Background())

	handle := envOr("SEED_HANDLE", "demo")
	password := envOr("SEED_PASSWORD", "demo-password")

	auth := service.NewAuthService(store.Profiles, cfg.JWTSecret)
	login, err := auth.Register(ctx, model.RegisterRequest{
		Handle:   handle,
		Name:     "Demo Professor",
		Email:    handle + "@example.edu",
		Password: password,
	})
	if errors.Is(err, apperr.ErrConflict) {
		log.WithField("handle", handle).Info("professor already exists, logging in")
		login, err = auth.Login(ctx, handle, password)
	}
	if err != nil {
		log.WithError(err).Fatal("failed to create demo professor")
	}
	id := service.Identity{ProfessorID: login.ProfessorID}

	live := service.NewLiveService(store.Activities, store.Profiles, store.Feed)
	activities := service.NewActivityService(store.Activities, store.Responses, store.Folders, store.Profiles, live, store.Aggregates, cfg.DefaultProfanityFilter)
	folders := service.NewFolderService(store.Folders, store.Activities)

	week, err := folders.Create(ctx, id, "Week 1", nil)
	if err != nil {
		log.WithError(err).Fatal("failed to create folder")
	}

	var seeded []string
	for _, d := range demoActivities() {
		a, err := activities.Create(ctx, id, d.typ, &week.ID)
		if err != nil {
			log.WithError(err).Fatal("failed to create activity")
		}
		if _, err := activities.Update(ctx, id, a.ID, d.patch); err != nil {
			log.WithError(err).WithField("title", *d.patch.Title).Fatal("failed to fill activity")
		}
		log.WithField("activity_id", a.ID).WithField("type", d.typ).Info("seeded activity")
		seeded = append(seeded, a.ID)
	}

	sessions := service.NewSessionService(store.Sessions, store.Activities, store.Profiles, store.Codes, auth)
	sess, err := sessions.Create(ctx, id, model.CreateSessionRequest{Title: "Week 1 lecture", ActivityIDs: seeded})
	if err != nil {
		log.WithError(err).Fatal("failed to create session")
	}
	open := model.SessionOpen
	if _, err := sessions.Update(ctx, id, sess.ID, model.SessionPatch{Status: &open}); err != nil {
		log.WithError(err).Fatal("failed to open session")
	}
	log.WithField("code", sess.Code).Info("seeded open session")

	log.WithField("handle", handle).WithField("professor_id", login.ProfessorID).Info("seed complete")
}

type demo struct {
	typ   model.ActivityType
	patch model.ActivityPatch
}

func demoActivities() []demo {
	correct := true
	limit := 3
	return []demo{
		{model.ActivityMultipleChoice, model.ActivityPatch{
			Title:  ptr("Warm-up"),
			Prompt: &model.RichText{Text: "Which travels faster in air?"},
			Options: &[]model.Option{
				{ID: "light", Content: model.RichText{Text: "Light"}},
				{ID: "sound", Content: model.RichText{Text: "Sound"}},
			},
		}},
		{model.ActivityWordCloud, model.ActivityPatch{
			Title:    ptr("One word"),
			Prompt:   &model.RichText{Text: "Describe today's lecture in one word"},
			Settings: &model.SettingsPatch{ResponseLimit: &limit},
		}},
		{model.ActivityQA, model.ActivityPatch{
			Title:  ptr("Questions"),
			Prompt: &model.RichText{Text: "What should we go over again?"},
		}},
		{model.ActivityCompetition, model.ActivityPatch{
			Title:  ptr("Quick quiz"),
			Prompt: &model.RichText{Text: "What is the SI unit of force?"},
			Options: &[]model.Option{
				{ID: "newton", Content: model.RichText{Text: "Newton"}, IsCorrect: &correct},
				{ID: "joule", Content: model.RichText{Text: "Joule"}},
				{ID: "watt", Content: model.RichText{Text: "Watt"}},
			},
		}},
	}
}

func ptr[T any](v T) *T { return &v }

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
