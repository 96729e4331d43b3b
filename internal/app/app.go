package app

import (
	"context"
	"fmt"
	"time"

	"livepoll/internal/cache"
	"livepoll/internal/config"
	"livepoll/internal/logger"
	"livepoll/internal/repository"
	"livepoll/internal/repository/memory"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// App is the storage adapter every service is wired against
type App struct {
	Activities repository.ActivityRepo
	Responses  repository.ResponseRepo
	Runs       repository.RunRepo
	Profiles   repository.ProfileRepo
	Folders    repository.FolderRepo
	Syntheses  repository.SynthesisRepo
	Sessions   repository.SessionRepo
	Feed       cache.LiveFeed
	Aggregates cache.AggregateCache
	Codes      cache.SessionCodeCache

	closers []func(context.Context) error
}

// Open connects the configured storage backend
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return openMemory(), nil
	case config.StorageMongo:
		return openMongo(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func openMemory() *App {
	store := memory.New()
	logger.L().Warn("using in-memory storage, data is lost on restart")
	return &App{
		Activities: store.Activities(),
		Responses:  store.Responses(),
		Runs:       store.Runs(),
		Profiles:   store.Profiles(),
		Folders:    store.Folders(),
		Syntheses:  store.Syntheses(),
		Sessions:   store.Sessions(),
		Feed:       cache.NewLocalLiveFeed(),
		Aggregates: cache.NewMemoryAggregateCache(),
		Codes:      cache.NewLocalSessionCodeCache(),
	}
}

func openMongo(ctx context.Context, cfg *config.Config) (*App, error) {
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	logger.L().WithField("db", cfg.MongoDB).Info("connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDB)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.L().WithField("addr", cfg.RedisAddr).Info("connected to Redis")

	return &App{
		Activities: repository.NewActivityRepo(db),
		Responses:  repository.NewResponseRepo(db),
		Runs:       repository.NewRunRepo(db),
		Profiles:   repository.NewProfileRepo(db),
		Folders:    repository.NewFolderRepo(db),
		Syntheses:  repository.NewSynthesisRepo(db),
		Sessions:   repository.NewSessionRepo(db),
		Feed:       cache.NewRedisLiveFeed(rdb),
		Aggregates: cache.NewAggregateCache(rdb, cfg.AggregateCacheTTL),
		Codes:      cache.NewSessionCodeCache(rdb),
		closers: []func(context.Context) error{
			func(context.Context) error { return rdb.Close() },
			mongoClient.Disconnect,
		},
	}, nil
}

// Close releases the backend connections
func (a *App) Close(ctx context.Context) {
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			logger.L().WithError(err).Warn("failed to close storage connection")
		}
	}
}
