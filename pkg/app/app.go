// Package app builds the object graph shared by the HTTP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	supabase "github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"video-digest/pkg/acquisition"
	"video-digest/pkg/analyzer"
	"video-digest/pkg/auth"
	"video-digest/pkg/config"
	"video-digest/pkg/db"
	"video-digest/pkg/ingest"
	"video-digest/pkg/llm"
	"video-digest/pkg/persistence"
	"video-digest/pkg/server"
	"video-digest/pkg/summarizer"
	"video-digest/pkg/worker"
	"video-digest/pkg/youtube"
)

const reconcileWorkers = 5

// App holds the wired components. Close releases every connection it opened.
type App struct {
	Config *config.Config
	Log    *zap.Logger

	Repo        db.Repository
	Coordinator *persistence.Coordinator
	Analyzer    *analyzer.Analyzer
	Reconciler  *persistence.Reconciler
	Auth        *auth.Chain
	Redis       *redis.Client
	Demo        bool

	closers []func(context.Context) error
}

// New connects the configured stores and builds the pipeline.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	sdk, err := a.openStorage(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	var authenticators []auth.Authenticator
	if cfg.Database.SupabaseJWTSecret != "" {
		authenticators = append(authenticators, auth.NewJWTVerifier(cfg.Database.SupabaseJWTSecret))
	}
	if sdk != nil {
		authenticators = append(authenticators, auth.NewSupabaseAuthenticator(sdk))
	}
	a.Auth = auth.NewChain(log.Named("auth"), authenticators...)
	if !a.Auth.Enabled() {
		log.Warn("no authenticator configured; every caller is anonymous and nothing is stored")
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		a.closers = append(a.closers, func(context.Context) error { return a.Redis.Close() })
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable; rate limiting fails open", zap.Error(err))
		}
	}

	chainCfg := acquisition.Config{
		MetadataTimeout:   cfg.Acquisition.MetadataTimeout,
		TranscriptTimeout: cfg.Acquisition.TranscriptTimeout,
		Logger:            log.Named("acquisition"),
	}
	yt := youtube.NewClient(youtube.WithTimeout(cfg.Acquisition.TranscriptTimeout))
	chainCfg.Metadata = yt
	chainCfg.Transcripts = yt
	chainCfg.Player = yt
	if cfg.Mongo.URI != "" {
		archive := db.NewArchive(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err := archive.Connect(ctx); err != nil {
			log.Warn("transcript archive unavailable", zap.Error(err))
		} else {
			chainCfg.Archive = archive
			a.closers = append(a.closers, archive.Close)
		}
	}

	var completer summarizer.Completer
	if cfg.AI.Configured() {
		model, err := llm.New(llm.Config{
			Provider:        cfg.AI.Provider,
			APIKey:          cfg.AI.APIKey,
			Model:           cfg.AI.Model,
			Endpoint:        cfg.AI.Endpoint,
			MaxOutputTokens: cfg.AI.MaxOutputTokens,
		})
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("configure model: %w", err)
		}
		completer = model
		log.Info("model configured", zap.String("model", model.Name()))
	} else {
		a.Demo = true
		log.Warn("no model api key configured; running in demo mode")
	}

	a.Coordinator = persistence.NewCoordinator(persistence.Config{
		Repo:           a.Repo,
		AutoLinkAITags: cfg.Persistence.AutoLinkAITags,
		Logger:         log.Named("persistence"),
	})
	a.Analyzer = analyzer.New(analyzer.Config{
		Acquirer:   acquisition.NewChain(chainCfg),
		Summarizer: summarizer.NewInvoker(completer, cfg.AI.Timeout, log.Named("summarizer")),
		Persister:  a.Coordinator,
		Logger:     log.Named("analyzer"),
	})
	a.Reconciler = persistence.NewReconciler(
		a.Coordinator,
		worker.NewPool(reconcileWorkers, log.Named("reconcile")),
		cfg.Persistence.ReconcileInterval,
		log.Named("reconcile"),
	)
	return a, nil
}

// openStorage picks the repository: a direct Postgres URL, then Supabase,
// then process memory. It returns the Supabase SDK client when one exists.
func (a *App) openStorage(ctx context.Context) (*supabase.Client, error) {
	cfg := a.Config.Database

	switch {
	case cfg.URL != "":
		client := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.URL, MaxOpenConns: cfg.MaxOpenConns})
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		if err := db.EnsureSchema(ctx, client); err != nil {
			return nil, err
		}
		a.Repo = db.NewPostgresRepository(client)
		a.Log.Info("storage: postgres")

		if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
			return nil, nil
		}
		// Supabase is still used for auth lookups.
		sb := db.NewSupabaseClient(db.SupabaseConfig{SupabaseURL: cfg.SupabaseURL, SupabaseKey: cfg.SupabaseKey})
		if err := sb.Connect(ctx); err != nil {
			return nil, err
		}
		return sb.SDK(), nil

	case cfg.SupabaseURL != "":
		sb := db.NewSupabaseClient(db.SupabaseConfig{
			SupabaseURL:  cfg.SupabaseURL,
			SupabaseKey:  cfg.SupabaseKey,
			Password:     cfg.SupabasePassword,
			MaxOpenConns: cfg.MaxOpenConns,
		})
		if err := sb.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect supabase: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return sb.Close() })
		if sb.HasDirectDB() {
			if err := db.EnsureSchema(ctx, sb); err != nil {
				return nil, err
			}
		}
		repo, err := sb.Repository()
		if err != nil {
			return nil, err
		}
		a.Repo = repo
		a.Log.Info("storage: supabase", zap.Bool("direct_db", sb.HasDirectDB()))
		return sb.SDK(), nil

	default:
		a.Repo = db.NewMemoryRepository()
		a.Log.Warn("no database configured; records are kept in memory")
		return nil, nil
	}
}

// Server builds the HTTP server over the wired pipeline.
func (a *App) Server() *server.Server {
	return server.New(server.Config{
		Analyzer:           a.Analyzer,
		Store:              a.Coordinator,
		Auth:               a.Auth,
		Redis:              a.Redis,
		RateLimitPerMinute: a.Config.Redis.LimitPerMinute,
		CORSOrigins:        a.Config.CORSOrigins,
		Demo:               a.Demo,
		Logger:             a.Log.Named("http"),
	})
}

// Ingest builds a batch ingest service with the given worker count.
func (a *App) Ingest(workers int) *ingest.Service {
	return ingest.NewService(ingest.Config{
		Analyzer:    a.Analyzer,
		Known:       a.Coordinator,
		WorkerCount: workers,
		Logger:      a.Log.Named("ingest"),
	})
}

// Close releases connections in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
