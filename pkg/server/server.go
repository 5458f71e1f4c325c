// Package server exposes the analysis pipeline and the per-user records over HTTP.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"video-digest/pkg/analyzer"
	"video-digest/pkg/auth"
	"video-digest/pkg/domain"
	"video-digest/pkg/persistence"
)

// Analyzer runs the analysis pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, req analyzer.Request, user *auth.User) (*analyzer.Result, error)
}

// Store is the per-user record API behind the authenticated endpoints.
type Store interface {
	ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)
	DeleteHistoryEntry(ctx context.Context, userID, entryID string) error
	ClearHistory(ctx context.Context, userID string) error

	SaveRecord(ctx context.Context, userID string, in persistence.SaveInput) (*domain.ContentRecord, error)
	ListRecords(ctx context.Context, q domain.RecordQuery) ([]domain.ContentRecord, int, error)
	GetRecord(ctx context.Context, userID, id string) (*domain.ContentRecord, error)
	UpdateRecord(ctx context.Context, userID, id string, upd domain.RecordUpdate, tags []string) (*domain.ContentRecord, error)
	ReplaceTags(ctx context.Context, userID, id string, names []string) ([]domain.Tag, error)
	DeleteRecord(ctx context.Context, userID, id string) error
	ListTags(ctx context.Context, userID string) ([]domain.Tag, error)
}

type Config struct {
	Analyzer Analyzer
	Store    Store
	// Auth may be nil, in which case every caller is anonymous.
	Auth auth.Authenticator
	// Redis may be nil, which disables rate limiting.
	Redis              *redis.Client
	RateLimitPerMinute int
	CORSOrigins        []string
	Demo               bool
	Logger             *zap.Logger
}

type Server struct {
	cfg    Config
	log    *zap.Logger
	engine *gin.Engine
}

func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{cfg: cfg, log: log}
	s.engine = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(s.cfg.CORSOrigins)))
	r.Use(OptionalAuth(s.cfg.Auth))
	r.Use(Logger(s.log))

	r.GET("/healthz", s.healthz)
	r.POST("/analyze", RateLimit(s.cfg.Redis, s.cfg.RateLimitPerMinute), s.analyze)

	authed := r.Group("/", RequireAuth())
	{
		authed.GET("/history", s.listHistory)
		authed.DELETE("/history", s.clearHistory)
		authed.DELETE("/history/:id", s.deleteHistory)

		authed.GET("/analyses", s.listAnalyses)
		authed.POST("/analyses", s.saveAnalysis)
		authed.GET("/analyses/:id", s.getAnalysis)
		authed.PATCH("/analyses/:id", s.updateAnalysis)
		authed.DELETE("/analyses/:id", s.deleteAnalysis)
		authed.PUT("/analyses/:id/tags", s.replaceTags)

		authed.GET("/tags", s.listTags)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			return allowAll || allowed[origin]
		},
	}
}
