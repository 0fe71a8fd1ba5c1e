package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/devnovate/api/config"
	"github.com/devnovate/api/internal/auth"
	"github.com/devnovate/api/internal/db"
	"github.com/devnovate/api/internal/metrics"
	"github.com/devnovate/api/internal/mq"
	"github.com/devnovate/api/internal/ratelimit"
	"github.com/devnovate/api/internal/services"
	"github.com/devnovate/api/internal/storage"
	"github.com/devnovate/api/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// Server wraps the HTTP server, the router and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	redis      *redis.Client
	logger     *slog.Logger
}

// New opens the database and the optional storage, broker and redis
// backends, then assembles the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sessions, err := auth.NewSessionManager(cfg.Auth.JWTSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s := &Server{db: dbConn, logger: logger}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		s.closeResources()
		return nil, err
	}
	var imageStore services.ImageStore
	if objects != nil {
		imageStore = objects
	}

	var publisher services.EventPublisher
	s.mq, err = mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.closeResources()
		return nil, err
	}
	if s.mq != nil {
		publisher = mq.NewArticlePublisher(s.mq, cfg.MQ.Channel)
	}

	var limiter ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			s.closeResources()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		limiter = ratelimit.NewRedisLimiter(s.redis, cfg.Redis.LimitPerMinute)
	}

	m := metrics.New()
	userRepo := store.NewUserRepository(dbConn)
	articleRepo := store.NewArticleRepository(dbConn)
	media := services.NewMedia(imageStore, cfg.Storage.PublicURL)

	s.router = Routes(Dependencies{
		Sessions:      sessions,
		Users:         services.NewUserService(userRepo),
		Articles:      services.NewArticleService(articleRepo, media, publisher, m, logger),
		Moderation:    services.NewModerationService(articleRepo, media, publisher, m, logger),
		Feed:          services.NewFeedService(articleRepo),
		Media:         media,
		Metrics:       m,
		Limiter:       limiter,
		Logger:        logger,
		SecureCookies: cfg.IsProduction(),
		MediaPath:     localMediaPath(cfg.Storage.PublicURL),
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and then releases the database, broker
// and redis connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeResources()
	return err
}

func (s *Server) closeResources() {
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			s.logger.Warn("close mq failed", slog.Any("error", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("close redis failed", slog.Any("error", err))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
