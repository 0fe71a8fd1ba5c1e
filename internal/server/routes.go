package server

import (
	"log/slog"
	"strings"
	"time"

	"github.com/devnovate/api/internal/auth"
	"github.com/devnovate/api/internal/handlers"
	"github.com/devnovate/api/internal/metrics"
	"github.com/devnovate/api/internal/ratelimit"
	"github.com/devnovate/api/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Dependencies are the collaborators the router is assembled from. Metrics
// and Limiter are optional.
type Dependencies struct {
	Sessions   *auth.SessionManager
	Users      *services.UserService
	Articles   *services.ArticleService
	Moderation *services.ModerationService
	Feed       *services.FeedService
	Media      *services.Media
	Metrics    *metrics.Metrics
	Limiter    ratelimit.Limiter
	Logger     *slog.Logger
	// SecureCookies marks the refresh cookie SameSite=None; Secure.
	SecureCookies bool
	// MediaPath is the local path images are served from, empty when the
	// public URL points elsewhere.
	MediaPath string
}

// Routes builds the HTTP handler tree.
func Routes(deps Dependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authenticator := handlers.NewAuthenticator(deps.Sessions)
	adminHandler := handlers.NewAdminHandler(deps.Moderation, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		deps.Metrics.Middleware,
		middleware.Timeout(60*time.Second),
	)

	router.Get("/healthz", handlers.Healthz)
	router.Get("/health", handlers.Healthz)
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler())
	}
	if deps.MediaPath != "" && deps.Media.Enabled() {
		router.Route(deps.MediaPath, func(r chi.Router) {
			handlers.MediaRouter(r, handlers.NewMediaHandler(deps.Media, logger))
		})
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(ratelimit.Middleware(deps.Limiter, logger))

		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, handlers.NewAuthHandler(deps.Users, deps.Sessions, deps.SecureCookies, logger))
		})
		r.Route("/blogs", func(r chi.Router) {
			handlers.BlogRouter(r, handlers.NewBlogHandler(deps.Feed, deps.Articles, logger), authenticator)
			handlers.BlogModerationRouter(r, adminHandler, authenticator)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, adminHandler, authenticator)
		})
	})

	return router
}

// localMediaPath returns publicURL when it is a path on this server.
func localMediaPath(publicURL string) string {
	if !strings.HasPrefix(publicURL, "/") || publicURL == "/" {
		return ""
	}
	return strings.TrimRight(publicURL, "/")
}
