package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/devnovate/api/internal/auth"
	"github.com/devnovate/api/internal/services"
	"github.com/devnovate/api/types"
	"github.com/go-chi/chi/v5"
)

// AdminHandler exposes the moderation queue and decisions.
type AdminHandler struct {
	moderation *services.ModerationService
	logger     *slog.Logger
}

func NewAdminHandler(moderation *services.ModerationService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{moderation: moderation, logger: logger}
}

// AdminRouter registers admin routes. Every route requires an admin token.
func AdminRouter(r chi.Router, handler *AdminHandler, authenticator *Authenticator) {
	r.Use(authenticator.RequireAuth, RequireRole(types.RoleAdmin))

	r.Get("/pending", handler.Pending)
	r.Route("/blogs/{articleID}", func(r chi.Router) {
		r.Post("/approve", handler.decide(handler.moderation.Approve))
		r.Post("/reject", handler.decide(handler.moderation.Reject))
		r.Post("/hide", handler.decide(handler.moderation.Hide))
		r.Delete("/", handler.Delete)
	})
}

// BlogModerationRouter registers the decision routes kept under /api/blogs
// for older clients.
func BlogModerationRouter(r chi.Router, handler *AdminHandler, authenticator *Authenticator) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator.RequireAuth, RequireRole(types.RoleAdmin))

		r.Post("/approve/{articleID}", handler.decide(handler.moderation.Approve))
		r.Post("/reject/{articleID}", handler.decide(handler.moderation.Reject))
	})
}

func (h *AdminHandler) Pending(w http.ResponseWriter, r *http.Request) {
	articles, err := h.moderation.Pending(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list pending articles")
		return
	}
	writeJSON(w, http.StatusOK, ArticlesResponse{Articles: articles})
}

type decision func(ctx context.Context, actorID, articleID string) (types.Article, error)

func (h *AdminHandler) decide(apply decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.PrincipalFromContext(r.Context())

		article, err := apply(r.Context(), principal.Subject, chi.URLParam(r, "articleID"))
		if err != nil {
			writeServiceError(w, r, h.logger, err, "failed to update article")
			return
		}
		writeJSON(w, http.StatusOK, ArticleResponse{Article: article})
	}
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	if err := h.moderation.Delete(r.Context(), principal.Subject, chi.URLParam(r, "articleID")); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to delete article")
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}
