package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/devnovate/api/internal/services"
	"github.com/devnovate/api/internal/storage"
	"github.com/go-chi/chi/v5"
)

// MediaHandler streams stored article images when the public URL points
// back at this server.
type MediaHandler struct {
	media  *services.Media
	logger *slog.Logger
}

func NewMediaHandler(media *services.Media, logger *slog.Logger) *MediaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaHandler{media: media, logger: logger}
}

// MediaRouter registers the image route on the given router.
func MediaRouter(r chi.Router, handler *MediaHandler) {
	r.Get("/articles/{name}", handler.Image)
}

func (h *MediaHandler) Image(w http.ResponseWriter, r *http.Request) {
	rc, err := h.media.Open(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, services.ErrMediaDisabled) || errors.Is(err, services.ErrValidation) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeServiceError(w, r, h.logger, err, "failed to load image")
		return
	}
	defer rc.Close()

	data, err := readFileLimited(rc, services.MaxImageBytes)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load image")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
