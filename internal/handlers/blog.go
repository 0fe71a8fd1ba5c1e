package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/devnovate/api/internal/auth"
	"github.com/devnovate/api/internal/services"
	"github.com/devnovate/api/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartBytes  = 6 << 20
	maxMultipartMemory = 8 << 20
	formFieldImage     = "image"
)

// BlogHandler serves the public feed and the author-side article actions.
type BlogHandler struct {
	feed     *services.FeedService
	articles *services.ArticleService
	logger   *slog.Logger
}

func NewBlogHandler(feed *services.FeedService, articles *services.ArticleService, logger *slog.Logger) *BlogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlogHandler{feed: feed, articles: articles, logger: logger}
}

// BlogRouter registers blog routes on the given router.
func BlogRouter(r chi.Router, handler *BlogHandler, authenticator *Authenticator) {
	r.With(authenticator.OptionalAuth).Get("/", handler.List)
	r.With(authenticator.OptionalAuth).Get("/all", handler.List)
	r.Get("/trending", handler.Trending)

	r.Group(func(r chi.Router) {
		r.Use(authenticator.RequireAuth)

		r.Get("/my", handler.ListMine)
		r.Post("/", handler.Create)
		r.Post("/create", handler.Create)
		r.Post("/like/{articleID}", handler.ToggleLike)
		r.Post("/{articleID}/like", handler.ToggleLike)
		r.Post("/comment/{articleID}", handler.AddComment)
		r.Post("/{articleID}/comment", handler.AddComment)
	})
}

type CreateArticleRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	ImageURL string `json:"imageUrl"`
}

type CommentRequest struct {
	Content string `json:"content"`
	Text    string `json:"text"`
}

type ArticlesResponse struct {
	Articles []types.Article `json:"articles"`
}

type ArticleResponse struct {
	Article types.Article `json:"article"`
}

// List returns approved articles filtered by q and category, or the
// caller's own articles when mine=true.
func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if mine, _ := strconv.ParseBool(query.Get("mine")); mine {
		h.ListMine(w, r)
		return
	}

	articles, err := h.feed.ListApproved(r.Context(), types.ArticleFilter{
		Query:    query.Get("q"),
		Category: query.Get("category"),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list articles")
		return
	}
	writeJSON(w, http.StatusOK, ArticlesResponse{Articles: articles})
}

func (h *BlogHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	articles, err := h.feed.ListMine(r.Context(), principal.Subject)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list articles")
		return
	}
	writeJSON(w, http.StatusOK, ArticlesResponse{Articles: articles})
}

// Trending accepts an optional days parameter; invalid values fall back to
// the default window.
func (h *BlogHandler) Trending(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("days")))

	articles, err := h.feed.Trending(r.Context(), days)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list trending articles")
		return
	}
	writeJSON(w, http.StatusOK, ArticlesResponse{Articles: articles})
}

func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	in, err := parseCreateArticle(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	article, err := h.articles.Create(r.Context(), principal.Subject, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to create article")
		return
	}
	writeJSON(w, http.StatusOK, ArticleResponse{Article: article})
}

func (h *BlogHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.articles.ToggleLike(r.Context(), chi.URLParam(r, "articleID"), principal.Subject)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to toggle like")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BlogHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	text := req.Content
	if text == "" {
		text = req.Text
	}

	if _, err := h.articles.AddComment(r.Context(), chi.URLParam(r, "articleID"), principal.Subject, text); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to add comment")
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// parseCreateArticle accepts either a JSON body or a multipart form with an
// optional image file.
func parseCreateArticle(w http.ResponseWriter, r *http.Request) (services.CreateArticleInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req CreateArticleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return services.CreateArticleInput{}, err
		}
		return services.CreateArticleInput{
			Title:    req.Title,
			Content:  req.Content,
			Category: req.Category,
			ImageURL: req.ImageURL,
		}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.CreateArticleInput{}, errors.New("invalid multipart form")
	}

	in := services.CreateArticleInput{
		Title:    r.FormValue("title"),
		Content:  r.FormValue("content"),
		Category: r.FormValue("category"),
		ImageURL: r.FormValue("imageUrl"),
	}

	files := r.MultipartForm.File[formFieldImage]
	if len(files) == 0 {
		return in, nil
	}
	if len(files) > 1 {
		return services.CreateArticleInput{}, errors.New("only one image is allowed")
	}

	file, err := files[0].Open()
	if err != nil {
		return services.CreateArticleInput{}, fmt.Errorf("failed to read image: %w", err)
	}
	data, err := readFileLimited(file, services.MaxImageBytes)
	_ = file.Close()
	if err != nil {
		return services.CreateArticleInput{}, err
	}

	in.Image = &services.Image{Filename: files[0].Filename, Data: data}
	return in, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
