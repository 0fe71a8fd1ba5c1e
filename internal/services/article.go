package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devnovate/api/types"
)

// ArticleRepository defines persistence operations for articles.
type ArticleRepository interface {
	Create(ctx context.Context, article types.Article) (types.Article, error)
	Get(ctx context.Context, id string) (types.Article, error)
	ListApproved(ctx context.Context, filter types.ArticleFilter, limit int) ([]types.Article, error)
	ListTrending(ctx context.Context, since time.Time, limit int) ([]types.Article, error)
	ListByAuthor(ctx context.Context, authorID string) ([]types.Article, error)
	ListByStatus(ctx context.Context, status types.ArticleStatus) ([]types.Article, error)
	UpdateStatus(ctx context.Context, id string, to types.ArticleStatus, from []types.ArticleStatus) (types.Article, bool, error)
	Delete(ctx context.Context, id string) (types.Article, error)
	ToggleLike(ctx context.Context, id, userID string, required types.ArticleStatus) (types.LikeResult, error)
	AddComment(ctx context.Context, id string, comment types.Comment, required types.ArticleStatus) (types.Comment, error)
}

// CreateArticleInput is the validated payload of a submission. Image takes
// precedence over ImageURL.
type CreateArticleInput struct {
	Title    string
	Content  string
	Category string
	ImageURL string
	Image    *Image
}

// ArticleService owns writes on a single article: submission, likes and
// comments. Interactions are only allowed on approved articles.
type ArticleService struct {
	repo     ArticleRepository
	media    *Media
	events   emitter
	recorder Recorder
}

func NewArticleService(repo ArticleRepository, media *Media, publisher EventPublisher, recorder Recorder, logger *slog.Logger) *ArticleService {
	return &ArticleService{
		repo:     repo,
		media:    media,
		events:   newEmitter(publisher, logger),
		recorder: recorderOrNoop(recorder),
	}
}

// Create stores a new pending article for authorID.
func (s *ArticleService) Create(ctx context.Context, authorID string, in CreateArticleInput) (types.Article, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	category := strings.TrimSpace(in.Category)
	if title == "" || content == "" || category == "" {
		return types.Article{}, validationError("missing fields")
	}

	imageURL := strings.TrimSpace(in.ImageURL)
	if in.Image != nil {
		uploaded, err := s.media.Upload(ctx, *in.Image)
		if err != nil {
			return types.Article{}, err
		}
		imageURL = uploaded
	}

	article, err := s.repo.Create(ctx, types.Article{
		AuthorID: authorID,
		Title:    title,
		Content:  content,
		Category: category,
		ImageURL: imageURL,
		Status:   types.StatusPending,
	})
	if err != nil {
		if in.Image != nil {
			_ = s.media.Remove(ctx, imageURL)
		}
		return types.Article{}, fmt.Errorf("create article: %w", err)
	}

	s.events.emit(ctx, types.EventArticleSubmitted, article, authorID)
	return article, nil
}

// ToggleLike adds userID to the article's like set, or removes it when
// already present.
func (s *ArticleService) ToggleLike(ctx context.Context, articleID, userID string) (types.LikeResult, error) {
	result, err := s.repo.ToggleLike(ctx, articleID, userID, types.StatusApproved)
	if err != nil {
		return types.LikeResult{}, err
	}
	s.recorder.LikeToggled(result.Liked)
	return result, nil
}

// AddComment appends a comment by userID. Duplicate content is allowed.
func (s *ArticleService) AddComment(ctx context.Context, articleID, userID, text string) (types.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return types.Comment{}, validationError("content required")
	}
	return s.repo.AddComment(ctx, articleID, types.Comment{
		AuthorID: userID,
		Content:  text,
	}, types.StatusApproved)
}
