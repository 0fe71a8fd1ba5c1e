package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/devnovate/api/internal/store"
	"github.com/devnovate/api/types"
)

// allowedFrom lists, per target status, the statuses an article may be in
// for the transition to apply. Each target includes itself so repeating a
// decision is a no-op. Rejected and hidden articles never return to
// approved.
var allowedFrom = map[types.ArticleStatus][]types.ArticleStatus{
	types.StatusApproved: {types.StatusPending, types.StatusApproved},
	types.StatusRejected: {types.StatusPending, types.StatusRejected},
	types.StatusHidden:   {types.StatusPending, types.StatusApproved, types.StatusHidden},
}

var decisionActions = map[types.ArticleStatus]string{
	types.StatusApproved: "approve",
	types.StatusRejected: "reject",
	types.StatusHidden:   "hide",
}

var decisionEvents = map[types.ArticleStatus]string{
	types.StatusApproved: types.EventArticleApproved,
	types.StatusRejected: types.EventArticleRejected,
	types.StatusHidden:   types.EventArticleHidden,
}

// CanTransition reports whether an admin may move an article from one
// status to another.
func CanTransition(from, to types.ArticleStatus) bool {
	for _, status := range allowedFrom[to] {
		if status == from {
			return true
		}
	}
	return false
}

// ModerationService owns the article status state machine. Callers must
// have checked the admin capability before invoking it.
type ModerationService struct {
	repo     ArticleRepository
	media    *Media
	events   emitter
	recorder Recorder
	logger   *slog.Logger
}

func NewModerationService(repo ArticleRepository, media *Media, publisher EventPublisher, recorder Recorder, logger *slog.Logger) *ModerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModerationService{
		repo:     repo,
		media:    media,
		events:   newEmitter(publisher, logger),
		recorder: recorderOrNoop(recorder),
		logger:   logger,
	}
}

// Pending returns the moderation queue, newest first.
func (s *ModerationService) Pending(ctx context.Context) ([]types.Article, error) {
	return s.repo.ListByStatus(ctx, types.StatusPending)
}

func (s *ModerationService) Approve(ctx context.Context, actorID, articleID string) (types.Article, error) {
	return s.transition(ctx, actorID, articleID, types.StatusApproved)
}

func (s *ModerationService) Reject(ctx context.Context, actorID, articleID string) (types.Article, error) {
	return s.transition(ctx, actorID, articleID, types.StatusRejected)
}

func (s *ModerationService) Hide(ctx context.Context, actorID, articleID string) (types.Article, error) {
	return s.transition(ctx, actorID, articleID, types.StatusHidden)
}

// Delete permanently removes an article, its likes and its comments.
func (s *ModerationService) Delete(ctx context.Context, actorID, articleID string) error {
	article, err := s.repo.Delete(ctx, articleID)
	if err != nil {
		return err
	}

	if err := s.media.Remove(ctx, article.ImageURL); err != nil {
		s.logger.WarnContext(ctx, "remove article image failed",
			slog.String("article_id", article.ID),
			slog.Any("error", err),
		)
	}
	s.recorder.ModerationDecision("delete")
	s.events.emit(ctx, types.EventArticleDeleted, article, actorID)
	return nil
}

func (s *ModerationService) transition(ctx context.Context, actorID, articleID string, to types.ArticleStatus) (types.Article, error) {
	article, changed, err := s.repo.UpdateStatus(ctx, articleID, to, allowedFrom[to])
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Article{}, ErrInvalidTransition
		}
		return types.Article{}, err
	}
	if changed {
		s.recorder.ModerationDecision(decisionActions[to])
		s.events.emit(ctx, decisionEvents[to], article, actorID)
	}
	return article, nil
}
