package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/devnovate/api/types"
)

// EventPublisher delivers article lifecycle events to a broker.
type EventPublisher interface {
	PublishArticleEvent(ctx context.Context, event types.ArticleEvent) error
}

// Recorder receives counters for moderation decisions and like toggles.
type Recorder interface {
	ModerationDecision(action string)
	LikeToggled(liked bool)
}

type noopRecorder struct{}

func (noopRecorder) ModerationDecision(string) {}
func (noopRecorder) LikeToggled(bool)          {}

func recorderOrNoop(r Recorder) Recorder {
	if r == nil {
		return noopRecorder{}
	}
	return r
}

// emitter publishes best-effort: a broker failure is logged and never fails
// the operation that produced the event.
type emitter struct {
	publisher EventPublisher
	logger    *slog.Logger
}

func newEmitter(publisher EventPublisher, logger *slog.Logger) emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return emitter{publisher: publisher, logger: logger}
}

func (e emitter) emit(ctx context.Context, eventType string, article types.Article, actorID string) {
	if e.publisher == nil {
		return
	}
	event := types.ArticleEvent{
		Type:       eventType,
		ArticleID:  article.ID,
		AuthorID:   article.AuthorID,
		ActorID:    actorID,
		Status:     article.Status,
		OccurredAt: time.Now().UTC(),
	}
	if eventType == types.EventArticleDeleted {
		event.Status = ""
	}
	if err := e.publisher.PublishArticleEvent(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "publish article event failed",
			slog.String("type", eventType),
			slog.String("article_id", article.ID),
			slog.Any("error", err),
		)
	}
}
