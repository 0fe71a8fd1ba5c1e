package types

import "time"

// Event types published for article lifecycle changes.
const (
	EventArticleSubmitted = "article.submitted"
	EventArticleApproved  = "article.approved"
	EventArticleRejected  = "article.rejected"
	EventArticleHidden    = "article.hidden"
	EventArticleDeleted   = "article.deleted"
)

// ArticleEvent is the JSON payload published on the article channel.
type ArticleEvent struct {
	// Type is one of the Event* constants.
	Type string `json:"type"`

	// ArticleID identifies the affected article.
	ArticleID string `json:"articleId"`

	// AuthorID is the owner of the article.
	AuthorID string `json:"authorId"`

	// ActorID is the user who caused the change (author or admin).
	ActorID string `json:"actorId"`

	// Status is the article status after the change. Empty for deletes.
	Status ArticleStatus `json:"status,omitempty"`

	// OccurredAt is when the change was committed.
	OccurredAt time.Time `json:"occurredAt"`
}
