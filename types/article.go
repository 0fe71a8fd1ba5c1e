package types

import "time"

// ArticleStatus is the moderation state of an article.
type ArticleStatus string

const (
	// StatusPending is the initial state of every submitted article.
	StatusPending ArticleStatus = "pending"
	// StatusApproved articles are publicly listed.
	StatusApproved ArticleStatus = "approved"
	// StatusRejected articles are only visible to their author.
	StatusRejected ArticleStatus = "rejected"
	// StatusHidden articles were pulled by an admin, before or after approval.
	StatusHidden ArticleStatus = "hidden"
)

// Article is a blog post submitted by a user and moderated by admins.
//
// Likes always equals len(LikedBy); the store maintains both in the
// same transaction.
type Article struct {
	// ID is the unique identifier of the article.
	ID string `json:"id" db:"id"`

	// AuthorID is the id of the user who wrote the article.
	AuthorID string `json:"authorId" db:"author_id"`

	// Author is a display summary of the author, filled on reads.
	Author AuthorSummary `json:"author"`

	// Title is the headline of the article.
	Title string `json:"title" db:"title"`

	// Content is the article body.
	Content string `json:"content" db:"content"`

	// Category is a free-form label used for exact-match filtering.
	Category string `json:"category" db:"category"`

	// ImageURL optionally points at a cover image.
	ImageURL string `json:"imageUrl,omitempty" db:"image_url"`

	// Status is the current moderation state.
	Status ArticleStatus `json:"status" db:"status"`

	// Likes is the number of distinct users who liked the article.
	Likes int `json:"likes" db:"like_count"`

	// LikedBy holds the ids of the users who liked the article.
	LikedBy []string `json:"likedBy"`

	// Comments are ordered oldest first and never edited.
	Comments []Comment `json:"comments"`

	// CreatedAt is the submission time.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the time of the last status change or like.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// AuthorSummary is the public projection of an article's author.
type AuthorSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment is an append-only reply on an article.
type Comment struct {
	ID        string    `json:"id" db:"id"`
	AuthorID  string    `json:"authorId" db:"author_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// LikeResult is the outcome of toggling a like.
type LikeResult struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}

// ArticleFilter narrows the public listing.
type ArticleFilter struct {
	// Query is matched case-insensitively against title and content.
	Query string
	// Category must match exactly when set.
	Category string
}
