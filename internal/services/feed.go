package services

import (
	"context"
	"time"

	"github.com/devnovate/api/types"
)

const (
	// FeedPageSize caps the public listing.
	FeedPageSize = 30
	// TrendingSize is the number of trending articles returned.
	TrendingSize = 5
	// DefaultTrendingDays is used when the window is missing or invalid.
	DefaultTrendingDays = 7
	// MaxTrendingDays bounds the trending window.
	MaxTrendingDays = 365
)

// FeedService serves the read side. Only approved articles are public;
// ListMine exposes every status to the author.
type FeedService struct {
	repo ArticleRepository
	now  func() time.Time
}

func NewFeedService(repo ArticleRepository) *FeedService {
	return &FeedService{repo: repo, now: time.Now}
}

// ListApproved returns up to FeedPageSize approved articles, newest first.
func (s *FeedService) ListApproved(ctx context.Context, filter types.ArticleFilter) ([]types.Article, error) {
	return s.repo.ListApproved(ctx, filter, FeedPageSize)
}

// Trending ranks approved articles created in the trailing window by likes.
func (s *FeedService) Trending(ctx context.Context, days int) ([]types.Article, error) {
	days = NormalizeTrendingDays(days)
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	return s.repo.ListTrending(ctx, since, TrendingSize)
}

// ListMine returns every article written by userID, newest first.
func (s *FeedService) ListMine(ctx context.Context, userID string) ([]types.Article, error) {
	return s.repo.ListByAuthor(ctx, userID)
}

// NormalizeTrendingDays clamps the trending window to [1, MaxTrendingDays].
func NormalizeTrendingDays(days int) int {
	if days < 1 {
		return DefaultTrendingDays
	}
	if days > MaxTrendingDays {
		return MaxTrendingDays
	}
	return days
}
