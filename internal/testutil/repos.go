// Package testutil provides in-memory, concurrency-safe stand-ins for the
// Postgres repositories, the message broker and object storage.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/devnovate/api/internal/store"
	"github.com/devnovate/api/types"
	"github.com/google/uuid"
)

// Clock hands out strictly increasing timestamps so ordering by creation
// time is deterministic.
type Clock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UTC()
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}

// UserRepo is an in-memory services.UserRepository.
type UserRepo struct {
	mu    sync.Mutex
	clock Clock
	users map[string]types.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]types.User)}
}

func (r *UserRepo) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = types.NormalizeEmail(email)
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.Email = types.NormalizeEmail(user.Email)
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	now := r.clock.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *UserRepo) SetRole(_ context.Context, email string, role types.Role) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = types.NormalizeEmail(email)
	for id, user := range r.users {
		if user.Email == email {
			user.Role = role
			user.UpdatedAt = r.clock.Now()
			r.users[id] = user
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

// ArticleRepo is an in-memory services.ArticleRepository. Author names are
// resolved through Users when set.
type ArticleRepo struct {
	Users *UserRepo

	mu       sync.Mutex
	clock    Clock
	articles map[string]*types.Article
}

func NewArticleRepo(users *UserRepo) *ArticleRepo {
	return &ArticleRepo{Users: users, articles: make(map[string]*types.Article)}
}

func (r *ArticleRepo) Create(_ context.Context, article types.Article) (types.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	article.ID = uuid.NewString()
	article.CreatedAt = now
	article.UpdatedAt = now
	article.Likes = 0
	article.LikedBy = []string{}
	article.Comments = []types.Comment{}
	r.articles[article.ID] = &article
	return r.view(&article), nil
}

func (r *ArticleRepo) Get(_ context.Context, id string) (types.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	article, ok := r.articles[id]
	if !ok {
		return types.Article{}, store.ErrNotFound
	}
	return r.view(article), nil
}

func (r *ArticleRepo) ListApproved(_ context.Context, filter types.ArticleFilter, limit int) ([]types.Article, error) {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	category := strings.TrimSpace(filter.Category)
	articles := r.filter(func(a *types.Article) bool {
		if a.Status != types.StatusApproved {
			return false
		}
		if category != "" && a.Category != category {
			return false
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(a.Title), query) &&
			!strings.Contains(strings.ToLower(a.Content), query) {
			return false
		}
		return true
	})
	return truncate(articles, limit), nil
}

func (r *ArticleRepo) ListTrending(_ context.Context, since time.Time, limit int) ([]types.Article, error) {
	articles := r.filter(func(a *types.Article) bool {
		return a.Status == types.StatusApproved && !a.CreatedAt.Before(since)
	})
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Likes > articles[j].Likes
	})
	return truncate(articles, limit), nil
}

func (r *ArticleRepo) ListByAuthor(_ context.Context, authorID string) ([]types.Article, error) {
	return r.filter(func(a *types.Article) bool { return a.AuthorID == authorID }), nil
}

func (r *ArticleRepo) ListByStatus(_ context.Context, status types.ArticleStatus) ([]types.Article, error) {
	return r.filter(func(a *types.Article) bool { return a.Status == status }), nil
}

func (r *ArticleRepo) UpdateStatus(_ context.Context, id string, to types.ArticleStatus, from []types.ArticleStatus) (types.Article, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	article, ok := r.articles[id]
	if !ok {
		return types.Article{}, false, store.ErrNotFound
	}
	allowed := false
	for _, status := range from {
		if status == article.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		return types.Article{}, false, store.ErrConflict
	}
	changed := article.Status != to
	if changed {
		article.Status = to
		article.UpdatedAt = r.clock.Now()
	}
	return r.view(article), changed, nil
}

func (r *ArticleRepo) Delete(_ context.Context, id string) (types.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	article, ok := r.articles[id]
	if !ok {
		return types.Article{}, store.ErrNotFound
	}
	delete(r.articles, id)
	return types.Article{ID: article.ID, AuthorID: article.AuthorID, ImageURL: article.ImageURL, Status: article.Status}, nil
}

func (r *ArticleRepo) ToggleLike(_ context.Context, id, userID string, required types.ArticleStatus) (types.LikeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	article, ok := r.articles[id]
	if !ok || article.Status != required {
		return types.LikeResult{}, store.ErrNotFound
	}

	liked := true
	for i, existing := range article.LikedBy {
		if existing == userID {
			article.LikedBy = append(article.LikedBy[:i:i], article.LikedBy[i+1:]...)
			liked = false
			break
		}
	}
	if liked {
		article.LikedBy = append(article.LikedBy, userID)
	}
	article.Likes = len(article.LikedBy)
	article.UpdatedAt = r.clock.Now()
	return types.LikeResult{Likes: article.Likes, Liked: liked}, nil
}

func (r *ArticleRepo) AddComment(_ context.Context, id string, comment types.Comment, required types.ArticleStatus) (types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	article, ok := r.articles[id]
	if !ok || article.Status != required {
		return types.Comment{}, store.ErrNotFound
	}
	comment.ID = uuid.NewString()
	comment.CreatedAt = r.clock.Now()
	article.Comments = append(article.Comments, comment)
	return comment, nil
}

// Backdate moves an article's creation time, for trending window tests.
func (r *ArticleRepo) Backdate(id string, createdAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if article, ok := r.articles[id]; ok {
		article.CreatedAt = createdAt
	}
}

// filter returns copies of matching articles, newest first.
func (r *ArticleRepo) filter(match func(*types.Article) bool) []types.Article {
	r.mu.Lock()
	defer r.mu.Unlock()
	articles := make([]types.Article, 0)
	for _, article := range r.articles {
		if match(article) {
			articles = append(articles, r.view(article))
		}
	}
	sort.Slice(articles, func(i, j int) bool {
		if articles[i].CreatedAt.Equal(articles[j].CreatedAt) {
			return articles[i].ID < articles[j].ID
		}
		return articles[i].CreatedAt.After(articles[j].CreatedAt)
	})
	return articles
}

// view copies article so callers cannot mutate repository state.
func (r *ArticleRepo) view(article *types.Article) types.Article {
	out := *article
	out.LikedBy = append([]string{}, article.LikedBy...)
	out.Comments = append([]types.Comment{}, article.Comments...)
	out.Author = types.AuthorSummary{ID: article.AuthorID}
	if r.Users != nil {
		if user, err := r.Users.GetByID(context.Background(), article.AuthorID); err == nil {
			out.Author.Name = user.Name
		}
	}
	return out
}

func truncate(articles []types.Article, limit int) []types.Article {
	if limit > 0 && len(articles) > limit {
		return articles[:limit]
	}
	return articles
}
