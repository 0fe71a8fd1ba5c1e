package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devnovate/api/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ArticleRepository handles persistence for articles, their like set and
// their comments.
type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

const articleSelect = `
		SELECT a.id, a.author_id, u.name, a.title, a.content, a.category,
		       COALESCE(a.image_url, ''), a.status, a.like_count, a.created_at, a.updated_at
		FROM articles a
		JOIN users u ON u.id = a.author_id`

func (r *ArticleRepository) Create(ctx context.Context, article types.Article) (types.Article, error) {
	now := time.Now().UTC()
	article.ID = uuid.NewString()
	article.CreatedAt = now
	article.UpdatedAt = now

	const query = `
		INSERT INTO articles (id, author_id, title, content, category, image_url, status, like_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, 0, $8, $9)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		article.ID,
		article.AuthorID,
		article.Title,
		article.Content,
		article.Category,
		article.ImageURL,
		string(article.Status),
		article.CreatedAt,
		article.UpdatedAt,
	); err != nil {
		return types.Article{}, mapWriteError(err)
	}

	return r.Get(ctx, article.ID)
}

func (r *ArticleRepository) Get(ctx context.Context, id string) (types.Article, error) {
	if !validID(id) {
		return types.Article{}, ErrNotFound
	}
	articles, err := r.list(ctx, articleSelect+` WHERE a.id = $1`, id)
	if err != nil {
		return types.Article{}, err
	}
	if len(articles) == 0 {
		return types.Article{}, ErrNotFound
	}
	return articles[0], nil
}

// ListApproved returns approved articles matching filter, newest first.
func (r *ArticleRepository) ListApproved(ctx context.Context, filter types.ArticleFilter, limit int) ([]types.Article, error) {
	conditions := []string{"a.status = $1"}
	args := []any{string(types.StatusApproved)}

	if category := strings.TrimSpace(filter.Category); category != "" {
		args = append(args, category)
		conditions = append(conditions, fmt.Sprintf("a.category = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(`(a.title ILIKE $%d ESCAPE '\' OR a.content ILIKE $%d ESCAPE '\')`, n, n))
	}

	args = append(args, limit)
	query := articleSelect +
		` WHERE ` + strings.Join(conditions, " AND ") +
		fmt.Sprintf(` ORDER BY a.created_at DESC, a.id LIMIT $%d`, len(args))
	return r.list(ctx, query, args...)
}

// ListTrending returns approved articles created at or after since, most
// liked first with ties broken by recency.
func (r *ArticleRepository) ListTrending(ctx context.Context, since time.Time, limit int) ([]types.Article, error) {
	query := articleSelect + `
		WHERE a.status = $1 AND a.created_at >= $2
		ORDER BY a.like_count DESC, a.created_at DESC, a.id
		LIMIT $3`
	return r.list(ctx, query, string(types.StatusApproved), since, limit)
}

// ListByAuthor returns every article of an author regardless of status.
func (r *ArticleRepository) ListByAuthor(ctx context.Context, authorID string) ([]types.Article, error) {
	if !validID(authorID) {
		return []types.Article{}, nil
	}
	query := articleSelect + `
		WHERE a.author_id = $1
		ORDER BY a.created_at DESC, a.id`
	return r.list(ctx, query, authorID)
}

// ListByStatus returns all articles in status, newest first.
func (r *ArticleRepository) ListByStatus(ctx context.Context, status types.ArticleStatus) ([]types.Article, error) {
	query := articleSelect + `
		WHERE a.status = $1
		ORDER BY a.created_at DESC, a.id`
	return r.list(ctx, query, string(status))
}

// UpdateStatus moves an article to status "to" only when its current status
// is one of from, and reports whether the status actually changed. It
// returns ErrConflict when the article exists in another status.
func (r *ArticleRepository) UpdateStatus(ctx context.Context, id string, to types.ArticleStatus, from []types.ArticleStatus) (types.Article, bool, error) {
	if !validID(id) {
		return types.Article{}, false, ErrNotFound
	}

	allowed := make([]string, 0, len(from))
	for _, status := range from {
		allowed = append(allowed, string(status))
	}

	const query = `
		WITH prev AS (
			SELECT id, status
			FROM articles
			WHERE id = $3
			FOR UPDATE
		)
		UPDATE articles a
		SET status = $1,
			updated_at = CASE WHEN prev.status = $1 THEN a.updated_at ELSE $2 END
		FROM prev
		WHERE a.id = prev.id AND prev.status = ANY($4)
		RETURNING prev.status`
	var previous string
	err := r.db.QueryRowContext(ctx, query, string(to), time.Now().UTC(), id, pq.Array(allowed)).Scan(&previous)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return types.Article{}, false, err
		}
		exists, err := r.exists(ctx, id)
		if err != nil {
			return types.Article{}, false, err
		}
		if !exists {
			return types.Article{}, false, ErrNotFound
		}
		return types.Article{}, false, ErrConflict
	}

	article, err := r.Get(ctx, id)
	if err != nil {
		return types.Article{}, false, err
	}
	return article, types.ArticleStatus(previous) != to, nil
}

// Delete removes an article with its likes and comments and returns the
// deleted row.
func (r *ArticleRepository) Delete(ctx context.Context, id string) (types.Article, error) {
	if !validID(id) {
		return types.Article{}, ErrNotFound
	}
	const query = `
		DELETE FROM articles
		WHERE id = $1
		RETURNING id, author_id, COALESCE(image_url, ''), status`
	var article types.Article
	var status string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&article.ID, &article.AuthorID, &article.ImageURL, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Article{}, ErrNotFound
		}
		return types.Article{}, err
	}
	article.Status = types.ArticleStatus(status)
	return article, nil
}

// ToggleLike flips userID's membership in the like set of an article in
// status required. The article row is locked for the duration of the
// transaction so concurrent toggles serialize and like_count always equals
// the size of the set.
func (r *ArticleRepository) ToggleLike(ctx context.Context, id, userID string, required types.ArticleStatus) (types.LikeResult, error) {
	if !validID(id) || !validID(userID) {
		return types.LikeResult{}, ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.LikeResult{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM articles WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.LikeResult{}, ErrNotFound
		}
		return types.LikeResult{}, err
	}
	if types.ArticleStatus(status) != required {
		return types.LikeResult{}, ErrNotFound
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `DELETE FROM article_likes WHERE article_id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return types.LikeResult{}, err
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return types.LikeResult{}, err
	}
	liked := removed == 0
	if liked {
		const insert = `INSERT INTO article_likes (article_id, user_id, created_at) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, insert, id, userID, now); err != nil {
			return types.LikeResult{}, err
		}
	}

	const recount = `
		UPDATE articles
		SET like_count = (SELECT COUNT(1) FROM article_likes WHERE article_id = $1),
			updated_at = $2
		WHERE id = $1
		RETURNING like_count`
	var likes int
	if err := tx.QueryRowContext(ctx, recount, id, now).Scan(&likes); err != nil {
		return types.LikeResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.LikeResult{}, err
	}
	return types.LikeResult{Likes: likes, Liked: liked}, nil
}

// AddComment appends a comment to an article in status required. The insert
// and the status check are a single statement.
func (r *ArticleRepository) AddComment(ctx context.Context, id string, comment types.Comment, required types.ArticleStatus) (types.Comment, error) {
	if !validID(id) {
		return types.Comment{}, ErrNotFound
	}
	comment.ID = uuid.NewString()
	comment.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO article_comments (id, article_id, author_id, content, created_at)
		SELECT $1, a.id, $3, $4, $5
		FROM articles a
		WHERE a.id = $2 AND a.status = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		comment.ID,
		id,
		comment.AuthorID,
		comment.Content,
		comment.CreatedAt,
		string(required),
	)
	if err != nil {
		return types.Comment{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Comment{}, err
	}
	if affected == 0 {
		return types.Comment{}, ErrNotFound
	}
	return comment, nil
}

func (r *ArticleRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM articles WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// list runs an articleSelect query and attaches like sets and comments.
func (r *ArticleRepository) list(ctx context.Context, query string, args ...any) ([]types.Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := make([]types.Article, 0)
	index := make(map[string]int)
	for rows.Next() {
		var article types.Article
		var status string
		if err := rows.Scan(
			&article.ID,
			&article.AuthorID,
			&article.Author.Name,
			&article.Title,
			&article.Content,
			&article.Category,
			&article.ImageURL,
			&status,
			&article.Likes,
			&article.CreatedAt,
			&article.UpdatedAt,
		); err != nil {
			return nil, err
		}
		article.Author.ID = article.AuthorID
		article.Status = types.ArticleStatus(status)
		article.LikedBy = []string{}
		article.Comments = []types.Comment{}
		index[article.ID] = len(articles)
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return articles, nil
	}

	ids := make([]string, 0, len(articles))
	for _, article := range articles {
		ids = append(ids, article.ID)
	}
	if err := r.attachLikes(ctx, ids, articles, index); err != nil {
		return nil, err
	}
	if err := r.attachComments(ctx, ids, articles, index); err != nil {
		return nil, err
	}
	return articles, nil
}

func (r *ArticleRepository) attachLikes(ctx context.Context, ids []string, articles []types.Article, index map[string]int) error {
	const query = `
		SELECT article_id, user_id
		FROM article_likes
		WHERE article_id = ANY($1)
		ORDER BY created_at, user_id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var articleID, userID string
		if err := rows.Scan(&articleID, &userID); err != nil {
			return err
		}
		if i, ok := index[articleID]; ok {
			articles[i].LikedBy = append(articles[i].LikedBy, userID)
		}
	}
	return rows.Err()
}

func (r *ArticleRepository) attachComments(ctx context.Context, ids []string, articles []types.Article, index map[string]int) error {
	const query = `
		SELECT id, article_id, author_id, content, created_at
		FROM article_comments
		WHERE article_id = ANY($1)
		ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var comment types.Comment
		var articleID string
		if err := rows.Scan(&comment.ID, &articleID, &comment.AuthorID, &comment.Content, &comment.CreatedAt); err != nil {
			return err
		}
		if i, ok := index[articleID]; ok {
			articles[i].Comments = append(articles[i].Comments, comment)
		}
	}
	return rows.Err()
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
