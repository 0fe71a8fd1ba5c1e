// Package client is a Go SDK for the Devnovate API.
//
// A Client keeps the access token in memory and the refresh token in its
// cookie jar. Every authenticated call that comes back 401 triggers exactly
// one silent refresh followed by one retry; if either fails the session is
// cleared and ErrSignInRequired is returned.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/devnovate/api/types"
)

// ErrSignInRequired is returned when the session cannot be refreshed.
var ErrSignInRequired = errors.New("sign in required")

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("devnovate: %d %s", e.StatusCode, e.Message)
}

// Client talks to one API server.
type Client struct {
	baseURL string
	http    *http.Client

	mu          sync.Mutex
	accessToken string
	user        *types.User
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Jar must be set
// for refresh to work.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessToken returns the current access token, empty when signed out.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// User returns the signed-in user, nil when signed out.
func (c *Client) User() *types.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

type authResponse struct {
	AccessToken string     `json:"accessToken"`
	User        types.User `json:"user"`
}

func (c *Client) Signup(ctx context.Context, name, email, password string) (types.User, error) {
	return c.startSession(ctx, "/api/auth/signup", map[string]string{"name": name, "email": email, "password": password})
}

func (c *Client) Login(ctx context.Context, email, password string) (types.User, error) {
	return c.startSession(ctx, "/api/auth/login", map[string]string{"email": email, "password": password})
}

func (c *Client) startSession(ctx context.Context, path string, body any) (types.User, error) {
	var resp authResponse
	if err := c.send(ctx, http.MethodPost, path, body, "", &resp); err != nil {
		return types.User{}, err
	}
	c.setSession(resp.AccessToken, &resp.User)
	return resp.User, nil
}

// Logout clears the server cookie and the local session.
func (c *Client) Logout(ctx context.Context) error {
	err := c.send(ctx, http.MethodPost, "/api/auth/logout", nil, "", nil)
	c.setSession("", nil)
	return err
}

// Me returns the current user, or nil when the server does not recognize
// the session.
func (c *Client) Me(ctx context.Context) (*types.User, error) {
	var resp struct {
		User *types.User `json:"user"`
	}
	if err := c.send(ctx, http.MethodGet, "/api/auth/me", nil, c.AccessToken(), &resp); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.user = resp.User
	c.mu.Unlock()
	return resp.User, nil
}

// Refresh exchanges the refresh cookie for a new access token.
func (c *Client) Refresh(ctx context.Context) error {
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.send(ctx, http.MethodPost, "/api/auth/refresh", nil, "", &resp); err != nil {
		return err
	}
	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.mu.Unlock()
	return nil
}

// Do performs an authenticated JSON request and decodes the response into
// out. A 401 triggers one refresh and one retry.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	err := c.send(ctx, method, path, body, c.AccessToken(), out)
	if !isUnauthorized(err) {
		return err
	}

	if err := c.Refresh(ctx); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			c.setSession("", nil)
			return ErrSignInRequired
		}
		return err
	}

	err = c.send(ctx, method, path, body, c.AccessToken(), out)
	if isUnauthorized(err) {
		c.setSession("", nil)
		return ErrSignInRequired
	}
	return err
}

func (c *Client) setSession(token string, user *types.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
	c.user = user
}

func (c *Client) send(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// ListArticles returns approved articles, optionally filtered.
func (c *Client) ListArticles(ctx context.Context, filter types.ArticleFilter) ([]types.Article, error) {
	q := url.Values{}
	if filter.Query != "" {
		q.Set("q", filter.Query)
	}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	path := "/api/blogs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.listArticles(ctx, path, false)
}

// MyArticles returns the caller's articles in every status.
func (c *Client) MyArticles(ctx context.Context) ([]types.Article, error) {
	return c.listArticles(ctx, "/api/blogs/my", true)
}

// Trending returns the top articles of the last days days.
func (c *Client) Trending(ctx context.Context, days int) ([]types.Article, error) {
	return c.listArticles(ctx, "/api/blogs/trending?days="+strconv.Itoa(days), false)
}

// PendingArticles returns the moderation queue. Admin only.
func (c *Client) PendingArticles(ctx context.Context) ([]types.Article, error) {
	return c.listArticles(ctx, "/api/admin/pending", true)
}

func (c *Client) listArticles(ctx context.Context, path string, authenticated bool) ([]types.Article, error) {
	var resp struct {
		Articles []types.Article `json:"articles"`
	}
	var err error
	if authenticated {
		err = c.Do(ctx, http.MethodGet, path, nil, &resp)
	} else {
		err = c.send(ctx, http.MethodGet, path, nil, c.AccessToken(), &resp)
	}
	if err != nil {
		return nil, err
	}
	return resp.Articles, nil
}

// ArticleInput is the JSON body of an article submission.
type ArticleInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// CreateArticle submits an article for moderation.
func (c *Client) CreateArticle(ctx context.Context, in ArticleInput) (types.Article, error) {
	var resp struct {
		Article types.Article `json:"article"`
	}
	if err := c.Do(ctx, http.MethodPost, "/api/blogs/create", in, &resp); err != nil {
		return types.Article{}, err
	}
	return resp.Article, nil
}

// ToggleLike likes or unlikes an approved article.
func (c *Client) ToggleLike(ctx context.Context, articleID string) (types.LikeResult, error) {
	var result types.LikeResult
	err := c.Do(ctx, http.MethodPost, "/api/blogs/like/"+url.PathEscape(articleID), nil, &result)
	return result, err
}

// Comment adds a comment to an approved article.
func (c *Client) Comment(ctx context.Context, articleID, text string) error {
	return c.Do(ctx, http.MethodPost, "/api/blogs/comment/"+url.PathEscape(articleID), map[string]string{"content": text}, nil)
}

func (c *Client) moderate(ctx context.Context, articleID, action string) (types.Article, error) {
	var resp struct {
		Article types.Article `json:"article"`
	}
	path := "/api/admin/blogs/" + url.PathEscape(articleID) + "/" + action
	if err := c.Do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return types.Article{}, err
	}
	return resp.Article, nil
}

func (c *Client) Approve(ctx context.Context, articleID string) (types.Article, error) {
	return c.moderate(ctx, articleID, "approve")
}

func (c *Client) Reject(ctx context.Context, articleID string) (types.Article, error) {
	return c.moderate(ctx, articleID, "reject")
}

func (c *Client) Hide(ctx context.Context, articleID string) (types.Article, error) {
	return c.moderate(ctx, articleID, "hide")
}

// DeleteArticle permanently removes an article. Admin only.
func (c *Client) DeleteArticle(ctx context.Context, articleID string) error {
	return c.Do(ctx, http.MethodDelete, "/api/admin/blogs/"+url.PathEscape(articleID), nil, nil)
}
