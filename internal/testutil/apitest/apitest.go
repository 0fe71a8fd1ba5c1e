// Package apitest runs the full router over in-memory repositories for
// HTTP-level tests.
package apitest

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/devnovate/api/internal/auth"
	"github.com/devnovate/api/internal/metrics"
	"github.com/devnovate/api/internal/mq"
	"github.com/devnovate/api/internal/ratelimit"
	"github.com/devnovate/api/internal/server"
	"github.com/devnovate/api/internal/services"
	"github.com/devnovate/api/internal/testutil"
	"github.com/devnovate/api/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	Channel      = "devnovate.articles"
	AccessTTL    = 15 * time.Minute
	RefreshTTL   = 7 * 24 * time.Hour
	accessSecret = "test-access-secret"
)

// Env is a running test server plus handles on its state.
type Env struct {
	Server   *httptest.Server
	Users    *testutil.UserRepo
	Articles *testutil.ArticleRepo
	Broker   *testutil.Broker
	Objects  *testutil.ObjectStore
	Metrics  *metrics.Metrics
	Sessions *auth.SessionManager

	mu  sync.Mutex
	now time.Time
}

// Options tweak the environment.
type Options struct {
	Limiter       ratelimit.Limiter
	SecureCookies bool
}

// New starts a server that is closed with the test.
func New(t *testing.T, opts Options) *Env {
	t.Helper()

	env := &Env{
		Users:   testutil.NewUserRepo(),
		Broker:  testutil.NewBroker(),
		Objects: testutil.NewObjectStore(),
		Metrics: metrics.New(),
		now:     time.Now(),
	}
	env.Articles = testutil.NewArticleRepo(env.Users)

	sessions, err := auth.NewSessionManager(accessSecret, "test-refresh-secret", AccessTTL, RefreshTTL, auth.WithClock(env.Now))
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	env.Sessions = sessions

	media := services.NewMedia(env.Objects, "/uploads")
	publisher := mq.NewArticlePublisher(mq.New(env.Broker), Channel)
	router := server.Routes(server.Dependencies{
		Sessions:      sessions,
		Users:         services.NewUserService(env.Users, services.WithHashCost(bcrypt.MinCost)),
		Articles:      services.NewArticleService(env.Articles, media, publisher, env.Metrics, nil),
		Moderation:    services.NewModerationService(env.Articles, media, publisher, env.Metrics, nil),
		Feed:          services.NewFeedService(env.Articles),
		Media:         media,
		Metrics:       env.Metrics,
		Limiter:       opts.Limiter,
		SecureCookies: opts.SecureCookies,
		MediaPath:     "/uploads",
	})

	env.Server = httptest.NewServer(router)
	t.Cleanup(env.Server.Close)
	return env
}

// Now is the clock used by the session manager.
func (e *Env) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

// Advance moves the session clock forward.
func (e *Env) Advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

// URL joins path onto the server address.
func (e *Env) URL(path string) string {
	return e.Server.URL + path
}

// Promote grants the admin role to the user with email. Tokens issued
// afterwards carry the new role.
func (e *Env) Promote(t *testing.T, email string) {
	t.Helper()
	if _, err := e.Users.SetRole(context.Background(), email, types.RoleAdmin); err != nil {
		t.Fatalf("promote %s: %v", email, err)
	}
}
