package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type countingLimiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int64
	err    error
}

func (l *countingLimiter) Allow(_ context.Context, key string) (Decision, error) {
	if l.err != nil {
		return Decision{}, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = make(map[string]int64)
	}
	l.counts[key]++
	return decide(l.counts[key], l.limit, 30*time.Second), nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareRejectsAfterLimit(t *testing.T) {
	limiter := &countingLimiter{limit: 3}
	handler := Middleware(limiter, nil)(okHandler())

	for i := 1; i <= 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/blogs", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
		if got := rec.Header().Get("RateLimit-Remaining"); got != []string{"2", "1", "0"}[i-1] {
			t.Fatalf("request %d: unexpected remaining %q", i, got)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/blogs", nil)
	req.RemoteAddr = "10.0.0.1:5001"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "30" {
		t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/blogs", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other clients keep their own window, got %d", rec.Code)
	}
}

func TestMiddlewareFailsOpen(t *testing.T) {
	handler := Middleware(&countingLimiter{err: errors.New("redis down")}, nil)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected request to pass, got %d", rec.Code)
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	handler := Middleware(nil, nil)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("RateLimit-Limit") != "" {
		t.Fatalf("disabled limiter must not touch the response")
	}
}
