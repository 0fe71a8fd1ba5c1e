package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devnovate/api/types"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testAccessSecret  = "access-secret"
	testRefreshSecret = "refresh-secret"
	testSubject       = "6b0f5f7e-2a57-4c1d-9a43-1f1e0d9c8b7a"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, clock *fakeClock) *SessionManager {
	t.Helper()
	m, err := NewSessionManager(testAccessSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	return m
}

func TestIssueAndVerifyPair(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	access, refresh, err := m.IssueTokenPair(testSubject, types.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	p, err := m.VerifyAccess(access)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if p.Subject != testSubject || p.Role != types.RoleAdmin || !p.IsAdmin() {
		t.Fatalf("unexpected principal %+v", p)
	}

	p, err = m.VerifyRefresh(refresh)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if p.Subject != testSubject {
		t.Fatalf("unexpected refresh subject %q", p.Subject)
	}
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	// Sharing a secret isolates the type claim as the only difference.
	m, err := NewSessionManager("shared", "", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	access, refresh, err := m.IssueTokenPair(testSubject, types.RoleUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.VerifyRefresh(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := m.VerifyAccess(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
	if _, err := m.RotateAccess(access); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("rotate with access token: %v", err)
	}
}

func TestAccessTokenExpires(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	access, refresh, err := m.IssueTokenPair(testSubject, types.RoleUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.now = clock.now.Add(16 * time.Minute)
	if _, err := m.VerifyAccess(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired access token, got %v", err)
	}

	rotated, err := m.RotateAccess(refresh)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	p, err := m.VerifyAccess(rotated)
	if err != nil {
		t.Fatalf("verify rotated: %v", err)
	}
	if p.Subject != testSubject || p.Role != types.RoleUser {
		t.Fatalf("unexpected rotated principal %+v", p)
	}

	clock.now = clock.now.Add(7 * 24 * time.Hour)
	if _, err := m.RotateAccess(refresh); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected expired refresh token, got %v", err)
	}
}

func TestVerifyRejectsForeignSignatures(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)
	other, err := NewSessionManager("other", "other-refresh", time.Minute, time.Hour, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}

	access, refresh, err := other.IssueTokenPair(testSubject, types.RoleUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.VerifyAccess(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign access token accepted: %v", err)
	}
	if _, err := m.VerifyRefresh(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign refresh token accepted: %v", err)
	}
}

func TestVerifyRejectsMalformedClaims(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	cases := map[string]jwt.MapClaims{
		"missing type": {
			"sub":  testSubject,
			"role": "user",
			"exp":  clock.now.Add(time.Minute).Unix(),
		},
		"missing subject": {
			"role": "user",
			"type": TokenTypeAccess,
			"exp":  clock.now.Add(time.Minute).Unix(),
		},
		"unknown role": {
			"sub":  testSubject,
			"role": "superuser",
			"type": TokenTypeAccess,
			"exp":  clock.now.Add(time.Minute).Unix(),
		},
		"no expiry": {
			"sub":  testSubject,
			"role": "user",
			"type": TokenTypeAccess,
		},
	}
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAccessSecret))
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			if _, err := m.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}

	if _, err := m.VerifyAccess("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestNewSessionManagerValidation(t *testing.T) {
	if _, err := NewSessionManager("", "x", time.Minute, time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewSessionManager("x", "", 0, time.Hour); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

func TestPrincipalContext(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatalf("expected no principal in empty context")
	}
	ctx := WithPrincipal(context.Background(), Principal{Subject: testSubject, Role: types.RoleUser})
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.Subject != testSubject {
		t.Fatalf("principal not round-tripped: %+v", p)
	}
}
