// Package auth mints and verifies the access/refresh token pair.
//
// Both tokens are stateless HS256 JWTs carrying the subject, role and a
// type claim. Access tokens are short-lived bearer credentials; refresh
// tokens live in an HTTP-only cookie and can only mint new access tokens.
// There is no server-side session table, so tokens are revoked by expiry
// only.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devnovate/api/types"
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnauthenticated is returned when a refresh cannot mint an access token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when a verified principal lacks a role.
	ErrForbidden = errors.New("forbidden")
)

// Principal is the authenticated caller extracted from a verified token.
type Principal struct {
	Subject string
	Role    types.Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == types.RoleAdmin
}

// Claims is the JWT body of both token kinds.
type Claims struct {
	Role string `json:"role"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies tokens.
type SessionManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// Option customizes a SessionManager.
type Option func(*SessionManager)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(m *SessionManager) {
		m.now = now
	}
}

// NewSessionManager constructs a manager. An empty refreshSecret reuses the
// access secret.
func NewSessionManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...Option) (*SessionManager, error) {
	accessSecret = strings.TrimSpace(accessSecret)
	if accessSecret == "" {
		return nil, errors.New("access token secret is required")
	}
	refreshSecret = strings.TrimSpace(refreshSecret)
	if refreshSecret == "" {
		refreshSecret = accessSecret
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}

	m := &SessionManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// RefreshTTL is the lifetime of refresh tokens and of the refresh cookie.
func (m *SessionManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// IssueTokenPair mints an access and a refresh token for subject.
func (m *SessionManager) IssueTokenPair(subject string, role types.Role) (string, string, error) {
	access, err := m.sign(subject, role, TokenTypeAccess, m.accessSecret, m.accessTTL)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := m.sign(subject, role, TokenTypeRefresh, m.refreshSecret, m.refreshTTL)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}
	return access, refresh, nil
}

// VerifyAccess validates an access token.
func (m *SessionManager) VerifyAccess(token string) (Principal, error) {
	return m.verify(token, TokenTypeAccess, m.accessSecret)
}

// VerifyRefresh validates a refresh token.
func (m *SessionManager) VerifyRefresh(token string) (Principal, error) {
	return m.verify(token, TokenTypeRefresh, m.refreshSecret)
}

// RotateAccess mints a new access token from a valid refresh token. The
// refresh token itself is not rotated.
func (m *SessionManager) RotateAccess(refreshToken string) (string, error) {
	principal, err := m.VerifyRefresh(refreshToken)
	if err != nil {
		return "", ErrUnauthenticated
	}
	access, err := m.sign(principal.Subject, principal.Role, TokenTypeAccess, m.accessSecret, m.accessTTL)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return access, nil
}

func (m *SessionManager) sign(subject string, role types.Role, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("missing subject")
	}
	now := m.now()
	claims := Claims{
		Role: string(role),
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (m *SessionManager) verify(tokenString, wantType string, secret []byte) (Principal, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Principal{}, ErrInvalidToken
	}

	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	},
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	if claims.Type != wantType {
		return Principal{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, ErrInvalidToken
	}
	role, ok := types.ParseRole(claims.Role)
	if !ok {
		return Principal{}, ErrInvalidToken
	}
	return Principal{Subject: claims.Subject, Role: role}, nil
}
