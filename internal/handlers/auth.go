package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/devnovate/api/internal/auth"
	"github.com/devnovate/api/internal/services"
	"github.com/devnovate/api/internal/store"
	"github.com/devnovate/api/types"
	"github.com/go-chi/chi/v5"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

// AuthHandler provides signup, login and session endpoints.
type AuthHandler struct {
	users         *services.UserService
	sessions      *auth.SessionManager
	authenticator *Authenticator
	secureCookie  bool
	logger        *slog.Logger
}

// NewAuthHandler constructs an AuthHandler. secureCookie switches the
// refresh cookie to SameSite=None; Secure for cross-site production use.
func NewAuthHandler(users *services.UserService, sessions *auth.SessionManager, secureCookie bool, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		users:         users,
		sessions:      sessions,
		authenticator: NewAuthenticator(sessions),
		secureCookie:  secureCookie,
		logger:        logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/signup", handler.Signup)
	r.Post("/login", handler.Login)
	r.Post("/refresh", handler.Refresh)
	r.Post("/logout", handler.Logout)
	r.With(handler.authenticator.OptionalAuth).Get("/me", handler.Me)
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	AccessToken string     `json:"accessToken"`
	User        types.User `json:"user"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// MeResponse carries a null user for anonymous callers.
type MeResponse struct {
	User *types.User `json:"user"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Signup(r.Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "email already in use")
			return
		}
		writeServiceError(w, r, h.logger, err, "failed to create user")
		return
	}

	h.startSession(w, r, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to authenticate")
		return
	}

	h.startSession(w, r, user)
}

// Me never fails: anything short of a valid token and an existing user
// yields {"user": null}.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, MeResponse{})
		return
	}

	user, err := h.users.GetByID(r.Context(), principal.Subject)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.WarnContext(r.Context(), "load current user failed", slog.Any("error", err))
		}
		writeJSON(w, http.StatusOK, MeResponse{})
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{User: &user})
}

// Refresh mints a new access token from the refresh cookie. The refresh
// token itself is not rotated.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	access, err := h.sessions.RotateAccess(cookie.Value)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: access})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie := h.refreshCookie("")
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user types.User) {
	access, refresh, err := h.sessions.IssueTokenPair(user.ID, user.Role)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to create token")
		return
	}
	http.SetCookie(w, h.refreshCookie(refresh))
	writeJSON(w, http.StatusOK, AuthResponse{AccessToken: access, User: user})
}

func (h *AuthHandler) refreshCookie(value string) *http.Cookie {
	cookie := &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(h.sessions.RefreshTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if h.secureCookie {
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	}
	return cookie
}
