package accounts

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/citzn/civic-auth/internal/auth"
	"github.com/citzn/civic-auth/internal/domain"
	"github.com/citzn/civic-auth/internal/http/middleware"
	"github.com/citzn/civic-auth/internal/httputil"
	"github.com/citzn/civic-auth/internal/ratelimit"
	"github.com/citzn/civic-auth/internal/security"
)

// Metrics is the subset of the metrics collector the auth endpoints use.
type Metrics interface {
	RecordLoginAttempt(outcome string)
}

// Handler handles registration, login, and logout.
type Handler struct {
	logger       *slog.Logger
	accounts     *auth.AccountService
	sessions     *auth.SessionService
	limiter      *ratelimit.Limiter
	monitor      *security.Monitor
	metrics      Metrics
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new accounts handler.
func NewHandler(
	logger *slog.Logger,
	accounts *auth.AccountService,
	sessions *auth.SessionService,
	limiter *ratelimit.Limiter,
	monitor *security.Monitor,
	metrics Metrics,
) *Handler {
	return &Handler{
		logger:       logger,
		accounts:     accounts,
		sessions:     sessions,
		limiter:      limiter,
		monitor:      monitor,
		metrics:      metrics,
		cookieConfig: httputil.DefaultCookieConfig(),
	}
}

// recordLogin reports a login outcome when a collector is configured.
func (h *Handler) recordLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.RecordLoginAttempt(outcome)
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	ZipCode   *string `json:"zip_code,omitempty"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceInfo string `json:"device_info,omitempty"`
}

// SessionResponse is returned after a successful registration or login.
type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *UserProfile `json:"user"`
}

// UserProfile is the public subset of a user record.
type UserProfile struct {
	Email         string     `json:"email"`
	FirstName     *string    `json:"first_name,omitempty"`
	LastName      *string    `json:"last_name,omitempty"`
	ZipCode       *string    `json:"zip_code,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// NewUserProfile builds the public view of a user.
func NewUserProfile(u *domain.User) *UserProfile {
	return &UserProfile{
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		ZipCode:       u.ZipCode,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		LastLoginAt:   u.LastLoginAt,
	}
}

// Register handles user registration.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	// Keyed on the host alone so every connection from one address
	// shares a counter; RemoteAddr carries a per-connection port.
	if res := h.limiter.Check(r.Context(), httputil.ClientIP(r), domain.RateLimitRegistration); !res.Allowed {
		httputil.Error(w, http.StatusTooManyRequests, "too many registration attempts. please try again later")
		return
	}

	user, err := h.accounts.Register(r.Context(), auth.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ZipCode:   req.ZipCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserAlreadyExists):
			httputil.Error(w, http.StatusConflict, "an account with this email already exists")
		case errors.Is(err, domain.ErrInvalidEmail):
			httputil.Error(w, http.StatusBadRequest, "invalid email address")
		case errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrInvalidZipCode):
			httputil.Error(w, http.StatusBadRequest, "invalid ZIP code")
		default:
			h.logger.Error("registration failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	session, err := h.sessions.Create(r.Context(), user.Email, auth.SessionOpts{
		IP:        httputil.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.Error("failed to create session after registration", "error", err, "email", user.Email)
		httputil.Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	httputil.SetSessionCookie(w, session.Token, h.sessions.TTL(), h.cookieConfig)
	httputil.JSON(w, http.StatusCreated, SessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      NewUserProfile(user),
	})
}

// Login handles user login.
// POST /v1/auth/login
//
// The response for an unknown email is identical to the response for a
// wrong password.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if res := h.limiter.Check(r.Context(), email, domain.RateLimitLogin); !res.Allowed {
		h.recordLogin("rate_limited")
		httputil.Error(w, http.StatusTooManyRequests, "too many login attempts. please try again later")
		return
	}

	evCtx := security.EventContext{IP: httputil.ClientIP(r), UserAgent: r.UserAgent()}
	user, err := h.accounts.Authenticate(r.Context(), email, req.Password, evCtx)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			h.recordLogin("failure")
			httputil.Error(w, http.StatusUnauthorized, "invalid email or password")
		case errors.Is(err, domain.ErrAccountLocked):
			h.recordLogin("locked")
			httputil.Error(w, http.StatusForbidden, "account temporarily locked due to too many failed login attempts. please try again later")
		default:
			h.logger.Error("login failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	session, err := h.sessions.Create(r.Context(), user.Email, auth.SessionOpts{
		DeviceInfo: req.DeviceInfo,
		IP:         httputil.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		h.logger.Error("failed to create session", "error", err, "email", user.Email)
		httputil.Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.recordLogin("success")
	httputil.SetSessionCookie(w, session.Token, h.sessions.TTL(), h.cookieConfig)
	httputil.JSON(w, http.StatusOK, SessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      NewUserProfile(user),
	})
}

// Logout revokes the current session.
// POST /v1/auth/logout
//
// Always succeeds: a missing or already-revoked token still clears the
// cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := httputil.GetSessionToken(r); ok {
		session, err := h.sessions.Get(r.Context(), token)
		if err != nil {
			h.logger.Error("session lookup failed during logout", "error", err)
		}
		if err := h.sessions.Revoke(r.Context(), token); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			h.logger.Error("failed to revoke session", "error", err)
		}
		if session != nil {
			evCtx := security.EventContext{IP: httputil.ClientIP(r), UserAgent: r.UserAgent()}
			_ = h.monitor.LogEvent(r.Context(), session.UserEmail, domain.EventLogout, evCtx)
		}
	}

	httputil.ClearSessionCookie(w, h.cookieConfig)
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// LogoutAll revokes every active session the authenticated user holds.
// POST /v1/auth/logout-all
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetUserEmail(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	if err := h.sessions.RevokeAll(r.Context(), email, domain.RevocationLogout); err != nil {
		h.logger.Error("failed to revoke sessions", "error", err, "email", email)
		httputil.Error(w, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}

	evCtx := security.EventContext{IP: httputil.ClientIP(r), UserAgent: r.UserAgent(), Details: "logout everywhere"}
	_ = h.monitor.LogEvent(r.Context(), email, domain.EventSessionRevoked, evCtx)

	httputil.ClearSessionCookie(w, h.cookieConfig)
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "logged out everywhere"})
}
