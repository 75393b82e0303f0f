package me

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/citzn/civic-auth/internal/auth"
	"github.com/citzn/civic-auth/internal/domain"
	"github.com/citzn/civic-auth/internal/http/middleware"
	"github.com/citzn/civic-auth/internal/httputil"
	"github.com/citzn/civic-auth/internal/security"
)

// Handler handles authenticated profile endpoints.
type Handler struct {
	logger   *slog.Logger
	accounts *auth.AccountService
	sessions *auth.SessionService
}

// NewHandler creates a new profile handler.
func NewHandler(logger *slog.Logger, accounts *auth.AccountService, sessions *auth.SessionService) *Handler {
	return &Handler{logger: logger, accounts: accounts, sessions: sessions}
}

// ProfileResponse is the authenticated user's own view of their account.
type ProfileResponse struct {
	Email                string     `json:"email"`
	FirstName            *string    `json:"first_name,omitempty"`
	LastName             *string    `json:"last_name,omitempty"`
	ZipCode              *string    `json:"zip_code,omitempty"`
	EmailVerified        bool       `json:"email_verified"`
	HasSecurityQuestions bool       `json:"has_security_questions"`
	CreatedAt            time.Time  `json:"created_at"`
	LastLoginAt          *time.Time `json:"last_login_at,omitempty"`
	ActiveSessionCount   int        `json:"active_session_count"`
}

// SessionInfo is the public view of one session.
type SessionInfo struct {
	ID           string    `json:"id"`
	DeviceInfo   *string   `json:"device_info,omitempty"`
	IP           *string   `json:"ip,omitempty"`
	UserAgent    *string   `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Current      bool      `json:"current"`
}

// UpdateRequest represents a partial profile update.
type UpdateRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	ZipCode   *string `json:"zip_code,omitempty"`
}

// SecurityQuestionsRequest sets the two recovery questions.
type SecurityQuestionsRequest struct {
	Question1 string `json:"question_1"`
	Answer1   string `json:"answer_1"`
	Question2 string `json:"question_2"`
	Answer2   string `json:"answer_2"`
}

// GetMe returns the authenticated user's profile.
// GET /v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetUserEmail(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	user, err := h.accounts.GetUser(r.Context(), email)
	if err != nil {
		h.logger.Error("failed to load user", "error", err, "email", email)
		httputil.Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if user == nil {
		httputil.Error(w, http.StatusNotFound, "user not found")
		return
	}

	httputil.JSON(w, http.StatusOK, ProfileResponse{
		Email:                user.Email,
		FirstName:            user.FirstName,
		LastName:             user.LastName,
		ZipCode:              user.ZipCode,
		EmailVerified:        user.EmailVerified,
		HasSecurityQuestions: user.HasSecurityQuestions(),
		CreatedAt:            user.CreatedAt,
		LastLoginAt:          user.LastLoginAt,
		ActiveSessionCount:   len(user.ActiveSessions),
	})
}

// UpdateMe applies a partial profile update.
// PATCH /v1/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetUserEmail(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ZipCode != nil {
		if err := auth.ValidateZipCode(*req.ZipCode); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid ZIP code")
			return
		}
	}

	update := &domain.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ZipCode:   req.ZipCode,
	}
	if update.IsEmpty() {
		httputil.Error(w, http.StatusBadRequest, "no fields to update")
		return
	}

	evCtx := security.EventContext{IP: httputil.ClientIP(r), UserAgent: r.UserAgent()}
	if err := h.accounts.UpdateUser(r.Context(), email, update, evCtx); err != nil {
		h.logger.Error("profile update failed", "error", err, "email", email)
		httputil.Error(w, http.StatusInternalServerError, "profile update failed")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "profile updated"})
}

// ListSessions returns the user's active sessions.
// GET /v1/me/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetUserEmail(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	sessions, err := h.sessions.ListActive(r.Context(), email)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err, "email", email)
		httputil.Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	var currentToken string
	if current, ok := middleware.GetSession(r.Context()); ok {
		currentToken = current.Token
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{
			ID:           s.ID.String(),
			DeviceInfo:   s.DeviceInfo,
			IP:           s.IP,
			UserAgent:    s.UserAgent,
			CreatedAt:    s.CreatedAt,
			LastActiveAt: s.LastActiveAt,
			ExpiresAt:    s.ExpiresAt,
			Current:      s.Token == currentToken,
		})
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// SetSecurityQuestions stores the user's two recovery questions.
// POST /v1/auth/security-questions
func (h *Handler) SetSecurityQuestions(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetUserEmail(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	var req SecurityQuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question1 == "" || req.Answer1 == "" || req.Question2 == "" || req.Answer2 == "" {
		httputil.Error(w, http.StatusBadRequest, "two questions and two answers are required")
		return
	}
	if req.Question1 == req.Question2 {
		httputil.Error(w, http.StatusBadRequest, "security questions must be different")
		return
	}

	evCtx := security.EventContext{IP: httputil.ClientIP(r), UserAgent: r.UserAgent()}
	if err := h.accounts.SetSecurityQuestions(r.Context(), email, req.Question1, req.Answer1, req.Question2, req.Answer2, evCtx); err != nil {
		h.logger.Error("failed to set security questions", "error", err, "email", email)
		httputil.Error(w, http.StatusInternalServerError, "failed to set security questions")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "security questions set"})
}
