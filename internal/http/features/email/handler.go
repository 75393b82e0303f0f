package email

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/citzn/civic-auth/internal/auth"
	"github.com/citzn/civic-auth/internal/domain"
	"github.com/citzn/civic-auth/internal/http/middleware"
	"github.com/citzn/civic-auth/internal/httputil"
	"github.com/citzn/civic-auth/internal/security"
)

// Handler handles email verification endpoints.
type Handler struct {
	logger       *slog.Logger
	verification *auth.VerificationService
}

// NewHandler creates a new email verification handler.
func NewHandler(logger *slog.Logger, verification *auth.VerificationService) *Handler {
	return &Handler{logger: logger, verification: verification}
}

// VerifyRequest represents an email verification request.
type VerifyRequest struct {
	Token string `json:"token"`
}

// Verify marks the token's email address verified.
// POST /v1/auth/email/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		httputil.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	evCtx := security.EventContext{IP: httputil.ClientIP(r), UserAgent: r.UserAgent()}
	if err := h.verification.VerifyEmail(r.Context(), req.Token, evCtx); err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenNotFound):
			httputil.Error(w, http.StatusBadRequest, "invalid verification token")
		case errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusBadRequest, "verification token has expired")
		case errors.Is(err, domain.ErrTokenUsed):
			httputil.Error(w, http.StatusBadRequest, "verification token has already been used")
		default:
			h.logger.Error("email verification failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "email verification failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "email verified"})
}

// Resend issues a fresh verification token for the authenticated user.
// POST /v1/auth/email/resend
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetUserEmail(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	token, err := h.verification.CreateEmailVerificationToken(r.Context(), email)
	if err != nil {
		h.logger.Error("failed to create verification token", "error", err, "email", email)
		httputil.Error(w, http.StatusInternalServerError, "failed to create verification token")
		return
	}

	// Delivery is out of band; see the reset flow for the same caveat.
	h.logger.Info("verification token issued", "email", email, "token_id", token.ID)
	httputil.JSON(w, http.StatusAccepted, map[string]string{"status": "verification email sent"})
}
