package password

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/citzn/civic-auth/internal/auth"
	"github.com/citzn/civic-auth/internal/domain"
	"github.com/citzn/civic-auth/internal/http/middleware"
	"github.com/citzn/civic-auth/internal/httputil"
	"github.com/citzn/civic-auth/internal/ratelimit"
	"github.com/citzn/civic-auth/internal/security"
)

// Handler handles password recovery and change endpoints.
type Handler struct {
	logger       *slog.Logger
	accounts     *auth.AccountService
	verification *auth.VerificationService
	limiter      *ratelimit.Limiter
}

// NewHandler creates a new password handler.
func NewHandler(
	logger *slog.Logger,
	accounts *auth.AccountService,
	verification *auth.VerificationService,
	limiter *ratelimit.Limiter,
) *Handler {
	return &Handler{
		logger:       logger,
		accounts:     accounts,
		verification: verification,
		limiter:      limiter,
	}
}

// ForgotRequest represents a password reset request.
type ForgotRequest struct {
	Email string `json:"email"`
}

// ResetRequest represents a password reset confirmation.
type ResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ChangeRequest represents an authenticated password change.
type ChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// forgotAccepted is the response for every reset request, whether or not
// the account exists.
var forgotAccepted = map[string]string{
	"status": "if an account exists for that email, a reset link has been sent",
}

// Forgot starts the password reset flow.
// POST /v1/auth/password/forgot
//
// The response never reveals whether the email is registered.
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req ForgotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		httputil.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if res := h.limiter.Check(r.Context(), email, domain.RateLimitPasswordReset); !res.Allowed {
		httputil.Error(w, http.StatusTooManyRequests, "too many reset requests. please try again later")
		return
	}

	user, err := h.accounts.GetUser(r.Context(), email)
	if err != nil {
		h.logger.Error("reset request lookup failed", "error", err)
		httputil.JSON(w, http.StatusAccepted, forgotAccepted)
		return
	}
	if user == nil {
		httputil.JSON(w, http.StatusAccepted, forgotAccepted)
		return
	}

	evCtx := security.EventContext{IP: httputil.ClientIP(r), UserAgent: r.UserAgent()}
	token, err := h.verification.CreatePasswordResetToken(r.Context(), email, evCtx)
	if err != nil {
		h.logger.Error("failed to create reset token", "error", err, "email", email)
		httputil.JSON(w, http.StatusAccepted, forgotAccepted)
		return
	}

	// Delivery is out of band; the token is logged for operator-assisted
	// flows until a mail sender is wired in.
	h.logger.Info("password reset token issued", "email", email, "token_id", token.ID)
	httputil.JSON(w, http.StatusAccepted, forgotAccepted)
}

// Reset completes the password reset flow.
// POST /v1/auth/password/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		httputil.Error(w, http.StatusBadRequest, "token and new password are required")
		return
	}

	// Weak passwords are rejected before the token is redeemed so a
	// failed attempt does not burn the single-use credential.
	if err := h.accounts.PasswordPolicy().ValidatePassword(req.NewPassword); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	// Redeem before mutating: if two requests race on the same token,
	// exactly one wins here and the loser never touches the account.
	token, err := h.verification.RedeemToken(r.Context(), domain.TokenKindPasswordReset, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenNotFound):
			httputil.Error(w, http.StatusBadRequest, "invalid reset token")
		case errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusBadRequest, "reset token has expired")
		case errors.Is(err, domain.ErrTokenUsed):
			httputil.Error(w, http.StatusBadRequest, "reset token has already been used")
		default:
			h.logger.Error("reset token redemption failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "password reset failed")
		}
		return
	}

	evCtx := security.EventContext{IP: httputil.ClientIP(r), UserAgent: r.UserAgent()}
	if err := h.accounts.ResetPassword(r.Context(), token.Email, req.NewPassword, evCtx); err != nil {
		h.logger.Error("password reset failed", "error", err, "email", token.Email)
		httputil.Error(w, http.StatusInternalServerError, "password reset failed")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "password has been reset"})
}

// Change handles an authenticated password change.
// POST /v1/auth/password/change
func (h *Handler) Change(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetUserEmail(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	var req ChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		httputil.Error(w, http.StatusBadRequest, "current and new passwords are required")
		return
	}

	evCtx := security.EventContext{IP: httputil.ClientIP(r), UserAgent: r.UserAgent()}
	if err := h.accounts.ChangePassword(r.Context(), email, req.CurrentPassword, req.NewPassword, evCtx); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusForbidden, "current password is incorrect")
		case errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("password change failed", "error", err, "email", email)
			httputil.Error(w, http.StatusInternalServerError, "password change failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}
