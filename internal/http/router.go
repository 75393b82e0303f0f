package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citzn/civic-auth/internal/auth"
	"github.com/citzn/civic-auth/internal/http/features/accounts"
	"github.com/citzn/civic-auth/internal/http/features/email"
	"github.com/citzn/civic-auth/internal/http/features/me"
	"github.com/citzn/civic-auth/internal/http/features/password"
	"github.com/citzn/civic-auth/internal/http/middleware"
	"github.com/citzn/civic-auth/internal/httputil"
	"github.com/citzn/civic-auth/internal/metrics"
	"github.com/citzn/civic-auth/internal/ratelimit"
	"github.com/citzn/civic-auth/internal/security"
)

// maxRequestBodySize caps JSON request bodies. Auth payloads are small.
const maxRequestBodySize = 64 * 1024

// RouterConfig holds everything the router wires together.
type RouterConfig struct {
	Logger                *slog.Logger
	Accounts              *auth.AccountService
	Sessions              *auth.SessionService
	Verification          *auth.VerificationService
	Limiter               *ratelimit.Limiter
	Monitor               *security.Monitor
	Metrics               *metrics.Collector
	SecurityHeaders       middleware.SecurityHeadersConfig
	EdgeRateLimit         bool
	EdgeRequestsPerMinute int
}

// NewRouter creates the HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(maxRequestBodySize))

	edge := middleware.NoRateLimit()
	if cfg.EdgeRateLimit {
		edge = middleware.EdgeRateLimit(cfg.EdgeRequestsPerMinute, cfg.Logger)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	requireAuth := middleware.Auth(cfg.Sessions)

	// A nil *metrics.Collector must stay nil as an interface value, so
	// the conversion only happens when a collector is present.
	var loginMetrics accounts.Metrics
	if cfg.Metrics != nil {
		loginMetrics = cfg.Metrics
	}

	accountsHandler := accounts.NewHandler(cfg.Logger, cfg.Accounts, cfg.Sessions, cfg.Limiter, cfg.Monitor, loginMetrics)
	r.Group(func(r chi.Router) {
		r.Use(edge)
		r.Post("/v1/auth/register", accountsHandler.Register)
		r.Post("/v1/auth/login", accountsHandler.Login)
	})
	r.Post("/v1/auth/logout", accountsHandler.Logout)
	r.With(requireAuth).Post("/v1/auth/logout-all", accountsHandler.LogoutAll)

	passwordHandler := password.NewHandler(cfg.Logger, cfg.Accounts, cfg.Verification, cfg.Limiter)
	r.Group(func(r chi.Router) {
		r.Use(edge)
		r.Post("/v1/auth/password/forgot", passwordHandler.Forgot)
		r.Post("/v1/auth/password/reset", passwordHandler.Reset)
	})
	r.With(requireAuth).Post("/v1/auth/password/change", passwordHandler.Change)

	emailHandler := email.NewHandler(cfg.Logger, cfg.Verification)
	r.With(edge).Post("/v1/auth/email/verify", emailHandler.Verify)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(edge)
		r.Post("/v1/auth/email/resend", emailHandler.Resend)
	})

	meHandler := me.NewHandler(cfg.Logger, cfg.Accounts, cfg.Sessions)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/v1/me", meHandler.GetMe)
		r.Patch("/v1/me", meHandler.UpdateMe)
		r.Get("/v1/me/sessions", meHandler.ListSessions)
		r.Post("/v1/auth/security-questions", meHandler.SetSecurityQuestions)
	})

	return r
}
