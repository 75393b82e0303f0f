package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/citzn/civic-auth/internal/auth"
	"github.com/citzn/civic-auth/internal/config"
	"github.com/citzn/civic-auth/internal/domain"
	httpserver "github.com/citzn/civic-auth/internal/http"
	"github.com/citzn/civic-auth/internal/http/middleware"
	"github.com/citzn/civic-auth/internal/metrics"
	"github.com/citzn/civic-auth/internal/ratelimit"
	"github.com/citzn/civic-auth/internal/repository"
	"github.com/citzn/civic-auth/internal/security"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := repository.NewDB(repository.Config{
		Host:         cfg.DBHost,
		Port:         cfg.DBPort,
		User:         cfg.DBUser,
		Password:     cfg.DBPassword,
		DBName:       cfg.DBName,
		SSLMode:      cfg.DBSSLMode,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	if err := repository.RunMigrations(cfg.DatabaseURL()); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	usersRepo := repository.NewUsersRepository(db)
	sessionsRepo := repository.NewSessionsRepository(db)
	tokensRepo := repository.NewTokensRepository(db)
	rateLimitsRepo := repository.NewRateLimitsRepository(db)
	eventsRepo := repository.NewSecurityEventsRepository(db)

	// Services
	collector := metrics.NewCollector()

	limiter := ratelimit.NewLimiter(rateLimitsRepo, map[domain.RateLimitKind]ratelimit.Policy{
		domain.RateLimitLogin:         {MaxAttempts: cfg.LoginMaxAttempts, Window: cfg.LoginWindow},
		domain.RateLimitPasswordReset: {MaxAttempts: cfg.ResetMaxAttempts, Window: cfg.ResetWindow},
		domain.RateLimitRegistration:  {MaxAttempts: cfg.RegistrationMaxAttempts, Window: cfg.RegistrationWindow},
	}, logger, collector)

	monitor := security.NewMonitor(eventsRepo, limiter, logger, collector)

	passwordPolicy := auth.DefaultPasswordPolicy()
	accountService := auth.NewAccountService(
		db,
		usersRepo,
		sessionsRepo,
		eventsRepo,
		monitor,
		passwordPolicy,
		auth.LockoutPolicy{MaxAttempts: cfg.LockoutMaxAttempts, Duration: cfg.LockoutDuration},
		logger,
	)
	sessionService := auth.NewSessionService(sessionsRepo, cfg.SessionTTL, logger)
	verificationService := auth.NewVerificationService(auth.VerificationConfig{
		PasswordResetTTL:     cfg.PasswordResetTTL,
		EmailVerificationTTL: cfg.EmailVerificationTTL,
	}, tokensRepo, usersRepo, monitor, logger)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:                logger,
		Accounts:              accountService,
		Sessions:              sessionService,
		Verification:          verificationService,
		Limiter:               limiter,
		Monitor:               monitor,
		Metrics:               collector,
		SecurityHeaders:       middleware.DefaultSecurityHeaders(),
		EdgeRateLimit:         cfg.RateLimitEnabled,
		EdgeRequestsPerMinute: cfg.EdgeRequestsPerMinute,
	})

	// Background maintenance: sweep expired sessions and tokens, prune
	// old audit rows and stale rate-limit counters.
	maintCtx, stopMaint := context.WithCancel(context.Background())
	go runMaintenance(maintCtx, cfg, logger, sessionService, verificationService, monitor, rateLimitsRepo)

	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stopMaint()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

func runMaintenance(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	sessions *auth.SessionService,
	verification *auth.VerificationService,
	monitor *security.Monitor,
	rateLimits *repository.RateLimitsRepository,
) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if n, err := sessions.CleanupExpired(ctx); err != nil {
			logger.Error("session cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info("expired sessions swept", "count", n)
		}

		for _, kind := range []domain.TokenKind{domain.TokenKindPasswordReset, domain.TokenKindEmailVerification} {
			if n, err := verification.CleanupExpiredTokens(ctx, kind); err != nil {
				logger.Error("token cleanup failed", "kind", kind, "error", err)
			} else if n > 0 {
				logger.Info("expired tokens deleted", "kind", kind, "count", n)
			}
		}

		if n, err := monitor.CleanupOldEvents(ctx, cfg.SecurityEventRetention); err != nil {
			logger.Error("security event cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info("old security events deleted", "count", n)
		}

		if n, err := rateLimits.DeleteStale(ctx); err != nil {
			logger.Error("rate limit cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info("stale rate limit rows deleted", "count", n)
		}
	}
}
