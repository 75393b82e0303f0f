package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Sessions
	SessionTTL time.Duration

	// Single-use tokens
	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration

	// Account lockout
	LockoutMaxAttempts int
	LockoutDuration    time.Duration

	// Identifier rate limiting (fixed-window counters in the database)
	RateLimitEnabled        bool
	LoginMaxAttempts        int
	LoginWindow             time.Duration
	ResetMaxAttempts        int
	ResetWindow             time.Duration
	RegistrationMaxAttempts int
	RegistrationWindow      time.Duration

	// Edge rate limiting (per-IP middleware)
	EdgeRequestsPerMinute int

	// Maintenance
	SecurityEventRetention time.Duration
	CleanupInterval        time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		// Database defaults
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnvInt("DB_PORT", 5432),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "civic_auth"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		// Session defaults
		SessionTTL: getEnvDuration("SESSION_TTL", 7*24*time.Hour),

		// Token defaults
		PasswordResetTTL:     getEnvDuration("PASSWORD_RESET_TTL", time.Hour),
		EmailVerificationTTL: getEnvDuration("EMAIL_VERIFICATION_TTL", 24*time.Hour),

		// Lockout defaults
		LockoutMaxAttempts: getEnvInt("LOCKOUT_MAX_ATTEMPTS", 5),
		LockoutDuration:    getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),

		// Rate limit defaults: login 5 attempts / 15 minutes,
		// password reset 3 attempts / 60 minutes.
		RateLimitEnabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
		LoginMaxAttempts:        getEnvInt("RATE_LIMIT_LOGIN_MAX", 5),
		LoginWindow:             getEnvDuration("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute),
		ResetMaxAttempts:        getEnvInt("RATE_LIMIT_RESET_MAX", 3),
		ResetWindow:             getEnvDuration("RATE_LIMIT_RESET_WINDOW", time.Hour),
		RegistrationMaxAttempts: getEnvInt("RATE_LIMIT_REGISTRATION_MAX", 10),
		RegistrationWindow:      getEnvDuration("RATE_LIMIT_REGISTRATION_WINDOW", time.Hour),

		EdgeRequestsPerMinute: getEnvInt("EDGE_REQUESTS_PER_MINUTE", 60),

		// Maintenance defaults
		SecurityEventRetention: getEnvDuration("SECURITY_EVENT_RETENTION", 90*24*time.Hour),
		CleanupInterval:        getEnvDuration("CLEANUP_INTERVAL", time.Hour),
	}

	if cfg.DBName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}

	return cfg, nil
}

// DatabaseURL renders the postgres:// URL used by the migrator.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword),
		c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
