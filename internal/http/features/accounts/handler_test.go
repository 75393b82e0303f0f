package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/citzn/civic-auth/internal/domain"
	"github.com/citzn/civic-auth/internal/httputil"
	"github.com/citzn/civic-auth/internal/ratelimit"
)

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "empty body",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "email and password are required",
		},
		{
			name:           "missing password",
			body:           `{"email": "voter@example.com"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "email and password are required",
		},
		{
			name:           "missing email",
			body:           `{"password": "Secret123"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "email and password are required",
		},
		{
			name:           "invalid json",
			body:           `{invalid}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
	}

	handler := &Handler{cookieConfig: httputil.DefaultCookieConfig()}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Validation should have failed before reaching service")
				}
			}()

			handler.Register(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.expectedStatus)
			}

			var response map[string]string
			json.NewDecoder(rec.Body).Decode(&response)
			if response["error"] != tt.expectedError {
				t.Errorf("Error = %q, want %q", response["error"], tt.expectedError)
			}
		})
	}
}

func TestLogin_Validation(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "empty body",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "email and password are required",
		},
		{
			name:           "missing password",
			body:           `{"email": "voter@example.com"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "email and password are required",
		},
		{
			name:           "invalid json",
			body:           `not json`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
	}

	handler := &Handler{cookieConfig: httputil.DefaultCookieConfig()}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Validation should have failed before reaching service")
				}
			}()

			handler.Login(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.expectedStatus)
			}

			var response map[string]string
			json.NewDecoder(rec.Body).Decode(&response)
			if response["error"] != tt.expectedError {
				t.Errorf("Error = %q, want %q", response["error"], tt.expectedError)
			}
		})
	}
}

func TestLogout_NoToken(t *testing.T) {
	handler := &Handler{cookieConfig: httputil.DefaultCookieConfig()}

	// No Authorization header and no cookie: logout still succeeds and
	// clears the cookie.
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}

	cookies := rec.Result().Cookies()
	var cleared bool
	for _, c := range cookies {
		if c.Name == "session_token" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected session cookie to be cleared")
	}
}

func TestLogoutAll_Unauthenticated(t *testing.T) {
	handler := &Handler{cookieConfig: httputil.DefaultCookieConfig()}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout-all", nil)
	rec := httptest.NewRecorder()

	handler.LogoutAll(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

// stubLimitStore is an in-memory ratelimit.Store that records every
// identifier it is queried with.
type stubLimitStore struct {
	rows map[string]*domain.RateLimitInfo
	keys []string
}

func newStubLimitStore() *stubLimitStore {
	return &stubLimitStore{rows: make(map[string]*domain.RateLimitInfo)}
}

func (s *stubLimitStore) Get(_ context.Context, identifier string, kind domain.RateLimitKind) (*domain.RateLimitInfo, error) {
	s.keys = append(s.keys, identifier)
	info, ok := s.rows[identifier+"|"+string(kind)]
	if !ok {
		return nil, nil
	}
	copied := *info
	return &copied, nil
}

func (s *stubLimitStore) Upsert(_ context.Context, info *domain.RateLimitInfo) error {
	copied := *info
	s.rows[info.Identifier+"|"+string(info.Kind)] = &copied
	return nil
}

func blockRow(identifier string, kind domain.RateLimitKind) *domain.RateLimitInfo {
	until := time.Now().Add(time.Hour)
	return &domain.RateLimitInfo{
		Identifier:   identifier,
		Kind:         kind,
		Attempts:     10,
		WindowStart:  time.Now(),
		Blocked:      true,
		BlockedUntil: &until,
	}
}

func TestRegister_RateLimitKeyedOnHost(t *testing.T) {
	store := newStubLimitStore()
	store.rows["203.0.113.7|"+string(domain.RateLimitRegistration)] = blockRow("203.0.113.7", domain.RateLimitRegistration)

	limiter := ratelimit.NewLimiter(store, map[domain.RateLimitKind]ratelimit.Policy{
		domain.RateLimitRegistration: {MaxAttempts: 10, Window: time.Hour},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	handler := &Handler{limiter: limiter, cookieConfig: httputil.DefaultCookieConfig()}

	// Each TCP connection carries a distinct ephemeral port. Both
	// requests must land on the same blocked counter.
	for _, remoteAddr := range []string{"203.0.113.7:51000", "203.0.113.7:51001"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/register",
			bytes.NewBufferString(`{"email": "voter@example.com", "password": "Secret123"}`))
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()

		handler.Register(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("RemoteAddr %s: status code = %d, want %d", remoteAddr, rec.Code, http.StatusTooManyRequests)
		}
	}

	for _, key := range store.keys {
		if strings.Contains(key, ":") {
			t.Errorf("limiter queried with ported identifier %q, want bare host", key)
		}
	}
}

func TestLogin_RateLimitedWithoutMetrics(t *testing.T) {
	store := newStubLimitStore()
	store.rows["voter@example.com|"+string(domain.RateLimitLogin)] = blockRow("voter@example.com", domain.RateLimitLogin)

	limiter := ratelimit.NewLimiter(store, map[domain.RateLimitKind]ratelimit.Policy{
		domain.RateLimitLogin: {MaxAttempts: 5, Window: 15 * time.Minute},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	// No metrics collector configured. The denial path must still
	// answer 429 instead of panicking.
	handler := &Handler{limiter: limiter, cookieConfig: httputil.DefaultCookieConfig()}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		bytes.NewBufferString(`{"email": "voter@example.com", "password": "Secret123"}`))
	req.RemoteAddr = "198.51.100.2:40000"
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}
