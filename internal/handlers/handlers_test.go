package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/models"
	"github.com/coinview/backend/internal/services"
)

// stubUserService authenticates exactly one token.
type stubUserService struct {
	user  *models.User
	token string
}

func (s *stubUserService) Register(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	return s.user, nil
}

func (s *stubUserService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	return &models.Session{Token: s.token, UserID: s.user.ID}, nil
}

func (s *stubUserService) GetByToken(ctx context.Context, token string) (*models.User, error) {
	if token != s.token {
		return nil, apperrors.ErrUnauthorized
	}
	return s.user, nil
}

func (s *stubUserService) Update(ctx context.Context, userID uint, input services.UpdateUserInput) (*models.User, error) {
	return s.user, nil
}

func (s *stubUserService) Delete(ctx context.Context, userID uint) error { return nil }

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.Validation("field", "bad"), http.StatusBadRequest},
		{"invalid amount", apperrors.ErrInvalidAmount, http.StatusBadRequest},
		{"insufficient funds", apperrors.ErrInsufficientFunds, http.StatusBadRequest},
		{"insufficient holdings", apperrors.ErrInsufficientHoldings, http.StatusBadRequest},
		{"unsupported source", apperrors.ErrUnsupportedSource, http.StatusBadRequest},
		{"unauthorized", apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound},
		{"rate limited", apperrors.Upstream("coincap", apperrors.UpstreamRateLimited, "429"), http.StatusTooManyRequests},
		{"upstream down", apperrors.Upstream("coincap", apperrors.UpstreamUnavailable, "503"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rec.Code)
			}
			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Error == "" {
				t.Errorf("Expected a JSON error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	users := &stubUserService{
		user:  &models.User{ID: 7, Email: "alice@example.com"},
		token: "valid-token",
	}
	var seen *models.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = currentUser(r)
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(users)(next)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer valid-token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/crypto/portfolio", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusOK && (seen == nil || seen.ID != 7) {
				t.Errorf("Expected the user in the request context, got %v", seen)
			}
		})
	}
}

func TestDecodeBody_InvalidJSONIsValidationError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	var dst struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decodeBody(req, &dst); !apperrors.IsValidation(err) {
		t.Errorf("Expected a validation error, got %v", err)
	}
}

func TestCORSMiddleware_PreflightShortCircuits(t *testing.T) {
	called := false
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/crypto/buy", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("Preflight must not reach the handler")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected the CORS origin header")
	}
}
