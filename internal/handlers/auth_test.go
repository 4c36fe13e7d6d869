package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/remedy/internal/services"
	"github.com/temcen/remedy/pkg/models"
)

type MockTokenManager struct {
	mock.Mock
}

func (m *MockTokenManager) IssueToken(ctx context.Context, apiKey string) (*models.AuthResponse, error) {
	args := m.Called(ctx, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthResponse), args.Error(1)
}

func (m *MockTokenManager) RevokeToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func TestAuthHandler_IssueToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	issuer := new(MockTokenManager)
	issuer.On("IssueToken", mock.Anything, "ops-key").Return(&models.AuthResponse{
		Token:     "a.b.c",
		Role:      models.RoleAdmin,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil)
	issuer.On("IssueToken", mock.Anything, "wrong").Return(nil, services.ErrInvalidAPIKey)
	issuer.On("IssueToken", mock.Anything, "broken").Return(nil, errors.New("signing failed"))

	handler := NewAuthHandler(issuer, testLogger())
	router := gin.New()
	router.POST("/api/v1/auth/token", handler.IssueToken)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{"valid key", `{"api_key":"ops-key"}`, http.StatusOK},
		{"unknown key", `{"api_key":"wrong"}`, http.StatusUnauthorized},
		{"signing failure", `{"api_key":"broken"}`, http.StatusInternalServerError},
		{"missing key", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/api/v1/auth/token", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestAuthHandler_RevokeToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	revoked := uuid.NewString()
	noStore := uuid.NewString()
	broken := uuid.NewString()

	issuer := new(MockTokenManager)
	issuer.On("RevokeToken", mock.Anything, revoked).Return(nil)
	issuer.On("RevokeToken", mock.Anything, noStore).Return(services.ErrSessionStoreUnavailable)
	issuer.On("RevokeToken", mock.Anything, broken).Return(errors.New("redis: connection refused"))

	handler := NewAuthHandler(issuer, testLogger())
	router := gin.New()
	router.POST("/api/v1/auth/revoke", handler.RevokeToken)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedCode   string
	}{
		{"revoked", `{"token_id":"` + revoked + `"}`, http.StatusOK, ""},
		{"no session store", `{"token_id":"` + noStore + `"}`, http.StatusServiceUnavailable, "SESSION_STORE_UNAVAILABLE"},
		{"redis failure", `{"token_id":"` + broken + `"}`, http.StatusInternalServerError, "TOKEN_REVOKE_FAILED"},
		{"missing token id", `{}`, http.StatusBadRequest, "INVALID_TOKEN_ID"},
		{"token id is not a uuid", `{"token_id":"srv-1"}`, http.StatusBadRequest, "INVALID_TOKEN_ID"},
		{"malformed body", `{"token_id":`, http.StatusBadRequest, "INVALID_REQUEST_BODY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/api/v1/auth/revoke", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				assert.Contains(t, w.Body.String(), tt.expectedCode)
			}
		})
	}

	t.Run("response names the token", func(t *testing.T) {
		w := postJSON(router, "/api/v1/auth/revoke", `{"token_id":"`+revoked+`"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var response models.RevokeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, revoked, response.TokenID)
		assert.True(t, response.Revoked)
	})

	issuer.AssertNotCalled(t, "RevokeToken", mock.Anything, "srv-1")
}
