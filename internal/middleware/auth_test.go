package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/temcen/remedy/pkg/models"
)

type stubAuthenticator struct {
	keys   map[string]string
	tokens map[string]string
}

func (s *stubAuthenticator) ValidateAPIKey(apiKey string) (string, error) {
	if role, ok := s.keys[apiKey]; ok {
		return role, nil
	}
	return "", errors.New("invalid API key")
}

func (s *stubAuthenticator) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	if role, ok := s.tokens[tokenString]; ok {
		return &models.JWTClaims{Role: role}, nil
	}
	return nil, errors.New("invalid token")
}

func TestAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	auth := &stubAuthenticator{
		keys:   map[string]string{"ops-key": models.RoleAdmin, "viewer-key": models.RoleViewer},
		tokens: map[string]string{"header.payload.sig": models.RoleAdmin},
	}

	router := gin.New()
	admin := router.Group("/admin", Auth(auth, logger), RequireRole(models.RoleAdmin))
	admin.POST("/fit", func(c *gin.Context) {
		c.String(http.StatusOK, RoleFromContext(c))
	})

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic b3BzOmtleQ==", http.StatusUnauthorized},
		{"admin api key", "Bearer ops-key", http.StatusOK},
		{"viewer api key", "Bearer viewer-key", http.StatusForbidden},
		{"unknown api key", "Bearer nope", http.StatusUnauthorized},
		{"admin jwt", "Bearer header.payload.sig", http.StatusOK},
		{"invalid jwt", "Bearer x.y.z", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/fit", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, models.RoleAdmin, w.Body.String())
			}
		})
	}
}
