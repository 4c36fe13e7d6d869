package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/services"
	"github.com/temcen/remedy/pkg/models"
)

type TokenManager interface {
	IssueToken(ctx context.Context, apiKey string) (*models.AuthResponse, error)
	RevokeToken(ctx context.Context, tokenID string) error
}

type AuthHandler struct {
	issuer    TokenManager
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewAuthHandler(issuer TokenManager, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		issuer:    issuer,
		validator: validator.New(),
		logger:    logger,
	}
}

// IssueToken exchanges an API key for a JWT.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req models.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.APIKey == "" {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST_BODY", "api_key is required", nil))
		return
	}

	response, err := h.issuer.IssueToken(c.Request.Context(), req.APIKey)
	if err != nil {
		if errors.Is(err, services.ErrInvalidAPIKey) {
			c.JSON(http.StatusUnauthorized, errorResponse("INVALID_API_KEY", "Invalid API key", nil))
			return
		}
		h.logger.WithError(err).Error("Failed to issue token")
		c.JSON(http.StatusInternalServerError, errorResponse("TOKEN_ISSUE_FAILED", "Failed to issue token", nil))
		return
	}

	c.JSON(http.StatusOK, response)
}

// RevokeToken ends the session behind a previously issued JWT, after which
// the token is rejected even though it has not expired.
func (h *AuthHandler) RevokeToken(c *gin.Context) {
	var req models.RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST_BODY", "Invalid request body", gin.H{"reason": err.Error()}))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_TOKEN_ID", "token_id must be the id of an issued token", nil))
		return
	}

	if err := h.issuer.RevokeToken(c.Request.Context(), req.TokenID); err != nil {
		if errors.Is(err, services.ErrSessionStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, errorResponse("SESSION_STORE_UNAVAILABLE", "Token revocation requires Redis sessions", nil))
			return
		}
		h.logger.WithError(err).WithField("token_id", req.TokenID).Error("Failed to revoke token")
		c.JSON(http.StatusInternalServerError, errorResponse("TOKEN_REVOKE_FAILED", "Failed to revoke token", nil))
		return
	}

	c.JSON(http.StatusOK, models.RevokeResponse{TokenID: req.TokenID, Revoked: true})
}
