package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/config"
	"github.com/temcen/remedy/pkg/models"
)

const tokenIssuer = "github.com/temcen/remedy"

var (
	ErrInvalidAPIKey           = errors.New("invalid API key")
	ErrInvalidToken            = errors.New("invalid token")
	ErrSessionStoreUnavailable = errors.New("session store is not configured")
)

// AuthService issues and validates bearer credentials. Sessions are tracked in
// Redis when a client is configured.
type AuthService struct {
	config      *config.AuthConfig
	logger      *logrus.Logger
	redisClient *redis.Client // optional
	jwtSecret   []byte
}

func NewAuthService(cfg *config.AuthConfig, logger *logrus.Logger, redisClient *redis.Client) *AuthService {
	return &AuthService{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
		jwtSecret:   []byte(cfg.JWTSecret),
	}
}

// ValidateAPIKey returns the role bound to apiKey.
func (s *AuthService) ValidateAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", ErrInvalidAPIKey
	}
	role, ok := s.config.APIKeys[apiKey]
	if !ok {
		return "", ErrInvalidAPIKey
	}
	if role == "" {
		role = models.RoleViewer
	}
	return role, nil
}

// IssueToken exchanges an API key for a signed JWT carrying the key's role.
func (s *AuthService) IssueToken(ctx context.Context, apiKey string) (*models.AuthResponse, error) {
	if len(s.jwtSecret) == 0 {
		return nil, errors.New("token signing is not configured")
	}

	role, err := s.ValidateAPIKey(apiKey)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(s.config.TokenTTL)
	tokenID := uuid.New().String()
	claims := &models.JWTClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   role,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Set(ctx, sessionKey(tokenID), role, s.config.TokenTTL).Err(); err != nil {
			// Don't fail token generation if Redis is down
			s.logger.WithError(err).Warn("Failed to store session in Redis")
		}
	}

	return &models.AuthResponse{
		Token:     tokenString,
		TokenID:   tokenID,
		Role:      role,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	if len(s.jwtSecret) == 0 {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if s.redisClient != nil {
		exists, err := s.redisClient.Exists(ctx, sessionKey(claims.ID)).Result()
		if err != nil {
			// Continue validation even if Redis is down
			s.logger.WithError(err).Warn("Failed to check session in Redis")
		} else if exists == 0 {
			return nil, fmt.Errorf("%w: session not found or expired", ErrInvalidToken)
		}
	}

	return claims, nil
}

// RevokeToken ends the session of a previously issued token. Without Redis
// tokens stay valid until they expire.
func (s *AuthService) RevokeToken(ctx context.Context, tokenID string) error {
	if s.redisClient == nil {
		return ErrSessionStoreUnavailable
	}
	if tokenID == "" {
		return ErrInvalidToken
	}

	removed, err := s.redisClient.Del(ctx, sessionKey(tokenID)).Result()
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"token_id": tokenID,
		"existed":  removed > 0,
	}).Info("Session revoked")
	return nil
}

func sessionKey(tokenID string) string {
	return fmt.Sprintf("session:%s", tokenID)
}
