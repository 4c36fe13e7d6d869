package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/remedy/internal/config"
	"github.com/temcen/remedy/pkg/models"
)

func newTestAuthService(secret string) *AuthService {
	return newTestAuthServiceWithSessions(secret, nil)
}

func newTestAuthServiceWithSessions(secret string, sessions *redis.Client) *AuthService {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewAuthService(&config.AuthConfig{
		JWTSecret: secret,
		TokenTTL:  time.Hour,
		APIKeys: map[string]string{
			"ops-key":    models.RoleAdmin,
			"viewer-key": models.RoleViewer,
			"legacy-key": "",
		},
	}, logger, sessions)
}

func TestAuthService_ValidateAPIKey(t *testing.T) {
	s := newTestAuthService("secret")

	role, err := s.ValidateAPIKey("ops-key")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)

	role, err = s.ValidateAPIKey("legacy-key")
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, role)

	_, err = s.ValidateAPIKey("nope")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	_, err = s.ValidateAPIKey("")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestAuthService_TokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestAuthService("secret")

	resp, err := s.IssueToken(ctx, "ops-key")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.Role)
	assert.NotEmpty(t, resp.TokenID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)

	claims, err := s.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, resp.TokenID, claims.ID)
}

func TestAuthService_ValidateToken_Rejects(t *testing.T) {
	ctx := context.Background()
	s := newTestAuthService("secret")

	t.Run("garbage", func(t *testing.T) {
		_, err := s.ValidateToken(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other := newTestAuthService("another-secret")
		resp, err := other.IssueToken(ctx, "viewer-key")
		require.NoError(t, err)

		_, err = s.ValidateToken(ctx, resp.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		claims := &models.JWTClaims{
			Role: models.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(past),
				ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
				Issuer:    tokenIssuer,
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = s.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("signing disabled", func(t *testing.T) {
		unsigned := newTestAuthService("")
		_, err := unsigned.IssueToken(ctx, "ops-key")
		assert.Error(t, err)
	})
}

func TestAuthService_Sessions(t *testing.T) {
	ctx := context.Background()

	t.Run("issued token has a session with the token ttl", func(t *testing.T) {
		server, client := newTestRedis(t)
		s := newTestAuthServiceWithSessions("secret", client)

		resp, err := s.IssueToken(ctx, "ops-key")
		require.NoError(t, err)

		key := "session:" + resp.TokenID
		require.True(t, server.Exists(key))
		role, err := server.Get(key)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, role)
		assert.Equal(t, time.Hour, server.TTL(key))

		claims, err := s.ValidateToken(ctx, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, resp.TokenID, claims.ID)
	})

	t.Run("missing session rejects a valid signature", func(t *testing.T) {
		server, client := newTestRedis(t)
		s := newTestAuthServiceWithSessions("secret", client)

		resp, err := s.IssueToken(ctx, "viewer-key")
		require.NoError(t, err)
		server.Del("session:" + resp.TokenID)

		_, err = s.ValidateToken(ctx, resp.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired session rejects the token", func(t *testing.T) {
		server, client := newTestRedis(t)
		s := newTestAuthServiceWithSessions("secret", client)

		resp, err := s.IssueToken(ctx, "viewer-key")
		require.NoError(t, err)
		server.FastForward(2 * time.Hour)

		_, err = s.ValidateToken(ctx, resp.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("revoked token is rejected", func(t *testing.T) {
		server, client := newTestRedis(t)
		s := newTestAuthServiceWithSessions("secret", client)

		revoked, err := s.IssueToken(ctx, "ops-key")
		require.NoError(t, err)
		kept, err := s.IssueToken(ctx, "ops-key")
		require.NoError(t, err)

		require.NoError(t, s.RevokeToken(ctx, revoked.TokenID))
		assert.False(t, server.Exists("session:"+revoked.TokenID))

		_, err = s.ValidateToken(ctx, revoked.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)

		_, err = s.ValidateToken(ctx, kept.Token)
		assert.NoError(t, err)
	})

	t.Run("revoking an unknown token succeeds", func(t *testing.T) {
		_, client := newTestRedis(t)
		s := newTestAuthServiceWithSessions("secret", client)

		assert.NoError(t, s.RevokeToken(ctx, "7d4a0c1e-3b52-4f8e-9d1a-2c6b8e0f5a11"))
		assert.ErrorIs(t, s.RevokeToken(ctx, ""), ErrInvalidToken)
	})

	t.Run("redis outage keeps tokens valid", func(t *testing.T) {
		server, client := newTestRedis(t)
		s := newTestAuthServiceWithSessions("secret", client)

		resp, err := s.IssueToken(ctx, "ops-key")
		require.NoError(t, err)
		server.SetError("ERR session store unavailable")

		_, err = s.ValidateToken(ctx, resp.Token)
		assert.NoError(t, err)
	})

	t.Run("revocation needs a session store", func(t *testing.T) {
		s := newTestAuthService("secret")
		assert.ErrorIs(t, s.RevokeToken(ctx, "7d4a0c1e-3b52-4f8e-9d1a-2c6b8e0f5a11"), ErrSessionStoreUnavailable)
	})
}
