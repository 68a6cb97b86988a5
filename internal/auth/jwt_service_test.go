package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "paperless-ai"})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken("user-1", true)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.True(t, claims.IsAdmin)
	require.Equal(t, "paperless-ai", claims.Issuer)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	issuer, err := NewJWTService(JWTConfig{
		Secret:         "test-secret",
		AccessTokenTTL: time.Hour,
		Clock:          func() time.Time { return issued },
	})
	require.NoError(t, err)

	token, err := issuer.GenerateAccessToken("user-1", false)
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	issuer, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "other"})
	require.NoError(t, err)

	token, err := issuer.GenerateAccessToken("user-1", false)
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "paperless-ai"})
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	require.Error(t, err)
}
