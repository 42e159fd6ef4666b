package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestJWTService(t *testing.T, clock func() time.Time) *JWTService {
	t.Helper()
	svc, err := NewJWTService(JWTConfig{
		Secret: "test-secret",
		Issuer: "actionable",
		Clock:  clock,
	})
	require.NoError(t, err)
	return svc
}

func TestJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
}

func TestJWTRoundTrip(t *testing.T) {
	svc := newTestJWTService(t, nil)

	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "user-1", SessionID: "sess-1"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "sess-1", claims.SessionID)
	require.Equal(t, "actionable", claims.Issuer)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	issued := time.Now().Add(-time.Hour)
	issuer := newTestJWTService(t, func() time.Time { return issued })

	token, err := issuer.GenerateAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	validator := newTestJWTService(t, nil)
	_, err = validator.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	svc := newTestJWTService(t, nil)
	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	other, err := NewJWTService(JWTConfig{Secret: "different-secret", Issuer: "actionable"})
	require.NoError(t, err)
	_, err = other.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTRejectsWrongIssuer(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "someone-else"})
	require.NoError(t, err)
	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	validator := newTestJWTService(t, nil)
	_, err = validator.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTRequiresUserID(t *testing.T) {
	svc := newTestJWTService(t, nil)
	_, err := svc.GenerateAccessToken(AccessTokenInput{})
	require.Error(t, err)
}
