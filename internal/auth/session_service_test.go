package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "github.com/actionable-app/actionable/pkg/errors"

	"github.com/actionable-app/actionable/internal/database/testutil"
	"github.com/actionable-app/actionable/internal/models"
)

func newTestSessionService(t *testing.T, db *gorm.DB, opts ...SessionOption) *SessionService {
	t.Helper()
	jwtSvc := newTestJWTService(t, nil)
	svc, err := NewSessionService(db, jwtSvc, opts...)
	require.NoError(t, err)
	return svc
}

func seedSessionUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{Email: "session@example.com", Name: "Tester", IsActive: true}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCreateSessionIssuesTokenPair(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedSessionUser(t, db)
	svc := newTestSessionService(t, db)

	tokens, err := svc.CreateSession(context.Background(), user.ID, SessionMetadata{
		IPAddress: "127.0.0.1",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	require.NotEmpty(t, tokens.SessionID)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	require.True(t, tokens.ExpiresAt.After(time.Now()))

	jwtSvc := newTestJWTService(t, nil)
	claims, err := jwtSvc.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, tokens.SessionID, claims.SessionID)
}

func TestRefreshSessionRotatesToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedSessionUser(t, db)
	svc := newTestSessionService(t, db)

	created, err := svc.CreateSession(context.Background(), user.ID, SessionMetadata{})
	require.NoError(t, err)

	refreshed, err := svc.RefreshSession(context.Background(), created.RefreshToken, SessionMetadata{})
	require.NoError(t, err)
	require.Equal(t, created.SessionID, refreshed.SessionID)
	require.NotEqual(t, created.RefreshToken, refreshed.RefreshToken)

	// The old token no longer resolves.
	_, err = svc.RefreshSession(context.Background(), created.RefreshToken, SessionMetadata{})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefreshSessionRejectsUnknownToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newTestSessionService(t, db)

	_, err := svc.RefreshSession(context.Background(), "does-not-exist", SessionMetadata{})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = svc.RefreshSession(context.Background(), "", SessionMetadata{})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefreshSessionRejectsRevoked(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedSessionUser(t, db)
	svc := newTestSessionService(t, db)

	created, err := svc.CreateSession(context.Background(), user.ID, SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, svc.RevokeSession(context.Background(), created.SessionID))

	_, err = svc.RefreshSession(context.Background(), created.RefreshToken, SessionMetadata{})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefreshSessionRejectsExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedSessionUser(t, db)

	past := time.Now().Add(-48 * time.Hour)
	issuedThen := newTestSessionService(t, db, WithSessionClock(func() time.Time { return past }), WithRefreshTokenTTL(time.Hour))

	created, err := issuedThen.CreateSession(context.Background(), user.ID, SessionMetadata{})
	require.NoError(t, err)

	svc := newTestSessionService(t, db)
	_, err = svc.RefreshSession(context.Background(), created.RefreshToken, SessionMetadata{})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRevokeAllForUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedSessionUser(t, db)
	svc := newTestSessionService(t, db)

	first, err := svc.CreateSession(context.Background(), user.ID, SessionMetadata{})
	require.NoError(t, err)
	second, err := svc.CreateSession(context.Background(), user.ID, SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAllForUser(context.Background(), user.ID))

	_, err = svc.RefreshSession(context.Background(), first.RefreshToken, SessionMetadata{})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = svc.RefreshSession(context.Background(), second.RefreshToken, SessionMetadata{})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestCleanupExpiredRemovesStaleSessions(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedSessionUser(t, db)
	svc := newTestSessionService(t, db)

	stale, err := svc.CreateSession(context.Background(), user.ID, SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, svc.RevokeSession(context.Background(), stale.SessionID))

	active, err := svc.CreateSession(context.Background(), user.ID, SessionMetadata{})
	require.NoError(t, err)

	removed, err := svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var count int64
	require.NoError(t, db.Model(&models.Session{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	_, err = svc.RefreshSession(context.Background(), active.RefreshToken, SessionMetadata{})
	require.NoError(t, err)
}
