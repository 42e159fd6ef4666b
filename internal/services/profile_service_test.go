package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/actionable-app/actionable/pkg/errors"

	"github.com/actionable-app/actionable/internal/database/testutil"
)

func TestProfileGetAndUpdate(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedUser(t, db, "profile@example.com")
	svc, err := NewProfileService(db)
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "Tester", got.Name)

	name := "Renamed"
	theme := "dark"
	enabled := true
	updated, err := svc.Update(context.Background(), user.ID, UpdateProfileInput{
		Name:                &name,
		Theme:               &theme,
		DailySummaryEnabled: &enabled,
	})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.Equal(t, "dark", updated.Theme)
	require.True(t, updated.DailySummaryEnabled)
}

func TestProfileUpdateRejectsUnknownTheme(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedUser(t, db, "profile@example.com")
	svc, err := NewProfileService(db)
	require.NoError(t, err)

	theme := "solarized"
	_, err = svc.Update(context.Background(), user.ID, UpdateProfileInput{Theme: &theme})
	require.Error(t, err)
}

func TestProfileGetUnknownUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewProfileService(db)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProfileSetAvatar(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedUser(t, db, "profile@example.com")
	svc, err := NewProfileService(db)
	require.NoError(t, err)

	updated, err := svc.SetAvatar(context.Background(), user.ID, "http://localhost:8000/avatars/u/avatar.png")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/avatars/u/avatar.png", updated.Avatar)
}

func TestPushTokenSaveUpserts(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedUser(t, db, "push@example.com")
	svc, err := NewPushTokenService(db)
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), user.ID, "token-1")
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), user.ID, "token-2")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "token-2", got.Token)

	require.NoError(t, svc.Delete(context.Background(), user.ID))
	_, err = svc.Get(context.Background(), user.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
