package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/actionable-app/actionable/internal/database/testutil"
)

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	value, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, value)

	require.NoError(t, store.Set(ctx, "greeting", []byte("hello"), 0))

	value, found, err = store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("hello"), value)

	require.NoError(t, store.Delete(ctx, "greeting"))

	_, found, err = store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreSetOverwrites(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "key", []byte("one"), 0))
	require.NoError(t, store.Set(ctx, "key", []byte("two"), time.Hour))

	value, found, err := store.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("two"), value)
}

func TestDatabaseStoreGetExpiredEntry(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short-lived", []byte("x"), time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, found, err := store.Get(ctx, "short-lived")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	count, remaining, err := store.IncrementWithTTL(ctx, "rate:login", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, remaining, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, "rate:login", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	count, _, err = store.IncrementWithTTL(ctx, "rate:signup", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDatabaseStoreDeleteSeveralKeys(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, store.Delete(ctx, "a", "b"))

	_, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, found)
	_, found, err = store.Get(ctx, "b")
	require.NoError(t, err)
	require.False(t, found)
}

func TestNewDatabaseStoreNilDB(t *testing.T) {
	store := NewDatabaseStore(nil)
	require.Nil(t, store)
}
