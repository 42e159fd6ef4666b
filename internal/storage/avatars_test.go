package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBucketSaveAndOpen(t *testing.T) {
	bucket, err := NewBucket(t.TempDir(), "http://localhost:8000/avatars/")
	require.NoError(t, err)

	url, err := bucket.Save("u1/avatar.png", strings.NewReader("image-bytes"))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/avatars/u1/avatar.png", url)

	rc, err := bucket.Open("u1/avatar.png")
	require.NoError(t, err)
	defer rc.Close()

	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "image-bytes", string(content))
}

func TestBucketSaveReplaces(t *testing.T) {
	bucket, err := NewBucket(t.TempDir(), "http://localhost:8000/avatars")
	require.NoError(t, err)

	_, err = bucket.Save("u1/avatar.png", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = bucket.Save("u1/avatar.png", strings.NewReader("second"))
	require.NoError(t, err)

	rc, err := bucket.Open("u1/avatar.png")
	require.NoError(t, err)
	defer rc.Close()

	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "second", string(content))
}

func TestBucketDelete(t *testing.T) {
	bucket, err := NewBucket(t.TempDir(), "http://localhost:8000/avatars")
	require.NoError(t, err)

	_, err = bucket.Save("u1/avatar.png", strings.NewReader("bytes"))
	require.NoError(t, err)
	require.NoError(t, bucket.Delete("u1/avatar.png"))

	_, err = bucket.Open("u1/avatar.png")
	require.Error(t, err)

	// Deleting again is a no-op.
	require.NoError(t, bucket.Delete("u1/avatar.png"))
}

func TestBucketRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	bucket, err := NewBucket(root, "http://localhost:8000/avatars")
	require.NoError(t, err)

	_, err = bucket.Save("../outside.txt", strings.NewReader("nope"))
	require.NoError(t, err)

	// The traversal collapses inside the root instead of escaping it.
	_, statErr := os.Stat(filepath.Join(filepath.Dir(root), "outside.txt"))
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(root, "outside.txt"))
	require.NoError(t, statErr)

	_, err = bucket.Save("", strings.NewReader("nope"))
	require.Error(t, err)
}

func TestBucketLeavesExistingObjectOnFailedWrite(t *testing.T) {
	bucket, err := NewBucket(t.TempDir(), "http://localhost:8000/avatars")
	require.NoError(t, err)

	_, err = bucket.Save("u1/avatar.png", strings.NewReader("good"))
	require.NoError(t, err)

	_, err = bucket.Save("u1/avatar.png", failingReader{})
	require.Error(t, err)

	rc, err := bucket.Open("u1/avatar.png")
	require.NoError(t, err)
	defer rc.Close()

	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "good", string(content))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}
