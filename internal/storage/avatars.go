package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Bucket is a filesystem-backed blob store with upsert-by-path semantics:
// saving to an existing path replaces the previous object.
type Bucket struct {
	root    string
	baseURL string
}

// NewBucket prepares the bucket directory and returns a Bucket whose public
// URLs are issued under baseURL.
func NewBucket(root, baseURL string) (*Bucket, error) {
	if root == "" {
		return nil, errors.New("storage: bucket root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create bucket root: %w", err)
	}
	return &Bucket{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Save writes the object at the given path, replacing any previous content,
// and returns its public URL. The write goes through a temp file so a failed
// upload never clobbers the existing object.
func (b *Bucket) Save(path string, r io.Reader) (string, error) {
	full, err := b.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("storage: create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: replace object: %w", err)
	}

	return b.PublicURL(path), nil
}

// Open returns a reader over the object at the given path.
func (b *Bucket) Open(path string) (io.ReadCloser, error) {
	full, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage: object %s not found", path)
		}
		return nil, fmt.Errorf("storage: open object: %w", err)
	}
	return f, nil
}

// Delete removes the object if present.
func (b *Bucket) Delete(path string) error {
	full, err := b.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete object: %w", err)
	}
	return nil
}

// PublicURL returns the URL the object is served under.
func (b *Bucket) PublicURL(path string) string {
	return b.baseURL + "/" + strings.TrimLeft(path, "/")
}

// resolve maps an object path onto the bucket root, refusing escapes.
func (b *Bucket) resolve(path string) (string, error) {
	cleaned := filepath.Clean("/" + strings.TrimLeft(path, "/"))
	if cleaned == "/" {
		return "", errors.New("storage: object path is required")
	}
	return filepath.Join(b.root, cleaned), nil
}
