package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore implements ObjectStore on the local filesystem, rooted at
// a base directory. Used by tests and local report workflows.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local store rooted at dir, creating it if
// needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: dir}, nil
}

func (l *LocalStore) fullPath(objectPath string) string {
	return filepath.Join(l.root, filepath.FromSlash(objectPath))
}

// Put writes bytes to an object.
func (l *LocalStore) Put(_ context.Context, objectPath string, data []byte) error {
	full := l.fullPath(objectPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return os.WriteFile(full, data, 0o644)
}

// Get reads an object fully into memory.
func (l *LocalStore) Get(_ context.Context, objectPath string) ([]byte, error) {
	data, err := os.ReadFile(l.fullPath(objectPath))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectPath)
	}
	return data, err
}

// Upload copies a local file into the store.
func (l *LocalStore) Upload(ctx context.Context, localPath, objectPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer src.Close()

	full := l.fullPath(objectPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	dst, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// Download copies an object to a local file outside the store.
func (l *LocalStore) Download(ctx context.Context, objectPath, localPath string) error {
	data, err := l.Get(ctx, objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return os.WriteFile(localPath, data, 0o644)
}

// Exists checks whether an object exists.
func (l *LocalStore) Exists(_ context.Context, objectPath string) (bool, error) {
	_, err := os.Stat(l.fullPath(objectPath))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns all object paths under the given prefix.
func (l *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// ListPrefixes returns the immediate child directories under a prefix.
func (l *LocalStore) ListPrefixes(_ context.Context, prefix string) ([]string, error) {
	dir := l.fullPath(strings.TrimSuffix(prefix, "/"))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(prefix, "/")
	var prefixes []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if base == "" {
			prefixes = append(prefixes, e.Name()+"/")
		} else {
			prefixes = append(prefixes, base+"/"+e.Name()+"/")
		}
	}
	sort.Strings(prefixes)
	return prefixes, nil
}
