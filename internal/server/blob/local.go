package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/common"
)

// LocalURLPrefix is where the HTTP layer serves local assets from.
const LocalURLPrefix = "/shared/"

// LocalStore keeps assets as files in a single directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir when needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create upload dir: %v", common.ErrStorage, err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Upload(ctx context.Context, content []byte, originalName string) (string, error) {
	key, err := NewKey(originalName)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(s.dir, key), content, 0o644); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", common.ErrStorage, key, err)
	}
	return key, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: remove %s: %v", common.ErrStorage, key, err)
	}
	return true, nil
}

// URL returns the relative path the HTTP layer serves the file under.
// Local URLs never expire, so ttl is ignored.
func (s *LocalStore) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return LocalURLPrefix + key, nil
}

// ResolveLocal maps key to an existing regular file under dir. Keys that
// would escape dir and missing files both yield common.ErrNotFound.
func ResolveLocal(dir, key string) (string, error) {
	if validKey(key) != nil {
		return "", common.ErrNotFound
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", common.ErrNotFound
	}
	p := filepath.Join(root, key)
	if rel, err := filepath.Rel(root, p); err != nil || rel != filepath.Base(p) {
		return "", common.ErrNotFound
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", common.ErrNotFound
	}
	return p, nil
}
