// Package blob keeps binary image assets outside the database. A Store is
// chosen once at startup: LocalStore writes files under a directory,
// R2Store talks to any S3-compatible bucket.
package blob

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/google/uuid"
)

// Store is the asset storage port used by the rest of the server.
type Store interface {
	// Upload stores content under a fresh key derived from originalName's
	// extension and returns the key.
	Upload(ctx context.Context, content []byte, originalName string) (string, error)
	// Delete removes the asset. It reports false, without error, when the
	// key does not exist, so repeated deletes are safe.
	Delete(ctx context.Context, key string) (bool, error)
	// URL returns an address the client can fetch the asset from. Signed
	// addresses stay valid for at least ttl minus a refresh window.
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// NewKey builds a storage key: a random UUID followed by the lowercased
// extension of originalName. Names without an extension are rejected.
func NewKey(originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" || ext == "." {
		return "", fmt.Errorf("%w: file %q has no extension", common.ErrStorage, originalName)
	}
	return uuid.NewString() + ext, nil
}

// validKey rejects anything that is not a plain file name.
func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: invalid key %q", common.ErrStorage, key)
	}
	return nil
}
