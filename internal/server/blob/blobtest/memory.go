// Package blobtest provides an in-memory blob.Store for tests.
package blobtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/dmitrijs2005/talkboard/internal/server/blob"
)

// Store records every call and can be told to fail.
type Store struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes []string

	UploadErr error
	// DeleteErr fails deletes of the listed keys.
	DeleteErr map[string]error
	// FailUploadAfter makes the n-th and later uploads fail when > 0.
	FailUploadAfter int
	uploads         int
}

func New() *Store {
	return &Store{objects: map[string][]byte{}, DeleteErr: map[string]error{}}
}

func (s *Store) Upload(ctx context.Context, content []byte, originalName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.UploadErr != nil {
		return "", s.UploadErr
	}
	if s.FailUploadAfter > 0 && s.uploads >= s.FailUploadAfter {
		return "", fmt.Errorf("%w: injected upload failure", common.ErrStorage)
	}
	key, err := blob.NewKey(originalName)
	if err != nil {
		return "", err
	}
	s.objects[key] = append([]byte(nil), content...)
	return key, nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	if err, ok := s.DeleteErr[key]; ok {
		return false, err
	}
	if _, ok := s.objects[key]; !ok {
		return false, nil
	}
	delete(s.objects, key)
	return true, nil
}

func (s *Store) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	return "https://blob.test/" + key, nil
}

// Put seeds an object directly.
func (s *Store) Put(key string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = content
}

// Has reports whether key is stored.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Keys lists stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Deletes returns every key Delete was called with, in call order.
func (s *Store) Deletes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

// Uploads returns how many Upload calls were made.
func (s *Store) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}
