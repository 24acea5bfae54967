package blobstore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

const memoryURLPrefix = "memory://"

// MemoryStore keeps blobs in process. Used when no object store is configured and in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	objects     map[string][]byte
	types       map[string]string
	uploadFails map[string]error
	deleteFails map[string]error
	fetchFails  map[string]error
	uploads     int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:     make(map[string][]byte),
		types:       make(map[string]string),
		uploadFails: make(map[string]error),
		deleteFails: make(map[string]error),
		fetchFails:  make(map[string]error),
	}
}

func MemoryURL(key string) string {
	return memoryURLPrefix + key
}

func (s *MemoryStore) Upload(_ context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if err := s.uploadFails[key]; err != nil {
		return "", err
	}
	s.objects[key] = append([]byte(nil), data...)
	s.types[key] = contentType
	return MemoryURL(key), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteFails[key]; err != nil {
		return err
	}
	delete(s.objects, key)
	delete(s.types, key)
	return nil
}

func (s *MemoryStore) Fetch(_ context.Context, url string) ([]byte, error) {
	key, ok := strings.CutPrefix(url, memoryURLPrefix)
	if !ok {
		return nil, ErrNotPublicURL
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fetchFails[key]; err != nil {
		return nil, err
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Object returns the stored bytes for key.
func (s *MemoryStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

func (s *MemoryStore) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.types[key]
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *MemoryStore) Uploads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploads
}

// Put stores data under key without going through Upload.
func (s *MemoryStore) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
}

var errInjected = errors.New("injected failure")

// FailUpload makes every Upload of key fail. A nil err uses a generic failure.
func (s *MemoryStore) FailUpload(key string, err error) {
	s.inject(s.uploadFails, key, err)
}

func (s *MemoryStore) FailDelete(key string, err error) {
	s.inject(s.deleteFails, key, err)
}

func (s *MemoryStore) FailFetch(key string, err error) {
	s.inject(s.fetchFails, key, err)
}

// Heal clears every injected failure for key.
func (s *MemoryStore) Heal(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploadFails, key)
	delete(s.deleteFails, key)
	delete(s.fetchFails, key)
}

func (s *MemoryStore) inject(m map[string]error, key string, err error) {
	if err == nil {
		err = errInjected
	}
	s.mu.Lock()
	m[key] = err
	s.mu.Unlock()
}

var _ Store = (*MemoryStore)(nil)
