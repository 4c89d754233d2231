// Package credstore provides CredentialStore backends.
//
// FileStore is the default: a small JSON map persisted under the user
// config directory, the desktop analog of the browser's origin-scoped
// localStorage. MemStore keeps values for the process lifetime only and
// is the automatic fallback when the file location is unusable — a
// degraded store must never fail the client, callers already tolerate
// Get returning "" (see domain.CredentialStore).
package credstore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/createathon/client-go/domain"
)

// MemStore implements domain.CredentialStore in process memory.
type MemStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

// Get returns the stored value for key, or "" when the key is absent.
func (s *MemStore) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set stores value under key, replacing any previous value.
func (s *MemStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Remove deletes key from the store.
func (s *MemStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// FileStore implements domain.CredentialStore backed by a JSON file.
// Writes are flushed synchronously with 0600 permissions; a failed flush
// is logged and the value is kept in memory for the rest of the process.
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// NewFileStore loads (or prepares to create) the store at path.
// A missing file is not an error; a corrupt file is treated as empty.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	values := make(map[string]string)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &values); jsonErr != nil {
			log.Warn().Err(jsonErr).Str("path", path).Msg("Credentials file corrupt, starting empty")
			values = make(map[string]string)
		}
	case errors.Is(err, os.ErrNotExist):
		// First run.
	default:
		return nil, err
	}

	return &FileStore{path: path, values: values}, nil
}

// Get returns the stored value for key, or "" when the key is absent.
func (s *FileStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Set stores value under key and flushes the file.
func (s *FileStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.flush()
}

// Remove deletes key from the store and flushes the file.
func (s *FileStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	s.flush()
}

// flush writes the current map to disk. Callers hold s.mu.
func (s *FileStore) flush() {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode credentials")
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Failed to persist credentials")
	}
}

// Open returns a FileStore at path, falling back to a MemStore when the
// file location cannot be used. The fallback mirrors the browser client's
// behavior with storage disabled: credentials survive for the session only.
func Open(path string) domain.CredentialStore {
	store, err := NewFileStore(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Credentials file unavailable, using in-memory store")
		return NewMemStore()
	}
	return store
}

// DefaultPath returns the conventional credentials file location,
// $XDG_CONFIG_HOME/createathon/credentials.json or the OS equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".createathon-credentials.json")
	}
	return filepath.Join(dir, "createathon", "credentials.json")
}
