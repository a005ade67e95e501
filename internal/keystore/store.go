// Package keystore holds the bearer token outside the ordinary cache. Only the token is
// ever written here; profile data goes to the cache package.
package keystore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrNotFound means no token is stored.
	ErrNotFound = errors.New("keystore: no token stored")

	// ErrKeystore wraps every storage failure so callers can tell "nothing stored"
	// apart from "storage is broken".
	ErrKeystore = errors.New("failed to save credentials securely")
)

// Store is secure storage for a single secret.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// Memory keeps the token in process memory.
type Memory struct {
	mu    sync.Mutex
	token string
	set   bool

	// Reads counts Get calls; tests use it to observe caching in front of the store.
	Reads int
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Get(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if !m.set {
		return "", ErrNotFound
	}
	return m.token, nil
}

func (m *Memory) Set(_ context.Context, token string) error {
	m.mu.Lock()
	m.token, m.set = token, true
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(context.Context) error {
	m.mu.Lock()
	m.token, m.set = "", false
	m.mu.Unlock()
	return nil
}

// writeFileAtomic writes data next to path and renames it into place, so a crash never
// leaves a truncated secret behind.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".keystore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
