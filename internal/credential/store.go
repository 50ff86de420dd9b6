// Package credential owns the persisted bearer token and the signals that
// announce its changes, both within a process and across processes.
package credential

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKey is the key the bearer token is stored under.
const TokenKey = "token"

// Store persists credentials by key. Get returns "" for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Valid reports whether token is usable right now.
func Valid(token string) bool {
	return ValidAt(token, time.Now())
}

// ValidAt reports whether token is non-blank and, when it is a JWT that
// carries an exp claim, not expired at now. Signatures are not checked;
// the backend does that.
func ValidAt(token string, now time.Time) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	if strings.Count(token, ".") != 2 {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Opaque token that happens to contain dots.
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return err == nil
	}
	return now.Before(exp.Time)
}
