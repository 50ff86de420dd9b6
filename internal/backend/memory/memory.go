// Package memory serves backend records from JSON fixture files, for demos
// and offline development.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const (
	ConnectionsFile  = "connections.json"
	TransactionsFile = "transactions.json"
)

var ErrUnauthorized = errors.New("memory: empty token")

type Store struct {
	mu           sync.Mutex
	connections  []json.RawMessage
	transactions []json.RawMessage
}

func New(connections, transactions []json.RawMessage) *Store {
	return &Store{connections: connections, transactions: transactions}
}

// NewFromFiles loads fixtures from base. Missing or unreadable files leave the
// corresponding list empty.
func NewFromFiles(base string) *Store {
	return New(readList(filepath.Join(base, ConnectionsFile)), readList(filepath.Join(base, TransactionsFile)))
}

// ListConnections implements backend.Source.
func (s *Store) ListConnections(_ context.Context, token string) ([]json.RawMessage, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.connections...), nil
}

// ListTransactions implements backend.Source.
func (s *Store) ListTransactions(_ context.Context, token string) ([]json.RawMessage, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.transactions...), nil
}

// Replace swaps both fixture lists.
func (s *Store) Replace(connections, transactions []json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections = connections
	s.transactions = transactions
}

func readList(path string) []json.RawMessage {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var out []json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		slog.Warn("Ignoring malformed fixture file", "path", path, "error", err)
		return nil
	}
	return out
}
