package backend

import (
	"context"
	"encoding/json"
	"errors"

	"finboard/internal/backend/memory"
	"finboard/internal/finapi"
)

// Source provides the raw records one refresh pass works on. Elements are
// returned undecoded so that one malformed record never fails the batch.
type Source interface {
	ListConnections(ctx context.Context, token string) ([]json.RawMessage, error)
	ListTransactions(ctx context.Context, token string) ([]json.RawMessage, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	HTTPBackend   BackendType = "http"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case HTTPBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// IsAuthFailure reports whether err means the token was rejected, for any
// of the supported sources.
func IsAuthFailure(err error) bool {
	return finapi.IsAuthFailure(err) || errors.Is(err, memory.ErrUnauthorized)
}
