package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"finboard/internal/amqp"
)

var ErrEmptyToken = errors.New("credential: empty token")

// Broadcaster forwards change notices to other processes.
type Broadcaster interface {
	PublishCredentialChanged(ctx context.Context, msg *amqp.CredentialChangedMessage) error
}

// Manager writes the token and announces every change.
type Manager struct {
	store       Store
	bus         *Bus
	origin      string
	broadcaster Broadcaster
	logger      *slog.Logger
}

type Option func(*Manager)

// WithBroadcaster makes the manager tell other processes about its writes.
func WithBroadcaster(b Broadcaster) Option {
	return func(m *Manager) { m.broadcaster = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager with a fresh origin ID. A nil bus gets a
// private one.
func NewManager(store Store, bus *Bus, opts ...Option) *Manager {
	if bus == nil {
		bus = NewBus()
	}
	m := &Manager{
		store:  store,
		bus:    bus,
		origin: uuid.NewString(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Bus() *Bus { return m.bus }

// Origin identifies this process in broadcast messages.
func (m *Manager) Origin() string { return m.origin }

// Token returns the stored token, or "" when none is set.
func (m *Manager) Token(ctx context.Context) (string, error) {
	token, err := m.store.Get(ctx, TokenKey)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores token and signals the change.
func (m *Manager) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if err := m.store.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	m.changed(ctx, true)
	return nil
}

// ClearToken removes the token and signals the change.
func (m *Manager) ClearToken(ctx context.Context) error {
	if err := m.store.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	m.changed(ctx, false)
	return nil
}

func (m *Manager) changed(ctx context.Context, present bool) {
	m.bus.Publish(Event{Key: TokenKey, Signal: SignalTokenChanged, Origin: m.origin})

	if m.broadcaster == nil {
		return
	}
	msg := amqp.NewCredentialChangedMessage(TokenKey, m.origin, present)
	if err := m.broadcaster.PublishCredentialChanged(ctx, msg); err != nil {
		// Local listeners already know; other processes catch up on their next tick.
		m.logger.WarnContext(ctx, "Failed to broadcast credential change",
			"component", "credential",
			"key", TokenKey,
			"error", err)
	}
}

// HandleRemote turns a broadcast from another process into a storage
// event. Messages this manager sent itself are ignored.
func (m *Manager) HandleRemote(msg *amqp.CredentialChangedMessage) error {
	if msg == nil || msg.Origin == m.origin {
		return nil
	}
	m.logger.Debug("Credential changed elsewhere",
		"component", "credential",
		"key", msg.Key,
		"origin", msg.Origin,
		"present", msg.Present)
	m.bus.Publish(Event{Key: msg.Key, Signal: SignalStorage, Origin: msg.Origin})
	return nil
}
