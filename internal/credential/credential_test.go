package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/amqp"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestValidAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"empty", "", false},
		{"blank", "   ", false},
		{"opaque", "abc123", true},
		{"dotted opaque", "a.b.c", true},
		{"jwt without exp", signed(t, jwt.MapClaims{"sub": "u1"}), true},
		{"jwt not expired", signed(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}), true},
		{"jwt expired", signed(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidAt(tt.token, now))
		})
	}
}

func TestBusSubscribeAndUnsubscribe(t *testing.T) {
	bus := NewBus()
	var got []string

	unsubA := bus.Subscribe(func(e Event) { got = append(got, "a:"+string(e.Signal)) })
	unsubB := bus.Subscribe(func(e Event) { got = append(got, "b:"+string(e.Signal)) })
	assert.Equal(t, 2, bus.Len())

	bus.Publish(Event{Key: TokenKey, Signal: SignalTokenChanged})
	unsubA()
	unsubA()
	bus.Publish(Event{Key: TokenKey, Signal: SignalStorage})
	unsubB()

	assert.Equal(t, []string{"a:tokenChanged", "b:tokenChanged", "b:storage"}, got)
	assert.Equal(t, 0, bus.Len())
}

type fakeBroadcaster struct {
	msgs []*amqp.CredentialChangedMessage
	err  error
}

func (f *fakeBroadcaster) PublishCredentialChanged(_ context.Context, msg *amqp.CredentialChangedMessage) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

func TestManagerSetAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	bc := &fakeBroadcaster{}
	m := NewManager(store, nil, WithBroadcaster(bc))

	var events []Event
	m.Bus().Subscribe(func(e Event) { events = append(events, e) })

	require.ErrorIs(t, m.SetToken(ctx, "  "), ErrEmptyToken)
	assert.Empty(t, events)

	require.NoError(t, m.SetToken(ctx, " tok "))
	token, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	require.NoError(t, m.ClearToken(ctx))
	token, err = m.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.Len(t, events, 2)
	assert.Equal(t, Event{Key: TokenKey, Signal: SignalTokenChanged, Origin: m.Origin()}, events[0])

	require.Len(t, bc.msgs, 2)
	assert.True(t, bc.msgs[0].Present)
	assert.False(t, bc.msgs[1].Present)
	assert.Equal(t, m.Origin(), bc.msgs[1].Origin)
}

func TestManagerBroadcastFailureIsNotFatal(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil, WithBroadcaster(&fakeBroadcaster{err: errors.New("down")}))
	assert.NoError(t, m.SetToken(context.Background(), "tok"))
}

func TestManagerHandleRemote(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil)
	var events []Event
	m.Bus().Subscribe(func(e Event) { events = append(events, e) })

	require.NoError(t, m.HandleRemote(amqp.NewCredentialChangedMessage(TokenKey, m.Origin(), true)))
	assert.Empty(t, events, "own broadcasts are ignored")

	require.NoError(t, m.HandleRemote(amqp.NewCredentialChangedMessage(TokenKey, "other", false)))
	require.Len(t, events, 1)
	assert.Equal(t, SignalStorage, events[0].Signal)
	assert.Equal(t, "other", events[0].Origin)
}
