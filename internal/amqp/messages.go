package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CredentialChangedMessage announces that a stored credential was written
// or removed. It carries no secret; receivers re-read their own store.
type CredentialChangedMessage struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Origin    string    `json:"origin"`
	Present   bool      `json:"present"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCredentialChangedMessage creates a message stamped with a fresh ID.
func NewCredentialChangedMessage(key, origin string, present bool) *CredentialChangedMessage {
	return &CredentialChangedMessage{
		ID:        uuid.NewString(),
		Key:       key,
		Origin:    origin,
		Present:   present,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CredentialChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CredentialChangedMessageFromJSON decodes and checks a message body.
func CredentialChangedMessageFromJSON(data []byte) (*CredentialChangedMessage, error) {
	var msg CredentialChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Key == "" {
		return nil, errors.New("credential message without key")
	}
	return &msg, nil
}
