package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"zetafin/internal/core"
)

// ChangeMessage is the wire form of a core.Change:
// {op, entity, id, transaction?, category?, timestamp}.
type ChangeMessage struct {
	core.Change
}

// NewChangeMessage wraps c, stamping it with the current time if unset.
func NewChangeMessage(c core.Change) *ChangeMessage {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	c.ID = c.ID.Normalize()
	return &ChangeMessage{Change: c}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate rejects messages a consumer cannot act on.
func (m *ChangeMessage) Validate() error {
	switch m.Op {
	case core.OpCreated, core.OpUpdated, core.OpDeleted:
	default:
		return fmt.Errorf("unknown op %q", m.Op)
	}
	switch m.Entity {
	case core.EntityTransaction, core.EntityCategory:
	default:
		return fmt.Errorf("unknown entity %q", m.Entity)
	}
	if m.ID.IsZero() {
		return errors.New("missing id")
	}
	if m.Entity == core.EntityTransaction && m.Op != core.OpDeleted && m.Transaction == nil {
		return fmt.Errorf("%s %s without transaction payload", m.Entity, m.Op)
	}
	return nil
}

// ChangeMessageFromJSON decodes and validates a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid change message: %w", err)
	}
	return &msg, nil
}
