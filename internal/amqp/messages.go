package amqp

import (
	"encoding/json"
	"time"

	"billable/internal/core"
)

// LedgerChangedMessage announces that a month shard was rewritten.
// Consumers re-read the month; the message carries no task data.
type LedgerChangedMessage struct {
	Month     string    `json:"month"` // YYYY-MM
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage creates a message for ym.
func NewLedgerChangedMessage(ym core.YearMonth, reason string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Month:     ym.String(),
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// YearMonth parses the month key.
func (m *LedgerChangedMessage) YearMonth() (core.YearMonth, error) {
	return core.ParseYearMonth(m.Month)
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON creates a message from JSON bytes
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.YearMonth(); err != nil {
		return nil, err
	}
	return &msg, nil
}
