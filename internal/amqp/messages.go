package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"spendwise/internal/core"
)

// TransactionsIngestedMessage announces a committed upload. It carries only
// the affected months; consumers read the transactions from the database.
type TransactionsIngestedMessage struct {
	Months    []string  `json:"months"`
	Created   int       `json:"created"`
	Mode      string    `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionsIngestedMessage creates a message stamped with the current time
func NewTransactionsIngestedMessage(months []core.Month, created int, mode core.Mode) *TransactionsIngestedMessage {
	names := make([]string, len(months))
	for i, m := range months {
		names[i] = m.String()
	}
	return &TransactionsIngestedMessage{
		Months:    names,
		Created:   created,
		Mode:      string(mode),
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionsIngestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ParsedMonths decodes the month list, failing on the first malformed entry.
func (m *TransactionsIngestedMessage) ParsedMonths() ([]core.Month, error) {
	out := make([]core.Month, 0, len(m.Months))
	for _, s := range m.Months {
		month, err := core.ParseMonth(s)
		if err != nil {
			return nil, fmt.Errorf("month %q: %w", s, err)
		}
		out = append(out, month)
	}
	return out, nil
}

// TransactionsIngestedMessageFromJSON creates a message from JSON bytes
func TransactionsIngestedMessageFromJSON(data []byte) (*TransactionsIngestedMessage, error) {
	var msg TransactionsIngestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
