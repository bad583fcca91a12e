package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Reasons carried by DatasetChangedMessage.
const (
	ReasonImport            = "import"
	ReasonAddTransactions   = "add_transactions"
	ReasonDeleteTransaction = "delete_transaction"
	ReasonBudgetSet         = "budget_set"
	ReasonBudgetDelete      = "budget_delete"
)

// DatasetChangedMessage announces a new dataset revision. Consumers reload the
// dataset themselves; Years only narrows what needs recomputing and may be
// empty when every year is affected.
type DatasetChangedMessage struct {
	ID        string    `json:"id"`
	Revision  int64     `json:"revision"`
	Reason    string    `json:"reason"`
	Years     []int     `json:"years,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDatasetChangedMessage creates a message with a fresh id.
func NewDatasetChangedMessage(revision int64, reason string, years []int) *DatasetChangedMessage {
	return &DatasetChangedMessage{
		ID:        uuid.NewString(),
		Revision:  revision,
		Reason:    reason,
		Years:     years,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetChangedMessageFromJSON parses and validates a message body.
func DatasetChangedMessageFromJSON(data []byte) (*DatasetChangedMessage, error) {
	var msg DatasetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Revision < 1 {
		return nil, errors.New("message has no revision")
	}
	return &msg, nil
}
