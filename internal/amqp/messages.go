package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncRequestMessage asks the worker to sync one linked item. The message
// carries only the item key; the worker resolves the access credential from
// the store, so a stale message can never leak a credential through the
// broker.
type SyncRequestMessage struct {
	ID        string    `json:"id"`
	ItemKey   string    `json:"item_key"`
	Full      bool      `json:"full"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSyncRequestMessage creates a sync request for one item. full requests a
// fresh sync from the beginning of the change stream.
func NewSyncRequestMessage(itemKey string, full bool) *SyncRequestMessage {
	return &SyncRequestMessage{
		ID:        uuid.NewString(),
		ItemKey:   itemKey,
		Full:      full,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestMessageFromJSON creates a message from JSON bytes.
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
