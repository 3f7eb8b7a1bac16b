package amqp

import (
	"encoding/json"
	"time"
)

// TransactionSyncMessage asks the worker to mirror one persisted transaction
// to the sheets ledger. It carries only the local sequence number and a
// version; the worker fetches the full row from storage.
type TransactionSyncMessage struct {
	Seq       int64     `json:"seq"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(seq, version int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		Seq:       seq,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
