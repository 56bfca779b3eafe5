package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// CurrentVersion is the message layout written by this build. Readers
// accept it and the unversioned layout that preceded it.
const CurrentVersion = 1

// Message asks a worker to run or resume one analysis. Whether the run
// starts fresh or resumes is read from the stored record, not the message,
// so redeliveries stay idempotent.
type Message struct {
	AnalysisID string `json:"analysisId"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage stamps a job for analysisID at now.
func NewMessage(analysisID, requestID string, now time.Time) Message {
	return Message{
		AnalysisID: analysisID,
		RequestID:  requestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Version:    CurrentVersion,
	}
}

// Age reports how long the message waited, or zero when EnqueuedAt is
// missing or malformed.
func (m Message) Age(now time.Time) time.Duration {
	enqueued, err := time.Parse(time.RFC3339, m.EnqueuedAt)
	if err != nil {
		return 0
	}
	if age := now.Sub(enqueued); age > 0 {
		return age
	}
	return 0
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload and rejects layouts newer than this
// build understands.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version < 0 || msg.Version > CurrentVersion {
		return Message{}, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	return msg, nil
}
