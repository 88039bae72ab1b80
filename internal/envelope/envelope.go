// Package envelope defines the immutable message unit that flows between
// compiled flow nodes.
package envelope

import (
	"time"

	"github.com/google/uuid"
)

// Envelope is the immutable record carried between node activations. The
// payload is a JSON-shaped tree (object, array, number, string, bool, or
// nil) and is never a language-specific type.
type Envelope struct {
	MessageID     string      `json:"message_id"`
	CorrelationID string      `json:"correlation_id"`
	CreatedAt     time.Time   `json:"created_at"`
	Payload       interface{} `json:"payload"`
	SourceNodeID  string      `json:"source_node_id,omitempty"`
	SourcePort    string      `json:"source_port,omitempty"`
}

// New creates a root envelope starting a fresh correlation chain.
func New(payload interface{}) *Envelope {
	id := uuid.New().String()
	return &Envelope{
		MessageID:     id,
		CorrelationID: id,
		CreatedAt:     time.Now(),
		Payload:       payload,
	}
}

// Derive produces a new envelope descended from e: the message id is always
// fresh, the correlation id is always preserved. This is the only invariant
// the envelope type is responsible for upholding.
func (e *Envelope) Derive(payload interface{}, sourceNodeID, sourcePort string) *Envelope {
	return &Envelope{
		MessageID:     uuid.New().String(),
		CorrelationID: e.CorrelationID,
		CreatedAt:     time.Now(),
		Payload:       payload,
		SourceNodeID:  sourceNodeID,
		SourcePort:    sourcePort,
	}
}

// Clone returns a shallow copy carrying the same message and correlation
// ids; used when a runtime needs to pass the same envelope down more than
// one wire without mutating shared state.
func (e *Envelope) Clone() *Envelope {
	c := *e
	return &c
}
