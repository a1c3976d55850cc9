package model

import (
	"encoding/json"
	"time"
)

// Message is the normalized representation of an inbox message.
type Message struct {
	// Subject has any reply prefix ("Re:", "Re : ") removed.
	Subject string `json:"subject"`

	Body       string    `json:"body"`
	SenderName string    `json:"sender_name"`
	ReceivedAt time.Time `json:"received_at"`

	// Raw holds the original JSON object returned by the portal.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// SameMessage reports whether two messages are the same inbox item.
func (m *Message) SameMessage(other *Message) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.ReceivedAt.Equal(other.ReceivedAt) && m.Subject == other.Subject
}
