package model

import "time"

// NotificationKind identifies which record change produced a notification.
type NotificationKind string

const (
	NotificationAppointment NotificationKind = "appointment"
	NotificationMessage     NotificationKind = "message"
)

// Notification records a change detected between two poll cycles, such as
// a newly booked appointment or a new inbox message.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// EntryID links this notification to the account it was detected on.
	EntryID string `json:"entry_id"`

	Kind NotificationKind `json:"kind"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	CreatedAt time.Time `json:"created_at"`
}
