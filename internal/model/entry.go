package model

import "time"

// Entry is a configured portal account. The password is kept in the
// system keyring, never here.
type Entry struct {
	// ID is the internal unique identifier for this entry.
	ID string `json:"id"`

	// UniqueID is the lower-cased login email; one entry per account.
	UniqueID string `json:"unique_id"`

	Email string `json:"email"`

	// Title is the user-visible label, defaulting to the email.
	Title string `json:"title"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is the result of one successful poll cycle for an entry.
// Nil records mean the portal returned nothing usable.
type Snapshot struct {
	EntryID     string       `json:"entry_id"`
	Appointment *Appointment `json:"appointment"`
	Message     *Message     `json:"message"`
	FetchedAt   time.Time    `json:"fetched_at"`
}
