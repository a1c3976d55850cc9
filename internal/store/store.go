package store

import (
	"context"
	"errors"

	"github.com/nhle/managemyhealth/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for configured entries, the
// last snapshot of each entry and change notifications.
type Store interface {
	// === Entries ===

	UpsertEntry(ctx context.Context, e model.Entry) (model.Entry, error)
	GetEntries(ctx context.Context) ([]model.Entry, error)
	GetEntry(ctx context.Context, id string) (*model.Entry, error)
	GetEntryByUniqueID(ctx context.Context, uniqueID string) (*model.Entry, error)
	DeleteEntry(ctx context.Context, id string) error

	// === Snapshots ===

	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	GetSnapshot(ctx context.Context, entryID string) (*model.Snapshot, error)

	// === Notifications ===

	CreateNotification(ctx context.Context, n model.Notification) error
	GetUnreadNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}
