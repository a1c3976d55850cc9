package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/managemyhealth/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

type entryRow struct {
	ID        string    `db:"id"`
	UniqueID  string    `db:"unique_id"`
	Email     string    `db:"email"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r entryRow) toEntry() model.Entry {
	return model.Entry{
		ID:        r.ID,
		UniqueID:  r.UniqueID,
		Email:     r.Email,
		Title:     r.Title,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// UpsertEntry inserts or updates an entry. If the entry has no ID, a new
// UUID is generated. The stored entry is returned.
func (s *SQLiteStore) UpsertEntry(
	ctx context.Context,
	e model.Entry,
) (model.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, unique_id, email, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unique_id = excluded.unique_id,
			email = excluded.email,
			title = excluded.title,
			updated_at = excluded.updated_at`,
		e.ID, e.UniqueID, e.Email, e.Title,
		e.CreatedAt.UTC(), e.UpdatedAt,
	)
	if err != nil {
		return model.Entry{}, fmt.Errorf("upserting entry %s: %w", e.ID, err)
	}

	return e, nil
}

// GetEntries retrieves all configured entries ordered by title.
func (s *SQLiteStore) GetEntries(ctx context.Context) ([]model.Entry, error) {
	var rows []entryRow
	err := s.db.SelectContext(ctx, &rows, "SELECT * FROM entries ORDER BY title")
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}

	entries := make([]model.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toEntry())
	}
	return entries, nil
}

// GetEntry retrieves a single entry by its ID.
func (s *SQLiteStore) GetEntry(ctx context.Context, id string) (*model.Entry, error) {
	return s.getEntry(ctx, "SELECT * FROM entries WHERE id = ?", id)
}

// GetEntryByUniqueID retrieves the entry for an account, if configured.
func (s *SQLiteStore) GetEntryByUniqueID(
	ctx context.Context,
	uniqueID string,
) (*model.Entry, error) {
	return s.getEntry(ctx, "SELECT * FROM entries WHERE unique_id = ?", uniqueID)
}

func (s *SQLiteStore) getEntry(ctx context.Context, query, arg string) (*model.Entry, error) {
	var row entryRow
	err := s.db.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting entry %s: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting entry %s: %w", arg, err)
	}

	e := row.toEntry()
	return &e, nil
}

// DeleteEntry removes an entry, its snapshot and its notifications.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE entry_id = ?", id); err != nil {
		return fmt.Errorf("deleting notifications for entry %s: %w", id, err)
	}
	// PRAGMA foreign_keys is per connection, so the cascade is not relied on.
	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE entry_id = ?", id); err != nil {
		return fmt.Errorf("deleting snapshot for entry %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}

	return tx.Commit()
}

// SaveSnapshot replaces the stored snapshot for an entry.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	appt, err := json.Marshal(snap.Appointment)
	if err != nil {
		return fmt.Errorf("marshaling appointment: %w", err)
	}
	msg, err := json.Marshal(snap.Message)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (entry_id, appointment, message, fetched_at)
		VALUES (?, ?, ?, ?)`,
		snap.EntryID, string(appt), string(msg), snap.FetchedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot for entry %s: %w", snap.EntryID, err)
	}

	return nil
}

// GetSnapshot retrieves the last stored snapshot for an entry.
func (s *SQLiteStore) GetSnapshot(
	ctx context.Context,
	entryID string,
) (*model.Snapshot, error) {
	var row struct {
		EntryID     string    `db:"entry_id"`
		Appointment string    `db:"appointment"`
		Message     string    `db:"message"`
		FetchedAt   time.Time `db:"fetched_at"`
	}

	err := s.db.GetContext(ctx, &row,
		"SELECT entry_id, appointment, message, fetched_at FROM snapshots WHERE entry_id = ?",
		entryID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting snapshot for entry %s: %w", entryID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting snapshot for entry %s: %w", entryID, err)
	}

	snap := &model.Snapshot{EntryID: row.EntryID, FetchedAt: row.FetchedAt}
	if err := json.Unmarshal([]byte(row.Appointment), &snap.Appointment); err != nil {
		return nil, fmt.Errorf("unmarshaling appointment: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Message), &snap.Message); err != nil {
		return nil, fmt.Errorf("unmarshaling message: %w", err)
	}

	return snap, nil
}

// CreateNotification inserts a new notification record.
func (s *SQLiteStore) CreateNotification(
	ctx context.Context,
	n model.Notification,
) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, entry_id, kind, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.EntryID, string(n.Kind), n.Message,
		boolToInt(n.Read), n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}

	return nil
}

// GetUnreadNotifications retrieves all notifications that have not been read,
// ordered by creation time descending.
func (s *SQLiteStore) GetUnreadNotifications(
	ctx context.Context,
) ([]model.Notification, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT id, entry_id, kind, message, read, created_at FROM notifications WHERE read = 0 ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying unread notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkNotificationRead marks a single notification as read.
func (s *SQLiteStore) MarkNotificationRead(
	ctx context.Context,
	id string,
) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("marking notification %s as read: %w", id, ErrNotFound)
	}
	return nil
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.Notification, error) {
	var (
		n         model.Notification
		kind      string
		readInt   int
		createdAt time.Time
	)

	err := rows.Scan(
		&n.ID, &n.EntryID, &kind, &n.Message,
		&readInt, &createdAt,
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Kind = model.NotificationKind(kind)
	n.Read = readInt != 0
	n.CreatedAt = createdAt

	return n, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
