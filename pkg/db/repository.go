package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"video-digest/pkg/domain"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert violates a unique constraint.
	ErrConflict = errors.New("unique constraint violation")
	// ErrNotConfigured is returned when no storage backend is available.
	ErrNotConfigured = errors.New("storage not configured")
)

// DBProvider is a client holding a sql.DB, either Postgres or Supabase.
type DBProvider interface {
	DB() *sql.DB
}

// Repository is row-level storage for records, tags, tag links and history.
// Every method is scoped by ids handed in by the caller; ownership checks live above it.
type Repository interface {
	// CreateRecord inserts rec and fills in its ID and timestamps.
	CreateRecord(ctx context.Context, rec *domain.ContentRecord) error
	GetRecord(ctx context.Context, id string) (*domain.ContentRecord, error)
	UpdateRecord(ctx context.Context, id string, upd domain.RecordUpdate) (*domain.ContentRecord, error)
	DeleteRecord(ctx context.Context, id string) error
	// ListRecords returns one page of records, newest first, and the total matching count.
	ListRecords(ctx context.Context, q domain.RecordQuery) ([]domain.ContentRecord, int, error)
	// ListVideoIDs returns the set of video ids with at least one record.
	ListVideoIDs(ctx context.Context) (map[string]bool, error)
	// ListOwners returns every user id that owns at least one record.
	ListOwners(ctx context.Context) ([]string, error)

	// GetTagByName returns nil, nil when the user has no tag with that name.
	GetTagByName(ctx context.Context, userID, name string) (*domain.Tag, error)
	// CreateTag returns ErrConflict when the user already has a tag with that name.
	CreateTag(ctx context.Context, userID, name string) (*domain.Tag, error)
	ListTags(ctx context.Context, userID string) ([]domain.Tag, error)
	// ReplaceRecordTags deletes every link of the record, then links tagIDs.
	ReplaceRecordTags(ctx context.Context, recordID string, tagIDs []string) error
	ListRecordTags(ctx context.Context, recordID string) ([]domain.Tag, error)

	// InsertHistory is insert-or-ignore on (user, record); created is false when the entry already existed.
	InsertHistory(ctx context.Context, userID, recordID string, at time.Time) (created bool, err error)
	// ListHistory returns entries newest first with Record populated. limit 0 means all.
	ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)
	DeleteHistory(ctx context.Context, userID, entryID string) error
	ClearHistory(ctx context.Context, userID string) error
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
