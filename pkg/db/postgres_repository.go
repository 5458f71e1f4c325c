package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"video-digest/pkg/domain"
)

// Postgres error codes we map to sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const recordColumns = `a.id::text, a.youtube_url, a.title, a.description, a.user_description,
  COALESCE(a.video_id, ''), COALESCE(a.thumbnail_url, ''), COALESCE(a.transcript, ''),
  COALESCE(a.transcript_source, ''), COALESCE(a.ai_summary, ''), a.key_points::text,
  COALESCE(a.category, ''), COALESCE(a.sentiment, ''), COALESCE(a.difficulty, ''),
  COALESCE(a.duration_estimate, ''), a.ai_tags::text, a.user_id::text, a.created_at, a.updated_at`

// PostgresRepository implements Repository over any DBProvider
// (PostgresClient, or SupabaseClient with a direct connection).
type PostgresRepository struct {
	provider DBProvider
}

// NewPostgresRepository creates a repository on top of p.
func NewPostgresRepository(p DBProvider) *PostgresRepository {
	return &PostgresRepository{provider: p}
}

func (r *PostgresRepository) db() (*sql.DB, error) {
	if r.provider == nil || r.provider.DB() == nil {
		return nil, ErrNotConfigured
	}
	return r.provider.DB(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner, extra ...any) (*domain.ContentRecord, error) {
	var rec domain.ContentRecord
	var keyPoints, aiTags string
	dest := []any{
		&rec.ID, &rec.YouTubeURL, &rec.Title, &rec.Description, &rec.UserDescription,
		&rec.VideoID, &rec.ThumbnailURL, &rec.Transcript,
		&rec.TranscriptSource, &rec.AISummary, &keyPoints,
		&rec.Category, &rec.Sentiment, &rec.Difficulty,
		&rec.DurationEstimate, &aiTags, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt,
	}
	if err := s.Scan(append(extra, dest...)...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(keyPoints), &rec.KeyPoints); err != nil {
		return nil, fmt.Errorf("decode key_points: %w", err)
	}
	if err := json.Unmarshal([]byte(aiTags), &rec.AITags); err != nil {
		return nil, fmt.Errorf("decode ai_tags: %w", err)
	}
	return &rec, nil
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

// mapPgError turns constraint violations into ErrConflict / ErrNotFound.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

func (r *PostgresRepository) CreateRecord(ctx context.Context, rec *domain.ContentRecord) error {
	db, err := r.db()
	if err != nil {
		return err
	}

	const insertQuery = `
INSERT INTO analysis (youtube_url, title, description, user_description, video_id, thumbnail_url,
  transcript, transcript_source, ai_summary, key_points, category, sentiment, difficulty,
  duration_estimate, ai_tags, user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13, $14, $15::jsonb, $16)
RETURNING id::text, created_at, updated_at`

	err = db.QueryRowContext(ctx, insertQuery,
		rec.YouTubeURL, rec.Title, rec.Description, rec.UserDescription, rec.VideoID, rec.ThumbnailURL,
		rec.Transcript, rec.TranscriptSource, rec.AISummary, jsonList(rec.KeyPoints), rec.Category,
		rec.Sentiment, rec.Difficulty, rec.DurationEstimate, jsonList(rec.AITags), rec.UserID,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", mapPgError(err))
	}
	return nil
}

func (r *PostgresRepository) GetRecord(ctx context.Context, id string) (*domain.ContentRecord, error) {
	db, err := r.db()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM analysis a WHERE a.id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) UpdateRecord(ctx context.Context, id string, upd domain.RecordUpdate) (*domain.ContentRecord, error) {
	db, err := r.db()
	if err != nil {
		return nil, err
	}

	sets := []string{"updated_at = now()"}
	args := []any{}
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.UserDescription != nil {
		add("user_description", *upd.UserDescription)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE analysis a SET %s WHERE a.id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), recordColumns)

	rec, err := scanRecord(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update analysis: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) DeleteRecord(ctx context.Context, id string) error {
	db, err := r.db()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM analysis WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListRecords(ctx context.Context, q domain.RecordQuery) ([]domain.ContentRecord, int, error) {
	db, err := r.db()
	if err != nil {
		return nil, 0, err
	}

	where := `WHERE a.user_id = $1`
	args := []any{q.UserID}
	if q.TagName != "" {
		args = append(args, q.TagName)
		where += ` AND EXISTS (
  SELECT 1 FROM analysis_tags at JOIN tags t ON t.id = at.tag_id
  WHERE at.analysis_id = a.id AND t.name = $2)`
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis a `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analysis: %w", err)
	}

	query := `SELECT ` + recordColumns + ` FROM analysis a ` + where + ` ORDER BY a.created_at DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list analysis: %w", err)
	}
	defer rows.Close()

	records := []domain.ContentRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan analysis: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}
	return records, total, nil
}

func (r *PostgresRepository) ListVideoIDs(ctx context.Context) (map[string]bool, error) {
	db, err := r.db()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT DISTINCT video_id FROM analysis WHERE video_id IS NOT NULL AND video_id <> ''`)
	if err != nil {
		return nil, fmt.Errorf("list video ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan video id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (r *PostgresRepository) ListOwners(ctx context.Context) ([]string, error) {
	db, err := r.db()
	if err != nil {
		return nil, err
	}
	return queryStrings(ctx, db, `SELECT DISTINCT user_id::text FROM analysis WHERE user_id IS NOT NULL ORDER BY 1`)
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanTags(rows *sql.Rows) ([]domain.Tag, error) {
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.UserID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (r *PostgresRepository) GetTagByName(ctx context.Context, userID, name string) (*domain.Tag, error) {
	db, err := r.db()
	if err != nil {
		return nil, err
	}

	var t domain.Tag
	err = db.QueryRowContext(ctx,
		`SELECT id::text, name, user_id::text, created_at FROM tags WHERE user_id = $1 AND name = $2`,
		userID, name,
	).Scan(&t.ID, &t.Name, &t.UserID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return &t, nil
}

func (r *PostgresRepository) CreateTag(ctx context.Context, userID, name string) (*domain.Tag, error) {
	db, err := r.db()
	if err != nil {
		return nil, err
	}

	t := domain.Tag{Name: name, UserID: userID}
	err = db.QueryRowContext(ctx,
		`INSERT INTO tags (name, user_id) VALUES ($1, $2) RETURNING id::text, created_at`,
		name, userID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", mapPgError(err))
	}
	return &t, nil
}

func (r *PostgresRepository) ListTags(ctx context.Context, userID string) ([]domain.Tag, error) {
	db, err := r.db()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id::text, name, user_id::text, created_at FROM tags WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return scanTags(rows)
}

// ReplaceRecordTags deletes and re-inserts the record's links in one transaction.
func (r *PostgresRepository) ReplaceRecordTags(ctx context.Context, recordID string, tagIDs []string) error {
	db, err := r.db()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_tags WHERE analysis_id = $1`, recordID); err != nil {
		return fmt.Errorf("delete tag links: %w", err)
	}

	const insertQuery = `INSERT INTO analysis_tags (analysis_id, tag_id) VALUES ($1, $2)`
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, insertQuery, recordID, tagID); err != nil {
			return fmt.Errorf("insert tag link: %w", mapPgError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListRecordTags(ctx context.Context, recordID string) ([]domain.Tag, error) {
	db, err := r.db()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT t.id::text, t.name, t.user_id::text, t.created_at
FROM analysis_tags at JOIN tags t ON t.id = at.tag_id
WHERE at.analysis_id = $1
ORDER BY at.created_at, t.name`, recordID)
	if err != nil {
		return nil, fmt.Errorf("list record tags: %w", err)
	}
	return scanTags(rows)
}

func (r *PostgresRepository) InsertHistory(ctx context.Context, userID, recordID string, at time.Time) (bool, error) {
	db, err := r.db()
	if err != nil {
		return false, err
	}
	if at.IsZero() {
		at = time.Now()
	}

	const insertQuery = `
INSERT INTO search_history (user_id, analysis_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, analysis_id) DO NOTHING`

	res, err := db.ExecContext(ctx, insertQuery, userID, recordID, at)
	if err != nil {
		return false, fmt.Errorf("insert search history: %w", mapPgError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	db, err := r.db()
	if err != nil {
		return nil, err
	}

	query := `
SELECT h.id::text, h.user_id::text, h.analysis_id::text, h.created_at, ` + recordColumns + `
FROM search_history h JOIN analysis a ON a.id = h.analysis_id
WHERE h.user_id = $1
ORDER BY h.created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list search history: %w", err)
	}
	defer rows.Close()

	entries := []domain.HistoryEntry{}
	for rows.Next() {
		var h domain.HistoryEntry
		rec, err := scanRecord(rows, &h.ID, &h.UserID, &h.AnalysisID, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan search history: %w", err)
		}
		h.Record = rec
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

func (r *PostgresRepository) DeleteHistory(ctx context.Context, userID, entryID string) error {
	db, err := r.db()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM search_history WHERE id = $1 AND user_id = $2`, entryID, userID)
	if err != nil {
		return fmt.Errorf("delete search history: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ClearHistory(ctx context.Context, userID string) error {
	db, err := r.db()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM search_history WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear search history: %w", err)
	}
	return nil
}
