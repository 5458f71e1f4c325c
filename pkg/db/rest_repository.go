package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	postgrest "github.com/supabase-community/postgrest-go"
	supabase "github.com/supabase-community/supabase-go"

	"video-digest/pkg/domain"
)

// RESTRepository implements Repository over Supabase's PostgREST API.
// It is used when only the project URL and key are configured (no database password).
type RESTRepository struct {
	client *supabase.Client
}

// NewRESTRepository creates a repository backed by the Supabase SDK client.
func NewRESTRepository(client *supabase.Client) *RESTRepository {
	return &RESTRepository{client: client}
}

// analysisInsert is the column set written on insert; id and timestamps come from defaults.
type analysisInsert struct {
	YouTubeURL       string   `json:"youtube_url"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	UserDescription  *string  `json:"user_description,omitempty"`
	VideoID          string   `json:"video_id,omitempty"`
	ThumbnailURL     string   `json:"thumbnail_url,omitempty"`
	Transcript       string   `json:"transcript,omitempty"`
	TranscriptSource string   `json:"transcript_source,omitempty"`
	AISummary        string   `json:"ai_summary,omitempty"`
	KeyPoints        []string `json:"key_points"`
	Category         string   `json:"category,omitempty"`
	Sentiment        string   `json:"sentiment,omitempty"`
	Difficulty       string   `json:"difficulty,omitempty"`
	DurationEstimate string   `json:"duration_estimate,omitempty"`
	AITags           []string `json:"ai_tags"`
	UserID           *string  `json:"user_id"`
	CreatedAt        string   `json:"created_at,omitempty"`
}

// restRecord mirrors an analysis row as PostgREST returns it.
type restRecord struct {
	ID               string    `json:"id"`
	YouTubeURL       string    `json:"youtube_url"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	UserDescription  *string   `json:"user_description"`
	VideoID          *string   `json:"video_id"`
	ThumbnailURL     *string   `json:"thumbnail_url"`
	Transcript       *string   `json:"transcript"`
	TranscriptSource *string   `json:"transcript_source"`
	AISummary        *string   `json:"ai_summary"`
	KeyPoints        []string  `json:"key_points"`
	Category         *string   `json:"category"`
	Sentiment        *string   `json:"sentiment"`
	Difficulty       *string   `json:"difficulty"`
	DurationEstimate *string   `json:"duration_estimate"`
	AITags           []string  `json:"ai_tags"`
	UserID           *string   `json:"user_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (r restRecord) toDomain() domain.ContentRecord {
	return domain.ContentRecord{
		ID:               r.ID,
		YouTubeURL:       r.YouTubeURL,
		Title:            r.Title,
		Description:      r.Description,
		UserDescription:  r.UserDescription,
		VideoID:          deref(r.VideoID),
		ThumbnailURL:     deref(r.ThumbnailURL),
		Transcript:       deref(r.Transcript),
		TranscriptSource: deref(r.TranscriptSource),
		AISummary:        deref(r.AISummary),
		KeyPoints:        r.KeyPoints,
		Category:         deref(r.Category),
		Sentiment:        deref(r.Sentiment),
		Difficulty:       deref(r.Difficulty),
		DurationEstimate: deref(r.DurationEstimate),
		AITags:           r.AITags,
		UserID:           r.UserID,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// mapRESTError turns PostgREST's coded errors into sentinels.
// The SDK formats them as "(code) message".
func mapRESTError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, pgUniqueViolation) || strings.Contains(msg, "duplicate key"):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case strings.Contains(msg, pgForeignKeyViolation):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case strings.Contains(msg, "PGRST116"):
		return ErrNotFound
	}
	return err
}

func (r *RESTRepository) CreateRecord(ctx context.Context, rec *domain.ContentRecord) error {
	row := analysisInsert{
		YouTubeURL:       rec.YouTubeURL,
		Title:            rec.Title,
		Description:      rec.Description,
		UserDescription:  rec.UserDescription,
		VideoID:          rec.VideoID,
		ThumbnailURL:     rec.ThumbnailURL,
		Transcript:       rec.Transcript,
		TranscriptSource: rec.TranscriptSource,
		AISummary:        rec.AISummary,
		KeyPoints:        nonNil(rec.KeyPoints),
		Category:         rec.Category,
		Sentiment:        rec.Sentiment,
		Difficulty:       rec.Difficulty,
		DurationEstimate: rec.DurationEstimate,
		AITags:           nonNil(rec.AITags),
		UserID:           rec.UserID,
	}
	if !rec.CreatedAt.IsZero() {
		row.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	var inserted []restRecord
	if _, err := r.client.From("analysis").Insert(row, false, "", "representation", "").ExecuteTo(&inserted); err != nil {
		return fmt.Errorf("insert analysis: %w", mapRESTError(err))
	}
	if len(inserted) == 0 {
		return fmt.Errorf("insert analysis: no row returned")
	}
	rec.ID = inserted[0].ID
	rec.CreatedAt = inserted[0].CreatedAt
	rec.UpdatedAt = inserted[0].UpdatedAt
	return nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func (r *RESTRepository) GetRecord(ctx context.Context, id string) (*domain.ContentRecord, error) {
	var rows []restRecord
	if _, err := r.client.From("analysis").Select("*", "", false).Eq("id", id).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("get analysis: %w", mapRESTError(err))
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	rec := rows[0].toDomain()
	return &rec, nil
}

func (r *RESTRepository) UpdateRecord(ctx context.Context, id string, upd domain.RecordUpdate) (*domain.ContentRecord, error) {
	patch := map[string]any{"updated_at": time.Now().UTC().Format(time.RFC3339Nano)}
	if upd.Title != nil {
		patch["title"] = *upd.Title
	}
	if upd.Description != nil {
		patch["description"] = *upd.Description
	}
	if upd.UserDescription != nil {
		patch["user_description"] = *upd.UserDescription
	}

	var rows []restRecord
	if _, err := r.client.From("analysis").Update(patch, "representation", "").Eq("id", id).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("update analysis: %w", mapRESTError(err))
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	rec := rows[0].toDomain()
	return &rec, nil
}

func (r *RESTRepository) DeleteRecord(ctx context.Context, id string) error {
	var rows []restRecord
	if _, err := r.client.From("analysis").Delete("representation", "").Eq("id", id).ExecuteTo(&rows); err != nil {
		return fmt.Errorf("delete analysis: %w", mapRESTError(err))
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RESTRepository) ListRecords(ctx context.Context, q domain.RecordQuery) ([]domain.ContentRecord, int, error) {
	query := r.client.From("analysis").Select("*", "exact", false).Eq("user_id", q.UserID)

	if q.TagName != "" {
		ids, err := r.recordIDsWithTag(q.UserID, q.TagName)
		if err != nil {
			return nil, 0, err
		}
		if len(ids) == 0 {
			return []domain.ContentRecord{}, 0, nil
		}
		query = query.In("id", ids)
	}

	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	if q.Limit > 0 {
		query = query.Range(q.Offset, q.Offset+q.Limit-1, "")
	} else if q.Offset > 0 {
		query = query.Range(q.Offset, 1<<31-1, "")
	}

	var rows []restRecord
	count, err := query.ExecuteTo(&rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list analysis: %w", mapRESTError(err))
	}

	records := make([]domain.ContentRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toDomain())
	}
	return records, int(count), nil
}

func (r *RESTRepository) recordIDsWithTag(userID, name string) ([]string, error) {
	tag, err := r.GetTagByName(context.Background(), userID, name)
	if err != nil || tag == nil {
		return nil, err
	}

	var links []domain.ContentTagLink
	if _, err := r.client.From("analysis_tags").Select("analysis_id,tag_id", "", false).Eq("tag_id", tag.ID).ExecuteTo(&links); err != nil {
		return nil, fmt.Errorf("list tag links: %w", mapRESTError(err))
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.AnalysisID)
	}
	return ids, nil
}

func (r *RESTRepository) ListVideoIDs(ctx context.Context) (map[string]bool, error) {
	var rows []struct {
		VideoID *string `json:"video_id"`
	}
	if _, err := r.client.From("analysis").Select("video_id", "", false).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("list video ids: %w", mapRESTError(err))
	}
	ids := make(map[string]bool, len(rows))
	for _, row := range rows {
		if id := deref(row.VideoID); id != "" {
			ids[id] = true
		}
	}
	return ids, nil
}

func (r *RESTRepository) ListOwners(ctx context.Context) ([]string, error) {
	var rows []struct {
		UserID *string `json:"user_id"`
	}
	if _, err := r.client.From("analysis").Select("user_id", "", false).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("list owners: %w", mapRESTError(err))
	}
	seen := make(map[string]bool)
	var owners []string
	for _, row := range rows {
		id := deref(row.UserID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		owners = append(owners, id)
	}
	sort.Strings(owners)
	return owners, nil
}

func (r *RESTRepository) GetTagByName(ctx context.Context, userID, name string) (*domain.Tag, error) {
	var tags []domain.Tag
	if _, err := r.client.From("tags").Select("*", "", false).Eq("user_id", userID).Eq("name", name).ExecuteTo(&tags); err != nil {
		err = mapRESTError(err)
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return &tags[0], nil
}

func (r *RESTRepository) CreateTag(ctx context.Context, userID, name string) (*domain.Tag, error) {
	row := map[string]string{"name": name, "user_id": userID}

	var tags []domain.Tag
	if _, err := r.client.From("tags").Insert(row, false, "", "representation", "").ExecuteTo(&tags); err != nil {
		return nil, fmt.Errorf("insert tag: %w", mapRESTError(err))
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("insert tag: no row returned")
	}
	return &tags[0], nil
}

func (r *RESTRepository) ListTags(ctx context.Context, userID string) ([]domain.Tag, error) {
	tags := []domain.Tag{}
	if _, err := r.client.From("tags").Select("*", "", false).Eq("user_id", userID).
		Order("name", &postgrest.OrderOpts{Ascending: true}).ExecuteTo(&tags); err != nil {
		return nil, fmt.Errorf("list tags: %w", mapRESTError(err))
	}
	return tags, nil
}

// ReplaceRecordTags deletes then inserts. PostgREST has no multi-statement
// transaction, so a failure between the two calls leaves the record untagged.
func (r *RESTRepository) ReplaceRecordTags(ctx context.Context, recordID string, tagIDs []string) error {
	if _, _, err := r.client.From("analysis_tags").Delete("minimal", "").Eq("analysis_id", recordID).Execute(); err != nil {
		return fmt.Errorf("delete tag links: %w", mapRESTError(err))
	}
	if len(tagIDs) == 0 {
		return nil
	}

	rows := make([]map[string]string, 0, len(tagIDs))
	for _, id := range tagIDs {
		rows = append(rows, map[string]string{"analysis_id": recordID, "tag_id": id})
	}
	if _, _, err := r.client.From("analysis_tags").Insert(rows, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert tag links: %w", mapRESTError(err))
	}
	return nil
}

func (r *RESTRepository) ListRecordTags(ctx context.Context, recordID string) ([]domain.Tag, error) {
	var rows []struct {
		Tag *domain.Tag `json:"tags"`
	}
	if _, err := r.client.From("analysis_tags").Select("tag_id,tags(*)", "", false).Eq("analysis_id", recordID).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("list record tags: %w", mapRESTError(err))
	}
	tags := make([]domain.Tag, 0, len(rows))
	for _, row := range rows {
		if row.Tag != nil {
			tags = append(tags, *row.Tag)
		}
	}
	return tags, nil
}

func (r *RESTRepository) InsertHistory(ctx context.Context, userID, recordID string, at time.Time) (bool, error) {
	if at.IsZero() {
		at = time.Now()
	}
	row := map[string]string{
		"user_id":     userID,
		"analysis_id": recordID,
		"created_at":  at.UTC().Format(time.RFC3339Nano),
	}

	_, _, err := r.client.From("search_history").Insert(row, false, "", "minimal", "").Execute()
	if err == nil {
		return true, nil
	}
	err = mapRESTError(err)
	if isConflict(err) {
		return false, nil
	}
	return false, fmt.Errorf("insert search history: %w", err)
}

func (r *RESTRepository) ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	query := r.client.From("search_history").Select("id,user_id,analysis_id,created_at,analysis(*)", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false})
	if limit > 0 {
		query = query.Limit(limit, "")
	}

	var rows []struct {
		ID         string      `json:"id"`
		UserID     string      `json:"user_id"`
		AnalysisID string      `json:"analysis_id"`
		CreatedAt  time.Time   `json:"created_at"`
		Analysis   *restRecord `json:"analysis"`
	}
	if _, err := query.ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("list search history: %w", mapRESTError(err))
	}

	entries := make([]domain.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entry := domain.HistoryEntry{ID: row.ID, UserID: row.UserID, AnalysisID: row.AnalysisID, CreatedAt: row.CreatedAt}
		if row.Analysis != nil {
			rec := row.Analysis.toDomain()
			entry.Record = &rec
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *RESTRepository) DeleteHistory(ctx context.Context, userID, entryID string) error {
	var rows []domain.HistoryEntry
	if _, err := r.client.From("search_history").Delete("representation", "").
		Eq("id", entryID).Eq("user_id", userID).ExecuteTo(&rows); err != nil {
		return fmt.Errorf("delete search history: %w", mapRESTError(err))
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RESTRepository) ClearHistory(ctx context.Context, userID string) error {
	if _, _, err := r.client.From("search_history").Delete("minimal", "").Eq("user_id", userID).Execute(); err != nil {
		return fmt.Errorf("clear search history: %w", mapRESTError(err))
	}
	return nil
}
