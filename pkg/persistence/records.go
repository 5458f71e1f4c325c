package persistence

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"video-digest/pkg/domain"
	"video-digest/pkg/urls"
)

// DefaultPageSize is the ListRecords page size when none is given.
const DefaultPageSize = 10

// SaveInput is a manually saved analysis.
type SaveInput struct {
	YouTubeURL      string   `json:"youtube_url"`
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	Description     string   `json:"description"`
	UserDescription *string  `json:"user_description"`
	KeyPoints       []string `json:"key_points"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
}

// Validate checks the fields a manual save requires.
func (in SaveInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.YouTubeURL) == "" {
		missing = append(missing, "youtube_url")
	}
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Summary) == "" {
		missing = append(missing, "summary")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// SaveRecord stores a manually entered analysis for the user.
func (c *Coordinator) SaveRecord(ctx context.Context, userID string, in SaveInput) (*domain.ContentRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	owner := userID
	rec := &domain.ContentRecord{
		YouTubeURL:      in.YouTubeURL,
		Title:           in.Title,
		Description:     in.Description,
		UserDescription: in.UserDescription,
		AISummary:       in.Summary,
		KeyPoints:       in.KeyPoints,
		Category:        in.Category,
		UserID:          &owner,
	}
	if id, err := urls.ExtractVideoID(in.YouTubeURL); err == nil {
		rec.VideoID = id
		rec.ThumbnailURL = urls.ThumbnailURL(id)
	}

	if err := c.repo.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}

	if len(normalizeTagNames(in.Tags)) > 0 {
		tags, err := c.LinkTags(ctx, userID, rec.ID, in.Tags)
		if err != nil {
			c.log.Warn("tag linking failed", zap.String("record_id", rec.ID), zap.Error(err))
		}
		rec.Tags = tags
	}
	if _, err := c.repo.InsertHistory(ctx, userID, rec.ID, rec.CreatedAt); err != nil {
		c.log.Warn("history write failed; left for reconciliation", zap.String("record_id", rec.ID), zap.Error(err))
	}
	return rec, nil
}

// ListRecords returns a page of the user's records with their tags and the total count.
func (c *Coordinator) ListRecords(ctx context.Context, q domain.RecordQuery) ([]domain.ContentRecord, int, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	records, total, err := c.repo.ListRecords(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	for i := range records {
		if err := c.attachTags(ctx, &records[i]); err != nil {
			return nil, 0, err
		}
	}
	return records, total, nil
}

// GetRecord returns a record with its tags. Owned records are visible only to their owner.
func (c *Coordinator) GetRecord(ctx context.Context, userID, id string) (*domain.ContentRecord, error) {
	rec, err := c.repo.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != nil && !rec.OwnedBy(userID) {
		return nil, ErrForbidden
	}
	if err := c.attachTags(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateRecord edits the record's text fields. A non-nil tags slice replaces
// the record's tag links.
func (c *Coordinator) UpdateRecord(ctx context.Context, userID, id string, upd domain.RecordUpdate, tags []string) (*domain.ContentRecord, error) {
	if _, err := c.ownedRecord(ctx, userID, id); err != nil {
		return nil, err
	}

	var (
		rec *domain.ContentRecord
		err error
	)
	if upd.Empty() {
		rec, err = c.repo.GetRecord(ctx, id)
	} else {
		rec, err = c.repo.UpdateRecord(ctx, id, upd)
	}
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}

	if tags != nil {
		if _, err := c.LinkTags(ctx, userID, id, tags); err != nil {
			return nil, err
		}
	}
	if err := c.attachTags(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ReplaceTags sets the record's tags to exactly names.
func (c *Coordinator) ReplaceTags(ctx context.Context, userID, id string, names []string) ([]domain.Tag, error) {
	if _, err := c.ownedRecord(ctx, userID, id); err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return c.LinkTags(ctx, userID, id, names)
}

func (c *Coordinator) DeleteRecord(ctx context.Context, userID, id string) error {
	if _, err := c.ownedRecord(ctx, userID, id); err != nil {
		return err
	}
	return c.repo.DeleteRecord(ctx, id)
}

func (c *Coordinator) ListTags(ctx context.Context, userID string) ([]domain.Tag, error) {
	tags, err := c.repo.ListTags(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	return tags, nil
}

// AnalyzedVideoIDs returns every video id that already has a record.
func (c *Coordinator) AnalyzedVideoIDs(ctx context.Context) (map[string]bool, error) {
	return c.repo.ListVideoIDs(ctx)
}

func (c *Coordinator) ownedRecord(ctx context.Context, userID, id string) (*domain.ContentRecord, error) {
	rec, err := c.repo.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.OwnedBy(userID) {
		return nil, ErrForbidden
	}
	return rec, nil
}

func (c *Coordinator) attachTags(ctx context.Context, rec *domain.ContentRecord) error {
	tags, err := c.repo.ListRecordTags(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("load tags for %s: %w", rec.ID, err)
	}
	rec.Tags = tags
	return nil
}

