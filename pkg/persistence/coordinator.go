// Package persistence stores analyses for authenticated users and keeps
// search history consistent with the stored records.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"video-digest/pkg/auth"
	"video-digest/pkg/db"
	"video-digest/pkg/domain"
)

var (
	// ErrForbidden is returned when a user touches a record they do not own.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput is returned for manual saves missing required fields.
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultHistoryLimit is used when ListHistory gets a non-positive limit.
const DefaultHistoryLimit = 10

// State is the outcome of a Persist call.
type State int

const (
	StateSkipped State = iota
	StateSaved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSaved:
		return "saved"
	case StateFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Outcome reports what Persist did. Err is set only for StateFailed.
type Outcome struct {
	State  State
	Record *domain.ContentRecord
	Err    error
}

// Saved reports whether the record was written.
func (o Outcome) Saved() bool { return o.State == StateSaved }

// Draft is a finished analysis waiting to be stored.
type Draft struct {
	URL           string
	VideoID       string
	ThumbnailURL  string
	ExternalTitle string
	Transcript    string
	Provenance    string
	Analysis      domain.Analysis
	Tags          []string
}

type Config struct {
	Repo db.Repository
	// AutoLinkAITags links the model's tags when the request names none.
	AutoLinkAITags bool
	Logger         *zap.Logger
}

// Coordinator owns every write to records, tags and history.
type Coordinator struct {
	repo     db.Repository
	autoTags bool
	log      *zap.Logger
	now      func() time.Time
}

func NewCoordinator(cfg Config) *Coordinator {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		repo:     cfg.Repo,
		autoTags: cfg.AutoLinkAITags,
		log:      log,
		now:      time.Now,
	}
}

// Persist writes the record, links tags and writes history. Only the record
// write decides the outcome; tag and history failures are logged.
func (c *Coordinator) Persist(ctx context.Context, user *auth.User, d Draft) Outcome {
	if user == nil || user.ID == "" {
		return Outcome{State: StateSkipped}
	}

	rec := recordFromDraft(d, user.ID)
	if err := c.repo.CreateRecord(ctx, rec); err != nil {
		c.log.Error("record write failed",
			zap.String("video_id", d.VideoID),
			zap.String("user_id", user.ID),
			zap.Error(err))
		return Outcome{State: StateFailed, Err: err}
	}

	tagNames := normalizeTagNames(d.Tags)
	if len(tagNames) == 0 && c.autoTags {
		tagNames = normalizeTagNames(d.Analysis.Tags)
	}
	if len(tagNames) > 0 {
		if tags, err := c.LinkTags(ctx, user.ID, rec.ID, tagNames); err != nil {
			c.log.Warn("tag linking failed", zap.String("record_id", rec.ID), zap.Error(err))
		} else {
			rec.Tags = tags
		}
	}

	if _, err := c.repo.InsertHistory(ctx, user.ID, rec.ID, rec.CreatedAt); err != nil {
		c.log.Warn("history write failed; left for reconciliation",
			zap.String("record_id", rec.ID),
			zap.Error(err))
	}

	c.log.Info("record saved",
		zap.String("record_id", rec.ID),
		zap.String("video_id", d.VideoID),
		zap.Int("tags", len(rec.Tags)))
	return Outcome{State: StateSaved, Record: rec}
}

func recordFromDraft(d Draft, userID string) *domain.ContentRecord {
	a := d.Analysis
	title := a.Title
	if strings.TrimSpace(d.ExternalTitle) != "" {
		title = d.ExternalTitle
	}
	owner := userID
	return &domain.ContentRecord{
		YouTubeURL:       d.URL,
		Title:            title,
		Description:      a.Summary,
		VideoID:          d.VideoID,
		ThumbnailURL:     d.ThumbnailURL,
		Transcript:       d.Transcript,
		TranscriptSource: d.Provenance,
		AISummary:        a.Summary,
		KeyPoints:        a.KeyPoints,
		Category:         a.Category,
		Sentiment:        a.Sentiment,
		Difficulty:       a.Difficulty,
		DurationEstimate: a.DurationEstimate,
		AITags:           a.Tags,
		UserID:           &owner,
	}
}

// LinkTags find-or-creates each named tag for the user and replaces the
// record's links with the resulting set. An empty list clears the links.
func (c *Coordinator) LinkTags(ctx context.Context, userID, recordID string, names []string) ([]domain.Tag, error) {
	names = normalizeTagNames(names)

	tags := make([]domain.Tag, 0, len(names))
	ids := make([]string, 0, len(names))
	for _, name := range names {
		tag, err := c.findOrCreateTag(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
		ids = append(ids, tag.ID)
	}

	if err := c.repo.ReplaceRecordTags(ctx, recordID, ids); err != nil {
		return nil, fmt.Errorf("link tags: %w", err)
	}
	return tags, nil
}

// findOrCreateTag relies on the (user_id, name) unique constraint: a
// concurrent create surfaces as ErrConflict and the winner's row is reused.
func (c *Coordinator) findOrCreateTag(ctx context.Context, userID, name string) (*domain.Tag, error) {
	tag, err := c.repo.GetTagByName(ctx, userID, name)
	if err != nil {
		return nil, fmt.Errorf("get tag %q: %w", name, err)
	}
	if tag != nil {
		return tag, nil
	}

	tag, err = c.repo.CreateTag(ctx, userID, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, db.ErrConflict) {
		return nil, fmt.Errorf("create tag %q: %w", name, err)
	}

	tag, err = c.repo.GetTagByName(ctx, userID, name)
	if err != nil {
		return nil, fmt.Errorf("refetch tag %q: %w", name, err)
	}
	if tag == nil {
		return nil, fmt.Errorf("tag %q conflicted but was not found", name)
	}
	return tag, nil
}

func normalizeTagNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
