package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"video-digest/pkg/domain"
)

// ListHistory returns the user's newest history entries with their records
// and tags. If the user has records with no history entry, the missing
// entries are backfilled before the read is served.
func (c *Coordinator) ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	entries, err := c.repo.ListHistory(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	_, recordCount, err := c.repo.ListRecords(ctx, domain.RecordQuery{UserID: userID, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	if len(entries) < recordCount {
		c.log.Info("history drift detected",
			zap.String("user_id", userID),
			zap.Int("history", len(entries)),
			zap.Int("records", recordCount))
		if _, err := c.Reconcile(ctx, userID); err != nil {
			return nil, err
		}
		entries, err = c.repo.ListHistory(ctx, userID, 0)
		if err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		if entries[i].Record == nil {
			continue
		}
		tags, err := c.repo.ListRecordTags(ctx, entries[i].Record.ID)
		if err != nil {
			c.log.Warn("load record tags failed", zap.String("record_id", entries[i].Record.ID), zap.Error(err))
			continue
		}
		entries[i].Record.Tags = tags
	}
	return entries, nil
}

// Reconcile inserts a history entry for every record of the user that has
// none. It is idempotent: entries that already exist are left untouched.
func (c *Coordinator) Reconcile(ctx context.Context, userID string) (int, error) {
	records, _, err := c.repo.ListRecords(ctx, domain.RecordQuery{UserID: userID})
	if err != nil {
		return 0, fmt.Errorf("reconcile %s: list records: %w", userID, err)
	}
	entries, err := c.repo.ListHistory(ctx, userID, 0)
	if err != nil {
		return 0, fmt.Errorf("reconcile %s: list history: %w", userID, err)
	}

	covered := make(map[string]bool, len(entries))
	for _, e := range entries {
		covered[e.AnalysisID] = true
	}

	backfilled := 0
	for _, rec := range records {
		if covered[rec.ID] {
			continue
		}
		created, err := c.repo.InsertHistory(ctx, userID, rec.ID, rec.CreatedAt)
		if err != nil {
			return backfilled, fmt.Errorf("reconcile %s: backfill %s: %w", userID, rec.ID, err)
		}
		if created {
			backfilled++
		}
	}

	if backfilled > 0 {
		c.log.Info("history backfilled", zap.String("user_id", userID), zap.Int("entries", backfilled))
	}
	return backfilled, nil
}

func (c *Coordinator) DeleteHistoryEntry(ctx context.Context, userID, entryID string) error {
	return c.repo.DeleteHistory(ctx, userID, entryID)
}

func (c *Coordinator) ClearHistory(ctx context.Context, userID string) error {
	return c.repo.ClearHistory(ctx, userID)
}
