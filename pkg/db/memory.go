package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"video-digest/pkg/domain"
)

// MemoryRepository keeps everything in process memory.
// It enforces the same unique constraints as the SQL schema.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]domain.ContentRecord
	tags    map[string]domain.Tag
	links   map[string][]domain.ContentTagLink // by record id
	history map[string]domain.HistoryEntry
	now     func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]domain.ContentRecord),
		tags:    make(map[string]domain.Tag),
		links:   make(map[string][]domain.ContentTagLink),
		history: make(map[string]domain.HistoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryRepository) CreateRecord(ctx context.Context, rec *domain.ContentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = uuid.NewString()
	now := m.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	stored := *rec
	stored.Tags = nil
	m.records[rec.ID] = stored
	return nil
}

func (m *MemoryRepository) GetRecord(ctx context.Context, id string) (*domain.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryRepository) UpdateRecord(ctx context.Context, id string, upd domain.RecordUpdate) (*domain.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Title != nil {
		rec.Title = *upd.Title
	}
	if upd.Description != nil {
		rec.Description = *upd.Description
	}
	if upd.UserDescription != nil {
		note := *upd.UserDescription
		rec.UserDescription = &note
	}
	rec.UpdatedAt = m.now()
	m.records[id] = rec
	return &rec, nil
}

func (m *MemoryRepository) DeleteRecord(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	delete(m.links, id)
	for hid, h := range m.history {
		if h.AnalysisID == id {
			delete(m.history, hid)
		}
	}
	return nil
}

func (m *MemoryRepository) ListRecords(ctx context.Context, q domain.RecordQuery) ([]domain.ContentRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []domain.ContentRecord
	for _, rec := range m.records {
		if !rec.OwnedBy(q.UserID) {
			continue
		}
		if q.TagName != "" && !m.hasTagLocked(rec.ID, q.TagName) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	return paginate(matched, q.Limit, q.Offset), total, nil
}

func (m *MemoryRepository) hasTagLocked(recordID, name string) bool {
	for _, link := range m.links[recordID] {
		if t, ok := m.tags[link.TagID]; ok && t.Name == name {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) ListVideoIDs(ctx context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[string]bool)
	for _, rec := range m.records {
		if rec.VideoID != "" {
			ids[rec.VideoID] = true
		}
	}
	return ids, nil
}

func (m *MemoryRepository) ListOwners(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	var owners []string
	for _, rec := range m.records {
		if rec.UserID == nil || seen[*rec.UserID] {
			continue
		}
		seen[*rec.UserID] = true
		owners = append(owners, *rec.UserID)
	}
	sort.Strings(owners)
	return owners, nil
}

func (m *MemoryRepository) GetTagByName(ctx context.Context, userID, name string) (*domain.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tags {
		if t.UserID == userID && t.Name == name {
			tag := t
			return &tag, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) CreateTag(ctx context.Context, userID, name string) (*domain.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tags {
		if t.UserID == userID && t.Name == name {
			return nil, ErrConflict
		}
	}
	tag := domain.Tag{ID: uuid.NewString(), Name: name, UserID: userID, CreatedAt: m.now()}
	m.tags[tag.ID] = tag
	return &tag, nil
}

func (m *MemoryRepository) ListTags(ctx context.Context, userID string) ([]domain.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tags []domain.Tag
	for _, t := range m.tags {
		if t.UserID == userID {
			tags = append(tags, t)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

func (m *MemoryRepository) ReplaceRecordTags(ctx context.Context, recordID string, tagIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[recordID]; !ok {
		return ErrNotFound
	}
	now := m.now()
	links := make([]domain.ContentTagLink, 0, len(tagIDs))
	seen := make(map[string]bool)
	for _, id := range tagIDs {
		if _, ok := m.tags[id]; !ok {
			return ErrNotFound
		}
		if seen[id] {
			return ErrConflict
		}
		seen[id] = true
		links = append(links, domain.ContentTagLink{AnalysisID: recordID, TagID: id, CreatedAt: now})
	}
	m.links[recordID] = links
	return nil
}

func (m *MemoryRepository) ListRecordTags(ctx context.Context, recordID string) ([]domain.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tags []domain.Tag
	for _, link := range m.links[recordID] {
		if t, ok := m.tags[link.TagID]; ok {
			tags = append(tags, t)
		}
	}
	return tags, nil
}

func (m *MemoryRepository) InsertHistory(ctx context.Context, userID, recordID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[recordID]; !ok {
		return false, ErrNotFound
	}
	for _, h := range m.history {
		if h.UserID == userID && h.AnalysisID == recordID {
			return false, nil
		}
	}
	if at.IsZero() {
		at = m.now()
	}
	entry := domain.HistoryEntry{ID: uuid.NewString(), UserID: userID, AnalysisID: recordID, CreatedAt: at}
	m.history[entry.ID] = entry
	return true, nil
}

func (m *MemoryRepository) ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []domain.HistoryEntry
	for _, h := range m.history {
		if h.UserID != userID {
			continue
		}
		if rec, ok := m.records[h.AnalysisID]; ok {
			h.Record = &rec
		}
		entries = append(entries, h)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return paginate(entries, limit, 0), nil
}

func (m *MemoryRepository) DeleteHistory(ctx context.Context, userID, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.history[entryID]
	if !ok || h.UserID != userID {
		return ErrNotFound
	}
	delete(m.history, entryID)
	return nil
}

func (m *MemoryRepository) ClearHistory(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, h := range m.history {
		if h.UserID == userID {
			delete(m.history, id)
		}
	}
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
