package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"video-digest/pkg/auth"
	"video-digest/pkg/db"
	"video-digest/pkg/domain"
	"video-digest/pkg/worker"
)

func sampleDraft(tags ...string) Draft {
	return Draft{
		URL:           "https://youtu.be/abc12345678",
		VideoID:       "abc12345678",
		ThumbnailURL:  "https://img.youtube.com/vi/abc12345678/maxresdefault.jpg",
		ExternalTitle: "Real Title",
		Transcript:    "Hello world",
		Provenance:    "영어",
		Analysis: domain.Analysis{
			Title:     "Model Title",
			Summary:   "요약",
			KeyPoints: []string{"one", "two"},
			Category:  "교육",
			Tags:      []string{"ai-tag"},
		},
		Tags: tags,
	}
}

func countTags(t *testing.T, repo db.Repository, userID string) int {
	t.Helper()
	tags, err := repo.ListTags(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	return len(tags)
}

func TestPersist_UnauthenticatedIsNeverWritten(t *testing.T) {
	repo := db.NewMemoryRepository()
	coord := NewCoordinator(Config{Repo: repo})

	out := coord.Persist(context.Background(), nil, sampleDraft("music"))
	if out.State != StateSkipped || out.Saved() {
		t.Fatalf("expected skipped outcome, got %v", out.State)
	}

	ids, _ := repo.ListVideoIDs(context.Background())
	if len(ids) != 0 {
		t.Errorf("expected no records, got %v", ids)
	}
	if n := countTags(t, repo, ""); n != 0 {
		t.Errorf("expected no tags, got %d", n)
	}
}

func TestPersist_SavesRecordTagsAndHistory(t *testing.T) {
	ctx := context.Background()
	repo := db.NewMemoryRepository()
	coord := NewCoordinator(Config{Repo: repo})
	user := &auth.User{ID: "u1"}

	out := coord.Persist(ctx, user, sampleDraft("music", " music ", ""))
	if !out.Saved() {
		t.Fatalf("expected saved outcome, got %v (%v)", out.State, out.Err)
	}

	rec, err := repo.GetRecord(ctx, out.Record.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if rec.YouTubeURL != "https://youtu.be/abc12345678" {
		t.Errorf("expected url to be echoed, got %q", rec.YouTubeURL)
	}
	if rec.Title != "Real Title" {
		t.Errorf("expected external title, got %q", rec.Title)
	}
	if rec.AISummary != "요약" || rec.TranscriptSource != "영어" {
		t.Errorf("unexpected record fields: %+v", rec)
	}

	linked, _ := repo.ListRecordTags(ctx, rec.ID)
	if len(linked) != 1 || linked[0].Name != "music" {
		t.Errorf("expected one 'music' link, got %v", linked)
	}

	history, _ := repo.ListHistory(ctx, "u1", 0)
	if len(history) != 1 || history[0].AnalysisID != rec.ID {
		t.Errorf("expected one history entry for the record, got %v", history)
	}
}

func TestPersist_ModelTitleWhenNoExternalTitle(t *testing.T) {
	repo := db.NewMemoryRepository()
	coord := NewCoordinator(Config{Repo: repo})

	d := sampleDraft()
	d.ExternalTitle = "  "
	out := coord.Persist(context.Background(), &auth.User{ID: "u1"}, d)
	if out.Record.Title != "Model Title" {
		t.Errorf("expected model title, got %q", out.Record.Title)
	}
}

func TestPersist_RepeatedTagCreatesOneTag(t *testing.T) {
	ctx := context.Background()
	repo := db.NewMemoryRepository()
	coord := NewCoordinator(Config{Repo: repo})
	user := &auth.User{ID: "u1"}

	first := coord.Persist(ctx, user, sampleDraft("newtag"))
	second := coord.Persist(ctx, user, sampleDraft("newtag"))
	if !first.Saved() || !second.Saved() {
		t.Fatal("expected both requests to save")
	}

	if n := countTags(t, repo, "u1"); n != 1 {
		t.Errorf("expected exactly one tag row, got %d", n)
	}
	for _, rec := range []*domain.ContentRecord{first.Record, second.Record} {
		linked, _ := repo.ListRecordTags(ctx, rec.ID)
		if len(linked) != 1 {
			t.Errorf("expected one link for %s, got %d", rec.ID, len(linked))
		}
	}
}

func TestPersist_AutoLinkAITags(t *testing.T) {
	ctx := context.Background()
	repo := db.NewMemoryRepository()
	user := &auth.User{ID: "u1"}

	// Test Case 1: disabled by default
	out := NewCoordinator(Config{Repo: repo}).Persist(ctx, user, sampleDraft())
	if linked, _ := repo.ListRecordTags(ctx, out.Record.ID); len(linked) != 0 {
		t.Errorf("expected no links, got %v", linked)
	}

	// Test Case 2: enabled, request has no tags
	out = NewCoordinator(Config{Repo: repo, AutoLinkAITags: true}).Persist(ctx, user, sampleDraft())
	linked, _ := repo.ListRecordTags(ctx, out.Record.ID)
	if len(linked) != 1 || linked[0].Name != "ai-tag" {
		t.Errorf("expected ai-tag link, got %v", linked)
	}

	// Test Case 3: request tags win
	out = NewCoordinator(Config{Repo: repo, AutoLinkAITags: true}).Persist(ctx, user, sampleDraft("mine"))
	linked, _ = repo.ListRecordTags(ctx, out.Record.ID)
	if len(linked) != 1 || linked[0].Name != "mine" {
		t.Errorf("expected request tag link, got %v", linked)
	}
}

// racingRepo loses the tag creation race once: the tag appears between
// the lookup and the insert.
type racingRepo struct {
	*db.MemoryRepository
	createCalls int
}

func (r *racingRepo) CreateTag(ctx context.Context, userID, name string) (*domain.Tag, error) {
	r.createCalls++
	if r.createCalls == 1 {
		if _, err := r.MemoryRepository.CreateTag(ctx, userID, name); err != nil {
			return nil, err
		}
		return nil, db.ErrConflict
	}
	return r.MemoryRepository.CreateTag(ctx, userID, name)
}

func TestLinkTags_ConflictReusesExistingTag(t *testing.T) {
	ctx := context.Background()
	repo := &racingRepo{MemoryRepository: db.NewMemoryRepository()}
	coord := NewCoordinator(Config{Repo: repo})

	out := coord.Persist(ctx, &auth.User{ID: "u1"}, sampleDraft("raced"))
	if !out.Saved() {
		t.Fatalf("expected save, got %v", out.Err)
	}
	if len(out.Record.Tags) != 1 || out.Record.Tags[0].Name != "raced" {
		t.Errorf("expected reused tag, got %v", out.Record.Tags)
	}
	if n := countTags(t, repo, "u1"); n != 1 {
		t.Errorf("expected one tag row, got %d", n)
	}
}

type failingRepo struct {
	*db.MemoryRepository
	failCreate  bool
	failHistory bool
}

func (r *failingRepo) CreateRecord(ctx context.Context, rec *domain.ContentRecord) error {
	if r.failCreate {
		return errors.New("connection refused")
	}
	return r.MemoryRepository.CreateRecord(ctx, rec)
}

func (r *failingRepo) InsertHistory(ctx context.Context, userID, recordID string, at time.Time) (bool, error) {
	if r.failHistory {
		return false, errors.New("connection reset")
	}
	return r.MemoryRepository.InsertHistory(ctx, userID, recordID, at)
}

func TestPersist_RecordWriteFailure(t *testing.T) {
	repo := &failingRepo{MemoryRepository: db.NewMemoryRepository(), failCreate: true}
	coord := NewCoordinator(Config{Repo: repo})

	out := coord.Persist(context.Background(), &auth.User{ID: "u1"}, sampleDraft("music"))
	if out.State != StateFailed || out.Err == nil {
		t.Fatalf("expected failed outcome, got %v", out.State)
	}
	if n := countTags(t, repo, "u1"); n != 0 {
		t.Errorf("expected tags not to be created after a failed write, got %d", n)
	}
}

func TestListHistory_ReconcilesDrift(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{MemoryRepository: db.NewMemoryRepository(), failHistory: true}
	coord := NewCoordinator(Config{Repo: repo})
	user := &auth.User{ID: "u1"}

	// The history write fails, leaving the record without an entry.
	out := coord.Persist(ctx, user, sampleDraft())
	if !out.Saved() {
		t.Fatalf("history failure must not un-save the record, got %v", out.State)
	}
	if entries, _ := repo.MemoryRepository.ListHistory(ctx, "u1", 0); len(entries) != 0 {
		t.Fatalf("expected drift, got %d entries", len(entries))
	}
	repo.failHistory = false

	entries, err := coord.ListHistory(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListHistory failed: %v", err)
	}
	if len(entries) != 1 || entries[0].AnalysisID != out.Record.ID {
		t.Fatalf("expected the record to appear in history, got %v", entries)
	}
	if entries[0].Record == nil || entries[0].Record.VideoID != "abc12345678" {
		t.Errorf("expected joined record, got %+v", entries[0].Record)
	}

	// Second read is a no-op.
	entries, err = coord.ListHistory(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("second ListHistory failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no duplicate entries, got %d", len(entries))
	}
	n, err := coord.Reconcile(ctx, "u1")
	if err != nil || n != 0 {
		t.Errorf("expected idempotent reconcile, got %d (%v)", n, err)
	}
}

func TestReconcile_UsesRecordCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := db.NewMemoryRepository()
	coord := NewCoordinator(Config{Repo: repo})
	owner := "u1"
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rec := &domain.ContentRecord{YouTubeURL: "https://youtu.be/abc12345678", Title: "t", UserID: &owner, CreatedAt: created}
	if err := repo.CreateRecord(ctx, rec); err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}

	n, err := coord.Reconcile(ctx, owner)
	if err != nil || n != 1 {
		t.Fatalf("expected one backfilled entry, got %d (%v)", n, err)
	}
	entries, _ := repo.ListHistory(ctx, owner, 0)
	if !entries[0].CreatedAt.Equal(created) {
		t.Errorf("expected entry time %v, got %v", created, entries[0].CreatedAt)
	}
}

func TestListHistory_DefaultLimit(t *testing.T) {
	ctx := context.Background()
	repo := db.NewMemoryRepository()
	coord := NewCoordinator(Config{Repo: repo})
	user := &auth.User{ID: "u1"}

	for i := 0; i < DefaultHistoryLimit+2; i++ {
		coord.Persist(ctx, user, sampleDraft())
	}
	entries, err := coord.ListHistory(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListHistory failed: %v", err)
	}
	if len(entries) != DefaultHistoryLimit {
		t.Errorf("expected %d entries, got %d", DefaultHistoryLimit, len(entries))
	}
}

func TestReconciler_ReconcileAll(t *testing.T) {
	ctx := context.Background()
	repo := db.NewMemoryRepository()
	coord := NewCoordinator(Config{Repo: repo})

	for _, owner := range []string{"u1", "u2", "u2"} {
		o := owner
		if err := repo.CreateRecord(ctx, &domain.ContentRecord{YouTubeURL: "x", Title: "t", UserID: &o}); err != nil {
			t.Fatalf("CreateRecord failed: %v", err)
		}
	}

	r := NewReconciler(coord, worker.NewPool(2, nil), 0, nil)
	n, err := r.ReconcileAll(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 backfilled entries, got %d (%v)", n, err)
	}
	n, err = r.ReconcileAll(ctx)
	if err != nil || n != 0 {
		t.Errorf("expected second pass to be a no-op, got %d (%v)", n, err)
	}
}

func TestSaveRecord(t *testing.T) {
	ctx := context.Background()
	repo := db.NewMemoryRepository()
	coord := NewCoordinator(Config{Repo: repo})

	// Test Case 1: missing fields
	_, err := coord.SaveRecord(ctx, "u1", SaveInput{YouTubeURL: "https://youtu.be/abc12345678"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	// Test Case 2: valid save
	rec, err := coord.SaveRecord(ctx, "u1", SaveInput{
		YouTubeURL: "https://youtu.be/abc12345678",
		Title:      "My notes",
		Summary:    "summary",
		Tags:       []string{"saved"},
	})
	if err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}
	if rec.VideoID != "abc12345678" || rec.ThumbnailURL == "" {
		t.Errorf("expected video id and thumbnail to be derived, got %+v", rec)
	}
	if len(rec.Tags) != 1 {
		t.Errorf("expected one tag, got %v", rec.Tags)
	}
	entries, _ := repo.ListHistory(ctx, "u1", 0)
	if len(entries) != 1 {
		t.Errorf("expected history entry, got %d", len(entries))
	}
}

func TestRecordOwnership(t *testing.T) {
	ctx := context.Background()
	repo := db.NewMemoryRepository()
	coord := NewCoordinator(Config{Repo: repo})

	out := coord.Persist(ctx, &auth.User{ID: "owner"}, sampleDraft("a", "b"))
	id := out.Record.ID

	if _, err := coord.GetRecord(ctx, "intruder", id); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden on read, got %v", err)
	}
	if err := coord.DeleteRecord(ctx, "intruder", id); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden on delete, got %v", err)
	}
	if _, err := coord.GetRecord(ctx, "owner", "missing"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	rec, err := coord.GetRecord(ctx, "owner", id)
	if err != nil || len(rec.Tags) != 2 {
		t.Fatalf("expected record with 2 tags, got %+v (%v)", rec, err)
	}

	// Tag replacement is full, not incremental.
	title := "edited"
	rec, err = coord.UpdateRecord(ctx, "owner", id, domain.RecordUpdate{Title: &title}, []string{"c"})
	if err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}
	if rec.Title != "edited" || len(rec.Tags) != 1 || rec.Tags[0].Name != "c" {
		t.Errorf("unexpected update result: %+v", rec)
	}

	tags, err := coord.ReplaceTags(ctx, "owner", id, nil)
	if err != nil || len(tags) != 0 {
		t.Errorf("expected tags cleared, got %v (%v)", tags, err)
	}

	if err := coord.DeleteRecord(ctx, "owner", id); err != nil {
		t.Errorf("DeleteRecord failed: %v", err)
	}
}

func TestListRecords_PaginationAndTagFilter(t *testing.T) {
	ctx := context.Background()
	repo := db.NewMemoryRepository()
	coord := NewCoordinator(Config{Repo: repo})
	user := &auth.User{ID: "u1"}

	for i := 0; i < 12; i++ {
		tag := "even"
		if i%2 == 1 {
			tag = "odd"
		}
		coord.Persist(ctx, user, sampleDraft(tag))
	}

	records, total, err := coord.ListRecords(ctx, domain.RecordQuery{UserID: "u1"})
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if total != 12 || len(records) != DefaultPageSize {
		t.Errorf("expected %d of 12, got %d of %d", DefaultPageSize, len(records), total)
	}

	records, total, _ = coord.ListRecords(ctx, domain.RecordQuery{UserID: "u1", TagName: "odd", Limit: 100})
	if total != 6 || len(records) != 6 {
		t.Errorf("expected 6 odd records, got %d (total %d)", len(records), total)
	}
	for _, r := range records {
		if len(r.Tags) != 1 || r.Tags[0].Name != "odd" {
			t.Errorf("expected odd tag on %s, got %v", r.ID, r.Tags)
		}
	}
}

func TestHistoryDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	repo := db.NewMemoryRepository()
	coord := NewCoordinator(Config{Repo: repo})
	user := &auth.User{ID: "u1"}
	coord.Persist(ctx, user, sampleDraft())
	coord.Persist(ctx, user, sampleDraft())

	entries, _ := repo.ListHistory(ctx, "u1", 0)
	if err := coord.DeleteHistoryEntry(ctx, "u1", entries[0].ID); err != nil {
		t.Fatalf("DeleteHistoryEntry failed: %v", err)
	}
	if err := coord.ClearHistory(ctx, "u1"); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}
	left, _ := repo.ListHistory(ctx, "u1", 0)
	if len(left) != 0 {
		t.Errorf("expected no entries, got %d", len(left))
	}
}
