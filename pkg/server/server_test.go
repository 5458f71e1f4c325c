package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"video-digest/pkg/analyzer"
	"video-digest/pkg/auth"
	"video-digest/pkg/db"
	"video-digest/pkg/persistence"
	"video-digest/pkg/summarizer"
	"video-digest/pkg/urls"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const validToken = "valid-token"

type mockAuthenticator struct {
	callCount int
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*auth.User, error) {
	m.callCount++
	if token != validToken {
		return nil, auth.ErrUnauthenticated
	}
	return &auth.User{ID: "user-1", Email: "user@example.com"}, nil
}

type mockAnalyzer struct {
	callCount int
	lastUser  *auth.User
	lastReq   analyzer.Request
	result    *analyzer.Result
	err       error
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req analyzer.Request, user *auth.User) (*analyzer.Result, error) {
	m.callCount++
	m.lastUser = user
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type fixture struct {
	server   *Server
	analyzer *mockAnalyzer
	auth     *mockAuthenticator
	coord    *persistence.Coordinator
}

func newFixture(t *testing.T, rdb *redis.Client, limit int) *fixture {
	t.Helper()
	an := &mockAnalyzer{result: &analyzer.Result{VideoID: "abc12345678", Saved: false, Message: analyzer.LoginMessage}}
	au := &mockAuthenticator{}
	coord := persistence.NewCoordinator(persistence.Config{Repo: db.NewMemoryRepository()})
	srv := New(Config{
		Analyzer:           an,
		Store:              coord,
		Auth:               au,
		Redis:              rdb,
		RateLimitPerMinute: limit,
		CORSOrigins:        []string{"http://localhost:3000"},
	})
	return &fixture{server: srv, analyzer: an, auth: au, coord: coord}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil, 0)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decode(t, rec)["status"] != "ok" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestAnalyze(t *testing.T) {
	// Test Case 1: anonymous caller gets the result without a user
	f := newFixture(t, nil, 0)
	rec := f.do(t, http.MethodPost, "/analyze", "", gin.H{"url": "https://youtu.be/abc12345678"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["success"] != true {
		t.Errorf("expected success=true, got %v", body["success"])
	}
	data := body["data"].(map[string]any)
	if data["videoId"] != "abc12345678" || data["message"] != analyzer.LoginMessage {
		t.Errorf("unexpected data %v", data)
	}
	if f.analyzer.lastUser != nil {
		t.Errorf("expected no user, got %+v", f.analyzer.lastUser)
	}

	// Test Case 2: bearer token is resolved to a user
	rec = f.do(t, http.MethodPost, "/analyze", validToken, gin.H{"url": "https://youtu.be/abc12345678", "tags": []string{"go"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.analyzer.lastUser == nil || f.analyzer.lastUser.ID != "user-1" {
		t.Errorf("expected user-1, got %+v", f.analyzer.lastUser)
	}
	if len(f.analyzer.lastReq.Tags) != 1 || f.analyzer.lastReq.Tags[0] != "go" {
		t.Errorf("expected tags to be forwarded, got %v", f.analyzer.lastReq.Tags)
	}

	// Test Case 3: invalid token falls back to anonymous
	f.do(t, http.MethodPost, "/analyze", "bogus", gin.H{"url": "https://youtu.be/abc12345678"})
	if f.analyzer.lastUser != nil {
		t.Errorf("expected anonymous caller for invalid token")
	}
}

func TestAnalyze_SessionCookie(t *testing.T) {
	f := newFixture(t, nil, 0)
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewBufferString(`{"url":"abc12345678"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: validToken})
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.analyzer.lastUser == nil {
		t.Error("expected cookie token to authenticate")
	}
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name        string
		body        any
		err         error
		wantStatus  int
		wantDetails string
		wantCalls   int
	}{
		{
			name:       "missing url",
			body:       gin.H{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid reference",
			body:       gin.H{"url": "https://example.com"},
			err:        urls.ErrInvalidReference,
			wantStatus: http.StatusBadRequest,
			wantCalls:  1,
		},
		{
			name:        "malformed model output",
			body:        gin.H{"url": "abc12345678"},
			err:         fmt.Errorf("summarize abc12345678: %w", &summarizer.MalformedOutputError{Raw: "not json", Err: errors.New("bad")}),
			wantStatus:  http.StatusInternalServerError,
			wantDetails: "not json",
			wantCalls:   1,
		},
		{
			name:       "model unavailable",
			body:       gin.H{"url": "abc12345678"},
			err:        fmt.Errorf("%w: timeout", summarizer.ErrModelUnavailable),
			wantStatus: http.StatusInternalServerError,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, 0)
			f.analyzer.err = tt.err

			rec := f.do(t, http.MethodPost, "/analyze", "", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			body := decode(t, rec)
			if body["error"] == nil || body["error"] == "" {
				t.Errorf("expected error message, got %v", body)
			}
			if tt.wantDetails != "" && body["details"] != tt.wantDetails {
				t.Errorf("expected details %q, got %v", tt.wantDetails, body["details"])
			}
			if f.analyzer.callCount != tt.wantCalls {
				t.Errorf("expected %d analyzer calls, got %d", tt.wantCalls, f.analyzer.callCount)
			}
		})
	}
}

func TestRateLimit_FailsOpenWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	f := newFixture(t, rdb, 1)
	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, "/analyze", "", gin.H{"url": "abc12345678"})
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	if f.analyzer.callCount != 3 {
		t.Errorf("expected 3 analyzer calls, got %d", f.analyzer.callCount)
	}
}

func TestRateLimit_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DialTimeout: 500 * time.Millisecond})
	defer rdb.Close()
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	keys, _ := rdb.Keys(ctx, "videodigest:rate_limit:*").Result()
	if len(keys) > 0 {
		rdb.Del(ctx, keys...)
	}

	f := newFixture(t, rdb, 2)
	for i := 0; i < 2; i++ {
		if rec := f.do(t, http.MethodPost, "/analyze", "", gin.H{"url": "abc12345678"}); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	// Test Case 1: third anonymous request in the window is rejected
	rec := f.do(t, http.MethodPost, "/analyze", "", gin.H{"url": "abc12345678"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// Test Case 2: authenticated callers are not limited
	if rec := f.do(t, http.MethodPost, "/analyze", validToken, gin.H{"url": "abc12345678"}); rec.Code != http.StatusOK {
		t.Errorf("expected 200 for authenticated caller, got %d", rec.Code)
	}
	if f.analyzer.callCount != 3 {
		t.Errorf("expected 3 analyzer calls, got %d", f.analyzer.callCount)
	}
}

func TestAuthenticatedRoutes_RequireUser(t *testing.T) {
	f := newFixture(t, nil, 0)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/history"},
		{http.MethodDelete, "/history"},
		{http.MethodDelete, "/history/x"},
		{http.MethodGet, "/analyses"},
		{http.MethodPost, "/analyses"},
		{http.MethodGet, "/analyses/x"},
		{http.MethodPatch, "/analyses/x"},
		{http.MethodDelete, "/analyses/x"},
		{http.MethodPut, "/analyses/x/tags"},
		{http.MethodGet, "/tags"},
	}
	for _, r := range routes {
		rec := f.do(t, r.method, r.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", r.method, r.path, rec.Code)
		}
	}
}

func saveRecord(t *testing.T, f *fixture, title string, tags []string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/analyses", validToken, gin.H{
		"youtube_url": "https://www.youtube.com/watch?v=abc12345678",
		"title":       title,
		"summary":     "summary",
		"tags":        tags,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode(t, rec)["analysis"].(map[string]any)["id"].(string)
}

func TestAnalysesCRUD(t *testing.T) {
	f := newFixture(t, nil, 0)

	// Test Case 1: manual save and list with tag filter
	id := saveRecord(t, f, "first", []string{"go"})
	saveRecord(t, f, "second", nil)

	rec := f.do(t, http.MethodGet, "/analyses?limit=1&offset=0", validToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["total"].(float64) != 2 || len(body["data"].([]any)) != 1 || body["limit"].(float64) != 1 {
		t.Errorf("unexpected page %v", body)
	}

	rec = f.do(t, http.MethodGet, "/analyses?tag=go", validToken, nil)
	body = decode(t, rec)
	if body["total"].(float64) != 1 {
		t.Errorf("expected 1 tagged record, got %v", body["total"])
	}

	// Test Case 2: patch title and replace tags
	rec = f.do(t, http.MethodPatch, "/analyses/"+id, validToken, gin.H{"title": "renamed", "tags": []string{"rust", "go"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := decode(t, rec)["data"].(map[string]any)
	if data["title"] != "renamed" || len(data["tags"].([]any)) != 2 {
		t.Errorf("unexpected patched record %v", data)
	}

	rec = f.do(t, http.MethodPut, "/analyses/"+id+"/tags", validToken, gin.H{"tags": []string{}})
	if rec.Code != http.StatusOK {
		t.Fatalf("put tags: expected 200, got %d", rec.Code)
	}
	if n := len(decode(t, rec)["data"].([]any)); n != 0 {
		t.Errorf("expected tags cleared, got %d", n)
	}

	rec = f.do(t, http.MethodGet, "/tags", validToken, nil)
	if n := len(decode(t, rec)["data"].([]any)); n != 2 {
		t.Errorf("expected 2 tags to survive unlinking, got %d", n)
	}

	// Test Case 3: get and delete
	if rec := f.do(t, http.MethodGet, "/analyses/"+id, validToken, nil); rec.Code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/analyses/"+id, validToken, nil); rec.Code != http.StatusOK {
		t.Errorf("delete: expected 200, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/analyses/"+id, validToken, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", rec.Code)
	}
}

func TestAnalyses_ErrorMapping(t *testing.T) {
	f := newFixture(t, nil, 0)

	// Test Case 1: missing required fields
	rec := f.do(t, http.MethodPost, "/analyses", validToken, gin.H{"title": "no url"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	// Test Case 2: another user's record
	other, err := f.coord.SaveRecord(context.Background(), "user-2", persistence.SaveInput{
		YouTubeURL: "https://youtu.be/abc12345678",
		Title:      "theirs",
		Summary:    "summary",
	})
	if err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}
	if rec := f.do(t, http.MethodGet, "/analyses/"+other.ID, validToken, nil); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/analyses/"+other.ID, validToken, nil); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 on delete, got %d", rec.Code)
	}

	// Test Case 3: bad pagination
	if rec := f.do(t, http.MethodGet, "/analyses?limit=abc", validToken, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAnalyses_PageSize(t *testing.T) {
	f := newFixture(t, nil, 0)
	saveRecord(t, f, "first", nil)

	tests := []struct {
		query string
		want  int
	}{
		{"", persistence.DefaultPageSize},
		{"?limit=0", persistence.DefaultPageSize},
		{"?limit=5", 5},
		{"?limit=500", maxPageSize},
	}

	for _, tt := range tests {
		rec := f.do(t, http.MethodGet, "/analyses"+tt.query, validToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: expected 200, got %d", tt.query, rec.Code)
		}
		if got := decode(t, rec)["limit"].(float64); int(got) != tt.want {
			t.Errorf("%q: expected limit %d, got %v", tt.query, tt.want, got)
		}
	}
}

func TestHistoryRoutes(t *testing.T) {
	f := newFixture(t, nil, 0)
	saveRecord(t, f, "first", nil)
	saveRecord(t, f, "second", nil)

	rec := f.do(t, http.MethodGet, "/history?limit=1", validToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	entries := decode(t, rec)["data"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0].(map[string]any)
	if entry["analysis"] == nil {
		t.Error("expected joined analysis")
	}

	entryID := entry["id"].(string)
	if rec := f.do(t, http.MethodDelete, "/history/"+entryID, validToken, nil); rec.Code != http.StatusOK {
		t.Errorf("delete entry: expected 200, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/history/missing", validToken, nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete missing entry: expected 404, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/history", validToken, nil); rec.Code != http.StatusOK {
		t.Errorf("clear: expected 200, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	f := newFixture(t, nil, 0)
	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected allowed origin, got %q", got)
	}
}
