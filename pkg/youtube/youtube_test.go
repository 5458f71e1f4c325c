package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// watchPage builds a minimal watch page embedding a player response with the given tracks JSON.
func watchPage(tracksJSON string) string {
	return `<!DOCTYPE html><html><head>
<title>Test Video - YouTube</title>
<meta property="og:title" content="OG Title">
<meta name="description" content="Meta description">
</head><body>
<script>var ytInitialPlayerResponse = {"playabilityStatus":{"status":"OK"},"videoDetails":{"videoId":"abc12345678","title":"Player Title","shortDescription":"Player description","author":"Channel"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":` + tracksJSON + `}}};var meta = {"x": 1};</script>
</body></html>`
}

const classicTrack = `<?xml version="1.0" encoding="utf-8" ?><transcript><text start="0.5" dur="1.2">Hello</text><text start="1.7" dur="1.0">  </text><text start="2.7" dur="1.1">world &amp;#39;s</text></transcript>`

func newTestServer(t *testing.T, page string, tracks map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/watch":
			w.Write([]byte(page))
		case r.URL.Path == "/api/timedtext":
			body, ok := tracks[r.URL.Query().Get("lang")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(body))
		case r.URL.Path == "/youtubei/v1/player":
			w.Write([]byte(`{"playabilityStatus":{"status":"OK"},"videoDetails":{"title":"Innertube Title","shortDescription":"Innertube description"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"/api/timedtext?lang=en","languageCode":"en","name":{"simpleText":"English"}}]}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestParseMetadata_PrefersPlayerResponse(t *testing.T) {
	meta, err := ParseMetadata("abc12345678", watchPage(`[]`))
	if err != nil {
		t.Fatalf("ParseMetadata failed: %v", err)
	}
	if meta.Title != "Player Title" {
		t.Errorf("Expected player title, got %q", meta.Title)
	}
	if meta.Description != "Player description" {
		t.Errorf("Expected player description, got %q", meta.Description)
	}
}

func TestParseMetadata_FallsBackToMetaTags(t *testing.T) {
	html := `<html><head><title>Fallback - YouTube</title>
<meta property="og:title" content="OG Title">
<meta name="description" content="Meta description"></head><body></body></html>`

	meta, err := ParseMetadata("abc12345678", html)
	if err != nil {
		t.Fatalf("ParseMetadata failed: %v", err)
	}
	if meta.Title != "OG Title" {
		t.Errorf("Expected og:title, got %q", meta.Title)
	}
	if meta.Description != "Meta description" {
		t.Errorf("Expected meta description, got %q", meta.Description)
	}
}

func TestParseMetadata_Empty(t *testing.T) {
	_, err := ParseMetadata("abc12345678", `<html><head><title>YouTube</title></head><body></body></html>`)
	if !errors.Is(err, ErrMetadataUnavailable) {
		t.Fatalf("Expected ErrMetadataUnavailable, got %v", err)
	}
}

func TestClient_FetchTranscript(t *testing.T) {
	page := watchPage(`[{"baseUrl":"/api/timedtext?lang=ko","languageCode":"ko"},{"baseUrl":"/api/timedtext?lang=en","languageCode":"en"}]`)
	server := newTestServer(t, page, map[string]string{"en": classicTrack, "ko": classicTrack})
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	ctx := context.Background()

	// Test Case 1: explicit language
	segments, err := client.FetchTranscript(ctx, "abc12345678", "en")
	if err != nil {
		t.Fatalf("FetchTranscript failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("Expected 2 non-blank segments, got %d", len(segments))
	}
	if segments[0].Text != "Hello" || segments[1].Text != "world 's" {
		t.Errorf("Unexpected segments: %+v", segments)
	}
	if segments[0].Start != 0.5 {
		t.Errorf("Expected start 0.5, got %v", segments[0].Start)
	}

	// Test Case 2: missing language
	_, err = client.FetchTranscript(ctx, "abc12345678", "fr")
	if !errors.Is(err, ErrLanguageUnavailable) {
		t.Errorf("Expected ErrLanguageUnavailable, got %v", err)
	}

	// Test Case 3: no language picks the first track
	segments, err = client.FetchTranscript(ctx, "abc12345678", "")
	if err != nil {
		t.Fatalf("FetchTranscript without language failed: %v", err)
	}
	if len(segments) == 0 {
		t.Error("Expected segments for first track")
	}
}

func TestClient_ReusesWatchPage(t *testing.T) {
	page := watchPage(`[{"baseUrl":"/api/timedtext?lang=ko","languageCode":"ko"},{"baseUrl":"/api/timedtext?lang=en","languageCode":"en"}]`)
	var watchHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/watch":
			atomic.AddInt32(&watchHits, 1)
			w.Write([]byte(page))
		case r.URL.Path == "/api/timedtext" && r.URL.Query().Get("lang") == "en":
			w.Write([]byte(classicTrack))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	ctx := context.Background()

	// Test Case 1: metadata and every language share one download
	client := NewClient(WithBaseURL(server.URL))
	if _, err := client.FetchMetadata(ctx, "abc12345678"); err != nil {
		t.Fatalf("FetchMetadata failed: %v", err)
	}
	if _, err := client.FetchTranscript(ctx, "abc12345678", "ko"); err == nil {
		t.Error("Expected ko track to be missing on the server")
	}
	if _, err := client.FetchTranscript(ctx, "abc12345678", "fr"); !errors.Is(err, ErrLanguageUnavailable) {
		t.Errorf("Expected ErrLanguageUnavailable, got %v", err)
	}
	if _, err := client.FetchTranscript(ctx, "abc12345678", "en"); err != nil {
		t.Fatalf("FetchTranscript failed: %v", err)
	}
	if hits := atomic.LoadInt32(&watchHits); hits != 1 {
		t.Errorf("Expected 1 watch page download, got %d", hits)
	}

	// Test Case 2: another video downloads its own page
	if _, err := client.FetchTranscript(ctx, "xyz12345678", "en"); err != nil {
		t.Fatalf("FetchTranscript failed: %v", err)
	}
	if hits := atomic.LoadInt32(&watchHits); hits != 2 {
		t.Errorf("Expected 2 watch page downloads, got %d", hits)
	}

	// Test Case 3: reuse disabled
	atomic.StoreInt32(&watchHits, 0)
	client = NewClient(WithBaseURL(server.URL), WithPageTTL(0))
	for _, lang := range []string{"fr", "en"} {
		client.FetchTranscript(ctx, "abc12345678", lang)
	}
	if hits := atomic.LoadInt32(&watchHits); hits != 2 {
		t.Errorf("Expected 2 watch page downloads without reuse, got %d", hits)
	}
}

func TestClient_FetchTranscript_NoCaptions(t *testing.T) {
	server := newTestServer(t, watchPage(`[]`), nil)
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.FetchTranscript(context.Background(), "abc12345678", "")
	if !errors.Is(err, ErrNoCaptions) {
		t.Fatalf("Expected ErrNoCaptions, got %v", err)
	}
}

func TestClient_FetchPlayerInfo(t *testing.T) {
	server := newTestServer(t, "", nil)
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	info, err := client.FetchPlayerInfo(context.Background(), "abc12345678")
	if err != nil {
		t.Fatalf("FetchPlayerInfo failed: %v", err)
	}
	if info.Title != "Innertube Title" || info.ShortDescription != "Innertube description" {
		t.Errorf("Unexpected info: %+v", info)
	}
	if len(info.Tracks) != 1 || info.Tracks[0].LanguageCode != "en" || info.Tracks[0].Name != "English" {
		t.Errorf("Unexpected tracks: %+v", info.Tracks)
	}
}

func TestParseTimedText_Srv3(t *testing.T) {
	data := `<?xml version="1.0" encoding="utf-8" ?><timedtext format="3"><body><p t="1000" d="2000">Hi <s>there</s></p><p t="3000" d="500"></p></body></timedtext>`

	segments, err := ParseTimedText([]byte(data))
	if err != nil {
		t.Fatalf("ParseTimedText failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segments))
	}
	if !strings.HasPrefix(segments[0].Text, "Hi") || !strings.HasSuffix(segments[0].Text, "there") {
		t.Errorf("Unexpected text %q", segments[0].Text)
	}
	if segments[0].Start != 1 || segments[0].Duration != 2 {
		t.Errorf("Unexpected timing: %+v", segments[0])
	}
}
