package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

const channelFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
	<title>Go Channel</title>
	<yt:channelId>UC1234567890abcdefghijkl</yt:channelId>
	<entry>
		<id>yt:video:abc12345678</id>
		<yt:videoId>abc12345678</yt:videoId>
		<title>Goroutines explained</title>
		<link rel="alternate" href="https://www.youtube.com/watch?v=abc12345678"/>
	</entry>
	<entry>
		<id>yt:video:def12345678</id>
		<yt:videoId>def12345678</yt:videoId>
		<title>Channels in depth</title>
	</entry>
</feed>`

func serveFeed(t *testing.T, body, contentType string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRSSParser_ChannelFeed(t *testing.T) {
	server := serveFeed(t, channelFeed, "application/atom+xml")

	entries, err := NewRSSParser().ParseFromURL(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Failed to parse channel feed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	expected := map[string]string{
		"https://www.youtube.com/watch?v=abc12345678": "Goroutines explained",
		"https://www.youtube.com/watch?v=def12345678": "Channels in depth",
	}
	for _, e := range entries {
		title, ok := expected[e.Location]
		if !ok {
			t.Errorf("Unexpected URL: %s", e.Location)
			continue
		}
		if e.Title != title {
			t.Errorf("Expected title %q for %s, got %q", title, e.Location, e.Title)
		}
	}
}

func TestRSSParser_RSSFormat(t *testing.T) {
	rssXML := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Playlist mirror</title>
		<link>https://example.com</link>
		<item>
			<title>Episode 1</title>
			<link>https://youtu.be/abc12345678</link>
		</item>
		<item>
			<title>No link</title>
		</item>
	</channel>
</rss>`
	server := serveFeed(t, rssXML, "application/rss+xml")

	entries, err := NewRSSParser().ParseFromURL(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Failed to parse RSS feed: %v", err)
	}
	if len(entries) != 1 || entries[0].Location != "https://youtu.be/abc12345678" {
		t.Errorf("Expected only the linked item, got %v", entries)
	}
}

func TestRSSParser_EmptyFeed(t *testing.T) {
	rssXML := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Empty Feed</title>
		<link>https://example.com</link>
	</channel>
</rss>`
	server := serveFeed(t, rssXML, "application/rss+xml")

	if _, err := NewRSSParser().ParseFromURL(context.Background(), server.URL); err == nil {
		t.Error("Expected error for empty feed, got nil")
	}
}

func TestRSSParser_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := NewRSSParser().ParseFromURL(context.Background(), server.URL); err == nil {
		t.Error("Expected error for 404 feed, got nil")
	}
}

func TestChannelFeedURL(t *testing.T) {
	got := ChannelFeedURL("UC1234567890abcdefghijkl")
	want := "https://www.youtube.com/feeds/videos.xml?channel_id=UC1234567890abcdefghijkl"
	if got != want {
		t.Errorf("ChannelFeedURL = %q, want %q", got, want)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	file, err := os.CreateTemp(t.TempDir(), "urls-*.txt")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, err := file.WriteString(content); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	file.Close()
	return file.Name()
}

func TestFileParser_ParseFromURL(t *testing.T) {
	path := writeTempFile(t, `https://www.youtube.com/watch?v=abc12345678
https://youtu.be/def12345678,

# weekly picks
   https://www.youtube.com/shorts/ghi12345678
`)

	entries, err := NewFileParser().ParseFromURL(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to parse file: %v", err)
	}

	expected := []string{
		"https://www.youtube.com/watch?v=abc12345678",
		"https://youtu.be/def12345678",
		"https://www.youtube.com/shorts/ghi12345678",
	}
	if len(entries) != len(expected) {
		t.Fatalf("Expected %d URLs, got %d", len(expected), len(entries))
	}
	for i, want := range expected {
		if entries[i].Location != want {
			t.Errorf("Expected URL %d to be %q, got %q", i, want, entries[i].Location)
		}
	}
}

func TestFileParser_EmptyAndMissing(t *testing.T) {
	// Test Case 1: only comments
	path := writeTempFile(t, "# nothing here\n\n")
	if _, err := NewFileParser().ParseFromURL(context.Background(), path); err == nil {
		t.Error("Expected error for file without URLs, got nil")
	}

	// Test Case 2: missing file
	if _, err := NewFileParser().ParseFromURL(context.Background(), "/nonexistent/file/path.txt"); err == nil {
		t.Error("Expected error for nonexistent file, got nil")
	}
}
