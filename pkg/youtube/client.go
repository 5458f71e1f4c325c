package youtube

import (
	"errors"
	"strings"
	"sync"
	"time"

	"video-digest/pkg/httpclient"
)

// DefaultBaseURL is the origin every request is made against.
const DefaultBaseURL = "https://www.youtube.com"

// DefaultPageTTL is how long a downloaded watch page is reused. It spans one
// acquisition, which asks for metadata and then for several caption languages.
const DefaultPageTTL = time.Minute

var (
	// ErrPlayerResponseNotFound means the watch page carried no player response.
	ErrPlayerResponseNotFound = errors.New("player response not found")
	// ErrVideoUnavailable means the player reported the video as unplayable.
	ErrVideoUnavailable = errors.New("video unavailable")
	// ErrNoCaptions means the video exposes no caption tracks.
	ErrNoCaptions = errors.New("no caption tracks")
	// ErrLanguageUnavailable means no caption track matches the requested language.
	ErrLanguageUnavailable = errors.New("caption language unavailable")
	// ErrEmptyTranscript means a track was fetched but held no text.
	ErrEmptyTranscript = errors.New("empty transcript")
	// ErrMetadataUnavailable means neither title nor description could be found.
	ErrMetadataUnavailable = errors.New("video metadata unavailable")
)

// Client talks to YouTube's public web surfaces: the watch page, caption
// tracks and the innertube player endpoint. Watch pages are kept briefly per
// video id; nothing else is cached. Safe for concurrent use.
type Client struct {
	web     *httpclient.HTTPClient
	api     *httpclient.HTTPClient
	baseURL string
	pages   *pageCache
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another origin, used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.web = httpclient.NewClientWithTimeout(httpclient.BrowserClient, timeout)
		c.api = httpclient.NewClientWithTimeout(httpclient.APIClient, timeout)
	}
}

// WithPageTTL sets how long watch pages are reused. Zero disables reuse.
func WithPageTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.pages = newPageCache(ttl)
	}
}

// NewClient creates a YouTube client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		web:     httpclient.NewClient(httpclient.BrowserClient),
		api:     httpclient.NewClient(httpclient.APIClient),
		baseURL: DefaultBaseURL,
		pages:   newPageCache(DefaultPageTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) watchURL(videoID string) string {
	return c.baseURL + "/watch?v=" + videoID + "&hl=ko"
}

// absoluteURL resolves caption base URLs, which are absolute in production
// but may be relative when served by a test origin.
func (c *Client) absoluteURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return c.baseURL + "/" + strings.TrimLeft(raw, "/")
}

type cachedPage struct {
	html    string
	expires time.Time
}

type pageCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	pages map[string]cachedPage
}

func newPageCache(ttl time.Duration) *pageCache {
	return &pageCache{ttl: ttl, pages: make(map[string]cachedPage)}
}

func (p *pageCache) get(videoID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	page, ok := p.pages[videoID]
	if !ok || time.Now().After(page.expires) {
		return "", false
	}
	return page.html, true
}

// put stores html and drops expired entries so the map stays small.
func (p *pageCache) put(videoID, html string) {
	if p.ttl <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for id, page := range p.pages {
		if now.After(page.expires) {
			delete(p.pages, id)
		}
	}
	p.pages[videoID] = cachedPage{html: html, expires: now.Add(p.ttl)}
}
