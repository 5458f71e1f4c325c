package urls

import (
	"context"
	"fmt"
)

// UrlFilter defines the interface for URL filtering
type UrlFilter interface {
	ShouldKeep(ctx context.Context, url string) (bool, error)
}

// FilterURLs applies all filters to a list of URLs
func FilterURLs(ctx context.Context, urls []string, filters ...UrlFilter) ([]string, error) {
	filtered := make([]string, 0, len(urls))

	for _, urlStr := range urls {
		keep := true
		for _, f := range filters {
			shouldKeep, err := f.ShouldKeep(ctx, urlStr)
			if err != nil {
				return nil, fmt.Errorf("filter error for URL %s: %w", urlStr, err)
			}
			if !shouldKeep {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, urlStr)
		}
	}

	return filtered, nil
}

// VideoURLFilter keeps only URLs that resolve to a video id
type VideoURLFilter struct{}

// NewVideoURLFilter creates a new video URL filter
func NewVideoURLFilter() *VideoURLFilter {
	return &VideoURLFilter{}
}

// ShouldKeep returns false for channel pages, playlists and anything else without a video id
func (f *VideoURLFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	return IsVideoURL(urlStr), nil
}

// AlreadyAnalyzedFilter filters out URLs whose video id is in the provided set
type AlreadyAnalyzedFilter struct {
	videoIDs map[string]bool
}

// NewAlreadyAnalyzedFilter creates a new already-analyzed filter
func NewAlreadyAnalyzedFilter(videoIDs map[string]bool) *AlreadyAnalyzedFilter {
	return &AlreadyAnalyzedFilter{
		videoIDs: videoIDs,
	}
}

// ShouldKeep returns false if the URL's video id was already analyzed.
// URLs without a video id are kept; VideoURLFilter is responsible for those.
func (f *AlreadyAnalyzedFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	id, err := ExtractVideoID(urlStr)
	if err != nil {
		return true, nil
	}
	return !f.videoIDs[id], nil
}

// DedupFilter drops repeated references to the same video within one batch
type DedupFilter struct {
	seen map[string]bool
}

// NewDedupFilter creates a new dedup filter
func NewDedupFilter() *DedupFilter {
	return &DedupFilter{seen: make(map[string]bool)}
}

// ShouldKeep returns false for the second and later URL naming the same video
func (f *DedupFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	id, err := ExtractVideoID(urlStr)
	if err != nil {
		return true, nil
	}
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}
