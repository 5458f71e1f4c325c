package youtube

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"video-digest/pkg/domain"
)

// FetchMetadata scrapes the watch page for the video's title and description.
func (c *Client) FetchMetadata(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	html, err := c.fetchWatchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return ParseMetadata(videoID, html)
}

// ParseMetadata extracts title and description from watch page HTML.
// The player response is preferred because its description is not truncated.
func ParseMetadata(videoID, htmlContent string) (*domain.VideoMetadata, error) {
	meta := &domain.VideoMetadata{VideoID: videoID}

	if pr, err := parsePlayerResponse(htmlContent); err == nil {
		meta.Title = strings.TrimSpace(pr.VideoDetails.Title)
		meta.Description = strings.TrimSpace(pr.VideoDetails.ShortDescription)
		meta.Author = pr.VideoDetails.Author
	}

	if meta.Title == "" || meta.Description == "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTML: %w", err)
		}
		if meta.Title == "" {
			meta.Title = extractTitle(doc, htmlContent)
		}
		if meta.Description == "" {
			meta.Description = extractDescription(doc)
		}
		if meta.Author == "" {
			meta.Author = attr(doc, "link[itemprop='name']", "content")
		}
	}

	if meta.Empty() {
		return nil, ErrMetadataUnavailable
	}
	return meta, nil
}

// extractTitle tries the meta tags YouTube sets, then readability, then <title>.
func extractTitle(doc *goquery.Document, htmlContent string) string {
	if title := attr(doc, "meta[property='og:title']", "content"); title != "" {
		return title
	}

	if title := attr(doc, "meta[name='title']", "content"); title != "" {
		return title
	}

	article, err := readability.FromReader(strings.NewReader(htmlContent), nil)
	if err == nil {
		if title := cleanPageTitle(article.Title); title != "" {
			return title
		}
	}

	return cleanPageTitle(doc.Find("title").First().Text())
}

func extractDescription(doc *goquery.Document) string {
	if desc := attr(doc, "meta[property='og:description']", "content"); desc != "" {
		return desc
	}
	return attr(doc, "meta[name='description']", "content")
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

// cleanPageTitle strips the site suffix from a document title.
func cleanPageTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.TrimSuffix(title, "- YouTube")
	title = strings.TrimSpace(title)
	if title == "YouTube" {
		return ""
	}
	return title
}
