package parser

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mmcdole/gofeed"

	"video-digest/pkg/urls"
)

const channelFeedBase = "https://www.youtube.com/feeds/videos.xml"

// ChannelFeedURL returns the Atom feed of a channel's latest uploads.
func ChannelFeedURL(channelID string) string {
	return channelFeedBase + "?channel_id=" + url.QueryEscape(channelID)
}

// RSSParser reads video links from RSS/Atom feeds, including YouTube channel feeds.
type RSSParser struct {
	feedParser *gofeed.Parser
}

func NewRSSParser() *RSSParser {
	return &RSSParser{
		feedParser: gofeed.NewParser(),
	}
}

// ParseFromURL fetches and parses the feed at feedURL.
func (p *RSSParser) ParseFromURL(ctx context.Context, feedURL string) ([]URL, error) {
	feed, err := p.feedParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	if feed == nil || len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed contains no items")
	}

	out := make([]URL, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := item.Link
		if link == "" {
			// YouTube entries always carry <yt:videoId>.
			if id := youtubeVideoID(item); id != "" {
				link = urls.WatchURL(id)
			}
		}
		if link == "" {
			continue
		}
		out = append(out, URL{Location: link, Title: item.Title})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no valid URLs found in feed items")
	}
	return out, nil
}

func youtubeVideoID(item *gofeed.Item) string {
	yt, ok := item.Extensions["yt"]
	if !ok {
		return ""
	}
	ids := yt["videoId"]
	if len(ids) == 0 {
		return ""
	}
	return ids[0].Value
}
