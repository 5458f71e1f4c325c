package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"video-digest/pkg/domain"
)

// playerResponse is the subset of ytInitialPlayerResponse / innertube player JSON we read.
type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		VideoID          string `json:"videoId"`
		Title            string `json:"title"`
		ShortDescription string `json:"shortDescription"`
		Author           string `json:"author"`
	} `json:"videoDetails"`
	Captions struct {
		Renderer struct {
			CaptionTracks []struct {
				BaseURL      string `json:"baseUrl"`
				LanguageCode string `json:"languageCode"`
				Kind         string `json:"kind"`
				Name         struct {
					SimpleText string `json:"simpleText"`
					Runs       []struct {
						Text string `json:"text"`
					} `json:"runs"`
				} `json:"name"`
			} `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

func (p *playerResponse) tracks() []domain.CaptionTrack {
	raw := p.Captions.Renderer.CaptionTracks
	tracks := make([]domain.CaptionTrack, 0, len(raw))
	for _, t := range raw {
		name := t.Name.SimpleText
		if name == "" && len(t.Name.Runs) > 0 {
			name = t.Name.Runs[0].Text
		}
		tracks = append(tracks, domain.CaptionTrack{
			BaseURL:      t.BaseURL,
			LanguageCode: t.LanguageCode,
			Name:         name,
			Kind:         t.Kind,
		})
	}
	return tracks
}

// playable reports whether the player considers the video watchable.
// An empty status is treated as playable; the watch page omits it sometimes.
func (p *playerResponse) playable() bool {
	s := p.PlayabilityStatus.Status
	return s == "" || s == "OK"
}

var playerResponseMarkers = []string{
	"var ytInitialPlayerResponse = ",
	"ytInitialPlayerResponse = ",
	`window["ytInitialPlayerResponse"] = `,
}

// parsePlayerResponse locates the embedded player response in watch page HTML.
// json.Decoder stops after the first complete value, so the trailing script is ignored.
func parsePlayerResponse(html string) (*playerResponse, error) {
	for _, marker := range playerResponseMarkers {
		idx := strings.Index(html, marker)
		if idx < 0 {
			continue
		}
		var pr playerResponse
		dec := json.NewDecoder(strings.NewReader(html[idx+len(marker):]))
		if err := dec.Decode(&pr); err != nil {
			return nil, fmt.Errorf("decode player response: %w", err)
		}
		return &pr, nil
	}
	return nil, ErrPlayerResponseNotFound
}

// fetchWatchPage returns the raw watch page HTML for a video, reusing a
// recent download of the same page.
func (c *Client) fetchWatchPage(ctx context.Context, videoID string) (string, error) {
	if html, ok := c.pages.get(videoID); ok {
		return html, nil
	}
	body, err := c.web.GetBody(ctx, c.watchURL(videoID))
	if err != nil {
		return "", fmt.Errorf("fetch watch page: %w", err)
	}
	c.pages.put(videoID, string(body))
	return string(body), nil
}

// PlayerInfo is what the innertube player endpoint reports about a video.
type PlayerInfo struct {
	VideoID          string
	Title            string
	ShortDescription string
	Author           string
	Tracks           []domain.CaptionTrack
}

// innertubeRequest is the minimal body accepted by youtubei/v1/player.
type innertubeRequest struct {
	Context struct {
		Client struct {
			ClientName        string `json:"clientName"`
			ClientVersion     string `json:"clientVersion"`
			AndroidSDKVersion int    `json:"androidSdkVersion"`
			HL                string `json:"hl"`
			GL                string `json:"gl"`
		} `json:"client"`
	} `json:"context"`
	VideoID string `json:"videoId"`
}

// FetchPlayerInfo asks the innertube player endpoint for basic info and caption tracks.
func (c *Client) FetchPlayerInfo(ctx context.Context, videoID string) (*PlayerInfo, error) {
	var req innertubeRequest
	req.Context.Client.ClientName = "ANDROID"
	req.Context.Client.ClientVersion = "19.09.37"
	req.Context.Client.AndroidSDKVersion = 30
	req.Context.Client.HL = "ko"
	req.Context.Client.GL = "KR"
	req.VideoID = videoID

	body, err := c.api.PostJSON(ctx, c.baseURL+"/youtubei/v1/player?prettyPrint=false", req)
	if err != nil {
		return nil, fmt.Errorf("innertube player: %w", err)
	}

	var pr playerResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("decode innertube player: %w", err)
	}
	if !pr.playable() {
		return nil, fmt.Errorf("%w: %s", ErrVideoUnavailable, pr.PlayabilityStatus.Reason)
	}

	return &PlayerInfo{
		VideoID:          videoID,
		Title:            strings.TrimSpace(pr.VideoDetails.Title),
		ShortDescription: strings.TrimSpace(pr.VideoDetails.ShortDescription),
		Author:           pr.VideoDetails.Author,
		Tracks:           pr.tracks(),
	}, nil
}
