package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"strings"

	"video-digest/pkg/domain"
)

// FetchTranscript returns the caption segments of a video in the given language.
// An empty lang selects the first track the player offers.
func (c *Client) FetchTranscript(ctx context.Context, videoID, lang string) ([]domain.TranscriptSegment, error) {
	page, err := c.fetchWatchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}

	pr, err := parsePlayerResponse(page)
	if err != nil {
		return nil, err
	}
	if !pr.playable() {
		return nil, fmt.Errorf("%w: %s", ErrVideoUnavailable, pr.PlayabilityStatus.Reason)
	}

	track, err := SelectTrackByLanguage(pr.tracks(), lang)
	if err != nil {
		return nil, err
	}

	return c.FetchTrack(ctx, track)
}

// SelectTrackByLanguage picks the track whose language code equals lang, ignoring case.
// An empty lang picks the first track.
func SelectTrackByLanguage(tracks []domain.CaptionTrack, lang string) (domain.CaptionTrack, error) {
	if len(tracks) == 0 {
		return domain.CaptionTrack{}, ErrNoCaptions
	}
	if lang == "" {
		return tracks[0], nil
	}
	for _, t := range tracks {
		if strings.EqualFold(t.LanguageCode, lang) {
			return t, nil
		}
	}
	return domain.CaptionTrack{}, fmt.Errorf("%w: %s", ErrLanguageUnavailable, lang)
}

// FetchTrack downloads and parses one caption track.
func (c *Client) FetchTrack(ctx context.Context, track domain.CaptionTrack) ([]domain.TranscriptSegment, error) {
	if track.BaseURL == "" {
		return nil, fmt.Errorf("caption track %s has no URL", track.LanguageCode)
	}

	body, err := c.web.GetBody(ctx, c.absoluteURL(track.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("fetch caption track: %w", err)
	}

	segments, err := ParseTimedText(body)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrEmptyTranscript
	}
	return segments, nil
}

// classic timedtext format: <transcript><text start="" dur="">...</text></transcript>
type transcriptXML struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

// srv3 format: <timedtext><body><p t="" d="">...<s>..</s></p></body></timedtext>
type timedTextXML struct {
	Paragraphs []struct {
		T     string `xml:"t,attr"`
		D     string `xml:"d,attr"`
		Body  string `xml:",chardata"`
		Spans []struct {
			Body string `xml:",chardata"`
		} `xml:"s"`
	} `xml:"body>p"`
}

// ParseTimedText parses a caption track in either the classic or the srv3 XML format.
// Segments whose text is blank are dropped.
func ParseTimedText(data []byte) ([]domain.TranscriptSegment, error) {
	var root struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse caption track: %w", err)
	}

	var segments []domain.TranscriptSegment
	switch root.XMLName.Local {
	case "transcript":
		var doc transcriptXML
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse caption track: %w", err)
		}
		for _, t := range doc.Texts {
			text := cleanCaption(t.Body)
			if text == "" {
				continue
			}
			segments = append(segments, domain.TranscriptSegment{
				Text:     text,
				Start:    parseFloat(t.Start),
				Duration: parseFloat(t.Dur),
			})
		}

	case "timedtext":
		var doc timedTextXML
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse caption track: %w", err)
		}
		for _, p := range doc.Paragraphs {
			raw := p.Body
			for _, s := range p.Spans {
				raw += s.Body
			}
			text := cleanCaption(raw)
			if text == "" {
				continue
			}
			segments = append(segments, domain.TranscriptSegment{
				Text:     text,
				Start:    parseFloat(p.T) / 1000,
				Duration: parseFloat(p.D) / 1000,
			})
		}

	default:
		return nil, fmt.Errorf("parse caption track: unknown root element %q", root.XMLName.Local)
	}

	return segments, nil
}

// cleanCaption undoes YouTube's double entity encoding and collapses whitespace.
func cleanCaption(s string) string {
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
