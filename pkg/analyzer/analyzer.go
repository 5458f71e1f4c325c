// Package analyzer runs one video through resolve, acquire, summarize and persist.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"video-digest/pkg/acquisition"
	"video-digest/pkg/auth"
	"video-digest/pkg/domain"
	"video-digest/pkg/persistence"
	"video-digest/pkg/summarizer"
	"video-digest/pkg/urls"
)

// LoginMessage is returned to callers whose analysis was not stored.
const LoginMessage = "로그인하시면 분석 기록이 저장됩니다."

const previewRunes = 1000

type Acquirer interface {
	Acquire(ctx context.Context, videoID string) *acquisition.Result
}

type Summarizer interface {
	Summarize(ctx context.Context, req summarizer.Request) (*summarizer.Result, error)
}

type Persister interface {
	Persist(ctx context.Context, user *auth.User, d persistence.Draft) persistence.Outcome
}

// Request is one analysis request.
type Request struct {
	URL  string   `json:"url"`
	Tags []string `json:"tags,omitempty"`
}

// Result is what the caller sees. Saved is false for anonymous callers and failed writes.
type Result struct {
	VideoID           string           `json:"videoId"`
	URL               string           `json:"url"`
	Analysis          *domain.Analysis `json:"analysis"`
	Saved             bool             `json:"saved"`
	SavedID           string           `json:"savedId,omitempty"`
	TranscriptSource  string           `json:"transcriptSource"`
	TranscriptPreview string           `json:"transcript"`
	ActualVideoTitle  string           `json:"actualVideoTitle"`
	ThumbnailURL      string           `json:"thumbnailUrl"`
	Degraded          bool             `json:"degraded"`
	StandIn           bool             `json:"standIn"`
	Demo              bool             `json:"demo"`
	Message           string           `json:"message,omitempty"`
}

type Config struct {
	Acquirer   Acquirer
	Summarizer Summarizer
	Persister  Persister
	Logger     *zap.Logger
}

type Analyzer struct {
	acquirer   Acquirer
	summarizer Summarizer
	persister  Persister
	log        *zap.Logger
}

func New(cfg Config) *Analyzer {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{
		acquirer:   cfg.Acquirer,
		summarizer: cfg.Summarizer,
		persister:  cfg.Persister,
		log:        log,
	}
}

// Analyze runs the pipeline for req. user may be nil. Errors match
// urls.ErrInvalidReference, summarizer.ErrModelUnavailable or
// summarizer.ErrMalformedModelOutput; persistence problems never fail the call.
func (a *Analyzer) Analyze(ctx context.Context, req Request, user *auth.User) (*Result, error) {
	videoID, err := urls.ExtractVideoID(req.URL)
	if err != nil {
		return nil, err
	}
	log := a.log.With(zap.String("video_id", videoID))

	acquired := a.acquirer.Acquire(ctx, videoID)
	switch {
	case acquired.Degraded:
		log.Warn("no transcript found, summarizing placeholder", zap.String("provenance", acquired.Provenance))
	case acquired.StandIn:
		log.Warn("captions unreadable, summarizing title and description", zap.String("provenance", acquired.Provenance))
	}

	summary, err := a.summarizer.Summarize(ctx, summarizer.Request{
		VideoID:    videoID,
		Transcript: acquired.Text,
		Provenance: acquired.Provenance,
		Degraded:   acquired.Degraded,
		StandIn:    acquired.StandIn,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", videoID, err)
	}

	analysis := *summary.Analysis
	externalTitle := acquired.ExternalTitle()
	if externalTitle != "" {
		analysis.Title = externalTitle
	}

	res := &Result{
		VideoID:           videoID,
		URL:               req.URL,
		Analysis:          &analysis,
		TranscriptSource:  acquired.Provenance,
		TranscriptPreview: Preview(acquired.Text),
		ActualVideoTitle:  externalTitle,
		ThumbnailURL:      urls.ThumbnailURL(videoID),
		Degraded:          acquired.Degraded,
		StandIn:           acquired.StandIn,
		Demo:              summary.Demo,
	}

	outcome := a.persister.Persist(ctx, user, persistence.Draft{
		URL:           req.URL,
		VideoID:       videoID,
		ThumbnailURL:  res.ThumbnailURL,
		ExternalTitle: externalTitle,
		Transcript:    acquired.Text,
		Provenance:    acquired.Provenance,
		Analysis:      analysis,
		Tags:          req.Tags,
	})
	switch outcome.State {
	case persistence.StateSaved:
		res.Saved = true
		res.SavedID = outcome.Record.ID
	case persistence.StateSkipped:
		res.Message = LoginMessage
	}

	log.Info("analysis complete",
		zap.Stringer("persistence", outcome.State),
		zap.Bool("degraded", res.Degraded),
		zap.Bool("stand_in", res.StandIn),
		zap.Bool("demo", res.Demo))
	return res, nil
}

// Preview returns the first 1000 runes of text, with "..." appended when cut.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	var b strings.Builder
	n := 0
	for _, r := range text {
		if n == previewRunes {
			break
		}
		b.WriteRune(r)
		n++
	}
	b.WriteString("...")
	return b.String()
}
