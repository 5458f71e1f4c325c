package acquisition

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"video-digest/pkg/domain"
	"video-digest/pkg/youtube"
)

// MetadataProvider fetches a video's title and description.
type MetadataProvider interface {
	FetchMetadata(ctx context.Context, videoID string) (*domain.VideoMetadata, error)
}

// TranscriptProvider fetches caption segments; an empty lang means no language constraint.
type TranscriptProvider interface {
	FetchTranscript(ctx context.Context, videoID, lang string) ([]domain.TranscriptSegment, error)
}

// PlayerInfoProvider is the secondary provider: basic info plus caption track listing.
type PlayerInfoProvider interface {
	FetchPlayerInfo(ctx context.Context, videoID string) (*youtube.PlayerInfo, error)
}

// Archive caches real transcripts by video id. GetTranscript returns nil, nil on a miss.
type Archive interface {
	GetTranscript(ctx context.Context, videoID string) (*domain.TranscriptArchive, error)
	SaveTranscript(ctx context.Context, t *domain.TranscriptArchive) error
}

// Strategy is one acquisition attempt. Attempt reports ok only for non-empty text.
type Strategy struct {
	Name    string
	Attempt func(ctx context.Context, videoID string) (text, provenance string, ok bool)
}

// Result is the outcome of an acquisition. Text is never empty.
// Degraded is set when Text is a synthesized placeholder rather than real content.
// StandIn is set when Text is the title and description of a video that has
// caption tracks we could not read; it is not a transcript either.
type Result struct {
	VideoID    string
	Text       string
	Provenance string
	Degraded   bool
	StandIn    bool
	Metadata   *domain.VideoMetadata
}

// ExternalTitle returns the provider-sourced title, or "" when none was found.
func (r *Result) ExternalTitle() string {
	if r.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(r.Metadata.Title)
}

// Config holds the chain's collaborators. Only Transcripts is required.
type Config struct {
	Metadata    MetadataProvider
	Transcripts TranscriptProvider
	Player      PlayerInfoProvider
	Archive     Archive
	Languages   []Language

	MetadataTimeout   time.Duration
	TranscriptTimeout time.Duration

	Logger *zap.Logger
}

// Chain runs the ordered acquisition strategies for a video.
type Chain struct {
	metadata    MetadataProvider
	transcripts TranscriptProvider
	player      PlayerInfoProvider
	archive     Archive
	languages   []Language

	metadataTimeout   time.Duration
	transcriptTimeout time.Duration

	log *zap.Logger
	now func() time.Time
}

// NewChain creates a chain from cfg, filling in defaults.
func NewChain(cfg Config) *Chain {
	c := &Chain{
		metadata:          cfg.Metadata,
		transcripts:       cfg.Transcripts,
		player:            cfg.Player,
		archive:           cfg.Archive,
		languages:         cfg.Languages,
		metadataTimeout:   cfg.MetadataTimeout,
		transcriptTimeout: cfg.TranscriptTimeout,
		log:               cfg.Logger,
		now:               time.Now,
	}
	if len(c.languages) == 0 {
		c.languages = DefaultLanguages
	}
	if c.metadataTimeout <= 0 {
		c.metadataTimeout = 10 * time.Second
	}
	if c.transcriptTimeout <= 0 {
		c.transcriptTimeout = 15 * time.Second
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Acquire produces the best available text for videoID. It never fails:
// when every strategy comes up empty the result carries a placeholder and Degraded is set.
func (c *Chain) Acquire(ctx context.Context, videoID string) *Result {
	log := c.log.With(zap.String("video_id", videoID))
	res := &Result{VideoID: videoID, Metadata: c.fetchMetadata(ctx, videoID)}

	for _, s := range c.Strategies(res) {
		text, provenance, ok := s.Attempt(ctx, videoID)
		if !ok {
			continue
		}
		log.Info("transcript acquired",
			zap.String("strategy", s.Name),
			zap.String("provenance", provenance),
			zap.Int("length", len(text)),
		)
		res.Text = text
		res.Provenance = provenance
		res.StandIn = provenance == ProvenancePlayerInfo
		if s.Name != "archive" {
			c.store(ctx, res)
		}
		return res
	}

	res.Text, res.Provenance = Placeholder(videoID, res.Metadata)
	res.Degraded = true
	log.Warn("all transcript sources failed, using placeholder", zap.String("provenance", res.Provenance))
	return res
}

// Strategies returns the ordered strategy list for one acquisition.
// res is shared so the player-info strategy can fill in missing metadata.
func (c *Chain) Strategies(res *Result) []Strategy {
	var strategies []Strategy

	if c.archive != nil {
		strategies = append(strategies, Strategy{Name: "archive", Attempt: c.fromArchive})
	}

	if c.transcripts != nil {
		for _, lang := range c.languages {
			strategies = append(strategies, Strategy{
				Name:    "transcript:" + langName(lang.Code),
				Attempt: c.transcriptAttempt(lang.Code, lang.Label),
			})
		}
		strategies = append(strategies, Strategy{
			Name:    "transcript:unconstrained",
			Attempt: c.transcriptAttempt("", ProvenanceUnconstrained),
		})
	}

	if c.player != nil {
		strategies = append(strategies, Strategy{
			Name: "player-info",
			Attempt: func(ctx context.Context, videoID string) (string, string, bool) {
				return c.fromPlayerInfo(ctx, videoID, res)
			},
		})
	}

	return strategies
}

func (c *Chain) fetchMetadata(ctx context.Context, videoID string) *domain.VideoMetadata {
	if c.metadata == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.metadataTimeout)
	defer cancel()

	meta, err := c.metadata.FetchMetadata(ctx, videoID)
	if err != nil {
		c.log.Warn("metadata fetch failed", zap.String("video_id", videoID), zap.Error(err))
		return nil
	}
	return meta
}

func (c *Chain) transcriptAttempt(lang, label string) func(context.Context, string) (string, string, bool) {
	return func(ctx context.Context, videoID string) (string, string, bool) {
		ctx, cancel := context.WithTimeout(ctx, c.transcriptTimeout)
		defer cancel()

		segments, err := c.transcripts.FetchTranscript(ctx, videoID, lang)
		if err != nil {
			c.log.Debug("transcript attempt failed",
				zap.String("video_id", videoID),
				zap.String("lang", langName(lang)),
				zap.Error(err),
			)
			return "", "", false
		}

		text := JoinSegments(segments)
		if text == "" {
			return "", "", false
		}
		return text, label, true
	}
}

func (c *Chain) fromPlayerInfo(ctx context.Context, videoID string, res *Result) (string, string, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.transcriptTimeout)
	defer cancel()

	info, err := c.player.FetchPlayerInfo(ctx, videoID)
	if err != nil {
		c.log.Debug("player info failed", zap.String("video_id", videoID), zap.Error(err))
		return "", "", false
	}

	track, ok := SelectPreferredTrack(info.Tracks)
	if !ok {
		c.log.Debug("player lists no caption tracks", zap.String("video_id", videoID))
		return "", "", false
	}
	c.log.Info("caption track found",
		zap.String("video_id", videoID),
		zap.String("lang", track.LanguageCode),
		zap.String("name", track.Name),
	)

	if info.Title == "" && info.ShortDescription == "" {
		return "", "", false
	}

	if res.Metadata.Empty() {
		res.Metadata = &domain.VideoMetadata{
			VideoID:     videoID,
			Title:       info.Title,
			Description: info.ShortDescription,
			Author:      info.Author,
		}
	}

	return playerInfoTranscript(info.Title, info.ShortDescription), ProvenancePlayerInfo, true
}

func (c *Chain) fromArchive(ctx context.Context, videoID string) (string, string, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.transcriptTimeout)
	defer cancel()

	archived, err := c.archive.GetTranscript(ctx, videoID)
	if err != nil {
		c.log.Warn("transcript archive lookup failed", zap.String("video_id", videoID), zap.Error(err))
		return "", "", false
	}
	if archived == nil || strings.TrimSpace(archived.Transcript) == "" || !archivable(archived.Provenance) {
		return "", "", false
	}
	return archived.Transcript, archived.Provenance, true
}

// archivable reports whether a provenance label belongs to real caption text.
func archivable(provenance string) bool {
	return provenance != ProvenancePlayerInfo && !IsPlaceholderProvenance(provenance)
}

// store archives a real transcript. Failures are logged only.
func (c *Chain) store(ctx context.Context, res *Result) {
	if c.archive == nil || res.Degraded || !archivable(res.Provenance) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.transcriptTimeout)
	defer cancel()

	doc := &domain.TranscriptArchive{
		VideoID:    res.VideoID,
		Transcript: res.Text,
		Provenance: res.Provenance,
		FetchedAt:  c.now(),
	}
	if res.Metadata != nil {
		doc.Title = res.Metadata.Title
		doc.Description = res.Metadata.Description
	}

	if err := c.archive.SaveTranscript(ctx, doc); err != nil {
		c.log.Warn("transcript archive write failed", zap.String("video_id", res.VideoID), zap.Error(err))
	}
}

// JoinSegments concatenates non-blank segment texts with single spaces.
func JoinSegments(segments []domain.TranscriptSegment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// SelectPreferredTrack picks a Korean track, else an English one, else the first.
func SelectPreferredTrack(tracks []domain.CaptionTrack) (domain.CaptionTrack, bool) {
	if len(tracks) == 0 {
		return domain.CaptionTrack{}, false
	}
	for _, t := range tracks {
		code := strings.ToLower(t.LanguageCode)
		if code == "ko" || code == "kr" {
			return t, true
		}
	}
	for _, t := range tracks {
		code := strings.ToLower(t.LanguageCode)
		if code == "en" || strings.HasPrefix(code, "en-") {
			return t, true
		}
	}
	return tracks[0], true
}

func langName(code string) string {
	if code == "" {
		return "auto"
	}
	return code
}
