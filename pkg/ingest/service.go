// Package ingest analyzes every new video listed by a channel feed or URL file.
package ingest

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"video-digest/pkg/analyzer"
	"video-digest/pkg/auth"
	"video-digest/pkg/parser"
	"video-digest/pkg/urls"
	"video-digest/pkg/worker"
)

var channelIDPattern = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)

type Analyzer interface {
	Analyze(ctx context.Context, req analyzer.Request, user *auth.User) (*analyzer.Result, error)
}

// KnownVideos reports which video ids already have a stored analysis.
type KnownVideos interface {
	AnalyzedVideoIDs(ctx context.Context) (map[string]bool, error)
}

type Config struct {
	Analyzer    Analyzer
	Known       KnownVideos
	WorkerCount int
	Logger      *zap.Logger
}

// Service handles batch analysis of video lists.
type Service struct {
	analyzer Analyzer
	known    KnownVideos
	pool     *worker.Pool
	parsers  []parser.Parser
	log      *zap.Logger
}

// Request describes one batch.
type Request struct {
	// Source is a file path, a feed URL or a bare channel id.
	Source     string
	MaxEntries int
	Tags       []string
	User       *auth.User
}

// Report summarizes a batch.
type Report struct {
	Found    int
	Queued   int
	Stats    worker.Stats
	Analyses []*analyzer.Result
}

func NewService(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		analyzer: cfg.Analyzer,
		known:    cfg.Known,
		pool:     worker.NewPool(cfg.WorkerCount, log.Named("pool")),
		// file first, then feeds
		parsers: []parser.Parser{
			parser.NewFileParser(),
			parser.NewRSSParser(),
		},
		log: log,
	}
}

// Ingest reads the source, drops non-video and already analyzed URLs and
// analyzes the rest. It fails only when the source yields nothing to do or
// every analysis failed.
func (s *Service) Ingest(ctx context.Context, req Request) (*Report, error) {
	source := req.Source
	if channelIDPattern.MatchString(source) {
		source = parser.ChannelFeedURL(source)
	}

	found, err := s.parse(ctx, source)
	if err != nil {
		return nil, err
	}

	known := map[string]bool{}
	if s.known != nil {
		known, err = s.known.AnalyzedVideoIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load analyzed videos: %w", err)
		}
	}

	queued, err := urls.FilterURLs(ctx, found,
		urls.NewVideoURLFilter(),
		urls.NewAlreadyAnalyzedFilter(known),
		urls.NewDedupFilter(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to filter URLs: %w", err)
	}

	report := &Report{Found: len(found)}
	if req.MaxEntries > 0 && len(queued) > req.MaxEntries {
		queued = queued[:req.MaxEntries]
	}
	report.Queued = len(queued)

	s.log.Info("ingest starting",
		zap.String("source", source),
		zap.Int("found", report.Found),
		zap.Int("queued", report.Queued))
	if len(queued) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	stats, err := s.pool.Run(ctx, queued, worker.ProcessorFunc(func(ctx context.Context, url string) error {
		res, err := s.analyzer.Analyze(ctx, analyzer.Request{URL: url, Tags: req.Tags}, req.User)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Analyses = append(report.Analyses, res)
		mu.Unlock()
		return nil
	}))
	report.Stats = stats
	if err != nil {
		return report, fmt.Errorf("failed to analyze videos: %w", err)
	}
	return report, nil
}

// parse tries each parser in order and returns the first non-empty list.
func (s *Service) parse(ctx context.Context, source string) ([]string, error) {
	var lastErr error
	for _, p := range s.parsers {
		entries, err := p.ParseFromURL(ctx, source)
		if err != nil {
			lastErr = err
			continue
		}
		if len(entries) == 0 {
			continue
		}
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.Location)
		}
		return out, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("all parsers failed, last error: %w", lastErr)
	}
	return nil, fmt.Errorf("no URLs found in %s", source)
}
