package summarizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"video-digest/pkg/domain"
)

// ErrModelUnavailable wraps failures and timeouts of the model call itself.
var ErrModelUnavailable = errors.New("model unavailable")

// Completer is a black-box text completion function.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Request is the input of one summarization.
type Request struct {
	VideoID    string
	Transcript string
	Provenance string
	// Degraded selects the placeholder prompt.
	Degraded bool
	// StandIn selects the title-and-description prompt.
	StandIn bool
}

// Result is a decoded Analysis and how it was produced.
type Result struct {
	Analysis *domain.Analysis
	Mode     Mode
	Demo     bool
	Raw      string
}

// Invoker turns a transcript into a structured Analysis.
type Invoker struct {
	completer Completer
	timeout   time.Duration
	log       *zap.Logger
}

// NewInvoker creates an invoker. A nil completer puts it in demo mode:
// Summarize then returns a canned analysis without any network call.
func NewInvoker(completer Completer, timeout time.Duration, log *zap.Logger) *Invoker {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Invoker{completer: completer, timeout: timeout, log: log}
}

// DemoMode reports whether no model is configured.
func (i *Invoker) DemoMode() bool {
	return i.completer == nil
}

// Summarize builds the mode-selected prompt, calls the model and decodes its answer.
// Errors match ErrModelUnavailable or ErrMalformedModelOutput.
func (i *Invoker) Summarize(ctx context.Context, req Request) (*Result, error) {
	mode := ModeFull
	switch {
	case req.Degraded:
		mode = ModePlaceholder
	case req.StandIn:
		mode = ModeStandIn
	}

	if i.DemoMode() {
		i.log.Info("no model configured, returning demo analysis", zap.String("video_id", req.VideoID))
		return &Result{Analysis: DemoAnalysis(req.VideoID), Mode: mode, Demo: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	start := time.Now()
	raw, err := i.completer.Complete(ctx, BuildPrompt(mode, req.VideoID, req.Transcript))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	i.log.Info("model responded",
		zap.String("video_id", req.VideoID),
		zap.Stringer("mode", mode),
		zap.Int("length", len(raw)),
		zap.Duration("latency", time.Since(start)),
	)

	analysis, err := DecodeAnalysis(raw)
	if err != nil {
		i.log.Warn("model output could not be decoded", zap.String("video_id", req.VideoID), zap.Error(err))
		return nil, err
	}

	return &Result{Analysis: analysis, Mode: mode, Raw: raw}, nil
}

// DemoAnalysis is the canned analysis returned when no model credential is configured.
func DemoAnalysis(videoID string) *domain.Analysis {
	return &domain.Analysis{
		Title:   "분석된 영상 제목 - " + videoID,
		Summary: "이 영상은 유튜브에서 분석한 내용입니다. 실제 분석 결과를 보려면 모델 API 키를 설정하세요. 영상의 주요 내용과 핵심 포인트들을 요약하여 제공합니다.",
		KeyPoints: []string{
			"영상의 핵심 내용 요약",
			"주요 학습 포인트 정리",
			"실용적인 정보 추출",
			"시청자에게 유용한 인사이트",
		},
		Category:         "교육",
		Sentiment:        "긍정적",
		Difficulty:       "중급",
		DurationEstimate: "10분",
		Tags:             []string{"교육", "학습", "정보", "유튜브"},
	}
}
