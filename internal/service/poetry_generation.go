package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zey041022/poem-web-app/internal/domain"
	"github.com/zey041022/poem-web-app/internal/poetry"
	"github.com/zey041022/poem-web-app/internal/retry"
)

// SystemInstruction is sent ahead of every user text.
const SystemInstruction = `你是一位才华横溢且精通中国古典诗词的AI诗人。你的任务是根据用户提供的现代汉语描述，创作一首符合古典诗词格律和意境的诗或词。
【要求】
1. 深刻理解用户描述的**核心情感与场景**。
2. 严格按照指定体裁（如无指定，则随机选择唐诗或宋词风格）的格律创作，注意平仄、对仗和押韵。
3. 灵活运用古典意象（如明月、杨柳、孤舟、浊酒等）来表达情感，避免使用现代词汇。
4. 输出格式为纯文本，第一行为诗/词标题，第二行开始为正文，最后以"【注释】"开头，用现代文简要解释诗的意境。
【示例】
用户输入：今天好累，不想上班。
输出：
《倦勤》
朝霞未染已披衣，案牍劳形力渐微。
愿化闲云归野壑，不随车马逐尘飞。
【注释】此诗以朝霞未出便已起床的辛劳开篇，描绘了公务繁忙、身心疲惫的状态。后两句直抒胸臆，表达了渴望摆脱俗务、归隐自然的闲适愿望。`

// PoetryConfig holds the text generation settings
type PoetryConfig struct {
	Model    string
	Sampling domain.SamplingParams
	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration
	// StreamTimeout bounds a single attempt, stream included.
	StreamTimeout time.Duration
}

// PoetryService turns a modern text into a classical poem
type PoetryService struct {
	streamer domain.TextStreamer
	cfg      PoetryConfig
	logger   *zap.Logger
}

// NewPoetryService creates a new poem generation service
func NewPoetryService(streamer domain.TextStreamer, cfg PoetryConfig, logger *zap.Logger) *PoetryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoetryService{streamer: streamer, cfg: cfg, logger: logger.Named("poetry")}
}

// Generate produces a poem for text, retrying up to maxRetries times. It never
// fails: after the last attempt it returns a failure artifact that still
// passes poetry.Validate.
func (s *PoetryService) Generate(ctx context.Context, text string, maxRetries int) domain.TextArtifact {
	start := time.Now()
	var lastRaw string

	art, st, err := retry.Do(ctx, retry.Policy{
		MaxAttempts: maxRetries + 1,
		Classify:    classify,
		Delay:       retry.Fixed(s.cfg.RetryDelay),
		OnRetry: func(st retry.State) {
			s.logger.Warn("poem attempt failed, retrying",
				zap.Int("attempt", st.Attempt),
				zap.Stringer("kind", domain.Classify(st.LastError)),
				zap.Duration("delay", st.NextDelay),
				zap.Error(st.LastError))
		},
	}, func(ctx context.Context, attempt int) (domain.TextArtifact, error) {
		art, err := s.attempt(ctx, text)
		lastRaw = art.RawText
		return art, err
	})
	if err == nil {
		s.logger.Info("poem generated",
			zap.String("title", art.Title),
			zap.Int("attempts", st.Attempt),
			zap.Duration("took", time.Since(start)))
		return art
	}

	s.logger.Error("all poem attempts failed",
		zap.Int("attempts", st.Attempt),
		zap.Stringer("kind", domain.Classify(err)),
		zap.Error(err))
	failure := poetry.Parse(poetry.FailureText(err.Error()))
	failure.RawText = lastRaw
	failure.Fallback = true
	return failure
}

func (s *PoetryService) request(text string) domain.GenerationRequest {
	return domain.GenerationRequest{
		SystemInstruction: SystemInstruction,
		PromptText:        text,
		ModelID:           s.cfg.Model,
		Sampling:          s.cfg.Sampling,
		Streaming:         true,
	}
}

// attempt runs one stream to completion. The returned artifact carries the raw
// text even on failure.
func (s *PoetryService) attempt(ctx context.Context, text string) (domain.TextArtifact, error) {
	if s.cfg.StreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StreamTimeout)
		defer cancel()
	}

	stream, err := s.streamer.StreamChat(ctx, s.request(text))
	if err != nil {
		return domain.TextArtifact{}, err
	}
	defer stream.Close()

	var content, reasoning strings.Builder
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.TextArtifact{RawText: content.String()}, err
		}
		if chunk.IsReasoningDelta {
			reasoning.WriteString(chunk.ContentDelta)
			continue
		}
		content.WriteString(chunk.ContentDelta)
	}

	raw := content.String()
	s.logger.Debug("stream complete", zap.Int("content_len", len(raw)), zap.Int("reasoning_len", reasoning.Len()))

	final := raw
	if !poetry.Validate(final) {
		final = poetry.Correct(final)
		if !poetry.Validate(final) {
			return domain.TextArtifact{RawText: raw}, domain.Errorf(domain.KindValidation, "validate poem", "生成的诗词格式不正确")
		}
		s.logger.Debug("poem format corrected")
	}

	art := poetry.Parse(final)
	art.RawText = raw
	return art, nil
}
