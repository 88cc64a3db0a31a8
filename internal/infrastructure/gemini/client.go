// Package gemini streams poem completions from the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/zey041022/poem-web-app/internal/domain"
)

// DefaultModel is used when a request carries no model id.
const DefaultModel = "gemini-2.5-flash"

// Client implements domain.TextStreamer on top of genai.
type Client struct {
	client *genai.Client
	logger *zap.Logger
}

// Config configures NewClient.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{client: client, logger: logger}, nil
}

// StreamChat opens a streaming generation. Thought parts are reported as
// reasoning deltas.
func (c *Client) StreamChat(ctx context.Context, req domain.GenerationRequest) (domain.ChunkStream, error) {
	model := req.ModelID
	if model == "" {
		model = DefaultModel
	}
	config := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(float32(req.Sampling.Temperature)),
		ThinkingConfig: &genai.ThinkingConfig{IncludeThoughts: true},
	}
	if req.Sampling.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.Sampling.MaxTokens)
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	c.logger.Debug("opening gemini stream", zap.String("model", model), zap.Int("prompt_len", len(req.PromptText)))
	seq := c.client.Models.GenerateContentStream(ctx, model, genai.Text(req.PromptText), config)
	return newStream(seq), nil
}

type stream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	pending []domain.StreamChunk
}

func newStream(seq iter.Seq2[*genai.GenerateContentResponse, error]) *stream {
	next, stop := iter.Pull2(seq)
	return &stream{next: next, stop: stop}
}

func (s *stream) Next() (domain.StreamChunk, error) {
	for len(s.pending) == 0 {
		resp, err, ok := s.next()
		if !ok {
			return domain.StreamChunk{}, io.EOF
		}
		if err != nil {
			return domain.StreamChunk{}, classifyErr(err)
		}
		s.pending = chunks(resp)
	}
	c := s.pending[0]
	s.pending = s.pending[1:]
	return c, nil
}

func (s *stream) Close() error {
	s.stop()
	return nil
}

// classifyErr maps API status codes onto error kinds; anything else is a
// transport failure.
func classifyErr(err error) error {
	kind := domain.KindTransport
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		kind = domain.KindForStatus(apiErr.Code)
	}
	return domain.NewError(kind, "gemini stream", err)
}

// chunks flattens the first candidate of a response into stream chunks.
func chunks(resp *genai.GenerateContentResponse) []domain.StreamChunk {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var out []domain.StreamChunk
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Text == "" {
			continue
		}
		out = append(out, domain.StreamChunk{ContentDelta: p.Text, IsReasoningDelta: p.Thought})
	}
	return out
}

var _ domain.TextStreamer = (*Client)(nil)
