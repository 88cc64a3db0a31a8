package modelscope

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zey041022/poem-web-app/internal/domain"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// StreamChat opens a streaming chat completion.
func (c *Client) StreamChat(ctx context.Context, req domain.GenerationRequest) (domain.ChunkStream, error) {
	var msgs []chatMessage
	if req.SystemInstruction != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.SystemInstruction})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.PromptText})

	httpReq, err := c.newRequest(ctx, http.MethodPost, "v1/chat/completions", chatRequest{
		Model:       req.ModelID,
		Messages:    msgs,
		Stream:      req.Streaming,
		Temperature: req.Sampling.Temperature,
		MaxTokens:   req.Sampling.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("opening chat stream", zap.String("model", req.ModelID), zap.Int("prompt_len", len(req.PromptText)))
	resp, err := c.do(httpReq, "chat completion")
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{body: resp.Body, scanner: scanner}, nil
}

// sseStream reads OpenAI-style server-sent events.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *sseStream) Next() (domain.StreamChunk, error) {
	for !s.done && s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			s.done = true
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return domain.StreamChunk{}, domain.NewError(domain.KindProtocol, "chat stream", fmt.Errorf("malformed chunk: %w", err))
		}
		if chunk.Error != nil {
			return domain.StreamChunk{}, domain.Errorf(domain.KindProtocol, "chat stream", "API error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			return domain.StreamChunk{ContentDelta: delta.Content}, nil
		}
		if delta.ReasoningContent != "" {
			return domain.StreamChunk{ContentDelta: delta.ReasoningContent, IsReasoningDelta: true}, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return domain.StreamChunk{}, domain.NewError(domain.KindTransport, "chat stream", err)
	}
	s.done = true
	return domain.StreamChunk{}, io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
