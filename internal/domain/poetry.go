package domain

import (
	"context"
)

// SamplingParams controls decoding on the remote model.
type SamplingParams struct {
	Temperature float64
	MaxTokens   int
}

// GenerationRequest is a single chat completion request. It is built per
// attempt and never mutated afterwards.
type GenerationRequest struct {
	SystemInstruction string
	PromptText        string
	ModelID           string
	Sampling          SamplingParams
	Streaming         bool
}

// StreamChunk is one delta read from a streaming completion.
type StreamChunk struct {
	ContentDelta     string
	IsReasoningDelta bool
}

// ChunkStream is a finite, non-restartable sequence of chunks in arrival order.
// Next returns io.EOF once the stream is exhausted. Callers must Close it.
type ChunkStream interface {
	Next() (StreamChunk, error)
	Close() error
}

// TextStreamer opens streaming completions against a remote text model.
type TextStreamer interface {
	StreamChat(ctx context.Context, req GenerationRequest) (ChunkStream, error)
}

// TextArtifact is the structured result of a poem generation.
//
// RawText is always the unmodified concatenation of the content deltas of the
// final attempt. Text is the validated (possibly corrected) form that Title,
// Body and Annotation are derived from.
type TextArtifact struct {
	Title      string
	Body       string
	Annotation string
	RawText    string
	Text       string
	Fallback   bool
}
