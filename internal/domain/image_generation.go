package domain

import (
	"context"
)

// ImageGenerationRequest represents the parameters for image generation
type ImageGenerationRequest struct {
	Prompt         string
	Model          string
	Width          int
	Height         int
	NumImages      int
	Steps          int
	GuidanceScale  float64
	Style          string
	NegativePrompt string
}

// ImageJobService defines the remote operations of an asynchronous image generation backend
type ImageJobService interface {
	// SubmitImageJob creates a job and returns it with its remote identifier
	SubmitImageJob(ctx context.Context, req ImageGenerationRequest) (*ImageJob, error)

	// GetImageJob queries the current status of a job
	GetImageJob(ctx context.Context, jobID string) (*ImageJob, error)

	// Fetch retrieves the raw bytes behind a job's result reference
	Fetch(ctx context.Context, resultURL string) ([]byte, error)
}

// AssetStore saves encoded images under caller-chosen names.
type AssetStore interface {
	Save(ctx context.Context, id AssetID, asset ImageAsset) error
	Exists(ctx context.Context, id AssetID) (bool, error)
}
