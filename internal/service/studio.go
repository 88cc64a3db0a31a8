package service

import (
	"context"
	"errors"

	"github.com/zey041022/poem-web-app/internal/domain"
)

// ErrImagesDisabled is returned by image operations of a text-only Studio.
var ErrImagesDisabled = errors.New("image generation is not configured")

// Limits bounds the retries of a single request.
type Limits struct {
	TextRetries      int
	ImageTaskRetries int
	ImagePollRetries int
}

// Card pairs a poem with its illustration.
type Card struct {
	Poem  domain.TextArtifact
	Image domain.AssetID
}

// Studio is the entry point the commands call into.
type Studio struct {
	poems  *PoetryService
	images *ImageService
	limits Limits
}

// NewStudio wires the two generation services together. images may be nil for
// a text-only studio, whose image operations then return ErrImagesDisabled.
func NewStudio(poems *PoetryService, images *ImageService, limits Limits) *Studio {
	return &Studio{poems: poems, images: images, limits: limits}
}

// GenerateText writes a poem for text.
func (s *Studio) GenerateText(ctx context.Context, text string) domain.TextArtifact {
	return s.poems.Generate(ctx, text, s.limits.TextRetries)
}

// GenerateImage illustrates text.
func (s *Studio) GenerateImage(ctx context.Context, text string) (domain.AssetID, error) {
	if s.images == nil {
		return "", ErrImagesDisabled
	}
	return s.images.Generate(ctx, text, s.limits.ImageTaskRetries, s.limits.ImagePollRetries)
}

// GenerateCard writes a poem for text and illustrates the poem. A failed poem
// is illustrated from the user's text instead.
func (s *Studio) GenerateCard(ctx context.Context, text string) (Card, error) {
	poem := s.GenerateText(ctx, text)
	source := poem.Text
	if poem.Fallback {
		source = text
	}
	id, err := s.GenerateImage(ctx, source)
	if err != nil {
		return Card{Poem: poem}, err
	}
	return Card{Poem: poem, Image: id}, nil
}
