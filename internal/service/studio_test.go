package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zey041022/poem-web-app/internal/domain"
)

func TestStudioGenerateCard(t *testing.T) {
	streamer := &fakeStreamer{script: func(int) (domain.ChunkStream, error) {
		return &sliceStream{chunks: content("《山居》\n空山新雨后\n【注释】山中雨后。")}, nil
	}}
	jobs := &fakeJobs{
		status: succeedAt(0),
		fetch:  func(int) ([]byte, error) { return pngBytes(t, 4, 4), nil },
	}

	studio := NewStudio(
		NewPoetryService(streamer, PoetryConfig{RetryDelay: time.Millisecond}, zaptest.NewLogger(t)),
		NewImageService(jobs, newMemStore(), testImageConfig(), zaptest.NewLogger(t)),
		Limits{TextRetries: 1, ImageTaskRetries: 1, ImagePollRetries: 3},
	)

	card, err := studio.GenerateCard(context.Background(), "下过雨的山里")
	require.NoError(t, err)
	assert.Equal(t, "山居", card.Poem.Title)
	assert.True(t, card.Image.Generated())
}

func TestStudioGenerateCard_FallbackPoemUsesInput(t *testing.T) {
	streamer := &fakeStreamer{script: func(int) (domain.ChunkStream, error) {
		return nil, domain.Errorf(domain.KindAuthentication, "chat completion", "invalid api key")
	}}
	jobs := &fakeJobs{
		status: succeedAt(0),
		fetch:  func(int) ([]byte, error) { return pngBytes(t, 4, 4), nil },
	}

	studio := NewStudio(
		NewPoetryService(streamer, PoetryConfig{RetryDelay: time.Millisecond}, zaptest.NewLogger(t)),
		NewImageService(jobs, newMemStore(), testImageConfig(), zaptest.NewLogger(t)),
		Limits{TextRetries: 3, ImageTaskRetries: 0, ImagePollRetries: 1},
	)

	card, err := studio.GenerateCard(context.Background(), "下过雨的山里")
	require.NoError(t, err)
	assert.True(t, card.Poem.Fallback)
	assert.Contains(t, jobs.lastPrompt(), "mountain")
}

func TestStudio_TextOnly(t *testing.T) {
	streamer := &fakeStreamer{script: func(int) (domain.ChunkStream, error) {
		return &sliceStream{chunks: content("《山居》\n空山新雨后\n【注释】山中雨后。")}, nil
	}}
	studio := NewStudio(
		NewPoetryService(streamer, PoetryConfig{RetryDelay: time.Millisecond}, zaptest.NewLogger(t)),
		nil,
		Limits{TextRetries: 1},
	)

	_, err := studio.GenerateImage(context.Background(), "山")
	assert.ErrorIs(t, err, ErrImagesDisabled)

	card, err := studio.GenerateCard(context.Background(), "下过雨的山里")
	assert.ErrorIs(t, err, ErrImagesDisabled)
	assert.Equal(t, "山居", card.Poem.Title)
	assert.Empty(t, card.Image)
}
