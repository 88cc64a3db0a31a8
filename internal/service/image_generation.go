package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"time"

	// Decoders for the formats the image backends return.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"go.uber.org/zap"

	"github.com/zey041022/poem-web-app/internal/domain"
	"github.com/zey041022/poem-web-app/internal/prompt"
	"github.com/zey041022/poem-web-app/internal/retry"
)

// ErrPollingExhausted is returned when a job is still pending after the last
// status query.
var ErrPollingExhausted = errors.New("polling attempts exhausted")

// ImageConfig holds the image generation settings
type ImageConfig struct {
	Model          string
	Width          int
	Height         int
	Steps          int
	GuidanceScale  float64
	Style          string
	NegativePrompt string

	// PollTimeout bounds a single status query.
	PollTimeout time.Duration
	// PollMinDelay, PollStep and PollMaxDelay shape the wait between queries
	// of a pending job.
	PollMinDelay time.Duration
	PollStep     time.Duration
	PollMaxDelay time.Duration
	// PollTimeoutDelay is the wait after a status query timed out.
	PollTimeoutDelay time.Duration
	DownloadTimeout  time.Duration
	// TaskRetryDelay is the fixed wait before resubmitting a job.
	TaskRetryDelay time.Duration
	JPEGQuality    int
}

// ImageService turns a text into a stored illustration
type ImageService struct {
	jobs   domain.ImageJobService
	store  domain.AssetStore
	cfg    ImageConfig
	logger *zap.Logger
}

// NewImageService creates a new image generation service
func NewImageService(jobs domain.ImageJobService, store domain.AssetStore, cfg ImageConfig, logger *zap.Logger) *ImageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 95
	}
	return &ImageService{jobs: jobs, store: store, cfg: cfg, logger: logger.Named("image")}
}

// Generate illustrates text and returns the stored asset's name. Every failed
// job is resubmitted up to maxTaskRetries times; each job is polled at most
// maxPollingRetries times. When all attempts fail the shared placeholder is
// returned instead, so an error means the placeholder itself could not be
// stored.
func (s *ImageService) Generate(ctx context.Context, text string, maxTaskRetries, maxPollingRetries int) (domain.AssetID, error) {
	start := time.Now()
	p := prompt.Synthesize(text)
	s.logger.Debug("image prompt", zap.String("prompt", p))

	id, st, err := retry.Do(ctx, retry.Policy{
		MaxAttempts: maxTaskRetries + 1,
		Classify:    classify,
		Delay:       retry.Fixed(s.cfg.TaskRetryDelay),
		OnRetry: func(st retry.State) {
			s.logger.Warn("image task failed, resubmitting",
				zap.Int("attempt", st.Attempt),
				zap.Stringer("kind", domain.Classify(st.LastError)),
				zap.Duration("delay", st.NextDelay),
				zap.Error(st.LastError))
		},
	}, func(ctx context.Context, attempt int) (domain.AssetID, error) {
		return s.attempt(ctx, p, maxPollingRetries)
	})
	if err == nil {
		s.logger.Info("image generated",
			zap.String("asset", string(id)),
			zap.Int("attempts", st.Attempt),
			zap.Duration("took", time.Since(start)))
		return id, nil
	}

	s.logger.Error("all image tasks failed, using placeholder",
		zap.Int("attempts", st.Attempt),
		zap.Stringer("kind", domain.Classify(err)),
		zap.Error(err))
	return s.fallback(ctx)
}

func (s *ImageService) attempt(ctx context.Context, p string, maxPolling int) (domain.AssetID, error) {
	job, err := s.jobs.SubmitImageJob(ctx, domain.ImageGenerationRequest{
		Prompt:         p,
		Model:          s.cfg.Model,
		Width:          s.cfg.Width,
		Height:         s.cfg.Height,
		NumImages:      1,
		Steps:          s.cfg.Steps,
		GuidanceScale:  s.cfg.GuidanceScale,
		Style:          s.cfg.Style,
		NegativePrompt: s.cfg.NegativePrompt,
	})
	if err != nil {
		return "", err
	}
	if job == nil || job.ID == "" {
		return "", domain.Errorf(domain.KindProtocol, "submit image job", "response carried no job id")
	}
	s.logger.Info("image job submitted", zap.String("job_id", job.ID))

	done, err := s.waitForJob(ctx, job.ID, maxPolling)
	if err != nil {
		return "", err
	}

	asset, err := s.download(ctx, done.ResultURL)
	if err != nil {
		return "", err
	}

	id := domain.NewAssetID()
	if err := s.store.Save(ctx, id, asset); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return id, nil
}

func (s *ImageService) checkJob(ctx context.Context, jobID string) (*domain.ImageJob, error) {
	if s.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PollTimeout)
		defer cancel()
	}
	job, err := s.jobs.GetImageJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, domain.Errorf(domain.KindProtocol, "get image job", "empty status for job %s", jobID)
	}
	return job, nil
}

// waitForJob polls jobID until it reaches a terminal status. A timed-out query
// counts against the budget and is followed by the timeout delay; any other
// query error ends the task.
func (s *ImageService) waitForJob(ctx context.Context, jobID string, maxPolling int) (*domain.ImageJob, error) {
	delay := retry.Linear(s.cfg.PollMinDelay, s.cfg.PollStep, s.cfg.PollMaxDelay)
	for i := 0; i < maxPolling; i++ {
		last := i+1 >= maxPolling

		job, err := s.checkJob(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !domain.IsTimeout(err) {
				return nil, err
			}
			s.logger.Warn("status query timed out", zap.String("job_id", jobID), zap.Int("poll", i+1))
			if last {
				break
			}
			if err := retry.Sleep(ctx, s.cfg.PollTimeoutDelay); err != nil {
				return nil, err
			}
			continue
		}

		switch job.Status {
		case domain.JobSucceeded:
			if job.ResultURL == "" {
				return nil, domain.Errorf(domain.KindProtocol, "get image job", "job %s succeeded without a result", jobID)
			}
			return job, nil
		case domain.JobFailed:
			msg := job.ErrorMessage
			if msg == "" {
				msg = "image generation failed"
			}
			return nil, domain.Errorf(domain.KindRemoteTask, "get image job", "job %s: %s", jobID, msg)
		case domain.JobCancelled:
			return nil, domain.Errorf(domain.KindRemoteTask, "get image job", "job %s was cancelled", jobID)
		}

		if last {
			break
		}
		d := delay(i)
		s.logger.Debug("image job pending", zap.String("job_id", jobID), zap.Int("poll", i+1), zap.Duration("next", d))
		if err := retry.Sleep(ctx, d); err != nil {
			return nil, err
		}
	}
	return nil, domain.NewError(domain.KindTransport, "get image job", fmt.Errorf("job %s: %w", jobID, ErrPollingExhausted))
}

func (s *ImageService) download(ctx context.Context, ref string) (domain.ImageAsset, error) {
	if s.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DownloadTimeout)
		defer cancel()
	}
	raw, err := s.jobs.Fetch(ctx, ref)
	if err != nil {
		return domain.ImageAsset{}, err
	}
	return Canonicalize(raw, s.cfg.JPEGQuality)
}

// Canonicalize decodes raw image bytes and re-encodes them as JPEG. Transparent
// areas are flattened onto white.
func Canonicalize(raw []byte, quality int) (domain.ImageAsset, error) {
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return domain.ImageAsset{}, domain.NewError(domain.KindProtocol, "decode image", err)
	}
	b := src.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: quality}); err != nil {
		return domain.ImageAsset{}, fmt.Errorf("failed to encode %s image: %w", format, err)
	}
	return domain.ImageAsset{
		Bytes:  buf.Bytes(),
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: domain.CanonicalFormat,
	}, nil
}

// fallback returns the shared placeholder, drawing and storing it on first use.
// It outlives ctx so an abandoned caller still leaves a usable asset behind.
func (s *ImageService) fallback(ctx context.Context) (domain.AssetID, error) {
	ctx = context.WithoutCancel(ctx)
	id := domain.FallbackAssetID

	ok, err := s.store.Exists(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to look up placeholder: %w", err)
	}
	if ok {
		return id, nil
	}

	asset, err := Placeholder(s.cfg.Width, s.cfg.Height)
	if err != nil {
		return "", err
	}
	if err := s.store.Save(ctx, id, asset); err != nil {
		return "", fmt.Errorf("failed to save placeholder: %w", err)
	}
	s.logger.Info("placeholder created", zap.String("asset", string(id)))
	return id, nil
}
