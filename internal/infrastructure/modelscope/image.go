package modelscope

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/zey041022/poem-web-app/internal/domain"
)

type imageRequest struct {
	Model         string  `json:"model"`
	Prompt        string  `json:"prompt"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`
	Steps         int     `json:"steps,omitempty"`
	GuidanceScale float64 `json:"guidance_scale,omitempty"`
}

// SubmitImageJob starts an asynchronous image generation task
func (c *Client) SubmitImageJob(ctx context.Context, req domain.ImageGenerationRequest) (*domain.ImageJob, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "v1/images/generations", imageRequest{
		Model:         req.Model,
		Prompt:        req.Prompt,
		Width:         req.Width,
		Height:        req.Height,
		Steps:         req.Steps,
		GuidanceScale: req.GuidanceScale,
	})
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-ModelScope-Async-Mode", "true")

	resp, err := c.do(httpReq, "submit image job")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		TaskID string `json:"task_id"`
	}
	if err := decodeJSON(resp.Body, &result, "submit image job"); err != nil {
		return nil, err
	}
	if result.TaskID == "" {
		return nil, domain.Errorf(domain.KindProtocol, "submit image job", "no task_id in response")
	}

	c.logger.Debug("image job submitted", zap.String("task_id", result.TaskID))
	return &domain.ImageJob{ID: result.TaskID, Status: domain.JobPending}, nil
}

// GetImageJob checks the status of an image generation task
func (c *Client) GetImageJob(ctx context.Context, jobID string) (*domain.ImageJob, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, "v1/tasks/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-ModelScope-Task-Type", "image_generation")

	resp, err := c.do(httpReq, "get image job")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		TaskStatus   string   `json:"task_status"`
		OutputImages []string `json:"output_images"`
		ErrorMsg     string   `json:"error_msg"`
	}
	if err := decodeJSON(resp.Body, &result, "get image job"); err != nil {
		return nil, err
	}

	job := &domain.ImageJob{ID: jobID, Status: mapStatus(result.TaskStatus), ErrorMessage: result.ErrorMsg}
	if job.Status == domain.JobSucceeded && len(result.OutputImages) > 0 {
		job.ResultURL = result.OutputImages[0]
	}
	return job, nil
}

func mapStatus(s string) domain.JobStatus {
	switch strings.ToUpper(s) {
	case "SUCCEED", "SUCCEEDED":
		return domain.JobSucceeded
	case "FAILED":
		return domain.JobFailed
	case "CANCELLED", "CANCELED":
		return domain.JobCancelled
	default:
		return domain.JobPending
	}
}

// Fetch downloads a result image. Result URLs are pre-signed, so no
// credentials are sent.
func (c *Client) Fetch(ctx context.Context, resultURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, domain.NewError(domain.KindProtocol, "fetch image", err)
	}
	resp, err := c.do(httpReq, "fetch image")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, "fetch image", fmt.Errorf("failed to read body: %w", err))
	}
	if len(b) > maxDownloadSize {
		return nil, domain.Errorf(domain.KindProtocol, "fetch image", "image exceeds %d bytes", maxDownloadSize)
	}
	return b, nil
}

var (
	_ domain.ImageJobService = (*Client)(nil)
	_ domain.TextStreamer    = (*Client)(nil)
)
