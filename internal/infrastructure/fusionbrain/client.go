package fusionbrain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zey041022/poem-web-app/internal/domain"
)

const (
	// DefaultBaseURL is the Fusion Brain key API endpoint.
	DefaultBaseURL = "https://api-key.fusionbrain.ai"
)

// Client represents the Fusion Brain API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	secretKey  string
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a new Fusion Brain API client
func NewClient(apiKey, secretKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
		secretKey: secretKey,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) send(httpReq *http.Request, op string) (*http.Response, error) {
	httpReq.Header.Set("X-Key", "Key "+c.apiKey)
	httpReq.Header.Set("X-Secret", "Secret "+c.secretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, op, fmt.Errorf("failed to send request: %w", err))
	}
	// The run endpoint answers 201 Created.
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, domain.Errorf(domain.KindForStatus(resp.StatusCode), op,
			"unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

// SubmitImageJob starts a Kandinsky generation and returns its job
func (c *Client) SubmitImageJob(ctx context.Context, req domain.ImageGenerationRequest) (*domain.ImageJob, error) {
	pipelineID, err := c.getPipelineID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline ID: %w", err)
	}

	numImages := req.NumImages
	if numImages == 0 {
		numImages = 1
	}
	params := map[string]interface{}{
		"type":      "GENERATE",
		"width":     req.Width,
		"height":    req.Height,
		"numImages": numImages,
		"generateParams": map[string]string{
			"query": req.Prompt,
		},
	}
	if req.Style != "" {
		params["style"] = req.Style
	}
	if req.NegativePrompt != "" {
		params["negativePromptDecoder"] = req.NegativePrompt
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("pipeline_id", pipelineID); err != nil {
		return nil, domain.NewError(domain.KindProtocol, "submit image job", fmt.Errorf("failed to write pipeline_id: %w", err))
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, domain.NewError(domain.KindProtocol, "submit image job", fmt.Errorf("failed to marshal params: %w", err))
	}
	// params must be sent as a JSON part.
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="params"`)
	h.Set("Content-Type", "application/json")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, domain.NewError(domain.KindProtocol, "submit image job", fmt.Errorf("failed to write params: %w", err))
	}
	if _, err := part.Write(paramsJSON); err != nil {
		return nil, domain.NewError(domain.KindProtocol, "submit image job", fmt.Errorf("failed to write params: %w", err))
	}
	if err := writer.Close(); err != nil {
		return nil, domain.NewError(domain.KindProtocol, "submit image job", fmt.Errorf("failed to close writer: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/key/api/v1/pipeline/run", body)
	if err != nil {
		return nil, domain.NewError(domain.KindProtocol, "submit image job", fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.send(httpReq, "submit image job")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		UUID   string `json:"uuid"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, domain.NewError(domain.KindProtocol, "submit image job", fmt.Errorf("failed to decode response: %w", err))
	}
	if result.UUID == "" {
		return nil, domain.Errorf(domain.KindProtocol, "submit image job", "no uuid in response")
	}

	c.logger.Debug("kandinsky job submitted", zap.String("uuid", result.UUID), zap.String("status", result.Status))
	return &domain.ImageJob{ID: result.UUID, Status: domain.JobPending}, nil
}

// GetImageJob checks the status of an image generation request. On success
// the result reference is the first base64-encoded file.
func (c *Client) GetImageJob(ctx context.Context, uuid string) (*domain.ImageJob, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/key/api/v1/pipeline/status/"+url.PathEscape(uuid), nil)
	if err != nil {
		return nil, domain.NewError(domain.KindProtocol, "get image job", fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.send(httpReq, "get image job")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		UUID             string `json:"uuid"`
		Status           string `json:"status"`
		ErrorDescription string `json:"errorDescription"`
		Result           struct {
			Files    []string `json:"files"`
			Censored bool     `json:"censored"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, domain.NewError(domain.KindProtocol, "get image job", fmt.Errorf("failed to decode response: %w", err))
	}

	job := &domain.ImageJob{ID: uuid, ErrorMessage: result.ErrorDescription}
	switch result.Status {
	case "DONE":
		if result.Result.Censored {
			job.Status = domain.JobFailed
			job.ErrorMessage = "result censored"
			break
		}
		job.Status = domain.JobSucceeded
		if len(result.Result.Files) > 0 {
			job.ResultURL = result.Result.Files[0]
		}
	case "FAIL", "FAILED":
		job.Status = domain.JobFailed
	default:
		// INITIAL, PROCESSING
		job.Status = domain.JobPending
	}
	return job, nil
}

// Fetch decodes the base64 payload returned as a result reference.
func (c *Client) Fetch(_ context.Context, ref string) ([]byte, error) {
	if i := strings.Index(ref, ";base64,"); i >= 0 {
		ref = ref[i+len(";base64,"):]
	}
	b, err := base64.StdEncoding.DecodeString(ref)
	if err != nil {
		return nil, domain.NewError(domain.KindProtocol, "fetch image", fmt.Errorf("failed to decode base64 file: %w", err))
	}
	return b, nil
}

// getPipelineID retrieves the pipeline ID for the Kandinsky model
func (c *Client) getPipelineID(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/key/api/v1/pipelines", nil)
	if err != nil {
		return "", domain.NewError(domain.KindProtocol, "list pipelines", fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.send(httpReq, "list pipelines")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var pipelines []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pipelines); err != nil {
		return "", domain.NewError(domain.KindProtocol, "list pipelines", fmt.Errorf("failed to decode response: %w", err))
	}
	if len(pipelines) == 0 {
		return "", domain.Errorf(domain.KindProtocol, "list pipelines", "no pipelines found")
	}

	return pipelines[0].ID, nil
}

var _ domain.ImageJobService = (*Client)(nil)
