package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
)

// Client talks to the inference service that backs the analysis pipeline:
// pose extraction, movement analysis, coaching feedback, and speech
// synthesis.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	config     *ClientConfig
}

type ClientConfig struct {
	Timeout             time.Duration
	MaxRetries          int
	RetryDelay          time.Duration
	HealthCheckInterval time.Duration
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:             30 * time.Second,
		MaxRetries:          3,
		RetryDelay:          1 * time.Second,
		HealthCheckInterval: 30 * time.Second,
	}
}

type PoseDetectRequest struct {
	VideoID string `json:"video_id"`
}

type PoseDetectResponse struct {
	Frames []models.PoseFrame `json:"frames"`
}

type AnalyzeRequest struct {
	VideoID string             `json:"video_id"`
	Frames  []models.PoseFrame `json:"frames,omitempty"`
}

type AnalyzeResponse struct {
	Confidence   float64 `json:"confidence"`
	Summary      string  `json:"summary"`
	QualityScore int     `json:"quality_score"`
	ModelVersion string  `json:"model_version"`
}

type FeedbackRequest struct {
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

type FeedbackResponse struct {
	Feedback string `json:"feedback"`
}

type SynthesizeRequest struct {
	Text string `json:"text"`
}

type SynthesizeResponse struct {
	AudioURL string  `json:"audio_url"`
	Duration float64 `json:"duration_seconds"`
}

func NewClient(baseURL string, cfg *ClientConfig, logger *zap.Logger) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}

	client := &Client{
		baseURL: baseURL,
		logger:  logger,
		config:  cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: true,
			},
		},
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		logger.Warn("inference service not available at startup", zap.Error(err))
	}

	go client.startHealthChecker()

	return client
}

func (c *Client) DetectPoses(ctx context.Context, videoID string) (*PoseDetectResponse, error) {
	var resp PoseDetectResponse
	err := c.postWithRetry(ctx, "/v1/pose-detect", &PoseDetectRequest{VideoID: videoID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Analyze(ctx context.Context, videoID string, frames []models.PoseFrame) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	err := c.postWithRetry(ctx, "/v1/analyze", &AnalyzeRequest{VideoID: videoID, Frames: frames}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GenerateFeedback(ctx context.Context, summary string, confidence float64) (*FeedbackResponse, error) {
	var resp FeedbackResponse
	err := c.postWithRetry(ctx, "/v1/feedback", &FeedbackRequest{Summary: summary, Confidence: confidence}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Synthesize(ctx context.Context, text string) (*SynthesizeResponse, error) {
	var resp SynthesizeResponse
	err := c.postWithRetry(ctx, "/v1/tts", &SynthesizeRequest{Text: text}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) postWithRetry(ctx context.Context, path string, request, response any) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying inference request",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.post(ctx, path, request, response); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	return fmt.Errorf("inference request %s failed after %d attempts: %w",
		path, c.config.MaxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, path string, request, response any) error {
	requestData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + path
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("User-Agent", "formcoach/1.0")

	resp, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("inference service error (status %d): %s",
			resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	url := c.baseURL + "/health"

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy (status %d)", resp.StatusCode)
	}

	return nil
}

func (c *Client) startHealthChecker() {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for range ticker.C {
		if err := c.HealthCheck(context.Background()); err != nil {
			c.logger.Error("inference service health check failed", zap.Error(err))
		} else {
			c.logger.Debug("inference service health check passed")
		}
	}
}
