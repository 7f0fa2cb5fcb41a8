package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/onsikgu/famiq/internal/circuitbreaker"
	"github.com/onsikgu/famiq/internal/metrics"
	"github.com/onsikgu/famiq/internal/tracing"
)

// reasoningPrefixes identifies model families that reject the temperature
// parameter.
var reasoningPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one chat completion call.
type Request struct {
	Model               string
	Messages            []Message
	MaxCompletionTokens int
	Temperature         float64
	JSONResponse        bool
}

// Config holds chat provider settings.
type Config struct {
	BaseURL      string
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
	// RequestsPerSecond caps outbound call rate. Zero means unlimited.
	RequestsPerSecond float64
	RateBurst         int
}

// Client calls the OpenAI chat completions API.
type Client struct {
	cfg     Config
	http    *circuitbreaker.HTTPWrapper
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a chat client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:     cfg,
		http:    circuitbreaker.NewHTTPWrapper(httpClient, "openai_chat", logger),
		limiter: newLimiter(cfg.RequestsPerSecond, cfg.RateBurst),
		logger:  logger,
	}
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// DefaultModel returns the configured chat model identifier.
func (c *Client) DefaultModel() string { return c.cfg.DefaultModel }

// IsReasoningModel reports whether the model rejects temperature.
func IsReasoningModel(model string) bool {
	for _, p := range reasoningPrefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model               string              `json:"model"`
	Messages            []Message           `json:"messages"`
	MaxCompletionTokens int                 `json:"max_completion_tokens,omitempty"`
	Temperature         *float64            `json:"temperature,omitempty"`
	ResponseFormat      *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a chat request and returns the assistant message content.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}

	body := chatRequest{
		Model:               model,
		Messages:            req.Messages,
		MaxCompletionTokens: req.MaxCompletionTokens,
	}
	if !IsReasoningModel(model) {
		t := req.Temperature
		body.Temperature = &t
	}
	if req.JSONResponse {
		body.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("chat rate limit: %w", err)
	}

	start := time.Now()
	url := fmt.Sprintf("%s/v1/chat/completions", c.cfg.BaseURL)

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	buf, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	tracing.InjectTraceparent(ctx, httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.RecordLLMMetrics(model, "error", time.Since(start).Seconds())
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordLLMMetrics(model, "error", time.Since(start).Seconds())
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("chat api status %d: %s", resp.StatusCode, string(detail))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		metrics.RecordLLMMetrics(model, "error", time.Since(start).Seconds())
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		metrics.RecordLLMMetrics(model, "empty", time.Since(start).Seconds())
		return "", fmt.Errorf("no choices returned")
	}

	metrics.RecordLLMMetrics(model, "ok", time.Since(start).Seconds())
	return cr.Choices[0].Message.Content, nil
}
