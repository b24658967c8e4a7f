package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"archivist/internal/config"
	"archivist/internal/services"
)

const (
	defaultBaseURL    = "https://api.anthropic.com/v1/messages"
	defaultModel      = "claude-3-haiku-20240307"
	defaultMaxTokens  = 1000
	defaultTimeout    = 60 * time.Second
	defaultAttempts   = 3
	defaultBaseDelay  = time.Second
	defaultMaxDelay   = 10 * time.Second
	apiVersion        = "2023-06-01"
	jsonOnlySuffix    = "\n\nRespond with a single JSON object and nothing else."
	maxErrorBodyBytes = 512
)

// Client issues Messages API requests.
type Client struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int

	httpClient *http.Client
	attempts   int
	baseDelay  time.Duration
	maxDelay   time.Duration
	sleeper    func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry overrides the attempt count and backoff bounds.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.baseDelay = baseDelay
		c.maxDelay = maxDelay
	}
}

// WithSleeper replaces time.Sleep between retries.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient builds a client from a provider config section.
func NewClient(p config.Provider, opts ...Option) *Client {
	timeout := defaultTimeout
	if p.TimeoutSeconds > 0 {
		timeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	c := &Client{
		apiKey:     strings.TrimSpace(p.APIKey),
		baseURL:    strings.TrimSpace(p.BaseURL),
		model:      strings.TrimSpace(p.Model),
		maxTokens:  p.MaxTokens,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   defaultAttempts,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.attempts <= 0 {
		c.attempts = 1
	}
	return c
}

// Model reports the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// CompleteJSON asks for a JSON-only answer. The Messages API has no response
// format switch, so the instruction is appended to the system prompt.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, strings.TrimSpace(systemPrompt)+jsonOnlySuffix, userPrompt)
}

// Complete issues a free-text request.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt)
}

// HealthCheck sends a minimal request to confirm the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.complete(ctx, "Reply with the single word ok.", "ping")
	return err
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("anthropic: http %d: %s", e.code, e.body)
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	const op = "messages"
	if strings.TrimSpace(userPrompt) == "" {
		return "", services.Wrap(services.ErrValidation, "anthropic", op, "user prompt required", nil)
	}
	if !c.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "anthropic", op, "api key required", nil)
	}
	payload := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    strings.TrimSpace(systemPrompt),
		Messages:  []message{{Role: "user", Content: strings.TrimSpace(userPrompt)}},
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		text, err := c.send(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	return "", classify(op, lastErr)
}

func (c *Client) send(ctx context.Context, payload messagesRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("anthropic: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anthropic: new request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet := strings.TrimSpace(string(raw))
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return "", &statusError{
			code:       resp.StatusCode,
			body:       snippet,
			retryAfter: parseRetryAfter(resp.Header.Get("retry-after")),
		}
	}
	var decoded messagesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("anthropic: %s: %s", decoded.Error.Type, decoded.Error.Message)
	}
	var out strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "" || block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("anthropic: empty content (stop_reason=%q)", decoded.StopReason)
	}
	return text, nil
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= c.attempts || ctx.Err() != nil {
		return 0, false
	}
	var status *statusError
	if errors.As(err, &status) {
		if status.code != http.StatusTooManyRequests && status.code != http.StatusRequestTimeout &&
			status.code < http.StatusInternalServerError {
			return 0, false
		}
		if status.retryAfter > 0 {
			return min(status.retryAfter, c.maxDelay), true
		}
	} else if !isTimeout(err) {
		return 0, false
	}
	delay := c.baseDelay
	for i := 1; i < attempt && delay < c.maxDelay; i++ {
		delay *= 2
	}
	return min(delay, c.maxDelay), true
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classify(op string, err error) error {
	var status *statusError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return services.Wrap(services.ErrTimeout, "anthropic", op, "provider timed out", err)
	case errors.As(err, &status):
		return services.Wrap(services.StatusMarker(status.code), "anthropic", op,
			fmt.Sprintf("provider returned http %d", status.code), err)
	default:
		return services.Wrap(services.ErrTransient, "anthropic", op, "provider request failed", err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
