// Package openai is a thin HTTP client for the OpenAI-compatible endpoints the
// tutor uses: chat completions and audio transcriptions.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/englishprofesor/tutor-bot/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds client settings.
type Config struct {
	APIKey  string
	BaseURL string // e.g. https://api.openai.com/v1
	Model   string
	Timeout time.Duration

	TranscriptionModel    string
	TranscriptionLanguage string
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-4.1-mini"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.TranscriptionModel == "" {
		c.TranscriptionModel = "whisper-1"
	}
	return c
}

// HTTPError is a non-2xx answer from the API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai: http %d: %s", e.StatusCode, e.Body)
}

// ErrEmptyCompletion is returned when the API answers without any choice text.
var ErrEmptyCompletion = errors.New("openai: empty completion")

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client talks to the API. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a client. breaker may be nil.
func NewClient(cfg Config, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg.withDefaults(),
		httpClient: &http.Client{Transport: tr},
		breaker:    breaker,
		logger:     logger.With("component", "openai"),
	}
}

// WithHTTPClient swaps the transport, used by tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpClient = h
	return c
}

// Model returns the configured chat model.
func (c *Client) Model() string { return c.cfg.Model }

// ─────────────────────────────────────────────────────────────────────────────
// Chat completions
// ─────────────────────────────────────────────────────────────────────────────

// ChatMessage is one message of a chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatCompletion sends messages and returns the first choice text.
func (c *Client) ChatCompletion(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	req := chatRequest{Model: c.cfg.Model, Messages: messages, Temperature: temperature}

	var resp chatResponse
	err := c.guard(ctx, func(ctx context.Context) error {
		body, err := json.Marshal(req)
		if err != nil {
			return err
		}
		return c.do(ctx, "/chat/completions", "application/json", bytes.NewReader(body), &resp)
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Audio transcriptions
// ─────────────────────────────────────────────────────────────────────────────

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads audio as multipart form data and returns the text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "voice.ogg"
	}

	var resp transcriptionResponse
	err := c.guard(ctx, func(ctx context.Context) error {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		if _, err := part.Write(audio); err != nil {
			return err
		}
		_ = w.WriteField("model", c.cfg.TranscriptionModel)
		if c.cfg.TranscriptionLanguage != "" {
			_ = w.WriteField("language", c.cfg.TranscriptionLanguage)
		}
		if err := w.Close(); err != nil {
			return err
		}
		return c.do(ctx, "/audio/transcriptions", w.FormDataContentType(), &buf, &resp)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Transport
// ─────────────────────────────────────────────────────────────────────────────

func (c *Client) guard(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "path", path, "error", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		c.logger.Warn("non-2xx response", "path", path, "status", resp.StatusCode)
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	c.logger.Debug("request done", "path", path, "duration", time.Since(start))
	return json.NewDecoder(resp.Body).Decode(out)
}
