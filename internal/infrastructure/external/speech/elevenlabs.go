package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ElevenLabsConfig holds ElevenLabs TTS settings.
type ElevenLabsConfig struct {
	APIKey          string
	VoiceID         string
	Model           string
	BaseURL         string
	Stability       float64
	SimilarityBoost float64
	Timeout         time.Duration
}

func (c ElevenLabsConfig) withDefaults() ElevenLabsConfig {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		c.BaseURL = "https://api.elevenlabs.io/v1"
	}
	if c.VoiceID == "" {
		c.VoiceID = "kC1WIuSSgwH2T8iOV4iJ"
	}
	if c.Model == "" {
		c.Model = "eleven_multilingual_v2"
	}
	if c.Stability == 0 {
		c.Stability = 0.5
	}
	if c.SimilarityBoost == 0 {
		c.SimilarityBoost = 0.75
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// ElevenLabs synthesizes MP3 audio through the ElevenLabs REST API.
type ElevenLabs struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewElevenLabs creates the provider.
func NewElevenLabs(cfg ElevenLabsConfig, logger *slog.Logger) *ElevenLabs {
	if logger == nil {
		logger = slog.Default()
	}
	return &ElevenLabs{
		cfg:        cfg.withDefaults(),
		httpClient: &http.Client{},
		logger:     logger.With("component", "elevenlabs"),
	}
}

// WithHTTPClient swaps the transport, used by tests.
func (e *ElevenLabs) WithHTTPClient(h *http.Client) *ElevenLabs {
	e.httpClient = h
	return e
}

// Name identifies the provider in logs and breaker names.
func (e *ElevenLabs) Name() string { return "elevenlabs" }

type elevenLabsRequest struct {
	Text          string `json:"text"`
	ModelID       string `json:"model_id"`
	VoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	} `json:"voice_settings"`
}

// Synthesize returns MP3 bytes for text.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var body elevenLabsRequest
	body.Text = text
	body.ModelID = e.cfg.Model
	body.VoiceSettings.Stability = e.cfg.Stability
	body.VoiceSettings.SimilarityBoost = e.cfg.SimilarityBoost

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", e.cfg.BaseURL, e.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.cfg.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("elevenlabs: http %d: %s", resp.StatusCode, raw)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	e.logger.Debug("audio generated", "bytes", len(audio), "chars", len(text))
	return audio, nil
}
