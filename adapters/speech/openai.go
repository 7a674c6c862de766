// Package speech provides the paid text-to-speech upstream client.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/artpar/costgate/domain/money"
	"github.com/artpar/costgate/domain/speech"
	"github.com/artpar/costgate/ports"
	"github.com/rs/zerolog"
)

// Client calls an OpenAI-compatible speech synthesis endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	voice      string
	pricePer1K money.Amount
	httpClient *http.Client
	logger     zerolog.Logger
}

// Config configures the speech client.
type Config struct {
	URL           string        // Base URL of the provider (required)
	APIKey        string        // Bearer token for the provider
	Model         string        // Default model (default: tts-1)
	Voice         string        // Default voice (default: alloy)
	PricePer1K    money.Amount  // Price per 1000 input characters
	Timeout       time.Duration // Request timeout (default: 60s)
	Logger        zerolog.Logger
}

// New creates a new speech client.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "tts-1"
	}
	if cfg.Voice == "" {
		cfg.Voice = "alloy"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		voice:      cfg.Voice,
		pricePer1K: cfg.PricePer1K,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

// synthesisRequest is the provider wire format.
type synthesisRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// Synthesize sends the input to the provider and returns the audio.
// The returned Result carries the real incurred cost: zero when the provider
// rejected the request, the full character-based price once the provider
// accepted it, even if reading the response body later fails.
func (c *Client) Synthesize(ctx context.Context, req speech.Request) (speech.Result, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	voice := req.Voice
	if voice == "" {
		voice = c.voice
	}

	body, err := json.Marshal(synthesisRequest{
		Model:          model,
		Input:          req.Input,
		Voice:          voice,
		ResponseFormat: req.Format,
	})
	if err != nil {
		return speech.Result{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return speech.Result{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return speech.Result{}, fmt.Errorf("call speech upstream: %w", err)
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(msg)).
			Msg("speech upstream rejected request")
		return speech.Result{LatencyMs: latency},
			fmt.Errorf("speech upstream returned status %d", resp.StatusCode)
	}

	// The provider has accepted and billed the synthesis at this point.
	incurred := c.CostFor(req.Input)

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		// Partial success: the cost was incurred even though the audio was lost.
		return speech.Result{Cost: incurred, LatencyMs: latency},
			fmt.Errorf("read audio: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = speech.ContentTypeFor(req.Format)
	}

	return speech.Result{
		Audio:       audio,
		ContentType: contentType,
		Cost:        incurred,
		LatencyMs:   latency,
	}, nil
}

// CostFor computes the price of synthesizing the given input text.
func (c *Client) CostFor(input string) money.Amount {
	chars := int64(utf8.RuneCountInString(input))
	return money.FromMicros(chars * c.pricePer1K.Micros() / 1000)
}

// Ensure interface compliance.
var _ ports.SpeechProvider = (*Client)(nil)
