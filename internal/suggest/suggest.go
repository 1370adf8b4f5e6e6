// Package suggest asks a generative text API for a drink recommendation that
// fits the guest's mood.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"brewpulse/config"
	"brewpulse/internal/order"
)

// Fallback is returned whenever no suggestion can be produced.
const Fallback = "The barista recommends a Latte Macchiato for a smooth and comforting cup."

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel    = "gemini-2.0-flash"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("suggestions are not configured")

// Suggester produces a one-sentence recommendation for a mood.
type Suggester interface {
	Suggest(ctx context.Context, mood string) (string, error)
}

// generateRequest and generateResponse model the generateContent REST call.
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	menu     order.Menu
	client   *http.Client
}

// NewClient creates a client from the suggestion config. The menu names the
// coffees the model may recommend.
func NewClient(cfg config.SuggestionConfig, menu order.Menu) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		apiKey:   cfg.APIKey,
		menu:     menu.Orderable(),
		client:   &http.Client{Timeout: timeout},
	}
}

// Suggest returns the model's recommendation for mood.
func (c *Client) Suggest(ctx context.Context, mood string) (string, error) {
	if c.apiKey == "" {
		return "", ErrDisabled
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: c.prompt(mood)}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	target := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var gen generateResponse
	if err := json.Unmarshal(raw, &gen); err != nil {
		return "", fmt.Errorf("failed to unmarshal api response: %w", err)
	}
	for _, cand := range gen.Candidates {
		for _, p := range cand.Content.Parts {
			if text := strings.TrimSpace(p.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", errors.New("api returned no text")
}

func (c *Client) prompt(mood string) string {
	names := make([]string, 0, len(c.menu))
	for _, coffee := range c.menu {
		names = append(names, coffee.Name)
	}
	return fmt.Sprintf(
		"The guest feels like this right now: %s. As a world-class barista, recommend one coffee from our menu (%s) "+
			"and write a single poetic sentence on why it suits the mood. Return only the recommendation and the reason.",
		mood, strings.Join(names, ", "))
}

// OrFallback calls s and returns Fallback on any failure. It never returns an
// empty string.
func OrFallback(ctx context.Context, s Suggester, mood string) string {
	if s == nil || strings.TrimSpace(mood) == "" {
		return Fallback
	}
	text, err := s.Suggest(ctx, mood)
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			log.Printf("suggest: falling back: %v", err)
		}
		return Fallback
	}
	if strings.TrimSpace(text) == "" {
		return Fallback
	}
	return text
}
