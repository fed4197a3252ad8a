package advice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Dan9191/microsave/internal/config"
	"github.com/sirupsen/logrus"
)

const maxTokens = 100

type generateRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type generateResponse struct {
	Generations []struct {
		Text string `json:"text"`
	} `json:"generations"`
}

// Client calls a text generation endpoint over HTTP
type Client struct {
	url    string
	apiKey string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new advice service client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url:    cfg.AdviceURL,
		apiKey: cfg.AdviceAPIKey,
		client: &http.Client{
			Timeout: cfg.AdviceTimeout,
		},
		log: log,
	}
}

func buildPrompt(descriptions []string) string {
	return "Based on these recent purchases, give brief, actionable advice on how to save more: " +
		strings.Join(descriptions, ", ")
}

// Advise sends the purchase descriptions and returns the first generation
func (c *Client) Advise(ctx context.Context, descriptions []string) (string, error) {
	payload, err := json.Marshal(generateRequest{Prompt: buildPrompt(descriptions), MaxTokens: maxTokens})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Generations) == 0 || strings.TrimSpace(out.Generations[0].Text) == "" {
		return "", fmt.Errorf("response carried no generated text")
	}

	c.log.WithField("purchases", len(descriptions)).Debug("Advice generated")
	return strings.TrimSpace(out.Generations[0].Text), nil
}
