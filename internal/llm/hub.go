package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHubBaseURL = "https://api-inference.huggingface.co/models"

// HubAPIError is a structured error payload returned by the inference API,
// signaling an invalid credential or model configuration. Transport failures
// are returned as plain errors instead.
type HubAPIError struct {
	Status  string
	Message string
}

func (e *HubAPIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("hub inference failed: %s", e.Status)
	}
	return fmt.Sprintf("hub inference failed (%s): %s", e.Status, e.Message)
}

// HubClient is a minimal REST client for the Hugging Face Inference API.
// The hosted models have no structured chat protocol; callers send a single
// flattened prompt and receive plain generated text.
type HubClient struct {
	baseURL     string
	repoID      string
	token       string
	temperature float32
	client      *http.Client
}

// HubConfig configures the hosted-inference client.
type HubConfig struct {
	BaseURL     string
	RepoID      string
	Token       string
	Temperature float32
	Timeout     time.Duration
}

// NewHubClient creates a client for a single hosted model repository.
func NewHubClient(cfg HubConfig) *HubClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultHubBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HubClient{
		baseURL:     cfg.BaseURL,
		repoID:      cfg.RepoID,
		token:       cfg.Token,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

// Generate runs one hosted-inference call for the given prompt.
func (c *HubClient) Generate(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"inputs": prompt,
		"parameters": map[string]any{
			"temperature":      c.temperature,
			"return_full_text": false,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, c.repoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			return "", &HubAPIError{Status: resp.Status, Message: apiErr.Error}
		}
		return "", &HubAPIError{Status: resp.Status}
	}

	var out []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("hub inference returned an unexpected payload: %w", err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("hub inference returned no generations")
	}
	return out[0].GeneratedText, nil
}
