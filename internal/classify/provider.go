// ABOUTME: Minimal client for OpenAI-compatible chat completions endpoints.
// ABOUTME: Sends the classification prompt, parses the JSON the model returns.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider calls one OpenAI-compatible chat completions endpoint.
type Provider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewProvider creates a provider client. Pass nil httpClient for a default
// with a 60-second timeout — completions are slow.
func NewProvider(httpClient *http.Client, baseURL, apiKey, model string) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Provider{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}
}

// Model returns the configured model identifier.
func (p *Provider) Model() string { return p.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// modelOutput is the JSON object the prompt instructs the model to emit.
type modelOutput struct {
	HSCode      string  `json:"hs_code"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Rationale   string  `json:"rationale"`
}

const systemPrompt = `You are a customs classification specialist. Given a product, determine its
Harmonized System (HS) code at 6-digit level. Respond with a single JSON object:
{"hs_code": "<6 digits>", "description": "<heading description>",
"confidence": <0.0-1.0>, "rationale": "<one or two sentences>"}.
The hs_code field must contain exactly 6 digits, no punctuation.`

// Classify sends one product description through the chat completions API and
// parses the structured classification from the response.
func (p *Provider) Classify(ctx context.Context, title, description, originCountry string) (*modelOutput, error) {
	user := fmt.Sprintf("Product title: %s\nDescription: %s\nCountry of origin: %s", title, description, originCountry)

	body, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Temperature:    0,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("classify: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("classify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify: request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classify: HTTP %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&cr); err != nil {
		return nil, fmt.Errorf("classify: decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("classify: empty choices")
	}

	out, err := parseModelOutput(cr.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return out, nil
}

// parseModelOutput extracts and validates the classification JSON. Models
// occasionally wrap JSON in a markdown fence even with response_format set;
// strip it before decoding.
func parseModelOutput(content string) (*modelOutput, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	out.HSCode = strings.ReplaceAll(strings.TrimSpace(out.HSCode), ".", "")
	if len(out.HSCode) != 6 || !isDigits(out.HSCode) {
		return nil, fmt.Errorf("model returned invalid hs_code %q", out.HSCode)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return nil, fmt.Errorf("model returned confidence %v out of range [0,1]", out.Confidence)
	}
	return &out, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
