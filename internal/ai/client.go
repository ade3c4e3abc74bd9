// Package ai talks to an OpenAI-compatible chat completions endpoint and
// exposes it through the typed request contracts of its consumers.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/autoconsolidate"
	"github.com/starford/laguz/internal/cluster"
)

const defaultSystemPrompt = "You are a documentation librarian. Answer with a single JSON object and nothing else."

// Config configures the client.
type Config struct {
	Endpoint     string
	Model        string
	APIKey       string
	SystemPrompt string
	Timeout      time.Duration
}

// Client is a chat completions client.
type Client struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var (
	_ cluster.TopicSuggester        = (*Client)(nil)
	_ autoconsolidate.DocClassifier = (*Client)(nil)
)

// New builds a client. It returns nil when the endpoint or model is missing so
// callers can treat the capability as absent.
func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Model) == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// SuggestTopics answers a clustering request.
func (c *Client) SuggestTopics(ctx context.Context, req cluster.Request) (cluster.Response, error) {
	if req.Kind != cluster.KindClusterDocuments {
		return cluster.Response{}, fmt.Errorf("ai: unsupported request kind %q", req.Kind)
	}
	text, err := c.complete(ctx, req.Prompt)
	if err != nil {
		return cluster.Response{}, err
	}
	return cluster.Response{Kind: req.Kind, Text: text}, nil
}

// ClassifyDocument answers a documentation classification request.
func (c *Client) ClassifyDocument(ctx context.Context, req autoconsolidate.ClassifyRequest) (autoconsolidate.ClassifyResponse, error) {
	if req.Kind != autoconsolidate.KindClassifyDocumentation {
		return autoconsolidate.ClassifyResponse{}, fmt.Errorf("ai: unsupported request kind %q", req.Kind)
	}
	text, err := c.complete(ctx, req.Prompt)
	if err != nil {
		return autoconsolidate.ClassifyResponse{}, err
	}
	return autoconsolidate.ClassifyResponse{Kind: req.Kind, Text: text}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", apperr.ErrAIUnavailable
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ai: new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: send: %w", errors.Join(apperr.ErrAIUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ai: %s: %s: %w", resp.Status, strings.TrimSpace(string(payload)), apperr.ErrAIUnavailable)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("ai: response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return defaultSystemPrompt
	}
	return prompt
}
