package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"policy-report/internal/logger"
)

// Client is the text-generation collaborator: one system contract plus
// one user turn in, text out. Transport and auth failures surface as
// errors; there is no retry wrapper here.
type Client interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
)

type httpClient struct {
	provider string
	apiKey   string
	baseURL  string
	client   *http.Client
	logger   *logger.Logger
}

// NewClient builds a chat-completions client for the given provider.
func NewClient(provider, apiKey string, logger *logger.Logger) Client {
	return &httpClient{
		provider: provider,
		apiKey:   apiKey,
		baseURL:  baseURL(provider),
		client:   &http.Client{},
		logger:   logger,
	}
}

// NewClientWithBaseURL overrides the provider endpoint. Used by tests.
func NewClientWithBaseURL(provider, apiKey, base string, logger *logger.Logger) Client {
	c := NewClient(provider, apiKey, logger).(*httpClient)
	c.baseURL = base
	return c
}

func baseURL(provider string) string {
	switch provider {
	case ProviderDeepSeek:
		return "https://api.deepseek.com"
	default:
		return "https://api.openai.com/v1"
	}
}

type chatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (c *httpClient) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	request := chatCompletionRequest{
		Model: model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	c.logger.Infof("calling %s completion (model=%s, size=%d chars)", c.provider, model, len(userPrompt))

	resp, err := c.makeRequest(ctx, request)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from %s", c.provider)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *httpClient) makeRequest(ctx context.Context, request chatCompletionRequest) (*chatCompletionResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &chatResp, nil
}
