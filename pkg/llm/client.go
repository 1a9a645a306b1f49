// Package llm provides a client for OpenAI-compatible chat completion APIs.
package llm

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

	"linebot-relay-go/internal/config"
)

// Client defines the interface for an LLM completion backend.
type Client interface {
	// Chat 以 role-based 消息调用聊天接口，返回单条 assistant 回复。
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_completion_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openAIClient struct {
	baseURL string
	apiKey  string
	model   string
	gen     *GenerationParams
	client  *http.Client
}

// NewClient creates a chat completion client from config.
// timeout bounds a single HTTP round trip; zero leaves it to the caller's context.
func NewClient(cfg config.LLMConfig, timeout time.Duration) Client {
	return &openAIClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		gen:     generationFromConfig(cfg.Generation),
		client:  &http.Client{Timeout: timeout},
	}
}

func generationFromConfig(g config.LLMGenerationConfig) *GenerationParams {
	var gp GenerationParams
	if g.Temperature != 0 {
		t := g.Temperature
		gp.Temperature = &t
	}
	if g.TopP != 0 {
		p := g.TopP
		gp.TopP = &p
	}
	if g.MaxTokens != 0 {
		m := g.MaxTokens
		gp.MaxTokens = &m
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}

// Chat calls POST {base}/chat/completions without streaming.
func (c *openAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	}
	if c.gen != nil {
		reqBody.Temperature = c.gen.Temperature
		reqBody.TopP = c.gen.TopP
		reqBody.MaxTokens = c.gen.MaxTokens
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return "", fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, strings.TrimSpace(string(bodyBytes)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("chat api returned no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
