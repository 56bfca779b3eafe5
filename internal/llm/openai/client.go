// Package openai adapts the Chat Completions API to llm.Client.
package openai

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

	"script-backend/internal/llm"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultTimeout   = 120 * time.Second
	maxResponseBytes = 8 << 20
	// maxOutputTokens leaves room for a full scene-by-scene breakdown.
	maxOutputTokens = 16384
)

// ErrTruncated is returned when the model stopped at the token limit, which
// leaves a breakdown document cut off mid-way.
var ErrTruncated = errors.New("openai response truncated at token limit")

type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client. An empty baseURL uses the public endpoint.
func NewClient(apiKey, model, baseURL string, timeout time.Duration) (*Client, error) {
	switch {
	case strings.TrimSpace(model) == "":
		return nil, errors.New("LLM_MODEL is required for OpenAI")
	case strings.TrimSpace(apiKey) == "":
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		model:      strings.TrimSpace(model),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string          `json:"model"`
	Messages            []chatMessage   `json:"messages"`
	Temperature         *float32        `json:"temperature,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

// Generate sends exactly one chat completion request.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Generation, error) {
	payload, err := json.Marshal(c.chatRequest(req))
	if err != nil {
		return llm.Generation{}, fmt.Errorf("encode openai request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return llm.Generation{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return llm.Generation{}, fmt.Errorf("openai request timeout: %w", err)
		}
		return llm.Generation{}, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	parsed, err := decodeResponse(resp)
	if err != nil {
		return llm.Generation{}, err
	}
	return c.generation(parsed, req.JSON)
}

func (c *Client) chatRequest(req llm.Request) chatRequest {
	body := chatRequest{Model: c.model, MaxCompletionTokens: maxOutputTokens}
	if strings.TrimSpace(req.System) != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.User})
	if !isGPT5(c.model) {
		temp := float32(0)
		body.Temperature = &temp
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return body
}

func decodeResponse(resp *http.Response) (chatResponse, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return chatResponse{}, fmt.Errorf("read openai response: %w", err)
	}
	var parsed chatResponse
	decodeErr := json.Unmarshal(raw, &parsed)
	if resp.StatusCode >= http.StatusBadRequest || parsed.Error != nil {
		perr := &llm.ProviderError{Provider: "openai", StatusCode: resp.StatusCode}
		if parsed.Error != nil {
			perr.Message, perr.Type = parsed.Error.Message, parsed.Error.Type
		}
		return chatResponse{}, perr
	}
	if decodeErr != nil {
		return chatResponse{}, fmt.Errorf("decode openai response: %w", decodeErr)
	}
	return parsed, nil
}

func (c *Client) generation(parsed chatResponse, wantJSON bool) (llm.Generation, error) {
	if len(parsed.Choices) == 0 {
		return llm.Generation{}, llm.ErrEmptyResponse
	}
	choice := parsed.Choices[0]
	if choice.FinishReason == "length" {
		return llm.Generation{}, ErrTruncated
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return llm.Generation{}, llm.ErrEmptyResponse
	}

	gen := llm.Generation{Text: content, Model: parsed.Model}
	if gen.Model == "" {
		gen.Model = c.model
	}
	if wantJSON && json.Valid([]byte(content)) {
		gen.Structured = json.RawMessage(content)
	}
	if parsed.Usage != nil {
		gen.InputTokens = parsed.Usage.PromptTokens
		gen.OutputTokens = parsed.Usage.CompletionTokens
	}
	return gen, nil
}

// isGPT5 reports models that reject a temperature override.
func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ llm.Client = (*Client)(nil)
