// Package gemini adapts Google Gemini to llm.Client.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"script-backend/internal/llm"
)

const defaultModel = "gemini-2.0-flash"

// generator is the slice of *genai.Models the client uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Client against the Gemini API.
type Client struct {
	models      generator
	model       string
	temperature float32
	maxTokens   int32
}

// NewClient connects to the Gemini developer API with apiKey.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newClient(gc.Models, model), nil
}

func newClient(models generator, model string) *Client {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &Client{models: models, model: model, temperature: 0.1, maxTokens: 8192}
}

// Generate performs exactly one GenerateContent call.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Generation, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](c.temperature),
		MaxOutputTokens: c.maxTokens,
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(req.User), cfg)
	if err != nil {
		return llm.Generation{}, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil {
		return llm.Generation{}, fmt.Errorf("gemini generate: empty response")
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
		// Only the first candidate is used.
		break
	}
	gen := llm.Generation{Text: strings.TrimSpace(b.String()), Model: c.model}
	if resp.ModelVersion != "" {
		gen.Model = resp.ModelVersion
	}
	if req.JSON && json.Valid([]byte(gen.Text)) {
		gen.Structured = json.RawMessage(gen.Text)
	}
	if resp.UsageMetadata != nil {
		gen.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		gen.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return gen, nil
}

var _ llm.Client = (*Client)(nil)
