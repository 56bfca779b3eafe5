package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Client abstracts generative model providers. One Generate call is one
// billed model invocation.
type Client interface {
	Generate(ctx context.Context, req Request) (Generation, error)
}

// Request is a single prompt.
type Request struct {
	System string
	User   string
	// JSON asks the provider for a JSON-only response when it supports one.
	JSON bool
}

// Generation is a provider response.
type Generation struct {
	// Structured holds a provider-validated JSON document, when the
	// provider returns one separately from free text.
	Structured json.RawMessage
	Text       string
	Model      string

	InputTokens  int
	OutputTokens int
}

var (
	// ErrNotImplemented is returned by the placeholder client.
	ErrNotImplemented = errors.New("LLM not implemented")
	// ErrEmptyResponse is returned when a generation has no usable payload.
	ErrEmptyResponse = errors.New("model returned no JSON payload")
)

// ProviderError is a non-success answer from a model API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Type != "" {
		msg += " (" + e.Type + ")"
	}
	return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.StatusCode, msg)
}

// Temporary reports throttling and server-side failures, which a later
// submission may get past.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Payload returns the JSON document carried by g. Structured wins over
// Text; text is cleaned of code fences, comments and trailing commas.
func (g Generation) Payload() (json.RawMessage, error) {
	if len(g.Structured) > 0 && json.Valid(g.Structured) {
		return g.Structured, nil
	}
	text := strings.TrimSpace(g.Text)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}
	extracted := ExtractJSON(text)
	if extracted == "" || !json.Valid([]byte(extracted)) {
		return nil, ErrEmptyResponse
	}
	return json.RawMessage(extracted), nil
}

// PlaceholderClient backs LLM_PROVIDER=none. Every call fails, so runs stop
// after extraction with an analysis error.
type PlaceholderClient struct{}

// Generate returns ErrNotImplemented.
func (PlaceholderClient) Generate(ctx context.Context, req Request) (Generation, error) {
	_ = ctx
	_ = req
	return Generation{}, ErrNotImplemented
}
