package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"script-backend/internal/llm"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isGPT5(tt.model); got != tt.want {
				t.Fatalf("isGPT5(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestGenerateSendsJSONRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`))
	}))
	defer srv.Close()

	c, err := NewClient("key", "gpt-4o-mini", srv.URL, time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	gen, err := c.Generate(context.Background(), llm.Request{System: "sys", User: "hello", JSON: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gen.Text != `{"ok":true}` || gen.InputTokens != 12 || gen.OutputTokens != 3 {
		t.Fatalf("generation = %+v", gen)
	}
	if string(gen.Structured) != `{"ok":true}` {
		t.Fatalf("structured = %s", gen.Structured)
	}
	if got.MaxCompletionTokens != maxOutputTokens || got.Temperature == nil {
		t.Fatalf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("response format = %+v", got.ResponseFormat)
	}
}

func TestGenerateSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	c, _ := NewClient("key", "gpt-4o-mini", srv.URL, time.Second)
	_, err := c.Generate(context.Background(), llm.Request{User: "x"})
	if err == nil || !strings.Contains(err.Error(), "slow down") {
		t.Fatalf("err = %v", err)
	}
	var perr *llm.ProviderError
	if !errors.As(err, &perr) || perr.StatusCode != http.StatusTooManyRequests || !perr.Temporary() {
		t.Fatalf("expected temporary provider error, got %#v", err)
	}
}

func TestGenerateRejectsTruncatedOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"scenes\":["},"finish_reason":"length"}]}`))
	}))
	defer srv.Close()

	c, _ := NewClient("key", "gpt-4o-mini", srv.URL, time.Second)
	if _, err := c.Generate(context.Background(), llm.Request{User: "x", JSON: true}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestGenerateServerErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := NewClient("key", "gpt-4o-mini", srv.URL, time.Second)
	_, err := c.Generate(context.Background(), llm.Request{User: "x"})
	var perr *llm.ProviderError
	if !errors.As(err, &perr) || perr.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "Bad Gateway") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient("", "gpt-4o", "", 0); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewClient("k", " ", "", 0); err == nil {
		t.Fatalf("expected missing model error")
	}
}
