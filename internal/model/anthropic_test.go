package model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicCompleteSuccess(t *testing.T) {
	var seen anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Fatalf("expected x-api-key header, got %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Fatalf("expected anthropic-version=%s, got %s", anthropicVersion, got)
		}
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			t.Fatalf("decode request body: %v", err)
		}

		w.Header().Set("content-type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_test",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4",
			"content": [{"type": "text", "text": "hello there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 11, "output_tokens": 7}
		}`)
	}))
	defer server.Close()

	provider := NewAnthropicProvider("test-key", WithAnthropicEndpoint(server.URL))
	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Model:        "claude-sonnet-4",
		MaxTokens:    256,
		SystemPrompt: "be terse",
		Messages: []Message{
			{Role: RoleSystem, Content: "extra system"},
			{Role: RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if resp.Content != "hello there" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if resp.Model != "claude-sonnet-4" {
		t.Fatalf("unexpected model: %q", resp.Model)
	}
	if resp.StopReason != "end_turn" {
		t.Fatalf("unexpected stop reason: %q", resp.StopReason)
	}
	if resp.Usage.InputTokens != 11 || resp.Usage.OutputTokens != 7 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}

	if seen.System != "be terse\n\nextra system" {
		t.Fatalf("unexpected system prompt: %q", seen.System)
	}
	if len(seen.Messages) != 1 || seen.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages: %+v", seen.Messages)
	}
}

func TestAnthropicCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"type": "invalid_request_error", "message": "bad model"}}`)
	}))
	defer server.Close()

	provider := NewAnthropicProvider("test-key", WithAnthropicEndpoint(server.URL))
	_, err := provider.Complete(context.Background(), CompletionRequest{
		Model:     "nope",
		MaxTokens: 16,
		Messages:  []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "bad model") {
		t.Fatalf("expected api message in error, got %v", err)
	}
}

func TestAnthropicCompleteValidation(t *testing.T) {
	provider := NewAnthropicProvider("")
	if _, err := provider.Complete(context.Background(), CompletionRequest{Model: "m", MaxTokens: 1}); err == nil {
		t.Fatalf("expected missing api key error")
	}

	provider = NewAnthropicProvider("key")
	if _, err := provider.Complete(context.Background(), CompletionRequest{MaxTokens: 1}); err == nil {
		t.Fatalf("expected missing model error")
	}
	if _, err := provider.Complete(context.Background(), CompletionRequest{Model: "m"}); err == nil {
		t.Fatalf("expected max tokens error")
	}
	if _, err := provider.Complete(context.Background(), CompletionRequest{
		Model:     "m",
		MaxTokens: 1,
		Messages:  []Message{{Role: RoleSystem, Content: "only system"}},
	}); err == nil {
		t.Fatalf("expected no non-system message error")
	}
}

func TestAnthropicCompleteRejectsUnknownRole(t *testing.T) {
	provider := NewAnthropicProvider("key")
	_, err := provider.Complete(context.Background(), CompletionRequest{
		Model:     "m",
		MaxTokens: 1,
		Messages:  []Message{{Role: "tool", Content: "x"}},
	})
	if err == nil || !strings.Contains(err.Error(), "unsupported message role") {
		t.Fatalf("expected unsupported role error, got %v", err)
	}
}
