package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rollcall.local/rollcall/internal/model"
	"rollcall.local/rollcall/internal/tracker"
)

type scriptedProvider struct {
	content string
	err     error
	seen    model.CompletionRequest
}

func (p *scriptedProvider) Complete(_ context.Context, req model.CompletionRequest) (model.CompletionResponse, error) {
	p.seen = req
	if p.err != nil {
		return model.CompletionResponse{}, p.err
	}
	return model.CompletionResponse{Content: p.content}, nil
}

func newTestClassifier(provider model.Provider) *LLMClassifier {
	registry := model.NewRegistry()
	registry.Register("anthropic", provider)
	return NewLLMClassifier(registry, "anthropic", "claude-sonnet-4", nil)
}

func TestClassifyParsesExtraction(t *testing.T) {
	provider := &scriptedProvider{content: "```json\n" + `{
		"updates": [{"item_id": "PROJ-2", "target_status": "in_review", "note": "PR open", "timeline": "tomorrow"}],
		"blockers": ["waiting on Priya for API keys"],
		"is_off_topic": false,
		"needs_clarification": false,
		"summary": "Login fix is in review."
	}` + "\n```"}

	classifier := newTestClassifier(provider)
	items := []tracker.Item{{ID: "PROJ-2", Title: "fix login", Status: tracker.StatusInProgress, Priority: 1}}

	extraction, err := classifier.Classify(context.Background(), "login fix is in review, PR open", items)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}

	if len(extraction.Updates) != 1 || extraction.Updates[0].ItemID != "PROJ-2" {
		t.Fatalf("unexpected updates: %+v", extraction.Updates)
	}
	if extraction.Updates[0].Timeline != "tomorrow" {
		t.Fatalf("unexpected timeline: %q", extraction.Updates[0].Timeline)
	}
	if len(extraction.Blockers) != 1 || !strings.Contains(extraction.Blockers[0], "Priya") {
		t.Fatalf("unexpected blockers: %+v", extraction.Blockers)
	}
	if extraction.Summary != "Login fix is in review." {
		t.Fatalf("unexpected summary: %q", extraction.Summary)
	}

	if !strings.Contains(provider.seen.Messages[0].Content, "PROJ-2: fix login") {
		t.Fatalf("open items missing from prompt: %q", provider.seen.Messages[0].Content)
	}
}

func TestClassifyDropsUnknownItems(t *testing.T) {
	provider := &scriptedProvider{content: `{
		"updates": [
			{"item_id": "PROJ-2", "note": "done"},
			{"item_id": "HALLUC-1", "note": "made up"}
		],
		"summary": "ok"
	}`}

	classifier := newTestClassifier(provider)
	items := []tracker.Item{{ID: "PROJ-2"}}

	extraction, err := classifier.Classify(context.Background(), "finished it", items)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(extraction.Updates) != 1 || extraction.Updates[0].ItemID != "PROJ-2" {
		t.Fatalf("expected hallucinated item dropped, got %+v", extraction.Updates)
	}
}

func TestClassifyProviderError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("upstream down")}
	classifier := newTestClassifier(provider)

	if _, err := classifier.Classify(context.Background(), "hi", nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestClassifyMalformedOutput(t *testing.T) {
	provider := &scriptedProvider{content: "sorry, I cannot help with that"}
	classifier := newTestClassifier(provider)

	if _, err := classifier.Classify(context.Background(), "hi", nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestClassifyFallsBackToDefaultProvider(t *testing.T) {
	provider := &scriptedProvider{content: `{"summary": "ok"}`}
	registry := model.NewRegistry()
	registry.Register("anthropic", provider)

	classifier := NewLLMClassifier(registry, "openai", "gpt-4o-mini", nil, WithTimeout(time.Second))
	if _, err := classifier.Classify(context.Background(), "hi", nil); err != nil {
		t.Fatalf("expected fallback to anthropic, got %v", err)
	}
}

func TestClassifyNoProviderRegistered(t *testing.T) {
	classifier := NewLLMClassifier(model.NewRegistry(), "anthropic", "m", nil)
	if _, err := classifier.Classify(context.Background(), "hi", nil); err == nil {
		t.Fatalf("expected unregistered provider error")
	}
}
