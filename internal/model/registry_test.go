package model

import (
	"context"
	"testing"
)

type stubProvider struct{}

func (s *stubProvider) Complete(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
	return CompletionResponse{Content: "ok"}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	provider := &stubProvider{}

	registry.Register(" OpenAI ", provider)

	got, ok := registry.Get("openai")
	if !ok {
		t.Fatalf("expected provider to be found")
	}
	if got != provider {
		t.Fatalf("expected exact provider instance")
	}
}

func TestRegistryGetMissing(t *testing.T) {
	registry := NewRegistry()
	if _, ok := registry.Get("missing"); ok {
		t.Fatalf("expected missing provider")
	}
}

func TestRegistryRegisterIgnoresInvalidInput(t *testing.T) {
	registry := NewRegistry()
	registry.Register("", &stubProvider{})
	registry.Register("openai", nil)

	if _, ok := registry.Get("openai"); ok {
		t.Fatalf("expected no provider to be registered")
	}
}
