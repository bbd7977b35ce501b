package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"rollcall.local/rollcall/internal/model"
	"rollcall.local/rollcall/internal/tracker"
)

const (
	defaultProviderName    = "anthropic"
	defaultModelName       = "claude-sonnet-4-20250514"
	defaultMaxTokens       = 1024
	defaultClassifyTimeout = 20 * time.Second
)

const classifySystemPrompt = `You read one reply from a standup participant and extract structured facts.
Respond with a single JSON object and nothing else, using this shape:
{
  "updates": [{"item_id": "...", "target_status": "...", "note": "...", "timeline": "..."}],
  "blockers": ["..."],
  "is_off_topic": false,
  "off_topic_reason": "",
  "needs_clarification": false,
  "summary": "..."
}
Rules:
- only reference item_id values present in the provided open items
- target_status is one of: not_started, in_progress, in_review, blocked, done; omit when unchanged
- blockers are verbatim descriptions of anything the participant is blocked on
- is_off_topic is true when the reply is unrelated to the participant's work
- needs_clarification is true when the reply lacks enough detail to act on
- summary is one or two plain sentences of what the participant reported`

type LLMOption func(*LLMClassifier)

// LLMClassifier asks a chat-completion provider for the extraction. The
// provider is resolved per call so registry changes take effect without a
// restart, falling back to the default provider when the configured one is
// not registered.
type LLMClassifier struct {
	registry     *model.Registry
	providerName string
	modelName    string
	timeout      time.Duration
	logger       *log.Logger
}

func NewLLMClassifier(registry *model.Registry, providerName, modelName string, logger *log.Logger, opts ...LLMOption) *LLMClassifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	c := &LLMClassifier{
		registry:     registry,
		providerName: strings.TrimSpace(providerName),
		modelName:    strings.TrimSpace(modelName),
		timeout:      defaultClassifyTimeout,
		logger:       logger,
	}
	if c.providerName == "" {
		c.providerName = defaultProviderName
	}
	if c.modelName == "" {
		c.modelName = defaultModelName
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func WithTimeout(timeout time.Duration) LLMOption {
	return func(c *LLMClassifier) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

var _ Classifier = (*LLMClassifier)(nil)

func (c *LLMClassifier) Classify(ctx context.Context, replyText string, openItems []tracker.Item) (Extraction, error) {
	provider, providerName, err := c.resolveProvider()
	if err != nil {
		return Extraction{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := provider.Complete(ctx, model.CompletionRequest{
		Model:        c.modelName,
		MaxTokens:    defaultMaxTokens,
		SystemPrompt: classifySystemPrompt,
		Messages: []model.Message{
			{Role: model.RoleUser, Content: buildClassifyPrompt(replyText, openItems)},
		},
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("classify with provider %q: %w", providerName, err)
	}

	extraction, err := parseExtraction(completion.Content)
	if err != nil {
		return Extraction{}, fmt.Errorf("parse classifier output: %w", err)
	}

	dropped := dropUnknownItems(&extraction, openItems)
	if dropped > 0 {
		c.logger.Printf("classifier referenced unknown items dropped=%d", dropped)
	}
	return extraction, nil
}

func (c *LLMClassifier) resolveProvider() (model.Provider, string, error) {
	if provider, ok := c.registry.Get(c.providerName); ok {
		return provider, c.providerName, nil
	}
	if !strings.EqualFold(c.providerName, defaultProviderName) {
		if provider, ok := c.registry.Get(defaultProviderName); ok {
			return provider, defaultProviderName, nil
		}
	}
	return nil, "", fmt.Errorf("model provider %q is not registered", c.providerName)
}

func buildClassifyPrompt(replyText string, openItems []tracker.Item) string {
	var builder strings.Builder
	builder.WriteString("Open items:\n")
	if len(openItems) == 0 {
		builder.WriteString("(none)\n")
	}
	for _, item := range openItems {
		fmt.Fprintf(&builder, "- %s: %s (status %s, priority %d)\n", item.ID, item.Title, item.Status, item.Priority)
	}
	builder.WriteString("\nReply:\n")
	builder.WriteString(replyText)
	return builder.String()
}

// parseExtraction tolerates models that wrap the JSON in prose or a
// markdown fence.
func parseExtraction(content string) (Extraction, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Extraction{}, errors.New("no JSON object in classifier output")
	}

	var extraction Extraction
	if err := json.Unmarshal([]byte(content[start:end+1]), &extraction); err != nil {
		return Extraction{}, err
	}
	extraction.Summary = strings.TrimSpace(extraction.Summary)
	return extraction, nil
}

func dropUnknownItems(extraction *Extraction, openItems []tracker.Item) int {
	known := make(map[string]bool, len(openItems))
	for _, item := range openItems {
		known[item.ID] = true
	}

	kept := extraction.Updates[:0]
	dropped := 0
	for _, update := range extraction.Updates {
		if !known[strings.TrimSpace(update.ItemID)] {
			dropped++
			continue
		}
		kept = append(kept, update)
	}
	extraction.Updates = kept
	return dropped
}
