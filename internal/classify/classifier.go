package classify

import (
	"context"

	"rollcall.local/rollcall/internal/tracker"
)

// ItemUpdate is one extracted status change for a known work item.
type ItemUpdate struct {
	ItemID       string `json:"item_id"`
	TargetStatus string `json:"target_status,omitempty"`
	Note         string `json:"note,omitempty"`
	Timeline     string `json:"timeline,omitempty"`
}

// Extraction is the structured reading of one free-text reply.
type Extraction struct {
	Updates            []ItemUpdate `json:"updates"`
	Blockers           []string     `json:"blockers"`
	IsOffTopic         bool         `json:"is_off_topic"`
	OffTopicReason     string       `json:"off_topic_reason,omitempty"`
	NeedsClarification bool         `json:"needs_clarification"`
	Summary            string       `json:"summary"`
}

// Classifier turns a participant's reply plus their open-item context into
// an Extraction. Implementations must bound their own latency; callers
// treat any error as "no structured data", never as fatal.
type Classifier interface {
	Classify(ctx context.Context, replyText string, openItems []tracker.Item) (Extraction, error)
}
