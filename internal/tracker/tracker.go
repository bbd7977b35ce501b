package tracker

import (
	"context"
	"errors"
	"sort"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

// Per-call failures the engine must tolerate without aborting a run.
var (
	ErrItemNotFound      = errors.New("tracker item not found")
	ErrNoValidTransition = errors.New("no valid status transition")
)

// Item is one open work item assigned to a participant. Priority is
// ascending: 1 is the most urgent.
type Item struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   Status `json:"status"`
	Priority int    `json:"priority"`
}

type Tracker interface {
	ListOpenItems(ctx context.Context, assignee string) ([]Item, error)
	TransitionStatus(ctx context.Context, itemID string, target Status) error
	AppendNote(ctx context.Context, itemID, text string) error
}

// SortByPriority orders items most-urgent first, stable on input order for
// equal priorities.
func SortByPriority(items []Item) []Item {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// FilterByStatus returns the items currently in the given status,
// preserving order.
func FilterByStatus(items []Item, status Status) []Item {
	filtered := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Status == status {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
