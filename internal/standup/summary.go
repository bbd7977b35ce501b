package standup

import (
	"fmt"
	"strings"
	"time"
)

// Digest is the structured outcome of one full run, posted to the thread
// and handed to the archive for downstream reporting.
type Digest struct {
	RunID       string    `json:"run_id"`
	ThreadID    string    `json:"thread_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Completed     []ParticipantSummary `json:"completed"`
	Skipped       []string             `json:"skipped"`
	NeedsFollowUp []FollowUp           `json:"needs_follow_up"`
	Blockers      []BlockerReport      `json:"blockers"`
}

type ParticipantSummary struct {
	Name        string `json:"name"`
	Summary     string `json:"summary,omitempty"`
	UpdateCount int    `json:"update_count"`
}

type FollowUp struct {
	Name    string   `json:"name"`
	Reasons []string `json:"reasons"`
}

type BlockerReport struct {
	FromParticipant string `json:"from_participant"`
	Text            string `json:"text"`
}

func (r *Run) compileDigest() Digest {
	digest := Digest{
		RunID:       r.id,
		ThreadID:    r.cfg.ThreadID,
		StartedAt:   r.startedAt,
		CompletedAt: r.now(),
	}

	for _, s := range r.sessions {
		switch s.State {
		case StateCompleted:
			digest.Completed = append(digest.Completed, ParticipantSummary{
				Name:        s.Participant.Name,
				Summary:     s.Summary,
				UpdateCount: len(s.Updates),
			})
		case StateSkipped:
			digest.Skipped = append(digest.Skipped, s.Participant.Name)
		case StateNeedsFollowup:
			digest.NeedsFollowUp = append(digest.NeedsFollowUp, FollowUp{
				Name:    s.Participant.Name,
				Reasons: s.UnsatisfactoryReasons,
			})
		}

		for _, blocker := range s.Blockers {
			digest.Blockers = append(digest.Blockers, BlockerReport{
				FromParticipant: s.Participant.Name,
				Text:            blocker,
			})
		}
	}
	return digest
}

func renderDigest(d Digest) string {
	var builder strings.Builder
	builder.WriteString("That's everyone — standup complete. Summary:\n")

	if len(d.Completed) > 0 {
		builder.WriteString("\nDone:\n")
		for _, p := range d.Completed {
			fmt.Fprintf(&builder, "• %s", p.Name)
			if p.Summary != "" {
				fmt.Fprintf(&builder, " — %s", p.Summary)
			}
			builder.WriteString("\n")
		}
	}

	if len(d.Skipped) > 0 {
		fmt.Fprintf(&builder, "\nSkipped: %s\n", strings.Join(d.Skipped, ", "))
	}

	if len(d.NeedsFollowUp) > 0 {
		builder.WriteString("\nNeeds follow-up:\n")
		for _, f := range d.NeedsFollowUp {
			fmt.Fprintf(&builder, "• %s", f.Name)
			if len(f.Reasons) > 0 {
				fmt.Fprintf(&builder, " (%s)", strings.Join(f.Reasons, "; "))
			}
			builder.WriteString("\n")
		}
	}

	if len(d.Blockers) > 0 {
		builder.WriteString("\nBlockers raised:\n")
		for _, b := range d.Blockers {
			fmt.Fprintf(&builder, "• %s: %s\n", b.FromParticipant, b.Text)
		}
	}

	return strings.TrimRight(builder.String(), "\n")
}
