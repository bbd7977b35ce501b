package standup

import (
	"fmt"
	"strings"

	"rollcall.local/rollcall/internal/classify"
	"rollcall.local/rollcall/internal/tracker"
)

// All chat-facing text lives here. Ticket identifiers are kept out of
// prompts and completion messages; they survive only in the structured
// digest.

func kickoffMessage(count int) string {
	if count == 1 {
		return "Good morning! Starting today's standup with 1 person on the list."
	}
	return fmt.Sprintf("Good morning! Starting today's standup with %d people on the list.", count)
}

func phaseAPrompt(s *Session, notices []BlockerNotice) string {
	var builder strings.Builder

	for _, notice := range notices {
		fmt.Fprintf(&builder, "%s, before we start: %s mentioned being blocked on you — %q. Could you speak to that?\n",
			s.Participant.Name, notice.BlockedParticipant, notice.Description)
	}

	if len(s.PhaseATasks) == 0 {
		fmt.Fprintf(&builder, "%s, you're up! What are you working on right now, and how is it going?", s.Participant.Name)
		return builder.String()
	}

	fmt.Fprintf(&builder, "%s, you're up! How are these going?\n", s.Participant.Name)
	writeTaskList(&builder, s.PhaseATasks)
	builder.WriteString("A quick status for each, with rough timelines, works best.")
	return builder.String()
}

func phaseBPrompt(s *Session) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Thanks %s! A few items on your plate haven't been started yet:\n", s.Participant.Name)
	writeTaskList(&builder, s.PhaseBTasks)
	builder.WriteString("Any plans for when you'll pick these up?")
	return builder.String()
}

func writeTaskList(builder *strings.Builder, items []tracker.Item) {
	for _, item := range items {
		fmt.Fprintf(builder, "• %s\n", item.Title)
	}
}

func followupPrompt(s *Session, extraction classify.Extraction) string {
	if extraction.IsOffTopic {
		return fmt.Sprintf("Let's stay on standup for now, %s — what's the status of your current work?", s.Participant.Name)
	}
	if len(extraction.Updates) > 0 && !anyTimeline(extraction.Updates) {
		return fmt.Sprintf("Got it, %s. When do you expect these to land? A rough timeline is fine.", s.Participant.Name)
	}
	return fmt.Sprintf("Could you share a bit more detail, %s? Where do things stand, and is anything blocking you?", s.Participant.Name)
}

func anyTimeline(updates []classify.ItemUpdate) bool {
	for _, update := range updates {
		if strings.TrimSpace(update.Timeline) != "" {
			return true
		}
	}
	return false
}

func reminderMessage(s *Session) string {
	return fmt.Sprintf("%s, still around? A quick update when you have a moment — I'll move on shortly otherwise.", s.Participant.Name)
}

func skippedMessage(s *Session) string {
	return fmt.Sprintf("No worries — skipping %s for today. We'll catch up next time.", s.Participant.Name)
}

func needsFollowupMessage(s *Session) string {
	return fmt.Sprintf("Thanks %s — let's take the rest of this offline after standup.", s.Participant.Name)
}

func completionMessage(s *Session) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Thanks %s, all set!", s.Participant.Name)

	switch len(s.Updates) {
	case 0:
	case 1:
		builder.WriteString(" I've updated 1 work item for you.")
	default:
		fmt.Fprintf(&builder, " I've updated %d work items for you.", len(s.Updates))
	}

	if summary := strings.TrimSpace(s.Summary); summary != "" {
		builder.WriteString(" " + summary)
	}

	if len(s.Blockers) > 0 {
		builder.WriteString("\nBlockers noted:")
		for _, blocker := range s.Blockers {
			fmt.Fprintf(&builder, "\n• %s", blocker)
		}
	}
	return builder.String()
}

func courtesyMessage(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Thanks! I'll get to you in turn — hang tight."
	}
	return fmt.Sprintf("Thanks %s! I'll get to you in turn — hang tight.", name)
}
