package standup

import (
	"regexp"
	"strings"
	"time"
)

// BlockerNotice records that one participant reported being blocked on
// another. Notices live for the duration of a single run.
type BlockerNotice struct {
	BlockedParticipant string    `json:"blocked_participant"`
	Description        string    `json:"description"`
	RaisedAt           time.Time `json:"raised_at"`
}

// BlockerLedger maps a blocking participant's id to the notices raised
// against them. Notices are consulted, not consumed, when the blocking
// participant's session activates. Only the owning run touches the ledger,
// always from its event loop.
type BlockerLedger struct {
	entries map[string][]BlockerNotice
}

func NewBlockerLedger() *BlockerLedger {
	return &BlockerLedger{entries: make(map[string][]BlockerNotice)}
}

// Add appends a notice against the blocking participant, suppressing exact
// (blocked participant, description) duplicates.
func (l *BlockerLedger) Add(blockingID string, notice BlockerNotice) bool {
	blockingID = strings.TrimSpace(blockingID)
	if blockingID == "" || strings.TrimSpace(notice.Description) == "" {
		return false
	}
	for _, existing := range l.entries[blockingID] {
		if existing.BlockedParticipant == notice.BlockedParticipant && existing.Description == notice.Description {
			return false
		}
	}
	l.entries[blockingID] = append(l.entries[blockingID], notice)
	return true
}

// Pending returns the notices raised against the given participant, in
// arrival order.
func (l *BlockerLedger) Pending(blockingID string) []BlockerNotice {
	return l.entries[strings.TrimSpace(blockingID)]
}

func (l *BlockerLedger) Len() int {
	total := 0
	for _, notices := range l.entries {
		total += len(notices)
	}
	return total
}

// Raw-text phrasings that name a blocking party. The classifier pass can
// miss a name the regex pass catches, so both run on every reply.
var blockerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bblocked\s+(?:on|by)\s+(.{1,80})`),
	regexp.MustCompile(`(?i)\bwaiting\s+(?:for|on)\s+(.{1,80})`),
	regexp.MustCompile(`(?i)\bneeds?\s+(?:an?\s+)?(?:approval|review|sign-?off)\s+from\s+(.{1,80})`),
	regexp.MustCompile(`(?i)\bwaiting\s+on\s+(?:an?\s+)?(?:answer|reply|response)\s+from\s+(.{1,80})`),
}

// rawBlockerMentions scans the original message for blocker phrasings and
// returns the matched phrases, clipped at sentence boundaries.
func rawBlockerMentions(text string) []string {
	mentions := make([]string, 0, 2)
	for _, pattern := range blockerPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			mentions = append(mentions, clipSentence(match))
		}
	}
	return mentions
}

func clipSentence(s string) string {
	if idx := strings.IndexAny(s, ".!?\n"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

const minNameFragment = 3

// MatchParticipantName finds the first known participant whose full name
// appears in the text, or whose first name shares a prefix with a word in
// the text. The heuristics are deliberately loose; they are isolated here
// so they can be tuned or replaced without touching the state machine.
func MatchParticipantName(text string, candidates []Participant) (Participant, bool) {
	lowered := strings.ToLower(text)
	words := splitWords(lowered)

	for _, candidate := range candidates {
		full := strings.ToLower(strings.TrimSpace(candidate.Name))
		if full == "" {
			continue
		}
		if strings.Contains(lowered, full) {
			return candidate, true
		}

		first := strings.Fields(full)[0]
		if len(first) < minNameFragment {
			continue
		}
		for _, word := range words {
			if len(word) < minNameFragment {
				continue
			}
			if strings.HasPrefix(word, first) || strings.HasPrefix(first, word) {
				return candidate, true
			}
		}
	}
	return Participant{}, false
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		}
		return true
	})
}
