package standup

import (
	"testing"
	"time"
)

func TestBlockerLedgerAddAndPending(t *testing.T) {
	ledger := NewBlockerLedger()
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	notice := BlockerNotice{BlockedParticipant: "Alice Chen", Description: "blocked on Priya for the schema review", RaisedAt: now}
	if !ledger.Add("u-priya", notice) {
		t.Fatal("first add rejected")
	}
	if ledger.Add("u-priya", notice) {
		t.Error("exact duplicate should be suppressed")
	}
	if !ledger.Add("u-priya", BlockerNotice{BlockedParticipant: "Bob Okafor", Description: "waiting for Priya on the API keys", RaisedAt: now}) {
		t.Error("distinct notice rejected")
	}

	if got := len(ledger.Pending("u-priya")); got != 2 {
		t.Errorf("pending = %d, want 2", got)
	}
	if got := len(ledger.Pending("u-bob")); got != 0 {
		t.Errorf("pending for uninvolved participant = %d", got)
	}
	if ledger.Len() != 2 {
		t.Errorf("len = %d", ledger.Len())
	}
}

func TestRawBlockerMentions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"blocked on", "I'm blocked on Priya's schema review. Otherwise fine.", 1},
		{"waiting for", "Still waiting for Bob to merge the fix", 1},
		{"needs signoff", "This needs sign-off from Alice before Friday", 1},
		{"two mentions", "Blocked by the infra migration, and waiting on Priya's reply", 2},
		{"no blockers", "Everything shipped yesterday, starting the next item", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := rawBlockerMentions(tc.text)
			if len(got) != tc.want {
				t.Errorf("mentions = %v, want %d", got, tc.want)
			}
		})
	}
}

func TestClipSentence(t *testing.T) {
	if got := clipSentence("Priya's review. And another thing"); got != "Priya's review" {
		t.Errorf("got %q", got)
	}
	if got := clipSentence("  Priya's review  "); got != "Priya's review" {
		t.Errorf("got %q", got)
	}
}

func TestMatchParticipantName(t *testing.T) {
	candidates := []Participant{
		{ID: "u-priya", Name: "Priya Sharma"},
		{ID: "u-bob", Name: "Bob Okafor"},
		{ID: "u-al", Name: "Al Kim"},
	}

	tests := []struct {
		name   string
		text   string
		wantID string
		wantOK bool
	}{
		{"full name", "waiting on Priya Sharma for the keys", "u-priya", true},
		{"first name", "blocked on priya's schema review", "u-priya", true},
		{"possessive prefix", "needs review from Priyas side", "u-priya", true},
		{"case insensitive", "BLOCKED ON BOB", "u-bob", true},
		{"short name skipped", "al is reviewing it", "", false},
		{"no match", "blocked on the infra migration", "", false},
		{"empty text", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := MatchParticipantName(tc.text, candidates)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v (got %v)", ok, tc.wantOK, got)
			}
			if ok && got.ID != tc.wantID {
				t.Errorf("matched %s, want %s", got.ID, tc.wantID)
			}
		})
	}
}

func TestIsAbsenceReport(t *testing.T) {
	active := Participant{ID: "u-alice", Name: "Alice Chen"}

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"name and keyword", "Alice is out today", true},
		{"pronoun and keyword", "she's on PTO", true},
		{"keyword only", "I'm heading out for lunch", false},
		{"name only", "Alice crushed that demo", false},
		{"sick leave", "alice called in sick this morning", true},
		{"unrelated chatter", "morning folks", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isAbsenceReport(tc.text, active); got != tc.want {
				t.Errorf("isAbsenceReport(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}
