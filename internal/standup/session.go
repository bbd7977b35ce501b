package standup

import (
	"time"

	"rollcall.local/rollcall/internal/tracker"
)

// Participant is one eligible interviewee. The list handed to a run is
// already filtered for leave and exclusions upstream.
type Participant struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Contact string `yaml:"contact" json:"contact"`
}

// ItemUpdate is one applied status change, kept for the audit digest.
type ItemUpdate struct {
	ItemID       string    `json:"item_id"`
	TargetStatus string    `json:"target_status,omitempty"`
	Note         string    `json:"note,omitempty"`
	Timeline     string    `json:"timeline,omitempty"`
	AppliedAt    time.Time `json:"applied_at"`
}

// Session is one participant's interview. It is created when the run
// starts, mutated only while it is the active session, and frozen once a
// terminal state is reached. All access happens on the run's event loop.
type Session struct {
	Participant Participant
	State       SessionState

	PhaseATasks []tracker.Item
	PhaseBTasks []tracker.Item

	// Exchanges per phase, bounded by the run's exchange cap.
	phaseAExchanges int
	phaseBExchanges int

	Updates               []ItemUpdate
	Blockers              []string
	UnsatisfactoryReasons []string
	Summary               string
	SkipReason            string

	// Timer bookkeeping. generation is bumped on every arm and every
	// resolution so a fire from a previous arm is recognizably stale.
	timer      Timer
	generation uint64
}

func newSession(p Participant) *Session {
	return &Session{
		Participant: p,
		State:       StateNotStarted,
	}
}

func (s *Session) currentPhase() phase {
	switch s.State {
	case StateAskingPhaseB, StatePhaseBFollowup:
		return phaseB
	default:
		return phaseA
	}
}

func (s *Session) phaseItems() []tracker.Item {
	if s.currentPhase() == phaseB {
		return s.PhaseBTasks
	}
	return s.PhaseATasks
}

func (s *Session) exchanges(p phase) int {
	if p == phaseB {
		return s.phaseBExchanges
	}
	return s.phaseAExchanges
}

func (s *Session) bumpExchanges(p phase) {
	if p == phaseB {
		s.phaseBExchanges++
		return
	}
	s.phaseAExchanges++
}

// cancelTimer stops any armed timer and invalidates in-flight fires.
// Must be called on every resolution, not left to garbage collection.
func (s *Session) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
}
