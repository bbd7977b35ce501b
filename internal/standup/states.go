package standup

// SessionState is the per-participant interview state.
type SessionState string

const (
	StateNotStarted     SessionState = "not_started"
	StateAskingPhaseA   SessionState = "asking_phase_a"
	StatePhaseAFollowup SessionState = "phase_a_followup"
	StateAskingPhaseB   SessionState = "asking_phase_b"
	StatePhaseBFollowup SessionState = "phase_b_followup"
	StateCompleted      SessionState = "completed"
	StateSkipped        SessionState = "skipped"
	StateNeedsFollowup  SessionState = "needs_followup"
)

// Terminal reports whether a session can no longer change.
func (s SessionState) Terminal() bool {
	switch s {
	case StateCompleted, StateSkipped, StateNeedsFollowup:
		return true
	}
	return false
}

type phase int

const (
	phaseA phase = iota
	phaseB
)

// RunPhase is the run-level lifecycle. Transitions are monotonic.
type RunPhase string

const (
	RunNotStarted RunPhase = "not_started"
	RunInProgress RunPhase = "in_progress"
	RunCompleted  RunPhase = "completed"
)
