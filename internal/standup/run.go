package standup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rollcall.local/rollcall/internal/classify"
	"rollcall.local/rollcall/internal/tracker"
	"rollcall.local/rollcall/internal/transport"
)

const (
	defaultExchangeCap     = 3
	defaultPhaseAItemCap   = 3
	defaultInitialWindow   = 10 * time.Minute
	defaultFinalWindow     = 5 * time.Minute
	defaultMinSummaryWords = 8
	runEventQueueSize      = 64
)

// Config bounds one run. FinalWindow must be strictly shorter than
// InitialWindow; the reminder fires at the end of the initial window and
// the participant is skipped at the end of the final one.
type Config struct {
	ThreadID        string
	ExchangeCap     int
	PhaseAItemCap   int
	InitialWindow   time.Duration
	FinalWindow     time.Duration
	MinSummaryWords int
}

func (c Config) withDefaults() Config {
	if c.ExchangeCap <= 0 {
		c.ExchangeCap = defaultExchangeCap
	}
	if c.PhaseAItemCap <= 0 {
		c.PhaseAItemCap = defaultPhaseAItemCap
	}
	if c.InitialWindow <= 0 {
		c.InitialWindow = defaultInitialWindow
	}
	if c.FinalWindow <= 0 {
		c.FinalWindow = defaultFinalWindow
	}
	if c.MinSummaryWords <= 0 {
		c.MinSummaryWords = defaultMinSummaryWords
	}
	return c
}

func (c Config) validate() error {
	if strings.TrimSpace(c.ThreadID) == "" {
		return errors.New("thread id is required")
	}
	if c.FinalWindow >= c.InitialWindow {
		return fmt.Errorf("final window (%s) must be shorter than initial window (%s)", c.FinalWindow, c.InitialWindow)
	}
	return nil
}

// Deps are the run's external collaborators. Tracker and Classifier
// failures degrade locally; they can never abort a run.
type Deps struct {
	Transport  transport.Transport
	Tracker    tracker.Tracker
	Classifier classify.Classifier
	Logger     *log.Logger

	// Test seams. Nil means real clock and real timers.
	Now      func() time.Time
	NewTimer TimerFactory
}

type eventKind int

const (
	eventStart eventKind = iota
	eventInbound
	eventTimeout
)

type timeoutStage int

const (
	stageReminder timeoutStage = iota
	stageFinal
)

type runEvent struct {
	kind          eventKind
	msg           transport.Message
	participantID string
	generation    uint64
	stage         timeoutStage
}

// Run interviews every participant in order over one shared thread. All
// state mutation happens on the run's event loop goroutine: inbound
// messages, timer fires and the start signal are funneled through one
// channel, which is what guarantees the single-active-session invariant
// and makes timer cancellation race-free.
type Run struct {
	id       string
	cfg      Config
	chat     transport.Transport
	tracker  tracker.Tracker
	classify classify.Classifier
	logger   *log.Logger
	now      func() time.Time
	newTimer TimerFactory

	events chan runEvent
	doneCh chan struct{}

	mu        sync.Mutex
	completed bool
	digest    Digest

	onComplete func(Digest)

	// Owned by the event loop.
	phase       RunPhase
	sessions    []*Session
	queue       []*Session
	active      *Session
	unavailable map[string]bool
	ledger      *BlockerLedger
	startedAt   time.Time
}

// NewRun builds a run over an already-filtered participant list.
// onComplete, if set, receives the digest after it has been posted.
func NewRun(cfg Config, deps Deps, participants []Participant, onComplete func(Digest)) (*Run, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if deps.Tracker == nil {
		return nil, errors.New("tracker is required")
	}
	if deps.Classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if len(participants) == 0 {
		return nil, errors.New("at least one participant is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newTimer := deps.NewTimer
	if newTimer == nil {
		newTimer = newRealTimer
	}

	r := &Run{
		id:          uuid.NewString(),
		cfg:         cfg,
		chat:        deps.Transport,
		tracker:     deps.Tracker,
		classify:    deps.Classifier,
		logger:      logger,
		now:         now,
		newTimer:    newTimer,
		events:      make(chan runEvent, runEventQueueSize),
		doneCh:      make(chan struct{}),
		onComplete:  onComplete,
		phase:       RunNotStarted,
		unavailable: make(map[string]bool),
		ledger:      NewBlockerLedger(),
	}
	for _, p := range participants {
		s := newSession(p)
		r.sessions = append(r.sessions, s)
		r.queue = append(r.queue, s)
	}
	return r, nil
}

func (r *Run) ID() string { return r.id }

func (r *Run) ThreadID() string { return r.cfg.ThreadID }

// Start launches the event loop and kicks off the first interview.
func (r *Run) Start(ctx context.Context) {
	go r.loop(ctx)
	r.enqueue(runEvent{kind: eventStart})
}

// HandleInbound routes one chat message into the run. Safe to call from
// any goroutine; messages for other threads are dropped.
func (r *Run) HandleInbound(msg transport.Message) {
	if msg.ThreadID != r.cfg.ThreadID {
		return
	}
	r.enqueue(runEvent{kind: eventInbound, msg: msg})
}

// Done is closed once the run phase reaches COMPLETED.
func (r *Run) Done() <-chan struct{} { return r.doneCh }

// Digest returns the compiled summary. Valid only after Done is closed.
func (r *Run) Digest() Digest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.digest
}

func (r *Run) enqueue(ev runEvent) {
	r.mu.Lock()
	done := r.completed
	r.mu.Unlock()
	if done {
		return
	}

	select {
	case r.events <- ev:
	default:
		r.logger.Printf("run event queue full run_id=%s", r.id)
	}
}

func (r *Run) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.process(ctx, ev)
			if r.phase == RunCompleted {
				return
			}
		}
	}
}

func (r *Run) process(ctx context.Context, ev runEvent) {
	switch ev.kind {
	case eventStart:
		r.start(ctx)
	case eventInbound:
		r.handleInbound(ctx, ev.msg)
	case eventTimeout:
		r.handleTimeout(ctx, ev)
	}
}

func (r *Run) start(ctx context.Context) {
	if r.phase != RunNotStarted {
		return
	}
	r.phase = RunInProgress
	r.startedAt = r.now()
	r.logger.Printf("run started run_id=%s thread_id=%s participants=%d", r.id, r.cfg.ThreadID, len(r.sessions))
	r.post(ctx, kickoffMessage(len(r.sessions)))
	r.advance(ctx)
}

// advance pops the next eligible session and activates it, or completes
// the run when the queue is exhausted. Calling it while a session is still
// active is a no-op; that guard is what makes timeout races harmless.
func (r *Run) advance(ctx context.Context) {
	if r.active != nil && !r.active.State.Terminal() {
		return
	}
	r.active = nil

	for len(r.queue) > 0 {
		s := r.queue[0]
		r.queue = r.queue[1:]
		if r.unavailable[s.Participant.ID] {
			s.State = StateSkipped
			s.SkipReason = "marked unavailable earlier in the run"
			continue
		}
		r.activate(ctx, s)
		return
	}

	r.complete(ctx)
}

func (r *Run) activate(ctx context.Context, s *Session) {
	if r.active != nil && !r.active.State.Terminal() {
		panic("standup: activating a session while another is active")
	}
	r.active = s

	items, err := r.tracker.ListOpenItems(ctx, s.Participant.Contact)
	if err != nil {
		r.logger.Printf("list open items failed run_id=%s participant=%s err=%v", r.id, s.Participant.ID, err)
		items = nil
	}
	sorted := tracker.SortByPriority(items)
	inProgress := tracker.FilterByStatus(sorted, tracker.StatusInProgress)
	if len(inProgress) > r.cfg.PhaseAItemCap {
		inProgress = inProgress[:r.cfg.PhaseAItemCap]
	}
	s.PhaseATasks = inProgress
	s.PhaseBTasks = tracker.FilterByStatus(sorted, tracker.StatusNotStarted)

	s.State = StateAskingPhaseA
	r.logger.Printf("session activated run_id=%s participant=%s phase_a_items=%d phase_b_items=%d",
		r.id, s.Participant.ID, len(s.PhaseATasks), len(s.PhaseBTasks))

	r.post(ctx, phaseAPrompt(s, r.ledger.Pending(s.Participant.ID)))
	r.armTimer(s, stageReminder, r.cfg.InitialWindow)
}

func (r *Run) handleInbound(ctx context.Context, msg transport.Message) {
	if r.phase != RunInProgress || r.active == nil {
		return
	}
	active := r.active

	if msg.SenderID == active.Participant.ID {
		r.consumeReply(ctx, active, msg.Text)
		return
	}

	if isAbsenceReport(msg.Text, active.Participant) {
		r.logger.Printf("absence report run_id=%s participant=%s reporter=%s", r.id, active.Participant.ID, msg.SenderID)
		r.skipActive(ctx, "reported absent by a teammate")
		return
	}

	// Chatter from a non-active participant never mutates run state.
	if p, known := r.participantByID(msg.SenderID); known {
		r.post(ctx, courtesyMessage(p.Name))
	}
}

func (r *Run) consumeReply(ctx context.Context, s *Session, text string) {
	s.cancelTimer()

	extraction, err := r.classify.Classify(ctx, text, s.phaseItems())
	if err != nil {
		// Degrade to "no structured data" and let the follow-up path ask
		// again; one flaky external call must not stall the run.
		r.logger.Printf("classify failed run_id=%s participant=%s err=%v", r.id, s.Participant.ID, err)
		extraction = classify.Extraction{}
	}

	r.recordBlockers(s, text, extraction.Blockers)
	r.applyUpdates(ctx, s, extraction.Updates)
	if summary := strings.TrimSpace(extraction.Summary); summary != "" {
		s.Summary = summary
	}

	ph := s.currentPhase()
	s.bumpExchanges(ph)

	if r.isSatisfactory(extraction) {
		r.closePhase(ctx, s, ph, true, "")
		return
	}

	if s.exchanges(ph) >= r.cfg.ExchangeCap {
		reason := unsatisfactoryReason(ph, extraction)
		s.UnsatisfactoryReasons = append(s.UnsatisfactoryReasons, reason)
		r.closePhase(ctx, s, ph, false, reason)
		return
	}

	if ph == phaseA {
		s.State = StatePhaseAFollowup
	} else {
		s.State = StatePhaseBFollowup
	}
	r.post(ctx, followupPrompt(s, extraction))
	r.armTimer(s, stageReminder, r.cfg.InitialWindow)
}

func (r *Run) closePhase(ctx context.Context, s *Session, ph phase, satisfied bool, reason string) {
	if ph == phaseA && satisfied && r.wantsPhaseB(s) {
		s.State = StateAskingPhaseB
		r.post(ctx, phaseBPrompt(s))
		r.armTimer(s, stageReminder, r.cfg.InitialWindow)
		return
	}

	if satisfied {
		r.completeSession(ctx, s)
		return
	}

	r.logger.Printf("phase force-closed run_id=%s participant=%s reason=%q", r.id, s.Participant.ID, reason)
	s.State = StateNeedsFollowup
	r.post(ctx, needsFollowupMessage(s))
	r.advance(ctx)
}

// wantsPhaseB: a second phase is only worth the meeting time when the
// participant has not-started items and few enough in-progress ones.
func (r *Run) wantsPhaseB(s *Session) bool {
	return len(s.PhaseBTasks) > 0 && len(s.PhaseATasks) < r.cfg.PhaseAItemCap
}

func (r *Run) completeSession(ctx context.Context, s *Session) {
	s.State = StateCompleted
	r.post(ctx, completionMessage(s))
	r.advance(ctx)
}

func (r *Run) skipActive(ctx context.Context, reason string) {
	s := r.active
	if s == nil {
		return
	}
	s.cancelTimer()
	s.State = StateSkipped
	s.SkipReason = reason
	r.unavailable[s.Participant.ID] = true
	r.post(ctx, skippedMessage(s))
	r.advance(ctx)
}

func (r *Run) handleTimeout(ctx context.Context, ev runEvent) {
	s := r.active
	if r.phase != RunInProgress || s == nil || s.Participant.ID != ev.participantID {
		return
	}
	// A fire from a previous arm, or one that lost the race against a
	// reply, carries a stale generation and is dropped here.
	if s.State.Terminal() || ev.generation != s.generation {
		return
	}

	switch ev.stage {
	case stageReminder:
		r.post(ctx, reminderMessage(s))
		r.armTimer(s, stageFinal, r.cfg.FinalWindow)
	case stageFinal:
		r.logger.Printf("session timed out run_id=%s participant=%s", r.id, s.Participant.ID)
		r.skipActive(ctx, "no response before the timeout")
	}
}

func (r *Run) armTimer(s *Session, stage timeoutStage, d time.Duration) {
	s.cancelTimer()
	gen := s.generation
	id := s.Participant.ID
	s.timer = r.newTimer(d, func() {
		r.enqueue(runEvent{kind: eventTimeout, participantID: id, generation: gen, stage: stage})
	})
}

func (r *Run) isSatisfactory(extraction classify.Extraction) bool {
	if extraction.IsOffTopic {
		return false
	}
	for _, update := range extraction.Updates {
		if strings.TrimSpace(update.Note) != "" || strings.TrimSpace(update.Timeline) != "" {
			return true
		}
	}
	if extraction.NeedsClarification {
		return false
	}
	return len(strings.Fields(extraction.Summary)) >= r.cfg.MinSummaryWords
}

func unsatisfactoryReason(ph phase, extraction classify.Extraction) string {
	label := "first-phase"
	if ph == phaseB {
		label = "second-phase"
	}
	switch {
	case extraction.IsOffTopic && strings.TrimSpace(extraction.OffTopicReason) != "":
		return fmt.Sprintf("%s replies stayed off topic: %s", label, extraction.OffTopicReason)
	case extraction.IsOffTopic:
		return fmt.Sprintf("%s replies stayed off topic", label)
	default:
		return fmt.Sprintf("%s updates never reached enough detail", label)
	}
}

func (r *Run) recordBlockers(s *Session, text string, classified []string) {
	descriptions := make([]string, 0, len(classified)+2)
	descriptions = append(descriptions, classified...)
	descriptions = append(descriptions, rawBlockerMentions(text)...)

	candidates := r.otherParticipants(s)
	for _, description := range descriptions {
		description = strings.TrimSpace(description)
		if description == "" {
			continue
		}
		if !containsString(s.Blockers, description) {
			s.Blockers = append(s.Blockers, description)
		}

		blocking, ok := MatchParticipantName(description, candidates)
		if !ok {
			continue
		}
		added := r.ledger.Add(blocking.ID, BlockerNotice{
			BlockedParticipant: s.Participant.Name,
			Description:        description,
			RaisedAt:           r.now(),
		})
		if added {
			r.logger.Printf("blocker recorded run_id=%s blocked=%s blocking=%s", r.id, s.Participant.ID, blocking.ID)
		}
	}
}

func (r *Run) applyUpdates(ctx context.Context, s *Session, updates []classify.ItemUpdate) {
	for _, update := range updates {
		if target := strings.TrimSpace(update.TargetStatus); target != "" {
			err := r.tracker.TransitionStatus(ctx, update.ItemID, tracker.Status(target))
			switch {
			case err == nil:
			case errors.Is(err, tracker.ErrItemNotFound), errors.Is(err, tracker.ErrNoValidTransition):
				r.logger.Printf("transition rejected run_id=%s item=%s err=%v", r.id, update.ItemID, err)
			default:
				r.logger.Printf("transition failed run_id=%s item=%s err=%v", r.id, update.ItemID, err)
			}
		}
		if note := strings.TrimSpace(update.Note); note != "" {
			if err := r.tracker.AppendNote(ctx, update.ItemID, note); err != nil {
				r.logger.Printf("append note failed run_id=%s item=%s err=%v", r.id, update.ItemID, err)
			}
		}

		s.Updates = append(s.Updates, ItemUpdate{
			ItemID:       update.ItemID,
			TargetStatus: update.TargetStatus,
			Note:         update.Note,
			Timeline:     update.Timeline,
			AppliedAt:    r.now(),
		})
	}
}

func (r *Run) complete(ctx context.Context) {
	r.phase = RunCompleted
	digest := r.compileDigest()
	r.post(ctx, renderDigest(digest))
	r.logger.Printf("run completed run_id=%s completed=%d skipped=%d follow_up=%d blockers=%d",
		r.id, len(digest.Completed), len(digest.Skipped), len(digest.NeedsFollowUp), len(digest.Blockers))

	r.mu.Lock()
	r.completed = true
	r.digest = digest
	r.mu.Unlock()

	if r.onComplete != nil {
		r.onComplete(digest)
	}
	close(r.doneCh)
}

func (r *Run) post(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if _, err := r.chat.PostToThread(ctx, r.cfg.ThreadID, text); err != nil {
		r.logger.Printf("post failed run_id=%s thread_id=%s err=%v", r.id, r.cfg.ThreadID, err)
	}
}

func (r *Run) participantByID(id string) (Participant, bool) {
	for _, s := range r.sessions {
		if s.Participant.ID == id {
			return s.Participant, true
		}
	}
	return Participant{}, false
}

func (r *Run) otherParticipants(s *Session) []Participant {
	others := make([]Participant, 0, len(r.sessions)-1)
	for _, candidate := range r.sessions {
		if candidate.Participant.ID == s.Participant.ID {
			continue
		}
		others = append(others, candidate.Participant)
	}
	return others
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

var absenceWords = map[string]bool{
	"out": true, "off": true, "sick": true, "pto": true, "ooo": true,
	"vacation": true, "holiday": true, "leave": true, "away": true,
	"unavailable": true, "absent": true,
}

var thirdPersonWords = map[string]bool{
	"he": true, "she": true, "they": true, "him": true, "her": true, "them": true,
}

// isAbsenceReport decides whether a third party's message says the active
// participant is away today. Keyword plus a name or third-person pronoun;
// deliberately fuzzy, like the rest of the name heuristics.
func isAbsenceReport(text string, active Participant) bool {
	words := splitWords(strings.ToLower(text))

	hasKeyword := false
	hasReference := false
	for _, word := range words {
		if absenceWords[word] {
			hasKeyword = true
		}
		if thirdPersonWords[word] {
			hasReference = true
		}
	}
	if !hasKeyword {
		return false
	}
	if hasReference {
		return true
	}
	_, named := MatchParticipantName(text, []Participant{active})
	return named
}
