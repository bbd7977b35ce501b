package standup

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"rollcall.local/rollcall/internal/transport"
)

// ErrRunActive is returned when a thread already has a run in flight.
var ErrRunActive = errors.New("a standup run is already active for this thread")

// Archive persists finished runs. Failures are logged and swallowed; a
// broken archive must not take the chat flow down with it.
type Archive interface {
	SaveRun(ctx context.Context, digest Digest) error
}

// Engine owns at most one live run per thread and fans inbound chat
// messages out to them. It is the process-level entry point: the
// scheduler calls StartRun, the chat adapter calls HandleInbound.
type Engine struct {
	deps    Deps
	archive Archive
	logger  *log.Logger

	mu   sync.Mutex
	runs map[string]*Run
}

func NewEngine(deps Deps, archive Archive) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		deps:    deps,
		archive: archive,
		logger:  logger,
		runs:    make(map[string]*Run),
	}
}

// SetTransport wires the chat transport after construction. The adapter
// needs the engine's inbound handler before it can be built, so the two
// are connected in this order. Must be called before the first StartRun.
func (e *Engine) SetTransport(t transport.Transport) {
	e.mu.Lock()
	e.deps.Transport = t
	e.mu.Unlock()
}

// StartRun launches a run on the given thread. The participant list is the
// day's eligible roster, already filtered for planned leave.
func (e *Engine) StartRun(ctx context.Context, cfg Config, participants []Participant) (*Run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.runs[cfg.ThreadID]; ok {
		select {
		case <-existing.Done():
			// Finished but not yet reaped; replace it below.
		default:
			return nil, ErrRunActive
		}
	}

	run, err := NewRun(cfg, e.deps, participants, func(digest Digest) {
		e.finishRun(ctx, digest)
	})
	if err != nil {
		return nil, err
	}

	e.runs[cfg.ThreadID] = run
	run.Start(ctx)
	return run, nil
}

// HandleInbound is the chat adapter's message callback.
func (e *Engine) HandleInbound(ctx context.Context, msg transport.Message) {
	e.mu.Lock()
	run, ok := e.runs[msg.ThreadID]
	e.mu.Unlock()
	if !ok {
		return
	}
	run.HandleInbound(msg)
}

func (e *Engine) finishRun(ctx context.Context, digest Digest) {
	if e.archive != nil {
		if err := e.archive.SaveRun(ctx, digest); err != nil {
			e.logger.Printf("archive run failed run_id=%s err=%v", digest.RunID, err)
		}
	}

	e.mu.Lock()
	if run, ok := e.runs[digest.ThreadID]; ok && run.ID() == digest.RunID {
		delete(e.runs, digest.ThreadID)
	}
	e.mu.Unlock()
}
