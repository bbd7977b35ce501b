package standup

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"rollcall.local/rollcall/internal/classify"
	"rollcall.local/rollcall/internal/transport"
)

type memoryArchive struct {
	saved []Digest
	err   error
}

func (m *memoryArchive) SaveRun(ctx context.Context, digest Digest) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, digest)
	return nil
}

func engineDeps(chat *fakeTransport, cls *scriptedClassifier) Deps {
	return Deps{
		Transport:  chat,
		Tracker:    &fakeTracker{},
		Classifier: cls,
		Logger:     log.New(io.Discard, "", 0),
	}
}

func TestEngineRejectsSecondRunOnThread(t *testing.T) {
	engine := NewEngine(engineDeps(&fakeTransport{}, &scriptedClassifier{}), nil)
	cfg := Config{ThreadID: "thread-1"}

	run, err := engine.StartRun(context.Background(), cfg, []Participant{alice})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ThreadID() != "thread-1" {
		t.Fatalf("thread id = %s", run.ThreadID())
	}

	if _, err := engine.StartRun(context.Background(), cfg, []Participant{alice}); !errors.Is(err, ErrRunActive) {
		t.Fatalf("second StartRun err = %v, want ErrRunActive", err)
	}

	// A different thread is unaffected.
	if _, err := engine.StartRun(context.Background(), Config{ThreadID: "thread-2"}, []Participant{bob}); err != nil {
		t.Fatalf("other thread StartRun: %v", err)
	}
}

func TestEngineArchivesAndReapsCompletedRun(t *testing.T) {
	chat := &fakeTransport{}
	cls := &scriptedClassifier{extractions: []classify.Extraction{satisfied("T-1")}}
	archive := &memoryArchive{}
	engine := NewEngine(engineDeps(chat, cls), archive)
	cfg := Config{ThreadID: "thread-1"}

	run, err := engine.StartRun(context.Background(), cfg, []Participant{alice})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	engine.HandleInbound(context.Background(), transport.Message{
		SenderID: alice.ID,
		Text:     "shipped it, on to the next one",
		ThreadID: "thread-1",
	})

	select {
	case <-run.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not complete")
	}

	if len(archive.saved) != 1 {
		t.Fatalf("archived runs = %d, want 1", len(archive.saved))
	}
	if archive.saved[0].RunID != run.ID() {
		t.Errorf("archived run id = %s, want %s", archive.saved[0].RunID, run.ID())
	}

	// The slot is free again once the run finished.
	if _, err := engine.StartRun(context.Background(), cfg, []Participant{bob}); err != nil {
		t.Fatalf("StartRun after completion: %v", err)
	}
}

func TestEngineInboundForUnknownThreadDropped(t *testing.T) {
	engine := NewEngine(engineDeps(&fakeTransport{}, &scriptedClassifier{}), nil)
	// Must not panic or block with no run registered.
	engine.HandleInbound(context.Background(), transport.Message{ThreadID: "nope", Text: "hi"})
}
