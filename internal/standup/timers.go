package standup

import "time"

// Timer is a cancellable pending callback. The default factory wraps
// time.AfterFunc; tests substitute a manual factory to fire deterministically.
type Timer interface {
	Stop() bool
}

type TimerFactory func(d time.Duration, fn func()) Timer

func newRealTimer(d time.Duration, fn func()) Timer {
	return &realTimer{timer: time.AfterFunc(d, fn)}
}

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) Stop() bool {
	return t.timer.Stop()
}
