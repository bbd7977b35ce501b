// Package schedule fires a trigger once per enabled day at a configured
// wall-clock time.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

var ErrSchedulerAlreadyStarted = errors.New("scheduler already started")

// Trigger receives the minute the fire was scheduled for.
type Trigger func(ctx context.Context, scheduledFor time.Time)

type Scheduler struct {
	at      clockTime
	days    map[time.Weekday]bool
	loc     *time.Location
	trigger Trigger
	logger  *log.Logger

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	lastFired time.Time

	now           func() time.Time
	tickerFactory func(interval time.Duration) schedulerTicker
}

// New builds a scheduler for a daily "HH:MM" time in the given IANA
// timezone ("" means UTC) on the given weekdays ("" list means weekdays).
func New(at string, days []string, timezone string, trigger Trigger, logger *log.Logger) (*Scheduler, error) {
	if trigger == nil {
		panic("schedule: trigger is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	clock, err := parseClock(at)
	if err != nil {
		return nil, err
	}
	weekdays, err := parseWeekdays(days)
	if err != nil {
		return nil, err
	}
	loc := time.UTC
	if timezone = strings.TrimSpace(timezone); timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}

	return &Scheduler{
		at:      clock,
		days:    weekdays,
		loc:     loc,
		trigger: trigger,
		logger:  logger,
		now: func() time.Time {
			return time.Now()
		},
		tickerFactory: func(interval time.Duration) schedulerTicker {
			return newRealTicker(interval)
		},
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyStarted
	}
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	ticker := s.tickerFactory(time.Second)
	s.running = true
	s.stopCh = stopCh
	s.doneCh = doneCh
	s.mu.Unlock()

	go s.run(ctx, ticker, stopCh, doneCh)
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.running = false
	s.stopCh = nil
	s.doneCh = nil
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (s *Scheduler) run(ctx context.Context, ticker schedulerTicker, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.Chan():
			s.evaluate(ctx)
		}
	}
}

func (s *Scheduler) evaluate(ctx context.Context) {
	now := s.now().In(s.loc)
	scheduledFor := now.Truncate(time.Minute)

	s.mu.Lock()
	fire := s.days[now.Weekday()] &&
		now.Hour() == s.at.hour &&
		now.Minute() == s.at.minute &&
		!s.lastFired.Equal(scheduledFor)
	if fire {
		s.lastFired = scheduledFor
	}
	s.mu.Unlock()

	if !fire {
		return
	}
	s.logger.Printf("schedule fired scheduled_for=%s", scheduledFor.Format(time.RFC3339))
	s.trigger(ctx, scheduledFor)
}

type schedulerTicker interface {
	Chan() <-chan time.Time
	Stop()
}

type realTicker struct {
	ticker *time.Ticker
}

func newRealTicker(interval time.Duration) *realTicker {
	return &realTicker{ticker: time.NewTicker(interval)}
}

func (t *realTicker) Chan() <-chan time.Time {
	return t.ticker.C
}

func (t *realTicker) Stop() {
	t.ticker.Stop()
}
