// Package scheduler runs a single long-lived task that wakes on a
// randomized interval, generates autonomous speech via the response
// selector, and dispatches it to every Autonomous-mode session. The
// timer-driven loop is generalized from per-chat idle sweeps to one
// process-wide randomized cadence.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vtuber/controlplane/internal/adapter"
	"github.com/vtuber/controlplane/internal/emotion"
	"github.com/vtuber/controlplane/internal/responder"
	"github.com/vtuber/controlplane/internal/session"
)

// Snapshot is the read-only view returned by Scheduler.Snapshot.
type Snapshot struct {
	Enabled     bool
	MinInterval time.Duration
	MaxInterval time.Duration
}

// Scheduler drives the autonomous speech loop. Zero value is not usable;
// construct via New.
type Scheduler struct {
	mu          sync.Mutex
	enabled     bool
	minInterval time.Duration
	maxInterval time.Duration
	promptPool  []string

	registry    *session.Registry
	presenterID string

	stop chan struct{}
	done chan struct{}
}

// New builds a Scheduler bound to reg, drawing its presenter
// session's agent/model/TTS context for content generation. promptPool
// must be non-empty.
func New(reg *session.Registry, presenterID string, minInterval, maxInterval time.Duration, promptPool []string) *Scheduler {
	if presenterID == "" {
		presenterID = "default"
	}
	return &Scheduler{
		registry:    reg,
		presenterID: presenterID,
		minInterval: minInterval,
		maxInterval: maxInterval,
		promptPool:  promptPool,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// SetEnabled toggles the scheduler. Takes effect at the next sleep;
// an in-flight iteration is never interrupted.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// SetIntervals updates the sleep bounds. Requires 0 < min <= max.
func (s *Scheduler) SetIntervals(min, max time.Duration) error {
	if min <= 0 || min > max {
		return errInvalidIntervals
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minInterval = min
	s.maxInterval = max
	return nil
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Enabled: s.enabled, MinInterval: s.minInterval, MaxInterval: s.maxInterval}
}

// Run blocks, looping sleep/generate/dispatch until Stop is called.
// Intended to be run in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	for {
		interval := s.nextInterval()
		select {
		case <-time.After(interval):
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}

		s.mu.Lock()
		enabled := s.enabled
		s.mu.Unlock()
		if !enabled {
			continue
		}

		s.tick(ctx)
	}
}

// Stop signals Run to exit and waits for it to return. A sleep in
// progress is cut short; a tick in progress runs to completion first.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) nextInterval() time.Duration {
	s.mu.Lock()
	min, max := s.minInterval, s.maxInterval
	s.mu.Unlock()
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	pool := s.promptPool
	s.mu.Unlock()
	if len(pool) == 0 {
		return
	}
	prompt := pool[rand.Intn(len(pool))]

	presenter := s.registry.GetOrDefault(s.presenterID)
	if presenter.Context.Agent == nil {
		logrus.Warn("scheduler: presenter session has no agent configured, skipping tick")
		return
	}

	text := responder.SelectBest(ctx, presenter.Context.Agent, chatMsgFor(prompt), nil, 0)
	if text == "" {
		logrus.Warn("scheduler: all candidates failed, skipping tick")
		return
	}

	var expressions []int
	displayText := text
	if presenter.Context.Model != nil {
		expressions = emotion.Extract(text, presenter.Context.Model.EmotionMap)
		displayText = emotion.Strip(text, presenter.Context.Model.EmotionMap)
	}

	targets := s.registry.MatchingSessions(func(m adapter.Mode) bool { return m == adapter.ModeAutonomous })
	for _, target := range targets {
		res := target.Adapter.Speak(ctx, displayText, expressions, nil, false)
		if res.Status != "success" {
			logrus.WithField("session", target.ID).WithField("error", res.Error).Warn("scheduler: speak failed")
		}
	}

	s.registry.Broadcast(func(m adapter.Mode) bool { return m == adapter.ModeAutonomous }, autonomousChatFrame(displayText))
}
