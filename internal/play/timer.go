// Package play is the player-side client: the per-question countdown, the
// lobby watcher with push and polling, and the answer flow.
package play

import (
	"sync"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
)

// QuestionTimer tracks the local countdown for the broadcast question. The
// window starts when this client first observes a question key and is never
// extended or resynced.
type QuestionTimer struct {
	window time.Duration

	mu        sync.Mutex
	question  *models.QuestionView
	key       string
	expiresAt time.Time
	seen      map[string]time.Time
	retired   map[string]bool
}

func NewQuestionTimer(window time.Duration) *QuestionTimer {
	return &QuestionTimer{
		window:  window,
		seen:    make(map[string]time.Time),
		retired: make(map[string]bool),
	}
}

// Observe records the question currently carried by the lobby row. nil
// clears the view.
func (t *QuestionTimer) Observe(q *models.QuestionView, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if q == nil {
		t.question, t.key, t.expiresAt = nil, "", time.Time{}
		return
	}
	key := q.Key
	expiresAt, ok := t.seen[key]
	if !ok {
		expiresAt = now.Add(t.window)
		t.seen[key] = expiresAt
	}
	cp := *q
	t.question, t.key, t.expiresAt = &cp, key, expiresAt
}

// Active returns the question and its key while it can still be answered.
func (t *QuestionTimer) Active(now time.Time) (*models.QuestionView, string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.activeLocked(now) {
		return nil, "", false
	}
	cp := *t.question
	return &cp, t.key, true
}

func (t *QuestionTimer) activeLocked(now time.Time) bool {
	return t.question != nil && !t.retired[t.key] && now.Before(t.expiresAt)
}

// Remaining is the time left on the active question, 0 when none is active.
func (t *QuestionTimer) Remaining(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.activeLocked(now) {
		return 0
	}
	return t.expiresAt.Sub(now)
}

// Progress is the remaining fraction of the window, from 1 down to 0.
func (t *QuestionTimer) Progress(now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.activeLocked(now) || t.window <= 0 {
		return 0
	}
	p := float64(t.expiresAt.Sub(now)) / float64(t.window)
	if p > 1 {
		return 1
	}
	return p
}

// Retire hides the question with the given key for the rest of the session.
func (t *QuestionTimer) Retire(key string) {
	t.mu.Lock()
	t.retired[key] = true
	t.mu.Unlock()
}
