package play

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSource struct {
	mu    sync.Mutex
	row   *models.LobbyView
	calls int
}

func (s *fakeSource) Fetch(context.Context, string) (*models.LobbyView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.row == nil {
		return nil, errors.New("not found")
	}
	return s.row.Clone(), nil
}

func (s *fakeSource) set(l *models.LobbyView) {
	s.mu.Lock()
	s.row = l
	s.mu.Unlock()
}

func (s *fakeSource) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakePush struct {
	mu sync.Mutex
	fn func(*models.LobbyView)
}

func (p *fakePush) Subscribe(_ context.Context, _ string, fn func(*models.LobbyView)) (func(), error) {
	p.mu.Lock()
	p.fn = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.fn = nil
		p.mu.Unlock()
	}, nil
}

func (p *fakePush) subscribed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fn != nil
}

func (p *fakePush) send(l *models.LobbyView) {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		fn(l)
	}
}

func TestWatcherDropsStaleRows(t *testing.T) {
	var seen []int64
	w := NewWatcher("l1", &fakeSource{}, nil, time.Second, discard, func(l *models.LobbyView) {
		seen = append(seen, l.Version)
	})

	w.apply(&models.LobbyView{ID: "l1", Version: 2}, true)
	w.apply(&models.LobbyView{ID: "l1", Version: 1}, false)
	w.apply(&models.LobbyView{ID: "l1", Version: 2}, false)
	w.apply(&models.LobbyView{ID: "l1", Version: 3}, false)

	if len(seen) != 2 || seen[0] != 2 || seen[1] != 3 {
		t.Fatalf("applied versions = %v, want [2 3]", seen)
	}
	if w.Latest().Version != 3 {
		t.Fatalf("Latest = %d, want 3", w.Latest().Version)
	}
}

func TestWatcherPollsWithoutPush(t *testing.T) {
	src := &fakeSource{row: &models.LobbyView{ID: "l1", Version: 1, Status: models.LobbyStatusWaiting}}
	var (
		mu     sync.Mutex
		status string
	)
	w := NewWatcher("l1", src, nil, 10*time.Millisecond, discard, func(l *models.LobbyView) {
		mu.Lock()
		status = l.Status
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	src.set(&models.LobbyView{ID: "l1", Version: 2, Status: models.LobbyStatusActive})
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		s := status
		mu.Unlock()
		if s == models.LobbyStatusActive {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("poll never picked up the new row")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestWatcherSkipsPollWhilePushIsFresh(t *testing.T) {
	src := &fakeSource{row: &models.LobbyView{ID: "l1", Version: 1}}
	push := &fakePush{}
	w := NewWatcher("l1", src, push, 10*time.Millisecond, discard, nil)
	w.staleAfter = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for src.fetches() == 0 || !push.subscribed() {
		if time.Now().After(deadline) {
			t.Fatal("watcher never started")
		}
		time.Sleep(time.Millisecond)
	}
	push.send(&models.LobbyView{ID: "l1", Version: 5})
	// let a poll that raced the push finish
	time.Sleep(15 * time.Millisecond)
	before := src.fetches()
	time.Sleep(60 * time.Millisecond)
	if after := src.fetches(); after != before {
		t.Fatalf("polled %d times while push was fresh", after-before)
	}
	if w.Latest().Version != 5 {
		t.Fatalf("Latest = %d, want 5", w.Latest().Version)
	}
	cancel()
	<-done
}

func TestWatcherRunFailsWhenLobbyMissing(t *testing.T) {
	w := NewWatcher("l1", &fakeSource{}, nil, time.Second, discard, nil)
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("Run: expected error for missing lobby")
	}
}
