package play

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
)

// Source reads the current lobby row.
type Source interface {
	Fetch(ctx context.Context, lobbyID string) (*models.LobbyView, error)
}

// Push delivers lobby rows as they are written. The returned func stops the
// subscription.
type Push interface {
	Subscribe(ctx context.Context, lobbyID string, fn func(*models.LobbyView)) (func(), error)
}

// Watcher keeps a local copy of one lobby row fresh. Pushed rows are applied
// as they arrive; polling only runs while no push has been seen within the
// staleness window. Rows whose version is not newer than the current one are
// dropped, so an old poll result never overwrites a newer push.
type Watcher struct {
	lobbyID    string
	source     Source
	push       Push
	interval   time.Duration
	staleAfter time.Duration
	onChange   func(*models.LobbyView)
	log        *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	latest   *models.LobbyView
	lastPush time.Time
}

// NewWatcher builds a watcher. push may be nil, in which case the watcher
// polls every interval. onChange runs serially for every accepted row.
func NewWatcher(lobbyID string, source Source, push Push, interval time.Duration, log *slog.Logger, onChange func(*models.LobbyView)) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		lobbyID:    lobbyID,
		source:     source,
		push:       push,
		interval:   interval,
		staleAfter: 3 * interval,
		onChange:   onChange,
		log:        log,
		now:        time.Now,
	}
}

// Latest returns the freshest row seen so far.
func (w *Watcher) Latest() *models.LobbyView {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.latest == nil {
		return nil
	}
	return w.latest.Clone()
}

// apply accepts l when it is newer than the current row.
func (w *Watcher) apply(l *models.LobbyView, pushed bool) bool {
	if l == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if pushed {
		w.lastPush = w.now()
	}
	if w.latest != nil && l.Version <= w.latest.Version {
		return false
	}
	w.latest = l.Clone()
	if w.onChange != nil {
		w.onChange(l.Clone())
	}
	return true
}

func (w *Watcher) pushFresh() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.lastPush.IsZero() && w.now().Sub(w.lastPush) < w.staleAfter
}

func (w *Watcher) poll(ctx context.Context) {
	l, err := w.source.Fetch(ctx, w.lobbyID)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("lobby poll failed", "lobby_id", w.lobbyID, "error", err)
		}
		return
	}
	w.apply(l, false)
}

// Run loads the lobby, subscribes to pushes and polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if w.push != nil {
		unsubscribe, err := w.push.Subscribe(ctx, w.lobbyID, func(l *models.LobbyView) {
			w.apply(l, true)
		})
		if err != nil {
			w.log.Warn("lobby push unavailable, polling only", "lobby_id", w.lobbyID, "error", err)
		} else {
			defer unsubscribe()
		}
	}

	l, err := w.source.Fetch(ctx, w.lobbyID)
	if err != nil {
		return err
	}
	w.apply(l, false)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if w.pushFresh() {
				continue
			}
			w.poll(ctx)
		}
	}
}
