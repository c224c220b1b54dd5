package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
)

// QuestionFeed publishes a scripted question sequence into a lobby on a fixed
// interval, then finishes and settles it. One feed runs per lobby.
type QuestionFeed struct {
	lobbies    *LobbyService
	settlement *SettlementService
	log        *slog.Logger
	interval   time.Duration

	mu      sync.Mutex
	stopChs map[string]chan struct{}
	wg      sync.WaitGroup
}

func NewQuestionFeed(lobbies *LobbyService, settlement *SettlementService, log *slog.Logger, interval time.Duration) *QuestionFeed {
	return &QuestionFeed{
		lobbies:    lobbies,
		settlement: settlement,
		log:        log,
		interval:   interval,
		stopChs:    make(map[string]chan struct{}),
	}
}

// Start validates the sequence and begins publishing. The lobby must be
// active and ownerID its owner. interval <= 0 uses the feed default.
func (f *QuestionFeed) Start(ctx context.Context, lobbyID, ownerID string, questions []models.Question, interval time.Duration) error {
	if ownerID == "" {
		return ErrNotAuthenticated
	}
	if len(questions) == 0 {
		return invalidInput("feed needs at least one question", nil)
	}
	for _, q := range questions {
		if _, err := models.ParseQuestion(q.Text, q.Tip, q.CorrectAnswer); err != nil {
			return invalidInput("question is malformed", err)
		}
	}
	lobby, err := f.lobbies.GetLobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	if lobby.OwnerID != ownerID {
		return ErrNotOwner
	}
	if lobby.Status != models.LobbyStatusActive {
		return ErrInvalidTransition
	}
	if interval <= 0 {
		interval = f.interval
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, running := f.stopChs[lobbyID]; running {
		return withErr(ErrInvalidTransition, errors.New("feed already running"))
	}
	stopCh := make(chan struct{})
	f.stopChs[lobbyID] = stopCh
	f.wg.Add(1)
	go f.run(lobbyID, ownerID, questions, interval, stopCh)
	f.log.Info("feed started", "lobby_id", lobbyID, "questions", len(questions), "interval", interval)
	return nil
}

// Stop cancels the feed for a lobby, if any.
func (f *QuestionFeed) Stop(lobbyID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.stopChs[lobbyID]; ok {
		close(ch)
		delete(f.stopChs, lobbyID)
	}
}

// Running reports whether a feed is active for the lobby.
func (f *QuestionFeed) Running(lobbyID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.stopChs[lobbyID]
	return ok
}

// Shutdown stops every feed and waits for their goroutines.
func (f *QuestionFeed) Shutdown() {
	f.mu.Lock()
	for id, ch := range f.stopChs {
		close(ch)
		delete(f.stopChs, id)
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *QuestionFeed) done(lobbyID string, stopCh chan struct{}) {
	f.mu.Lock()
	if cur, ok := f.stopChs[lobbyID]; ok && cur == stopCh {
		delete(f.stopChs, lobbyID)
	}
	f.mu.Unlock()
	f.wg.Done()
}

func (f *QuestionFeed) run(lobbyID, ownerID string, questions []models.Question, interval time.Duration, stopCh chan struct{}) {
	defer f.done(lobbyID, stopCh)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i, q := range questions {
		if _, err := f.lobbies.PublishQuestion(ctx, lobbyID, ownerID, q); err != nil {
			// the host aborted or cancelled the lobby
			f.log.Warn("feed stopped", "lobby_id", lobbyID, "question", i, "error", err)
			return
		}
		select {
		case <-stopCh:
			f.log.Info("feed cancelled", "lobby_id", lobbyID, "question", i)
			return
		case <-ticker.C:
		}
	}

	if _, err := f.settlement.Settle(ctx, lobbyID); err != nil {
		f.log.Error("feed settlement failed", "lobby_id", lobbyID, "error", err)
		return
	}
	f.log.Info("feed finished", "lobby_id", lobbyID)
}
