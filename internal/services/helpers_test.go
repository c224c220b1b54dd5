package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/store"
	"github.com/akshitk26/gamepulse/internal/store/memstore"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingNotifier struct {
	mu   sync.Mutex
	rows []*models.Lobby
}

func (n *recordingNotifier) Publish(l *models.Lobby) {
	n.mu.Lock()
	n.rows = append(n.rows, l.Clone())
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.rows)
}

// clock hands out strictly increasing times so join order is deterministic.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type env struct {
	store      store.Store
	notifier   *recordingNotifier
	lobbies    *LobbyService
	answers    *AnswerService
	settlement *SettlementService
	scoring    *ScoringService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithStore(t, memstore.New())
}

func newEnvWithStore(t *testing.T, st store.Store) *env {
	t.Helper()
	clk := newClock()
	n := &recordingNotifier{}
	scoring := NewScoringService(20, 0)
	lobbies := NewLobbyService(st, n, discard, 5)
	lobbies.now = clk.Now
	answers := NewAnswerService(st, nil, scoring, discard)
	answers.now = clk.Now
	settlement := NewSettlementService(st, lobbies, scoring, nil, discard)
	settlement.now = clk.Now
	return &env{store: st, notifier: n, lobbies: lobbies, answers: answers, settlement: settlement, scoring: scoring}
}

// activeLobby creates a lobby owned by "host", joins players and starts it.
func (e *env) activeLobby(t *testing.T, buyIn int64, players ...string) *models.Lobby {
	t.Helper()
	ctx := context.Background()
	lobby, err := e.lobbies.CreateLobby(ctx, CreateLobbyInput{OwnerID: "host", BuyIn: buyIn, MaxPlayers: 5})
	if err != nil {
		t.Fatalf("CreateLobby: %v", err)
	}
	for _, p := range players {
		if _, err := e.lobbies.JoinLobby(ctx, lobby.Code, p); err != nil {
			t.Fatalf("JoinLobby(%s): %v", p, err)
		}
	}
	lobby, err = e.lobbies.StartLobby(ctx, lobby.ID, "host")
	if err != nil {
		t.Fatalf("StartLobby: %v", err)
	}
	return lobby
}

// publish publishes a question and returns its key.
func (e *env) publish(t *testing.T, lobbyID, text, answer string) string {
	t.Helper()
	lobby, err := e.lobbies.PublishQuestion(context.Background(), lobbyID, "host", models.Question{Text: text, CorrectAnswer: answer})
	if err != nil {
		t.Fatalf("PublishQuestion: %v", err)
	}
	return lobby.CurrentQuestion.Key()
}

// hookStore runs a one-shot hook inside a store call, to interleave another
// operation at an exact point of a service flow.
type hookStore struct {
	store.Store

	mu    sync.Mutex
	hooks map[string]func()
}

func newHookStore(st store.Store) *hookStore {
	return &hookStore{Store: st, hooks: make(map[string]func())}
}

func (s *hookStore) on(op string, fn func()) {
	s.mu.Lock()
	s.hooks[op] = fn
	s.mu.Unlock()
}

func (s *hookStore) fire(op string) {
	s.mu.Lock()
	fn := s.hooks[op]
	delete(s.hooks, op)
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// GetLobby fires after the read, so the caller holds a stale row.
func (s *hookStore) GetLobby(ctx context.Context, id string) (*models.Lobby, error) {
	l, err := s.Store.GetLobby(ctx, id)
	s.fire("GetLobby")
	return l, err
}

func (s *hookStore) GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error) {
	s.fire("GetProfiles")
	return s.Store.GetProfiles(ctx, userIDs)
}

func (s *hookStore) UpsertProfile(ctx context.Context, p *models.Profile) error {
	s.fire("UpsertProfile")
	return s.Store.UpsertProfile(ctx, p)
}
