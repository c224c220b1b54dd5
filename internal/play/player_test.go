package play

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/services"
	"github.com/akshitk26/gamepulse/internal/store/memstore"
	"github.com/akshitk26/gamepulse/internal/ws"
)

type stack struct {
	hub     *ws.Hub
	lobbies *services.LobbyService
	answers *services.AnswerService
}

func newStack() *stack {
	st := memstore.New()
	hub := ws.NewHub(discard)
	scoring := services.NewScoringService(20, 0)
	return &stack{
		hub:     hub,
		lobbies: services.NewLobbyService(st, hub, discard, 5),
		answers: services.NewAnswerService(st, nil, scoring, discard),
	}
}

func TestPlayerAnswersOncePerQuestion(t *testing.T) {
	s := newStack()
	ctx := context.Background()
	lobby, err := s.lobbies.CreateLobby(ctx, services.CreateLobbyInput{OwnerID: "host", BuyIn: 10})
	if err != nil {
		t.Fatalf("CreateLobby: %v", err)
	}
	if _, err := s.lobbies.JoinLobby(ctx, lobby.Code, "p1"); err != nil {
		t.Fatalf("JoinLobby: %v", err)
	}

	local := &Local{Lobbies: s.lobbies, Answers: s.answers, Hub: s.hub, UserID: "p1"}
	player := NewPlayer(lobby.ID, 10*time.Second, local)
	unsubscribe, _ := local.Subscribe(ctx, lobby.ID, player.Observe)
	defer unsubscribe()

	if _, err := player.Answer(ctx, "yes"); !errors.Is(err, services.ErrNoActiveQuestion) {
		t.Fatalf("answer before start err = %v, want ErrNoActiveQuestion", err)
	}

	if _, err := s.lobbies.StartLobby(ctx, lobby.ID, "host"); err != nil {
		t.Fatalf("StartLobby: %v", err)
	}
	if _, err := s.lobbies.PublishQuestion(ctx, lobby.ID, "host", models.Question{Text: "Penalty?", CorrectAnswer: "Yes"}); err != nil {
		t.Fatalf("PublishQuestion: %v", err)
	}
	q, remaining, ok := player.Question()
	if !ok || q.Text != "Penalty?" || remaining <= 0 {
		t.Fatalf("Question = (%v, %v, %v)", q, remaining, ok)
	}

	res, err := player.Answer(ctx, "YES")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !res.Correct || player.Stats().PointsEarned != 20 {
		t.Fatalf("result = %+v stats = %+v", res, player.Stats())
	}
	if _, _, ok := player.Question(); ok {
		t.Fatal("question still shown after answering")
	}
	if _, err := player.Answer(ctx, "yes"); !errors.Is(err, services.ErrNoActiveQuestion) {
		t.Fatalf("second answer err = %v, want ErrNoActiveQuestion", err)
	}

	if _, err := s.lobbies.AbortLobby(ctx, lobby.ID, "host"); err != nil {
		t.Fatalf("AbortLobby: %v", err)
	}
	if player.Lobby().Status != models.LobbyStatusWaiting {
		t.Fatalf("status = %q, want waiting", player.Lobby().Status)
	}
}

type blockingSubmitter struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (b *blockingSubmitter) Submit(context.Context, string, string, string) (*services.AnswerResult, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	<-b.release
	return &services.AnswerResult{Correct: true, Delta: 20, Stats: &models.LobbyPlayer{PointsEarned: 20}}, nil
}

func TestPlayerDoubleTapGuard(t *testing.T) {
	sub := &blockingSubmitter{release: make(chan struct{})}
	player := NewPlayer("l1", 10*time.Second, sub)
	player.Observe(&models.LobbyView{
		ID:              "l1",
		Status:          models.LobbyStatusActive,
		CurrentQuestion: &models.QuestionView{ID: "q", Key: "q-key", Text: "Goal?"},
	})

	first := make(chan error, 1)
	go func() {
		_, err := player.Answer(context.Background(), "yes")
		first <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for {
		sub.mu.Lock()
		n := sub.calls
		sub.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first submit never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := player.Answer(context.Background(), "no"); !errors.Is(err, services.ErrAlreadyAnswered) {
		t.Fatalf("second tap err = %v, want ErrAlreadyAnswered", err)
	}
	close(sub.release)
	if err := <-first; err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if sub.calls != 1 {
		t.Fatalf("submit calls = %d, want 1", sub.calls)
	}
}

type dupSubmitter struct{}

func (dupSubmitter) Submit(context.Context, string, string, string) (*services.AnswerResult, error) {
	return nil, services.FromCode(services.CodeAlreadyAnswered, "already answered")
}

func TestPlayerRetiresOnServerDuplicate(t *testing.T) {
	player := NewPlayer("l1", 10*time.Second, dupSubmitter{})
	player.Observe(&models.LobbyView{
		ID:              "l1",
		Status:          models.LobbyStatusActive,
		CurrentQuestion: &models.QuestionView{ID: "q", Key: "q-key", Text: "Goal?"},
	})
	if _, err := player.Answer(context.Background(), "yes"); !errors.Is(err, services.ErrAlreadyAnswered) {
		t.Fatalf("err = %v, want ErrAlreadyAnswered", err)
	}
	if _, _, ok := player.Question(); ok {
		t.Fatal("question not retired after a server-side duplicate")
	}
}
