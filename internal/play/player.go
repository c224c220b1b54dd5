package play

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/services"
)

// Submitter sends one answer for the signed-in player.
type Submitter interface {
	Submit(ctx context.Context, lobbyID, questionKey, choice string) (*services.AnswerResult, error)
}

// Player drives one player's view of a lobby: it feeds observed rows into the
// question timer and guards answer submission against double taps.
type Player struct {
	lobbyID   string
	timer     *QuestionTimer
	submitter Submitter
	now       func() time.Time

	mu        sync.Mutex
	lobby     *models.LobbyView
	answered  map[string]bool
	answering bool
	stats     *models.LobbyPlayer
}

func NewPlayer(lobbyID string, window time.Duration, submitter Submitter) *Player {
	return &Player{
		lobbyID:   lobbyID,
		timer:     NewQuestionTimer(window),
		submitter: submitter,
		now:       time.Now,
		answered:  make(map[string]bool),
	}
}

// Observe is the watcher callback.
func (p *Player) Observe(l *models.LobbyView) {
	p.mu.Lock()
	p.lobby = l
	p.mu.Unlock()

	if l.Status != models.LobbyStatusActive {
		p.timer.Observe(nil, p.now())
		return
	}
	p.timer.Observe(l.CurrentQuestion, p.now())
}

// Lobby returns the last observed row.
func (p *Player) Lobby() *models.LobbyView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lobby
}

// Question returns the answerable question and the time left on it.
func (p *Player) Question() (*models.QuestionView, time.Duration, bool) {
	now := p.now()
	q, _, ok := p.timer.Active(now)
	if !ok {
		return nil, 0, false
	}
	return q, p.timer.Remaining(now), true
}

func (p *Player) Progress() float64 {
	return p.timer.Progress(p.now())
}

// Stats returns the accumulators from the last successful answer.
func (p *Player) Stats() *models.LobbyPlayer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Answer submits choice for the active question. A successful answer, or a
// server-side duplicate, retires the question locally.
func (p *Player) Answer(ctx context.Context, choice string) (*services.AnswerResult, error) {
	_, key, ok := p.timer.Active(p.now())
	if !ok {
		return nil, services.ErrNoActiveQuestion
	}

	p.mu.Lock()
	if p.answering || p.answered[key] {
		p.mu.Unlock()
		return nil, services.ErrAlreadyAnswered
	}
	p.answering = true
	p.mu.Unlock()

	res, err := p.submitter.Submit(ctx, p.lobbyID, key, choice)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.answering = false
	if err != nil {
		if errors.Is(err, services.ErrAlreadyAnswered) {
			p.answered[key] = true
			p.timer.Retire(key)
		}
		return nil, err
	}
	p.answered[key] = true
	p.stats = res.Stats
	p.timer.Retire(key)
	return res, nil
}
