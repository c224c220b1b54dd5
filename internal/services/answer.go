package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/store"
)

// AnswerClaims is a shared first-writer-wins claim set, checked before the
// store transaction so duplicate submissions from other instances fail fast.
type AnswerClaims interface {
	Claim(ctx context.Context, lobbyID, userID, questionKey string) (bool, error)
	Release(ctx context.Context, lobbyID, userID, questionKey string) error
}

type AnswerResult struct {
	Correct bool                `json:"correct"`
	Delta   int64               `json:"points_delta"`
	Answer  string              `json:"answer"`
	Stats   *models.LobbyPlayer `json:"stats"`
}

type AnswerService struct {
	store   store.Store
	claims  AnswerClaims
	scoring *ScoringService
	log     *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewAnswerService builds the submission engine. claims may be nil when no
// shared cache is configured.
func NewAnswerService(st store.Store, claims AnswerClaims, scoring *ScoringService, log *slog.Logger) *AnswerService {
	return &AnswerService{
		store:    st,
		claims:   claims,
		scoring:  scoring,
		log:      log,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

func localKey(lobbyID, userID, questionKey string) string {
	return lobbyID + "\x00" + userID + "\x00" + questionKey
}

// claimLocal adds the key to the process-local set for the duration of one
// submission. The set only serialises concurrent submissions in this process;
// the store claim row remains the authority.
func (s *AnswerService) claimLocal(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[key]; ok {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *AnswerService) releaseLocal(key string) {
	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
}

// SubmitAnswer scores choice against the lobby's current question. It
// succeeds at most once per player and question key.
func (s *AnswerService) SubmitAnswer(ctx context.Context, lobbyID, userID, questionKey, choice string) (*AnswerResult, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	lobby, err := s.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, storeError(err, ErrLobbyNotFound)
	}
	q := lobby.CurrentQuestion
	if lobby.Status != models.LobbyStatusActive || q == nil || q.Key() != questionKey {
		return nil, ErrNoActiveQuestion
	}
	if _, err := s.store.GetMember(ctx, lobbyID, userID); err != nil {
		return nil, storeError(err, ErrMemberNotFound)
	}
	answer, ok := models.NormalizeAnswer(choice)
	if !ok {
		return nil, invalidInput("answer must be Yes or No", nil)
	}

	key := localKey(lobbyID, userID, questionKey)
	if !s.claimLocal(key) {
		return nil, ErrAlreadyAnswered
	}
	defer s.releaseLocal(key)
	if s.claims != nil {
		claimed, err := s.claims.Claim(ctx, lobbyID, userID, questionKey)
		switch {
		case err != nil:
			// the store claim still guards uniqueness
			s.log.Warn("answer claim cache unavailable", "lobby_id", lobbyID, "error", err)
		case !claimed:
			return nil, ErrAlreadyAnswered
		}
	}

	correct, delta := s.scoring.Score(q, answer)
	now := s.now()
	stats, err := s.store.RecordAnswer(ctx, models.AnswerClaim{
		LobbyID:     lobbyID,
		UserID:      userID,
		QuestionKey: questionKey,
		ClaimedAt:   now,
	}, delta, correct)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadyAnswered
		}
		s.releaseClaim(ctx, lobbyID, userID, questionKey)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		s.log.Error("record answer failed", "lobby_id", lobbyID, "user_id", userID, "error", err)
		return nil, &Error{Kind: KindTransient, Code: CodeUpdateFailed, Message: "could not save your answer, try again", Err: err}
	}

	rec := &models.AnswerRecord{
		LobbyID:      lobbyID,
		UserID:       userID,
		QuestionKey:  questionKey,
		QuestionText: q.Text,
		Answer:       answer,
		IsCorrect:    correct,
		PointsDelta:  delta,
		AnsweredAt:   now,
	}
	if err := s.store.AppendAnswerRecord(ctx, rec); err != nil {
		s.log.Warn("answer log append failed", "lobby_id", lobbyID, "user_id", userID, "error", err)
	}

	s.log.Info("answer recorded", "lobby_id", lobbyID, "user_id", userID, "correct", correct, "delta", delta)
	return &AnswerResult{Correct: correct, Delta: delta, Answer: answer, Stats: stats}, nil
}

func (s *AnswerService) releaseClaim(ctx context.Context, lobbyID, userID, questionKey string) {
	if s.claims == nil {
		return
	}
	if err := s.claims.Release(ctx, lobbyID, userID, questionKey); err != nil {
		s.log.Warn("answer claim release failed", "lobby_id", lobbyID, "user_id", userID, "error", err)
	}
}

// History returns a player's answer log for the lobby, userID "" for everyone.
func (s *AnswerService) History(ctx context.Context, lobbyID, userID string) ([]models.AnswerRecord, error) {
	recs, err := s.store.ListAnswerRecords(ctx, lobbyID, userID)
	if err != nil {
		return nil, storeError(err, ErrLobbyNotFound)
	}
	return recs, nil
}
