package services

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/store"

	"github.com/google/uuid"
)

const (
	codeAlphabet   = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength     = 6
	codeAttempts   = 10
	maxCASAttempts = 3
)

// Notifier receives every lobby row written by the state machine.
type Notifier interface {
	Publish(lobby *models.Lobby)
}

type nopNotifier struct{}

func (nopNotifier) Publish(*models.Lobby) {}

var transitions = map[string]map[string]bool{
	models.LobbyStatusWaiting: {
		models.LobbyStatusActive:    true,
		models.LobbyStatusCancelled: true,
	},
	models.LobbyStatusActive: {
		models.LobbyStatusWaiting:   true,
		models.LobbyStatusFinished:  true,
		models.LobbyStatusCancelled: true,
	},
}

// CanTransition reports whether the lobby state machine allows from -> to.
func CanTransition(from, to string) bool {
	return transitions[from][to]
}

type LobbyService struct {
	store             store.Store
	notifier          Notifier
	log               *slog.Logger
	defaultMaxPlayers int
	now               func() time.Time
}

func NewLobbyService(st store.Store, notifier Notifier, log *slog.Logger, defaultMaxPlayers int) *LobbyService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &LobbyService{
		store:             st,
		notifier:          notifier,
		log:               log,
		defaultMaxPlayers: defaultMaxPlayers,
		now:               time.Now,
	}
}

type CreateLobbyInput struct {
	OwnerID    string
	GameID     string
	BuyIn      int64
	MaxPlayers int
}

func (s *LobbyService) CreateLobby(ctx context.Context, in CreateLobbyInput) (*models.Lobby, error) {
	if in.OwnerID == "" {
		return nil, ErrNotAuthenticated
	}
	if in.BuyIn < 0 {
		return nil, invalidInput("buy-in cannot be negative", nil)
	}
	if in.MaxPlayers < 0 {
		return nil, invalidInput("max players must be positive", nil)
	}
	if in.MaxPlayers == 0 {
		in.MaxPlayers = s.defaultMaxPlayers
	}

	var lobby *models.Lobby
	for attempt := 0; ; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, storeError(err, ErrLobbyNotFound)
		}
		lobby = &models.Lobby{
			ID:         uuid.NewString(),
			Code:       code,
			OwnerID:    in.OwnerID,
			GameID:     in.GameID,
			BuyIn:      in.BuyIn,
			MaxPlayers: in.MaxPlayers,
			Status:     models.LobbyStatusWaiting,
			Version:    1,
		}
		err = s.store.CreateLobby(ctx, lobby)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicate) || attempt+1 >= codeAttempts {
			return nil, storeError(err, ErrLobbyNotFound)
		}
	}

	if _, _, err := s.store.AddMember(ctx, lobby.ID, in.OwnerID, s.now()); err != nil {
		return nil, storeError(err, ErrLobbyNotFound)
	}
	s.log.Info("lobby created", "lobby_id", lobby.ID, "code", lobby.Code, "owner_id", in.OwnerID, "buy_in", in.BuyIn)
	s.notifier.Publish(lobby)
	return lobby, nil
}

func generateCode() (string, error) {
	var b strings.Builder
	n := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

func (s *LobbyService) GetLobby(ctx context.Context, lobbyID string) (*models.Lobby, error) {
	lobby, err := s.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, storeError(err, ErrLobbyNotFound)
	}
	return lobby, nil
}

// resolve looks the lobby up by id first, then by join code.
func (s *LobbyService) resolve(ctx context.Context, codeOrID string) (*models.Lobby, error) {
	codeOrID = strings.TrimSpace(codeOrID)
	if codeOrID == "" {
		return nil, ErrLobbyNotFound
	}
	lobby, err := s.store.GetLobby(ctx, codeOrID)
	if err == nil {
		return lobby, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, storeError(err, ErrLobbyNotFound)
	}
	lobby, err = s.store.GetLobbyByCode(ctx, strings.ToUpper(codeOrID))
	if err != nil {
		return nil, storeError(err, ErrLobbyNotFound)
	}
	return lobby, nil
}

// JoinLobby adds userID to the lobby identified by id or join code and
// returns the lobby id. Joining again is a no-op.
func (s *LobbyService) JoinLobby(ctx context.Context, codeOrID, userID string) (string, error) {
	if userID == "" {
		return "", ErrNotAuthenticated
	}
	lobby, err := s.resolve(ctx, codeOrID)
	if err != nil {
		return "", err
	}
	if lobby.IsClosed() {
		return "", ErrLobbyClosed
	}

	_, created, err := s.store.AddMember(ctx, lobby.ID, userID, s.now())
	if err != nil {
		return "", storeError(err, ErrLobbyNotFound)
	}
	if created {
		s.log.Info("player joined", "lobby_id", lobby.ID, "user_id", userID)
	}
	return lobby.ID, nil
}

// LeaveLobby removes userID from the lobby. Memberships are never deleted
// while the lobby is active: they are soft-deleted and still settle. The
// owner leaving aborts an active lobby and cancels a waiting one.
func (s *LobbyService) LeaveLobby(ctx context.Context, lobbyID, userID string) (*models.Lobby, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	lobby, err := s.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetMember(ctx, lobbyID, userID); err != nil {
		return nil, storeError(err, ErrMemberNotFound)
	}

	isOwner := lobby.OwnerID == userID
	switch lobby.Status {
	case models.LobbyStatusWaiting:
		if isOwner {
			return s.CancelLobby(ctx, lobbyID, userID)
		}
		if err := s.store.RemoveMember(ctx, lobbyID, userID); err != nil {
			return nil, storeError(err, ErrMemberNotFound)
		}
	case models.LobbyStatusActive:
		if isOwner {
			return s.AbortLobby(ctx, lobbyID, userID)
		}
		if err := s.store.SoftRemoveMember(ctx, lobbyID, userID, s.now()); err != nil {
			return nil, storeError(err, ErrMemberNotFound)
		}
	default:
		return nil, ErrLobbyClosed
	}
	s.log.Info("player left", "lobby_id", lobbyID, "user_id", userID, "status", lobby.Status)
	return lobby, nil
}

// mutate runs a guarded compare-and-swap write. guard inspects the current
// row and returns the update to apply; the write is retried on version
// conflicts with the guard re-evaluated against the fresh row.
func (s *LobbyService) mutate(ctx context.Context, lobbyID string, guard func(*models.Lobby) (models.LobbyUpdate, error)) (*models.Lobby, error) {
	var lastErr error
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		lobby, err := s.GetLobby(ctx, lobbyID)
		if err != nil {
			return nil, err
		}
		update, err := guard(lobby)
		if err != nil {
			return nil, err
		}
		updated, err := s.store.UpdateLobby(ctx, lobbyID, lobby.Version, update)
		if err == nil {
			s.notifier.Publish(updated)
			return updated, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, storeError(err, ErrLobbyNotFound)
		}
		lastErr = err
		s.log.Debug("lobby write conflict, retrying", "lobby_id", lobbyID, "attempt", attempt+1)
	}
	return nil, withErr(ErrConcurrentWrite, lastErr)
}

// transition moves the lobby to status "to" on behalf of actorID. The owner
// check runs before the state check.
func (s *LobbyService) transition(ctx context.Context, lobbyID, actorID, to string, extra func(*models.LobbyUpdate)) (*models.Lobby, error) {
	if actorID == "" {
		return nil, ErrNotAuthenticated
	}
	updated, err := s.mutate(ctx, lobbyID, func(l *models.Lobby) (models.LobbyUpdate, error) {
		if l.OwnerID != actorID {
			return models.LobbyUpdate{}, ErrNotOwner
		}
		if !CanTransition(l.Status, to) {
			if l.IsClosed() {
				return models.LobbyUpdate{}, withErr(ErrLobbyClosed, errors.New(l.Status+" -> "+to))
			}
			return models.LobbyUpdate{}, withErr(ErrInvalidTransition, errors.New(l.Status+" -> "+to))
		}
		status := to
		u := models.LobbyUpdate{Status: &status, ClearQuestion: true}
		if extra != nil {
			extra(&u)
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("lobby transitioned", "lobby_id", lobbyID, "status", to, "version", updated.Version)
	return updated, nil
}

// StartLobby moves a waiting lobby to active. Only the owner may start it.
func (s *LobbyService) StartLobby(ctx context.Context, lobbyID, ownerID string) (*models.Lobby, error) {
	return s.transition(ctx, lobbyID, ownerID, models.LobbyStatusActive, func(u *models.LobbyUpdate) {
		now := s.now()
		u.StartedAt = &now
	})
}

// AbortLobby returns an active lobby to waiting, used when the host exits mid-session.
func (s *LobbyService) AbortLobby(ctx context.Context, lobbyID, ownerID string) (*models.Lobby, error) {
	return s.transition(ctx, lobbyID, ownerID, models.LobbyStatusWaiting, nil)
}

func (s *LobbyService) FinishLobby(ctx context.Context, lobbyID, ownerID string) (*models.Lobby, error) {
	return s.transition(ctx, lobbyID, ownerID, models.LobbyStatusFinished, func(u *models.LobbyUpdate) {
		now := s.now()
		u.FinishedAt = &now
	})
}

func (s *LobbyService) CancelLobby(ctx context.Context, lobbyID, ownerID string) (*models.Lobby, error) {
	return s.transition(ctx, lobbyID, ownerID, models.LobbyStatusCancelled, nil)
}

// PublishQuestion makes q the lobby's current question. Each publish gets a
// fresh id, so republishing the same text is a new question.
func (s *LobbyService) PublishQuestion(ctx context.Context, lobbyID, ownerID string, q models.Question) (*models.Lobby, error) {
	if ownerID == "" {
		return nil, ErrNotAuthenticated
	}
	parsed, err := models.ParseQuestion(q.Text, q.Tip, q.CorrectAnswer)
	if err != nil {
		return nil, invalidInput("question is malformed", err)
	}
	parsed.ID = uuid.NewString()
	parsed.PublishedAt = s.now().UTC()

	updated, err := s.mutate(ctx, lobbyID, func(l *models.Lobby) (models.LobbyUpdate, error) {
		if l.OwnerID != ownerID {
			return models.LobbyUpdate{}, ErrNotOwner
		}
		if l.Status != models.LobbyStatusActive {
			return models.LobbyUpdate{}, withErr(ErrInvalidTransition, errors.New("lobby is "+l.Status))
		}
		return models.LobbyUpdate{CurrentQuestion: &parsed}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("question published", "lobby_id", lobbyID, "question_id", parsed.ID, "key", parsed.Key())
	return updated, nil
}

// ClearQuestion retires the current question for every observer.
func (s *LobbyService) ClearQuestion(ctx context.Context, lobbyID, ownerID string) (*models.Lobby, error) {
	if ownerID == "" {
		return nil, ErrNotAuthenticated
	}
	return s.mutate(ctx, lobbyID, func(l *models.Lobby) (models.LobbyUpdate, error) {
		if l.OwnerID != ownerID {
			return models.LobbyUpdate{}, ErrNotOwner
		}
		if l.Status != models.LobbyStatusActive {
			return models.LobbyUpdate{}, withErr(ErrInvalidTransition, errors.New("lobby is "+l.Status))
		}
		return models.LobbyUpdate{ClearQuestion: true}, nil
	})
}

// Members lists memberships in join order.
func (s *LobbyService) Members(ctx context.Context, lobbyID string) ([]models.LobbyPlayer, error) {
	members, err := s.store.ListMembers(ctx, lobbyID)
	if err != nil {
		return nil, storeError(err, ErrLobbyNotFound)
	}
	return members, nil
}

// Stats returns one player's accumulators.
func (s *LobbyService) Stats(ctx context.Context, lobbyID, userID string) (*models.LobbyPlayer, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	m, err := s.store.GetMember(ctx, lobbyID, userID)
	if err != nil {
		return nil, storeError(err, ErrMemberNotFound)
	}
	return m, nil
}

// UpdateProfile sets the display name shown on leaderboards. Balance is left to settlement.
func (s *LobbyService) UpdateProfile(ctx context.Context, userID, username string) (*models.Profile, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 100 {
		return nil, invalidInput("username must be 1-100 characters", nil)
	}
	// the balance is never written here; the store returns the current one
	p := &models.Profile{UserID: userID, Username: username}
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return nil, storeError(err, ErrMemberNotFound)
	}
	return p, nil
}
