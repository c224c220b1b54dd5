// Package memstore is an in-memory store.Store used by tests and local runs.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/store"
)

type memberKey struct{ lobbyID, userID string }

type Store struct {
	mu          sync.Mutex
	lobbies     map[string]*models.Lobby
	members     map[memberKey]*models.LobbyPlayer
	claims      map[string]struct{}
	answers     []models.AnswerRecord
	profiles    map[string]models.Profile
	settlements map[string]*models.Settlement
	nextID      uint
	now         func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		lobbies:     make(map[string]*models.Lobby),
		members:     make(map[memberKey]*models.LobbyPlayer),
		claims:      make(map[string]struct{}),
		profiles:    make(map[string]models.Profile),
		settlements: make(map[string]*models.Settlement),
		now:         time.Now,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateLobby(_ context.Context, lobby *models.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lobbies[lobby.ID]; ok {
		return store.ErrDuplicate
	}
	for _, l := range s.lobbies {
		if !l.IsClosed() && strings.EqualFold(l.Code, lobby.Code) {
			return store.ErrDuplicate
		}
	}
	now := s.now()
	if lobby.Version == 0 {
		lobby.Version = 1
	}
	lobby.CreatedAt, lobby.UpdatedAt = now, now
	s.lobbies[lobby.ID] = lobby.Clone()
	return nil
}

func (s *Store) GetLobby(_ context.Context, id string) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lobbies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return l.Clone(), nil
}

func (s *Store) GetLobbyByCode(_ context.Context, code string) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.lobbies {
		if !l.IsClosed() && strings.EqualFold(l.Code, code) {
			return l.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateLobby(_ context.Context, id string, expectedVersion int64, u models.LobbyUpdate) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lobbies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if l.Version != expectedVersion {
		return nil, store.ErrConflict
	}
	u.Apply(l)
	l.Version++
	l.UpdatedAt = s.now()
	return l.Clone(), nil
}

func (s *Store) AddMember(_ context.Context, lobbyID, userID string, now time.Time) (*models.LobbyPlayer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if l.IsClosed() {
		return nil, false, store.ErrClosed
	}
	key := memberKey{lobbyID, userID}
	if m, ok := s.members[key]; ok {
		if m.LeftAt != nil {
			m.LeftAt = nil
			m.Version++
		}
		cp := *m
		return &cp, false, nil
	}
	if s.countLocked(lobbyID) >= l.MaxPlayers {
		return nil, false, store.ErrCapacity
	}
	s.nextID++
	m := &models.LobbyPlayer{
		ID:       s.nextID,
		LobbyID:  lobbyID,
		UserID:   userID,
		JoinedAt: now,
		Version:  1,
	}
	s.members[key] = m
	cp := *m
	return &cp, true, nil
}

func (s *Store) countLocked(lobbyID string) int {
	n := 0
	for k := range s.members {
		if k.lobbyID == lobbyID {
			n++
		}
	}
	return n
}

func (s *Store) RemoveMember(_ context.Context, lobbyID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{lobbyID, userID}
	if _, ok := s.members[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.members, key)
	return nil
}

func (s *Store) SoftRemoveMember(_ context.Context, lobbyID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberKey{lobbyID, userID}]
	if !ok {
		return store.ErrNotFound
	}
	m.LeftAt = &at
	m.Version++
	return nil
}

func (s *Store) GetMember(_ context.Context, lobbyID, userID string) (*models.LobbyPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberKey{lobbyID, userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListMembers(_ context.Context, lobbyID string) ([]models.LobbyPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.LobbyPlayer
	for k, m := range s.members {
		if k.lobbyID == lobbyID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CountMembers(_ context.Context, lobbyID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(lobbyID), nil
}

func claimKey(c models.AnswerClaim) string {
	return c.LobbyID + "\x00" + c.UserID + "\x00" + c.QuestionKey
}

func (s *Store) RecordAnswer(_ context.Context, claim models.AnswerClaim, delta int64, correct bool) (*models.LobbyPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberKey{claim.LobbyID, claim.UserID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	ck := claimKey(claim)
	if _, dup := s.claims[ck]; dup {
		return nil, store.ErrDuplicate
	}
	s.claims[ck] = struct{}{}
	m.PointsEarned += delta
	m.QuestionsAttempted++
	if correct {
		m.CorrectBets++
	}
	m.Version++
	cp := *m
	return &cp, nil
}

func (s *Store) AppendAnswerRecord(_ context.Context, rec *models.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = s.nextID
	s.answers = append(s.answers, *rec)
	return nil
}

func (s *Store) ListAnswerRecords(_ context.Context, lobbyID, userID string) ([]models.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.AnswerRecord
	for _, a := range s.answers {
		if a.LobbyID == lobbyID && (userID == "" || a.UserID == userID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) GetProfiles(_ context.Context, userIDs []string) (map[string]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]models.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) UpsertProfile(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.profiles[p.UserID]; ok {
		existing.Username = p.Username
		existing.UpdatedAt = now
		s.profiles[p.UserID] = existing
		*p = existing
		return nil
	}
	p.UpdatedAt = now
	s.profiles[p.UserID] = *p
	return nil
}

func (s *Store) GetSettlement(_ context.Context, lobbyID string) (*models.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.settlements[lobbyID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *Store) CommitSettlement(_ context.Context, st *models.Settlement, profits map[string]int64, render store.RenderFunc) (*models.Settlement, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.settlements[st.LobbyID]; ok {
		cp := *existing
		return &cp, false, nil
	}
	now := s.now()
	credited := make(map[string]models.Profile, len(profits))
	balances := make(map[string]int64, len(profits))
	for userID, profit := range profits {
		p := s.profiles[userID]
		p.UserID = userID
		p.Balance += profit
		p.UpdatedAt = now
		credited[userID] = p
		balances[userID] = p.Balance
	}
	data, err := render(balances)
	if err != nil {
		return nil, false, err
	}
	for userID, p := range credited {
		s.profiles[userID] = p
	}
	s.nextID++
	cp := *st
	cp.ID = s.nextID
	cp.Leaderboard = data
	s.settlements[st.LobbyID] = &cp
	out := cp
	return &out, true, nil
}
