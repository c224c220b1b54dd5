package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/store"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// LeaderboardCache holds settled results keyed by lobby id.
type LeaderboardCache interface {
	Get(ctx context.Context, lobbyID string) ([]byte, bool, error)
	Set(ctx context.Context, lobbyID string, data []byte) error
}

// SettlementResult is the settled outcome of a lobby. Leaderboard holds the
// stored bytes, so repeated reads are byte-identical.
type SettlementResult struct {
	LobbyID     string          `json:"lobby_id"`
	Pool        int64           `json:"pool"`
	BuyIn       int64           `json:"buy_in"`
	SettledAt   time.Time       `json:"settled_at"`
	Leaderboard json.RawMessage `json:"leaderboard"`
}

// Rows decodes the leaderboard.
func (r *SettlementResult) Rows() ([]models.LeaderboardRow, error) {
	var rows []models.LeaderboardRow
	if err := json.Unmarshal(r.Leaderboard, &rows); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return rows, nil
}

func resultFrom(s *models.Settlement) *SettlementResult {
	return &SettlementResult{
		LobbyID:     s.LobbyID,
		Pool:        s.Pool,
		BuyIn:       s.BuyIn,
		SettledAt:   s.SettledAt,
		Leaderboard: json.RawMessage(s.Leaderboard),
	}
}

type SettlementService struct {
	store   store.Store
	lobbies *LobbyService
	scoring *ScoringService
	cache   LeaderboardCache
	log     *slog.Logger
	now     func() time.Time
	group   singleflight.Group
}

// NewSettlementService wires the settlement engine. cache may be nil.
func NewSettlementService(st store.Store, lobbies *LobbyService, scoring *ScoringService, cache LeaderboardCache, log *slog.Logger) *SettlementService {
	return &SettlementService{
		store:   st,
		lobbies: lobbies,
		scoring: scoring,
		cache:   cache,
		log:     log,
		now:     time.Now,
	}
}

// SettleAs settles on behalf of actorID, who must own the lobby.
func (s *SettlementService) SettleAs(ctx context.Context, lobbyID, actorID string) (*SettlementResult, error) {
	if actorID == "" {
		return nil, ErrNotAuthenticated
	}
	lobby, err := s.lobbies.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if lobby.OwnerID != actorID {
		return nil, ErrNotOwner
	}
	return s.Settle(ctx, lobbyID)
}

// Settle computes payouts for a lobby exactly once. Later calls, including
// concurrent ones, return the first committed result.
func (s *SettlementService) Settle(ctx context.Context, lobbyID string) (*SettlementResult, error) {
	v, err, _ := s.group.Do(lobbyID, func() (interface{}, error) {
		return s.settle(ctx, lobbyID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SettlementResult), nil
}

func (s *SettlementService) settle(ctx context.Context, lobbyID string) (*SettlementResult, error) {
	var (
		lobby    *models.Lobby
		existing *models.Settlement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lobby, err = s.lobbies.GetLobby(gctx, lobbyID)
		return err
	})
	g.Go(func() error {
		st, err := s.store.GetSettlement(gctx, lobbyID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return storeError(err, ErrLobbyNotFound)
		}
		existing = st
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if existing != nil {
		return resultFrom(existing), nil
	}

	switch lobby.Status {
	case models.LobbyStatusActive:
		finished, err := s.lobbies.FinishLobby(ctx, lobbyID, lobby.OwnerID)
		switch {
		case err == nil:
			lobby = finished
		case errors.Is(err, ErrLobbyClosed):
			// closed concurrently; only a finish may be settled
			if lobby, err = s.lobbies.GetLobby(ctx, lobbyID); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	case models.LobbyStatusFinished:
	}
	if lobby.Status != models.LobbyStatusFinished {
		return nil, withErr(ErrInvalidTransition, fmt.Errorf("cannot settle a %s lobby", lobby.Status))
	}

	members, err := s.store.ListMembers(ctx, lobbyID)
	if err != nil {
		return nil, storeError(err, ErrLobbyNotFound)
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	profiles, err := s.store.GetProfiles(ctx, ids)
	if err != nil {
		return nil, storeError(err, ErrLobbyNotFound)
	}

	rows, profits := s.buildLeaderboard(lobby.BuyIn, members, profiles)
	render := func(balances map[string]int64) ([]byte, error) {
		for i := range rows {
			rows[i].NewBalance = balances[rows[i].UserID]
		}
		data, err := json.Marshal(rows)
		if err != nil {
			return nil, fmt.Errorf("encode leaderboard: %w", err)
		}
		return data, nil
	}

	stored, created, err := s.store.CommitSettlement(ctx, &models.Settlement{
		LobbyID:   lobbyID,
		Pool:      lobby.BuyIn * int64(len(members)),
		BuyIn:     lobby.BuyIn,
		SettledAt: s.now().UTC(),
	}, profits, render)
	if err != nil {
		s.log.Error("settlement commit failed", "lobby_id", lobbyID, "error", err)
		return nil, storeError(err, ErrLobbyNotFound)
	}
	if created {
		s.log.Info("lobby settled", "lobby_id", lobbyID, "pool", stored.Pool, "players", len(members))
	}

	res := resultFrom(stored)
	s.cacheResult(ctx, res)
	return res, nil
}

// buildLeaderboard ranks members and computes payouts and per-user profit.
// NewBalance is filled in once the profits are committed.
func (s *SettlementService) buildLeaderboard(buyIn int64, members []models.LobbyPlayer, profiles map[string]models.Profile) ([]models.LeaderboardRow, map[string]int64) {
	ranked := make([]models.LobbyPlayer, len(members))
	copy(ranked, members)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.PointsEarned != b.PointsEarned {
			return a.PointsEarned > b.PointsEarned
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.UserID < b.UserID
	})

	points := make([]int64, len(ranked))
	for i, m := range ranked {
		points[i] = m.PointsEarned
	}
	payouts := s.scoring.AllocatePayouts(buyIn*int64(len(ranked)), points)

	rows := make([]models.LeaderboardRow, len(ranked))
	profits := make(map[string]int64, len(ranked))
	for i, m := range ranked {
		p := profiles[m.UserID]
		profit := payouts[i] - buyIn
		rows[i] = models.LeaderboardRow{
			Rank:               i + 1,
			UserID:             m.UserID,
			Username:           models.DisplayName(m.UserID, p.Username),
			PointsEarned:       m.PointsEarned,
			CorrectBets:        m.CorrectBets,
			QuestionsAttempted: m.QuestionsAttempted,
			Payout:             payouts[i],
			Profit:             profit,
			Accuracy:           m.Accuracy(),
		}
		profits[m.UserID] = profit
	}
	return rows, profits
}

func (s *SettlementService) cacheResult(ctx context.Context, res *SettlementResult) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, res.LobbyID, data); err != nil {
		s.log.Warn("leaderboard cache write failed", "lobby_id", res.LobbyID, "error", err)
	}
}

// GetLeaderboard returns the settled result, from cache when available.
func (s *SettlementService) GetLeaderboard(ctx context.Context, lobbyID string) (*SettlementResult, error) {
	if s.cache != nil {
		data, ok, err := s.cache.Get(ctx, lobbyID)
		if err != nil {
			s.log.Warn("leaderboard cache read failed", "lobby_id", lobbyID, "error", err)
		}
		if ok {
			var res SettlementResult
			if err := json.Unmarshal(data, &res); err == nil {
				return &res, nil
			}
		}
	}

	st, err := s.store.GetSettlement(ctx, lobbyID)
	if errors.Is(err, store.ErrNotFound) {
		if _, err := s.lobbies.GetLobby(ctx, lobbyID); err != nil {
			return nil, err
		}
		return nil, ErrNotSettled
	}
	if err != nil {
		return nil, storeError(err, ErrLobbyNotFound)
	}
	res := resultFrom(st)
	s.cacheResult(ctx, res)
	return res, nil
}
