// Package store defines the record store the lobby pipeline persists through.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrConflict  = errors.New("store: version conflict")
	ErrCapacity  = errors.New("store: lobby is full")
	ErrClosed    = errors.New("store: lobby is closed")
	ErrDuplicate = errors.New("store: duplicate")
)

// RenderFunc builds the leaderboard bytes from post-settlement balances.
type RenderFunc func(balances map[string]int64) ([]byte, error)

// Store is the durable record store. Implementations must make AddMember,
// UpdateLobby, RecordAnswer and CommitSettlement atomic.
type Store interface {
	// CreateLobby inserts a lobby. ErrDuplicate when the code is taken by
	// another waiting or active lobby.
	CreateLobby(ctx context.Context, lobby *models.Lobby) error
	GetLobby(ctx context.Context, id string) (*models.Lobby, error)
	// GetLobbyByCode only resolves waiting and active lobbies.
	GetLobbyByCode(ctx context.Context, code string) (*models.Lobby, error)
	// UpdateLobby applies u when the stored version equals expectedVersion and
	// bumps the version. ErrConflict otherwise.
	UpdateLobby(ctx context.Context, id string, expectedVersion int64, u models.LobbyUpdate) (*models.Lobby, error)

	// AddMember inserts a membership after checking, in the same transaction,
	// that the lobby is open and below capacity. An existing membership is
	// returned with created=false and no capacity check.
	AddMember(ctx context.Context, lobbyID, userID string, now time.Time) (member *models.LobbyPlayer, created bool, err error)
	RemoveMember(ctx context.Context, lobbyID, userID string) error
	SoftRemoveMember(ctx context.Context, lobbyID, userID string, at time.Time) error
	GetMember(ctx context.Context, lobbyID, userID string) (*models.LobbyPlayer, error)
	// ListMembers returns every membership ordered by join time.
	ListMembers(ctx context.Context, lobbyID string) ([]models.LobbyPlayer, error)
	CountMembers(ctx context.Context, lobbyID string) (int, error)

	// RecordAnswer inserts the claim and increments the accumulators in one
	// transaction. ErrDuplicate when the claim already exists.
	RecordAnswer(ctx context.Context, claim models.AnswerClaim, delta int64, correct bool) (*models.LobbyPlayer, error)
	AppendAnswerRecord(ctx context.Context, rec *models.AnswerRecord) error
	ListAnswerRecords(ctx context.Context, lobbyID, userID string) ([]models.AnswerRecord, error)

	GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error)

	// UpsertProfile inserts p, or updates only the username of an existing
	// profile. Balances are written by CommitSettlement alone. p is refreshed
	// from the stored row.
	UpsertProfile(ctx context.Context, p *models.Profile) error

	GetSettlement(ctx context.Context, lobbyID string) (*models.Settlement, error)
	// CommitSettlement stores s and adds each profit to the player's balance
	// in one transaction, creating missing profiles. render receives the
	// balances after the increment and returns the leaderboard bytes stored
	// on s. When the lobby is already settled the stored settlement is
	// returned with created=false and no balance is touched.
	CommitSettlement(ctx context.Context, s *models.Settlement, profits map[string]int64, render RenderFunc) (stored *models.Settlement, created bool, err error)

	Close() error
}
