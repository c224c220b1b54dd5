// Package gormstore implements store.Store on PostgreSQL through gorm.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New wraps db. The connection should be opened with TranslateError so
// unique violations surface as gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) CreateLobby(ctx context.Context, lobby *models.Lobby) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Lobby{}).
			Where("UPPER(code) = UPPER(?) AND status IN ?", lobby.Code,
				[]string{models.LobbyStatusWaiting, models.LobbyStatusActive}).
			Count(&count).Error; err != nil {
			return fmt.Errorf("gormstore: check code: %w", err)
		}
		if count > 0 {
			return store.ErrDuplicate
		}
		if lobby.Version == 0 {
			lobby.Version = 1
		}
		if err := tx.Create(lobby).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return store.ErrDuplicate
			}
			return fmt.Errorf("gormstore: create lobby: %w", err)
		}
		return nil
	})
}

func (s *Store) GetLobby(ctx context.Context, id string) (*models.Lobby, error) {
	var l models.Lobby
	if err := s.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (s *Store) GetLobbyByCode(ctx context.Context, code string) (*models.Lobby, error) {
	var l models.Lobby
	if err := s.db.WithContext(ctx).
		Where("UPPER(code) = UPPER(?) AND status IN ?", code,
			[]string{models.LobbyStatusWaiting, models.LobbyStatusActive}).
		Order("created_at DESC").
		First(&l).Error; err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func lobbyAssignments(u models.LobbyUpdate) (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	if u.ClearQuestion {
		updates["current_question"] = gorm.Expr("NULL")
	}
	if u.CurrentQuestion != nil {
		b, err := json.Marshal(u.CurrentQuestion)
		if err != nil {
			return nil, fmt.Errorf("gormstore: encode question: %w", err)
		}
		updates["current_question"] = string(b)
	}
	if u.StartedAt != nil {
		updates["started_at"] = *u.StartedAt
	}
	if u.FinishedAt != nil {
		updates["finished_at"] = *u.FinishedAt
	}
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = time.Now()
	return updates, nil
}

func (s *Store) UpdateLobby(ctx context.Context, id string, expectedVersion int64, u models.LobbyUpdate) (*models.Lobby, error) {
	updates, err := lobbyAssignments(u)
	if err != nil {
		return nil, err
	}
	var out models.Lobby
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Lobby{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("gormstore: update lobby: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Lobby{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("gormstore: update lobby: %w", err)
			}
			if count == 0 {
				return store.ErrNotFound
			}
			return store.ErrConflict
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) AddMember(ctx context.Context, lobbyID, userID string, now time.Time) (*models.LobbyPlayer, bool, error) {
	var (
		member  models.LobbyPlayer
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lobby models.Lobby
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&lobby, "id = ?", lobbyID).Error; err != nil {
			return notFound(err)
		}
		if lobby.IsClosed() {
			return store.ErrClosed
		}

		err := tx.Where("lobby_id = ? AND user_id = ?", lobbyID, userID).First(&member).Error
		if err == nil {
			if member.LeftAt != nil {
				member.LeftAt = nil
				return tx.Model(&member).Updates(map[string]interface{}{
					"left_at": nil,
					"version": gorm.Expr("version + 1"),
				}).Error
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("gormstore: find member: %w", err)
		}

		var count int64
		if err := tx.Model(&models.LobbyPlayer{}).Where("lobby_id = ?", lobbyID).Count(&count).Error; err != nil {
			return fmt.Errorf("gormstore: count members: %w", err)
		}
		if count >= int64(lobby.MaxPlayers) {
			return store.ErrCapacity
		}

		member = models.LobbyPlayer{
			LobbyID:  lobbyID,
			UserID:   userID,
			JoinedAt: now,
			Version:  1,
		}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("gormstore: insert member: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &member, created, nil
}

func (s *Store) RemoveMember(ctx context.Context, lobbyID, userID string) error {
	res := s.db.WithContext(ctx).
		Where("lobby_id = ? AND user_id = ?", lobbyID, userID).
		Delete(&models.LobbyPlayer{})
	if res.Error != nil {
		return fmt.Errorf("gormstore: delete member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SoftRemoveMember(ctx context.Context, lobbyID, userID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.LobbyPlayer{}).
		Where("lobby_id = ? AND user_id = ?", lobbyID, userID).
		Updates(map[string]interface{}{
			"left_at": at,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("gormstore: soft delete member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetMember(ctx context.Context, lobbyID, userID string) (*models.LobbyPlayer, error) {
	var m models.LobbyPlayer
	if err := s.db.WithContext(ctx).
		Where("lobby_id = ? AND user_id = ?", lobbyID, userID).
		First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *Store) ListMembers(ctx context.Context, lobbyID string) ([]models.LobbyPlayer, error) {
	var members []models.LobbyPlayer
	if err := s.db.WithContext(ctx).
		Where("lobby_id = ?", lobbyID).
		Order("joined_at ASC, id ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("gormstore: list members: %w", err)
	}
	return members, nil
}

func (s *Store) CountMembers(ctx context.Context, lobbyID string) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.LobbyPlayer{}).
		Where("lobby_id = ?", lobbyID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("gormstore: count members: %w", err)
	}
	return int(count), nil
}

func (s *Store) RecordAnswer(ctx context.Context, claim models.AnswerClaim, delta int64, correct bool) (*models.LobbyPlayer, error) {
	var member models.LobbyPlayer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if claim.ClaimedAt.IsZero() {
			claim.ClaimedAt = time.Now()
		}
		if err := tx.Create(&claim).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return store.ErrDuplicate
			}
			return fmt.Errorf("gormstore: insert claim: %w", err)
		}

		correctInc := 0
		if correct {
			correctInc = 1
		}
		res := tx.Model(&models.LobbyPlayer{}).
			Where("lobby_id = ? AND user_id = ?", claim.LobbyID, claim.UserID).
			Updates(map[string]interface{}{
				"points_earned":       gorm.Expr("points_earned + ?", delta),
				"correct_bets":        gorm.Expr("correct_bets + ?", correctInc),
				"questions_attempted": gorm.Expr("questions_attempted + 1"),
				"version":             gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("gormstore: increment stats: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return tx.Where("lobby_id = ? AND user_id = ?", claim.LobbyID, claim.UserID).First(&member).Error
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *Store) AppendAnswerRecord(ctx context.Context, rec *models.AnswerRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("gormstore: append answer: %w", err)
	}
	return nil
}

func (s *Store) ListAnswerRecords(ctx context.Context, lobbyID, userID string) ([]models.AnswerRecord, error) {
	q := s.db.WithContext(ctx).Where("lobby_id = ?", lobbyID)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var records []models.AnswerRecord
	if err := q.Order("answered_at ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("gormstore: list answers: %w", err)
	}
	return records, nil
}

func (s *Store) GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("gormstore: get profiles: %w", err)
	}
	for _, p := range profiles {
		out[p.UserID] = p
	}
	return out, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p *models.Profile) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
	}, clause.Returning{}).Create(p).Error
	if err != nil {
		return fmt.Errorf("gormstore: upsert profile: %w", err)
	}
	return nil
}

func (s *Store) GetSettlement(ctx context.Context, lobbyID string) (*models.Settlement, error) {
	var st models.Settlement
	if err := s.db.WithContext(ctx).First(&st, "lobby_id = ?", lobbyID).Error; err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (s *Store) CommitSettlement(ctx context.Context, st *models.Settlement, profits map[string]int64, render store.RenderFunc) (*models.Settlement, bool, error) {
	out := *st
	out.Leaderboard = []byte("[]")
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&out).Error; err != nil {
			return err
		}

		balances := make(map[string]int64, len(profits))
		if len(profits) > 0 {
			ids := make([]string, 0, len(profits))
			for userID := range profits {
				ids = append(ids, userID)
			}
			// fixed lock order across concurrent settlements
			sort.Strings(ids)
			now := time.Now()
			profiles := make([]models.Profile, len(ids))
			for i, userID := range ids {
				profiles[i] = models.Profile{UserID: userID, Balance: profits[userID], UpdatedAt: now}
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"balance":    gorm.Expr("profiles.balance + excluded.balance"),
					"updated_at": now,
				}),
			}).Create(&profiles).Error; err != nil {
				return fmt.Errorf("gormstore: credit balances: %w", err)
			}

			var credited []models.Profile
			if err := tx.Where("user_id IN ?", ids).Find(&credited).Error; err != nil {
				return fmt.Errorf("gormstore: read balances: %w", err)
			}
			for _, p := range credited {
				balances[p.UserID] = p.Balance
			}
		}

		data, err := render(balances)
		if err != nil {
			return err
		}
		out.Leaderboard = data
		return tx.Model(&models.Settlement{}).Where("id = ?", out.ID).Update("leaderboard", data).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, getErr := s.GetSettlement(ctx, st.LobbyID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("gormstore: commit settlement: %w", err)
	}
	return &out, true, nil
}
