package models

import "time"

type Lobby struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	Code            string     `gorm:"size:6;index" json:"code"`
	OwnerID         string     `gorm:"size:64;not null;index" json:"owner_id"`
	GameID          string     `gorm:"size:64" json:"game_id,omitempty"`
	BuyIn           int64      `gorm:"not null;default:0" json:"buy_in"`
	MaxPlayers      int        `gorm:"not null;default:5" json:"max_players"`
	Status          string     `gorm:"size:20;not null;default:'waiting';index" json:"status"`
	CurrentQuestion *Question  `gorm:"type:jsonb;serializer:json" json:"current_question"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Version         int64      `gorm:"not null;default:1" json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

const (
	LobbyStatusWaiting   = "waiting"
	LobbyStatusActive    = "active"
	LobbyStatusFinished  = "finished"
	LobbyStatusCancelled = "cancelled"
)

// IsClosed reports whether the lobby reached a terminal status.
func (l *Lobby) IsClosed() bool {
	return l.Status == LobbyStatusFinished || l.Status == LobbyStatusCancelled
}

// Clone returns a deep copy so callers can mutate it without touching stored state.
func (l *Lobby) Clone() *Lobby {
	if l == nil {
		return nil
	}
	cp := *l
	if l.CurrentQuestion != nil {
		q := *l.CurrentQuestion
		cp.CurrentQuestion = &q
	}
	if l.StartedAt != nil {
		t := *l.StartedAt
		cp.StartedAt = &t
	}
	if l.FinishedAt != nil {
		t := *l.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

// LobbyUpdate is a partial write of the lobby row. Nil fields are left as is;
// ClearQuestion sets current_question to null.
type LobbyUpdate struct {
	Status          *string
	CurrentQuestion *Question
	ClearQuestion   bool
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// Apply copies the set fields onto l.
func (u LobbyUpdate) Apply(l *Lobby) {
	if u.Status != nil {
		l.Status = *u.Status
	}
	if u.ClearQuestion {
		l.CurrentQuestion = nil
	}
	if u.CurrentQuestion != nil {
		q := *u.CurrentQuestion
		l.CurrentQuestion = &q
	}
	if u.StartedAt != nil {
		t := *u.StartedAt
		l.StartedAt = &t
	}
	if u.FinishedAt != nil {
		t := *u.FinishedAt
		l.FinishedAt = &t
	}
}
