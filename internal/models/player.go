package models

import "time"

// LobbyPlayer is one membership row: a player's accumulators within a lobby.
type LobbyPlayer struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	LobbyID            string     `gorm:"size:36;not null;uniqueIndex:idx_lobby_player" json:"lobby_id"`
	UserID             string     `gorm:"size:64;not null;uniqueIndex:idx_lobby_player" json:"user_id"`
	PointsEarned       int64      `gorm:"not null;default:0" json:"points_earned"`
	CorrectBets        int        `gorm:"not null;default:0" json:"correct_bets"`
	QuestionsAttempted int        `gorm:"not null;default:0" json:"questions_attempted"`
	JoinedAt           time.Time  `json:"joined_at"`
	LeftAt             *time.Time `json:"left_at,omitempty"`
	Version            int64      `gorm:"not null;default:1" json:"version"`
}

// Accuracy is correct answers over attempted ones, 0 when nothing was attempted.
func (p *LobbyPlayer) Accuracy() float64 {
	if p.QuestionsAttempted == 0 {
		return 0
	}
	return float64(p.CorrectBets) / float64(p.QuestionsAttempted)
}
