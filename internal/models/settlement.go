package models

import "time"

// Settlement marks a lobby as settled. The stored leaderboard bytes are
// returned verbatim on every later read.
type Settlement struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	LobbyID     string    `gorm:"size:36;not null;uniqueIndex" json:"lobby_id"`
	Pool        int64     `gorm:"not null" json:"pool"`
	BuyIn       int64     `gorm:"not null" json:"buy_in"`
	Leaderboard []byte    `gorm:"type:jsonb;not null" json:"-"`
	SettledAt   time.Time `json:"settled_at"`
}

func (Settlement) TableName() string { return "lobby_settlements" }

type LeaderboardRow struct {
	Rank               int     `json:"rank"`
	UserID             string  `json:"user_id"`
	Username           string  `json:"username"`
	PointsEarned       int64   `json:"points_earned"`
	CorrectBets        int     `json:"correct_bets"`
	QuestionsAttempted int     `json:"questions_attempted"`
	Payout             int64   `json:"payout"`
	Profit             int64   `json:"profit"`
	NewBalance         int64   `json:"new_balance"`
	Accuracy           float64 `json:"accuracy"`
}
