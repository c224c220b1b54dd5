package models

import "time"

type Profile struct {
	UserID    string    `gorm:"primaryKey;size:64" json:"user_id"`
	Username  string    `gorm:"size:100" json:"username"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName falls back to a shortened user id when no username is set.
func DisplayName(userID, username string) string {
	if username != "" {
		return username
	}
	if len(userID) > 8 {
		return userID[:8]
	}
	return userID
}
