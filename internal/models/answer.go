package models

import "time"

// AnswerClaim guarantees at most one scored answer per player and question.
// It is written in the same transaction as the accumulator increment.
type AnswerClaim struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	LobbyID     string    `gorm:"size:36;not null;uniqueIndex:idx_answer_claim" json:"lobby_id"`
	UserID      string    `gorm:"size:64;not null;uniqueIndex:idx_answer_claim" json:"user_id"`
	QuestionKey string    `gorm:"size:64;not null;uniqueIndex:idx_answer_claim" json:"question_key"`
	ClaimedAt   time.Time `json:"claimed_at"`
}

// AnswerRecord is the append-only answer log. Writes are best-effort.
type AnswerRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	LobbyID      string    `gorm:"size:36;not null;index:idx_answer_log" json:"lobby_id"`
	UserID       string    `gorm:"size:64;not null;index:idx_answer_log" json:"user_id"`
	QuestionKey  string    `gorm:"size:64;not null" json:"question_key"`
	QuestionText string    `gorm:"type:text" json:"question_text"`
	Answer       string    `gorm:"size:8;not null" json:"answer"`
	IsCorrect    bool      `gorm:"not null" json:"is_correct"`
	PointsDelta  int64     `gorm:"not null" json:"points_delta"`
	AnsweredAt   time.Time `gorm:"index:idx_answer_log" json:"answered_at"`
}

func (AnswerRecord) TableName() string { return "lobby_answers" }
