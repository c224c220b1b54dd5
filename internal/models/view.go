package models

import "time"

// QuestionView is the question as players and observers see it. The correct
// answer never leaves the server; Key is what answers are submitted against.
type QuestionView struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Text        string    `json:"text"`
	Tip         string    `json:"tip,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

func (q *Question) View() *QuestionView {
	if q == nil {
		return nil
	}
	return &QuestionView{
		ID:          q.ID,
		Key:         q.Key(),
		Text:        q.Text,
		Tip:         q.Tip,
		PublishedAt: q.PublishedAt,
	}
}

// LobbyView is the public shape of a lobby row, sent over HTTP and websocket.
type LobbyView struct {
	ID              string        `json:"id"`
	Code            string        `json:"code"`
	OwnerID         string        `json:"owner_id"`
	GameID          string        `json:"game_id,omitempty"`
	BuyIn           int64         `json:"buy_in"`
	MaxPlayers      int           `json:"max_players"`
	Status          string        `json:"status"`
	CurrentQuestion *QuestionView `json:"current_question"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
	Version         int64         `json:"version"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// View redacts l for clients. The result shares no memory with l.
func (l *Lobby) View() *LobbyView {
	if l == nil {
		return nil
	}
	c := l.Clone()
	return &LobbyView{
		ID:              c.ID,
		Code:            c.Code,
		OwnerID:         c.OwnerID,
		GameID:          c.GameID,
		BuyIn:           c.BuyIn,
		MaxPlayers:      c.MaxPlayers,
		Status:          c.Status,
		CurrentQuestion: c.CurrentQuestion.View(),
		StartedAt:       c.StartedAt,
		FinishedAt:      c.FinishedAt,
		Version:         c.Version,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func (v *LobbyView) IsClosed() bool {
	return v.Status == LobbyStatusFinished || v.Status == LobbyStatusCancelled
}

func (v *LobbyView) Clone() *LobbyView {
	if v == nil {
		return nil
	}
	cp := *v
	if v.CurrentQuestion != nil {
		q := *v.CurrentQuestion
		cp.CurrentQuestion = &q
	}
	if v.StartedAt != nil {
		t := *v.StartedAt
		cp.StartedAt = &t
	}
	if v.FinishedAt != nil {
		t := *v.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
