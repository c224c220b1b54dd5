package play

import (
	"context"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/services"
	"github.com/akshitk26/gamepulse/internal/ws"
)

// Local connects a player to services running in the same process.
type Local struct {
	Lobbies *services.LobbyService
	Answers *services.AnswerService
	Hub     *ws.Hub
	UserID  string
}

func (l *Local) Fetch(ctx context.Context, lobbyID string) (*models.LobbyView, error) {
	lobby, err := l.Lobbies.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	return lobby.View(), nil
}

func (l *Local) Subscribe(_ context.Context, lobbyID string, fn func(*models.LobbyView)) (func(), error) {
	return l.Hub.Subscribe(lobbyID, func(lobby *models.Lobby) {
		fn(lobby.View())
	}), nil
}

func (l *Local) Submit(ctx context.Context, lobbyID, questionKey, choice string) (*services.AnswerResult, error) {
	return l.Answers.SubmitAnswer(ctx, lobbyID, l.UserID, questionKey, choice)
}
