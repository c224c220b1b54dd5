package handlers

import (
	"log/slog"
	"net/http"

	"github.com/akshitk26/gamepulse/internal/services"
	"github.com/akshitk26/gamepulse/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	hub          *ws.Hub
	lobbyService *services.LobbyService
	log          *slog.Logger
}

func NewWSHandler(hub *ws.Hub, lobbyService *services.LobbyService, log *slog.Logger) *WSHandler {
	return &WSHandler{hub: hub, lobbyService: lobbyService, log: log}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket godoc
// @Summary      Watch a lobby
// @Description  Upgrade to a websocket that streams every write of one lobby row, current row first. Browsers may pass the token as a query parameter.
// @Tags         lobbies
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Param        token query string false "JWT when the Authorization header cannot be set"
// @Success      101
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /ws/lobbies/{id} [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	lobby, err := h.lobbyService.GetLobby(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	if err := conn.WriteJSON(ws.WSMessage{Type: ws.MessageTypeLobby, Data: lobby.View()}); err != nil {
		conn.Close()
		return
	}
	h.hub.AddConnection(lobby.ID, conn)
	defer h.hub.RemoveConnection(lobby.ID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
