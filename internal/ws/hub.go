package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/akshitk26/gamepulse/internal/models"

	"github.com/gorilla/websocket"
)

const MessageTypeLobby = "lobby"

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type subscriber struct {
	fn func(*models.Lobby)
}

// Hub fans lobby rows out to websocket connections and in-process
// subscribers, keyed by lobby id.
type Hub struct {
	log *slog.Logger

	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]bool
	subs  map[string]map[*subscriber]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:   log,
		conns: make(map[string]map[*websocket.Conn]bool),
		subs:  make(map[string]map[*subscriber]struct{}),
	}
}

func (h *Hub) AddConnection(lobbyID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[lobbyID] == nil {
		h.conns[lobbyID] = make(map[*websocket.Conn]bool)
	}
	h.conns[lobbyID][conn] = true
	h.log.Debug("ws client connected", "lobby_id", lobbyID, "total", len(h.conns[lobbyID]))
}

func (h *Hub) RemoveConnection(lobbyID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[lobbyID]; ok {
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(h.conns, lobbyID)
		}
		h.log.Debug("ws client disconnected", "lobby_id", lobbyID)
	}
}

// Subscribe registers fn for every row published for lobbyID. The returned
// func unsubscribes and is safe to call more than once.
func (h *Hub) Subscribe(lobbyID string, fn func(*models.Lobby)) func() {
	sub := &subscriber{fn: fn}
	h.mu.Lock()
	if h.subs[lobbyID] == nil {
		h.subs[lobbyID] = make(map[*subscriber]struct{})
	}
	h.subs[lobbyID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.subs[lobbyID]; ok {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(h.subs, lobbyID)
				}
			}
		})
	}
}

// Publish delivers a lobby row to every observer of that lobby. Subscribers
// are called outside the hub lock, each with its own copy.
func (h *Hub) Publish(lobby *models.Lobby) {
	if lobby == nil {
		return
	}
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs[lobby.ID]))
	for s := range h.subs[lobby.ID] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.fn(lobby.Clone())
	}
	h.Broadcast(lobby.ID, WSMessage{Type: MessageTypeLobby, Data: lobby.View()})
}

func (h *Hub) Broadcast(lobbyID string, message WSMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("ws marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[lobbyID] {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn("ws write failed", "lobby_id", lobbyID, "error", err)
			conn.Close()
			delete(h.conns[lobbyID], conn)
		}
	}
	if len(h.conns[lobbyID]) == 0 {
		delete(h.conns, lobbyID)
	}
}

// Connections returns the number of websocket clients for a lobby.
func (h *Hub) Connections(lobbyID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[lobbyID])
}
