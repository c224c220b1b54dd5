package ws

import (
	"io"
	"log/slog"
	"testing"

	"github.com/akshitk26/gamepulse/internal/models"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubscribeReceivesOwnLobbyOnly(t *testing.T) {
	h := testHub()
	var got []int64
	unsub := h.Subscribe("a", func(l *models.Lobby) { got = append(got, l.Version) })

	h.Publish(&models.Lobby{ID: "a", Version: 1})
	h.Publish(&models.Lobby{ID: "b", Version: 7})
	h.Publish(&models.Lobby{ID: "a", Version: 2})

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("versions = %v, want [1 2]", got)
	}

	unsub()
	unsub()
	h.Publish(&models.Lobby{ID: "a", Version: 3})
	if len(got) != 2 {
		t.Fatalf("received after unsubscribe: %v", got)
	}
	if _, ok := h.subs["a"]; ok {
		t.Fatal("empty subscriber set not removed")
	}
}

func TestPublishHandsOutCopies(t *testing.T) {
	h := testHub()
	defer h.Subscribe("a", func(l *models.Lobby) { l.Status = "mutated" })()

	lobby := &models.Lobby{ID: "a", Status: models.LobbyStatusActive}
	h.Publish(lobby)
	if lobby.Status != models.LobbyStatusActive {
		t.Fatalf("status = %q, subscriber mutated the published row", lobby.Status)
	}
}

func TestPublishNil(t *testing.T) {
	h := testHub()
	h.Publish(nil)
	if n := h.Connections("a"); n != 0 {
		t.Fatalf("Connections = %d, want 0", n)
	}
}
