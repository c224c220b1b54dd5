package play

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/services"
	"github.com/akshitk26/gamepulse/internal/ws"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

// Remote talks to a gamepulse server over HTTP and websockets.
type Remote struct {
	baseURL string
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
	log     *slog.Logger
}

func NewRemote(baseURL, token string, log *slog.Logger) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		log:     log,
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (r *Remote) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return &services.Error{Kind: services.KindTransient, Code: services.CodeStoreUnavailable, Message: "server unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Code == "" {
			return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
		}
		return services.FromCode(services.Code(eb.Code), eb.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *Remote) Fetch(ctx context.Context, lobbyID string) (*models.LobbyView, error) {
	var out struct {
		Lobby *models.LobbyView `json:"lobby"`
	}
	if err := r.do(ctx, http.MethodGet, "/api/v1/lobbies/"+url.PathEscape(lobbyID), nil, &out); err != nil {
		return nil, err
	}
	if out.Lobby == nil {
		return nil, services.ErrLobbyNotFound
	}
	return out.Lobby, nil
}

func (r *Remote) Submit(ctx context.Context, lobbyID, questionKey, choice string) (*services.AnswerResult, error) {
	var out services.AnswerResult
	body := map[string]string{"question_key": questionKey, "choice": choice}
	if err := r.do(ctx, http.MethodPost, "/api/v1/lobbies/"+url.PathEscape(lobbyID)+"/answers", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Join joins by code or id and returns the lobby id.
func (r *Remote) Join(ctx context.Context, codeOrID string) (string, error) {
	var out struct {
		LobbyID string `json:"lobby_id"`
	}
	if err := r.do(ctx, http.MethodPost, "/api/v1/lobbies/join", map[string]string{"code": codeOrID}, &out); err != nil {
		return "", err
	}
	return out.LobbyID, nil
}

func (r *Remote) wsURL(lobbyID string) (string, error) {
	u, err := url.Parse(r.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/lobbies/" + url.PathEscape(lobbyID)
	return u.String(), nil
}

func (r *Remote) authHeader() http.Header {
	if r.token == "" {
		return nil
	}
	return http.Header{"Authorization": []string{"Bearer " + r.token}}
}

func (r *Remote) dial(ctx context.Context, target string) (*websocket.Conn, error) {
	return backoff.Retry(ctx, func() (*websocket.Conn, error) {
		conn, resp, err := r.dialer.DialContext(ctx, target, r.authHeader())
		if err != nil {
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return conn, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
}

// Subscribe opens the lobby websocket and redials on disconnect until the
// returned func is called or ctx ends.
func (r *Remote) Subscribe(ctx context.Context, lobbyID string, fn func(*models.LobbyView)) (func(), error) {
	target, err := r.wsURL(lobbyID)
	if err != nil {
		return nil, err
	}
	conn, err := r.dial(ctx, target)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	var (
		mu   sync.Mutex
		cur  = conn
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		for {
			mu.Lock()
			c := cur
			mu.Unlock()
			r.readLoop(c, fn)
			if ctx.Err() != nil {
				return
			}
			next, err := r.dial(ctx, target)
			if err != nil {
				r.log.Warn("lobby push lost", "lobby_id", lobbyID, "error", err)
				return
			}
			mu.Lock()
			cur = next
			mu.Unlock()
			if ctx.Err() != nil {
				next.Close()
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		mu.Lock()
		cur.Close()
		mu.Unlock()
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (r *Remote) readLoop(conn *websocket.Conn, fn func(*models.LobbyView)) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != ws.MessageTypeLobby {
			continue
		}
		var l models.LobbyView
		if err := json.Unmarshal(msg.Data, &l); err != nil {
			r.log.Warn("bad lobby push", "error", err)
			continue
		}
		fn(&l)
	}
}
