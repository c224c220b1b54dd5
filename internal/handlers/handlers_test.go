package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/services"
	"github.com/akshitk26/gamepulse/internal/store/memstore"
	"github.com/akshitk26/gamepulse/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type testServer struct {
	router *gin.Engine
	auth   *services.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memstore.New()
	hub := ws.NewHub(log)
	auth := services.NewAuthService("test-secret")
	scoring := services.NewScoringService(20, 0)
	lobbies := services.NewLobbyService(st, hub, log, 5)
	answers := services.NewAnswerService(st, nil, scoring, log)
	settlement := services.NewSettlementService(st, lobbies, scoring, nil, log)
	feed := services.NewQuestionFeed(lobbies, settlement, log, time.Hour)
	t.Cleanup(feed.Shutdown)

	return &testServer{
		router: NewRouter(Deps{
			Auth:       auth,
			Lobbies:    lobbies,
			Answers:    answers,
			Settlement: settlement,
			Feed:       feed,
			Hub:        hub,
			Log:        log,
		}),
		auth: auth,
	}
}

func (s *testServer) token(t *testing.T, user string) string {
	t.Helper()
	tok, err := s.auth.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

// do sends a request as user (no auth header when user is empty) and decodes
// the JSON response into out when out is non-nil.
func (s *testServer) do(t *testing.T, user, method, path string, body, out interface{}) int {
	t.Helper()
	code, raw := s.raw(t, user, method, path, body)
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return code
}

func (s *testServer) raw(t *testing.T, user, method, path string, body interface{}) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, user))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w.Code, w.Body.Bytes()
}

func TestLobbyFlow(t *testing.T) {
	s := newTestServer(t)

	var lobby models.LobbyView
	if code := s.do(t, "host", http.MethodPost, "/api/v1/lobbies", CreateLobbyRequest{BuyIn: 20, MaxPlayers: 3}, &lobby); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	base := "/api/v1/lobbies/" + lobby.ID

	for _, p := range []string{"p1", "p2"} {
		var joined struct {
			LobbyID string `json:"lobby_id"`
		}
		if code := s.do(t, p, http.MethodPost, "/api/v1/lobbies/join", JoinLobbyRequest{Code: lobby.Code}, &joined); code != http.StatusOK || joined.LobbyID != lobby.ID {
			t.Fatalf("join %s = %d %q", p, code, joined.LobbyID)
		}
	}

	var errResp ErrorResponse
	if code := s.do(t, "p3", http.MethodPost, "/api/v1/lobbies/join", JoinLobbyRequest{Code: lobby.Code}, &errResp); code != http.StatusConflict || errResp.Code != "LOBBY_FULL" {
		t.Fatalf("4th join = %d %+v", code, errResp)
	}
	if code := s.do(t, "p1", http.MethodPost, base+"/start", nil, &errResp); code != http.StatusForbidden || errResp.Code != "NOT_OWNER" {
		t.Fatalf("non-owner start = %d %+v", code, errResp)
	}
	if code := s.do(t, "host", http.MethodPost, base+"/start", nil, nil); code != http.StatusOK {
		t.Fatalf("start = %d", code)
	}

	var published struct {
		QuestionKey string `json:"question_key"`
	}
	q := QuestionRequest{Text: "Will the keeper save a penalty?", CorrectAnswer: "yes"}
	if code := s.do(t, "host", http.MethodPost, base+"/questions", q, &published); code != http.StatusOK || published.QuestionKey == "" {
		t.Fatalf("publish = %d %+v", code, published)
	}

	for user, choice := range map[string]string{"host": "yes", "p1": "no", "p2": "no"} {
		var res services.AnswerResult
		req := SubmitAnswerRequest{QuestionKey: published.QuestionKey, Choice: choice}
		if code := s.do(t, user, http.MethodPost, base+"/answers", req, &res); code != http.StatusOK {
			t.Fatalf("answer %s = %d", user, code)
		}
	}
	dup := SubmitAnswerRequest{QuestionKey: published.QuestionKey, Choice: "yes"}
	if code := s.do(t, "p1", http.MethodPost, base+"/answers", dup, &errResp); code != http.StatusConflict || errResp.Code != "ALREADY_ANSWERED" {
		t.Fatalf("duplicate answer = %d %+v", code, errResp)
	}

	if code := s.do(t, "host", http.MethodGet, base+"/leaderboard", nil, &errResp); code != http.StatusConflict || errResp.Code != "NOT_SETTLED" {
		t.Fatalf("leaderboard before settle = %d %+v", code, errResp)
	}

	var settled struct {
		Pool        int64                   `json:"pool"`
		Leaderboard []models.LeaderboardRow `json:"leaderboard"`
	}
	if code := s.do(t, "host", http.MethodPost, base+"/settle", nil, &settled); code != http.StatusOK {
		t.Fatalf("settle = %d", code)
	}
	if settled.Pool != 60 || len(settled.Leaderboard) != 3 || settled.Leaderboard[0].UserID != "host" || settled.Leaderboard[0].Payout != 60 {
		t.Fatalf("settled = %+v", settled)
	}

	var view LobbyResponse
	if code := s.do(t, "p1", http.MethodGet, base, nil, &view); code != http.StatusOK || view.Lobby.Status != models.LobbyStatusFinished || len(view.Players) != 3 {
		t.Fatalf("get = %d %+v", code, view)
	}

	var stats struct {
		Stats    models.LobbyPlayer `json:"stats"`
		Accuracy float64            `json:"accuracy"`
	}
	if code := s.do(t, "host", http.MethodGet, base+"/stats", nil, &stats); code != http.StatusOK || stats.Stats.PointsEarned != 20 || stats.Accuracy != 1 {
		t.Fatalf("stats = %d %+v", code, stats)
	}
}

func TestQuestionAnswerHidden(t *testing.T) {
	s := newTestServer(t)

	var lobby models.LobbyView
	if code := s.do(t, "host", http.MethodPost, "/api/v1/lobbies", CreateLobbyRequest{BuyIn: 10}, &lobby); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	base := "/api/v1/lobbies/" + lobby.ID
	if code := s.do(t, "p1", http.MethodPost, "/api/v1/lobbies/join", JoinLobbyRequest{Code: lobby.Code}, nil); code != http.StatusOK {
		t.Fatalf("join = %d", code)
	}
	if code := s.do(t, "host", http.MethodPost, base+"/start", nil, nil); code != http.StatusOK {
		t.Fatalf("start = %d", code)
	}
	var published PublishResponse
	q := QuestionRequest{Text: "Red card before half time?", CorrectAnswer: "no"}
	if code := s.do(t, "host", http.MethodPost, base+"/questions", q, &published); code != http.StatusOK {
		t.Fatalf("publish = %d", code)
	}

	code, body := s.raw(t, "p1", http.MethodGet, base, nil)
	if code != http.StatusOK {
		t.Fatalf("get = %d", code)
	}
	if bytes.Contains(body, []byte("correct_answer")) {
		t.Fatalf("lobby body leaks the answer: %s", body)
	}
	var view LobbyResponse
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Lobby.CurrentQuestion == nil || view.Lobby.CurrentQuestion.Key != published.QuestionKey {
		t.Fatalf("current question = %+v, want key %q", view.Lobby.CurrentQuestion, published.QuestionKey)
	}

	srv := httptest.NewServer(s.router)
	defer srv.Close()
	target := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/lobbies/" + lobby.ID

	if _, resp, err := websocket.DefaultDialer.Dial(target, nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without token = %v, want 401", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(target+"?token="+s.token(t, "p1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, first, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if bytes.Contains(first, []byte("correct_answer")) || !bytes.Contains(first, []byte(published.QuestionKey)) {
		t.Fatalf("first ws message = %s", first)
	}
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)

	if code := s.do(t, "", http.MethodPost, "/api/v1/lobbies", CreateLobbyRequest{}, nil); code != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", code)
	}
	if code := s.do(t, "u1", http.MethodGet, "/api/v1/lobbies/missing", nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing lobby = %d, want 404", code)
	}
	if code := s.do(t, "u1", http.MethodPost, "/api/v1/lobbies", CreateLobbyRequest{BuyIn: -5}, nil); code != http.StatusBadRequest {
		t.Fatalf("negative buy-in = %d, want 400", code)
	}
	if code := s.do(t, "u1", http.MethodPost, "/api/v1/lobbies/join", map[string]string{}, nil); code != http.StatusBadRequest {
		t.Fatalf("join without code = %d, want 400", code)
	}
	if code := s.do(t, "u1", http.MethodPut, "/api/v1/profile", UpdateProfileRequest{Username: "Ada"}, nil); code != http.StatusOK {
		t.Fatalf("update profile = %d, want 200", code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrNotAuthenticated, http.StatusUnauthorized},
		{services.ErrNotOwner, http.StatusForbidden},
		{services.ErrLobbyNotFound, http.StatusNotFound},
		{services.ErrLobbyFull, http.StatusConflict},
		{services.ErrInvalidTransition, http.StatusConflict},
		{services.ErrConcurrentWrite, http.StatusConflict},
		{services.FromCode(services.CodeInvalidInput, "bad"), http.StatusBadRequest},
		{services.FromCode(services.CodeUpdateFailed, "retry"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
