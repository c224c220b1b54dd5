package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/services"

	"github.com/gin-gonic/gin"
)

type LobbyHandler struct {
	lobbyService *services.LobbyService
	feed         *services.QuestionFeed
}

func NewLobbyHandler(lobbyService *services.LobbyService, feed *services.QuestionFeed) *LobbyHandler {
	return &LobbyHandler{lobbyService: lobbyService, feed: feed}
}

type CreateLobbyRequest struct {
	GameID     string `json:"game_id"`
	BuyIn      int64  `json:"buy_in"`
	MaxPlayers int    `json:"max_players"`
}

type JoinLobbyRequest struct {
	Code string `json:"code" binding:"required"`
}

type QuestionRequest struct {
	Text          string `json:"text"`
	Tip           string `json:"tip"`
	CorrectAnswer string `json:"correct_answer"`
}

func (r QuestionRequest) question() models.Question {
	return models.Question{Text: r.Text, Tip: r.Tip, CorrectAnswer: r.CorrectAnswer}
}

type FeedRequest struct {
	Questions       []QuestionRequest `json:"questions" binding:"required"`
	IntervalSeconds int               `json:"interval_seconds"`
}

type UpdateProfileRequest struct {
	Username string `json:"username" binding:"required"`
}

type PublishResponse struct {
	Lobby       *models.LobbyView `json:"lobby"`
	QuestionKey string            `json:"question_key"`
}

type JoinResponse struct {
	LobbyID string `json:"lobby_id"`
}

type StatsResponse struct {
	Stats    *models.LobbyPlayer `json:"stats"`
	Accuracy float64             `json:"accuracy"`
}

type LobbyResponse struct {
	Lobby   *models.LobbyView    `json:"lobby"`
	Players []models.LobbyPlayer `json:"players"`
}

// CreateLobby godoc
// @Summary      Create a lobby
// @Description  Open a waiting lobby owned by the authenticated user, with a fresh join code
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateLobbyRequest true "Lobby settings"
// @Success      201 {object} models.LobbyView
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/lobbies [post]
func (h *LobbyHandler) CreateLobby(c *gin.Context) {
	var req CreateLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	lobby, err := h.lobbyService.CreateLobby(c.Request.Context(), services.CreateLobbyInput{
		OwnerID:    userID(c),
		GameID:     req.GameID,
		BuyIn:      req.BuyIn,
		MaxPlayers: req.MaxPlayers,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lobby.View())
}

// GetLobby godoc
// @Summary      Get a lobby
// @Description  Get the lobby row and its members. The current question is shown without its answer.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Success      200 {object} LobbyResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id} [get]
func (h *LobbyHandler) GetLobby(c *gin.Context) {
	ctx := c.Request.Context()
	lobby, err := h.lobbyService.GetLobby(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	players, err := h.lobbyService.Members(ctx, lobby.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if players == nil {
		players = []models.LobbyPlayer{}
	}
	c.JSON(http.StatusOK, LobbyResponse{Lobby: lobby.View(), Players: players})
}

// JoinLobby godoc
// @Summary      Join a lobby
// @Description  Join a waiting or active lobby by its code. Joining twice is a no-op.
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body JoinLobbyRequest true "Join code"
// @Success      200 {object} JoinResponse
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/lobbies/join [post]
func (h *LobbyHandler) JoinLobby(c *gin.Context) {
	var req JoinLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}
	lobbyID, err := h.lobbyService.JoinLobby(c.Request.Context(), req.Code, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, JoinResponse{LobbyID: lobbyID})
}

// LeaveLobby godoc
// @Summary      Leave a lobby
// @Description  Leave a lobby. A waiting lobby drops the membership, an active one keeps it for settlement.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Success      200 {object} MessageResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/leave [post]
func (h *LobbyHandler) LeaveLobby(c *gin.Context) {
	if _, err := h.lobbyService.LeaveLobby(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "left lobby"})
}

type transitionFunc func(ctx context.Context, lobbyID, ownerID string) (*models.Lobby, error)

func (h *LobbyHandler) transition(fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		lobby, err := fn(c.Request.Context(), c.Param("id"), userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, lobby.View())
	}
}

// StartLobby godoc
// @Summary      Start a lobby
// @Description  Move a waiting lobby to active. Owner only.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Success      200 {object} models.LobbyView
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/start [post]
func (h *LobbyHandler) StartLobby(c *gin.Context) { h.transition(h.lobbyService.StartLobby)(c) }

// AbortLobby godoc
// @Summary      Abort a lobby
// @Description  Cancel an active lobby mid-game and stop its feed. Owner only.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Success      200 {object} models.LobbyView
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/abort [post]
func (h *LobbyHandler) AbortLobby(c *gin.Context) { h.stopFeed(c, h.lobbyService.AbortLobby) }

// CancelLobby godoc
// @Summary      Cancel a lobby
// @Description  Cancel a waiting lobby. Owner only.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Success      200 {object} models.LobbyView
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/cancel [post]
func (h *LobbyHandler) CancelLobby(c *gin.Context) { h.stopFeed(c, h.lobbyService.CancelLobby) }

// FinishLobby godoc
// @Summary      Finish a lobby
// @Description  Move an active lobby to finished and stop its feed. Owner only.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Success      200 {object} models.LobbyView
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/finish [post]
func (h *LobbyHandler) FinishLobby(c *gin.Context) { h.stopFeed(c, h.lobbyService.FinishLobby) }

// stopFeed runs a transition that ends the session and stops any scripted feed.
func (h *LobbyHandler) stopFeed(c *gin.Context, fn transitionFunc) {
	lobby, err := fn(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if h.feed != nil {
		h.feed.Stop(lobby.ID)
	}
	c.JSON(http.StatusOK, lobby.View())
}

// PublishQuestion godoc
// @Summary      Publish a question
// @Description  Replace the current question of an active lobby. Owner only.
// @Tags         questions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Param        request body QuestionRequest true "Question"
// @Success      200 {object} PublishResponse
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/questions [post]
func (h *LobbyHandler) PublishQuestion(c *gin.Context) {
	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid question payload")
		return
	}
	lobby, err := h.lobbyService.PublishQuestion(c.Request.Context(), c.Param("id"), userID(c), req.question())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PublishResponse{Lobby: lobby.View(), QuestionKey: lobby.CurrentQuestion.Key()})
}

// ClearQuestion godoc
// @Summary      Clear the question
// @Description  Remove the current question of an active lobby. Owner only.
// @Tags         questions
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Success      200 {object} models.LobbyView
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/questions [delete]
func (h *LobbyHandler) ClearQuestion(c *gin.Context) {
	h.transition(h.lobbyService.ClearQuestion)(c)
}

// StartFeed godoc
// @Summary      Start a question feed
// @Description  Publish the given questions one after another on a fixed interval. Owner only.
// @Tags         questions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Param        request body FeedRequest true "Questions and interval"
// @Success      202 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/feed [post]
func (h *LobbyHandler) StartFeed(c *gin.Context) {
	var req FeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "questions are required")
		return
	}
	questions := make([]models.Question, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = q.question()
	}
	interval := time.Duration(req.IntervalSeconds) * time.Second
	if err := h.feed.Start(c.Request.Context(), c.Param("id"), userID(c), questions, interval); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{Message: "feed started"})
}

// GetStats godoc
// @Summary      Get my stats
// @Description  Get the authenticated player's accumulators in a lobby
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Success      200 {object} StatsResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/stats [get]
func (h *LobbyHandler) GetStats(c *gin.Context) {
	stats, err := h.lobbyService.Stats(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatsResponse{Stats: stats, Accuracy: stats.Accuracy()})
}

// UpdateProfile godoc
// @Summary      Update my profile
// @Description  Set the display name. The balance is returned but only settlement changes it.
// @Tags         profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UpdateProfileRequest true "Username"
// @Success      200 {object} models.Profile
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/profile [put]
func (h *LobbyHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username is required")
		return
	}
	profile, err := h.lobbyService.UpdateProfile(c.Request.Context(), userID(c), req.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
