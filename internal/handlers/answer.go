package handlers

import (
	"net/http"

	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/services"

	"github.com/gin-gonic/gin"
)

type AnswerHandler struct {
	answerService     *services.AnswerService
	settlementService *services.SettlementService
}

func NewAnswerHandler(answerService *services.AnswerService, settlementService *services.SettlementService) *AnswerHandler {
	return &AnswerHandler{answerService: answerService, settlementService: settlementService}
}

type SubmitAnswerRequest struct {
	QuestionKey string `json:"question_key" binding:"required"`
	Choice      string `json:"choice" binding:"required"`
}

type HistoryResponse struct {
	Answers []models.AnswerRecord `json:"answers"`
}

// SubmitAnswer godoc
// @Summary      Answer the current question
// @Description  Submit Yes or No against the question key. Each player may answer a question once.
// @Tags         answers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Param        request body SubmitAnswerRequest true "Answer"
// @Success      200 {object} services.AnswerResult
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/answers [post]
func (h *AnswerHandler) SubmitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "question_key and choice are required")
		return
	}
	res, err := h.answerService.SubmitAnswer(c.Request.Context(), c.Param("id"), userID(c), req.QuestionKey, req.Choice)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// History godoc
// @Summary      List my answers
// @Description  List the authenticated player's answer log for a lobby
// @Tags         answers
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Success      200 {object} HistoryResponse
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/answers [get]
func (h *AnswerHandler) History(c *gin.Context) {
	recs, err := h.answerService.History(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Answers: recs})
}

// Settle godoc
// @Summary      Settle a lobby
// @Description  Finish the lobby if needed, pay out the pool and credit balances. Repeated calls return the first result.
// @Tags         settlement
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Success      200 {object} services.SettlementResult
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/settle [post]
func (h *AnswerHandler) Settle(c *gin.Context) {
	res, err := h.settlementService.SettleAs(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetLeaderboard godoc
// @Summary      Get the leaderboard
// @Description  Get the settled leaderboard of a lobby
// @Tags         settlement
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lobby ID"
// @Success      200 {object} services.SettlementResult
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/lobbies/{id}/leaderboard [get]
func (h *AnswerHandler) GetLeaderboard(c *gin.Context) {
	res, err := h.settlementService.GetLeaderboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
