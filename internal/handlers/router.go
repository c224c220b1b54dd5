package handlers

import (
	"log/slog"

	"github.com/akshitk26/gamepulse/internal/middleware"
	"github.com/akshitk26/gamepulse/internal/services"
	"github.com/akshitk26/gamepulse/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Auth       *services.AuthService
	Lobbies    *services.LobbyService
	Answers    *services.AnswerService
	Settlement *services.SettlementService
	Feed       *services.QuestionFeed
	Hub        *ws.Hub
	Log        *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	lobbyHandler := NewLobbyHandler(d.Lobbies, d.Feed)
	answerHandler := NewAnswerHandler(d.Answers, d.Settlement)
	wsHandler := NewWSHandler(d.Hub, d.Lobbies, d.Log)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/ws/lobbies/:id", middleware.JWTAuthQuery(d.Auth), wsHandler.HandleWebSocket)

	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuth(d.Auth))
	{
		api.PUT("/profile", lobbyHandler.UpdateProfile)

		lobbies := api.Group("/lobbies")
		{
			lobbies.POST("", lobbyHandler.CreateLobby)
			lobbies.POST("/join", lobbyHandler.JoinLobby)
			lobbies.GET("/:id", lobbyHandler.GetLobby)
			lobbies.POST("/:id/leave", lobbyHandler.LeaveLobby)
			lobbies.POST("/:id/start", lobbyHandler.StartLobby)
			lobbies.POST("/:id/abort", lobbyHandler.AbortLobby)
			lobbies.POST("/:id/cancel", lobbyHandler.CancelLobby)
			lobbies.POST("/:id/finish", lobbyHandler.FinishLobby)
			lobbies.POST("/:id/questions", lobbyHandler.PublishQuestion)
			lobbies.DELETE("/:id/questions", lobbyHandler.ClearQuestion)
			lobbies.POST("/:id/feed", lobbyHandler.StartFeed)
			lobbies.GET("/:id/stats", lobbyHandler.GetStats)

			lobbies.POST("/:id/answers", answerHandler.SubmitAnswer)
			lobbies.GET("/:id/answers", answerHandler.History)
			lobbies.POST("/:id/settle", answerHandler.Settle)
			lobbies.GET("/:id/leaderboard", answerHandler.GetLeaderboard)
		}
	}
	return r
}
