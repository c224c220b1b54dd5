package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akshitk26/gamepulse/internal/cache"
	"github.com/akshitk26/gamepulse/internal/config"
	"github.com/akshitk26/gamepulse/internal/database"
	"github.com/akshitk26/gamepulse/internal/handlers"
	"github.com/akshitk26/gamepulse/internal/services"
	"github.com/akshitk26/gamepulse/internal/store"
	"github.com/akshitk26/gamepulse/internal/store/gormstore"
	"github.com/akshitk26/gamepulse/internal/store/memstore"
	"github.com/akshitk26/gamepulse/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.SlogLevel(), TimeFormat: time.Kitchen}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, log)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	rdb, err := database.ConnectRedis(ctx, cfg, log)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	var (
		claims      services.AnswerClaims
		leaderboard services.LeaderboardCache
	)
	if rdb != nil {
		defer rdb.Close()
		claims = cache.NewAnswerClaims(rdb, 0)
		leaderboard = cache.NewLeaderboardCache(rdb, 0)
	}

	hub := ws.NewHub(log)

	authService := services.NewAuthService(cfg.JWTSecret)
	scoringService := services.NewScoringService(cfg.Game.CorrectPoints, cfg.Game.WrongPoints)
	lobbyService := services.NewLobbyService(st, hub, log, cfg.Game.DefaultMaxPlayers)
	answerService := services.NewAnswerService(st, claims, scoringService, log)
	settlementService := services.NewSettlementService(st, lobbyService, scoringService, leaderboard, log)
	feed := services.NewQuestionFeed(lobbyService, settlementService, log, cfg.Game.FeedInterval)
	defer feed.Shutdown()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handlers.NewRouter(handlers.Deps{
		Auth:       authService,
		Lobbies:    lobbyService,
		Answers:    answerService,
		Settlement: settlementService,
		Feed:       feed,
		Hub:        hub,
		Log:        log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server starting", "port", cfg.ServerPort, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
}

func openStore(cfg *config.Config, log *slog.Logger) (store.Store, error) {
	if cfg.Store == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), nil
	}
	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db, log); err != nil {
		return nil, err
	}
	return gormstore.New(db), nil
}
