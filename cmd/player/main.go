// Command player joins a lobby on a running server and answers questions
// from the terminal.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/akshitk26/gamepulse/internal/config"
	"github.com/akshitk26/gamepulse/internal/models"
	"github.com/akshitk26/gamepulse/internal/play"
	"github.com/akshitk26/gamepulse/internal/services"

	"github.com/lmittmann/tint"
)

func main() {
	game := config.DefaultGame()
	server := flag.String("server", "http://localhost:8080", "server base URL")
	token := flag.String("token", os.Getenv("GAMEPULSE_TOKEN"), "bearer token")
	code := flag.String("code", "", "lobby code or id to join")
	window := flag.Duration("window", game.QuestionWindow, "question answer window")
	poll := flag.Duration("poll", game.PollInterval, "poll interval when push is quiet")
	flag.Parse()

	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo, TimeFormat: time.Kitchen}))
	if *code == "" || *token == "" {
		fmt.Fprintln(os.Stderr, "usage: player -code ABC123 -token <jwt> [-server URL]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remote := play.NewRemote(*server, *token, log)
	lobbyID, err := remote.Join(ctx, *code)
	if err != nil {
		log.Error("join lobby", "error", err)
		os.Exit(1)
	}

	player := play.NewPlayer(lobbyID, *window, remote)
	watcher := play.NewWatcher(lobbyID, remote, remote, *poll, log, func(l *models.LobbyView) {
		player.Observe(l)
		switch {
		case l.Status != models.LobbyStatusActive:
			fmt.Printf("lobby %s is %s\n", l.Code, l.Status)
		default:
			q, left, ok := player.Question()
			if !ok {
				return
			}
			fmt.Printf("\n%s (yes/no, %ds left)\n", q.Text, int(left.Round(time.Second).Seconds()))
			if q.Tip != "" {
				fmt.Printf("tip: %s\n", q.Tip)
			}
		}
	})
	go func() {
		if err := watcher.Run(ctx); err != nil {
			log.Error("watch lobby", "error", err)
			stop()
		}
	}()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			res, err := player.Answer(ctx, line)
			if err != nil {
				fmt.Println(services.Message(err))
				continue
			}
			verdict := "wrong"
			if res.Correct {
				verdict = "correct"
			}
			fmt.Printf("%s, %+d points (total %d, %d/%d)\n", verdict, res.Delta,
				res.Stats.PointsEarned, res.Stats.CorrectBets, res.Stats.QuestionsAttempted)
		}
	}
}
