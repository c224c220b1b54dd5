package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"gamepulse"`

	// Store selects the record store backend: "postgres" or "memory".
	Store string `env:"STORE" envDefault:"postgres"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	JWTSecret  string `env:"JWT_SECRET" envDefault:"super-secret-key-change-me"`
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	Game Game
}

// Game holds the tunables of the live-question pipeline.
type Game struct {
	QuestionWindow    time.Duration `env:"QUESTION_WINDOW" envDefault:"10s"`
	CorrectPoints     int           `env:"CORRECT_POINTS" envDefault:"20"`
	WrongPoints       int           `env:"WRONG_POINTS" envDefault:"0"`
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	DefaultMaxPlayers int           `env:"DEFAULT_MAX_PLAYERS" envDefault:"5"`
	FeedInterval      time.Duration `env:"FEED_INTERVAL" envDefault:"15s"`
}

// DefaultGame returns the game tunables used when nothing is configured.
func DefaultGame() Game {
	return Game{
		QuestionWindow:    10 * time.Second,
		CorrectPoints:     20,
		WrongPoints:       0,
		PollInterval:      time.Second,
		DefaultMaxPlayers: 5,
		FeedInterval:      15 * time.Second,
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Store != "postgres" && c.Store != "memory" {
		return fmt.Errorf("config: unknown STORE %q", c.Store)
	}
	if c.Game.QuestionWindow <= 0 {
		return fmt.Errorf("config: QUESTION_WINDOW must be positive")
	}
	if c.Game.PollInterval <= 0 {
		return fmt.Errorf("config: POLL_INTERVAL must be positive")
	}
	if c.Game.DefaultMaxPlayers <= 0 {
		return fmt.Errorf("config: DEFAULT_MAX_PLAYERS must be positive")
	}
	if c.Game.CorrectPoints < c.Game.WrongPoints {
		return fmt.Errorf("config: CORRECT_POINTS must not be below WRONG_POINTS")
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
