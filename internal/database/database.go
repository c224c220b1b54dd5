package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/akshitk26/gamepulse/internal/config"
	"github.com/akshitk26/gamepulse/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	log.Info("database connected", "host", cfg.DBHost, "name", cfg.DBName)
	return db, nil
}

func AutoMigrate(db *gorm.DB, log *slog.Logger) error {
	err := db.AutoMigrate(
		&models.Lobby{},
		&models.LobbyPlayer{},
		&models.AnswerClaim{},
		&models.AnswerRecord{},
		&models.Profile{},
		&models.Settlement{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	log.Info("database migrated")
	return nil
}

// ConnectRedis returns nil when no address is configured; callers treat the
// cache as optional.
func ConnectRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, redis cache disabled")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	const maxRetries = 5
	var err error
	for i := 1; i <= maxRetries; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			break
		}
		log.Warn("waiting for redis", "attempt", i, "max", maxRetries)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis after %d attempts: %w", maxRetries, err)
	}
	log.Info("redis connected", "addr", cfg.RedisAddr)
	return client, nil
}
