// Package cache holds the Redis-backed answer claim set and leaderboard cache.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	answerClaimKeyPrefix = "lobby:answer_claim:"
	leaderboardKeyPrefix = "lobby:leaderboard:"

	// DefaultClaimTTL outlives any question window; the store claim row is permanent.
	DefaultClaimTTL       = 10 * time.Minute
	DefaultLeaderboardTTL = time.Hour
)

// AnswerClaims is a first-writer-wins claim per player and question.
type AnswerClaims struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewAnswerClaims(client redis.Cmdable, ttl time.Duration) *AnswerClaims {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &AnswerClaims{client: client, ttl: ttl}
}

func ClaimKey(lobbyID, userID, questionKey string) string {
	return answerClaimKeyPrefix + lobbyID + ":" + userID + ":" + questionKey
}

// Claim returns true when this call took the claim.
func (c *AnswerClaims) Claim(ctx context.Context, lobbyID, userID, questionKey string) (bool, error) {
	return c.client.SetNX(ctx, ClaimKey(lobbyID, userID, questionKey), time.Now().UnixMilli(), c.ttl).Result()
}

func (c *AnswerClaims) Release(ctx context.Context, lobbyID, userID, questionKey string) error {
	return c.client.Del(ctx, ClaimKey(lobbyID, userID, questionKey)).Err()
}

// LeaderboardCache stores settled results as opaque JSON.
type LeaderboardCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewLeaderboardCache(client redis.Cmdable, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = DefaultLeaderboardTTL
	}
	return &LeaderboardCache{client: client, ttl: ttl}
}

func LeaderboardKey(lobbyID string) string {
	return leaderboardKeyPrefix + lobbyID
}

// Get returns (nil, false, nil) on a miss.
func (c *LeaderboardCache) Get(ctx context.Context, lobbyID string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, LeaderboardKey(lobbyID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *LeaderboardCache) Set(ctx context.Context, lobbyID string, data []byte) error {
	return c.client.Set(ctx, LeaderboardKey(lobbyID), data, c.ttl).Err()
}
