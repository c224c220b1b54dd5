package services

import (
	"github.com/akshitk26/gamepulse/internal/models"
)

type ScoringService struct {
	correctPoints int64
	wrongPoints   int64
}

func NewScoringService(correctPoints, wrongPoints int) *ScoringService {
	return &ScoringService{correctPoints: int64(correctPoints), wrongPoints: int64(wrongPoints)}
}

// Score grades choice against q and returns the points delta to apply.
func (s *ScoringService) Score(q *models.Question, choice string) (correct bool, delta int64) {
	if q.IsCorrect(choice) {
		return true, s.correctPoints
	}
	return false, s.wrongPoints
}

// AllocatePayouts splits pool across players proportionally to their points.
// points must be in leaderboard order (highest first). Negative points weigh
// as zero; when every weight is zero the pool is split evenly. Units lost to
// floor division go one each to the highest ranked players, so the payouts
// sum to pool exactly.
func (s *ScoringService) AllocatePayouts(pool int64, points []int64) []int64 {
	payouts := make([]int64, len(points))
	if len(points) == 0 || pool <= 0 {
		return payouts
	}

	weights := make([]int64, len(points))
	var total int64
	for i, p := range points {
		if p > 0 {
			weights[i] = p
			total += p
		}
	}
	if total == 0 {
		for i := range weights {
			weights[i] = 1
		}
		total = int64(len(weights))
	}

	var allocated int64
	for i, w := range weights {
		payouts[i] = mulDiv(pool, w, total)
		allocated += payouts[i]
	}
	for i := 0; allocated < pool; i = (i + 1) % len(payouts) {
		payouts[i]++
		allocated++
	}
	return payouts
}

// mulDiv computes a*b/c with floor division without overflowing when a*b
// exceeds int64. All inputs are non-negative and b <= c.
func mulDiv(a, b, c int64) int64 {
	q, r := a/c, a%c
	return q*b + (r*b)/c
}
