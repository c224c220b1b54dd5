package services

import (
	"math"
	"testing"

	"github.com/akshitk26/gamepulse/internal/models"
)

func TestScore(t *testing.T) {
	s := NewScoringService(20, -10)
	q := &models.Question{Text: "Q", CorrectAnswer: models.AnswerYes}

	if correct, delta := s.Score(q, " YES "); !correct || delta != 20 {
		t.Fatalf("Score(yes) = (%v, %d), want (true, 20)", correct, delta)
	}
	if correct, delta := s.Score(q, "no"); correct || delta != -10 {
		t.Fatalf("Score(no) = (%v, %d), want (false, -10)", correct, delta)
	}
}

func TestAllocatePayouts(t *testing.T) {
	s := NewScoringService(20, 0)
	cases := []struct {
		name   string
		pool   int64
		points []int64
		want   []int64
	}{
		{"winner takes all", 60, []int64{20, 0, 0}, []int64{60, 0, 0}},
		{"proportional", 75, []int64{40, 20, 0}, []int64{50, 25, 0}},
		{"leftover to the top", 10, []int64{1, 1, 1}, []int64{4, 3, 3}},
		{"all zero splits evenly", 20, []int64{0, 0, 0}, []int64{7, 7, 6}},
		{"negative weighs zero", 30, []int64{20, -10}, []int64{30, 0}},
		{"empty pool", 0, []int64{20, 10}, []int64{0, 0}},
		{"no players", 50, nil, []int64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.AllocatePayouts(tc.pool, tc.points)
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("payouts = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestAllocatePayoutsInvariants(t *testing.T) {
	s := NewScoringService(20, 0)
	boards := [][]int64{
		{100, 60, 60, 20, 0},
		{7, 5, 3, 3, 1},
		{40, 40, 40},
		{20, 0, -10, -30},
		{1},
	}
	for _, points := range boards {
		for _, pool := range []int64{1, 7, 99, 1000, 12345} {
			got := s.AllocatePayouts(pool, points)
			var sum int64
			for i, p := range got {
				if p < 0 {
					t.Fatalf("pool %d points %v: negative payout %v", pool, points, got)
				}
				sum += p
				if i > 0 && points[i-1] > points[i] && got[i-1] < got[i] {
					t.Fatalf("pool %d points %v: not monotonic %v", pool, points, got)
				}
			}
			if sum != pool {
				t.Fatalf("pool %d points %v: sum %d", pool, points, sum)
			}
		}
	}
}

func TestMulDivLargeValues(t *testing.T) {
	if got := mulDiv(math.MaxInt64, 3, 4); got != math.MaxInt64/4*3+(math.MaxInt64%4)*3/4 {
		t.Fatalf("mulDiv = %d", got)
	}
	if got := mulDiv(1_000_000_000_000, 999_999, 1_000_000); got != 999_999_000_000 {
		t.Fatalf("mulDiv = %d, want 999999000000", got)
	}
}
