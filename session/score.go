package session

import (
	"math"
	"sync"
)

// ScoreWeight is the share of each tick's accuracy that is added to the
// cumulative score.
const ScoreWeight = 0.1

// Score is the cumulative session score. The scheduler is its only writer;
// the display reads it.
type Score struct {
	mu    sync.Mutex
	total float64
}

// Add accumulates one accuracy sample and returns the rounded total.
func (s *Score) Add(accuracy float64) int {
	if accuracy < 0 || math.IsNaN(accuracy) {
		accuracy = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.total += accuracy * ScoreWeight
	return int(math.Round(s.total))
}

func (s *Score) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Score) Rounded() int {
	return int(math.Round(s.Total()))
}
