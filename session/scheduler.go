package session

import (
	"context"
	"sync"
	"time"
)

// TickPeriod is how often the scoring pipeline samples the analyzer.
const TickPeriod = 100 * time.Millisecond

// Scheduler calls Tick at a fixed period from a single goroutine, so ticks
// never overlap. It samples whatever the analyzer holds at that moment and is
// not tied to the audio device's buffer callbacks.
type Scheduler struct {
	Period time.Duration
	Tick   func()

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start begins ticking. Starting a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	period := s.Period
	if period <= 0 {
		period = TickPeriod
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// a stop that raced the ticker wins
				if ctx.Err() != nil {
					return
				}
				if s.Tick != nil {
					s.Tick()
				}
			}
		}
	}()
}

// Stop cancels the timer and waits for an in-flight tick to finish. It is
// safe to call repeatedly and on a scheduler that never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
