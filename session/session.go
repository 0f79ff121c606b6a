// Package session runs microphone scoring: a fixed-period scheduler pulls a
// spectrum, estimates the sung pitch, scores it against the expected pitch
// at the current playback position and accumulates the session score.
package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"karaoke/pitch"
	"karaoke/spectrum"
)

// Playback is the read-only view of the song player the session needs.
type Playback interface {
	CurrentTime() float64
	HasActiveSong() bool
}

// Spectra is the analyzer side of a session.
type Spectra interface {
	Snapshot() spectrum.Spectrum
	SampleRate() int
}

// Reading is the outcome of the latest tick.
type Reading struct {
	Pitch    float64
	Expected float64
	Accuracy float64
	Score    int
	Note     string
	Bars     [spectrum.NumBands]rune
}

// Session is one microphone-enabled scoring session. It owns the capture
// device and the analyzer reading from it; the score starts at zero.
type Session struct {
	OnScore func(score int)

	device   io.Closer
	analyzer Spectra
	curve    pitch.Curve
	playback Playback
	log      *slog.Logger

	score  Score
	sched  Scheduler
	active atomic.Bool

	mu   sync.Mutex
	last Reading
}

func New(device io.Closer, analyzer Spectra, curve pitch.Curve, playback Playback, log *slog.Logger) *Session {
	if curve == nil {
		curve = pitch.Constant(pitch.A4)
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Session{
		device:   device,
		analyzer: analyzer,
		curve:    curve,
		playback: playback,
		log:      log,
	}
	s.sched.Tick = s.tick
	return s
}

// Start begins scoring at TickPeriod.
func (s *Session) Start(ctx context.Context) {
	s.active.Store(true)
	s.sched.Start(ctx)
}

// Close stops the scheduler, waits for a running tick, then releases the
// analyzer and the device. No tick can observe a released device.
func (s *Session) Close() error {
	s.active.Store(false)
	s.sched.Stop()

	s.mu.Lock()
	device := s.device
	s.device = nil
	s.analyzer = nil
	s.mu.Unlock()

	if device == nil {
		return nil
	}
	return device.Close()
}

func (s *Session) Active() bool {
	return s.active.Load()
}

func (s *Session) Score() float64 {
	return s.score.Total()
}

func (s *Session) Reading() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) tick() {
	if !s.active.Load() {
		return
	}
	if s.playback == nil || !s.playback.HasActiveSong() {
		return
	}

	s.mu.Lock()
	analyzer := s.analyzer
	s.mu.Unlock()
	if analyzer == nil {
		return
	}

	snap := analyzer.Snapshot()
	rate := analyzer.SampleRate()

	hz := pitch.Estimate(snap, rate)
	expected := s.curve.ExpectedPitch(s.playback.CurrentTime())
	accuracy := pitch.Accuracy(hz, expected)
	score := s.score.Add(accuracy)

	r := Reading{
		Pitch:    hz,
		Expected: expected,
		Accuracy: accuracy,
		Score:    score,
		Bars:     spectrum.Bars(snap, rate, 80, 1100, true),
	}
	if n, ok := pitch.NearestNote(hz); ok {
		r.Note = n.String()
	}

	s.mu.Lock()
	s.last = r
	s.mu.Unlock()

	s.log.Debug("tick", "pitch", hz, "expected", expected, "accuracy", accuracy, "score", score)

	if s.OnScore != nil {
		s.OnScore(score)
	}
}
