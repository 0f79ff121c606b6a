package main

import (
	"sync"

	"karaoke/playback"
)

// speaker opens one output per loaded song on the same device and carries
// volume and mute over from song to song.
type speaker struct {
	dev    string
	frames int

	mu     sync.Mutex
	cur    *playback.Output
	volume float32
	mute   bool
}

func newSpeaker(dev string, frames int) *speaker {
	return &speaker{dev: dev, frames: frames, volume: 1.0}
}

func (s *speaker) open(sampleRate int) (playback.Sink, error) {
	o, err := playback.OpenOutput(s.dev, sampleRate, s.frames)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o.SetVolume(s.volume)
	o.Mute(s.mute)
	s.cur = o
	return o, nil
}

func (s *speaker) Volume() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *speaker) adjust(delta float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volume = min(max(s.volume+delta, 0), 2)
	if s.cur != nil {
		s.cur.SetVolume(s.volume)
	}
}

func (s *speaker) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mute
}

func (s *speaker) toggleMute() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mute = !s.mute
	if s.cur != nil {
		s.cur.Mute(s.mute)
	}
}
