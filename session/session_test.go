package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"karaoke/capture"
	"karaoke/pitch"
	"karaoke/spectrum"
)

type fakePlayback struct {
	active atomic.Bool
	at     float64
}

func (p *fakePlayback) CurrentTime() float64 { return p.at }
func (p *fakePlayback) HasActiveSong() bool  { return p.active.Load() }

func newPlayback(active bool) *fakePlayback {
	p := &fakePlayback{}
	p.active.Store(active)
	return p
}

type fakeSpectra struct {
	calls atomic.Int32
	snap  spectrum.Spectrum
	rate  int
}

func (f *fakeSpectra) Snapshot() spectrum.Spectrum {
	f.calls.Add(1)
	return f.snap
}

func (f *fakeSpectra) SampleRate() int { return f.rate }

func impulses(n, period int) spectrum.Spectrum {
	s := make(spectrum.Spectrum, n)
	for i := 0; i < n; i += period {
		s[i] = 1
	}
	return s
}

type fakeDevice struct {
	closed atomic.Int32
	rate   int
}

func (d *fakeDevice) SampleRate() int { return d.rate }

func (d *fakeDevice) Latest(dst []float32) uint64 {
	for i := range dst {
		dst[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / float64(d.rate)))
	}
	return uint64(len(dst))
}

func (d *fakeDevice) Close() error {
	d.closed.Add(1)
	return nil
}

func TestScoreAccumulates(t *testing.T) {
	var s Score
	const n, acc = 37, 96.07
	for i := 0; i < n; i++ {
		s.Add(acc)
	}
	if want := n * acc * ScoreWeight; math.Abs(s.Total()-want) > 1e-9 {
		t.Fatalf("expected %.6f, got %.6f", want, s.Total())
	}
	if s.Rounded() != int(math.Round(n*acc*ScoreWeight)) {
		t.Fatalf("unexpected rounded score %d", s.Rounded())
	}
}

func TestScoreIgnoresInvalidAccuracy(t *testing.T) {
	var s Score
	s.Add(-5)
	s.Add(math.NaN())
	if s.Total() != 0 {
		t.Fatalf("expected 0, got %v", s.Total())
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	var s Scheduler
	s.Stop()
	s.Stop()
	if s.Running() {
		t.Fatalf("scheduler should not be running")
	}
}

func TestSchedulerTicksSequentially(t *testing.T) {
	var inflight, overlaps, ticks atomic.Int32

	s := Scheduler{
		Period: 2 * time.Millisecond,
		Tick: func() {
			if inflight.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(3 * time.Millisecond)
			ticks.Add(1)
			inflight.Add(-1)
		},
	}

	s.Start(context.Background())
	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if ticks.Load() == 0 {
		t.Fatalf("expected ticks")
	}
	if overlaps.Load() != 0 {
		t.Fatalf("ticks overlapped %d times", overlaps.Load())
	}

	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	if ticks.Load() != after {
		t.Fatalf("ticked after Stop")
	}
	s.Stop()
}

func TestSchedulerStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int32
	s := Scheduler{Period: time.Millisecond, Tick: func() { ticks.Add(1) }}
	s.Start(ctx)
	cancel()
	time.Sleep(10 * time.Millisecond)
	n := ticks.Load()
	time.Sleep(10 * time.Millisecond)
	if ticks.Load() != n {
		t.Fatalf("ticked after context cancel")
	}
	s.Stop()
}

func TestSessionTick(t *testing.T) {
	spectra := &fakeSpectra{snap: impulses(1024, 100), rate: 44100}
	playback := newPlayback(true)
	dev := &fakeDevice{rate: 44100}

	var published []int
	s := New(dev, spectra, pitch.Constant(pitch.A4), playback, nil)
	s.OnScore = func(score int) { published = append(published, score) }
	s.active.Store(true)

	for i := 0; i < 10; i++ {
		s.tick()
	}

	r := s.Reading()
	if r.Pitch != 441 || r.Expected != 440 {
		t.Fatalf("unexpected reading %+v", r)
	}
	if math.Abs(r.Accuracy-96.07) > 0.05 {
		t.Fatalf("expected accuracy near 96.07, got %v", r.Accuracy)
	}
	if want := 10 * r.Accuracy * ScoreWeight; math.Abs(s.Score()-want) > 1e-9 {
		t.Fatalf("expected score %v, got %v", want, s.Score())
	}
	if len(published) != 10 || published[9] != 96 {
		t.Fatalf("unexpected published scores %v", published)
	}
	if r.Note != "A4 +4c" {
		t.Fatalf("unexpected note %q", r.Note)
	}
}

func TestSessionTickWithoutSong(t *testing.T) {
	spectra := &fakeSpectra{snap: impulses(1024, 100), rate: 44100}
	s := New(&fakeDevice{rate: 44100}, spectra, nil, newPlayback(false), nil)
	s.active.Store(true)

	s.tick()

	if spectra.calls.Load() != 0 {
		t.Fatalf("analyzer read without an active song")
	}
	if s.Score() != 0 {
		t.Fatalf("expected no score, got %v", s.Score())
	}
}

func TestSessionTickSilenceScoresZero(t *testing.T) {
	spectra := &fakeSpectra{snap: make(spectrum.Spectrum, 1024), rate: 44100}
	s := New(&fakeDevice{rate: 44100}, spectra, nil, newPlayback(true), nil)
	s.active.Store(true)

	for i := 0; i < 5; i++ {
		s.tick()
	}
	if s.Score() != 0 || s.Reading().Pitch != 0 {
		t.Fatalf("silence should score 0, got %v / %+v", s.Score(), s.Reading())
	}
}

func TestSessionTickInvalidExpectedPitch(t *testing.T) {
	spectra := &fakeSpectra{snap: impulses(1024, 100), rate: 44100}
	s := New(&fakeDevice{rate: 44100}, spectra, pitch.Constant(0), newPlayback(true), nil)
	s.active.Store(true)

	s.tick()
	if s.Score() != 0 {
		t.Fatalf("expected 0 with no expected pitch, got %v", s.Score())
	}
}

func TestSessionCloseReleasesDeviceOnce(t *testing.T) {
	dev := &fakeDevice{rate: 44100}
	spectra := &fakeSpectra{snap: impulses(1024, 100), rate: 44100}
	s := New(dev, spectra, nil, newPlayback(true), nil)
	s.sched.Period = time.Millisecond

	s.Start(context.Background())
	time.Sleep(10 * time.Millisecond)

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s.Close()

	if dev.closed.Load() != 1 {
		t.Fatalf("expected one close, got %d", dev.closed.Load())
	}

	calls := spectra.calls.Load()
	s.tick()
	time.Sleep(5 * time.Millisecond)
	if spectra.calls.Load() != calls {
		t.Fatalf("tick ran after close")
	}
}

func newMic(open Opener) (*Mic, *[]string) {
	var mu sync.Mutex
	var statuses []string
	m := &Mic{
		Open:     open,
		Playback: newPlayback(true),
		SetStatus: func(s string) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		},
	}
	return m, &statuses
}

func TestMicDisableBeforeEnable(t *testing.T) {
	m, statuses := newMic(nil)
	m.Disable()

	if m.Status() != StatusDisabled {
		t.Fatalf("expected %q, got %q", StatusDisabled, m.Status())
	}
	if len(*statuses) != 1 || (*statuses)[0] != StatusDisabled {
		t.Fatalf("unexpected statuses %v", *statuses)
	}
}

func TestMicEnableDisable(t *testing.T) {
	var opened atomic.Int32
	dev := &fakeDevice{rate: 48000}
	m, statuses := newMic(func() (capture.Device, error) {
		opened.Add(1)
		return dev, nil
	})

	var mu sync.Mutex
	var scores []int
	m.SetScore = func(s int) {
		mu.Lock()
		scores = append(scores, s)
		mu.Unlock()
	}

	if err := m.Enable(context.Background()); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !m.Enabled() || m.Status() != StatusEnabled {
		t.Fatalf("expected enabled, got %q", m.Status())
	}

	if err := m.Enable(context.Background()); !errors.Is(err, ErrAlreadyEnabled) {
		t.Fatalf("expected ErrAlreadyEnabled, got %v", err)
	}
	if opened.Load() != 1 {
		t.Fatalf("second enable opened another device")
	}

	m.Disable()
	if m.Enabled() || dev.closed.Load() != 1 {
		t.Fatalf("expected device closed once, got %d", dev.closed.Load())
	}

	want := []string{StatusEnabled, StatusDisabled}
	if len(*statuses) != len(want) {
		t.Fatalf("unexpected statuses %v", *statuses)
	}
	for i := range want {
		if (*statuses)[i] != want[i] {
			t.Fatalf("unexpected statuses %v", *statuses)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(scores) == 0 || scores[0] != 0 {
		t.Fatalf("fresh session should publish a zero score, got %v", scores)
	}
}

func TestMicToggle(t *testing.T) {
	m, _ := newMic(func() (capture.Device, error) { return &fakeDevice{rate: 44100}, nil })

	if err := m.Toggle(context.Background()); err != nil || !m.Enabled() {
		t.Fatalf("toggle on: %v", err)
	}
	if err := m.Toggle(context.Background()); err != nil || m.Enabled() {
		t.Fatalf("toggle off: %v", err)
	}
}

func TestMicEnableFailure(t *testing.T) {
	m, _ := newMic(func() (capture.Device, error) {
		return nil, capture.ErrPermissionDenied
	})

	err := m.Enable(context.Background())
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if m.Enabled() {
		t.Fatalf("mic should stay disabled")
	}
	if m.Status() != "Error: permission denied" {
		t.Fatalf("unexpected status %q", m.Status())
	}

	m.Disable()
	if m.Status() != StatusDisabled {
		t.Fatalf("unexpected status %q", m.Status())
	}
}

func TestMicBadFFTSizeReleasesDevice(t *testing.T) {
	dev := &fakeDevice{rate: 44100}
	m, _ := newMic(func() (capture.Device, error) { return dev, nil })
	m.FFTSize = 1000

	if err := m.Enable(context.Background()); !errors.Is(err, spectrum.ErrFFTSize) {
		t.Fatalf("expected ErrFFTSize, got %v", err)
	}
	if dev.closed.Load() != 1 {
		t.Fatalf("device leaked")
	}
}

func TestMicWithoutOpener(t *testing.T) {
	m, _ := newMic(nil)
	if err := m.Enable(context.Background()); !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("expected device unavailable, got %v", err)
	}
}
