package playback

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"karaoke/catalog"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	frames int

	mu      sync.Mutex
	samples []float64
	writes  []int
	closed  int
	fail    error
}

func (r *recorder) Frames() int { return r.frames }

func (r *recorder) Write(b *audio.FloatBuffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.samples = append(r.samples, b.Data...)
	r.writes = append(r.writes, len(b.Data))
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
	return nil
}

func (r *recorder) written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func TestTransportWithoutSong(t *testing.T) {
	var tr Transport
	if tr.HasActiveSong() {
		t.Fatalf("no song loaded")
	}
	if tr.Play() || tr.Playing() {
		t.Fatalf("play without a song should do nothing")
	}
	if tr.CurrentTime() != 0 {
		t.Fatalf("expected position 0, got %v", tr.CurrentTime())
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestTransportClock(t *testing.T) {
	c := &clock{t: time.Unix(1000, 0)}
	tr := &Transport{Now: c.Now}

	tr.Load(catalog.Song{ID: 1, Title: "Dancing Queen", YouTubeID: "xFrGuyw1V8s", Lyrics: `[{"text":"You can dance","time":2}]`})
	if !tr.HasActiveSong() || tr.Playing() {
		t.Fatalf("loaded song should be active and stopped")
	}
	if lines := tr.Lyrics(); len(lines) != 1 || lines[0].Text != "You can dance" {
		t.Fatalf("unexpected lyrics %+v", lines)
	}

	c.Advance(time.Second)
	if tr.CurrentTime() != 0 {
		t.Fatalf("stopped song advanced to %v", tr.CurrentTime())
	}

	if !tr.Toggle() {
		t.Fatalf("toggle should start playing")
	}
	c.Advance(2500 * time.Millisecond)
	if got := tr.CurrentTime(); math.Abs(got-2.5) > 1e-9 {
		t.Fatalf("expected 2.5s, got %v", got)
	}

	if tr.Toggle() {
		t.Fatalf("toggle should pause")
	}
	c.Advance(10 * time.Second)
	if got := tr.CurrentTime(); math.Abs(got-2.5) > 1e-9 {
		t.Fatalf("paused song moved to %v", got)
	}

	tr.Play()
	c.Advance(500 * time.Millisecond)
	if got := tr.CurrentTime(); math.Abs(got-3) > 1e-9 {
		t.Fatalf("expected 3s, got %v", got)
	}

	tr.Load(catalog.Song{ID: 2, Title: "Waterloo"})
	if tr.Playing() || tr.CurrentTime() != 0 {
		t.Fatalf("loading a song should rewind and stop")
	}
	if song, ok := tr.Song(); !ok || song.ID != 2 {
		t.Fatalf("unexpected song %+v", song)
	}
}

func writeSong(t *testing.T, n, rate int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "song.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	data := make([]int, n)
	for i := range data {
		data[i] = 8192
	}

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTransportStreamsWaveSong(t *testing.T) {
	const n, rate = 5000, 8000
	path := writeSong(t, n, rate)

	c := &clock{t: time.Unix(0, 0)}
	sink := &recorder{}
	var openedAt int
	tr := &Transport{
		Now: c.Now,
		OpenOutput: func(sampleRate int) (Sink, error) {
			openedAt = sampleRate
			return sink, nil
		},
	}

	tr.Load(catalog.Song{ID: 1, Title: "take", FilePath: path})
	if openedAt != rate {
		t.Fatalf("output opened at %d Hz, want %d", openedAt, rate)
	}

	tr.Play()
	waitFor(t, func() bool { return sink.written() == n })

	sink.mu.Lock()
	for i, v := range sink.samples {
		if math.Abs(v-0.25) > 1e-6 {
			sink.mu.Unlock()
			t.Fatalf("sample %d: expected 0.25, got %v", i, v)
		}
	}
	sink.mu.Unlock()

	// the clock stops at the end of the track
	c.Advance(time.Hour)
	if got, want := tr.CurrentTime(), float64(n)/rate; math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected position %v, got %v", want, got)
	}

	tr.Load(catalog.Song{ID: 2, Title: "video", YouTubeID: "abc"})
	if sink.closed != 1 {
		t.Fatalf("previous output not closed")
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestTransportOutputFailure(t *testing.T) {
	path := writeSong(t, 4000, 8000)
	sink := &recorder{fail: errors.New("device lost")}

	tr := &Transport{OpenOutput: func(int) (Sink, error) { return sink, nil }}
	tr.Load(catalog.Song{FilePath: path})
	tr.Play()
	tr.Pause()

	if !tr.Play() {
		t.Fatalf("clock should keep running without audio")
	}
	tr.Close()
	if sink.closed != 1 {
		t.Fatalf("expected output closed once, got %d", sink.closed)
	}
}

func TestTransportSkipsUnsupportedFiles(t *testing.T) {
	opened := false
	tr := &Transport{OpenOutput: func(int) (Sink, error) {
		opened = true
		return &recorder{}, nil
	}}

	tr.Load(catalog.Song{FilePath: filepath.Join(t.TempDir(), "song.mp3")})
	if opened {
		t.Fatalf("opened output for an mp3")
	}
	if !tr.Play() || !tr.HasActiveSong() {
		t.Fatalf("mp3 songs still run on the clock")
	}
}

func TestTransportWritesWholeDevicePeriods(t *testing.T) {
	const n, rate, frames = 5000, 8000, 700
	path := writeSong(t, n, rate)

	c := &clock{t: time.Unix(0, 0)}
	sink := &recorder{frames: frames}
	tr := &Transport{Now: c.Now, OpenOutput: func(int) (Sink, error) { return sink, nil }}
	defer tr.Close()

	tr.Load(catalog.Song{ID: 1, Title: "take", FilePath: path})
	tr.Play()
	waitFor(t, func() bool { return sink.written() == n })

	sink.mu.Lock()
	defer sink.mu.Unlock()

	last := len(sink.writes) - 1
	for i, w := range sink.writes[:last] {
		if w != frames {
			t.Fatalf("write %d: %d samples, want %d", i, w, frames)
		}
	}
	if sink.writes[last] != n%frames {
		t.Fatalf("last write: %d samples, want %d", sink.writes[last], n%frames)
	}
	for i, v := range sink.samples {
		if v == 0 {
			t.Fatalf("sample %d is silence", i)
		}
	}
}
