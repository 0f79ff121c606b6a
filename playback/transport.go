package playback

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/audio"

	"karaoke/capture"
	"karaoke/catalog"
)

const chunkSize = 1024 // samples per write when the sink has no period

// Transport plays one song at a time. The position is a clock: it advances
// while playing and holds while paused. YouTube songs only have the clock;
// local WAV songs are also sent to a Sink when OpenOutput is set.
type Transport struct {
	OpenOutput func(sampleRate int) (Sink, error)
	Log        *slog.Logger
	Now        func() time.Time

	mu      sync.Mutex
	song    *catalog.Song
	lyrics  []catalog.Line
	playing bool
	offset  time.Duration // position when last paused
	since   time.Time     // when play last resumed

	track []float32
	rate  int
	sink  Sink

	cancel context.CancelFunc
	done   chan struct{}
}

// Load makes song the current song, stopped at position zero.
func (t *Transport) Load(song catalog.Song) {
	t.stopPump()

	t.mu.Lock()
	prev := t.sink
	t.song = &song
	t.lyrics = catalog.ParseLyrics(song.Lyrics)
	t.playing = false
	t.offset = 0
	t.track, t.rate, t.sink = nil, 0, nil
	t.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	if song.YouTubeID == "" && song.FilePath != "" && t.OpenOutput != nil {
		t.loadTrack(song.FilePath)
	}

	t.logger().Info("song loaded", "id", song.ID, "title", song.Title)
}

func (t *Transport) loadTrack(path string) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		t.logger().Info("no audio output for file type", "file", path)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		t.logger().Warn("open song", "file", path, "error", err)
		return
	}
	defer f.Close()

	samples, rate, err := capture.DecodeWave(f)
	if err != nil {
		t.logger().Warn("decode song", "file", path, "error", err)
		return
	}

	sink, err := t.OpenOutput(rate)
	if err != nil {
		t.logger().Warn("open output", "error", err)
		return
	}

	t.mu.Lock()
	t.track, t.rate, t.sink = samples, rate, sink
	t.mu.Unlock()
}

// Play starts or resumes the current song. It reports false when no song
// is loaded.
func (t *Transport) Play() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.song == nil {
		return false
	}
	if !t.playing {
		t.playing = true
		t.since = t.now()
		if t.sink != nil && t.cancel == nil {
			t.startPump()
		}
	}
	return true
}

func (t *Transport) Pause() {
	t.mu.Lock()
	if t.playing {
		t.offset += t.now().Sub(t.since)
		t.playing = false
	}
	t.mu.Unlock()

	t.stopPump()
}

// Toggle flips between playing and paused and returns whether the song is
// now playing.
func (t *Transport) Toggle() bool {
	if t.Playing() {
		t.Pause()
		return false
	}
	return t.Play()
}

func (t *Transport) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// CurrentTime is the playback position in seconds.
func (t *Transport) CurrentTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position().Seconds()
}

func (t *Transport) HasActiveSong() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.song != nil
}

func (t *Transport) Song() (catalog.Song, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.song == nil {
		return catalog.Song{}, false
	}
	return *t.song, true
}

// Lyrics of the current song, parsed once at Load.
func (t *Transport) Lyrics() []catalog.Line {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lyrics
}

func (t *Transport) Close() error {
	t.stopPump()

	t.mu.Lock()
	sink := t.sink
	t.sink = nil
	t.mu.Unlock()

	if sink != nil {
		return sink.Close()
	}
	return nil
}

func (t *Transport) position() time.Duration {
	pos := t.offset
	if t.playing {
		pos += t.now().Sub(t.since)
	}
	if pos < 0 {
		pos = 0
	}
	if t.rate > 0 {
		if end := time.Duration(len(t.track)) * time.Second / time.Duration(t.rate); pos > end {
			pos = end
		}
	}
	return pos
}

// startPump feeds the sink from the current position. Called with mu held.
func (t *Transport) startPump() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel, t.done = cancel, done

	sink, track, rate := t.sink, t.track, t.rate
	next := int(t.position().Seconds() * float64(rate))
	log := t.logger()

	size := sink.Frames()
	if size <= 0 {
		size = chunkSize
	}

	go func() {
		defer close(done)

		format := &audio.Format{NumChannels: 1, SampleRate: rate}
		for next < len(track) && ctx.Err() == nil {
			end := min(next+size, len(track))

			buf := &audio.FloatBuffer{Format: format, Data: make([]float64, end-next)}
			for i, v := range track[next:end] {
				buf.Data[i] = float64(v)
			}

			if err := sink.Write(buf); err != nil {
				log.Warn("song output", "error", err)
				return
			}
			next = end
		}
	}()
}

func (t *Transport) stopPump() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *Transport) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Transport) logger() *slog.Logger {
	if t.Log != nil {
		return t.Log
	}
	return slog.Default()
}
