package capture

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/transforms"
	"github.com/go-audio/wav"
)

// DecodeWave reads a whole PCM WAV stream, downmixes it to mono and scales
// it to [-1, 1].
func DecodeWave(r io.ReadSeeker) ([]float32, int, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid WAV file")
	}

	ib, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read pcm: %w", err)
	}
	if ib == nil || ib.Format == nil {
		return nil, 0, fmt.Errorf("empty WAV file")
	}

	fb := ib.AsFloatBuffer()
	if fb.Format.NumChannels > 1 {
		if err := transforms.MonoDownmix(fb); err != nil {
			return nil, 0, fmt.Errorf("downmix: %w", err)
		}
	}

	depth := int(decoder.BitDepth)
	if depth <= 0 {
		depth = 16
	}
	scale := 1.0 / float64(int64(1)<<(depth-1))

	samples := make([]float32, len(fb.Data))
	for i, v := range fb.Data {
		samples[i] = float32(v * scale)
	}

	return samples, fb.Format.SampleRate, nil
}

// WaveFile replays a decoded recording as if it were arriving live: the
// samples visible to Latest are those whose time has come since Open.
type WaveFile struct {
	Name string

	// Now is the clock the replay position is derived from.
	Now func() time.Time

	mu      sync.Mutex
	samples []float32
	format  *audio.Format
	start   time.Time
	closed  bool
}

func OpenWaveFile(path string) (*WaveFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer f.Close()

	samples, rate, err := DecodeWave(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, path, err)
	}

	return NewWaveFile(path, samples, rate, time.Now), nil
}

// NewWaveFile starts replaying samples at the current time of now.
func NewWaveFile(name string, samples []float32, sampleRate int, now func() time.Time) *WaveFile {
	if now == nil {
		now = time.Now
	}
	return &WaveFile{
		Name:    name,
		Now:     now,
		samples: samples,
		format:  &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		start:   now(),
	}
}

func (w *WaveFile) SampleRate() int {
	return w.format.SampleRate
}

// Latest returns the window ending at the replay position. Past the end of
// the recording the window slides into silence.
func (w *WaveFile) Latest(dst []float32) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range dst {
		dst[i] = 0
	}
	if w.closed {
		return 0
	}

	elapsed := w.Now().Sub(w.start)
	if elapsed < 0 {
		elapsed = 0
	}
	pos := int64(elapsed.Seconds() * float64(w.format.SampleRate))

	for i := range dst {
		j := pos - int64(len(dst)) + int64(i)
		if j >= 0 && j < int64(len(w.samples)) {
			dst[i] = w.samples[j]
		}
	}

	return uint64(pos)
}

func (w *WaveFile) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}
