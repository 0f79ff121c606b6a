// Package playback is the song transport: it keeps the playback clock the
// scorer reads and, for local WAV songs, feeds the audio to an output device.
package playback

import (
	"fmt"
	"sync"

	"github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"

	"karaoke/capture"
)

// Sink receives mono song audio. Write blocks until the device accepted it.
// Frames is the device period; writes of any other length get padded.
type Sink interface {
	Write(b *audio.FloatBuffer) error
	Frames() int
	Close() error
}

// Output is a blocking portaudio output stream.
type Output struct {
	mu           sync.Mutex
	stream       *portaudio.Stream
	streamBuffer audio.Float32Buffer
	volume       float32
	mute         bool
}

// OpenOutput opens dev (index, name prefix, or "" for the default output)
// for mono playback at sampleRate, frames samples per write.
func OpenOutput(dev string, sampleRate, frames int) (*Output, error) {
	info, err := capture.FindDevice(dev, capture.Out)
	if err != nil {
		return nil, err
	}

	const numChannels = 1

	p := portaudio.HighLatencyParameters(nil, info)
	p.Input.Channels = 0
	p.Output.Channels = numChannels
	p.SampleRate = float64(sampleRate)
	p.FramesPerBuffer = frames

	buf32 := audio.Float32Buffer{
		Format: &audio.Format{NumChannels: numChannels, SampleRate: sampleRate},
		Data:   make([]float32, frames),
	}

	stream, err := portaudio.OpenStream(p, buf32.Data)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start output: %w", err)
	}

	return &Output{
		volume:       1.0,
		stream:       stream,
		streamBuffer: buf32,
	}, nil
}

func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stream == nil {
		return nil
	}
	o.stream.Stop()
	err := o.stream.Close()
	o.stream = nil
	return err
}

func (o *Output) Frames() int {
	return len(o.streamBuffer.Data)
}

func (o *Output) Volume() float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// SetVolume sets the gain, clamped to [0, 2].
func (o *Output) SetVolume(v float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = min(max(v, 0), 2)
}

// Mute keeps the stream running on silence, so the song stays in step
// with the clock.
func (o *Output) Mute(m bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mute = m
}

// Write plays b in Frames sized pieces, padding the last one with silence.
func (o *Output) Write(b *audio.FloatBuffer) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stream == nil {
		return fmt.Errorf("output closed")
	}

	gain := o.volume
	if o.mute {
		gain = 0
	}

	buf32 := b.AsFloat32Buffer()
	if gain != 1.0 {
		for i := range buf32.Data {
			buf32.Data[i] *= gain
		}
	}

	data := buf32.Data
	for len(data) > 0 {
		n := copy(o.streamBuffer.Data, data)
		for i := n; i < len(o.streamBuffer.Data); i++ {
			o.streamBuffer.Data[i] = 0
		}
		data = data[n:]

		if err := o.stream.Write(); err != nil {
			return err
		}
	}
	return nil
}
