package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"
)

type Kind int

const (
	InOut Kind = iota
	In
	Out
)

// ListDevices returns the host audio devices that can serve k, in host
// order. portaudio must be initialized.
func ListDevices(k Kind) ([]*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	return filter(devices, k), nil
}

// FindDevice resolves a device by 1-based index or name prefix. An empty
// name selects the host default for the given direction.
func FindDevice(name string, k Kind) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if k == Out {
			return portaudio.DefaultOutputDevice()
		}
		return portaudio.DefaultInputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	return lookup(devices, name, k)
}

// lookup indexes into the full host list, the numbering -list prints.
// Prefix matches skip devices without channels in direction k.
func lookup(devices []*portaudio.DeviceInfo, name string, k Kind) (*portaudio.DeviceInfo, error) {
	if i, err := strconv.Atoi(name); err == nil && i > 0 && i <= len(devices) {
		return devices[i-1], nil
	}

	for _, d := range filter(devices, k) {
		if strings.HasPrefix(d.Name, name) {
			return d, nil
		}
	}

	return nil, fmt.Errorf("device not found: %s", name)
}

func filter(devices []*portaudio.DeviceInfo, k Kind) []*portaudio.DeviceInfo {
	var list []*portaudio.DeviceInfo
	for _, d := range devices {
		if k == In && d.MaxInputChannels == 0 || k == Out && d.MaxOutputChannels == 0 {
			continue
		}
		list = append(list, d)
	}
	return list
}

// Microphone is a live mono input stream. The host audio thread pushes
// every buffer into a Ring; readers only ever see the latest samples.
type Microphone struct {
	Name string

	mu     sync.Mutex
	stream *portaudio.Stream
	format *audio.Format
	ring   *Ring
}

// OpenMicrophone opens and starts a mono input stream at the device's native
// sample rate. frames is the host buffer size, history the number of samples
// kept for Latest.
func OpenMicrophone(name string, frames, history int) (*Microphone, error) {
	info, err := FindDevice(name, In)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if info.MaxInputChannels < 1 {
		return nil, fmt.Errorf("%w: %s has no input channels", ErrDeviceUnavailable, info.Name)
	}

	const numChannels = 1

	p := portaudio.LowLatencyParameters(info, nil)
	p.Input.Channels = numChannels
	p.Output.Channels = 0
	p.SampleRate = info.DefaultSampleRate
	p.FramesPerBuffer = frames

	m := &Microphone{
		Name:   info.Name,
		format: &audio.Format{NumChannels: numChannels, SampleRate: int(info.DefaultSampleRate)},
		ring:   NewRing(history),
	}

	stream, err := portaudio.OpenStream(p, m.process)
	if err != nil {
		return nil, classify(fmt.Errorf("open input: %w", err))
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, classify(fmt.Errorf("start input: %w", err))
	}

	m.stream = stream
	return m, nil
}

// process runs on the portaudio callback thread.
func (m *Microphone) process(in []float32) {
	m.ring.Write(in)
}

func (m *Microphone) SampleRate() int {
	return m.format.SampleRate
}

func (m *Microphone) Latest(dst []float32) uint64 {
	return m.ring.Latest(dst)
}

func (m *Microphone) Close() error {
	m.mu.Lock()
	stream := m.stream
	m.stream = nil
	m.mu.Unlock()

	if stream == nil {
		return nil
	}

	err := stream.Stop()
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	return err
}

// classify maps a portaudio failure onto the capture error taxonomy.
// Device level codes mean the device is gone or busy; anything else the
// host refused to hand over, which is how denied capture access surfaces.
func classify(err error) error {
	switch {
	case errors.Is(err, portaudio.DeviceUnavailable),
		errors.Is(err, portaudio.InvalidDevice),
		errors.Is(err, portaudio.InvalidChannelCount),
		errors.Is(err, portaudio.InvalidSampleRate),
		errors.Is(err, portaudio.NotInitialized):
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
}
