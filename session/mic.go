package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"karaoke/capture"
	"karaoke/pitch"
	"karaoke/spectrum"
)

var ErrAlreadyEnabled = errors.New("microphone already enabled")

const (
	StatusEnabled  = "Enabled"
	StatusDisabled = "Disabled"
)

// Opener acquires a capture device.
type Opener func() (capture.Device, error)

// Mic toggles scoring on and off. At most one Session is alive at a time.
// SetScore and SetStatus are the display callbacks; they may read the Mic
// but must not Enable, Disable or Toggle it.
type Mic struct {
	Open     Opener
	FFTSize  int
	Curve    pitch.Curve
	Playback Playback
	Log      *slog.Logger

	SetScore  func(score int)
	SetStatus func(status string)

	op      sync.Mutex // serializes Enable and Disable
	mu      sync.Mutex
	session *Session
	status  string
}

// Enable opens the capture device, builds the analyzer and starts a fresh
// session. Capture failures are reported through SetStatus and returned;
// the Mic stays disabled.
func (m *Mic) Enable(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	if m.current() != nil {
		return ErrAlreadyEnabled
	}

	s, err := m.open()
	if err != nil {
		m.logger().Error("enable microphone", "error", err)
		m.publish("Error: " + err.Error())
		return err
	}

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	if m.SetScore != nil {
		m.SetScore(0)
	}
	s.Start(ctx)
	m.logger().Info("microphone enabled")

	m.publish(StatusEnabled)
	return nil
}

func (m *Mic) open() (*Session, error) {
	if m.Open == nil {
		return nil, fmt.Errorf("%w: no capture source", capture.ErrDeviceUnavailable)
	}

	dev, err := m.Open()
	if err != nil {
		return nil, err
	}

	size := m.FFTSize
	if size == 0 {
		size = spectrum.FFTSize
	}

	analyzer, err := spectrum.NewAnalyzer(dev, size)
	if err != nil {
		dev.Close()
		return nil, err
	}

	s := New(dev, analyzer, m.Curve, m.Playback, m.logger())
	s.OnScore = m.SetScore
	return s, nil
}

// Disable stops the session and releases the device. It is a no-op apart
// from the status update when the Mic was never enabled.
func (m *Mic) Disable() {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()

	if s != nil {
		if err := s.Close(); err != nil {
			m.logger().Warn("close capture device", "error", err)
		}
		m.logger().Info("microphone disabled", "score", s.Score())
	}

	m.publish(StatusDisabled)
}

// Toggle disables an enabled Mic and enables a disabled one.
func (m *Mic) Toggle(ctx context.Context) error {
	if m.Enabled() {
		m.Disable()
		return nil
	}
	return m.Enable(ctx)
}

func (m *Mic) Enabled() bool {
	return m.current() != nil
}

func (m *Mic) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == "" {
		return StatusDisabled
	}
	return m.status
}

// Reading returns the latest tick of the running session.
func (m *Mic) Reading() Reading {
	if s := m.current(); s != nil {
		return s.Reading()
	}
	return Reading{}
}

func (m *Mic) current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *Mic) publish(status string) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()

	if m.SetStatus != nil {
		m.SetStatus(status)
	}
}

func (m *Mic) logger() *slog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return slog.Default()
}
