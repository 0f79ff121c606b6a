package pitch

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// A4 is the reference pitch used when a song carries no pitch track.
const A4 = 440.0

// Curve maps elapsed playback time in seconds to the expected pitch in Hz.
// Implementations must be deterministic and free of side effects so a
// playback trace always scores the same.
type Curve interface {
	ExpectedPitch(seconds float64) float64
}

// CurveFunc adapts a plain function to Curve.
type CurveFunc func(seconds float64) float64

func (f CurveFunc) ExpectedPitch(seconds float64) float64 {
	return f(seconds)
}

// Constant expects the same pitch for the whole song.
type Constant float64

func (c Constant) ExpectedPitch(float64) float64 {
	return float64(c)
}

type Step struct {
	At float64 `json:"at"` // seconds
	Hz float64 `json:"hz"`
}

// Steps holds each pitch from its At time until the next step. Before the
// first step the first pitch applies.
type Steps []Step

func (s Steps) ExpectedPitch(seconds float64) float64 {
	if len(s) == 0 {
		return 0
	}
	i := sort.Search(len(s), func(i int) bool { return s[i].At > seconds })
	if i == 0 {
		return s[0].Hz
	}
	return s[i-1].Hz
}

// LoadSteps reads a JSON array of {"at": seconds, "hz": pitch} objects.
func LoadSteps(r io.Reader) (Steps, error) {
	var steps Steps
	if err := json.NewDecoder(r).Decode(&steps); err != nil {
		return nil, fmt.Errorf("decode pitch curve: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("pitch curve is empty")
	}

	for i, st := range steps {
		if st.Hz <= 0 {
			return nil, fmt.Errorf("pitch curve step %d: pitch must be positive, got %v", i, st.Hz)
		}
		if st.At < 0 {
			return nil, fmt.Errorf("pitch curve step %d: negative time %v", i, st.At)
		}
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].At < steps[j].At })
	return steps, nil
}
