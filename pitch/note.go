package pitch

import (
	"fmt"
	"math"
)

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

type Note struct {
	Name      string  // e.g. "A4"
	Frequency float64 // equal-tempered frequency of the note
	Cents     float64 // deviation of the input from Frequency
}

// NearestNote names the equal-tempered note closest to f (A4 = 440 Hz).
// ok is false for frequencies that can't be named.
func NearestNote(f float64) (n Note, ok bool) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return Note{}, false
	}

	semitones := math.Round(12 * math.Log2(f/A4))
	midi := 69 + int(semitones)
	if midi < 0 || midi > 127 {
		return Note{}, false
	}

	n.Frequency = A4 * math.Pow(2, semitones/12)
	n.Name = fmt.Sprintf("%s%d", noteNames[midi%12], midi/12-1)
	n.Cents = Cents(f, n.Frequency)
	return n, true
}

func (n Note) String() string {
	return fmt.Sprintf("%s %+.0fc", n.Name, n.Cents)
}
