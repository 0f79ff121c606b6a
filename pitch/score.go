package pitch

import "math"

// Accuracy scores a sung pitch against the expected one on a 0-100 scale:
// 100 minus the distance in cents, so a semitone off or worse scores 0.
// A missing or non-positive pitch on either side scores 0.
func Accuracy(user, expected float64) float64 {
	if expected <= 0 || user <= 0 || math.IsNaN(user) || math.IsNaN(expected) {
		return 0
	}

	acc := 100 - math.Abs(Cents(user, expected))
	if math.IsNaN(acc) || acc < 0 {
		return 0
	}
	return math.Min(acc, 100)
}

// Cents is the signed interval from ref to f; 100 cents is one semitone.
func Cents(f, ref float64) float64 {
	return 1200 * math.Log2(f/ref)
}
