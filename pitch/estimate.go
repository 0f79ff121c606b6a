// Package pitch estimates the sung pitch from a magnitude spectrum and
// scores it against the pitch the song expects.
package pitch

// Estimate returns a fundamental frequency in Hz for one byte magnitude
// spectrum, or 0 when nothing was detected.
//
// The estimate autocorrelates the magnitude bins themselves, not the
// waveform: lag offset in [1, n/2) is scored by sum(s[i]*s[i+offset]) and the
// first lag with the strictly largest positive score wins. The lag is then
// read as a period in samples, so pitch = sampleRate / offset. This is a
// coarse heuristic with known blind spots; scores recorded with it are only
// comparable as long as it stays exactly this computation.
func Estimate(s []uint8, sampleRate int) float64 {
	if offset := bestOffset(s); offset > 0 && sampleRate > 0 {
		return float64(sampleRate) / float64(offset)
	}
	return 0
}

// bestOffset is O(n^2) in the bin count.
func bestOffset(s []uint8) int {
	n := len(s)
	maxCorrelation := 0
	best := -1

	for offset := 1; 2*offset < n; offset++ {
		correlation := 0
		for i := 0; i < n-offset; i++ {
			correlation += int(s[i]) * int(s[i+offset])
		}
		if correlation > maxCorrelation {
			maxCorrelation = correlation
			best = offset
		}
	}

	return best
}
