package spectrum

const NumBands = 8

var levels = [8]rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Bars condenses a spectrum between minFreq and maxFreq into NumBands
// levels, as block glyphs when graphic is set and as digits 0-7 otherwise.
func Bars(s Spectrum, sampleRate int, minFreq, maxFreq float64, graphic bool) (result [NumBands]rune) {
	for i := range result {
		if graphic {
			result[i] = levels[0]
		} else {
			result[i] = '0'
		}
	}

	if len(s) == 0 || sampleRate <= 0 {
		return result
	}

	freqResolution := float64(sampleRate) / float64(len(s)*2)

	minBin := int(minFreq / freqResolution)
	maxBin := int(maxFreq / freqResolution)

	if minBin < 0 {
		minBin = 0
	}
	if maxBin >= len(s) {
		maxBin = len(s) - 1
	}

	if maxBin <= minBin {
		return result
	}

	totalBins := maxBin - minBin + 1
	binsPerBand := float64(totalBins) / NumBands

	for i := 0; i < NumBands; i++ {
		startBin := minBin + int(float64(i)*binsPerBand)
		endBin := minBin + int(float64(i+1)*binsPerBand)
		if endBin > maxBin+1 {
			endBin = maxBin + 1
		}
		if startBin >= endBin {
			startBin = endBin - 1
		}

		sum, count := 0, 0
		for j := startBin; j < endBin; j++ {
			sum += int(s[j])
			count++
		}

		level := 0
		if count > 0 {
			level = sum * 8 / (count * 256)
		}
		if level > 7 {
			level = 7
		}

		if graphic {
			result[i] = levels[level]
		} else {
			result[i] = rune('0' + level)
		}
	}

	return result
}
