package features

import "gonum.org/v1/gonum/floats"

// DetectRPeaks finds R peak positions (sample indices) in a single ECG lead.
//
// It is a stripped-down Pan-Tompkins: differentiate, square, integrate over a
// ~150ms moving window, then pick local maxima above a fixed fraction of the
// strongest deflection, enforcing a 200ms refractory period. It is tuned for
// robustness over precision: downstream only RR-interval statistics are
// derived from it.
func DetectRPeaks(samples []float32, samplingRate float64) []int {
	if len(samples) < 3 || samplingRate <= 0 {
		return nil
	}

	// Differentiate and square: emphasizes the steep QRS slopes.
	energy := make([]float64, len(samples))
	for i := 1; i < len(samples); i++ {
		d := float64(samples[i] - samples[i-1])
		energy[i] = d * d
	}

	// Moving-window integration, ~150ms.
	integWindow := int(0.150 * samplingRate)
	if integWindow < 1 {
		integWindow = 1
	}
	integrated := make([]float64, len(energy))
	var sum float64
	for i := range energy {
		sum += energy[i]
		if i >= integWindow {
			sum -= energy[i-integWindow]
		}
		integrated[i] = sum
	}

	peak := floats.Max(integrated)
	if peak <= 0 {
		// Flat line.
		return nil
	}
	threshold := 0.3 * peak
	refractory := int(0.200 * samplingRate)
	if refractory < 1 {
		refractory = 1
	}

	var peaks []int
	lastPeak := -refractory
	for i := 1; i < len(integrated)-1; i++ {
		if integrated[i] < threshold {
			continue
		}
		if integrated[i] < integrated[i-1] || integrated[i] <= integrated[i+1] {
			continue // Not a local maximum.
		}
		if i-lastPeak < refractory {
			// Within the refractory period keep the stronger candidate.
			if len(peaks) > 0 && integrated[i] > integrated[peaks[len(peaks)-1]] {
				peaks[len(peaks)-1] = i
				lastPeak = i
			}
			continue
		}
		peaks = append(peaks, i)
		lastPeak = i
	}
	return peaks
}
