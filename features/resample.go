package features

// Resample converts a signal from one sampling rate to another with linear
// interpolation. It is the identity when the rates already match.
//
// Linear interpolation is crude next to a polyphase filter, but it is
// deterministic, dependency-free and good enough ahead of a network that
// low-passes its input anyway.
func Resample(samples []float32, fromRate, toRate float64) []float32 {
	if len(samples) == 0 || fromRate <= 0 || toRate <= 0 || fromRate == toRate {
		return samples
	}
	ratio := fromRate / toRate
	outLen := int(float64(len(samples)) / ratio)
	if outLen < 1 {
		outLen = 1
	}
	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}
