// Package features turns a wfdb.Recording into the model's numeric inputs:
// a fixed-size waveform window and a fixed-length vector of hand-crafted
// statistics.
//
// Both transformations are pure functions of the recording and the Config
// (no randomness, no global state), so the exact same pipeline runs at
// training and at inference time.
package features

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ecgml/ecgnet/wfdb"
)

// Sentinel is the value substituted for statistics that cannot be computed on
// a degenerate signal (e.g. RR intervals when fewer than two beats are
// detected). A bad recording yields sentinels, never an error: one unusable
// recording must not abort a training run.
const Sentinel = -1.0

// Config fixes the windowing policy and the hand-crafted feature layout.
// The same Config that trained a model must be used to run it; it is
// persisted in the model artifact.
type Config struct {
	// SamplingRate the waveform is resampled to before windowing, in Hz.
	SamplingRate float64

	// WindowSize is the fixed number of samples (per lead) fed to the
	// network. Longer recordings are center-cropped, shorter ones are
	// zero-padded at the tail.
	WindowSize int
}

// statsPerLead is the number of amplitude statistics computed for each lead.
const statsPerLead = 4

// rhythmFeatures is the number of RR-interval statistics computed from the
// rhythm lead.
const rhythmFeatures = 6

// demographicFeatures covers age and sex.
const demographicFeatures = 2

// NumFeatures returns the length of the feature vector Extract produces for
// recordings with numLeads leads.
func NumFeatures(numLeads int) int {
	return numLeads*statsPerLead + rhythmFeatures + demographicFeatures
}

// Window resamples the recording to cfg.SamplingRate and returns a flat
// [cfg.WindowSize, numLeads] waveform window (time-major, channels last),
// center-cropped or zero-padded to the fixed size.
func Window(rec *wfdb.Recording, cfg Config) []float32 {
	numLeads := rec.NumLeads()
	window := make([]float32, cfg.WindowSize*numLeads)
	for lead := 0; lead < numLeads; lead++ {
		resampled := Resample(rec.Samples[lead], rec.SamplingRate, cfg.SamplingRate)
		start := 0
		if len(resampled) > cfg.WindowSize {
			// Center crop: the middle of the recording is the least likely
			// to carry hookup artifacts.
			start = (len(resampled) - cfg.WindowSize) / 2
		}
		for t := 0; t < cfg.WindowSize && start+t < len(resampled); t++ {
			window[t*numLeads+lead] = resampled[start+t]
		}
		// Positions past the end of a short recording stay zero.
	}
	return window
}

// Extract computes the hand-crafted feature vector for a recording. The
// result always has length NumFeatures(rec.NumLeads()): statistics that
// cannot be computed are filled with Sentinel.
func Extract(rec *wfdb.Recording, cfg Config) []float32 {
	out := make([]float32, 0, NumFeatures(rec.NumLeads()))
	for lead := 0; lead < rec.NumLeads(); lead++ {
		out = append(out, leadStats(rec.Samples[lead])...)
	}
	out = append(out, rhythmStats(rec)...)
	out = append(out, demographics(rec)...)
	return out
}

// leadStats returns mean, standard deviation, min and max of one lead.
func leadStats(samples []float32) []float32 {
	if len(samples) == 0 {
		return []float32{Sentinel, Sentinel, Sentinel, Sentinel}
	}
	xs := toFloat64(samples)
	mean := stat.Mean(xs, nil)
	std := 0.0
	if len(xs) > 1 {
		std = stat.StdDev(xs, nil)
	}
	return []float32{
		float32(mean),
		float32(std),
		float32(floats.Min(xs)),
		float32(floats.Max(xs)),
	}
}

// rhythmStats derives heart-rate statistics from the R peaks of the rhythm
// lead (lead II when present, the first lead otherwise): heart rate in bpm,
// mean/stddev/min/max RR interval in seconds, and the detected beat count.
func rhythmStats(rec *wfdb.Recording) []float32 {
	lead := rec.LeadIndex("II")
	if lead < 0 {
		lead = 0
	}
	if lead >= rec.NumLeads() || rec.SamplingRate <= 0 {
		return sentinels(rhythmFeatures)
	}
	peaks := DetectRPeaks(rec.Samples[lead], rec.SamplingRate)
	if len(peaks) < 2 {
		return sentinels(rhythmFeatures)
	}
	rr := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		rr[i-1] = float64(peaks[i]-peaks[i-1]) / rec.SamplingRate
	}
	meanRR := stat.Mean(rr, nil)
	stdRR := 0.0
	if len(rr) > 1 {
		stdRR = stat.StdDev(rr, nil)
	}
	return []float32{
		float32(60.0 / meanRR),
		float32(meanRR),
		float32(stdRR),
		float32(floats.Min(rr)),
		float32(floats.Max(rr)),
		float32(len(peaks)),
	}
}

// demographics returns age (years, Sentinel when unknown) and sex encoded as
// 0 (male), 1 (female), Sentinel (unknown).
func demographics(rec *wfdb.Recording) []float32 {
	age := float32(Sentinel)
	if rec.Age >= 0 {
		age = float32(rec.Age)
	}
	sex := float32(Sentinel)
	switch rec.Sex {
	case "Male", "male", "M", "m":
		sex = 0
	case "Female", "female", "F", "f":
		sex = 1
	}
	return []float32{age, sex}
}

func sentinels(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = Sentinel
	}
	return out
}

func toFloat64(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}
