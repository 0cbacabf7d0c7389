package ecgnet

import (
	"math"

	"github.com/pkg/errors"
)

// Stats holds the normalization statistics fitted on a training corpus.
// Waveforms are standardized per lead, feature vectors per feature. The same
// stats are applied verbatim at inference, so they travel with the model
// artifact.
type Stats struct {
	LeadMean []float32 `json:"lead_mean"`
	LeadStd  []float32 `json:"lead_std"`
	FeatMean []float32 `json:"feat_mean"`
	FeatStd  []float32 `json:"feat_std"`
}

// minStd guards against division by a degenerate (constant) column.
const minStd = 1e-6

// FitStats computes per-lead and per-feature mean and standard deviation over
// the corpus. Sentinel feature values are included as-is: they are constants,
// and standardizing them keeps them constants.
func (c *Corpus) FitStats() *Stats {
	s := &Stats{
		LeadMean: make([]float32, NumLeads),
		LeadStd:  make([]float32, NumLeads),
		FeatMean: make([]float32, c.NumFeatures),
		FeatStd:  make([]float32, c.NumFeatures),
	}
	fitColumns(c.Waves, NumLeads, s.LeadMean, s.LeadStd)
	fitColumns(c.Feats, c.NumFeatures, s.FeatMean, s.FeatStd)
	return s
}

// fitColumns treats flat as rows of numCols values and fills mean and std
// per column.
func fitColumns(flat []float32, numCols int, mean, std []float32) {
	if len(flat) == 0 {
		for col := range mean {
			mean[col], std[col] = 0, 1
		}
		return
	}
	numRows := len(flat) / numCols
	sums := make([]float64, numCols)
	for i, v := range flat {
		sums[i%numCols] += float64(v)
	}
	for col := range mean {
		mean[col] = float32(sums[col] / float64(numRows))
	}
	sqSums := make([]float64, numCols)
	for i, v := range flat {
		d := float64(v) - float64(mean[i%numCols])
		sqSums[i%numCols] += d * d
	}
	for col := range std {
		std[col] = float32(math.Sqrt(sqSums[col] / float64(numRows)))
		if std[col] < minStd {
			std[col] = 1
		}
	}
}

// Normalize standardizes the corpus in place with the given stats.
func (c *Corpus) Normalize(s *Stats) {
	normalizeColumns(c.Waves, s.LeadMean, s.LeadStd)
	normalizeColumns(c.Feats, s.FeatMean, s.FeatStd)
}

// NormalizeWave standardizes one flat waveform window in place.
func (s *Stats) NormalizeWave(wave []float32) {
	normalizeColumns(wave, s.LeadMean, s.LeadStd)
}

// NormalizeFeatures standardizes one feature vector in place.
func (s *Stats) NormalizeFeatures(feats []float32) {
	normalizeColumns(feats, s.FeatMean, s.FeatStd)
}

func normalizeColumns(flat []float32, mean, std []float32) {
	numCols := len(mean)
	for i, v := range flat {
		col := i % numCols
		flat[i] = (v - mean[col]) / std[col]
	}
}

// Validate checks the stats are shaped for this model configuration.
func (s *Stats) Validate(numFeatures int) error {
	if len(s.LeadMean) != NumLeads || len(s.LeadStd) != NumLeads {
		return errors.Errorf("normalization stats cover %d leads, model needs %d",
			len(s.LeadMean), NumLeads)
	}
	if len(s.FeatMean) != numFeatures || len(s.FeatStd) != numFeatures {
		return errors.Errorf("normalization stats cover %d features, model needs %d",
			len(s.FeatMean), numFeatures)
	}
	return nil
}
