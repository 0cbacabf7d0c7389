package ecgnet

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ecgml/ecgnet/features"
	"github.com/ecgml/ecgnet/labels"
)

// ArtifactVersion is bumped whenever the artifact layout changes
// incompatibly.
const ArtifactVersion = 1

// ArtifactFileName is the manifest inside a model directory. It is written
// last, after the checkpoint, so a readable manifest implies a complete model
// directory.
const ArtifactFileName = "artifact.json"

// Artifact is everything inference needs besides the checkpointed weights:
// the preprocessing configuration, the label vocabulary in prediction order,
// the normalization statistics and the per-class decision thresholds.
type Artifact struct {
	Version int `json:"version"`

	WindowSize   int     `json:"window_size"`
	SamplingRate float64 `json:"sampling_rate"`
	NumFeatures  int     `json:"num_features"`

	Classes    []labels.Class `json:"classes"`
	Stats      *Stats         `json:"stats"`
	Thresholds []float32      `json:"thresholds"`
}

// Vocabulary rebuilds the label vocabulary in the artifact's class order.
func (a *Artifact) Vocabulary() (*labels.Vocabulary, error) {
	return labels.New(a.Classes)
}

// FeatureConfig returns the preprocessing configuration the model was trained
// with.
func (a *Artifact) FeatureConfig() features.Config {
	return features.Config{
		SamplingRate: a.SamplingRate,
		WindowSize:   a.WindowSize,
	}
}

// Validate checks internal consistency of a loaded artifact.
func (a *Artifact) Validate() error {
	if a.Version != ArtifactVersion {
		return errors.Errorf("model artifact version %d, this build reads version %d",
			a.Version, ArtifactVersion)
	}
	if a.WindowSize <= 0 || a.SamplingRate <= 0 {
		return errors.Errorf("model artifact has invalid window (%d samples at %gHz)",
			a.WindowSize, a.SamplingRate)
	}
	if len(a.Classes) == 0 {
		return errors.New("model artifact has an empty vocabulary")
	}
	if len(a.Thresholds) != len(a.Classes) {
		return errors.Errorf("model artifact has %d thresholds for %d classes",
			len(a.Thresholds), len(a.Classes))
	}
	if a.Stats == nil {
		return errors.New("model artifact is missing normalization stats")
	}
	return a.Stats.Validate(a.NumFeatures)
}

// Save writes the artifact atomically into modelDir: a temporary file is
// renamed over the final name, so readers either see the previous complete
// manifest or the new one, never a partial write.
func (a *Artifact) Save(modelDir string) error {
	encoded, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding model artifact")
	}
	tmp, err := os.CreateTemp(modelDir, ArtifactFileName+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "creating temporary artifact in %q", modelDir)
	}
	tmpPath := tmp.Name()
	if _, err = tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "writing %q", tmpPath)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "closing %q", tmpPath)
	}
	finalPath := filepath.Join(modelDir, ArtifactFileName)
	if err = os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "renaming artifact into place at %q", finalPath)
	}
	return nil
}

// LoadArtifact reads and validates the manifest of a model directory.
func LoadArtifact(modelDir string) (*Artifact, error) {
	path := filepath.Join(modelDir, ArtifactFileName)
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading model artifact %q", path)
	}
	artifact := &Artifact{}
	if err = json.Unmarshal(encoded, artifact); err != nil {
		return nil, errors.Wrapf(err, "decoding model artifact %q", path)
	}
	if err = artifact.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "validating model artifact %q", path)
	}
	return artifact, nil
}
