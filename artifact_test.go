package ecgnet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecgml/ecgnet/features"
	"github.com/ecgml/ecgnet/labels"
)

func testArtifact() *Artifact {
	numFeatures := features.NumFeatures(NumLeads)
	return &Artifact{
		Version:      ArtifactVersion,
		WindowSize:   4096,
		SamplingRate: 400,
		NumFeatures:  numFeatures,
		Classes:      labels.Default().Classes(),
		Stats: &Stats{
			LeadMean: make([]float32, NumLeads),
			LeadStd:  ones(NumLeads),
			FeatMean: make([]float32, numFeatures),
			FeatStd:  ones(numFeatures),
		},
		Thresholds: ones(labels.Default().Size()),
	}
}

func ones(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func TestArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	artifact := testArtifact()
	artifact.Thresholds[3] = 0.35
	require.NoError(t, artifact.Save(dir))

	loaded, err := LoadArtifact(dir)
	require.NoError(t, err)
	assert.Equal(t, artifact, loaded)

	vocab, err := loaded.Vocabulary()
	require.NoError(t, err)
	assert.True(t, vocab.Equal(labels.Default()))
	assert.Equal(t, features.Config{SamplingRate: 400, WindowSize: 4096},
		loaded.FeatureConfig())
}

func TestArtifactSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, testArtifact().Save(dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ArtifactFileName, entries[0].Name())
}

func TestArtifactSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	first := testArtifact()
	require.NoError(t, first.Save(dir))

	second := testArtifact()
	second.Thresholds[0] = 0.2
	require.NoError(t, second.Save(dir))

	loaded, err := LoadArtifact(dir)
	require.NoError(t, err)
	assert.Equal(t, float32(0.2), loaded.Thresholds[0])
}

func TestLoadArtifactMissing(t *testing.T) {
	_, err := LoadArtifact(t.TempDir())
	require.Error(t, err)
}

func TestLoadArtifactCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ArtifactFileName),
		[]byte("{not json"), 0644))
	_, err := LoadArtifact(dir)
	require.Error(t, err)
}

func TestArtifactValidate(t *testing.T) {
	breakIt := []struct {
		name  string
		mutate func(a *Artifact)
	}{
		{"wrong version", func(a *Artifact) { a.Version = ArtifactVersion + 1 }},
		{"zero window", func(a *Artifact) { a.WindowSize = 0 }},
		{"no classes", func(a *Artifact) { a.Classes = nil }},
		{"threshold count", func(a *Artifact) { a.Thresholds = a.Thresholds[:1] }},
		{"missing stats", func(a *Artifact) { a.Stats = nil }},
		{"stats shape", func(a *Artifact) { a.Stats.FeatMean = a.Stats.FeatMean[:2] }},
	}
	for _, tc := range breakIt {
		t.Run(tc.name, func(t *testing.T) {
			artifact := testArtifact()
			require.NoError(t, artifact.Validate())
			tc.mutate(artifact)
			assert.Error(t, artifact.Validate())
		})
	}
}
