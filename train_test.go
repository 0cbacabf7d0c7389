package ecgnet

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecgml/ecgnet/labels"

	_ "github.com/gomlx/gomlx/backends/default"
)

// tinyTrainingContext shrinks the model and the run so the test finishes in
// seconds on CPU.
func tinyTrainingContext() *context.Context {
	ctx := CreateDefaultContext()
	ctx.SetParams(map[string]any{
		"train_steps":     4,
		"batch_size":      2,
		"eval_batch_size": 4,
		"window_size":     512,

		ParamBaseFilters:    4,
		ParamNumStages:      2,
		ParamBlocksPerStage: 1,
		ParamSEReduction:    4,
	})
	return ctx
}

// TestTrainModel trains a tiny model on synthetic recordings and checks the
// model directory that comes out.
func TestTrainModel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testing in short mode")
		return
	}
	dataDir, modelDir := t.TempDir(), filepath.Join(t.TempDir(), "model")
	writeTestRecording(t, dataDir, "A0001", 1200, "426783006")
	writeTestRecording(t, dataDir, "A0002", 900, "164889003")
	writeTestRecording(t, dataDir, "A0003", 1500, "426783006,59118001")
	writeTestRecording(t, dataDir, "A0004", 1100, "164889003")

	ctx := tinyTrainingContext()
	require.NoError(t, TrainModel(ctx, dataDir, modelDir))

	artifact, err := LoadArtifact(modelDir)
	require.NoError(t, err)
	assert.Equal(t, 512, artifact.WindowSize)
	vocab, err := artifact.Vocabulary()
	require.NoError(t, err)
	assert.True(t, vocab.Equal(labels.Default()))
	for _, threshold := range artifact.Thresholds {
		assert.GreaterOrEqual(t, threshold, float32(0))
		assert.LessOrEqual(t, threshold, float32(1))
	}
}

// errorDataset yields the same error on every call.
type errorDataset struct{ err error }

func (ds *errorDataset) Name() string { return "errors" }
func (ds *errorDataset) Reset()       {}
func (ds *errorDataset) Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error) {
	return nil, nil, nil, ds.err
}

// TestPredictDatasetPropagatesErrors checks a failing dataset aborts the
// prediction pass instead of being mistaken for end of data.
func TestPredictDatasetPropagatesErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testing in short mode")
		return
	}
	backend := backends.New()
	ctx := tinyTrainingContext()
	ctx.SetParam(ParamNumClasses, labels.Default().Size())

	dsErr := errors.New("corrupt batch")
	_, err := predictDataset(backend, ctx, &errorDataset{err: dsErr})
	require.Error(t, err)
	assert.ErrorIs(t, err, dsErr)

	// io.EOF is a normal, empty pass.
	probs, err := predictDataset(backend, ctx, &errorDataset{err: io.EOF})
	require.NoError(t, err)
	assert.Empty(t, probs)
}

func TestTrainModelEmptyDataDir(t *testing.T) {
	ctx := tinyTrainingContext()
	modelDir := t.TempDir()
	err := TrainModel(ctx, t.TempDir(), modelDir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	// An aborted run must not leave a readable artifact behind.
	_, err = LoadArtifact(modelDir)
	require.Error(t, err)
}
