package ecgnet

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/fnn"
	"github.com/gomlx/gomlx/ml/layers/regularizers"
	"github.com/gomlx/gomlx/ml/train/optimizers"

	"github.com/ecgml/ecgnet/features"
)

// ParamsExcludedFromSaving are hyperparameters that should not be saved with
// the model checkpoint, and may be freely overridden in later sessions.
var ParamsExcludedFromSaving = []string{"train_steps", "num_checkpoints"}

// CreateDefaultContext returns a context with the default hyperparameters.
// Individual values can be overridden from the command line with the
// context-settings flag (see commandline.CreateContextSettingsFlag).
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	ctx.RngStateReset()
	ctx.SetParams(map[string]any{
		"train_steps":     2000,
		"num_checkpoints": 3,

		// batch_size for training; eval_batch_size can be larger, it's
		// more efficient.
		"batch_size":      32,
		"eval_batch_size": 128,

		// Windowing policy: waveforms are resampled to model_sampling_rate
		// and center-cropped/zero-padded to window_size samples (~10.2s at
		// 400Hz). Persisted in the model artifact: inference always reuses
		// the training-time values.
		"window_size":         4096,
		"model_sampling_rate": 400.0,

		// What to do with diagnosis codes outside the vocabulary at
		// training time: "drop" or "fail".
		"unknown_code_policy": "drop",

		// SE-ResNet1D shape.
		ParamBaseFilters:    32,
		ParamNumStages:      4,
		ParamBlocksPerStage: 2,
		ParamSEReduction:    16,

		// Head FNN on top of the pooled embeddings + hand-crafted features.
		fnn.ParamNumHiddenLayers: 1,
		fnn.ParamNumHiddenNodes:  128,
		fnn.ParamResidual:        false,

		optimizers.ParamOptimizer:    "adamw",
		optimizers.ParamLearningRate: 1e-4,
		optimizers.ParamAdamEpsilon:  1e-7,
		activations.ParamActivation:  "relu",
		layers.ParamDropoutRate:      0.2,
		regularizers.ParamL2:         1e-5,
	})
	return ctx
}

// FeatureConfigFromContext builds the windowing/feature configuration from
// hyperparameters.
func FeatureConfigFromContext(ctx *context.Context) features.Config {
	return features.Config{
		SamplingRate: context.GetParamOr(ctx, "model_sampling_rate", 400.0),
		WindowSize:   context.GetParamOr(ctx, "window_size", 4096),
	}
}
