package ecgnet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/ml/train/metrics"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ecgml/ecgnet/labels"
)

// TrainModel trains a classifier on the recordings under dataDir and leaves a
// complete model directory in modelDir: the checkpointed weights plus the
// artifact manifest, written last.
//
// If modelDir already holds a checkpoint, training resumes from it; the steps
// already taken count against "train_steps".
func TrainModel(ctx *context.Context, dataDir, modelDir string) error {
	dataDir = data.ReplaceTildeInDir(dataDir)
	modelDir = data.ReplaceTildeInDir(modelDir)
	if err := os.MkdirAll(modelDir, 0777); err != nil {
		return errors.Wrapf(err, "creating model directory %q", modelDir)
	}

	backend := backends.New()
	vocab := labels.Default()
	ctx.SetParam(ParamNumClasses, vocab.Size())

	policy, err := labels.ParseUnknownCodePolicy(
		context.GetParamOr(ctx, "unknown_code_policy", "drop"))
	if err != nil {
		return err
	}
	corpus, err := LoadCorpus(dataDir, vocab, FeatureConfigFromContext(ctx), policy, true)
	if err != nil {
		return err
	}
	stats := corpus.FitStats()
	corpus.Normalize(stats)

	batchSize := context.GetParamOr(ctx, "batch_size", 32)
	evalBatchSize := context.GetParamOr(ctx, "eval_batch_size", 128)
	trainDS, trainEvalDS, err := NewDatasets(backend, corpus, batchSize, evalBatchSize)
	if err != nil {
		return err
	}

	// Per-label accuracy over the sigmoid outputs.
	meanAccuracyMetric := metrics.NewMeanBinaryLogitsAccuracy("Mean Accuracy", "#acc")
	movingAccuracyMetric := metrics.NewMovingAverageBinaryLogitsAccuracy("Moving Average Accuracy", "~acc", 0.01)

	trainer := train.NewTrainer(backend, ctx,
		ModelGraph,
		losses.BinaryCrossentropyLogits,
		optimizers.FromContext(ctx),
		[]metrics.Interface{movingAccuracyMetric},
		[]metrics.Interface{meanAccuracyMetric})

	loop := train.NewLoop(trainer)
	commandline.AttachProgressBar(loop)

	numCheckpointsToKeep := context.GetParamOr(ctx, "num_checkpoints", 3)
	checkpoint, err := checkpoints.Build(ctx).
		Dir(modelDir).
		Keep(numCheckpointsToKeep).
		ExcludeParams(ParamsExcludedFromSaving...).
		Done()
	if err != nil {
		return errors.WithMessagef(err, "setting up checkpoints in %q", modelDir)
	}
	klog.V(1).Infof("Checkpointing model to %q", checkpoint.Dir())
	train.PeriodicCallback(loop, time.Minute, true, "saving checkpoint", 100,
		func(loop *train.Loop, metrics []*tensors.Tensor) error {
			return checkpoint.Save()
		})

	numTrainSteps := context.GetParamOr(ctx, "train_steps", 0)
	globalStep := int(optimizers.GetGlobalStep(ctx))
	if globalStep > 0 {
		klog.Infof("Resuming training from global step %d", globalStep)
		trainer.SetContext(ctx.Reuse())
	}
	if globalStep < numTrainSteps {
		if _, err = loop.RunSteps(trainDS, numTrainSteps-globalStep); err != nil {
			return errors.WithMessagef(err, "training for %d steps", numTrainSteps-globalStep)
		}
		fmt.Printf("\t[Step %d] median train step: %d microseconds\n",
			loop.LoopStep, loop.MedianTrainStepDuration().Microseconds())
		trainer.BatchNormalizationAveragesUpdate(trainEvalDS)
		if err = checkpoint.Save(); err != nil {
			return errors.WithMessagef(err, "saving checkpoint to %q", modelDir)
		}
	} else {
		fmt.Printf("\t - target train_steps=%d already reached; increase it to train further.\n",
			numTrainSteps)
	}

	fmt.Println()
	must.M(commandline.ReportEval(trainer, trainEvalDS))
	fmt.Println()

	// Decision thresholds are fitted on the (training) sigmoid outputs.
	probs, err := predictDataset(backend, ctx, trainEvalDS)
	if err != nil {
		return errors.WithMessage(err, "predicting over the training set to fit thresholds")
	}
	thresholds := FitThresholds(probs, corpus.Labels, vocab.Size())

	artifact := &Artifact{
		Version:      ArtifactVersion,
		WindowSize:   corpus.WindowSize,
		SamplingRate: context.GetParamOr(ctx, "model_sampling_rate", 0.0),
		NumFeatures:  corpus.NumFeatures,
		Classes:      vocab.Classes(),
		Stats:        stats,
		Thresholds:   thresholds,
	}
	if err = artifact.Save(modelDir); err != nil {
		return err
	}
	klog.V(1).Infof("Wrote model artifact to %q", modelDir)
	return nil
}

// predictDataset runs the trained model in inference mode over one pass of ds
// and returns the flat [numExamples, numClasses] sigmoid outputs, in dataset
// order.
func predictDataset(backend backends.Backend, ctx *context.Context, ds train.Dataset) ([]float32, error) {
	exec := NewPredictExec(backend, ctx.Reuse())
	ds.Reset()
	var probs []float32
	for {
		_, inputs, _, err := ds.Yield()
		if err == io.EOF {
			return probs, nil // One full pass done.
		}
		if err != nil {
			return nil, errors.WithMessage(err, "reading batch for prediction")
		}
		batch := exec.Call(inputs[0], inputs[1])[0]
		flat := tensors.CopyFlatData[float32](batch)
		probs = append(probs, flat...)
	}
}
