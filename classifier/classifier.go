// Package classifier loads a trained model directory and classifies ECG
// recordings.
//
// It is the inference half of the pipeline: create a Classifier with New()
// pointing at a directory produced by training, then call Classify with a
// recording. Preprocessing (resampling, windowing, feature extraction and
// normalization) follows the configuration saved in the model artifact, so a
// recording is handled exactly as it would have been at training time.
package classifier

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"

	"github.com/ecgml/ecgnet"
	"github.com/ecgml/ecgnet/features"
	"github.com/ecgml/ecgnet/labels"
	"github.com/ecgml/ecgnet/wfdb"
)

// Classifier holds a trained model compiled for inference.
// It uses XLA with GPU if available or CPU by default; the backend can be
// overridden with GOMLX_BACKEND.
type Classifier struct {
	backend backends.Backend

	// ctx holds the trained weights and hyperparameters, restored from the
	// checkpoint.
	ctx *context.Context

	artifact *ecgnet.Artifact
	vocab    *labels.Vocabulary

	exec *context.Exec
}

// Prediction is the model's answer for one recording: per-class probabilities
// and the thresholded binary decisions, both in the vocabulary order of
// Classes.
type Prediction struct {
	RecordID      string
	Classes       []labels.Class
	Probabilities []float32
	Labels        []bool
}

// Codes returns the codes of the classes predicted positive.
func (p *Prediction) Codes() []string {
	var codes []string
	for i, positive := range p.Labels {
		if positive {
			codes = append(codes, p.Classes[i].Code)
		}
	}
	return codes
}

// New loads the model directory produced by training: the artifact manifest
// plus the latest checkpoint. The hyperparameters saved in the checkpoint
// rebuild the same model graph that was trained.
func New(modelDir string) (*Classifier, error) {
	artifact, err := ecgnet.LoadArtifact(modelDir)
	if err != nil {
		return nil, err
	}
	vocab, err := artifact.Vocabulary()
	if err != nil {
		return nil, errors.WithMessagef(err, "model artifact in %q", modelDir)
	}

	c := &Classifier{
		backend:  backends.New(),
		ctx:      context.New(),
		artifact: artifact,
		vocab:    vocab,
	}
	if _, err = checkpoints.Load(c.ctx).Dir(modelDir).Done(); err != nil {
		return nil, errors.WithMessagef(err, "loading model checkpoint from %q", modelDir)
	}
	// The checkpoint and the artifact are written by the same training run;
	// disagreement means a corrupted or hand-edited model directory.
	numClasses := context.GetParamOr(c.ctx, ecgnet.ParamNumClasses, 0)
	if numClasses != vocab.Size() {
		return nil, errors.Wrapf(ecgnet.ErrVocabularyMismatch,
			"checkpoint predicts %d classes, artifact lists %d", numClasses, vocab.Size())
	}
	c.ctx = c.ctx.Reuse() // Creating any new variable past this point is an error.
	c.exec = ecgnet.NewPredictExec(c.backend, c.ctx)
	return c, nil
}

// Vocabulary returns the label vocabulary the model predicts, in prediction
// order.
func (c *Classifier) Vocabulary() *labels.Vocabulary { return c.vocab }

// Classify runs the model on one recording.
func (c *Classifier) Classify(rec *wfdb.Recording) (*Prediction, error) {
	if rec.NumLeads() != ecgnet.NumLeads {
		return nil, errors.Wrapf(wfdb.ErrFormat, "recording %q has %d leads, model needs %d",
			rec.ID, rec.NumLeads(), ecgnet.NumLeads)
	}
	cfg := c.artifact.FeatureConfig()
	wave := features.Window(rec, cfg)
	feats := features.Extract(rec, cfg)
	c.artifact.Stats.NormalizeWave(wave)
	c.artifact.Stats.NormalizeFeatures(feats)

	waveT := tensors.FromFlatDataAndDimensions(wave, 1, cfg.WindowSize, ecgnet.NumLeads)
	featsT := tensors.FromFlatDataAndDimensions(feats, 1, len(feats))
	var outputs []*tensors.Tensor
	err := exceptions.TryCatch[error](func() { outputs = c.exec.Call(waveT, featsT) })
	if err != nil {
		return nil, errors.WithMessagef(err, "running model on recording %q", rec.ID)
	}

	probs := tensors.CopyFlatData[float32](outputs[0])
	pred := &Prediction{
		RecordID:      rec.ID,
		Classes:       c.vocab.Classes(),
		Probabilities: probs,
		Labels:        make([]bool, len(probs)),
	}
	for i, p := range probs {
		pred.Labels[i] = p >= c.artifact.Thresholds[i]
	}
	return pred, nil
}

// ClassifyFile reads the recording pair named by its header path and
// classifies it.
func (c *Classifier) ClassifyFile(headerPath string) (*Prediction, error) {
	rec, err := wfdb.ReadRecording(headerPath)
	if err != nil {
		return nil, err
	}
	return c.Classify(rec)
}

// WriteChallengeOutput writes a prediction in the challenge submission
// format: the record ID, the class codes, the binary decisions and the
// probabilities, comma-separated.
func WriteChallengeOutput(w io.Writer, pred *Prediction) error {
	codes := make([]string, len(pred.Classes))
	binary := make([]string, len(pred.Classes))
	probs := make([]string, len(pred.Classes))
	for i, class := range pred.Classes {
		codes[i] = class.Code
		binary[i] = "0"
		if pred.Labels[i] {
			binary[i] = "1"
		}
		probs[i] = fmt.Sprintf("%.6f", pred.Probabilities[i])
	}
	_, err := fmt.Fprintf(w, "#%s\n%s\n%s\n%s\n",
		pred.RecordID,
		strings.Join(codes, ","),
		strings.Join(binary, ","),
		strings.Join(probs, ","))
	return errors.Wrapf(err, "writing prediction for %q", pred.RecordID)
}
