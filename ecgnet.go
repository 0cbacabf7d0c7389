// Package ecgnet trains and runs a multi-label classifier for 12-lead ECG
// recordings, in the shape expected by challenge evaluation harnesses: a
// training pass over a directory of WFDB header/MAT recording pairs producing
// a self-contained model directory, and an inference pass that loads that
// directory once and classifies one recording at a time.
//
// The model is a 1D residual convolutional network with squeeze-and-excitation
// gating over the waveform window, concatenated with a vector of hand-crafted
// per-lead statistics, trained with per-class binary cross-entropy. Everything
// needed to reproduce training-time preprocessing at inference (the label
// vocabulary, normalization statistics, windowing parameters and per-class
// decision thresholds) is persisted in the model directory next to the
// weights.
package ecgnet

import "github.com/pkg/errors"

// NumLeads is the number of signal channels the model consumes. Recordings
// with a different lead count are unusable.
const NumLeads = 12

// ErrEmptyDataset indicates a training directory with no usable recordings.
// Individual unreadable recordings are skipped with a warning; only when
// nothing at all survives is the whole training run aborted with this error.
var ErrEmptyDataset = errors.New("no usable recordings in training directory")

// ErrVocabularyMismatch indicates that a model artifact's label vocabulary
// does not match the vocabulary the caller expects. Predictions decoded under
// a different vocabulary ordering are meaningless, so this is fatal to the
// whole inference run.
var ErrVocabularyMismatch = errors.New("label vocabulary mismatch")
