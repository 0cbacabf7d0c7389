package ecgnet

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/ecgml/ecgnet/features"
	"github.com/ecgml/ecgnet/labels"
	"github.com/ecgml/ecgnet/wfdb"
)

// Corpus is a training directory loaded into memory: one fixed-size waveform
// window, one feature vector and one multi-hot label vector per usable
// recording, stored flat and ready to be wrapped in tensors.
type Corpus struct {
	// Records holds the IDs of the usable recordings, in load order.
	Records []string

	// Waves is flat [len(Records), WindowSize, NumLeads].
	Waves []float32
	// Feats is flat [len(Records), NumFeatures].
	Feats []float32
	// Labels is flat [len(Records), Vocabulary.Size()].
	Labels []float32

	WindowSize  int
	NumFeatures int
	Vocabulary  *labels.Vocabulary
}

// Len returns the number of usable recordings in the corpus.
func (c *Corpus) Len() int { return len(c.Records) }

// LoadCorpus reads every recording pair under dataDir (any file ending in
// ".hea", non-recursive) and builds a Corpus.
//
// Recordings that fail to load or are unusable for the model (wrong lead
// count, malformed files) are skipped with a logged warning: training is
// best-effort over a noisy corpus. Only an entirely unusable directory is an
// error, ErrEmptyDataset.
//
// With the labels.UnknownFail policy an out-of-vocabulary diagnosis code
// aborts the load instead of being dropped.
func LoadCorpus(dataDir string, vocab *labels.Vocabulary, cfg features.Config,
	policy labels.UnknownCodePolicy, verbose bool) (*Corpus, error) {
	headerPaths, err := listHeaders(dataDir)
	if err != nil {
		return nil, err
	}
	if len(headerPaths) == 0 {
		return nil, errors.Wrapf(ErrEmptyDataset, "no recording headers (*.hea) under %q", dataDir)
	}

	numFeatures := features.NumFeatures(NumLeads)
	corpus := &Corpus{
		WindowSize:  cfg.WindowSize,
		NumFeatures: numFeatures,
		Vocabulary:  vocab,
	}

	var pBar *progressbar.ProgressBar
	if verbose {
		pBar = progressbar.NewOptions(len(headerPaths),
			progressbar.OptionSetDescription("Loading recordings"),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("recordings"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
	}
	for _, headerPath := range headerPaths {
		if pBar != nil {
			_ = pBar.Add(1)
		}
		rec, err := wfdb.ReadRecording(headerPath)
		if err != nil {
			klog.Warningf("Skipping %q: %v", headerPath, err)
			continue
		}
		if rec.NumLeads() != NumLeads {
			klog.Warningf("Skipping %q: %d leads, model needs %d", headerPath, rec.NumLeads(), NumLeads)
			continue
		}
		labelVec, err := vocab.Encode(rec.Dx, policy)
		if err != nil {
			// Only possible under the "fail" policy: abort, by request.
			if pBar != nil {
				_ = pBar.Close()
			}
			return nil, errors.WithMessagef(err, "encoding labels of %q", headerPath)
		}
		corpus.Records = append(corpus.Records, rec.ID)
		corpus.Waves = append(corpus.Waves, features.Window(rec, cfg)...)
		corpus.Feats = append(corpus.Feats, features.Extract(rec, cfg)...)
		corpus.Labels = append(corpus.Labels, labelVec...)
	}
	if pBar != nil {
		_ = pBar.Close()
	}

	if corpus.Len() == 0 {
		return nil, errors.Wrapf(ErrEmptyDataset, "all %d recording pairs under %q were unusable",
			len(headerPaths), dataDir)
	}
	klog.V(1).Infof("Loaded %s recordings (%s waveform values) from %q",
		humanize.Comma(int64(corpus.Len())), humanize.Comma(int64(len(corpus.Waves))), dataDir)
	return corpus, nil
}

// listHeaders returns the sorted header paths under dataDir.
func listHeaders(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading training directory %q", dataDir)
	}
	var headerPaths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".hea") {
			continue
		}
		headerPaths = append(headerPaths, filepath.Join(dataDir, entry.Name()))
	}
	sort.Strings(headerPaths)
	return headerPaths, nil
}

// Tensors converts the corpus to its three tensors: waves shaped
// [n, WindowSize, NumLeads], features shaped [n, NumFeatures] and labels
// shaped [n, Vocabulary.Size()].
func (c *Corpus) Tensors() (waves, feats, labelsT *tensors.Tensor) {
	n := c.Len()
	waves = tensors.FromFlatDataAndDimensions(c.Waves, n, c.WindowSize, NumLeads)
	feats = tensors.FromFlatDataAndDimensions(c.Feats, n, c.NumFeatures)
	labelsT = tensors.FromFlatDataAndDimensions(c.Labels, n, c.Vocabulary.Size())
	return
}

// NewDatasets wraps the corpus in the pair of datasets the training loop
// needs: an infinite shuffled batch stream for optimization and a sequential
// one-pass dataset for evaluation.
func NewDatasets(backend backends.Backend, corpus *Corpus, batchSize, evalBatchSize int) (
	trainDS, trainEvalDS train.Dataset, err error) {
	waves, feats, labelsT := corpus.Tensors()
	if batchSize > corpus.Len() {
		batchSize = corpus.Len()
	}
	if evalBatchSize > corpus.Len() {
		evalBatchSize = corpus.Len()
	}
	base, err := data.InMemoryFromData(backend, "train",
		[]any{waves, feats}, []any{labelsT})
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "building in-memory dataset")
	}
	trainDS = base.Copy().BatchSize(batchSize, true).Shuffle().Infinite(true)
	trainEvalDS = base.BatchSize(evalBatchSize, false)
	return
}
