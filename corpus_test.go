package ecgnet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecgml/ecgnet/features"
	"github.com/ecgml/ecgnet/labels"
)

var testFeatureConfig = features.Config{SamplingRate: 400, WindowSize: 512}

// leadNames12 is the standard lead order of the recordings used in tests.
var leadNames12 = []string{"I", "II", "III", "aVR", "aVL", "aVF", "V1", "V2", "V3", "V4", "V5", "V6"}

// writeTestRecording writes a 12-lead recording pair (header + MAT samples)
// named record into dir. Every lead carries the same short spike train.
func writeTestRecording(t *testing.T, dir, record string, numSamples int, dxCodes string) {
	t.Helper()
	var hdr bytes.Buffer
	fmt.Fprintf(&hdr, "%s 12 400 %d\n", record, numSamples)
	for _, lead := range leadNames12 {
		fmt.Fprintf(&hdr, "%s.mat 16 1000/mV 16 0 0 0 0 %s\n", record, lead)
	}
	fmt.Fprintf(&hdr, "#Age: 55\n#Sex: Male\n#Dx: %s\n", dxCodes)
	require.NoError(t, os.WriteFile(filepath.Join(dir, record+".hea"), hdr.Bytes(), 0644))

	flat := make([]int16, 12*numSamples)
	for tt := 0; tt < numSamples; tt++ {
		var v int16
		if tt%150 == 75 {
			v = 1500
		}
		for lead := 0; lead < 12; lead++ {
			flat[tt*12+lead] = v
		}
	}
	writeTestMatFile(t, filepath.Join(dir, record+".mat"), 12, numSamples, flat)
}

// writeTestMatFile writes a minimal MAT v5 file with one int16 matrix named
// "val", data given in column-major order.
func writeTestMatFile(t *testing.T, path string, rows, cols int, data []int16) {
	t.Helper()
	var body bytes.Buffer
	sub := func(miType uint32, payload []byte) {
		require.NoError(t, binary.Write(&body, binary.LittleEndian, miType))
		require.NoError(t, binary.Write(&body, binary.LittleEndian, uint32(len(payload))))
		body.Write(payload)
		if pad := (8 - len(payload)%8) % 8; pad > 0 {
			body.Write(make([]byte, pad))
		}
	}
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(10)) // mxINT16 class
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
	sub(6, buf.Bytes())
	buf.Reset()
	_ = binary.Write(&buf, binary.LittleEndian, [2]int32{int32(rows), int32(cols)})
	sub(5, buf.Bytes())
	sub(1, []byte("val"))
	buf.Reset()
	_ = binary.Write(&buf, binary.LittleEndian, data)
	sub(3, buf.Bytes())

	var file bytes.Buffer
	header := make([]byte, 128)
	copy(header, "MATLAB 5.0 MAT-file, Platform: GLNXA64, Created on: Mon Jan  1 00:00:00 2024")
	for i := len("MATLAB 5.0 MAT-file, Platform: GLNXA64, Created on: Mon Jan  1 00:00:00 2024"); i < 116; i++ {
		header[i] = ' '
	}
	binary.LittleEndian.PutUint16(header[124:], 0x0100)
	header[126], header[127] = 'I', 'M'
	file.Write(header)
	require.NoError(t, binary.Write(&file, binary.LittleEndian, uint32(14)))
	require.NoError(t, binary.Write(&file, binary.LittleEndian, uint32(body.Len())))
	file.Write(body.Bytes())
	require.NoError(t, os.WriteFile(path, file.Bytes(), 0644))
}

func TestLoadCorpus(t *testing.T) {
	dir := t.TempDir()
	writeTestRecording(t, dir, "A0001", 1200, "426783006")
	writeTestRecording(t, dir, "A0002", 900, "164889003,59118001")

	vocab := labels.Default()
	corpus, err := LoadCorpus(dir, vocab, testFeatureConfig, labels.UnknownDrop, false)
	require.NoError(t, err)
	assert.Equal(t, 2, corpus.Len())
	assert.Equal(t, []string{"A0001", "A0002"}, corpus.Records)
	assert.Len(t, corpus.Waves, 2*testFeatureConfig.WindowSize*NumLeads)
	assert.Len(t, corpus.Feats, 2*features.NumFeatures(NumLeads))
	assert.Len(t, corpus.Labels, 2*vocab.Size())

	// Multi-hot labels land at the right vocabulary positions.
	nsr, _ := vocab.IndexOf("426783006")
	af, _ := vocab.IndexOf("164889003")
	rbbb, _ := vocab.IndexOf("59118001")
	assert.Equal(t, float32(1), corpus.Labels[nsr])
	assert.Equal(t, float32(0), corpus.Labels[af])
	assert.Equal(t, float32(1), corpus.Labels[vocab.Size()+af])
	assert.Equal(t, float32(1), corpus.Labels[vocab.Size()+rbbb])
	assert.Equal(t, float32(0), corpus.Labels[vocab.Size()+nsr])
}

func TestLoadCorpusSkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	writeTestRecording(t, dir, "A0001", 1200, "426783006")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A0000.hea"),
		[]byte("broken header\n"), 0644))

	corpus, err := LoadCorpus(dir, labels.Default(), testFeatureConfig, labels.UnknownDrop, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"A0001"}, corpus.Records)
}

func TestLoadCorpusEmptyDir(t *testing.T) {
	_, err := LoadCorpus(t.TempDir(), labels.Default(), testFeatureConfig, labels.UnknownDrop, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestLoadCorpusAllCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A0000.hea"),
		[]byte("broken header\n"), 0644))
	_, err := LoadCorpus(dir, labels.Default(), testFeatureConfig, labels.UnknownDrop, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestLoadCorpusMissingDir(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "nope"), labels.Default(),
		testFeatureConfig, labels.UnknownDrop, false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyDataset)
}

func TestLoadCorpusUnknownCodeFail(t *testing.T) {
	dir := t.TempDir()
	writeTestRecording(t, dir, "A0001", 1200, "99999999")

	_, err := LoadCorpus(dir, labels.Default(), testFeatureConfig, labels.UnknownFail, false)
	require.Error(t, err)

	// The same corpus loads fine under the drop policy, with an all-zero row.
	corpus, err := LoadCorpus(dir, labels.Default(), testFeatureConfig, labels.UnknownDrop, false)
	require.NoError(t, err)
	for _, v := range corpus.Labels {
		assert.Equal(t, float32(0), v)
	}
}

func TestLoadCorpusSkipsWrongLeadCount(t *testing.T) {
	dir := t.TempDir()
	writeTestRecording(t, dir, "A0001", 1200, "426783006")
	// A single-lead recording: readable, but unusable for this model.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "B0001.hea"),
		[]byte("B0001 1 400 100\nB0001.mat 16 1000/mV 16 0 0 0 0 I\n"), 0644))
	flat := make([]int16, 100)
	writeTestMatFile(t, filepath.Join(dir, "B0001.mat"), 1, 100, flat)

	corpus, err := LoadCorpus(dir, labels.Default(), testFeatureConfig, labels.UnknownDrop, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"A0001"}, corpus.Records)
}
