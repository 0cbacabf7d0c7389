// Package wfdb reads 12-lead ECG recordings stored as WFDB-style file pairs:
// a text header (".hea") describing the signals and a MAT v5 file (".mat")
// with the raw ADC samples, the format used by the PhysioNet/CinC challenge
// distributions.
//
// A recording is loaded with ReadRecording, which parses the header, reads the
// sample matrix, converts it to millivolts using the per-lead gain/baseline
// from the header, and returns an immutable Recording value.
package wfdb

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/daniellowtw/matlab"
	"github.com/pkg/errors"
)

// ErrFormat indicates a header or sample file whose contents are malformed or
// inconsistent with each other (e.g. declared channel count or sample length
// that doesn't match the actual data). It is a fatal per-recording error:
// there are no retries, callers decide whether to skip or abort.
var ErrFormat = errors.New("malformed recording")

// Recording is one multi-lead ECG episode. It is created by ReadRecording and
// not modified afterwards.
type Recording struct {
	// ID is the record name from the header, e.g. "A0001".
	ID string

	// SamplingRate in Hz.
	SamplingRate float64

	// NumSamples per lead.
	NumSamples int

	// Leads holds the lead names ("I", "II", ..., "V6") in file order.
	Leads []string

	// Samples holds the waveform in millivolts, indexed [lead][sample].
	Samples [][]float32

	// Age in years, or -1 when unknown.
	Age int

	// Sex is "Male", "Female" or "" when unknown.
	Sex string

	// Dx holds the diagnosis codes (SNOMED CT) attached to the recording.
	// May be empty.
	Dx []string
}

// NumLeads returns the number of signal channels in the recording.
func (r *Recording) NumLeads() int { return len(r.Samples) }

// Duration of the recording in seconds.
func (r *Recording) Duration() float64 {
	if r.SamplingRate <= 0 {
		return 0
	}
	return float64(r.NumSamples) / r.SamplingRate
}

// ReadRecording loads the recording whose header is at headerPath. The
// samples file is expected next to it, under the file name declared in the
// header's signal lines.
//
// Missing or unreadable files surface as wrapped I/O errors; inconsistent
// contents surface as errors matching ErrFormat.
func ReadRecording(headerPath string) (*Recording, error) {
	hdr, err := ReadHeader(headerPath)
	if err != nil {
		return nil, err
	}
	matPath := filepath.Join(filepath.Dir(headerPath), hdr.SignalFile)
	raw, err := readMatSamples(matPath)
	if err != nil {
		return nil, err
	}
	return hdr.newRecording(raw, matPath)
}

// newRecording validates the flat sample data against the header and converts
// ADC units to millivolts.
func (hdr *Header) newRecording(raw []int64, matPath string) (*Recording, error) {
	want := hdr.NumSignals * hdr.NumSamples
	if len(raw) != want {
		return nil, errors.Wrapf(ErrFormat,
			"%q: %d samples in %q, but header declares %d signals x %d samples",
			hdr.Record, len(raw), filepath.Base(matPath), hdr.NumSignals, hdr.NumSamples)
	}
	rec := &Recording{
		ID:           hdr.Record,
		SamplingRate: hdr.SamplingRate,
		NumSamples:   hdr.NumSamples,
		Leads:        make([]string, hdr.NumSignals),
		Samples:      make([][]float32, hdr.NumSignals),
		Age:          hdr.Age,
		Sex:          hdr.Sex,
		Dx:           hdr.Dx,
	}
	for lead, sig := range hdr.Signals {
		rec.Leads[lead] = sig.Description
		gain := sig.Gain
		if gain == 0 {
			gain = DefaultGain
		}
		samples := make([]float32, hdr.NumSamples)
		for t := 0; t < hdr.NumSamples; t++ {
			// MAT v5 matrices are column-major: the value of lead l at
			// time t sits at t*NumSignals+l.
			v := raw[t*hdr.NumSignals+lead]
			samples[t] = float32((float64(v) - float64(sig.Baseline)) / gain)
		}
		rec.Samples[lead] = samples
	}
	return rec, nil
}

// readMatSamples reads the "val" variable from a MAT v5 file and returns its
// values flattened in storage (column-major) order.
func readMatSamples(matPath string) ([]int64, error) {
	f, err := os.Open(matPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading samples file %q", matPath)
	}
	defer func() { _ = f.Close() }()

	mf, err := matlab.NewFileFromReader(f)
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "parsing MAT file %q: %v", matPath, err)
	}
	v, found := mf.GetVar("val")
	if !found {
		return nil, errors.Wrapf(ErrFormat, "MAT file %q has no \"val\" variable", matPath)
	}
	values := v.Value()
	raw := make([]int64, len(values))
	for i, value := range values {
		switch x := value.(type) {
		case int8:
			raw[i] = int64(x)
		case uint8:
			raw[i] = int64(x)
		case int16:
			raw[i] = int64(x)
		case uint16:
			raw[i] = int64(x)
		case int32:
			raw[i] = int64(x)
		case int64:
			raw[i] = x
		case float32:
			raw[i] = int64(x)
		case float64:
			raw[i] = int64(x)
		default:
			return nil, errors.Wrapf(ErrFormat, "MAT file %q: unsupported sample type %T", matPath, value)
		}
	}
	return raw, nil
}

// LeadIndex returns the position of the lead with the given name, or -1 if
// the recording doesn't have it. Lead names compare case-insensitively.
func (r *Recording) LeadIndex(name string) int {
	for i, lead := range r.Leads {
		if strings.EqualFold(lead, name) {
			return i
		}
	}
	return -1
}
