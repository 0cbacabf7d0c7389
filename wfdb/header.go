package wfdb

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultGain is the WFDB default of 200 ADC units per millivolt, used when a
// signal line declares a gain of zero.
const DefaultGain = 200.0

// Header is the typed result of parsing a ".hea" file.
type Header struct {
	Record       string
	NumSignals   int
	SamplingRate float64
	NumSamples   int

	// SignalFile is the samples file shared by all signal lines.
	SignalFile string
	Signals    []SignalSpec

	Age int // -1 when unknown.
	Sex string
	Dx  []string
}

// SignalSpec is one signal line of the header.
type SignalSpec struct {
	File        string
	Format      string
	Gain        float64 // ADC units per millivolt; 0 means DefaultGain.
	Units       string
	Baseline    int // ADC value corresponding to 0 mV.
	Description string
}

// knownComments is the set of "#Label:" metadata lines this parser accepts.
// Anything else is rejected rather than silently ignored.
var knownComments = map[string]bool{
	"Age": true, "Sex": true, "Dx": true,
	"Rx": true, "Hx": true, "Sx": true,
}

// ReadHeader parses the WFDB header at path.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading header %q", path)
	}
	defer func() { _ = f.Close() }()

	hdr := &Header{Age: -1}
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// Comment lines may appear anywhere and do not count toward the
		// record/signal line window.
		if strings.HasPrefix(line, "#") {
			if err := hdr.parseComment(line); err != nil {
				return nil, errors.WithMessagef(err, "header %q", path)
			}
			continue
		}
		lineNum++
		switch {
		case lineNum == 1:
			err = hdr.parseRecordLine(line)
		case lineNum <= 1+hdr.NumSignals:
			err = hdr.parseSignalLine(line)
		default:
			err = errors.Wrapf(ErrFormat, "unexpected extra signal line %q", line)
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "header %q", path)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading header %q", path)
	}
	if len(hdr.Signals) != hdr.NumSignals {
		return nil, errors.Wrapf(ErrFormat, "header %q declares %d signals but has %d signal lines",
			path, hdr.NumSignals, len(hdr.Signals))
	}
	return hdr, nil
}

// parseRecordLine parses the first line: "<record> <#signals> <fs> <#samples> [...]".
func (hdr *Header) parseRecordLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return errors.Wrapf(ErrFormat, "record line %q needs at least 4 fields", line)
	}
	// The record name may carry a "/segments" suffix; only the name matters.
	hdr.Record = strings.SplitN(fields[0], "/", 2)[0]

	var err error
	hdr.NumSignals, err = strconv.Atoi(fields[1])
	if err != nil || hdr.NumSignals <= 0 {
		return errors.Wrapf(ErrFormat, "record line %q: bad signal count %q", line, fields[1])
	}
	// The sampling frequency may carry a "/counter" suffix.
	fsField := strings.SplitN(fields[2], "/", 2)[0]
	hdr.SamplingRate, err = strconv.ParseFloat(fsField, 64)
	if err != nil || hdr.SamplingRate <= 0 {
		return errors.Wrapf(ErrFormat, "record line %q: bad sampling frequency %q", line, fields[2])
	}
	hdr.NumSamples, err = strconv.Atoi(fields[3])
	if err != nil || hdr.NumSamples <= 0 {
		return errors.Wrapf(ErrFormat, "record line %q: bad sample count %q", line, fields[3])
	}
	hdr.Signals = make([]SignalSpec, 0, hdr.NumSignals)
	return nil
}

// parseSignalLine parses one signal spec:
// "<file> <format> <gain[(baseline)]/units> <adcres> <adczero> <init> <checksum> <blocksize> <description>".
func (hdr *Header) parseSignalLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return errors.Wrapf(ErrFormat, "signal line %q needs 9 fields", line)
	}
	spec := SignalSpec{
		File:        fields[0],
		Format:      fields[1],
		Description: fields[len(fields)-1],
	}

	// Gain spec: "1000/mV", "1000(0)/mV" or just "1000". The baseline in
	// parentheses takes precedence over the ADC zero field.
	gainSpec := fields[2]
	if slash := strings.IndexByte(gainSpec, '/'); slash >= 0 {
		spec.Units = gainSpec[slash+1:]
		gainSpec = gainSpec[:slash]
	}
	baselineSet := false
	if open := strings.IndexByte(gainSpec, '('); open >= 0 {
		closing := strings.IndexByte(gainSpec, ')')
		if closing < open {
			return errors.Wrapf(ErrFormat, "signal line %q: bad gain spec %q", line, fields[2])
		}
		baseline, err := strconv.Atoi(gainSpec[open+1 : closing])
		if err != nil {
			return errors.Wrapf(ErrFormat, "signal line %q: bad baseline in %q", line, fields[2])
		}
		spec.Baseline = baseline
		baselineSet = true
		gainSpec = gainSpec[:open]
	}
	gain, err := strconv.ParseFloat(gainSpec, 64)
	if err != nil || gain < 0 {
		return errors.Wrapf(ErrFormat, "signal line %q: bad gain %q", line, fields[2])
	}
	spec.Gain = gain

	if !baselineSet {
		adcZero, err := strconv.Atoi(fields[4])
		if err != nil {
			return errors.Wrapf(ErrFormat, "signal line %q: bad ADC zero %q", line, fields[4])
		}
		spec.Baseline = adcZero
	}

	if hdr.SignalFile == "" {
		hdr.SignalFile = spec.File
	} else if hdr.SignalFile != spec.File {
		return errors.Wrapf(ErrFormat, "signal line %q: all signals must share one samples file, got %q and %q",
			line, hdr.SignalFile, spec.File)
	}
	hdr.Signals = append(hdr.Signals, spec)
	return nil
}

// parseComment parses "#Label: value" metadata lines.
func (hdr *Header) parseComment(line string) error {
	body := strings.TrimSpace(strings.TrimPrefix(line, "#"))
	if body == "" {
		return nil
	}
	label, value, found := strings.Cut(body, ":")
	if !found {
		return errors.Wrapf(ErrFormat, "comment %q is not a \"#Label: value\" pair", line)
	}
	label = strings.TrimSpace(label)
	value = strings.TrimSpace(value)
	if !knownComments[label] {
		return errors.Wrapf(ErrFormat, "unrecognized header field %q", label)
	}
	switch label {
	case "Age":
		if value == "" || strings.EqualFold(value, "NaN") || strings.EqualFold(value, "Unknown") {
			hdr.Age = -1
			return nil
		}
		age, err := strconv.Atoi(value)
		if err != nil || age < 0 {
			return errors.Wrapf(ErrFormat, "bad age %q", value)
		}
		hdr.Age = age
	case "Sex":
		if strings.EqualFold(value, "Unknown") || strings.EqualFold(value, "NaN") {
			value = ""
		}
		hdr.Sex = value
	case "Dx":
		for _, code := range strings.Split(value, ",") {
			code = strings.TrimSpace(code)
			if code != "" {
				hdr.Dx = append(hdr.Dx, code)
			}
		}
	}
	// Rx, Hx and Sx are accepted but not used.
	return nil
}
