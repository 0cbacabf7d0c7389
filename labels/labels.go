// Package labels maps a recording's diagnosis codes to and from the
// fixed-width multi-hot vectors the model trains on.
//
// The vocabulary is an ordered, immutable list of classes: the position of a
// class in the vocabulary is the position of its probability and threshold in
// every model output, and the ordering persisted in a model artifact is the
// only valid ordering for decoding that model's predictions.
package labels

import (
	"strings"

	"github.com/pkg/errors"
)

// Class is one entry of the vocabulary: a diagnosis code with its
// human-readable names.
type Class struct {
	// Code is the SNOMED CT concept code, e.g. "164889003".
	Code string
	// Abbreviation is the short display name, e.g. "AF".
	Abbreviation string
	// Description is the long display name.
	Description string
}

// Vocabulary is a fixed ordered set of classes. It is immutable after
// construction and safe for concurrent use.
type Vocabulary struct {
	classes []Class
	index   map[string]int
}

// New creates a Vocabulary from the given classes, preserving their order.
// Duplicate codes are an error.
func New(classes []Class) (*Vocabulary, error) {
	v := &Vocabulary{
		classes: make([]Class, len(classes)),
		index:   make(map[string]int, len(classes)),
	}
	copy(v.classes, classes)
	for i, c := range v.classes {
		if c.Code == "" {
			return nil, errors.Errorf("class #%d has an empty code", i)
		}
		if prev, found := v.index[c.Code]; found {
			return nil, errors.Errorf("duplicate code %q at positions %d and %d", c.Code, prev, i)
		}
		v.index[c.Code] = i
	}
	return v, nil
}

// MustNew is New, panicking on error. For static vocabulary tables.
func MustNew(classes []Class) *Vocabulary {
	v, err := New(classes)
	if err != nil {
		panic(err)
	}
	return v
}

// FromCodes creates a Vocabulary with only codes, no display names.
func FromCodes(codes []string) (*Vocabulary, error) {
	classes := make([]Class, len(codes))
	for i, code := range codes {
		classes[i] = Class{Code: code, Abbreviation: code}
	}
	return New(classes)
}

// Size returns the number of classes.
func (v *Vocabulary) Size() int { return len(v.classes) }

// Codes returns the class codes in vocabulary order.
func (v *Vocabulary) Codes() []string {
	codes := make([]string, len(v.classes))
	for i, c := range v.classes {
		codes[i] = c.Code
	}
	return codes
}

// Class returns the class at position i.
func (v *Vocabulary) Class(i int) Class { return v.classes[i] }

// Classes returns a copy of all classes in vocabulary order.
func (v *Vocabulary) Classes() []Class {
	return append([]Class(nil), v.classes...)
}

// IndexOf returns the position of code in the vocabulary.
func (v *Vocabulary) IndexOf(code string) (int, bool) {
	i, found := v.index[code]
	return i, found
}

// Equal reports whether both vocabularies hold the same codes in the same
// order. Display names don't matter.
func (v *Vocabulary) Equal(other *Vocabulary) bool {
	if v.Size() != other.Size() {
		return false
	}
	for i, c := range v.classes {
		if other.classes[i].Code != c.Code {
			return false
		}
	}
	return true
}

// UnknownCodePolicy decides what Encode does with codes that are not in the
// vocabulary.
type UnknownCodePolicy int

const (
	// UnknownDrop silently ignores out-of-vocabulary codes. This is the
	// default for training over a noisy corpus: challenge data carries many
	// unscored diagnoses.
	UnknownDrop UnknownCodePolicy = iota

	// UnknownFail makes Encode return an error on the first
	// out-of-vocabulary code.
	UnknownFail
)

// ParseUnknownCodePolicy converts the "unknown_code_policy" hyperparameter
// value ("drop" or "fail") to an UnknownCodePolicy.
func ParseUnknownCodePolicy(s string) (UnknownCodePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return UnknownDrop, nil
	case "fail":
		return UnknownFail, nil
	}
	return UnknownDrop, errors.Errorf("invalid unknown_code_policy %q, valid values are \"drop\" or \"fail\"", s)
}

// Encode converts a set of diagnosis codes to a multi-hot vector with one
// position per vocabulary class, in vocabulary order. Repeated codes encode
// the same as a single occurrence.
func (v *Vocabulary) Encode(codes []string, policy UnknownCodePolicy) ([]float32, error) {
	vec := make([]float32, v.Size())
	for _, code := range codes {
		i, found := v.index[code]
		if !found {
			if policy == UnknownFail {
				return nil, errors.Errorf("code %q is not in the %d-class vocabulary", code, v.Size())
			}
			continue
		}
		vec[i] = 1
	}
	return vec, nil
}

// Decode returns the codes of the positions set (> 0.5) in a multi-hot
// vector. It is the inverse of Encode for in-vocabulary codes.
func (v *Vocabulary) Decode(vec []float32) ([]string, error) {
	if len(vec) != v.Size() {
		return nil, errors.Errorf("vector has %d positions, vocabulary has %d classes", len(vec), v.Size())
	}
	var codes []string
	for i, x := range vec {
		if x > 0.5 {
			codes = append(codes, v.classes[i].Code)
		}
	}
	return codes, nil
}
