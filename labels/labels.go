// Package labels maps class names to stable integer codes and back.
package labels

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// UnknownLabelError is returned when a label was not seen during Fit.
type UnknownLabelError struct {
	Label string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("unknown label %q", e.Label)
}

// UnknownCodeError is returned when a code is outside of the fitted range.
type UnknownCodeError struct {
	Code int
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown label code %d", e.Code)
}

// Encoder assigns codes 0..k-1 to the distinct labels in sorted order.
type Encoder struct {
	classes []string
	codes   map[string]int
}

// Fit builds an Encoder from the given labels.
func Fit(labels []string) *Encoder {
	classes := lo.Uniq(labels)
	sort.Strings(classes)

	codes := make(map[string]int, len(classes))
	for i, c := range classes {
		codes[c] = i
	}

	return &Encoder{
		classes: classes,
		codes:   codes,
	}
}

// Classes returns the known labels, indexed by code.
func (e *Encoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

func (e *Encoder) Transform(label string) (int, error) {
	code, ok := e.codes[label]
	if !ok {
		return 0, &UnknownLabelError{Label: label}
	}

	return code, nil
}

// TransformAll encodes labels, failing on the first unknown one.
func (e *Encoder) TransformAll(labels []string) ([]int, error) {
	res := make([]int, len(labels))
	for i, l := range labels {
		code, err := e.Transform(l)
		if err != nil {
			return nil, err
		}

		res[i] = code
	}

	return res, nil
}

func (e *Encoder) Inverse(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", &UnknownCodeError{Code: code}
	}

	return e.classes[code], nil
}
