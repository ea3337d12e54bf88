// Package corpus loads labeled messages from delimited text files written in
// an arbitrary character encoding.
package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// Record is one labeled message as found in the input.
type Record struct {
	Label string
	Text  string
}

// InputFormatError reports input that cannot be turned into records.
type InputFormatError struct {
	Reason string
	Value  string
	Line   int // 0 when not tied to a line
}

func (e *InputFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("input format: line %d: %s: %q", e.Line, e.Reason, e.Value)
	}

	return fmt.Sprintf("input format: %s: %q", e.Reason, e.Value)
}

type Options struct {
	Encoding    string // IANA name or alias, empty or "utf-8" for no decoding
	LabelColumn string
	TextColumn  string
	Comma       rune // 0 means ','
}

// Decoder returns the decoder for the named encoding, or nil when no decoding
// is needed. Names are looked up as IANA names, then as WHATWG labels, first
// as given and then without hyphens and underscores, so "latin-1" and
// "ISO_8859_1" resolve too.
func Decoder(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8", "utf_8":
		return nil, nil
	}

	known := false
	for _, n := range []string{name, squash.Replace(name)} {
		enc, err := ianaindex.IANA.Encoding(n)
		if err == nil && enc != nil {
			return enc.NewDecoder(), nil
		}

		// Known to IANA, but without an implementation in x/text
		if err == nil {
			known = true
		}

		enc, err = htmlindex.Get(n)
		if err == nil {
			return enc.NewDecoder(), nil
		}
	}

	if known {
		return nil, &InputFormatError{Reason: "unsupported encoding", Value: name}
	}

	return nil, &InputFormatError{Reason: "unknown encoding", Value: name}
}

var squash = strings.NewReplacer("-", "", "_", "")

// Load reads records from r. The first row must be a header naming the label
// and text columns; other columns are ignored and rows may have differing
// numbers of fields.
func Load(r io.Reader, opts Options) ([]Record, error) {
	dec, err := Decoder(opts.Encoding)
	if err != nil {
		return nil, err
	}

	if dec != nil {
		r = transform.NewReader(r, dec)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &InputFormatError{Reason: "missing header", Value: ""}
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}

	labelIdx, err := column(header, opts.LabelColumn)
	if err != nil {
		return nil, err
	}

	textIdx, err := column(header, opts.TextColumn)
	if err != nil {
		return nil, err
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &InputFormatError{Reason: perr.Err.Error(), Value: "", Line: perr.Line}
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading record %d", len(records)+1)
		}

		line, _ := cr.FieldPos(0)

		if labelIdx >= len(row) || textIdx >= len(row) {
			return nil, &InputFormatError{Reason: "too few fields", Value: strings.Join(row, ","), Line: line}
		}

		label := strings.TrimSpace(row[labelIdx])
		if label == "" {
			return nil, &InputFormatError{Reason: "empty label", Value: row[textIdx], Line: line}
		}

		records = append(records, Record{
			Label: label,
			Text:  row[textIdx],
		})
	}

	if len(records) == 0 {
		return nil, &InputFormatError{Reason: "no records", Value: ""}
	}

	return records, nil
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string, opts Options) ([]Record, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening corpus")
	}
	defer fh.Close()

	records, err := Load(fh, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}

	return records, nil
}

func column(header []string, name string) (int, error) {
	for i, h := range header {
		// Tolerate a byte order mark on the first column
		if strings.TrimPrefix(strings.TrimSpace(h), "\ufeff") == name {
			return i, nil
		}
	}

	return 0, &InputFormatError{Reason: "missing column", Value: name}
}

// Labels returns the label of every record, in order.
func Labels(records []Record) []string {
	res := make([]string, len(records))
	for i, r := range records {
		res[i] = r.Label
	}

	return res
}

// Texts returns the text of every record, in order.
func Texts(records []Record) []string {
	res := make([]string, len(records))
	for i, r := range records {
		res[i] = r.Text
	}

	return res
}
