// Package report renders study results as text tables or JSON.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	jsoniterator "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"spamstudy/study"
)

var json = jsoniterator.ConfigCompatibleWithStandardLibrary

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	return table
}

func ratio(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// WriteText prints the corpus summary, one metrics row per model and the
// confusion matrix of every model.
func WriteText(w io.Writer, res study.Result) error {
	_, err := fmt.Fprintf(w, "run %s, started %s\n\n", res.RunID, res.Started.Format(time.RFC3339))
	if err != nil {
		return errors.Wrap(err, "writing header")
	}

	s := res.Summary

	summary := newTable(w, "Corpus", "Value")
	summary.Append([]string{"records", strconv.Itoa(s.Records)})
	for _, c := range s.Classes {
		summary.Append([]string{c, strconv.Itoa(s.ClassCounts[c])})
	}
	summary.Append([]string{"vocabulary", strconv.Itoa(s.Vocabulary)})
	summary.Append([]string{"matrix", fmt.Sprintf("%d x %d", s.Rows, s.Cols)})
	summary.Append([]string{"non-zero", strconv.Itoa(s.NonZero)})
	summary.Append([]string{"train / test", fmt.Sprintf("%d / %d", s.Train, s.Test)})
	summary.Append([]string{"seed", strconv.FormatInt(s.Seed, 10)})
	summary.Render()

	_, err = fmt.Fprintln(w)
	if err != nil {
		return errors.Wrap(err, "writing separator")
	}

	metrics := newTable(w, "Model", "Accuracy", "Precision", "Recall", "F1", "AUC", "OOB")
	for _, m := range res.Models {
		oob := "-"
		if m.OOBScore != nil {
			oob = ratio(*m.OOBScore)
		}

		r := m.Report
		metrics.Append([]string{m.Model, ratio(r.Accuracy), ratio(r.Precision), ratio(r.Recall), ratio(r.F1), ratio(r.AUC), oob})
	}
	metrics.Render()

	for _, m := range res.Models {
		_, err = fmt.Fprintf(w, "\n%s, confusion (rows true, columns predicted)\n", m.Model)
		if err != nil {
			return errors.Wrap(err, "writing confusion title")
		}

		header := append([]string{""}, s.Classes...)
		confusion := newTable(w, header...)
		for i, row := range m.Report.Confusion {
			name := strconv.Itoa(i)
			if i < len(s.Classes) {
				name = s.Classes[i]
			}

			confusion.Append([]string{name, strconv.Itoa(row[0]), strconv.Itoa(row[1])})
		}
		confusion.Render()
	}

	return nil
}

// WriteHistory lists earlier runs over the same corpus, oldest first.
func WriteHistory(w io.Writer, runs []study.Result) error {
	if len(runs) == 0 {
		return nil
	}

	_, err := fmt.Fprintf(w, "\n%d earlier runs on this corpus\n", len(runs))
	if err != nil {
		return errors.Wrap(err, "writing history title")
	}

	header := []string{"Run", "Started", "Seed", "Vocabulary"}
	for _, m := range runs[0].Models {
		header = append(header, m.Model+" AUC")
	}

	table := newTable(w, header...)
	for _, r := range runs {
		row := []string{
			r.RunID,
			r.Started.Format(time.RFC3339),
			strconv.FormatInt(r.Summary.Seed, 10),
			strconv.Itoa(r.Summary.Vocabulary),
		}

		for _, m := range r.Models {
			row = append(row, ratio(m.Report.AUC))
		}

		table.Append(row)
	}
	table.Render()

	return nil
}

// WriteJSON encodes res, ROC points included.
func WriteJSON(w io.Writer, res study.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(res)
	if err != nil {
		return errors.Wrap(err, "encoding result")
	}

	return nil
}

// SaveJSON writes res to path. The file is written next to its destination
// and renamed into place, so readers never see a partial report.
func SaveJSON(path string, res study.Result) error {
	dir := filepath.Dir(path)

	fh, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "creating temporary report")
	}
	defer os.Remove(fh.Name())
	defer fh.Close()

	err = WriteJSON(fh, res)
	if err != nil {
		return err
	}

	err = fh.Close()
	if err != nil {
		return errors.Wrap(err, "closing temporary report")
	}

	err = os.Rename(fh.Name(), path)
	if err != nil {
		return errors.Wrapf(err, "moving report to %s", path)
	}

	return nil
}
