package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spamstudy/evaluate"
	"spamstudy/study"
)

func sample() study.Result {
	oob := 0.95

	return study.Result{
		RunID:   "0b7c6a2e-6f1c-4c43-a1de-3c2f0c2b8f11",
		Started: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Summary: study.Summary{
			Records:     4,
			Classes:     []string{"ham", "spam"},
			ClassCounts: map[string]int{"ham": 2, "spam": 2},
			Vocabulary:  7,
			Rows:        4,
			Cols:        7,
			NonZero:     11,
			Train:       2,
			Test:        2,
			Seed:        42,
		},
		Models: []study.ModelResult{
			{
				Model: "random forest",
				Report: evaluate.Report{
					Accuracy:  0.75,
					Precision: 2.0 / 3.0,
					Recall:    1,
					F1:        0.8,
					AUC:       0.875,
					Confusion: [2][2]int{{1, 1}, {0, 2}},
					ROC: []evaluate.Curve{
						{Class: 1, Points: []evaluate.Point{{FPR: 0, TPR: 0}, {FPR: 0.5, TPR: 1}, {FPR: 1, TPR: 1}}, AUC: 0.875},
					},
				},
				OOBScore: &oob,
			},
			{
				Model:  "naive bayes",
				Report: evaluate.Report{Accuracy: 0.5},
			},
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteText(&buf, sample()))

	out := buf.String()
	for _, want := range []string{
		"run 0b7c6a2e-6f1c-4c43-a1de-3c2f0c2b8f11",
		"2024-05-01T12:00:00Z",
		"random forest",
		"naive bayes",
		"0.7500",
		"0.6667",
		"0.8750",
		"0.9500",
		"4 x 7",
		"2 / 2",
		"rows true, columns predicted",
	} {
		require.Contains(t, out, want)
	}

	// Models without an out-of-bag estimate show a dash
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "naive bayes") && strings.Contains(line, "0.5000") {
			require.Contains(t, line, "-")
		}
	}
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteHistory(&buf, nil))
	require.Empty(t, buf.String())

	runs := []study.Result{sample(), sample()}
	runs[1].RunID = "second"

	require.NoError(t, WriteHistory(&buf, runs))
	require.Contains(t, buf.String(), "2 earlier runs")
	require.Contains(t, buf.String(), "random forest AUC")
	require.Contains(t, buf.String(), "second")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteJSON(&buf, sample()))

	var decoded study.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	want := sample()
	require.True(t, want.Started.Equal(decoded.Started))

	want.Started, decoded.Started = time.Time{}, time.Time{}
	require.Equal(t, want, decoded)
	require.Contains(t, buf.String(), `"oob_score": 0.95`)
	require.Contains(t, buf.String(), `"fpr": 0.5`)
}

func TestSaveJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	require.NoError(t, SaveJSON(path, sample()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"run_id": "0b7c6a2e-6f1c-4c43-a1de-3c2f0c2b8f11"`)

	// No temporary files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	err = SaveJSON(filepath.Join(dir, "missing", "report.json"), sample())
	require.Error(t, err)
}
