package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"spamstudy/config"
)

func writeCorpus(t *testing.T) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("v1,v2,,,\n")

	ham := []string{"lunch", "tomorrow", "meeting", "mum", "dinner", "home", "later", "pick"}
	spam := []string{"free", "prize", "claim", "cash", "winner", "urgent", "reply", "offer"}

	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "ham,\"Hey, %s %s %s?\",,,\n", ham[i%8], ham[(i+1)%8], ham[(i+3)%8])
		fmt.Fprintf(&b, "spam,\"WINNER! %s %s %s, txt 8%04d\",,,\n", spam[i%8], spam[(i+2)%8], spam[(i+5)%8], i)
	}

	path := filepath.Join(t.TempDir(), "spam.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	return path
}

func TestParseArgs_Defaults(t *testing.T) {
	opts, err := parseArgs([]string{"-input", "spam.csv"}, io.Discard)
	require.NoError(t, err)

	want := config.Default()
	want.Input.Path = "spam.csv"
	require.Equal(t, want, opts.cfg)
}

func TestParseArgs_Layers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input:\n  path: from-file.csv\nforest:\n  trees: 7\nfeatures:\n  max_vocab: 500\n"), 0o644))

	t.Setenv("SPAMSTUDY_FOREST_TREES", "9")
	t.Setenv("SPAMSTUDY_SPLIT_TEST_FRACTION", "0.3")

	opts, err := parseArgs([]string{"-config", path, "-max-vocab", "100", "-seed", "none", "-json", "out.json"}, io.Discard)
	require.NoError(t, err)

	cfg := opts.cfg
	require.Equal(t, "from-file.csv", cfg.Input.Path)
	require.Equal(t, 9, cfg.Forest.Trees)
	require.Equal(t, 0.3, cfg.Split.TestFraction)
	require.Equal(t, 100, cfg.Features.MaxVocab)
	require.Nil(t, cfg.Split.Seed)
	require.Equal(t, "out.json", cfg.JSONPath)
}

func TestParseArgs_Errors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"no input", nil},
		{"bad seed", []string{"-input", "x.csv", "-seed", "forty-two"}},
		{"bad log level", []string{"-input", "x.csv", "-log-level", "CHATTY"}},
		{"unknown flag", []string{"-input", "x.csv", "-color"}},
		{"missing config", []string{"-config", "does-not-exist.yaml"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseArgs(tc.args, io.Discard)
			require.Error(t, err)
		})
	}
}

func TestParseArgs_Init(t *testing.T) {
	opts, err := parseArgs([]string{"-init", "-config", "new.yaml"}, io.Discard)
	require.NoError(t, err)
	require.True(t, opts.initConfig)
	require.Equal(t, "new.yaml", opts.configPath)
	require.Equal(t, config.Default(), opts.cfg)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := writeCorpus(t)
	jsonPath := filepath.Join(dir, "report.json")
	archivePath := filepath.Join(dir, "runs")

	opts, err := parseArgs([]string{
		"-input", input,
		"-encoding", "utf-8",
		"-test-fraction", "0.5",
		"-trees", "10",
		"-json", jsonPath,
	}, io.Discard)
	require.NoError(t, err)

	opts.archivePath = archivePath

	logger := logs.GetLoggerFromLevel(slog.LevelDebug)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), opts, &out, logger))

	text := out.String()
	require.Contains(t, text, "random forest")
	require.Contains(t, text, "logistic regression")
	require.Contains(t, text, "naive bayes")
	require.NotContains(t, text, "earlier runs")

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"roc"`)

	// A second run over the same corpus shows the first one
	out.Reset()
	require.NoError(t, run(context.Background(), opts, &out, logger))
	require.Contains(t, out.String(), "1 earlier runs on this corpus")
}

func TestRun_InputErrors(t *testing.T) {
	opts, err := parseArgs([]string{"-input", filepath.Join(t.TempDir(), "missing.csv")}, io.Discard)
	require.NoError(t, err)

	err = run(context.Background(), opts, io.Discard, logs.GetLoggerFromLevel(slog.LevelDebug))
	require.Error(t, err)
}
