package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"spamstudy/classifier"
)

func withPath(c Config) Config {
	c.Input.Path = "spam.csv"
	return c
}

func TestDefault_Valid(t *testing.T) {
	cfg := withPath(Default())
	require.NoError(t, cfg.Validate())

	require.Equal(t, 10000, cfg.Features.MaxVocab)
	require.Equal(t, 0.2, cfg.Split.TestFraction)
	require.NotNil(t, cfg.Split.Seed)
	require.Equal(t, int64(42), *cfg.Split.Seed)
	require.Equal(t, "cp437", cfg.Input.Encoding)
}

func TestLoad_Partial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.yaml")

	err := os.WriteFile(path, []byte(`
input:
  path: data/spam.csv
forest:
  trees: 10
  criterion: gini
split:
  seed: null
`), 0o644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "data/spam.csv", cfg.Input.Path)
	require.Equal(t, 10, cfg.Forest.Trees)
	require.Equal(t, "gini", cfg.Forest.Criterion)
	require.Nil(t, cfg.Split.Seed)

	// Untouched keys keep their defaults
	require.Equal(t, "v1", cfg.Input.LabelColumn)
	require.Equal(t, 0.5, cfg.Features.MaxDocFreqFraction)
	require.True(t, cfg.Forest.Bootstrap)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("forest: [1, 2"), 0o644))

	_, err = Load(path)
	require.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.yaml")

	cfg := withPath(Default())
	cfg.Features.ExtraStopWords = []string{"ur", "txt"}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SPAMSTUDY_SPLIT_TEST_FRACTION", "0.3")
	t.Setenv("SPAMSTUDY_SPLIT_SEED", "7")
	t.Setenv("SPAMSTUDY_FOREST_TREES", "12")
	t.Setenv("SPAMSTUDY_INPUT_ENCODING", "utf-8")
	t.Setenv("SPAMSTUDY_FEATURES_EXTRA_STOP_WORDS", "ur,txt")
	t.Setenv("SPAMSTUDY_LOG_LEVEL", "DEBUG")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	require.Equal(t, 0.3, cfg.Split.TestFraction)
	require.Equal(t, int64(7), *cfg.Split.Seed)
	require.Equal(t, 12, cfg.Forest.Trees)
	require.Equal(t, "utf-8", cfg.Input.Encoding)
	require.Equal(t, []string{"ur", "txt"}, cfg.Features.ExtraStopWords)
	require.Equal(t, "DEBUG", cfg.LogLevel)

	// Unset variables keep the current value
	require.Equal(t, 10000, cfg.Features.MaxVocab)
	require.Equal(t, "v2", cfg.Input.TextColumn)
}

func TestApplyEnv_Invalid(t *testing.T) {
	t.Setenv("SPAMSTUDY_FOREST_TREES", "many")

	cfg := Default()
	require.Error(t, cfg.ApplyEnv())
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
	}{
		{"no input", func(c *Config) { c.Input.Path = "" }},
		{"no label column", func(c *Config) { c.Input.LabelColumn = "" }},
		{"long delimiter", func(c *Config) { c.Input.Delimiter = ";;" }},
		{"negative vocabulary", func(c *Config) { c.Features.MaxVocab = -1 }},
		{"zero min df", func(c *Config) { c.Features.MinDocFreq = 0 }},
		{"max df above one", func(c *Config) { c.Features.MaxDocFreqFraction = 1.5 }},
		{"unknown stop words", func(c *Config) { c.Features.StopWords = "french" }},
		{"no trees", func(c *Config) { c.Forest.Trees = 0 }},
		{"unknown criterion", func(c *Config) { c.Forest.Criterion = "log_loss" }},
		{"zero C", func(c *Config) { c.Logistic.C = 0 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "LOUD" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := withPath(Default())
			tc.modify(&cfg)

			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_LeavesFractionToSplitter(t *testing.T) {
	cfg := withPath(Default())
	cfg.Split.TestFraction = 1.5

	require.NoError(t, cfg.Validate())
}

func TestOptions(t *testing.T) {
	cfg := withPath(Default())
	cfg.Input.Delimiter = ";"
	cfg.Features.ExtraStopWords = []string{"ur"}

	co := cfg.CorpusOptions()
	require.Equal(t, ';', co.Comma)
	require.Equal(t, "v1", co.LabelColumn)

	vo := cfg.VectorizerOptions()
	require.Contains(t, vo.StopWords, "ur")
	require.Contains(t, vo.StopWords, "the")
	require.True(t, vo.Lowercase)

	cfg.Features.StopWords = "none"
	vo = cfg.VectorizerOptions()
	require.Len(t, vo.StopWords, 1)

	fo := cfg.ForestOptions()
	require.Equal(t, classifier.Entropy, fo.Criterion)
	require.Equal(t, 50, fo.NumTrees)
	require.Equal(t, int64(42), fo.Seed)

	lo := cfg.LogisticOptions()
	require.Equal(t, 1.0, lo.C)
	require.Equal(t, 100, lo.MaxIter)
}
