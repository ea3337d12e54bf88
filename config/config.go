// Package config holds the knobs of a study run. Values come from the
// defaults, then an optional YAML file, then SPAMSTUDY_* environment
// variables, then command line flags.
package config

import (
	"os"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"spamstudy/classifier"
	"spamstudy/corpus"
	"spamstudy/vectorize"
)

const EnvPrefix = "spamstudy"

type Input struct {
	Path        string `yaml:"path" split_words:"true"`
	Encoding    string `yaml:"encoding" split_words:"true"`
	LabelColumn string `yaml:"label_column" split_words:"true" validate:"required"`
	TextColumn  string `yaml:"text_column" split_words:"true" validate:"required"`
	Delimiter   string `yaml:"delimiter" split_words:"true" validate:"omitempty,len=1"`
}

type Features struct {
	MaxVocab           int      `yaml:"max_vocab" split_words:"true" validate:"gte=0"`
	MinDocFreq         int      `yaml:"min_doc_freq" split_words:"true" validate:"gte=1"`
	MaxDocFreqFraction float64  `yaml:"max_doc_freq_fraction" split_words:"true" validate:"gt=0,lte=1"`
	StopWords          string   `yaml:"stop_words" split_words:"true" validate:"oneof=english none"`
	ExtraStopWords     []string `yaml:"extra_stop_words" split_words:"true"`
	Lowercase          bool     `yaml:"lowercase" split_words:"true"`
	MinTokenLen        int      `yaml:"min_token_len" split_words:"true" validate:"gte=0"`
}

// Split leaves the test fraction unchecked, the splitter reports it with the
// row count.
type Split struct {
	TestFraction float64 `yaml:"test_fraction" split_words:"true"`
	Seed         *int64  `yaml:"seed" split_words:"true"` // nil seeds from the clock
}

type Forest struct {
	Trees           int    `yaml:"trees" split_words:"true" validate:"gte=1"`
	Criterion       string `yaml:"criterion" split_words:"true" validate:"oneof=entropy gini"`
	MaxFeatures     int    `yaml:"max_features" split_words:"true" validate:"gte=0"`
	MaxDepth        int    `yaml:"max_depth" split_words:"true" validate:"gte=0"`
	MinSamplesSplit int    `yaml:"min_samples_split" split_words:"true" validate:"gte=2"`
	MinSamplesLeaf  int    `yaml:"min_samples_leaf" split_words:"true" validate:"gte=1"`
	Bootstrap       bool   `yaml:"bootstrap" split_words:"true"`
	OOB             bool   `yaml:"oob" split_words:"true"`
	Workers         int    `yaml:"workers" split_words:"true" validate:"gte=0"`
}

type Logistic struct {
	C       float64 `yaml:"c" split_words:"true" validate:"gt=0"`
	MaxIter int     `yaml:"max_iter" split_words:"true" validate:"gte=1"`
	Tol     float64 `yaml:"tol" split_words:"true" validate:"gt=0"`
}

type Bayes struct {
	VarSmoothing float64 `yaml:"var_smoothing" split_words:"true" validate:"gte=0"`
}

type Config struct {
	Input    Input    `yaml:"input" envconfig:"input"`
	Features Features `yaml:"features" envconfig:"features"`
	Split    Split    `yaml:"split" envconfig:"split"`
	Forest   Forest   `yaml:"forest" envconfig:"forest"`
	Logistic Logistic `yaml:"logistic" envconfig:"logistic"`
	Bayes    Bayes    `yaml:"naive_bayes" envconfig:"naive_bayes"`

	JSONPath string `yaml:"json_path" split_words:"true"`
	LogLevel string `yaml:"log_level" split_words:"true" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// Default returns the settings of the reference study.
func Default() Config {
	seed := int64(42)

	return Config{
		Input: Input{
			Encoding:    "cp437",
			LabelColumn: "v1",
			TextColumn:  "v2",
			Delimiter:   ",",
		},
		Features: Features{
			MaxVocab:           10000,
			MinDocFreq:         2,
			MaxDocFreqFraction: 0.5,
			StopWords:          "english",
			Lowercase:          true,
			MinTokenLen:        2,
		},
		Split: Split{
			TestFraction: 0.2,
			Seed:         &seed,
		},
		Forest: Forest{
			Trees:           50,
			Criterion:       string(classifier.Entropy),
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			Bootstrap:       true,
			OOB:             true,
		},
		Logistic: Logistic{
			C:       1.0,
			MaxIter: 100,
			Tol:     1e-4,
		},
		Bayes: Bayes{
			VarSmoothing: 1e-9,
		},
		LogLevel: "INFO",
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return Config{}, errors.Wrapf(err, "parsing %s", path)
	}

	return cfg, nil
}

// Save writes cfg as YAML to path.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}

	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return errors.Wrap(err, "writing config")
	}

	return nil
}

// ApplyEnv overrides c from SPAMSTUDY_* variables, for instance
// SPAMSTUDY_SPLIT_TEST_FRACTION or SPAMSTUDY_FOREST_TREES. Unset variables
// leave the current value alone.
func (c *Config) ApplyEnv() error {
	err := envconfig.Process(EnvPrefix, c)
	if err != nil {
		return errors.Wrap(err, "reading environment")
	}

	return nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		return errors.Wrap(err, "validating config")
	}

	if c.Input.Path == "" {
		return errors.New("validating config: no input file")
	}

	return nil
}

func (c *Config) CorpusOptions() corpus.Options {
	opts := corpus.Options{
		Encoding:    c.Input.Encoding,
		LabelColumn: c.Input.LabelColumn,
		TextColumn:  c.Input.TextColumn,
	}

	if c.Input.Delimiter != "" {
		opts.Comma, _ = utf8.DecodeRuneInString(c.Input.Delimiter)
	}

	return opts
}

func (c *Config) VectorizerOptions() vectorize.Options {
	opts := vectorize.Options{
		MaxVocab:           c.Features.MaxVocab,
		MinDocFreq:         c.Features.MinDocFreq,
		MaxDocFreqFraction: c.Features.MaxDocFreqFraction,
		Lowercase:          c.Features.Lowercase,
		MinTokenLen:        c.Features.MinTokenLen,
		StopWords:          vectorize.StopSet(c.Features.ExtraStopWords...),
	}

	if c.Features.StopWords == "english" {
		for w := range vectorize.EnglishStopWords {
			opts.StopWords[w] = struct{}{}
		}
	}

	return opts
}

func (c *Config) ForestOptions() classifier.ForestOptions {
	opts := classifier.ForestOptions{
		NumTrees:        c.Forest.Trees,
		Criterion:       classifier.Criterion(c.Forest.Criterion),
		MaxFeatures:     c.Forest.MaxFeatures,
		MaxDepth:        c.Forest.MaxDepth,
		MinSamplesSplit: c.Forest.MinSamplesSplit,
		MinSamplesLeaf:  c.Forest.MinSamplesLeaf,
		Bootstrap:       c.Forest.Bootstrap,
		Workers:         c.Forest.Workers,
	}

	if c.Split.Seed != nil {
		opts.Seed = *c.Split.Seed
	}

	return opts
}

func (c *Config) LogisticOptions() classifier.LogisticOptions {
	return classifier.LogisticOptions{
		C:       c.Logistic.C,
		MaxIter: c.Logistic.MaxIter,
		Tol:     c.Logistic.Tol,
	}
}
