// Spamstudy compares spam classifiers on a labeled corpus of short messages. It
// reads a CSV file with a label and a text column, builds TF-IDF features,
// fits a random forest, a logistic regression and a naive Bayes model on the
// same train/test split and prints their metrics.
//
// Settings come from the built-in defaults, an optional YAML file given with
// -config, SPAMSTUDY_* environment variables (a .env file is honoured) and
// finally the command line flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/pkg/errors"
	"github.com/pkg/profile"

	"spamstudy/archive"
	"spamstudy/config"
	"spamstudy/corpus"
	"spamstudy/report"
	"spamstudy/study"
)

const defaultConfigPath = "spamstudy.yaml"

type options struct {
	configPath    string
	initConfig    bool
	archivePath   string
	profilePath   string
	profilingAddr string

	cfg config.Config
}

// parseArgs resolves the configuration from defaults, file, environment and
// flags, in that order.
func parseArgs(args []string, output io.Writer) (options, error) {
	fs := flag.NewFlagSet("spamstudy", flag.ContinueOnError)
	fs.SetOutput(output)

	var opts options

	fs.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	fs.BoolVar(&opts.initConfig, "init", false, "write the default config to -config (or "+defaultConfigPath+") and exit")
	fs.StringVar(&opts.archivePath, "archive", "", "directory keeping earlier runs for comparison, empty to disable")
	fs.StringVar(&opts.profilePath, "profile", "", "write a CPU profile into this directory")
	fs.StringVar(&opts.profilingAddr, "profilingAddr", "", "listening address for a pprof server, empty to disable")

	input := fs.String("input", "", "path to the corpus CSV file")
	encoding := fs.String("encoding", "", "character encoding of the corpus, e.g. cp437 or utf-8")
	seed := fs.String("seed", "", "random seed, \"none\" to seed from the clock")
	testFraction := fs.Float64("test-fraction", 0, "fraction of rows held out for testing")
	maxVocab := fs.Int("max-vocab", 0, "maximum vocabulary size, 0 for unlimited")
	trees := fs.Int("trees", 0, "number of trees in the random forest")
	jsonPath := fs.String("json", "", "also write the report as JSON to this path")
	logLevel := fs.String("log-level", "", "one of DEBUG, INFO, WARN, ERROR")

	err := fs.Parse(args)
	if err != nil {
		return options{}, err
	}

	if opts.initConfig {
		opts.cfg = config.Default()
		return opts, nil
	}

	cfg := config.Default()
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return options{}, err
		}
	}

	err = cfg.ApplyEnv()
	if err != nil {
		return options{}, err
	}

	// Only flags given explicitly override the lower layers
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Input.Path = *input
		case "encoding":
			cfg.Input.Encoding = *encoding
		case "seed":
			if *seed == "none" {
				cfg.Split.Seed = nil
				return
			}

			s, perr := strconv.ParseInt(*seed, 10, 64)
			if perr != nil {
				err = errors.Wrapf(perr, "parsing seed %q", *seed)
				return
			}
			cfg.Split.Seed = &s
		case "test-fraction":
			cfg.Split.TestFraction = *testFraction
		case "max-vocab":
			cfg.Features.MaxVocab = *maxVocab
		case "trees":
			cfg.Forest.Trees = *trees
		case "json":
			cfg.JSONPath = *jsonPath
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if err != nil {
		return options{}, err
	}

	err = cfg.Validate()
	if err != nil {
		return options{}, err
	}

	opts.cfg = cfg

	return opts, nil
}

func run(ctx context.Context, opts options, out io.Writer, logger *slog.Logger) error {
	cfg := opts.cfg

	records, err := corpus.LoadFile(cfg.Input.Path, cfg.CorpusOptions())
	if err != nil {
		return err
	}

	logger.Info("corpus loaded", "path", cfg.Input.Path, "records", len(records), "encoding", cfg.Input.Encoding)

	res, err := study.Run(ctx, records, cfg, logger)
	if err != nil {
		return err
	}

	err = report.WriteText(out, res)
	if err != nil {
		return err
	}

	if cfg.JSONPath != "" {
		err = report.SaveJSON(cfg.JSONPath, res)
		if err != nil {
			return err
		}

		logger.Info("report written", "path", cfg.JSONPath)
	}

	if opts.archivePath != "" {
		err = archiveRun(opts.archivePath, res, out)
		if err != nil {
			return err
		}
	}

	return nil
}

// archiveRun prints the earlier runs on the same corpus and stores res.
func archiveRun(path string, res study.Result, out io.Writer) (err error) {
	a, err := archive.Open(path, true)
	if err != nil {
		return errors.Wrap(err, "opening archive")
	}
	defer func() {
		cerr := a.Close()
		if err == nil && cerr != nil {
			err = errors.Wrap(cerr, "closing archive")
		}
	}()

	earlier, err := a.Runs(res.Summary.Fingerprint)
	if err != nil {
		return err
	}

	err = report.WriteHistory(out, earlier)
	if err != nil {
		return err
	}

	return a.Add(res)
}

func realMain() int {
	// A missing .env file is fine
	_ = godotenv.Load()

	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "spamstudy: %s\n", err)
		return 2
	}

	if opts.initConfig {
		path := opts.configPath
		if path == "" {
			path = defaultConfigPath
		}

		err = config.Save(path, opts.cfg)
		if err != nil {
			log.Printf("can't write config: %s", err)
			return 1
		}

		log.Println("config written to", path)
		return 0
	}

	logger := logs.GetLoggerFromString(opts.cfg.LogLevel)

	if opts.profilingAddr != "" {
		go func() {
			logger.Info("starting profiling server", "addr", opts.profilingAddr)
			err := http.ListenAndServe(opts.profilingAddr, nil)
			if err != nil {
				logger.Warn("can't start profiling server", "addr", opts.profilingAddr, "error", err)
			}
		}()
	}

	if opts.profilePath != "" {
		defer profile.Start(profile.ProfilePath(opts.profilePath)).Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, opts, os.Stdout, logger)
	if err != nil {
		logger.Error("study failed", "error", err)
		return 1
	}

	return 0
}

func main() {
	os.Exit(realMain())
}
