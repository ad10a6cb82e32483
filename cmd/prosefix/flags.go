package main

import "github.com/urfave/cli/v3"

var (
	variantName    string
	modelPath      string
	prefixOverride string
	vocabPath      string
	maxTokens      int64
	temperature    float64
	topK           int64
	seed           int64
	logLevel       string
	logFormat      string
	debug          bool
)

func correctFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "variant",
			Aliases:     []string{"V"},
			Usage:       "named correction variant (correct, grammar, or from config)",
			Value:       "correct",
			Destination: &variantName,
		},
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to the model directory (overrides the variant's model)",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "instruction prefix (overrides the variant's prefix)",
			Destination: &prefixOverride,
		},
		&cli.StringFlag{
			Name:        "vocab",
			Usage:       "override path to the sentencepiece vocabulary file",
			Destination: &vocabPath,
		},
		&cli.Int64Flag{
			Name:        "max-tokens",
			Usage:       "maximum number of tokens to generate",
			Value:       256,
			Destination: &maxTokens,
		},
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature"},
			Usage:       "sampling temperature (0 = greedy)",
			Value:       0,
			Destination: &temperature,
		},
		&cli.Int64Flag{
			Name:        "topk",
			Usage:       "top-k sampling parameter (with --temp > 0)",
			Value:       40,
			Destination: &topK,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling RNG seed",
			Destination: &seed,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "warn",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
