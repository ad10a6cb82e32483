package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/prosefix/prosefix/internal/corrector"
	"github.com/prosefix/prosefix/internal/logger"
	"github.com/prosefix/prosefix/internal/logits"
)

func correctCmd() *cli.Command {
	return &cli.Command{
		Name:      "correct",
		Usage:     "Correct the grammar of a piece of text",
		ArgsUsage: "<text>",
		Flags:     append(correctFlags(), loggingFlags()...),
		Action:    runCorrect,
	}
}

func runCorrect(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("no text given; usage: prosefix correct <text>")
	}
	text := strings.Join(cmd.Args().Slice(), " ")

	cfg := LoadConfig()
	applyConfig(cmd, cfg)
	log := setupLogger()

	variant, err := resolveVariant(cfg, variantName, modelPath, prefixOverride)
	if err != nil {
		return err
	}

	passthrough := true
	if variant.PassthroughBlank != nil {
		passthrough = *variant.PassthroughBlank
	}

	loader := corrector.Loader{VocabPath: vocabPath, Log: log}
	sampling := logits.SamplerConfig{
		Seed:        seed,
		Temperature: temperature,
		TopK:        int(topK),
	}
	c := corrector.New(corrector.Config{
		Prefix:           variant.Prefix,
		MaxTokens:        int(maxTokens),
		PassthroughBlank: passthrough,
	}, func() (*corrector.Pipeline, error) {
		return loader.Load(variant.Model, sampling, int(maxTokens))
	}, log)

	out, stats, err := c.Correct(ctx, text)
	if err != nil {
		return err
	}
	if stats.TokensGenerated > 0 {
		log.Debug("generation finished",
			"prompt_tokens", stats.PromptTokens,
			"tokens", stats.TokensGenerated,
			"duration", stats.Duration,
			"tok_per_sec", fmt.Sprintf("%.1f", stats.TPS))
	}
	fmt.Println(out)
	return nil
}

func setupLogger() logger.Logger {
	level := logLevel
	if debug {
		level = "debug"
	}
	return logger.Setup(os.Stderr, logFormat, level)
}
