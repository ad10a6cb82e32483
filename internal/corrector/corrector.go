// Package corrector glues tokenizer, model and sampler into the
// grammar-correction operation: prefix the input, encode, generate,
// decode.
package corrector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prosefix/prosefix/internal/logger"
	"github.com/prosefix/prosefix/internal/logits"
	"github.com/prosefix/prosefix/internal/tokenizer"
)

// DefaultMaxTokens bounds one generation pass.
const DefaultMaxTokens = 256

// Model is the narrow generation interface the corrector needs. It is
// satisfied by t5.Instance and by test stubs.
type Model interface {
	EncodePrompt(ids []int) error
	ForwardToken(id int) ([]float32, error)
	Reset()
}

// Pipeline bundles the loaded components of one model variant.
type Pipeline struct {
	Tok     tokenizer.Tokenizer
	Model   Model
	Sampler *logits.Sampler

	StartTokenID int
	EOSTokenID   int
}

// Config describes one correction run.
type Config struct {
	// Prefix is prepended verbatim to the input text.
	Prefix string
	// MaxTokens bounds the number of generated tokens.
	MaxTokens int
	// PassthroughBlank returns blank input unchanged without touching
	// the model.
	PassthroughBlank bool
}

type Stats struct {
	PromptTokens    int
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}

// Corrector runs corrections. Open assembles the pipeline on first
// use, so blank input never loads a model from disk.
type Corrector struct {
	Config Config
	Open   func() (*Pipeline, error)
	Log    logger.Logger
}

// New returns a Corrector with defaults applied.
func New(cfg Config, open func() (*Pipeline, error), log logger.Logger) *Corrector {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if log == nil {
		log = logger.Default()
	}
	return &Corrector{Config: cfg, Open: open, Log: log}
}

// Correct returns the corrected form of text.
func (c *Corrector) Correct(ctx context.Context, text string) (string, Stats, error) {
	var stats Stats

	if c.Config.PassthroughBlank && strings.TrimSpace(text) == "" {
		return text, stats, nil
	}

	p, err := c.Open()
	if err != nil {
		return "", stats, err
	}

	prompt := c.Config.Prefix + text
	ids, err := p.Tok.Encode(prompt)
	if err != nil {
		return "", stats, fmt.Errorf("encode prompt: %w", err)
	}
	stats.PromptTokens = len(ids)
	c.Log.Debug("encoded prompt", "tokens", len(ids))

	if err := p.Model.EncodePrompt(ids); err != nil {
		return "", stats, fmt.Errorf("encode pass: %w", err)
	}

	start := time.Now()
	generated := make([]int, 0, c.Config.MaxTokens)
	next := p.StartTokenID
	for len(generated) < c.Config.MaxTokens {
		if err := ctx.Err(); err != nil {
			return "", stats, err
		}
		logitsVec, err := p.Model.ForwardToken(next)
		if err != nil {
			return "", stats, fmt.Errorf("generation step %d: %w", len(generated), err)
		}
		next = p.Sampler.Sample(logitsVec)
		if next == p.EOSTokenID {
			break
		}
		generated = append(generated, next)
		stats.TokensGenerated++
	}
	stats.Duration = time.Since(start)
	if s := stats.Duration.Seconds(); s > 0 {
		stats.TPS = float64(stats.TokensGenerated) / s
	}

	out, err := p.Tok.Decode(generated)
	if err != nil {
		return "", stats, fmt.Errorf("decode output: %w", err)
	}
	c.Log.Debug("generation done", "tokens", stats.TokensGenerated, "duration", stats.Duration)
	return out, stats, nil
}
