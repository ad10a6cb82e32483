package corrector

import (
	"fmt"
	"strings"

	"github.com/prosefix/prosefix/internal/logger"
	"github.com/prosefix/prosefix/internal/logits"
	"github.com/prosefix/prosefix/internal/t5"
	"github.com/prosefix/prosefix/internal/tokenizer"
)

// Loader assembles a Pipeline from an HF-style T5 model directory
// (config.json, model.safetensors, spiece.model, tokenizer_config.json).
type Loader struct {
	// VocabPath overrides the sentencepiece vocabulary location.
	VocabPath string
	Log       logger.Logger
}

// Load builds the pipeline for a model directory.
func (l Loader) Load(dir string, sampling logits.SamplerConfig, maxTokens int) (*Pipeline, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("model path is required")
	}
	log := l.Log
	if log == nil {
		log = logger.Default()
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	model, err := t5.Load(dir, maxTokens+1)
	if err != nil {
		return nil, err
	}
	cfg := model.Config()
	log.Debug("loaded model", "dir", dir,
		"layers", cfg.NumLayers, "d_model", cfg.DModel, "vocab", cfg.VocabSize)

	vocabPath, err := tokenizer.DiscoverVocab(dir, l.VocabPath)
	if err != nil {
		return nil, err
	}
	tokCfg, err := tokenizer.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	special := tokenizer.SpecialTokens{
		PadID: cfg.PadTokenID,
		EOSID: cfg.EOSTokenID,
		UnkID: tokenizer.T5Defaults().UnkID,
	}
	special = tokenizer.ApplySpecials(tokCfg, special)
	tok, err := tokenizer.LoadSentencePiece(vocabPath, special)
	if err != nil {
		return nil, err
	}
	log.Debug("loaded tokenizer", "vocab", vocabPath)

	return &Pipeline{
		Tok:          tok,
		Model:        model,
		Sampler:      logits.NewSampler(sampling),
		StartTokenID: cfg.DecoderStartTokenID,
		EOSTokenID:   cfg.EOSTokenID,
	}, nil
}
