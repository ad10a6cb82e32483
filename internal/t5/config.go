package t5

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// Config is the subset of a HF T5 config.json needed to run the
// encoder-decoder forward pass.
type Config struct {
	ModelType        string
	DModel           int
	DKV              int
	DFF              int
	NumHeads         int
	NumLayers        int
	NumDecoderLayers int
	VocabSize        int

	RelAttnNumBuckets  int
	RelAttnMaxDistance int
	LayerNormEps       float64

	FeedForwardProj string
	TieWordEmb      bool

	DecoderStartTokenID int
	EOSTokenID          int
	PadTokenID          int
}

type hfConfig struct {
	ModelType        string   `json:"model_type"`
	Architectures    []string `json:"architectures"`
	DModel           int      `json:"d_model"`
	DKV              int      `json:"d_kv"`
	DFF              int      `json:"d_ff"`
	NumHeads         int      `json:"num_heads"`
	NumLayers        int      `json:"num_layers"`
	NumDecoderLayers *int     `json:"num_decoder_layers"`
	VocabSize        int      `json:"vocab_size"`

	RelAttnNumBuckets  int     `json:"relative_attention_num_buckets"`
	RelAttnMaxDistance int     `json:"relative_attention_max_distance"`
	LayerNormEps       float64 `json:"layer_norm_epsilon"`

	FeedForwardProj string `json:"feed_forward_proj"`
	TieWordEmb      *bool  `json:"tie_word_embeddings"`
	IsEncoderDec    *bool  `json:"is_encoder_decoder"`

	DecoderStartTokenID *int `json:"decoder_start_token_id"`
	EOSTokenID          *int `json:"eos_token_id"`
	PadTokenID          *int `json:"pad_token_id"`
}

// LoadConfig reads and parses config.json from a model directory.
func LoadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("load model config: %w", err)
	}
	return ParseConfigBytes(data)
}

// ParseConfigBytes parses config.json contents, applying the HF T5
// defaults for absent fields.
func ParseConfigBytes(data []byte) (*Config, error) {
	var raw hfConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse model config: %w", err)
	}
	if raw.ModelType != "" && raw.ModelType != "t5" && raw.ModelType != "mt5" {
		return nil, fmt.Errorf("unsupported model_type %q", raw.ModelType)
	}
	if raw.IsEncoderDec != nil && !*raw.IsEncoderDec {
		return nil, fmt.Errorf("model is not an encoder-decoder")
	}

	cfg := &Config{
		ModelType:          raw.ModelType,
		DModel:             orDefault(raw.DModel, 512),
		DKV:                orDefault(raw.DKV, 64),
		DFF:                orDefault(raw.DFF, 2048),
		NumHeads:           orDefault(raw.NumHeads, 8),
		NumLayers:          orDefault(raw.NumLayers, 6),
		VocabSize:          orDefault(raw.VocabSize, 32128),
		RelAttnNumBuckets:  orDefault(raw.RelAttnNumBuckets, 32),
		RelAttnMaxDistance: orDefault(raw.RelAttnMaxDistance, 128),
		LayerNormEps:       raw.LayerNormEps,
		FeedForwardProj:    raw.FeedForwardProj,
		TieWordEmb:         true,

		DecoderStartTokenID: 0,
		EOSTokenID:          1,
		PadTokenID:          0,
	}
	if cfg.LayerNormEps == 0 {
		cfg.LayerNormEps = 1e-6
	}
	if cfg.FeedForwardProj == "" {
		cfg.FeedForwardProj = "relu"
	}
	cfg.NumDecoderLayers = cfg.NumLayers
	if raw.NumDecoderLayers != nil {
		cfg.NumDecoderLayers = *raw.NumDecoderLayers
	}
	if raw.TieWordEmb != nil {
		cfg.TieWordEmb = *raw.TieWordEmb
	}
	if raw.DecoderStartTokenID != nil {
		cfg.DecoderStartTokenID = *raw.DecoderStartTokenID
	}
	if raw.EOSTokenID != nil {
		cfg.EOSTokenID = *raw.EOSTokenID
	}
	if raw.PadTokenID != nil {
		cfg.PadTokenID = *raw.PadTokenID
	}

	if _, _, err := cfg.activation(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// activation resolves the feed-forward projection into (gated, act
// name). T5 v1.0 uses dense relu; flan-T5 uses gated gelu.
func (c *Config) activation() (bool, string, error) {
	proj := c.FeedForwardProj
	gated := strings.HasPrefix(proj, "gated-")
	act := strings.TrimPrefix(proj, "gated-")
	switch act {
	case "relu", "gelu", "gelu_new":
		return gated, act, nil
	default:
		return false, "", fmt.Errorf("unsupported feed_forward_proj %q", proj)
	}
}

// InnerDim is the attention projection width, num_heads * d_kv.
func (c *Config) InnerDim() int {
	return c.NumHeads * c.DKV
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
