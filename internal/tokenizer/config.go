package tokenizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-json"
)

// Vocabulary filenames shipped by HF T5 exports, in lookup order.
var vocabFileNames = []string{"spiece.model", "tokenizer.model"}

// DiscoverVocab locates the sentencepiece vocabulary file in a model
// directory. An override path, when non-empty, wins.
func DiscoverVocab(dir, override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("tokenizer vocabulary %s: %w", override, err)
		}
		return override, nil
	}
	for _, name := range vocabFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no sentencepiece vocabulary found in %s", dir)
}

// Config is the subset of tokenizer_config.json prosefix consumes.
type Config struct {
	EOSToken string
	PadToken string
	UnkToken string

	// ExtraSpecialIDs lists added-token ids flagged special in the
	// config (T5 sentinel tokens).
	ExtraSpecialIDs []int
}

type rawTokenizerConfig struct {
	EOSToken           json.RawMessage          `json:"eos_token"`
	PadToken           json.RawMessage          `json:"pad_token"`
	UnkToken           json.RawMessage          `json:"unk_token"`
	AddedTokensDecoder map[string]rawAddedToken `json:"added_tokens_decoder"`
}

type rawAddedToken struct {
	Content string `json:"content"`
	Special bool   `json:"special"`
}

// LoadConfig reads tokenizer_config.json from a model directory. A
// missing file yields a zero Config; a malformed one is an error.
func LoadConfig(dir string) (Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, "tokenizer_config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return ParseConfigBytes(data)
}

// ParseConfigBytes parses tokenizer_config.json contents.
func ParseConfigBytes(data []byte) (Config, error) {
	var raw rawTokenizerConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse tokenizer config: %w", err)
	}
	cfg := Config{
		EOSToken: tokenContent(raw.EOSToken),
		PadToken: tokenContent(raw.PadToken),
		UnkToken: tokenContent(raw.UnkToken),
	}
	for idStr, tok := range raw.AddedTokensDecoder {
		if !tok.Special {
			continue
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		cfg.ExtraSpecialIDs = append(cfg.ExtraSpecialIDs, id)
	}
	return cfg, nil
}

// ApplySpecials merges the config's extra special ids into base.
func ApplySpecials(cfg Config, base SpecialTokens) SpecialTokens {
	if len(cfg.ExtraSpecialIDs) == 0 {
		return base
	}
	out := base
	out.Extra = make(map[int]bool, len(cfg.ExtraSpecialIDs))
	for id := range base.Extra {
		out.Extra[id] = true
	}
	for _, id := range cfg.ExtraSpecialIDs {
		if id == base.PadID || id == base.EOSID || id == base.UnkID {
			continue
		}
		out.Extra[id] = true
	}
	return out
}

// tokenContent extracts a token string that may be encoded either as a
// bare string or as an AddedToken object with a content field.
func tokenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Content
	}
	return ""
}
