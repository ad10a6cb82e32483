package tokenizer

import (
	"fmt"

	esp "github.com/eliben/go-sentencepiece"
)

// SPTokenizer is a SentencePiece tokenizer loaded from a T5-style
// spiece.model / tokenizer.model file.
type SPTokenizer struct {
	proc    *esp.Processor
	special SpecialTokens

	// appendEOS mirrors the T5 convention of terminating every encoded
	// sequence with </s>.
	appendEOS bool
}

// LoadSentencePiece reads a sentencepiece model file and wraps it with
// the given special token ids.
func LoadSentencePiece(path string, special SpecialTokens) (*SPTokenizer, error) {
	proc, err := esp.NewProcessorFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("load sentencepiece %s: %w", path, err)
	}
	return &SPTokenizer{proc: proc, special: special, appendEOS: true}, nil
}

// Encode returns the token ids for text with a trailing EOS.
func (t *SPTokenizer) Encode(text string) ([]int, error) {
	tokens := t.proc.Encode(text)
	ids := make([]int, 0, len(tokens)+1)
	for _, tok := range tokens {
		ids = append(ids, tok.ID)
	}
	if t.appendEOS {
		ids = append(ids, t.special.EOSID)
	}
	return ids, nil
}

// Decode returns the text for ids, dropping special tokens.
func (t *SPTokenizer) Decode(ids []int) (string, error) {
	return t.proc.Decode(t.special.Strip(ids)), nil
}

// Special returns the reserved token ids in use.
func (t *SPTokenizer) Special() SpecialTokens {
	return t.special
}
