package tokenizer

// Tokenizer defines the minimal interface the corrector uses.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// SpecialTokens holds the reserved token ids of a T5-family
// vocabulary. Decode drops these so output text carries no control
// markers.
type SpecialTokens struct {
	PadID int
	EOSID int
	UnkID int

	// Extra marks additional reserved ids, e.g. the <extra_id_*>
	// sentinels T5 checkpoints append to the vocabulary.
	Extra map[int]bool
}

// T5Defaults returns the special ids shared by T5/flan-T5 checkpoints.
func T5Defaults() SpecialTokens {
	return SpecialTokens{PadID: 0, EOSID: 1, UnkID: 2}
}

// IsSpecial reports whether id is a reserved token.
func (s SpecialTokens) IsSpecial(id int) bool {
	return id == s.PadID || id == s.EOSID || id == s.UnkID || s.Extra[id]
}

// Strip returns ids with all reserved tokens removed.
func (s SpecialTokens) Strip(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if s.IsSpecial(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
