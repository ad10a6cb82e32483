package corrector

import (
	"context"
	"strings"
	"testing"

	"github.com/prosefix/prosefix/internal/logits"
)

const testVocabSize = 12

// stubTokenizer records the exact strings and ids passed through it.
type stubTokenizer struct {
	encodeIDs []int
	decodeOut string

	encodedPrompts []string
	decodedIDs     [][]int
}

func (s *stubTokenizer) Encode(text string) ([]int, error) {
	s.encodedPrompts = append(s.encodedPrompts, text)
	return s.encodeIDs, nil
}

func (s *stubTokenizer) Decode(ids []int) (string, error) {
	copied := make([]int, len(ids))
	copy(copied, ids)
	s.decodedIDs = append(s.decodedIDs, copied)
	return s.decodeOut, nil
}

// stubModel emits a scripted token sequence: the logits returned at
// step i put the script's i-th token at the argmax. Once the script is
// exhausted it keeps emitting the last scripted token.
type stubModel struct {
	script []int
	step   int

	encodedPrompts [][]int
}

func (s *stubModel) EncodePrompt(ids []int) error {
	copied := make([]int, len(ids))
	copy(copied, ids)
	s.encodedPrompts = append(s.encodedPrompts, copied)
	s.step = 0
	return nil
}

func (s *stubModel) ForwardToken(int) ([]float32, error) {
	tok := s.script[len(s.script)-1]
	if s.step < len(s.script) {
		tok = s.script[s.step]
	}
	s.step++
	out := make([]float32, testVocabSize)
	out[tok] = 10
	return out, nil
}

func (s *stubModel) Reset() { s.step = 0 }

func newTestPipeline(tok *stubTokenizer, m *stubModel) *Pipeline {
	return &Pipeline{
		Tok:          tok,
		Model:        m,
		Sampler:      logits.NewSampler(logits.SamplerConfig{}),
		StartTokenID: 0,
		EOSTokenID:   1,
	}
}

func TestBlankPassthrough(t *testing.T) {
	t.Parallel()
	opened := 0
	c := New(Config{Prefix: "correct grammar: ", PassthroughBlank: true},
		func() (*Pipeline, error) {
			opened++
			return nil, nil
		}, nil)

	for _, in := range []string{"", " ", "\t\n ", "   \t"} {
		out, stats, err := c.Correct(context.Background(), in)
		if err != nil {
			t.Fatalf("Correct(%q): %v", in, err)
		}
		if out != in {
			t.Fatalf("Correct(%q) = %q, want input unchanged", in, out)
		}
		if stats.TokensGenerated != 0 {
			t.Fatalf("expected no generation for blank input")
		}
	}
	if opened != 0 {
		t.Fatalf("pipeline opened %d times for blank input, want 0", opened)
	}
}

func TestBlankWithoutPassthroughRunsModel(t *testing.T) {
	t.Parallel()
	tok := &stubTokenizer{encodeIDs: []int{5, 1}, decodeOut: ""}
	m := &stubModel{script: []int{1}}
	opened := 0
	c := New(Config{Prefix: "grammar: "}, func() (*Pipeline, error) {
		opened++
		return newTestPipeline(tok, m), nil
	}, nil)

	if _, _, err := c.Correct(context.Background(), ""); err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if opened != 1 {
		t.Fatalf("pipeline opened %d times, want 1", opened)
	}
	if len(tok.encodedPrompts) != 1 || tok.encodedPrompts[0] != "grammar: " {
		t.Fatalf("encoded prompts = %q", tok.encodedPrompts)
	}
}

func TestPromptIsPrefixPlusInputExactly(t *testing.T) {
	t.Parallel()
	tok := &stubTokenizer{encodeIDs: []int{3, 4, 1}, decodeOut: "He goes to school"}
	m := &stubModel{script: []int{7, 8, 1}}
	c := New(Config{Prefix: "correct grammar: "}, func() (*Pipeline, error) {
		return newTestPipeline(tok, m), nil
	}, nil)

	in := "  He go to school\t"
	if _, _, err := c.Correct(context.Background(), in); err != nil {
		t.Fatalf("Correct: %v", err)
	}
	want := "correct grammar:   He go to school\t"
	if tok.encodedPrompts[0] != want {
		t.Fatalf("prompt = %q, want %q (no trimming or normalization)", tok.encodedPrompts[0], want)
	}
	if len(m.encodedPrompts) != 1 || len(m.encodedPrompts[0]) != 3 {
		t.Fatalf("model got prompt ids %v", m.encodedPrompts)
	}
}

func TestGenerationStopsAtEOS(t *testing.T) {
	t.Parallel()
	tok := &stubTokenizer{encodeIDs: []int{2}, decodeOut: "fixed"}
	m := &stubModel{script: []int{9, 5, 9, 1, 6}}
	c := New(Config{Prefix: "x: "}, func() (*Pipeline, error) {
		return newTestPipeline(tok, m), nil
	}, nil)

	out, stats, err := c.Correct(context.Background(), "y")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if stats.TokensGenerated != 3 {
		t.Fatalf("TokensGenerated = %d, want 3", stats.TokensGenerated)
	}
	got := tok.decodedIDs[0]
	want := []int{9, 5, 9}
	if len(got) != len(want) {
		t.Fatalf("decoded ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("decoded ids = %v, want %v", got, want)
		}
	}
	if out != "fixed" {
		t.Fatalf("out = %q", out)
	}
}

func TestGenerationBoundedByMaxTokens(t *testing.T) {
	t.Parallel()
	tok := &stubTokenizer{encodeIDs: []int{2}, decodeOut: "..."}
	m := &stubModel{script: []int{9}} // never emits EOS
	c := New(Config{Prefix: "p: ", MaxTokens: 16}, func() (*Pipeline, error) {
		return newTestPipeline(tok, m), nil
	}, nil)

	_, stats, err := c.Correct(context.Background(), "text")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if stats.TokensGenerated != 16 {
		t.Fatalf("TokensGenerated = %d, want 16", stats.TokensGenerated)
	}
	if len(tok.decodedIDs[0]) != 16 {
		t.Fatalf("decoded %d ids, want 16", len(tok.decodedIDs[0]))
	}
}

func TestDefaultMaxTokens(t *testing.T) {
	t.Parallel()
	c := New(Config{}, nil, nil)
	if c.Config.MaxTokens != 256 {
		t.Fatalf("default MaxTokens = %d, want 256", c.Config.MaxTokens)
	}
}

func TestOutputFreeOfPrefix(t *testing.T) {
	t.Parallel()
	tok := &stubTokenizer{encodeIDs: []int{2, 3}, decodeOut: "He goes to school"}
	m := &stubModel{script: []int{4, 5, 1}}
	prefix := "correct grammar: "
	c := New(Config{Prefix: prefix}, func() (*Pipeline, error) {
		return newTestPipeline(tok, m), nil
	}, nil)

	out, _, err := c.Correct(context.Background(), "He go to school")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if out == "" {
		t.Fatal("expected non-empty output")
	}
	if strings.Contains(out, prefix) {
		t.Fatalf("output %q contains prompt prefix", out)
	}
}

func TestOpenErrorPropagates(t *testing.T) {
	t.Parallel()
	c := New(Config{Prefix: "p: "}, func() (*Pipeline, error) {
		return nil, context.DeadlineExceeded
	}, nil)
	if _, _, err := c.Correct(context.Background(), "text"); err == nil {
		t.Fatal("expected open error to propagate")
	}
}

func TestContextCancellation(t *testing.T) {
	t.Parallel()
	tok := &stubTokenizer{encodeIDs: []int{2}}
	m := &stubModel{script: []int{9}}
	c := New(Config{Prefix: "p: "}, func() (*Pipeline, error) {
		return newTestPipeline(tok, m), nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := c.Correct(ctx, "text"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
