package t5

import "testing"

func TestParseConfigFlanT5(t *testing.T) {
	t.Parallel()
	data := []byte(`{
		"architectures": ["T5ForConditionalGeneration"],
		"model_type": "t5",
		"d_model": 768,
		"d_kv": 64,
		"d_ff": 2048,
		"num_heads": 12,
		"num_layers": 12,
		"num_decoder_layers": 12,
		"vocab_size": 32128,
		"relative_attention_num_buckets": 32,
		"relative_attention_max_distance": 128,
		"layer_norm_epsilon": 1e-06,
		"feed_forward_proj": "gated-gelu",
		"tie_word_embeddings": false,
		"is_encoder_decoder": true,
		"decoder_start_token_id": 0,
		"eos_token_id": 1,
		"pad_token_id": 0
	}`)
	cfg, err := ParseConfigBytes(data)
	if err != nil {
		t.Fatalf("ParseConfigBytes: %v", err)
	}
	if cfg.DModel != 768 || cfg.NumHeads != 12 || cfg.InnerDim() != 768 {
		t.Fatalf("dims wrong: %+v", cfg)
	}
	if cfg.TieWordEmb {
		t.Fatal("tie_word_embeddings should be false")
	}
	gated, act, err := cfg.activation()
	if err != nil {
		t.Fatalf("activation: %v", err)
	}
	if !gated || act != "gelu" {
		t.Fatalf("activation = %v %q", gated, act)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := ParseConfigBytes([]byte(`{"model_type": "t5"}`))
	if err != nil {
		t.Fatalf("ParseConfigBytes: %v", err)
	}
	if cfg.DModel != 512 || cfg.DKV != 64 || cfg.NumHeads != 8 || cfg.NumLayers != 6 {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
	if cfg.NumDecoderLayers != 6 {
		t.Fatalf("NumDecoderLayers = %d, want 6", cfg.NumDecoderLayers)
	}
	if !cfg.TieWordEmb {
		t.Fatal("tie_word_embeddings should default to true")
	}
	if cfg.FeedForwardProj != "relu" || cfg.LayerNormEps != 1e-6 {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
	if cfg.DecoderStartTokenID != 0 || cfg.EOSTokenID != 1 || cfg.PadTokenID != 0 {
		t.Fatalf("token ids wrong: %+v", cfg)
	}
}

func TestParseConfigRejectsWrongModel(t *testing.T) {
	t.Parallel()
	if _, err := ParseConfigBytes([]byte(`{"model_type": "llama"}`)); err == nil {
		t.Fatal("expected error for non-T5 model_type")
	}
	if _, err := ParseConfigBytes([]byte(`{"model_type": "t5", "is_encoder_decoder": false}`)); err == nil {
		t.Fatal("expected error for decoder-only config")
	}
	if _, err := ParseConfigBytes([]byte(`{"model_type": "t5", "feed_forward_proj": "gated-swish"}`)); err == nil {
		t.Fatal("expected error for unsupported activation")
	}
}
