package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
default_variant: grammar
models_dir: /srv/models
max_tokens: 128
variants:
  correct:
    model: flan-t5-base
  custom:
    model: /abs/custom
    prefix: "fix: "
    passthrough_blank: false
`)

	cfg, err := loadConfigFile(path)
	if err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}
	if cfg.DefaultVariant != "grammar" {
		t.Errorf("DefaultVariant = %q, want %q", cfg.DefaultVariant, "grammar")
	}
	if cfg.ModelsDir != "/srv/models" {
		t.Errorf("ModelsDir = %q, want %q", cfg.ModelsDir, "/srv/models")
	}
	if cfg.MaxTokens == nil || *cfg.MaxTokens != 128 {
		t.Errorf("MaxTokens = %v, want 128", cfg.MaxTokens)
	}
	custom, ok := cfg.Variants["custom"]
	if !ok {
		t.Fatal("custom variant missing")
	}
	if custom.Prefix != "fix: " {
		t.Errorf("custom prefix = %q, want %q", custom.Prefix, "fix: ")
	}
	if custom.PassthroughBlank == nil || *custom.PassthroughBlank {
		t.Error("custom passthrough_blank should be false")
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	t.Parallel()

	if _, err := loadConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBuiltinVariants(t *testing.T) {
	t.Parallel()

	vs := builtinVariants()
	correct, ok := vs["correct"]
	if !ok {
		t.Fatal("correct variant missing")
	}
	if correct.Prefix != "correct grammar: " {
		t.Errorf("correct prefix = %q", correct.Prefix)
	}
	if correct.PassthroughBlank == nil || !*correct.PassthroughBlank {
		t.Error("correct variant should pass blank input through")
	}
	grammar, ok := vs["grammar"]
	if !ok {
		t.Fatal("grammar variant missing")
	}
	if grammar.Prefix != "grammar: " {
		t.Errorf("grammar prefix = %q", grammar.Prefix)
	}
	if grammar.PassthroughBlank == nil || *grammar.PassthroughBlank {
		t.Error("grammar variant should not pass blank input through")
	}
}

func TestResolveVariantPrecedence(t *testing.T) {
	t.Parallel()

	no := false
	cfg := Config{
		ModelsDir: "/srv/models",
		Variants: map[string]Variant{
			"correct": {Model: "flan-t5-base", Prefix: "please fix: ", PassthroughBlank: &no},
		},
	}

	// Config file variant over built-in defaults.
	v, err := resolveVariant(cfg, "correct", "", "")
	if err != nil {
		t.Fatalf("resolveVariant: %v", err)
	}
	if v.Model != filepath.Join("/srv/models", "flan-t5-base") {
		t.Errorf("model = %q, want models_dir join", v.Model)
	}
	if v.Prefix != "please fix: " {
		t.Errorf("prefix = %q", v.Prefix)
	}
	if v.PassthroughBlank == nil || *v.PassthroughBlank {
		t.Error("config file passthrough override not applied")
	}

	// Flags over config file.
	v, err = resolveVariant(cfg, "correct", "/tmp/other", "alt: ")
	if err != nil {
		t.Fatalf("resolveVariant: %v", err)
	}
	if v.Model != "/tmp/other" {
		t.Errorf("model = %q, want flag override", v.Model)
	}
	if v.Prefix != "alt: " {
		t.Errorf("prefix = %q, want flag override", v.Prefix)
	}
}

func TestResolveVariantAbsModelSkipsModelsDir(t *testing.T) {
	t.Parallel()

	cfg := Config{
		ModelsDir: "/srv/models",
		Variants: map[string]Variant{
			"grammar": {Model: "/abs/t5"},
		},
	}
	v, err := resolveVariant(cfg, "grammar", "", "")
	if err != nil {
		t.Fatalf("resolveVariant: %v", err)
	}
	if v.Model != "/abs/t5" {
		t.Errorf("model = %q, want /abs/t5", v.Model)
	}
	// Built-in prefix survives when the config file only sets a model.
	if v.Prefix != "grammar: " {
		t.Errorf("prefix = %q, want built-in", v.Prefix)
	}
}

func TestMergeVariantsAppliesModelsDir(t *testing.T) {
	t.Parallel()

	cfg := Config{
		ModelsDir: "/srv/models",
		Variants: map[string]Variant{
			"correct": {Model: "flan-t5-base"},
			"custom":  {Model: "/abs/custom"},
		},
	}
	merged, source := mergeVariants(cfg)

	// The listing resolves relative model paths exactly like
	// resolveVariant, so both commands report the same location.
	if got := merged["correct"].Model; got != filepath.Join("/srv/models", "flan-t5-base") {
		t.Errorf("correct model = %q, want models_dir join", got)
	}
	if got := merged["custom"].Model; got != "/abs/custom" {
		t.Errorf("custom model = %q, want absolute path kept", got)
	}
	if source["correct"] != "built-in+config" || source["custom"] != "config" {
		t.Errorf("sources = %v", source)
	}
	if source["grammar"] != "built-in" {
		t.Errorf("grammar source = %q", source["grammar"])
	}
}

func TestResolveVariantUnknown(t *testing.T) {
	t.Parallel()

	if _, err := resolveVariant(Config{}, "nope", "", ""); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestResolveVariantNoModel(t *testing.T) {
	t.Parallel()

	// Built-ins carry no model path, so without a flag or config entry
	// resolution must fail.
	if _, err := resolveVariant(Config{}, "correct", "", ""); err == nil {
		t.Fatal("expected error when no model path is available")
	}
}

func TestResolveVariantConfigOnly(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Variants: map[string]Variant{
			"custom": {Model: "/m", Prefix: "x: "},
		},
	}
	v, err := resolveVariant(cfg, "custom", "", "")
	if err != nil {
		t.Fatalf("resolveVariant: %v", err)
	}
	if v.Model != "/m" || v.Prefix != "x: " {
		t.Errorf("got %+v", v)
	}
}
