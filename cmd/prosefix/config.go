package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Variant is one named correction configuration: which model to load
// and how to build the prompt.
type Variant struct {
	Model            string `yaml:"model"`
	Prefix           string `yaml:"prefix"`
	PassthroughBlank *bool  `yaml:"passthrough_blank"`
}

// Config represents the prosefix configuration file
// (~/.config/prosefix/config.yaml). Pointer fields distinguish "not
// set" from zero values.
type Config struct {
	DefaultVariant string             `yaml:"default_variant"`
	ModelsDir      string             `yaml:"models_dir"`
	Variants       map[string]Variant `yaml:"variants"`

	MaxTokens   *int64   `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	TopK        *int64   `yaml:"top_k"`
	Seed        *int64   `yaml:"seed"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// builtinVariants mirrors the two original correction scripts: the
// "correct" variant checks for blank input, the "grammar" variant
// does not.
func builtinVariants() map[string]Variant {
	yes := true
	no := false
	return map[string]Variant{
		"correct": {Prefix: "correct grammar: ", PassthroughBlank: &yes},
		"grammar": {Prefix: "grammar: ", PassthroughBlank: &no},
	}
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "prosefix", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or cannot be parsed.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return Config{}
	}
	return cfg
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyConfig applies config file defaults to the flag variables when
// the corresponding CLI flag was not explicitly set.
func applyConfig(c *cli.Command, cfg Config) {
	if cfg.DefaultVariant != "" && !c.IsSet("variant") {
		variantName = cfg.DefaultVariant
	}
	if cfg.MaxTokens != nil && !c.IsSet("max-tokens") {
		maxTokens = *cfg.MaxTokens
	}
	if cfg.Temperature != nil && !c.IsSet("temp") && !c.IsSet("temperature") {
		temperature = *cfg.Temperature
	}
	if cfg.TopK != nil && !c.IsSet("topk") {
		topK = *cfg.TopK
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Seed
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// resolveVariant merges the built-in variant, the config file variant
// and the flag overrides, in increasing precedence.
func resolveVariant(cfg Config, name, flagModel, flagPrefix string) (Variant, error) {
	v, ok := builtinVariants()[name]
	fromConfig, inConfig := cfg.Variants[name]
	if !ok && !inConfig {
		return Variant{}, fmt.Errorf("unknown variant %q (known: %s)", name, knownVariantNames(cfg))
	}
	if inConfig {
		if fromConfig.Model != "" {
			v.Model = fromConfig.Model
		}
		if fromConfig.Prefix != "" {
			v.Prefix = fromConfig.Prefix
		}
		if fromConfig.PassthroughBlank != nil {
			v.PassthroughBlank = fromConfig.PassthroughBlank
		}
	}
	v.Model = resolveModelPath(cfg, v.Model)
	if flagModel != "" {
		v.Model = flagModel
	}
	if flagPrefix != "" {
		v.Prefix = flagPrefix
	}
	if v.Model == "" {
		return Variant{}, fmt.Errorf("variant %q has no model path; set --model or variants.%s.model in %s",
			name, name, configPath())
	}
	return v, nil
}

// resolveModelPath joins a relative variant model path under the
// configured models_dir.
func resolveModelPath(cfg Config, model string) string {
	if model != "" && !filepath.IsAbs(model) && cfg.ModelsDir != "" {
		return filepath.Join(cfg.ModelsDir, model)
	}
	return model
}

func knownVariantNames(cfg Config) string {
	seen := make(map[string]bool)
	var names []string
	for name := range builtinVariants() {
		seen[name] = true
		names = append(names, name)
	}
	for name := range cfg.Variants {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += name
	}
	return out
}
