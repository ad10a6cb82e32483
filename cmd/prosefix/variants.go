package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"
)

func variantsCmd() *cli.Command {
	return &cli.Command{
		Name:  "variants",
		Usage: "List the available correction variants",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runVariants(LoadConfig())
			return nil
		},
	}
}

// mergeVariants overlays the config file's variants on the built-ins
// and resolves model paths the same way resolveVariant does. The
// second map records where each variant came from.
func mergeVariants(cfg Config) (map[string]Variant, map[string]string) {
	merged := builtinVariants()
	source := make(map[string]string, len(merged))
	for name := range merged {
		source[name] = "built-in"
	}
	for name, v := range cfg.Variants {
		base, ok := merged[name]
		if !ok {
			merged[name] = v
			source[name] = "config"
			continue
		}
		if v.Model != "" {
			base.Model = v.Model
		}
		if v.Prefix != "" {
			base.Prefix = v.Prefix
		}
		if v.PassthroughBlank != nil {
			base.PassthroughBlank = v.PassthroughBlank
		}
		merged[name] = base
		source[name] = "built-in+config"
	}
	for name, v := range merged {
		v.Model = resolveModelPath(cfg, v.Model)
		merged[name] = v
	}
	return merged, source
}

func runVariants(cfg Config) {
	merged, source := mergeVariants(cfg)

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	def := defaultVariantName(cfg)
	for _, name := range names {
		v := merged[name]
		model := v.Model
		if model == "" {
			model = "(model not set)"
		}
		marker := " "
		if name == def {
			marker = "*"
		}
		fmt.Printf("%s %-12s prefix=%-22q model=%s [%s]\n",
			marker, name, v.Prefix, model, source[name])
	}
}

func defaultVariantName(cfg Config) string {
	if cfg.DefaultVariant != "" {
		return cfg.DefaultVariant
	}
	return "correct"
}
