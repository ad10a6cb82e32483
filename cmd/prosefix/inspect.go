package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/prosefix/prosefix/internal/safetensors"
	"github.com/prosefix/prosefix/internal/t5"
	"github.com/prosefix/prosefix/internal/tokenizer"
)

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the configuration and tensors of a model directory",
		ArgsUsage: "<model-dir>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "tensors",
				Usage: "list every tensor with dtype and shape",
			},
		},
		Action: runInspect,
	}
}

func runInspect(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("no model directory given; usage: prosefix inspect <model-dir>")
	}

	cfg, err := t5.LoadConfig(dir)
	if err != nil {
		return err
	}

	fmt.Printf("Model: %s\n", dir)
	fmt.Printf("type=%s d_model=%d d_kv=%d d_ff=%d heads=%d\n",
		cfg.ModelType, cfg.DModel, cfg.DKV, cfg.DFF, cfg.NumHeads)
	fmt.Printf("encoder_layers=%d decoder_layers=%d vocab=%d\n",
		cfg.NumLayers, cfg.NumDecoderLayers, cfg.VocabSize)
	fmt.Printf("feed_forward=%s tied_embeddings=%v\n",
		cfg.FeedForwardProj, cfg.TieWordEmb)

	vocab, err := tokenizer.DiscoverVocab(dir, "")
	if err != nil {
		fmt.Printf("vocabulary: missing (%v)\n", err)
	} else {
		fmt.Printf("vocabulary: %s\n", filepath.Base(vocab))
	}

	f, err := safetensors.Open(filepath.Join(dir, "model.safetensors"))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	names := f.Names()
	var params int64
	for _, name := range names {
		info, _ := f.Tensor(name)
		n := int64(1)
		for _, d := range info.Shape {
			n *= int64(d)
		}
		params += n
	}
	fmt.Printf("tensors=%d parameters=%d\n", len(names), params)

	if cmd.Bool("tensors") {
		for _, name := range names {
			info, _ := f.Tensor(name)
			fmt.Printf("%-64s %-4s %v\n", name, info.DType, info.Shape)
		}
	}
	return nil
}
