package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:      "prosefix",
		Usage:     "Grammar correction with a local T5 model",
		ArgsUsage: "[text]",
		Flags:     append(correctFlags(), loggingFlags()...),
		// Bare `prosefix <text>` behaves like `prosefix correct <text>`.
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				_ = cli.ShowAppHelp(cmd)
				return fmt.Errorf("no text given; usage: prosefix [options] <text>")
			}
			return runCorrect(ctx, cmd)
		},
		Commands: []*cli.Command{
			correctCmd(),
			variantsCmd(),
			inspectCmd(),
			versionCmd(),
		},
	}
}

func main() {
	if err := newRootCmd().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
