package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/myrjola/casefile/cmd/casefile/game"
	"github.com/myrjola/casefile/cmd/casefile/img"
	"github.com/myrjola/casefile/cmd/casefile/saves"
	"github.com/myrjola/casefile/cmd/casefile/setup"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "casefile",
		Long:          `Play, check and illustrate detective cases https://github.com/myrjola/casefile`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	setup.AddPersistentFlags(root)
	root.AddGroup(game.Group, saves.Group, img.Group)
	root.AddCommand(game.NewPlay(), game.NewValidate(), saves.NewSaves(), img.NewPortrait())
	return root
}

func main() {
	// A missing .env file is fine, the environment may be configured otherwise.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
