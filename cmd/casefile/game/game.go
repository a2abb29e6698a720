package game

import (
	"fmt"
	"log/slog"

	"github.com/myrjola/casefile/cmd/casefile/setup"
	"github.com/myrjola/casefile/internal/chat"
	"github.com/myrjola/casefile/internal/console"
	"github.com/myrjola/casefile/internal/content"
	"github.com/myrjola/casefile/internal/engine"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/flow"
	"github.com/myrjola/casefile/internal/repositories"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "game",
	Title: "Playing cases",
}

func NewPlay() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "play",
		GroupID: Group.ID,
		Short:   "Play a case in the terminal",
		Long: `Plays a case in the terminal. Type help in the game for the list of commands.

Free-form questions are answered by the OpenAI model when OPENAI_API_KEY is set.`,
		Args: cobra.NoArgs,
		RunE: runPlay,
	}
	cmd.Flags().String("exhaustion", string(flow.ExhaustionHalt),
		"what happens when the action points run out: halt or advance")
	cmd.Flags().String("load", "", "continue the game saved in this slot")
	return cmd
}

func runPlay(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := setup.Logger(cmd)

	policyFlag, _ := cmd.Flags().GetString("exhaustion")
	policy, err := flow.ParseExhaustionPolicy(policyFlag)
	if err != nil {
		return errors.Wrap(err, "parse exhaustion flag")
	}
	c, err := setup.LoadCase(cmd)
	if err != nil {
		return err
	}
	e, err := engine.New(c, engine.Config{Exhaustion: policy}, logger, nil) //nolint:exhaustruct // real clock
	if err != nil {
		return errors.Wrap(err, "create engine")
	}

	dbs, err := setup.OpenDatabase(ctx, cmd, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dbs.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close database", errors.SlogError(closeErr))
		}
	}()
	saves := repositories.NewSaveRepository(dbs, logger)
	transcripts := repositories.NewTranscriptRepository(dbs, logger)

	opts := console.Options{Saves: saves, Transcripts: transcripts} //nolint:exhaustruct // bridge is optional
	client, ok, err := setup.AIClient()
	if err != nil {
		return err
	}
	if ok {
		opts.Bridge = chat.NewBridge(client, transcripts, nil, logger)
	}

	if slot, _ := cmd.Flags().GetString("load"); slot != "" {
		snapshot, loadErr := saves.Load(ctx, slot)
		if loadErr != nil {
			return errors.Wrap(loadErr, "load save", slog.String("slot", slot))
		}
		if err = e.Restore(snapshot); err != nil {
			return errors.Wrap(err, "restore save", slog.String("slot", slot))
		}
		if err = transcripts.Copy(ctx, slot, console.DefaultSlot); err != nil {
			return errors.Wrap(err, "restore conversations", slog.String("slot", slot))
		}
	}

	con := console.New(e, cmd.OutOrStdout(), opts, logger)
	defer con.Close()
	return con.Run(ctx, cmd.InOrStdin()) //nolint:wrapcheck // the console wraps its errors
}

func NewValidate() *cobra.Command {
	return &cobra.Command{
		Use:     "validate [case.yaml]",
		GroupID: Group.ID,
		Short:   "Check a case file",
		Long:    "Loads a case file and reports the problems that would keep it from being played.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := content.Load(args[0])
			if err != nil {
				return err //nolint:wrapcheck // already names the file
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chapters, %d places, %d people, %d clues\n",
				c.Meta.Title, len(c.Chapters), len(c.Locations), len(c.Characters), len(c.Clues))
			return err //nolint:wrapcheck // nothing to add
		},
	}
}
