package saves

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/myrjola/casefile/cmd/casefile/setup"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/repositories"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "saves",
	Title: "Saved games",
}

func NewSaves() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "saves",
		GroupID: Group.ID,
		Short:   "Manage saved games",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved games, most recent first",
			Args:  cobra.NoArgs,
			RunE:  withSaves(list),
		},
		&cobra.Command{
			Use:   "delete [slot]",
			Short: "Delete a saved game and its conversations",
			Args:  cobra.ExactArgs(1),
			RunE:  withSaves(remove),
		},
	)
	return cmd
}

// withSaves opens the database for the duration of run.
func withSaves(
	run func(cmd *cobra.Command, args []string, saves *repositories.SaveRepository) error,
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := setup.Logger(cmd)
		dbs, err := setup.OpenDatabase(ctx, cmd, logger)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := dbs.Close(); closeErr != nil {
				logger.LogAttrs(ctx, slog.LevelError, "close database", errors.SlogError(closeErr))
			}
		}()
		return run(cmd, args, repositories.NewSaveRepository(dbs, logger))
	}
}

func list(cmd *cobra.Command, _ []string, saves *repositories.SaveRepository) error {
	summaries, err := saves.List(cmd.Context())
	if err != nil {
		return err //nolint:wrapcheck // already wrapped
	}
	if len(summaries) == 0 {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "No saved games.")
		return err //nolint:wrapcheck // nothing to add
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SLOT\tCASE\tCHAPTER\tPHASE\tSAVED")
	for _, s := range summaries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Slot, s.Case, s.Chapter, s.Phase,
			s.Updated.Format("2006-01-02 15:04"))
	}
	return errors.Wrap(tw.Flush(), "write saves")
}

func remove(cmd *cobra.Command, args []string, saves *repositories.SaveRepository) error {
	if err := saves.Delete(cmd.Context(), args[0]); err != nil {
		return err //nolint:wrapcheck // already wrapped
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
	return err //nolint:wrapcheck // nothing to add
}
