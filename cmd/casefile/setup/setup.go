// Package setup builds what the casefile commands share from their flags and the environment.
package setup

import (
	"context"
	"log/slog"
	"os"

	"github.com/myrjola/casefile/internal/ai"
	"github.com/myrjola/casefile/internal/content"
	"github.com/myrjola/casefile/internal/envstruct"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/logging"
	"github.com/myrjola/casefile/internal/sqlite"
	"github.com/spf13/cobra"
)

const (
	flagDB      = "db"
	flagCase    = "case"
	flagVerbose = "verbose"
)

// AddPersistentFlags registers the flags every subcommand of root understands.
func AddPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().String(flagDB, "./casefile.sqlite", "path to the SQLite database with the saved games")
	root.PersistentFlags().String(flagCase, "", "YAML case file to play, the bundled case when empty")
	root.PersistentFlags().BoolP(flagVerbose, "v", false, "log debug messages to stderr")
}

// Logger logs to stderr so that it doesn't mix with the game text.
func Logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool(flagVerbose); verbose {
		level = slog.LevelDebug
	}
	return slog.New(logging.NewContextHandler(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: nil,
	})))
}

// LoadCase loads the case named by the --case flag.
func LoadCase(cmd *cobra.Command) (*content.Case, error) {
	path, err := cmd.Flags().GetString(flagCase)
	if err != nil {
		return nil, errors.Wrap(err, "read case flag")
	}
	if path == "" {
		return content.Sample(), nil
	}
	c, err := content.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "load case", slog.String("path", path))
	}
	return c, nil
}

// OpenDatabase opens the database named by the --db flag.
func OpenDatabase(ctx context.Context, cmd *cobra.Command, logger *slog.Logger) (*sqlite.Database, error) {
	url, err := cmd.Flags().GetString(flagDB)
	if err != nil {
		return nil, errors.Wrap(err, "read db flag")
	}
	dbs, err := sqlite.NewDatabase(ctx, url, logger)
	if err != nil {
		return nil, errors.Wrap(err, "open database", slog.String("url", url))
	}
	return dbs, nil
}

type aiConfig struct {
	APIKey  string `env:"OPENAI_API_KEY" envDefault:""`
	Model   string `env:"CASEFILE_OPENAI_MODEL" envDefault:""`
	BaseURL string `env:"CASEFILE_OPENAI_BASE_URL" envDefault:""`
}

// AIClient returns a client for the model configured in the environment. ok is false when OPENAI_API_KEY is unset.
func AIClient() (*ai.Client, bool, error) {
	var cfg aiConfig
	if err := envstruct.Populate(&cfg, os.LookupEnv); err != nil {
		return nil, false, errors.Wrap(err, "populate ai config")
	}
	if cfg.APIKey == "" {
		return nil, false, nil
	}
	return ai.NewClient(ai.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL}), true, nil
}
