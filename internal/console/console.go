// Package console plays a case in a terminal. It reads one command per line, turns typed names into ids with the
// case resolvers, drives the orchestrator and prints the events the engine publishes.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/myrjola/casefile/internal/chat"
	"github.com/myrjola/casefile/internal/content"
	"github.com/myrjola/casefile/internal/engine"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/repositories"
	"github.com/myrjola/casefile/internal/state"
)

// DefaultSlot holds the conversations of the game in progress.
const DefaultSlot = "console"

var ErrNoModel = errors.NewSentinel("no conversation model configured")

// Options are the optional collaborators of a Console. Without a Bridge free-form questions get the fallback
// reply, without Saves the save and load commands are unavailable.
type Options struct {
	Bridge      *chat.Bridge
	Saves       *repositories.SaveRepository
	Transcripts *repositories.TranscriptRepository
	// Slot names the conversations of the game in progress. Defaults to DefaultSlot.
	Slot string
}

type Console struct {
	engine      *engine.Engine
	opts        Options
	out         io.Writer
	people      *content.Resolver
	places      *content.Resolver
	clues       *content.Resolver
	unsubscribe func()
	logger      *slog.Logger
}

type command struct {
	usage string
	help  string
	run   func(c *Console, ctx context.Context, arg string) bool
}

// commands is filled in init because the help command lists it.
var commands map[string]command

var order = []string{
	"look", "go", "talk", "next", "choose", "say", "bye", "investigate", "observe", "rest", "deduce", "accuse",
	"advance", "status", "clues", "new", "save", "load", "help", "quit",
}

func New(e *engine.Engine, out io.Writer, opts Options, logger *slog.Logger) *Console {
	if opts.Slot == "" {
		opts.Slot = DefaultSlot
	}
	c := &Console{
		engine: e,
		opts:   opts,
		out:    out,
		people: e.Case.CharacterResolver(),
		places: e.Case.LocationResolver(),
		clues:  e.Case.ClueResolver(),
		logger: logger.With("source", "Console"),
	}
	c.unsubscribe = e.Subscribe(c.render)
	return c
}

// Close stops printing engine events.
func (c *Console) Close() {
	c.unsubscribe()
}

// Run starts the game, when it has not started yet, and executes commands read from in until quit or the end of
// input.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	if c.engine.State.Phase() == state.PhaseTitle {
		c.printf("%s\n\n%s\n", strings.ToUpper(c.engine.Case.Meta.Title), strings.TrimSpace(c.engine.Case.Meta.Intro))
		c.report(c.engine.Flow.StartGame())
		c.look()
	}
	scanner := bufio.NewScanner(in)
	for {
		c.printf("> ")
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "console interrupted")
		}
		if quit := c.Execute(ctx, scanner.Text()); quit {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read command")
	}
	return nil
}

// Execute runs one command line and reports whether the player asked to quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	name = strings.ToLower(name)
	if name == "" {
		return false
	}
	cmd, ok := commands[name]
	if !ok {
		c.printf("Unknown command %q. Type help for the list of commands.\n", name)
		return false
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "command", slog.String("command", name), slog.String("arg", arg))
	return cmd.run(c, ctx, strings.TrimSpace(arg))
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
