package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/myrjola/casefile/internal/ai"
	"github.com/myrjola/casefile/internal/broker"
	"github.com/myrjola/casefile/internal/chat"
	"github.com/myrjola/casefile/internal/content"
	"github.com/myrjola/casefile/internal/engine"
	"github.com/myrjola/casefile/internal/envstruct"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/flow"
	"github.com/myrjola/casefile/internal/logging"
	"github.com/myrjola/casefile/internal/observe"
	"github.com/myrjola/casefile/internal/pprofserver"
	"github.com/myrjola/casefile/internal/repositories"
	"github.com/myrjola/casefile/internal/sqlite"
	"golang.org/x/sync/errgroup"
)

// slot names the conversations of the game served by this process.
const slot = "web"

// streamWait is how long a reply waits for the player to start following its stream.
const streamWait = 2 * time.Second

type config struct {
	// Addr is the address to listen on. Use port 0 for a random port.
	Addr      string `env:"CASEFILE_ADDR" envDefault:"localhost:4000"`
	SqliteURL string `env:"CASEFILE_SQLITE_URL" envDefault:"./casefile.sqlite"`
	// CasePath is the YAML case file to play. Empty plays the bundled sample case.
	CasePath         string `env:"CASEFILE_CASE_PATH" envDefault:""`
	ExhaustionPolicy string `env:"CASEFILE_EXHAUSTION_POLICY" envDefault:"halt"`
	// PprofPort enables the pprof server on the loopback interface, e.g. ":6060".
	PprofPort     string `env:"CASEFILE_PPROF_PORT" envDefault:""`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIModel   string `env:"CASEFILE_OPENAI_MODEL" envDefault:""`
	OpenAIBaseURL string `env:"CASEFILE_OPENAI_BASE_URL" envDefault:""`
}

type application struct {
	logger *slog.Logger
	db     *sqlite.Database
	// mu serialises access to the engine so that it sees one action at a time.
	mu          sync.Mutex
	engine      *engine.Engine
	people      *content.Resolver
	places      *content.Resolver
	clues       *content.Resolver
	saves       *repositories.SaveRepository
	transcripts *repositories.TranscriptRepository
	// bridge is nil when no conversation model is configured.
	bridge         *chat.Bridge
	streams        *chat.Streams
	replies        *replies
	metrics        *observe.Metrics
	metricsHandler http.Handler
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		err error
		cfg config
	)
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}
	policy, err := flow.ParseExhaustionPolicy(cfg.ExhaustionPolicy)
	if err != nil {
		return errors.Wrap(err, "parse exhaustion policy")
	}

	c := content.Sample()
	if cfg.CasePath != "" {
		if c, err = content.Load(cfg.CasePath); err != nil {
			return errors.Wrap(err, "load case", slog.String("path", cfg.CasePath))
		}
	}

	provider, err := observe.InitProvider(observe.ProviderConfig{}) //nolint:exhaustruct // defaults
	if err != nil {
		return errors.Wrap(err, "init metrics provider")
	}
	metrics, err := observe.NewMetrics(provider.MeterProvider)
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}

	e, err := engine.New(c, engine.Config{Exhaustion: policy}, logger, metrics) //nolint:exhaustruct // real clock
	if err != nil {
		return errors.Wrap(err, "create engine")
	}

	dbs, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer func() {
		if closeErr := dbs.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close database", errors.SlogError(closeErr))
		}
	}()

	streams := broker.NewChannelBroker[string, string]()
	transcripts := repositories.NewTranscriptRepository(dbs, logger)
	app := &application{
		logger:         logger,
		db:             dbs,
		engine:         e,
		people:         c.CharacterResolver(),
		places:         c.LocationResolver(),
		clues:          c.ClueResolver(),
		saves:          repositories.NewSaveRepository(dbs, logger),
		transcripts:    transcripts,
		streams:        streams,
		replies:        newReplies(),
		metrics:        metrics,
		metricsHandler: provider.Handler,
	}
	if cfg.OpenAIAPIKey != "" {
		client := ai.NewClient(ai.Config{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL})
		app.bridge = chat.NewBridge(client, transcripts, streams, logger).WithConsumerTimeout(streamWait)
	} else {
		logger.LogAttrs(ctx, slog.LevelInfo, "OPENAI_API_KEY not set, free-form questions get a fallback reply")
	}

	if cfg.PprofPort != "" {
		// Only on localhost so that it's not open to the world.
		pprofserver.Launch(ctx, cfg.PprofPort, logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		streams.Start()
		return nil
	})
	g.Go(func() error {
		dbs.StartDatabaseOptimizer(gctx)
		return nil
	})
	g.Go(func() error {
		defer streams.Stop()
		return app.configureAndStartServer(gctx, cfg.Addr)
	})
	err = g.Wait()
	app.replies.wait()
	if shutdownErr := provider.Shutdown(context.Background()); shutdownErr != nil {
		logger.LogAttrs(ctx, slog.LevelError, "shutdown metrics", errors.SlogError(shutdownErr))
	}
	return err //nolint:wrapcheck // already wrapped by the server
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	})))

	// A missing .env file is fine, the environment may be configured otherwise.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "load .env", errors.SlogError(err))
		os.Exit(1)
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
