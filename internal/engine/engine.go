// Package engine assembles a playable game from a case: every component wired around a single event bus.
//
// The Engine owns no game rules of its own. It builds the components, hands player actions to the flow
// orchestrator and saves or restores all component state as one unit.
package engine

import (
	"log/slog"
	"time"

	"github.com/myrjola/casefile/internal/affinity"
	"github.com/myrjola/casefile/internal/clues"
	"github.com/myrjola/casefile/internal/content"
	"github.com/myrjola/casefile/internal/dialogue"
	"github.com/myrjola/casefile/internal/economy"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/event"
	"github.com/myrjola/casefile/internal/flow"
	"github.com/myrjola/casefile/internal/location"
	"github.com/myrjola/casefile/internal/state"
)

// Initializable components return to their new-game state on Reset.
type Initializable interface {
	Reset()
}

// Persistable components save to and restore from a plain data snapshot. Validate reports whether Restore would
// succeed without changing anything.
type Persistable[S any] interface {
	Snapshot() S
	Validate(s S) error
	Restore(s S) error
}

var (
	_ Persistable[state.Snapshot]    = (*state.Authority)(nil)
	_ Persistable[economy.Snapshot]  = (*economy.Economy)(nil)
	_ Persistable[[]string]          = (*location.Catalog)(nil)
	_ Persistable[map[string]int]    = (*affinity.Ledger)(nil)
	_ Persistable[clues.Snapshot]    = (*clues.Ledger)(nil)
	_ Persistable[dialogue.Snapshot] = (*dialogue.Engine)(nil)
	_ Persistable[flow.Snapshot]     = (*flow.Orchestrator)(nil)
)

// eventHandler is implemented by metrics that also count game events.
type eventHandler interface {
	Handle(e event.Event)
}

type Config struct {
	Exhaustion flow.ExhaustionPolicy
	// Now stamps deductions. Defaults to time.Now.
	Now func() time.Time
}

type Engine struct {
	Case      *content.Case
	Bus       *event.Bus
	State     *state.Authority
	Economy   *economy.Economy
	Locations *location.Catalog
	Affinity  *affinity.Ledger
	Clues     *clues.Ledger
	Dialogue  *dialogue.Engine
	Flow      *flow.Orchestrator

	resettable []Initializable
	logger     *slog.Logger
}

// New builds an engine for c. Metrics may be nil. Metrics that implement Handle(event.Event) also receive every
// published event.
func New(c *content.Case, cfg Config, logger *slog.Logger, metrics flow.Metrics) (*Engine, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	bus := event.NewBus()

	econ := economy.New(c.Economy, bus, logger)
	authority, err := state.New(c.StateConfig(), econ, bus, logger)
	if err != nil {
		return nil, errors.Wrap(err, "new state authority")
	}
	locations, err := location.NewCatalog(c.Locations, bus, logger)
	if err != nil {
		return nil, errors.Wrap(err, "new location catalog")
	}
	catalog, err := c.ClueCatalog()
	if err != nil {
		return nil, errors.Wrap(err, "new clue catalog")
	}
	graphs, err := c.DialogueCatalog()
	if err != nil {
		return nil, errors.Wrap(err, "new dialogue catalog")
	}
	ledger := clues.NewLedger(catalog, authority, cfg.Now, bus, logger)
	aff := affinity.NewLedger(authority, bus, logger)
	dlg := dialogue.NewEngine(graphs, authority, aff, c.Greeting, bus, logger)

	flowCfg := c.FlowConfig()
	flowCfg.Exhaustion = cfg.Exhaustion
	orchestrator := flow.New(flowCfg, flow.Components{
		State:     authority,
		Economy:   econ,
		Dialogue:  dlg,
		Clues:     ledger,
		Locations: locations,
		Affinity:  aff,
	}, bus, logger, metrics)

	e := &Engine{
		Case:      c,
		Bus:       bus,
		State:     authority,
		Economy:   econ,
		Locations: locations,
		Affinity:  aff,
		Clues:     ledger,
		Dialogue:  dlg,
		Flow:      orchestrator,
		logger:    logger.With("source", "Engine"),
	}
	e.resettable = []Initializable{authority, locations, aff, ledger, dlg, orchestrator}
	if h, ok := metrics.(eventHandler); ok {
		bus.Subscribe(h.Handle)
	}
	return e, nil
}

// NewGame returns every component to the title screen. The case content is kept.
func (e *Engine) NewGame() {
	for _, c := range e.resettable {
		c.Reset()
	}
	// The pool size may have changed with the chapters played.
	e.Economy.Restart()
	e.logger.Info("new game", slog.String("case", e.Case.Meta.ID))
}

// Subscribe registers h for every event the engine publishes and returns a function that removes it.
func (e *Engine) Subscribe(h event.Handler) func() {
	return e.Bus.Subscribe(h)
}
