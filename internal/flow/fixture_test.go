package flow_test

import (
	"io"
	"testing"

	"github.com/myrjola/casefile/internal/affinity"
	"github.com/myrjola/casefile/internal/clues"
	"github.com/myrjola/casefile/internal/dialogue"
	"github.com/myrjola/casefile/internal/economy"
	"github.com/myrjola/casefile/internal/event"
	"github.com/myrjola/casefile/internal/flow"
	"github.com/myrjola/casefile/internal/location"
	"github.com/myrjola/casefile/internal/state"
	"github.com/myrjola/casefile/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

type gameConfig struct {
	chapters []state.Chapter
	flow     flow.Config
}

type game struct {
	flow    *flow.Orchestrator
	c       flow.Components
	bus     *event.Bus
	rec     *event.Recorder
	metrics *fakeMetrics
}

type fakeMetrics struct {
	outcomes []string
}

func (m *fakeMetrics) RecordAction(action string, outcome string, _ int) {
	m.outcomes = append(m.outcomes, action+":"+outcome)
}

func newGame(t *testing.T, configure ...func(cfg *gameConfig)) *game {
	t.Helper()
	cfg := gameConfig{
		chapters: []state.Chapter{
			{
				ID:            "1",
				Title:         "The Kitchen",
				RequiredClues: []string{"bloody_knife", "kitchen_access_log"},
				MinActions:    2,
				ActionPoints:  10,
			},
			{ID: "2", Title: "The Cellar", ActionPoints: 8},
		},
		flow: flow.DefaultConfig(),
	}
	cfg.flow.Culprit = "chef"
	cfg.flow.StartLocation = "street"
	for _, c := range configure {
		c(&cfg)
	}

	logger := testhelpers.NewLogger(io.Discard)
	bus := event.NewBus()
	rec := &event.Recorder{}
	bus.Subscribe(rec.Record)

	econ := economy.New(economy.Config{Max: 10, Low: 3, Critical: 1}, bus, logger)
	authority, err := state.New(state.Config{Chapters: cfg.chapters}, econ, bus, logger)
	require.NoError(t, err)
	locations, err := location.NewCatalog([]location.Location{
		{ID: "street", Name: "Rue Morgue", Unlocked: true, Free: true},
		{
			ID:       "kitchen",
			Name:     "Kitchen",
			Unlocked: true,
			MoveCost: 1,
			NPCs:     []string{"chef"},
			Clues:    []string{"bloody_knife", "kitchen_access_log"},
		},
		{ID: "cellar", Name: "Cellar", UnlockFlag: "deduction_suspect_chef", MoveCost: 2},
		{ID: "opera", Name: "Opera", Unlocked: true, MoveCost: 1, OpenSlots: []string{"evening", "night"}},
	}, bus, logger)
	require.NoError(t, err)
	catalog, err := clues.NewCatalog(
		[]clues.Clue{
			{ID: "bloody_knife", Name: "Bloody knife", Importance: clues.Critical, Chapter: "1", Location: "kitchen", Observable: true},
			{ID: "kitchen_access_log", Importance: clues.Critical, Chapter: "1", Location: "kitchen"},
			{ID: "torn_letter", Importance: clues.Important, Chapter: "2", Location: "cellar"},
			{ID: "footprint", Chapter: "1"},
		},
		[]clues.Character{
			{ID: "chef", Name: "The Chef", Role: clues.Suspect},
			{ID: "maid", Name: "The Maid", Role: clues.Witness},
			{ID: "victim", Role: clues.Victim},
		},
		[]clues.Rule{{
			ID:    "chef_had_access",
			Clues: []string{"bloody_knife", "kitchen_access_log"},
			Text:  "The chef had access to the knife.",
			Flag:  "deduction_suspect_chef",
			// The reversed pair must not override what the chef's conversation revealed.
			Reveals: []clues.Relation{{A: "maid", B: "chef", Label: "accomplices"}},
		}},
	)
	require.NoError(t, err)
	ledger := clues.NewLedger(catalog, authority, nil, bus, logger)
	aff := affinity.NewLedger(authority, bus, logger)
	graphs, err := dialogue.NewCatalog(map[string]dialogue.Graph{
		"chef": {
			"start": {
				Lines: []dialogue.Line{{Speaker: "Chef", Text: "Bonjour."}},
				Choices: []dialogue.Choice{
					{
						Text:          "Lovely knives.",
						AffinityDelta: 20,
						Reveals:       []clues.Relation{{A: "chef", B: "maid", Label: "siblings"}},
					},
					{Text: "Confess!", AffinityDelta: -10},
				},
			},
			"revisit": {Lines: []dialogue.Line{{Speaker: "Chef", Text: "Again?"}}},
		},
		"maid": {
			"start": {Lines: []dialogue.Line{{Speaker: "Maid", Text: "Yes?"}}},
		},
	})
	require.NoError(t, err)
	dlg := dialogue.NewEngine(graphs, authority, aff, nil, bus, logger)

	components := flow.Components{
		State:     authority,
		Economy:   econ,
		Dialogue:  dlg,
		Clues:     ledger,
		Locations: locations,
		Affinity:  aff,
	}
	metrics := &fakeMetrics{}
	return &game{
		flow:    flow.New(cfg.flow, components, bus, logger, metrics),
		c:       components,
		bus:     bus,
		rec:     rec,
		metrics: metrics,
	}
}

// started returns a game past the title screen with the recorded events cleared.
func started(t *testing.T, configure ...func(cfg *gameConfig)) *game {
	t.Helper()
	g := newGame(t, configure...)
	requireOK(t, g.flow.StartGame())
	g.rec.Drain()
	return g
}

func requireOK(t *testing.T, res flow.Result) {
	t.Helper()
	require.Nil(t, res.Refusal, "unexpected refusal: %+v", res.Refusal)
}

func requireRefused(t *testing.T, res flow.Result, code flow.Code) {
	t.Helper()
	require.NotNil(t, res.Refusal, "expected %s refusal", code)
	require.Equal(t, code, res.Refusal.Code, res.Refusal.Reason)
	require.Zero(t, res.Cost)
}
