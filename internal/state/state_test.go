package state_test

import (
	"io"
	"testing"

	"github.com/myrjola/casefile/internal/economy"
	"github.com/myrjola/casefile/internal/event"
	"github.com/myrjola/casefile/internal/location"
	"github.com/myrjola/casefile/internal/state"
	"github.com/myrjola/casefile/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

var chapters = []state.Chapter{
	{ID: "1", Title: "The Scream", ActionPoints: 10},
	{ID: "2", Title: "The Newspaper"},
	{ID: "3", Title: "The Sailor", ActionPoints: 6},
}

type fixture struct {
	authority *state.Authority
	economy   *economy.Economy
	rec       *event.Recorder
}

func newFixture(t *testing.T, cfg state.Config) fixture {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)
	bus := event.NewBus()
	rec := &event.Recorder{}
	bus.Subscribe(rec.Record)
	econ := economy.New(economy.Config{Max: 10, Low: 3, Critical: 1}, bus, logger)
	if cfg.Chapters == nil {
		cfg.Chapters = chapters
	}
	a, err := state.New(cfg, econ, bus, logger)
	require.NoError(t, err)
	return fixture{authority: a, economy: econ, rec: rec}
}

func TestNew_RequiresChapters(t *testing.T) {
	_, err := state.New(state.Config{}, nil, event.NewBus(), testhelpers.NewLogger(io.Discard))
	require.ErrorIs(t, err, state.ErrNoChapters)
}

func TestAuthority_SetPhase(t *testing.T) {
	f := newFixture(t, state.Config{})
	require.Equal(t, state.PhaseTitle, f.authority.Phase())

	f.authority.SetPhase(state.PhaseExploration)
	f.authority.SetPhase(state.PhaseExploration)
	require.Equal(t, []event.PhaseChanged{{From: "title", To: "exploration"}}, event.Of[event.PhaseChanged](f.rec))
}

func TestAuthority_AdvanceChapter(t *testing.T) {
	f := newFixture(t, state.Config{ResetTimeSlotOnAdvance: true})
	require.NoError(t, f.economy.Consume(4))
	require.NoError(t, f.authority.AdvanceTimeSlot())

	require.NoError(t, f.authority.AdvanceChapter())
	require.Equal(t, "2", f.authority.ChapterID())
	require.Equal(t, 10, f.economy.Current(), "zero action points keeps the previous maximum")
	require.Equal(t, state.Morning, f.authority.TimeSlot())

	require.NoError(t, f.authority.AdvanceChapter())
	require.Equal(t, 6, f.economy.Max())
	require.True(t, f.authority.IsTerminal())

	err := f.authority.AdvanceChapter()
	require.ErrorIs(t, err, state.ErrTerminalChapter)
	require.Equal(t, "3", f.authority.ChapterID())
	require.Len(t, event.Of[event.ChapterAdvanced](f.rec), 2)
}

func TestAuthority_AdvanceChapterKeepsTimeSlot(t *testing.T) {
	f := newFixture(t, state.Config{})
	require.NoError(t, f.authority.AdvanceTimeSlot())
	require.NoError(t, f.authority.AdvanceChapter())
	require.Equal(t, state.Afternoon, f.authority.TimeSlot())
}

func TestAuthority_Flags(t *testing.T) {
	f := newFixture(t, state.Config{})
	require.True(t, f.authority.AddFlag("met_butler"))
	require.False(t, f.authority.AddFlag("met_butler"))
	require.Len(t, event.Of[event.FlagAdded](f.rec), 1)

	require.True(t, f.authority.HasAllFlags([]string{"met_butler"}))
	require.False(t, f.authority.HasAnyFlag([]string{"other"}))

	require.True(t, f.authority.RemoveFlag("met_butler"))
	require.False(t, f.authority.RemoveFlag("met_butler"))
	require.Empty(t, f.authority.Flags())
}

func TestAuthority_MoveToLocation(t *testing.T) {
	f := newFixture(t, state.Config{})
	f.authority.SetLocationWithoutCost("street")

	require.NoError(t, f.authority.MoveToLocation(location.Location{ID: "apartment", MoveCost: 4}, f.economy))
	require.Equal(t, "apartment", f.authority.Location())
	require.Equal(t, 6, f.economy.Current())

	err := f.authority.MoveToLocation(location.Location{ID: "cellar", MoveCost: 7}, f.economy)
	require.ErrorIs(t, err, economy.ErrInsufficientPoints)
	require.Equal(t, "apartment", f.authority.Location(), "a refused payment must not move the player")
	require.Equal(t, 6, f.economy.Current())
	require.False(t, f.authority.HasVisited("cellar"))

	require.NoError(t, f.authority.MoveToLocation(location.Location{ID: "street", Free: true}, f.economy))
	require.Equal(t, 6, f.economy.Current())
	require.Equal(t, []string{"apartment", "street"}, f.authority.Visited())
	require.Equal(t, []event.LocationChanged{
		{From: "", To: "street", Cost: 0},
		{From: "street", To: "apartment", Cost: 4},
		{From: "apartment", To: "street", Cost: 0},
	}, event.Of[event.LocationChanged](f.rec))
}

func TestAuthority_AdvanceTimeSlot(t *testing.T) {
	f := newFixture(t, state.Config{})
	for range 3 {
		require.NoError(t, f.authority.AdvanceTimeSlot())
	}
	require.Equal(t, state.Night, f.authority.TimeSlot())
	require.ErrorIs(t, f.authority.AdvanceTimeSlot(), state.ErrLastTimeSlot)
}

func TestAuthority_SnapshotRestore(t *testing.T) {
	f := newFixture(t, state.Config{})
	f.authority.SetPhase(state.PhaseExploration)
	f.authority.SetLocationWithoutCost("street")
	f.authority.AddFlag("met_dupin")
	require.NoError(t, f.authority.AdvanceChapter())
	require.NoError(t, f.authority.AdvanceTimeSlot())

	snapshot := f.authority.Snapshot()
	require.Equal(t, state.Snapshot{
		Phase:    "exploration",
		Chapter:  "2",
		TimeSlot: "afternoon",
		Location: "street",
		Visited:  []string{"street"},
		Flags:    []string{"met_dupin"},
	}, snapshot)

	other := newFixture(t, state.Config{})
	require.NoError(t, other.authority.Restore(snapshot))
	require.Equal(t, snapshot, other.authority.Snapshot())

	tests := []struct {
		name   string
		mutate func(s *state.Snapshot)
	}{
		{"unknown phase", func(s *state.Snapshot) { s.Phase = "sleeping" }},
		{"unknown chapter", func(s *state.Snapshot) { s.Chapter = "99" }},
		{"unknown time slot", func(s *state.Snapshot) { s.TimeSlot = "dusk" }},
		{"empty flag", func(s *state.Snapshot) { s.Flags = []string{""} }},
		{"empty visited", func(s *state.Snapshot) { s.Visited = []string{""} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh := newFixture(t, state.Config{})
			corrupt := snapshot
			tt.mutate(&corrupt)
			require.ErrorIs(t, fresh.authority.Restore(corrupt), state.ErrCorruptSnapshot)
			require.Equal(t, "1", fresh.authority.ChapterID(), "failed restore must not mutate")
		})
	}
}

func TestAuthority_Reset(t *testing.T) {
	f := newFixture(t, state.Config{})
	f.authority.SetPhase(state.PhaseExploration)
	f.authority.AddFlag("x")
	f.authority.SetLocationWithoutCost("street")
	require.NoError(t, f.authority.AdvanceChapter())

	f.authority.Reset()
	require.Equal(t, state.PhaseTitle, f.authority.Phase())
	require.Equal(t, "1", f.authority.ChapterID())
	require.Empty(t, f.authority.Flags())
	require.Empty(t, f.authority.Location())
	require.Empty(t, f.authority.Visited())
}
