package clues_test

import (
	"io"
	"testing"
	"time"

	"github.com/myrjola/casefile/internal/clues"
	"github.com/myrjola/casefile/internal/event"
	"github.com/myrjola/casefile/internal/flags"
	"github.com/myrjola/casefile/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

type world struct {
	flags   *flags.Store
	chapter string
}

func (w *world) AddFlag(f string) bool { return w.flags.Add(f) }
func (w *world) ChapterID() string     { return w.chapter }

var fixedNow = time.Date(1841, time.July, 7, 3, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) (*clues.Ledger, *world, *event.Recorder) {
	t.Helper()
	catalog, err := clues.NewCatalog(
		[]clues.Clue{
			{ID: "bloody_knife", Importance: clues.Critical, Chapter: "1"},
			{ID: "kitchen_access_log", Importance: clues.Critical, Chapter: "1"},
			{ID: "torn_letter", Importance: clues.Important, Chapter: "2"},
			{ID: "muddy_boots", Chapter: "2"},
		},
		[]clues.Character{
			{ID: "chef", Role: clues.Suspect},
			{ID: "maid", Role: clues.Witness},
		},
		[]clues.Rule{
			{
				ID:    "chef_had_access",
				Clues: []string{"bloody_knife", "kitchen_access_log"},
				Text:  "The chef had access to the knife.",
				Flag:  "deduction_suspect_chef",
			},
		},
	)
	require.NoError(t, err)
	bus := event.NewBus()
	rec := &event.Recorder{}
	bus.Subscribe(rec.Record)
	w := &world{flags: flags.NewStore(), chapter: "1"}
	now := func() time.Time { return fixedNow }
	return clues.NewLedger(catalog, w, now, bus, testhelpers.NewLogger(io.Discard)), w, rec
}

func TestLedger_Discover(t *testing.T) {
	l, w, rec := newLedger(t)

	require.True(t, l.CanDiscover("torn_letter"))
	require.True(t, l.Discover("torn_letter"))
	require.False(t, l.Discover("torn_letter"))
	require.False(t, l.Discover("unknown"))
	require.False(t, l.CanDiscover("torn_letter"))
	require.False(t, l.CanDiscover("unknown"))

	require.True(t, l.IsDiscovered("torn_letter"))
	require.True(t, w.flags.Has("clue_torn_letter"))
	require.True(t, w.flags.Has("investigated_torn_letter"))
	require.Equal(t, []event.ClueDiscovered{{Clue: "torn_letter", Importance: "important", Chapter: "2"}},
		event.Of[event.ClueDiscovered](rec))
}

func TestLedger_AutoDeductionRecordedOnce(t *testing.T) {
	orders := [][]string{
		{"bloody_knife", "kitchen_access_log"},
		{"kitchen_access_log", "bloody_knife"},
	}
	for _, order := range orders {
		t.Run(order[0]+" first", func(t *testing.T) {
			l, w, rec := newLedger(t)
			for _, id := range order {
				l.Discover(id)
			}
			for _, id := range order {
				l.Discover(id)
			}

			deductions := l.Deductions()
			require.Len(t, deductions, 1)
			require.Equal(t, "deduction_suspect_chef", deductions[0].Flag)
			require.Equal(t, "chef_had_access", deductions[0].Rule)
			require.Equal(t, fixedNow, deductions[0].Timestamp)
			require.Equal(t, "1", deductions[0].Chapter)
			require.True(t, w.flags.Has("deduction_suspect_chef"))
			require.Len(t, event.Of[event.DeductionMade](rec), 1)
		})
	}
}

func TestLedger_RecordDeduction(t *testing.T) {
	l, w, _ := newLedger(t)
	l.Discover("torn_letter")

	res := l.RecordDeduction([]string{"torn_letter", "muddy_boots", "bloody_knife"}, "A sailor wrote it.", "sailor")
	require.False(t, res.Recorded)
	require.Equal(t, []string{"muddy_boots", "bloody_knife"}, res.Missing)
	require.Empty(t, l.Deductions())
	require.False(t, w.flags.Has("sailor"))

	require.False(t, l.RecordDeduction(nil, "nothing", "").Recorded)

	l.Discover("muddy_boots")
	res = l.RecordDeduction([]string{"torn_letter", "muddy_boots"}, "A sailor wrote it.", "sailor")
	require.True(t, res.Recorded)
	require.Empty(t, res.Missing)
	require.True(t, w.flags.Has("sailor"))
	require.Equal(t, "sailor", res.Deduction.Flag)

	// Every deduction in the log rests on discovered clues.
	for _, d := range l.Deductions() {
		require.Empty(t, l.Missing(d.ClueIDs))
	}
}

func TestLedger_MeetCharacter(t *testing.T) {
	l, _, rec := newLedger(t)
	require.True(t, l.MeetCharacter("chef"))
	require.False(t, l.MeetCharacter("chef"))
	require.True(t, l.MeetCharacter("stranger"))
	require.True(t, l.HasMet("stranger"))
	require.Equal(t, []string{"chef", "stranger"}, l.Met())
	require.Equal(t, []event.CharacterMet{
		{Character: "chef", Known: true},
		{Character: "stranger", Known: false},
	}, event.Of[event.CharacterMet](rec))
}

func TestLedger_RelationFirstWriteWins(t *testing.T) {
	l, _, rec := newLedger(t)
	require.True(t, l.SetRelation("maid", "chef", "siblings"))
	require.False(t, l.SetRelation("chef", "maid", "rivals"))
	require.False(t, l.SetRelation("chef", "chef", "self"))

	ab, ok := l.Relation("chef", "maid")
	require.True(t, ok)
	ba, _ := l.Relation("maid", "chef")
	require.Equal(t, "siblings", ab)
	require.Equal(t, ab, ba)
	require.Equal(t, []clues.Relation{{A: "chef", B: "maid", Label: "siblings"}}, l.Relations())
	require.Len(t, event.Of[event.RelationRevealed](rec), 1)
}

func TestLedger_RuleRevealsRelations(t *testing.T) {
	catalog, err := clues.NewCatalog(
		[]clues.Clue{{ID: "ribbon"}, {ID: "lightning_rod"}},
		[]clues.Character{{ID: "sailor"}, {ID: "orangutan"}},
		[]clues.Rule{
			{
				ID:      "sailor_lead",
				Clues:   []string{"ribbon"},
				Reveals: []clues.Relation{{A: "sailor", B: "orangutan", Label: "owner"}},
			},
			{
				ID:      "climbed_rod",
				Clues:   []string{"ribbon", "lightning_rod"},
				Reveals: []clues.Relation{{A: "orangutan", B: "sailor", Label: "escaped from"}},
			},
		},
	)
	require.NoError(t, err)
	bus := event.NewBus()
	rec := &event.Recorder{}
	bus.Subscribe(rec.Record)
	l := clues.NewLedger(catalog, &world{flags: flags.NewStore()}, nil, bus, testhelpers.NewLogger(io.Discard))

	l.Discover("ribbon")
	label, ok := l.Relation("orangutan", "sailor")
	require.True(t, ok)
	require.Equal(t, "owner", label)

	l.Discover("lightning_rod")
	require.Len(t, l.Deductions(), 2)
	require.Equal(t, []clues.Relation{{A: "orangutan", B: "sailor", Label: "owner"}}, l.Relations())
	require.Equal(t, []event.RelationRevealed{{A: "orangutan", B: "sailor", Label: "owner"}},
		event.Of[event.RelationRevealed](rec))
}

func TestCatalog_CheckRelation(t *testing.T) {
	catalog, err := clues.NewCatalog(nil, []clues.Character{{ID: "chef"}, {ID: "maid"}}, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		rel  clues.Relation
		want string
	}{
		{"valid", clues.Relation{A: "maid", B: "chef", Label: "siblings"}, ""},
		{"same character", clues.Relation{A: "chef", B: "chef", Label: "self"}, "needs two different characters"},
		{"unknown character", clues.Relation{A: "chef", B: "ghost", Label: "haunts"}, `unknown character "ghost"`},
		{"no label", clues.Relation{A: "chef", B: "maid"}, "has no label"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := catalog.CheckRelation(tt.rel)
			if tt.want == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, clues.ErrInvalidRelation)
			require.Contains(t, err.Error(), tt.want)
		})
	}

	_, err = clues.NewCatalog(
		[]clues.Clue{{ID: "a"}},
		[]clues.Character{{ID: "chef"}},
		[]clues.Rule{{ID: "r", Clues: []string{"a"}, Reveals: []clues.Relation{{A: "chef", B: "ghost", Label: "x"}}}},
	)
	require.ErrorIs(t, err, clues.ErrInvalidCatalog)
	require.Contains(t, err.Error(), `rule r: unknown character "ghost"`)
}

func TestLedger_Queries(t *testing.T) {
	l, _, _ := newLedger(t)
	require.Zero(t, l.CompletionRatio())
	require.Equal(t, []string{"bloody_knife", "kitchen_access_log"}, l.MissingCritical())

	l.Discover("bloody_knife")
	l.Discover("muddy_boots")
	l.Discover("torn_letter")
	require.InDelta(t, 0.75, l.CompletionRatio(), 0.0001)
	require.Equal(t, []string{"kitchen_access_log"}, l.MissingCritical())
	require.Equal(t, map[string]int{"1": 1, "2": 2}, l.DiscoveredByChapter())
	require.Equal(t, 2, l.DiscoveredInChapter("2"))
	require.Equal(t, 3, l.DiscoveredCount())
	require.Equal(t, []string{"bloody_knife", "muddy_boots", "torn_letter"}, l.Discovered())
}

func TestLedger_SnapshotRestore(t *testing.T) {
	l, _, _ := newLedger(t)
	l.Discover("bloody_knife")
	l.Discover("kitchen_access_log")
	l.MeetCharacter("chef")
	l.SetRelation("chef", "maid", "siblings")
	snapshot := l.Snapshot()
	require.Equal(t, []string{"chef_had_access"}, snapshot.FiredRules)

	other, _, _ := newLedger(t)
	require.NoError(t, other.Restore(snapshot))
	require.Equal(t, snapshot, other.Snapshot())

	// A restored ledger doesn't fire rules that already fired.
	other.Discover("torn_letter")
	require.Len(t, other.Deductions(), 1)

	tests := []struct {
		name   string
		mutate func(s *clues.Snapshot)
	}{
		{"unknown clue", func(s *clues.Snapshot) { s.Discovered = append(s.Discovered, "ghost") }},
		{"duplicate clue", func(s *clues.Snapshot) { s.Discovered = []string{"bloody_knife", "bloody_knife"} }},
		{"deduction without clue", func(s *clues.Snapshot) { s.Discovered = []string{"bloody_knife"} }},
		{"unknown rule", func(s *clues.Snapshot) { s.FiredRules = []string{"guesswork"} }},
		{"self relation", func(s *clues.Snapshot) { s.Relations = []clues.Relation{{A: "chef", B: "chef"}} }},
		{"repeated character", func(s *clues.Snapshot) { s.Met = []string{"chef", "chef"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh, _, _ := newLedger(t)
			corrupt := l.Snapshot()
			tt.mutate(&corrupt)
			require.ErrorIs(t, fresh.Restore(corrupt), clues.ErrCorruptSnapshot)
			require.Empty(t, fresh.Discovered())
		})
	}
}

func TestNewCatalog_Invalid(t *testing.T) {
	_, err := clues.NewCatalog(
		[]clues.Clue{{ID: "a"}, {ID: "a"}, {ID: "b", Importance: "huge"}},
		[]clues.Character{{ID: "x", Role: "villain"}},
		[]clues.Rule{{ID: "r", Clues: []string{"missing"}}, {ID: "r"}},
	)
	require.ErrorIs(t, err, clues.ErrInvalidCatalog)
	for _, msg := range []string{
		`clue id "a" is empty or duplicated`,
		`clue b has unknown importance "huge"`,
		`character x has unknown role "villain"`,
		`rule r references unknown clue missing`,
		`rule id "r" is empty or duplicated`,
		`rule r lists no clues`,
	} {
		require.Contains(t, err.Error(), msg)
	}

	catalog, err := clues.NewCatalog([]clues.Clue{{ID: "a"}}, []clues.Character{{ID: "x"}, {ID: "y", Role: clues.Suspect}}, nil)
	require.NoError(t, err)
	c, _ := catalog.Clue("a")
	require.Equal(t, clues.Minor, c.Importance)
	x, _ := catalog.Character("x")
	require.Equal(t, clues.Neutral, x.Role)
	require.Equal(t, []string{"y"}, catalog.Suspects())
}
