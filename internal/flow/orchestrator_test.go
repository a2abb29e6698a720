package flow_test

import (
	"testing"

	"github.com/myrjola/casefile/internal/clues"
	"github.com/myrjola/casefile/internal/event"
	"github.com/myrjola/casefile/internal/flow"
	"github.com/myrjola/casefile/internal/state"
	"github.com/stretchr/testify/require"
)

func TestStartGame(t *testing.T) {
	g := newGame(t)
	requireRefused(t, g.flow.RequestMove("kitchen"), flow.CodeWrongPhase)

	requireOK(t, g.flow.StartGame())
	require.Equal(t, state.PhaseExploration, g.c.State.Phase())
	require.Equal(t, "street", g.c.State.Location())
	require.Equal(t, 10, g.c.Economy.Current())

	requireRefused(t, g.flow.StartGame(), flow.CodeWrongPhase)
}

func TestStartGame_UnknownStartLocation(t *testing.T) {
	g := newGame(t, func(cfg *gameConfig) { cfg.flow.StartLocation = "moon" })
	requireRefused(t, g.flow.StartGame(), flow.CodeUnknownTarget)
	require.Equal(t, state.PhaseTitle, g.c.State.Phase())
}

func TestRequestMove(t *testing.T) {
	tests := []struct {
		name   string
		target string
		code   flow.Code
	}{
		{"unknown", "atlantis", flow.CodeUnknownTarget},
		{"already there", "street", flow.CodeAlreadyDone},
		{"locked", "cellar", flow.CodeRestricted},
		{"outside time window", "opera", flow.CodeRestricted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := started(t)
			res := g.flow.RequestMove(tt.target)
			requireRefused(t, res, tt.code)
			require.Equal(t, "street", g.c.State.Location())
			require.Equal(t, 10, g.c.Economy.Current())
			require.Len(t, event.Of[event.ActionRefused](g.rec), 1)
		})
	}

	t.Run("moves and pays", func(t *testing.T) {
		g := started(t)
		res := g.flow.RequestMove("kitchen")
		requireOK(t, res)
		require.Equal(t, 1, res.Cost)
		require.Equal(t, "kitchen", g.c.State.Location())
		require.Equal(t, 9, g.c.Economy.Current())
		require.Equal(t, 1, g.flow.ActionsInChapter())
	})
}

func TestRequestMove_TimeWindowNamesRestriction(t *testing.T) {
	g := started(t)
	res := g.flow.RequestMove("opera")
	requireRefused(t, res, flow.CodeRestricted)
	require.Contains(t, res.Refusal.Reason, "time window")
	require.Equal(t, 10, g.c.Economy.Current())

	requireOK(t, g.flow.RequestRest())
	requireOK(t, g.flow.RequestRest())
	requireOK(t, g.flow.RequestMove("opera"))
}

func TestRequestMove_RestrictionNamedBeforePoints(t *testing.T) {
	g := started(t, func(cfg *gameConfig) {
		cfg.chapters[0].ActionPoints = 1
	})
	requireOK(t, g.flow.RequestMove("kitchen"))
	require.Zero(t, g.c.Economy.Current())

	res := g.flow.RequestMove("opera")
	requireRefused(t, res, flow.CodeRestricted)
	require.Contains(t, res.Refusal.Reason, "time window")
}

func TestDestinations(t *testing.T) {
	g := started(t)
	destinations := g.flow.Destinations()
	require.Len(t, destinations, 3)
	byID := map[string]flow.Destination{}
	for _, d := range destinations {
		byID[d.Location.ID] = d
	}
	require.Nil(t, byID["kitchen"].Restriction)
	require.Equal(t, state.RestrictionLocked, byID["cellar"].Restriction.Kind)
	require.Equal(t, state.RestrictionTimeWindow, byID["opera"].Restriction.Kind)
	require.Equal(t, 2, byID["cellar"].Cost)
}

func TestRequestTalk(t *testing.T) {
	g := started(t)
	requireRefused(t, g.flow.RequestTalk("ghost"), flow.CodeUnknownTarget)

	requireOK(t, g.flow.RequestMove("kitchen"))
	requireRefused(t, g.flow.RequestTalk("maid"), flow.CodeNotHere)

	res := g.flow.RequestTalk("chef")
	requireOK(t, res)
	require.Equal(t, 1, res.Cost)
	require.Equal(t, state.PhaseDialogue, g.c.State.Phase())
	require.True(t, g.c.Clues.HasMet("chef"))
	require.Equal(t, 8, g.c.Economy.Current())

	requireRefused(t, g.flow.RequestMove("street"), flow.CodeWrongPhase)
	requireRefused(t, g.flow.RequestTalk("chef"), flow.CodeWrongPhase)

	requireOK(t, g.flow.EndDialogue())
	require.Equal(t, state.PhaseExploration, g.c.State.Phase())

	res = g.flow.RequestTalk("chef")
	requireOK(t, res)
	require.Zero(t, res.Cost, "revisiting in the same chapter is free")
	session, ok := g.c.Dialogue.Session()
	require.True(t, ok)
	require.Equal(t, "revisit", session.Node)
	require.Equal(t, 8, g.c.Economy.Current())
}

func TestRequestTalk_ExhaustedWithoutRevisit(t *testing.T) {
	g := started(t)
	requireOK(t, g.flow.RequestTalk("maid"))
	// The maid's start node has no choices or next node, so the conversation ends once the line is advanced.
	requireOK(t, g.flow.Advance())
	require.False(t, g.c.Dialogue.Active())

	res := g.flow.RequestTalk("maid")
	requireRefused(t, res, flow.CodeExhausted)
	require.Equal(t, 9, g.c.Economy.Current())
}

func TestConversation(t *testing.T) {
	g := started(t)
	requireRefused(t, g.flow.Advance(), flow.CodeWrongPhase)
	requireRefused(t, g.flow.SelectChoice(0), flow.CodeWrongPhase)
	requireOK(t, g.flow.EndDialogue())

	requireOK(t, g.flow.RequestMove("kitchen"))
	requireOK(t, g.flow.RequestTalk("chef"))
	requireRefused(t, g.flow.SelectChoice(0), flow.CodeInvalid)
	requireOK(t, g.flow.Advance())
	requireRefused(t, g.flow.Advance(), flow.CodeInvalid)
	requireRefused(t, g.flow.SelectChoice(5), flow.CodeInvalid)

	requireOK(t, g.flow.SelectChoice(0))
	require.Equal(t, 20, g.c.Affinity.Get("chef"))
	require.False(t, g.c.Dialogue.Active())
}

func TestSelectChoice_RevealsRelation(t *testing.T) {
	g := started(t)
	requireOK(t, g.flow.RequestMove("kitchen"))
	requireOK(t, g.flow.RequestTalk("chef"))
	requireOK(t, g.flow.Advance())
	requireOK(t, g.flow.SelectChoice(0))

	label, ok := g.c.Clues.Relation("maid", "chef")
	require.True(t, ok)
	require.Equal(t, "siblings", label)

	requireOK(t, g.flow.RequestDiscoverClue("bloody_knife"))
	requireOK(t, g.flow.RequestDiscoverClue("kitchen_access_log"))
	require.True(t, g.c.State.HasFlag("deduction_suspect_chef"))
	require.Equal(t, []clues.Relation{{A: "chef", B: "maid", Label: "siblings"}}, g.c.Clues.Relations())
	require.Equal(t, []event.RelationRevealed{{A: "chef", B: "maid", Label: "siblings"}},
		event.Of[event.RelationRevealed](g.rec))
}

func TestRelationRevealedByRule(t *testing.T) {
	g := started(t)
	requireOK(t, g.flow.RequestMove("kitchen"))
	requireOK(t, g.flow.RequestDiscoverClue("bloody_knife"))
	requireOK(t, g.flow.RequestDiscoverClue("kitchen_access_log"))

	label, ok := g.c.Clues.Relation("chef", "maid")
	require.True(t, ok)
	require.Equal(t, "accomplices", label)
}

func TestFreeform(t *testing.T) {
	g := started(t)
	requireRefused(t, g.flow.BeginFreeform("hello"), flow.CodeWrongPhase)
	requireOK(t, g.flow.RequestMove("kitchen"))
	requireOK(t, g.flow.RequestTalk("chef"))

	res := g.flow.BeginFreeform("Where were you at midnight?")
	requireOK(t, res)
	require.NotNil(t, res.Freeform)
	require.Equal(t, "chef", res.Freeform.NPC)

	requireRefused(t, g.flow.Advance(), flow.CodeInvalid)
	requireRefused(t, g.flow.BeginFreeform("again"), flow.CodeBusy)

	requireOK(t, g.flow.CompleteFreeform("In my kitchen, monsieur.", nil))
	requireRefused(t, g.flow.CompleteFreeform("twice", nil), flow.CodeInvalid)
	require.Equal(t, []event.FreeformReplied{{NPC: "chef", Text: "In my kitchen, monsieur."}},
		event.Of[event.FreeformReplied](g.rec))
}

func TestRequestDiscoverClue(t *testing.T) {
	g := started(t)
	requireRefused(t, g.flow.RequestDiscoverClue("unicorn"), flow.CodeUnknownTarget)
	requireRefused(t, g.flow.RequestDiscoverClue("bloody_knife"), flow.CodeNotHere)

	res := g.flow.RequestDiscoverClue("footprint")
	requireOK(t, res)
	require.Equal(t, []string{"footprint"}, res.Revealed)
	require.Equal(t, 2, res.Cost)
	requireRefused(t, g.flow.RequestDiscoverClue("footprint"), flow.CodeAlreadyDone)

	requireOK(t, g.flow.RequestMove("kitchen"))
	requireOK(t, g.flow.RequestDiscoverClue("bloody_knife"))
	require.True(t, g.c.State.HasFlag("clue_bloody_knife"))
}

func TestRequestDiscoverClue_LaterChapterIsRestricted(t *testing.T) {
	g := started(t, func(cfg *gameConfig) {
		cfg.chapters[0].RequiredClues = nil
	})
	g.c.Locations.Unlock("cellar")
	requireOK(t, g.flow.RequestMove("cellar"))
	requireRefused(t, g.flow.RequestDiscoverClue("torn_letter"), flow.CodeRestricted)
}

func TestChapterCompletion(t *testing.T) {
	g := started(t)
	requireOK(t, g.flow.RequestMove("kitchen"))
	requireRefused(t, g.flow.AdvanceChapter(), flow.CodeRestricted)

	res := g.flow.RequestDiscoverClue("bloody_knife")
	requireOK(t, res)
	require.Empty(t, res.ChapterCompleted)

	res = g.flow.RequestDiscoverClue("kitchen_access_log")
	requireOK(t, res)
	require.Equal(t, "1", res.ChapterCompleted)
	require.True(t, g.flow.ChapterComplete())
	require.True(t, g.c.State.HasFlag("chapter_1_complete"))
	require.Len(t, event.Of[event.ChapterCompleted](g.rec), 1)

	// The automatic deduction sets the flag that opens the cellar.
	require.True(t, g.c.State.HasFlag("deduction_suspect_chef"))
	require.True(t, g.c.Locations.IsUnlocked("cellar"))
	require.Equal(t, []event.LocationUnlocked{{Location: "cellar"}}, event.Of[event.LocationUnlocked](g.rec))

	requireOK(t, g.flow.RequestMove("street"))
	require.Len(t, event.Of[event.ChapterCompleted](g.rec), 1, "completion is announced once")

	requireOK(t, g.flow.AdvanceChapter())
	require.Equal(t, "2", g.c.State.ChapterID())
	require.Equal(t, 8, g.c.Economy.Current())
	require.Zero(t, g.flow.ActionsInChapter())
}

func TestChapterCompletion_RequiresMinimumActions(t *testing.T) {
	g := started(t, func(cfg *gameConfig) {
		cfg.chapters[0].MinActions = 4
	})
	requireOK(t, g.flow.RequestMove("kitchen"))
	requireOK(t, g.flow.RequestDiscoverClue("bloody_knife"))
	res := g.flow.RequestDiscoverClue("kitchen_access_log")
	requireOK(t, res)
	require.Empty(t, res.ChapterCompleted)

	res = g.flow.RequestMove("street")
	require.Zero(t, res.Cost)
	require.Empty(t, res.ChapterCompleted, "free actions don't count")

	res = g.flow.RequestMove("kitchen")
	require.Equal(t, "1", res.ChapterCompleted)
}

func TestRequestObserve(t *testing.T) {
	g := started(t)
	requireRefused(t, g.flow.RequestObserve(), flow.CodeAlreadyDone)

	requireOK(t, g.flow.RequestMove("kitchen"))
	res := g.flow.RequestObserve()
	requireOK(t, res)
	require.Equal(t, []string{"bloody_knife"}, res.Revealed)
	require.Equal(t, 1, res.Cost)
	require.True(t, g.c.State.HasFlag("observed_kitchen"))

	requireRefused(t, g.flow.RequestObserve(), flow.CodeAlreadyDone)
}

func TestRequestRest(t *testing.T) {
	g := started(t)
	requireOK(t, g.flow.RequestMove("kitchen"))
	requireOK(t, g.flow.RequestDiscoverClue("bloody_knife"))
	require.Equal(t, 7, g.c.Economy.Current())

	requireOK(t, g.flow.RequestRest())
	require.Equal(t, state.Afternoon, g.c.State.TimeSlot())
	require.Equal(t, 9, g.c.Economy.Current())

	requireOK(t, g.flow.RequestRest())
	requireOK(t, g.flow.RequestRest())
	require.Equal(t, state.Night, g.c.State.TimeSlot())
	requireRefused(t, g.flow.RequestRest(), flow.CodeRestricted)
}

func TestInsufficientPoints(t *testing.T) {
	g := started(t, func(cfg *gameConfig) {
		cfg.chapters[0].ActionPoints = 2
	})
	requireOK(t, g.flow.RequestMove("kitchen"))
	res := g.flow.RequestDiscoverClue("bloody_knife")
	requireRefused(t, res, flow.CodeInsufficientPoints)
	require.Equal(t, 1, g.c.Economy.Current())
	require.False(t, g.c.Clues.IsDiscovered("bloody_knife"))
}

func TestExhaustion_Halt(t *testing.T) {
	g := started(t, func(cfg *gameConfig) {
		cfg.chapters[0].ActionPoints = 3
	})
	requireOK(t, g.flow.RequestMove("kitchen"))
	requireOK(t, g.flow.RequestDiscoverClue("bloody_knife"))
	require.Zero(t, g.c.Economy.Current())
	require.Equal(t, []event.ResourceExhausted{{Chapter: "1", Policy: "halt"}}, event.Of[event.ResourceExhausted](g.rec))
	require.Equal(t, "1", g.c.State.ChapterID())

	requireRefused(t, g.flow.RequestDiscoverClue("kitchen_access_log"), flow.CodeExhausted)
	requireOK(t, g.flow.RequestRest())
	requireOK(t, g.flow.RequestDiscoverClue("kitchen_access_log"))
}

func TestExhaustion_HaltAllowsAdvancingIncompleteChapter(t *testing.T) {
	g := started(t, func(cfg *gameConfig) {
		cfg.chapters[0].ActionPoints = 3
	})
	requireOK(t, g.flow.RequestMove("kitchen"))
	requireOK(t, g.flow.RequestDiscoverClue("bloody_knife"))
	requireOK(t, g.flow.AdvanceChapter())
	require.Equal(t, "2", g.c.State.ChapterID())
}

func TestExhaustion_Advance(t *testing.T) {
	g := started(t, func(cfg *gameConfig) {
		cfg.chapters[0].ActionPoints = 3
		cfg.chapters[1].ActionPoints = 2
		cfg.flow.Exhaustion = flow.ExhaustionAdvance
	})
	requireOK(t, g.flow.RequestMove("kitchen"))
	res := g.flow.RequestDiscoverClue("bloody_knife")
	requireOK(t, res)
	require.Nil(t, res.Ending)
	require.Equal(t, "2", g.c.State.ChapterID())
	require.Equal(t, 2, g.c.Economy.Current())
	require.Equal(t, state.PhaseExploration, g.c.State.Phase())

	res = g.flow.RequestDiscoverClue("kitchen_access_log")
	requireOK(t, res)
	require.NotNil(t, res.Ending)
	require.Equal(t, flow.BadEnding, res.Ending.Tier)
	require.Empty(t, res.Ending.Accused)
	require.Equal(t, state.PhaseEnding, g.c.State.Phase())
	require.Len(t, event.Of[event.EndingReached](g.rec), 1)
}

func TestExhaustion_AdvanceWaitsForConversation(t *testing.T) {
	g := started(t, func(cfg *gameConfig) {
		cfg.chapters[0].ActionPoints = 2
		cfg.flow.Exhaustion = flow.ExhaustionAdvance
	})
	requireOK(t, g.flow.RequestMove("kitchen"))
	res := g.flow.RequestTalk("chef")
	requireOK(t, res)
	require.Equal(t, 1, res.Cost)
	require.Zero(t, g.c.Economy.Current())
	require.True(t, g.c.Dialogue.Active(), "the paid conversation keeps running")
	require.Equal(t, "1", g.c.State.ChapterID())
	require.Empty(t, event.Of[event.ResourceExhausted](g.rec))

	requireOK(t, g.flow.Advance())
	require.Len(t, event.Of[event.ChoicesPresented](g.rec), 1)
	require.Equal(t, "1", g.c.State.ChapterID())

	requireOK(t, g.flow.SelectChoice(0))
	require.False(t, g.c.Dialogue.Active())
	require.Equal(t, 20, g.c.Affinity.Get("chef"))
	require.Equal(t, "2", g.c.State.ChapterID())
	require.Equal(t, state.PhaseExploration, g.c.State.Phase())
	require.Equal(t, []event.ResourceExhausted{{Chapter: "1", Policy: "advance"}}, event.Of[event.ResourceExhausted](g.rec))
}

func TestExhaustion_AdvanceAfterLeavingConversation(t *testing.T) {
	g := started(t, func(cfg *gameConfig) {
		cfg.chapters[0].ActionPoints = 2
		cfg.flow.Exhaustion = flow.ExhaustionAdvance
	})
	requireOK(t, g.flow.RequestMove("kitchen"))
	requireOK(t, g.flow.RequestTalk("chef"))
	require.True(t, g.flow.Snapshot().ExhaustedPending)

	requireOK(t, g.flow.EndDialogue())
	require.Equal(t, "2", g.c.State.ChapterID())
	require.False(t, g.flow.Snapshot().ExhaustedPending)
}

func TestRequestAccuse(t *testing.T) {
	tests := []struct {
		name    string
		suspect string
		want    flow.Tier
	}{
		{"wrong culprit", "maid", flow.BadEnding},
		{"right culprit without evidence", "chef", flow.NormalEnding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := started(t)
			res := g.flow.RequestAccuse(tt.suspect)
			requireOK(t, res)
			require.Equal(t, tt.want, res.Ending.Tier)
			require.Equal(t, tt.suspect, g.flow.Accused())
			require.Equal(t, state.PhaseEnding, g.c.State.Phase())

			requireRefused(t, g.flow.RequestAccuse("chef"), flow.CodeGameOver)
			requireRefused(t, g.flow.RequestMove("kitchen"), flow.CodeGameOver)
			require.Len(t, event.Of[event.EndingReached](g.rec), 1)
		})
	}

	t.Run("unknown suspect", func(t *testing.T) {
		g := started(t)
		requireRefused(t, g.flow.RequestAccuse("moriarty"), flow.CodeUnknownTarget)
		require.Nil(t, g.flow.Ending())
	})
}

func TestRequestAccuse_GoodEnding(t *testing.T) {
	g := started(t)
	requireOK(t, g.flow.RequestMove("kitchen"))
	requireOK(t, g.flow.RequestDiscoverClue("bloody_knife"))
	requireOK(t, g.flow.RequestDiscoverClue("kitchen_access_log"))
	requireOK(t, g.flow.RequestDiscoverClue("footprint"))
	g.c.Affinity.Adjust("chef", 40)
	g.c.Affinity.Adjust("maid", 30)

	res := g.flow.RequestAccuse("chef")
	requireOK(t, res)
	require.Equal(t, flow.GoodEnding, res.Ending.Tier)
	require.InDelta(t, 0.75, res.Ending.ClueRatio, 0.0001)
	require.InDelta(t, 35.0, res.Ending.MeanAffinity, 0.0001)
}

func TestAdvanceChapter_PastTerminalEndsBadly(t *testing.T) {
	g := started(t, func(cfg *gameConfig) {
		cfg.chapters = cfg.chapters[1:]
	})
	res := g.flow.AdvanceChapter()
	requireOK(t, res)
	require.Equal(t, flow.BadEnding, res.Ending.Tier)
}

func TestRecordDeduction(t *testing.T) {
	g := started(t)
	requireRefused(t, g.flow.RecordDeduction(nil, "hunch", ""), flow.CodeInvalid)
	requireRefused(t, g.flow.RecordDeduction([]string{"ghost"}, "hunch", ""), flow.CodeUnknownTarget)

	requireOK(t, g.flow.RequestDiscoverClue("footprint"))
	res := g.flow.RecordDeduction([]string{"footprint", "bloody_knife"}, "The killer limped.", "limping_killer")
	requireRefused(t, res, flow.CodeInvalid)
	require.Equal(t, []string{"bloody_knife"}, res.Missing)
	require.False(t, g.c.State.HasFlag("limping_killer"))

	requireOK(t, g.flow.RecordDeduction([]string{"footprint"}, "Someone was here.", "intruder"))
	require.True(t, g.c.State.HasFlag("intruder"))
}

func TestInvestigationPhase(t *testing.T) {
	g := started(t)
	requireRefused(t, g.flow.LeaveInvestigation(), flow.CodeWrongPhase)
	requireOK(t, g.flow.EnterInvestigation())
	require.Equal(t, state.PhaseInvestigation, g.c.State.Phase())
	requireRefused(t, g.flow.EnterInvestigation(), flow.CodeWrongPhase)
	requireOK(t, g.flow.RequestDiscoverClue("footprint"))

	requireOK(t, g.flow.RequestMove("kitchen"))
	require.Equal(t, state.PhaseExploration, g.c.State.Phase(), "moving ends the investigation")

	requireOK(t, g.flow.EnterInvestigation())
	requireOK(t, g.flow.LeaveInvestigation())
	require.Equal(t, state.PhaseExploration, g.c.State.Phase())
}

func TestCutscene(t *testing.T) {
	g := started(t)
	requireRefused(t, g.flow.FinishCutscene(), flow.CodeWrongPhase)
	requireRefused(t, g.flow.PlayCutscene(""), flow.CodeInvalid)

	requireOK(t, g.flow.PlayCutscene("orangutan"))
	require.Equal(t, "orangutan", g.flow.Cutscene())
	requireRefused(t, g.flow.RequestMove("kitchen"), flow.CodeWrongPhase)
	requireRefused(t, g.flow.RecordDeduction([]string{"footprint"}, "x", ""), flow.CodeWrongPhase)

	requireOK(t, g.flow.FinishCutscene())
	require.Equal(t, state.PhaseExploration, g.c.State.Phase())
	require.Equal(t, []event.CutsceneFinished{{Cutscene: "orangutan"}}, event.Of[event.CutsceneFinished](g.rec))
}

func TestReentrantRequestIsRefused(t *testing.T) {
	g := started(t)
	var nested []flow.Result
	g.bus.Subscribe(func(e event.Event) {
		if _, ok := e.(event.PointsConsumed); ok {
			nested = append(nested, g.flow.RequestMove("street"))
		}
	})

	requireOK(t, g.flow.RequestMove("kitchen"))
	require.Len(t, nested, 1)
	requireRefused(t, nested[0], flow.CodeBusy)
	require.Equal(t, "kitchen", g.c.State.Location())
}

func TestBlockedPhasesOverride(t *testing.T) {
	g := started(t, func(cfg *gameConfig) {
		cfg.flow.BlockedPhases = map[flow.Action][]state.Phase{
			flow.ActionMove: {state.PhaseTitle, state.PhaseEnding},
		}
	})
	requireOK(t, g.flow.PlayCutscene("flashback"))
	requireOK(t, g.flow.RequestMove("kitchen"))
}

func TestMetricsRecorded(t *testing.T) {
	g := started(t)
	g.flow.RequestMove("atlantis")
	g.flow.RequestMove("kitchen")
	require.Equal(t, []string{"start:ok", "move:unknown_target", "move:ok"}, g.metrics.outcomes)
}

func TestSnapshotRestore(t *testing.T) {
	g := started(t)
	requireOK(t, g.flow.RequestMove("kitchen"))
	requireOK(t, g.flow.RequestAccuse("chef"))

	snapshot := g.flow.Snapshot()
	require.Equal(t, 1, snapshot.ActionsInChapter)
	require.Equal(t, "chef", snapshot.Accused)
	require.NotNil(t, snapshot.Ending)

	other := newGame(t)
	require.NoError(t, other.flow.Restore(snapshot))
	require.Equal(t, snapshot, other.flow.Snapshot())

	require.ErrorIs(t, other.flow.Restore(flow.Snapshot{ActionsInChapter: -1}), flow.ErrCorruptSnapshot)
	require.ErrorIs(t, other.flow.Restore(flow.Snapshot{Ending: &flow.Ending{Tier: "meh"}}), flow.ErrCorruptSnapshot)
	require.Equal(t, "chef", other.flow.Accused())
}
