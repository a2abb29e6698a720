package flow

import (
	"slices"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/state"
)

var ErrUnknownPolicy = errors.NewSentinel("unknown exhaustion policy")

// ExhaustionPolicy decides what happens when the action points run out.
type ExhaustionPolicy string

const (
	// ExhaustionHalt stops costed actions until the player rests or advances the chapter.
	ExhaustionHalt ExhaustionPolicy = "halt"
	// ExhaustionAdvance forces the next chapter, which refills the points. At the terminal chapter the game ends.
	ExhaustionAdvance ExhaustionPolicy = "advance"
)

func ParseExhaustionPolicy(s string) (ExhaustionPolicy, error) {
	switch p := ExhaustionPolicy(s); p {
	case "":
		return ExhaustionHalt, nil
	case ExhaustionHalt, ExhaustionAdvance:
		return p, nil
	default:
		return "", errors.Wrap(ErrUnknownPolicy, string(p))
	}
}

// Costs are the action points spent per action kind. Moving costs what the destination configures.
type Costs struct {
	Talk        int `yaml:"talk"`
	Investigate int `yaml:"investigate"`
	Observe     int `yaml:"observe"`
	Rest        int `yaml:"rest"`
	Accuse      int `yaml:"accuse"`
}

func DefaultCosts() Costs {
	return Costs{Talk: 1, Investigate: 2, Observe: 1, Rest: 0, Accuse: 0}
}

type Config struct {
	Costs      Costs
	Exhaustion ExhaustionPolicy
	// RestRecovery is the number of points resting recovers.
	RestRecovery int
	Endings      EndingThresholds
	// Culprit is the character the player must accuse.
	Culprit       string
	StartLocation string
	// BlockedPhases overrides the phases in which an action is refused.
	BlockedPhases map[Action][]state.Phase
}

const DefaultRestRecovery = 2

func DefaultConfig() Config {
	return Config{
		Costs:        DefaultCosts(),
		Exhaustion:   ExhaustionHalt,
		RestRecovery: DefaultRestRecovery,
		Endings:      DefaultEndingThresholds(),
	}
}

var (
	worldBlocked = []state.Phase{state.PhaseTitle, state.PhaseDialogue, state.PhaseCutscene, state.PhaseEnding}
	// Deductions can be drawn mid-conversation.
	deduceBlocked = []state.Phase{state.PhaseTitle, state.PhaseCutscene, state.PhaseEnding}
)

var defaultBlocked = map[Action][]state.Phase{
	ActionMove:           worldBlocked,
	ActionTalk:           worldBlocked,
	ActionInvestigate:    worldBlocked,
	ActionObserve:        worldBlocked,
	ActionRest:           worldBlocked,
	ActionAccuse:         worldBlocked,
	ActionPlayCutscene:   worldBlocked,
	ActionAdvanceChapter: worldBlocked,
	ActionDeduce:         deduceBlocked,
}

func (c Config) blocked(action Action, p state.Phase) bool {
	if phases, ok := c.BlockedPhases[action]; ok {
		return slices.Contains(phases, p)
	}
	return slices.Contains(defaultBlocked[action], p)
}
