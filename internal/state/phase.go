package state

import (
	"log/slog"

	"github.com/myrjola/casefile/internal/errors"
)

var (
	ErrUnknownPhase    = errors.NewSentinel("unknown phase")
	ErrUnknownTimeSlot = errors.NewSentinel("unknown time slot")
)

// Phase is the coarse game mode. Exactly one phase is active at a time.
type Phase int

const (
	PhaseTitle Phase = iota
	PhaseExploration
	PhaseInvestigation
	PhaseDialogue
	PhaseCutscene
	PhaseEnding
)

var phaseNames = []string{"title", "exploration", "investigation", "dialogue", "cutscene", "ending"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	return 0, errors.Wrap(ErrUnknownPhase, "parse phase", slog.String("phase", s))
}

// TimeSlot divides a chapter's day. Some locations are only open during certain slots.
type TimeSlot int

const (
	Morning TimeSlot = iota
	Afternoon
	Evening
	Night
)

var timeSlotNames = []string{"morning", "afternoon", "evening", "night"}

func (t TimeSlot) String() string {
	if t < 0 || int(t) >= len(timeSlotNames) {
		return "unknown"
	}
	return timeSlotNames[t]
}

func ParseTimeSlot(s string) (TimeSlot, error) {
	for i, name := range timeSlotNames {
		if name == s {
			return TimeSlot(i), nil
		}
	}
	return 0, errors.Wrap(ErrUnknownTimeSlot, "parse time slot", slog.String("slot", s))
}

// TimeSlotNames lists the valid time slot names in order.
func TimeSlotNames() []string {
	return append([]string(nil), timeSlotNames...)
}
