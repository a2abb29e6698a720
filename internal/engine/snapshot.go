package engine

import (
	"log/slog"

	"github.com/myrjola/casefile/internal/clues"
	"github.com/myrjola/casefile/internal/dialogue"
	"github.com/myrjola/casefile/internal/economy"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/flow"
	"github.com/myrjola/casefile/internal/state"
)

// SnapshotVersion is bumped whenever the snapshot layout changes incompatibly.
const SnapshotVersion = 1

var (
	ErrIncompatibleSnapshot = errors.NewSentinel("incompatible snapshot")
	ErrInconsistentSnapshot = errors.NewSentinel("inconsistent snapshot")
)

// Snapshot is the complete saved state of a game. It contains plain data only and round-trips through JSON.
type Snapshot struct {
	Version  int               `json:"version"`
	Case     string            `json:"case"`
	State    state.Snapshot    `json:"state"`
	Economy  economy.Snapshot  `json:"economy"`
	Unlocked []string          `json:"unlocked"`
	Affinity map[string]int    `json:"affinity"`
	Clues    clues.Snapshot    `json:"clues"`
	Dialogue dialogue.Snapshot `json:"dialogue"`
	Flow     flow.Snapshot     `json:"flow"`
}

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Version:  SnapshotVersion,
		Case:     e.Case.Meta.ID,
		State:    e.State.Snapshot(),
		Economy:  e.Economy.Snapshot(),
		Unlocked: e.Locations.Snapshot(),
		Affinity: e.Affinity.Snapshot(),
		Clues:    e.Clues.Snapshot(),
		Dialogue: e.Dialogue.Snapshot(),
		Flow:     e.Flow.Snapshot(),
	}
}

// Validate checks s against this engine's case without changing anything.
func (e *Engine) Validate(s Snapshot) error {
	if s.Version != SnapshotVersion {
		return errors.Wrap(ErrIncompatibleSnapshot, "unsupported version",
			slog.Int("version", s.Version), slog.Int("supported", SnapshotVersion))
	}
	if s.Case != e.Case.Meta.ID {
		return errors.Wrap(ErrIncompatibleSnapshot, "snapshot belongs to another case",
			slog.String("snapshot", s.Case), slog.String("case", e.Case.Meta.ID))
	}

	checks := []struct {
		component string
		validate  func() error
	}{
		{"state", func() error { return e.State.Validate(s.State) }},
		{"economy", func() error { return e.Economy.Validate(s.Economy) }},
		{"locations", func() error { return e.Locations.Validate(s.Unlocked) }},
		{"affinity", func() error { return e.Affinity.Validate(s.Affinity) }},
		{"clues", func() error { return e.Clues.Validate(s.Clues) }},
		{"dialogue", func() error { return e.Dialogue.Validate(s.Dialogue) }},
		{"flow", func() error { return e.Flow.Validate(s.Flow) }},
	}
	for _, c := range checks {
		if err := c.validate(); err != nil {
			return errors.Wrap(err, "validate snapshot", slog.String("component", c.component))
		}
	}
	return e.crossCheck(s)
}

// crossCheck verifies the relations between component snapshots that no single component can see.
func (e *Engine) crossCheck(s Snapshot) error {
	inconsistent := func(msg string, attrs ...slog.Attr) error {
		return errors.Wrap(ErrInconsistentSnapshot, msg, attrs...)
	}
	phase, _ := state.ParsePhase(s.State.Phase)
	if (phase == state.PhaseDialogue) != (s.Dialogue.Session != nil) {
		return inconsistent("dialogue phase and conversation disagree", slog.String("phase", s.State.Phase))
	}
	if phase == state.PhaseCutscene && s.Flow.Cutscene == "" {
		return inconsistent("cutscene phase without a cutscene")
	}
	if (phase == state.PhaseEnding) != (s.Flow.Ending != nil) {
		return inconsistent("ending phase and ending disagree", slog.String("phase", s.State.Phase))
	}
	if phase != state.PhaseTitle {
		if _, ok := e.Locations.Get(s.State.Location); !ok {
			return inconsistent("unknown current location", slog.String("location", s.State.Location))
		}
	}
	for _, id := range s.State.Visited {
		if _, ok := e.Locations.Get(id); !ok {
			return inconsistent("unknown visited location", slog.String("location", id))
		}
	}
	if session := s.Dialogue.Session; session != nil {
		if _, ok := e.Clues.Catalog().Character(session.NPC); !ok {
			return inconsistent("conversation with unknown character", slog.String("npc", session.NPC))
		}
	}
	return nil
}

// Restore replaces the whole game with s. Every component snapshot is validated first, so either all components
// are restored or none is touched.
func (e *Engine) Restore(s Snapshot) error {
	if err := e.Validate(s); err != nil {
		e.logger.Warn("rejected snapshot", errors.SlogError(err))
		return err
	}
	restores := []struct {
		component string
		restore   func() error
	}{
		{"state", func() error { return e.State.Restore(s.State) }},
		{"economy", func() error { return e.Economy.Restore(s.Economy) }},
		{"locations", func() error { return e.Locations.Restore(s.Unlocked) }},
		{"affinity", func() error { return e.Affinity.Restore(s.Affinity) }},
		{"clues", func() error { return e.Clues.Restore(s.Clues) }},
		{"dialogue", func() error { return e.Dialogue.Restore(s.Dialogue) }},
		{"flow", func() error { return e.Flow.Restore(s.Flow) }},
	}
	for _, r := range restores {
		if err := r.restore(); err != nil {
			// Unreachable after a successful Validate.
			err = errors.Wrap(err, "restore validated snapshot", slog.String("component", r.component))
			e.logger.Error("partial restore", errors.SlogError(err))
			return err
		}
	}
	e.logger.Info("restored game", slog.String("chapter", s.State.Chapter), slog.String("phase", s.State.Phase))
	return nil
}
