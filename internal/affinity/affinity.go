// Package affinity tracks how much each character trusts the player.
package affinity

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/event"
	"github.com/myrjola/casefile/internal/flags"
)

const (
	Min = 0
	Max = 100
)

// Thresholds unlock narrative content. Reaching one is recorded as a flag so it only triggers once per session.
var Thresholds = []int{40, 60, 80}

var ErrCorruptSnapshot = errors.NewSentinel("corrupt affinity snapshot")

// FlagWriter is the part of the game state the ledger records threshold flags in.
type FlagWriter interface {
	AddFlag(flag string) bool
	HasFlag(flag string) bool
}

type Ledger struct {
	values map[string]int
	flags  FlagWriter
	bus    *event.Bus
	logger *slog.Logger
}

func NewLedger(flagWriter FlagWriter, bus *event.Bus, logger *slog.Logger) *Ledger {
	return &Ledger{
		values: make(map[string]int),
		flags:  flagWriter,
		bus:    bus,
		logger: logger.With("source", "Affinity"),
	}
}

// Get returns the affinity of npc, zero for characters the player has not influenced.
func (l *Ledger) Get(npc string) int {
	return l.values[npc]
}

// Adjust changes the affinity of npc by delta, clamped to [Min, Max], and returns the new value.
func (l *Ledger) Adjust(npc string, delta int) int {
	before := l.values[npc]
	after := min(max(before+delta, Min), Max)
	if after == before {
		return after
	}
	l.values[npc] = after
	l.bus.Publish(event.AffinityChanged{NPC: npc, Value: after, Delta: after - before})
	for _, threshold := range Thresholds {
		if before >= threshold || after < threshold {
			continue
		}
		if !l.flags.AddFlag(flags.Affinity(npc, threshold)) {
			continue
		}
		l.logger.Debug("affinity threshold reached", slog.String("npc", npc), slog.Int("threshold", threshold))
		l.bus.Publish(event.AffinityThresholdReached{NPC: npc, Threshold: threshold})
	}
	return after
}

// Mean averages the affinity over npcs. It returns 0 for an empty list.
func (l *Ledger) Mean(npcs []string) float64 {
	if len(npcs) == 0 {
		return 0
	}
	sum := 0
	for _, npc := range npcs {
		sum += l.values[npc]
	}
	return float64(sum) / float64(len(npcs))
}

// Known lists the characters with a non-default affinity.
func (l *Ledger) Known() []string {
	return slices.Sorted(maps.Keys(l.values))
}

func (l *Ledger) Reset() {
	clear(l.values)
}

func (l *Ledger) Snapshot() map[string]int {
	return maps.Clone(l.values)
}

func (l *Ledger) Validate(snapshot map[string]int) error {
	for npc, v := range snapshot {
		if npc == "" || v < Min || v > Max {
			return errors.Wrap(ErrCorruptSnapshot, "affinity out of range",
				slog.String("npc", npc), slog.Int("value", v))
		}
	}
	return nil
}

func (l *Ledger) Restore(snapshot map[string]int) error {
	if err := l.Validate(snapshot); err != nil {
		return err
	}
	l.values = make(map[string]int, len(snapshot))
	maps.Copy(l.values, snapshot)
	return nil
}
