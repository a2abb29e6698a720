package state

import (
	"fmt"
	"slices"
	"strings"

	"github.com/myrjola/casefile/internal/location"
)

type RestrictionKind string

const (
	RestrictionLocked        RestrictionKind = "locked"
	RestrictionChapter       RestrictionKind = "chapter"
	RestrictionTimeWindow    RestrictionKind = "time_window"
	RestrictionRequiredFlag  RestrictionKind = "required_flag"
	RestrictionForbiddenFlag RestrictionKind = "forbidden_flag"
)

// Restriction explains why a location can't be entered.
type Restriction struct {
	Kind     RestrictionKind `json:"kind"`
	Location string          `json:"location"`
	Reason   string          `json:"reason"`
}

// View is the part of the game state location restrictions depend on.
type View struct {
	Chapter  string
	Slot     TimeSlot
	Unlocked bool
	HasFlag  func(flag string) bool
}

// CheckLocation returns the first restriction preventing entry to loc, or nil when the player may enter.
//
// The check has no side effects so it can be used both to grey out options and to validate a move right before it is
// committed.
func CheckLocation(loc location.Location, v View) *Restriction {
	name := loc.Name
	if name == "" {
		name = loc.ID
	}
	restrict := func(kind RestrictionKind, format string, args ...any) *Restriction {
		return &Restriction{
			Kind:     kind,
			Location: loc.ID,
			Reason:   fmt.Sprintf("%s: %s", strings.ReplaceAll(string(kind), "_", " "), fmt.Sprintf(format, args...)),
		}
	}
	if !v.Unlocked {
		return restrict(RestrictionLocked, "%s is locked", name)
	}
	if len(loc.Chapters) > 0 && !slices.Contains(loc.Chapters, v.Chapter) {
		return restrict(RestrictionChapter, "%s is not reachable in chapter %s", name, v.Chapter)
	}
	if len(loc.OpenSlots) > 0 && !slices.Contains(loc.OpenSlots, v.Slot.String()) {
		return restrict(RestrictionTimeWindow, "%s is only open in the %s, it is %s",
			name, strings.Join(loc.OpenSlots, " or "), v.Slot)
	}
	for _, f := range loc.RequiredFlags {
		if v.HasFlag == nil || !v.HasFlag(f) {
			return restrict(RestrictionRequiredFlag, "%s requires %s", name, f)
		}
	}
	for _, f := range loc.ForbiddenFlags {
		if v.HasFlag != nil && v.HasFlag(f) {
			return restrict(RestrictionForbiddenFlag, "%s is closed since %s", name, f)
		}
	}
	return nil
}
