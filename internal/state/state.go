// Package state is the single writer of where the game is: phase, chapter, time of day, current location and the
// flags established so far.
//
// Transitions are unconditional. Guards such as "you can't leave during a cutscene" belong to the flow package, which
// calls into the Authority only after it has decided an action is legal.
package state

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/event"
	"github.com/myrjola/casefile/internal/flags"
	"github.com/myrjola/casefile/internal/location"
)

var (
	ErrNoChapters      = errors.NewSentinel("at least one chapter is required")
	ErrTerminalChapter = errors.NewSentinel("already at the terminal chapter")
	ErrLastTimeSlot    = errors.NewSentinel("already at the last time slot")
	ErrCorruptSnapshot = errors.NewSentinel("corrupt state snapshot")
)

type Chapter struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	// RequiredClues must all be discovered for the chapter to complete.
	RequiredClues []string `yaml:"required_clues"`
	// MinActions is the number of costed actions that must be taken before the chapter can complete.
	MinActions int `yaml:"min_actions"`
	// ActionPoints is the pool size for the chapter. Zero keeps the previous maximum.
	ActionPoints int `yaml:"action_points"`
}

// Refiller resets the action resource at the start of a chapter.
type Refiller interface {
	Refill(maximum int)
}

// Spender pays for moves.
type Spender interface {
	Consume(n int) error
}

type Config struct {
	Chapters []Chapter
	// ResetTimeSlotOnAdvance returns the clock to the morning whenever a new chapter begins.
	ResetTimeSlotOnAdvance bool
}

type Authority struct {
	cfg      Config
	phase    Phase
	chapter  int
	slot     TimeSlot
	location string
	visited  map[string]struct{}
	flags    *flags.Store
	refiller Refiller
	bus      *event.Bus
	logger   *slog.Logger
}

func New(cfg Config, refiller Refiller, bus *event.Bus, logger *slog.Logger) (*Authority, error) {
	if len(cfg.Chapters) == 0 {
		return nil, ErrNoChapters
	}
	return &Authority{
		cfg:      cfg,
		visited:  make(map[string]struct{}),
		flags:    flags.NewStore(),
		refiller: refiller,
		bus:      bus,
		logger:   logger.With("source", "StateAuthority"),
	}, nil
}

func (a *Authority) Phase() Phase {
	return a.phase
}

// SetPhase transitions to p. Setting the current phase again does nothing.
func (a *Authority) SetPhase(p Phase) {
	if a.phase == p {
		return
	}
	from := a.phase
	a.phase = p
	a.logger.Debug("phase changed", slog.String("from", from.String()), slog.String("to", p.String()))
	a.bus.Publish(event.PhaseChanged{From: from.String(), To: p.String()})
}

func (a *Authority) Chapter() Chapter {
	return a.cfg.Chapters[a.chapter]
}

func (a *Authority) ChapterID() string {
	return a.cfg.Chapters[a.chapter].ID
}

func (a *Authority) ChapterIndex() int {
	return a.chapter
}

func (a *Authority) Chapters() []Chapter {
	return slices.Clone(a.cfg.Chapters)
}

// ChapterByID looks up a configured chapter.
func (a *Authority) ChapterByID(id string) (Chapter, int, bool) {
	for i, ch := range a.cfg.Chapters {
		if ch.ID == id {
			return ch, i, true
		}
	}
	return Chapter{}, -1, false
}

func (a *Authority) IsTerminal() bool {
	return a.chapter == len(a.cfg.Chapters)-1
}

// AdvanceChapter moves to the next chapter and refills the action points for it. At the terminal chapter nothing
// changes and ErrTerminalChapter is returned.
func (a *Authority) AdvanceChapter() error {
	if a.IsTerminal() {
		a.logger.Warn("advance past terminal chapter ignored", slog.String("chapter", a.ChapterID()))
		return errors.Wrap(ErrTerminalChapter, "advance chapter", slog.String("chapter", a.ChapterID()))
	}
	from := a.ChapterID()
	a.chapter++
	next := a.Chapter()
	if a.refiller != nil {
		a.refiller.Refill(next.ActionPoints)
	}
	if a.cfg.ResetTimeSlotOnAdvance {
		a.setTimeSlot(Morning)
	}
	a.logger.Info("chapter advanced", slog.String("from", from), slog.String("to", next.ID))
	a.bus.Publish(event.ChapterAdvanced{From: from, To: next.ID})
	return nil
}

// AddFlag sets flag and reports whether it was new. FlagAdded is only published on first insertion.
func (a *Authority) AddFlag(flag string) bool {
	if !a.flags.Add(flag) {
		return false
	}
	a.bus.Publish(event.FlagAdded{Flag: flag})
	return true
}

// RemoveFlag retracts a fact. Flags are meant to be monotonic so every removal is logged.
func (a *Authority) RemoveFlag(flag string) bool {
	if !a.flags.Remove(flag) {
		return false
	}
	a.logger.Warn("flag removed", slog.String("flag", flag))
	a.bus.Publish(event.FlagRemoved{Flag: flag})
	return true
}

func (a *Authority) HasFlag(flag string) bool {
	return a.flags.Has(flag)
}

func (a *Authority) HasAllFlags(required []string) bool {
	return a.flags.HasAll(required)
}

func (a *Authority) HasAnyFlag(forbidden []string) bool {
	return a.flags.HasAny(forbidden)
}

func (a *Authority) Flags() []string {
	return a.flags.All()
}

func (a *Authority) Location() string {
	return a.location
}

func (a *Authority) HasVisited(id string) bool {
	_, ok := a.visited[id]
	return ok
}

func (a *Authority) Visited() []string {
	return slices.Sorted(maps.Keys(a.visited))
}

// MoveToLocation pays the move cost through spender and then enters loc. When the payment is refused the location
// stays unchanged and the spender's error is returned.
func (a *Authority) MoveToLocation(loc location.Location, spender Spender) error {
	cost := loc.Cost()
	if cost > 0 {
		if err := spender.Consume(cost); err != nil {
			return errors.Wrap(err, "pay for move", slog.String("location", loc.ID), slog.Int("cost", cost))
		}
	}
	a.enter(loc.ID, cost)
	return nil
}

// SetLocationWithoutCost enters id for free, e.g., at the start of a game or when a cutscene relocates the player.
func (a *Authority) SetLocationWithoutCost(id string) {
	a.enter(id, 0)
}

func (a *Authority) enter(id string, cost int) {
	from := a.location
	a.location = id
	a.visited[id] = struct{}{}
	a.bus.Publish(event.LocationChanged{From: from, To: id, Cost: cost})
}

func (a *Authority) TimeSlot() TimeSlot {
	return a.slot
}

// AdvanceTimeSlot moves the clock forward by one slot. Night is the last slot of a chapter.
func (a *Authority) AdvanceTimeSlot() error {
	if a.slot == Night {
		return errors.Wrap(ErrLastTimeSlot, "advance time slot")
	}
	a.setTimeSlot(a.slot + 1)
	return nil
}

func (a *Authority) setTimeSlot(slot TimeSlot) {
	if a.slot == slot {
		return
	}
	from := a.slot
	a.slot = slot
	a.bus.Publish(event.TimeSlotChanged{From: from.String(), To: slot.String()})
}

// View describes the current state for location restriction checks.
func (a *Authority) View(unlocked bool) View {
	return View{
		Chapter:  a.ChapterID(),
		Slot:     a.slot,
		Unlocked: unlocked,
		HasFlag:  a.flags.Has,
	}
}

// Reset returns to the title screen of a new session.
func (a *Authority) Reset() {
	a.phase = PhaseTitle
	a.chapter = 0
	a.slot = Morning
	a.location = ""
	clear(a.visited)
	a.flags.Reset()
}

type Snapshot struct {
	Phase    string   `json:"phase"`
	Chapter  string   `json:"chapter"`
	TimeSlot string   `json:"time_slot"`
	Location string   `json:"location"`
	Visited  []string `json:"visited"`
	Flags    []string `json:"flags"`
}

func (a *Authority) Snapshot() Snapshot {
	return Snapshot{
		Phase:    a.phase.String(),
		Chapter:  a.ChapterID(),
		TimeSlot: a.slot.String(),
		Location: a.location,
		Visited:  a.Visited(),
		Flags:    a.flags.Snapshot(),
	}
}

type parsedSnapshot struct {
	phase   Phase
	chapter int
	slot    TimeSlot
}

func (a *Authority) parse(s Snapshot) (parsedSnapshot, error) {
	var (
		p   parsedSnapshot
		ok  bool
		err error
	)
	if p.phase, err = ParsePhase(s.Phase); err != nil {
		return p, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}
	if p.slot, err = ParseTimeSlot(s.TimeSlot); err != nil {
		return p, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}
	if _, p.chapter, ok = a.ChapterByID(s.Chapter); !ok {
		return p, errors.Wrap(ErrCorruptSnapshot, "unknown chapter", slog.String("chapter", s.Chapter))
	}
	if err = a.flags.Validate(s.Flags); err != nil {
		return p, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}
	for _, v := range s.Visited {
		if v == "" {
			return p, errors.Wrap(ErrCorruptSnapshot, "empty visited location")
		}
	}
	return p, nil
}

func (a *Authority) Validate(s Snapshot) error {
	_, err := a.parse(s)
	return err
}

// Restore replaces the state with s. Nothing changes when s is invalid. Restoring publishes no events, the caller
// is expected to redraw from queries.
func (a *Authority) Restore(s Snapshot) error {
	p, err := a.parse(s)
	if err != nil {
		return err
	}
	a.phase = p.phase
	a.chapter = p.chapter
	a.slot = p.slot
	a.location = s.Location
	clear(a.visited)
	for _, v := range s.Visited {
		a.visited[v] = struct{}{}
	}
	// Validated above.
	_ = a.flags.Restore(s.Flags)
	return nil
}
