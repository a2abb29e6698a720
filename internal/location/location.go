// Package location holds the places the player can visit and which of them are open.
//
// The catalog only answers questions and records unlocks. Whether the player may enter a location right now is
// decided by the game state, see state.CheckLocation.
package location

import (
	"log/slog"
	"slices"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/event"
)

var (
	ErrUnknownLocation = errors.NewSentinel("unknown location")
	ErrDuplicate       = errors.NewSentinel("duplicate location")
)

// DefaultMoveCost applies to locations that don't configure one.
const DefaultMoveCost = 1

type Location struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	// MoveCost is the number of action points spent to enter. Zero means DefaultMoveCost, use Free for no cost.
	MoveCost int  `yaml:"move_cost" json:"move_cost,omitempty"`
	Free     bool `yaml:"free" json:"free,omitempty"`
	// Unlocked reports whether the location is open from the start of the game.
	Unlocked bool `yaml:"unlocked" json:"unlocked,omitempty"`
	// UnlockFlag opens the location once the flag is set.
	UnlockFlag string `yaml:"unlock_flag" json:"unlock_flag,omitempty"`
	// OpenSlots lists the time slots during which the location can be entered. Empty means always.
	OpenSlots      []string `yaml:"open_slots" json:"open_slots,omitempty"`
	RequiredFlags  []string `yaml:"required_flags" json:"required_flags,omitempty"`
	ForbiddenFlags []string `yaml:"forbidden_flags" json:"forbidden_flags,omitempty"`
	// Chapters lists the chapters the location is available in. Empty means every chapter.
	Chapters []string `yaml:"chapters" json:"chapters,omitempty"`
	NPCs     []string `yaml:"npcs" json:"npcs,omitempty"`
	Clues    []string `yaml:"clues" json:"clues,omitempty"`
}

// Cost returns the action points spent entering the location.
func (l Location) Cost() int {
	switch {
	case l.Free:
		return 0
	case l.MoveCost <= 0:
		return DefaultMoveCost
	default:
		return l.MoveCost
	}
}

func (l Location) HasNPC(npc string) bool {
	return slices.Contains(l.NPCs, npc)
}

func (l Location) HasClue(clue string) bool {
	return slices.Contains(l.Clues, clue)
}

type Catalog struct {
	order     []string
	locations map[string]Location
	unlocked  map[string]bool
	bus       *event.Bus
	logger    *slog.Logger
}

// NewCatalog indexes locations by id. The initial unlock state comes from Location.Unlocked.
func NewCatalog(locations []Location, bus *event.Bus, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{
		order:     make([]string, 0, len(locations)),
		locations: make(map[string]Location, len(locations)),
		unlocked:  make(map[string]bool, len(locations)),
		bus:       bus,
		logger:    logger.With("source", "LocationCatalog"),
	}
	for _, l := range locations {
		if _, ok := c.locations[l.ID]; ok {
			return nil, errors.Wrap(ErrDuplicate, "index locations", slog.String("location", l.ID))
		}
		c.order = append(c.order, l.ID)
		c.locations[l.ID] = l
	}
	c.Reset()
	return c, nil
}

func (c *Catalog) Get(id string) (Location, bool) {
	l, ok := c.locations[id]
	return l, ok
}

// IDs returns the location ids in catalog order.
func (c *Catalog) IDs() []string {
	return slices.Clone(c.order)
}

// All returns the locations in catalog order.
func (c *Catalog) All() []Location {
	all := make([]Location, 0, len(c.order))
	for _, id := range c.order {
		all = append(all, c.locations[id])
	}
	return all
}

func (c *Catalog) IsUnlocked(id string) bool {
	return c.unlocked[id]
}

// Unlock opens the location and reports whether it was locked before.
func (c *Catalog) Unlock(id string) bool {
	if _, ok := c.locations[id]; !ok || c.unlocked[id] {
		return false
	}
	c.unlocked[id] = true
	c.logger.Debug("location unlocked", slog.String("location", id))
	c.bus.Publish(event.LocationUnlocked{Location: id})
	return true
}

// UnlockByFlags opens every locked location whose unlock flag is set and returns their ids.
func (c *Catalog) UnlockByFlags(has func(flag string) bool) []string {
	var opened []string
	for _, id := range c.order {
		l := c.locations[id]
		if l.UnlockFlag == "" || c.unlocked[id] || !has(l.UnlockFlag) {
			continue
		}
		if c.Unlock(id) {
			opened = append(opened, id)
		}
	}
	return opened
}

// Reset returns every location to its initial unlock state.
func (c *Catalog) Reset() {
	clear(c.unlocked)
	for id, l := range c.locations {
		if l.Unlocked {
			c.unlocked[id] = true
		}
	}
}

// Snapshot returns the unlocked location ids in catalog order.
func (c *Catalog) Snapshot() []string {
	var ids []string
	for _, id := range c.order {
		if c.unlocked[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Catalog) Validate(snapshot []string) error {
	for _, id := range snapshot {
		if _, ok := c.locations[id]; !ok {
			return errors.Wrap(ErrUnknownLocation, "validate unlocked locations", slog.String("location", id))
		}
	}
	return nil
}

func (c *Catalog) Restore(snapshot []string) error {
	if err := c.Validate(snapshot); err != nil {
		return err
	}
	clear(c.unlocked)
	for _, id := range snapshot {
		c.unlocked[id] = true
	}
	return nil
}
