// Package flags holds the set of string facts the narrative has established.
//
// Flags are monotonic during a session: once added they stay set until Reset, which is reserved for starting a new
// session. Remove exists for content that explicitly retracts a fact and is logged by the caller.
package flags

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/myrjola/casefile/internal/errors"
)

var ErrCorruptSnapshot = errors.NewSentinel("corrupt flag snapshot")

type Store struct {
	set map[string]struct{}
}

func NewStore() *Store {
	return &Store{set: make(map[string]struct{})}
}

// Add sets flag and reports whether it was newly inserted.
func (s *Store) Add(flag string) bool {
	if flag == "" {
		return false
	}
	if _, ok := s.set[flag]; ok {
		return false
	}
	s.set[flag] = struct{}{}
	return true
}

// Remove clears flag and reports whether it was set.
func (s *Store) Remove(flag string) bool {
	if _, ok := s.set[flag]; !ok {
		return false
	}
	delete(s.set, flag)
	return true
}

func (s *Store) Has(flag string) bool {
	_, ok := s.set[flag]
	return ok
}

// HasAll reports whether every flag in required is set.
func (s *Store) HasAll(required []string) bool {
	for _, f := range required {
		if !s.Has(f) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one flag in forbidden is set.
func (s *Store) HasAny(forbidden []string) bool {
	for _, f := range forbidden {
		if s.Has(f) {
			return true
		}
	}
	return false
}

// All returns the flags in lexical order.
func (s *Store) All() []string {
	all := make([]string, 0, len(s.set))
	for f := range s.set {
		all = append(all, f)
	}
	slices.Sort(all)
	return all
}

func (s *Store) Len() int {
	return len(s.set)
}

func (s *Store) Reset() {
	clear(s.set)
}

func (s *Store) Snapshot() []string {
	return s.All()
}

// Validate checks a snapshot without applying it.
func (s *Store) Validate(snapshot []string) error {
	for i, f := range snapshot {
		if f == "" {
			return errors.Wrap(ErrCorruptSnapshot, "empty flag name", slog.Int("index", i))
		}
	}
	return nil
}

// Restore replaces the current flags. The store is unchanged when the snapshot is invalid.
func (s *Store) Restore(snapshot []string) error {
	if err := s.Validate(snapshot); err != nil {
		return err
	}
	s.Reset()
	for _, f := range snapshot {
		s.set[f] = struct{}{}
	}
	return nil
}

// Talked marks that the player has questioned npc during chapter.
func Talked(npc, chapter string) string {
	return fmt.Sprintf("talked_%s_%s", npc, chapter)
}

func Clue(id string) string {
	return "clue_" + id
}

func Investigated(id string) string {
	return "investigated_" + id
}

// Affinity marks that the affinity with npc has reached threshold.
func Affinity(npc string, threshold int) string {
	return fmt.Sprintf("affinity_%s_%d", npc, threshold)
}

func ChapterComplete(chapter string) string {
	return fmt.Sprintf("chapter_%s_complete", chapter)
}

func Observed(location string) string {
	return "observed_" + location
}
