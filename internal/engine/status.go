package engine

import (
	"github.com/myrjola/casefile/internal/clues"
	"github.com/myrjola/casefile/internal/flow"
)

// Status is a read-only summary of the game for front ends.
type Status struct {
	Case             string           `json:"case"`
	Phase            string           `json:"phase"`
	Chapter          string           `json:"chapter"`
	ChapterTitle     string           `json:"chapter_title"`
	ChapterComplete  bool             `json:"chapter_complete"`
	TimeSlot         string           `json:"time_slot"`
	Location         string           `json:"location"`
	Points           int              `json:"points"`
	MaxPoints        int              `json:"max_points"`
	ActionsInChapter int              `json:"actions_in_chapter"`
	CluesFound       int              `json:"clues_found"`
	CluesTotal       int              `json:"clues_total"`
	MissingCritical  []string         `json:"missing_critical"`
	Relations        []clues.Relation `json:"relations"`
	// Trust holds the affinity of every character whose opinion of the player has changed.
	Trust        map[string]int     `json:"trust,omitempty"`
	Destinations []flow.Destination `json:"destinations"`
	Conversation string             `json:"conversation,omitempty"`
	Ending       *flow.Ending       `json:"ending,omitempty"`
}

func (e *Engine) Status() Status {
	ch := e.State.Chapter()
	s := Status{
		Case:             e.Case.Meta.ID,
		Phase:            e.State.Phase().String(),
		Chapter:          ch.ID,
		ChapterTitle:     ch.Title,
		ChapterComplete:  e.Flow.ChapterComplete(),
		TimeSlot:         e.State.TimeSlot().String(),
		Location:         e.State.Location(),
		Points:           e.Economy.Current(),
		MaxPoints:        e.Economy.Max(),
		ActionsInChapter: e.Flow.ActionsInChapter(),
		CluesFound:       e.Clues.DiscoveredCount(),
		CluesTotal:       len(e.Clues.Catalog().Clues()),
		MissingCritical:  e.Clues.MissingCritical(),
		Relations:        e.Clues.Relations(),
		Destinations:     e.Flow.Destinations(),
		Ending:           e.Flow.Ending(),
	}
	for _, npc := range e.Affinity.Known() {
		if s.Trust == nil {
			s.Trust = make(map[string]int)
		}
		s.Trust[npc] = e.Affinity.Get(npc)
	}
	if session, ok := e.Dialogue.Session(); ok {
		s.Conversation = session.NPC
	}
	return s
}
