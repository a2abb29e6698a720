package content

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultFuzzyThreshold is the minimum Jaro-Winkler similarity for a fuzzy match.
const DefaultFuzzyThreshold = 0.85

// Entry is something a player can refer to by id or by name.
type Entry struct {
	ID   string
	Name string
}

// Resolver maps what a player typed to an id. It tries the exact id, then the exact name, both case-insensitively,
// and finally the most similar id or name.
type Resolver struct {
	entries   []Entry
	threshold float64
}

func NewResolver(entries []Entry) *Resolver {
	return &Resolver{entries: entries, threshold: DefaultFuzzyThreshold}
}

// Resolve returns the id the input refers to and whether anything matched.
func (r *Resolver) Resolve(input string) (string, bool) {
	in := normalize(input)
	if in == "" {
		return "", false
	}
	for _, e := range r.entries {
		if normalize(e.ID) == in {
			return e.ID, true
		}
	}
	for _, e := range r.entries {
		if normalize(e.Name) == in {
			return e.ID, true
		}
	}

	best, bestScore := "", 0.0
	for _, e := range r.entries {
		score := max(similarity(in, normalize(e.ID)), similarity(in, normalize(e.Name)))
		if score >= r.threshold && score > bestScore {
			best, bestScore = e.ID, score
		}
	}
	return best, best != ""
}

// similarity is the best Jaro-Winkler score of the full strings and of the input against each word of the
// candidate, so that "chef" finds "the chef".
func similarity(input, candidate string) float64 {
	if candidate == "" {
		return 0
	}
	score := matchr.JaroWinkler(input, candidate, false)
	if strings.Contains(input, " ") {
		return score
	}
	for _, word := range strings.Fields(candidate) {
		if len(word) < 3 {
			continue
		}
		if s := matchr.JaroWinkler(input, word, false); s > score {
			score = s
		}
	}
	return score
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == ' ' || r == '-' }), " ")
}

// CharacterResolver resolves character ids and names.
func (c *Case) CharacterResolver() *Resolver {
	entries := make([]Entry, 0, len(c.Characters))
	for _, ch := range c.Characters {
		entries = append(entries, Entry{ID: ch.ID, Name: ch.Name})
	}
	return NewResolver(entries)
}

func (c *Case) LocationResolver() *Resolver {
	entries := make([]Entry, 0, len(c.Locations))
	for _, l := range c.Locations {
		entries = append(entries, Entry{ID: l.ID, Name: l.Name})
	}
	return NewResolver(entries)
}

func (c *Case) ClueResolver() *Resolver {
	entries := make([]Entry, 0, len(c.Clues))
	for _, cl := range c.Clues {
		entries = append(entries, Entry{ID: cl.ID, Name: cl.Name})
	}
	return NewResolver(entries)
}
