// Package clues keeps track of what the player knows: discovered clues, characters met, deductions drawn and the
// relations between characters revealed so far.
//
// Everything the ledger records is monotonic within a session. Deductions can only be recorded while every clue
// they rest on is in hand, whether the player draws them or an automatic rule does.
package clues

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/event"
	"github.com/myrjola/casefile/internal/flags"
)

var ErrCorruptSnapshot = errors.NewSentinel("corrupt clue ledger snapshot")

// World is where the ledger records derived flags.
type World interface {
	AddFlag(flag string) bool
	ChapterID() string
}

type Deduction struct {
	Text      string    `json:"text"`
	ClueIDs   []string  `json:"clue_ids"`
	Timestamp time.Time `json:"timestamp"`
	Chapter   string    `json:"chapter"`
	Flag      string    `json:"flag,omitempty"`
	// Rule is set when the deduction was drawn automatically.
	Rule string `json:"rule,omitempty"`
}

type DeductionResult struct {
	Recorded bool
	// Missing lists the required clues that have not been discovered.
	Missing   []string
	Deduction Deduction
}

// Relation is how two characters are connected. The pair is unordered.
type Relation struct {
	A     string `json:"a"     yaml:"a"`
	B     string `json:"b"     yaml:"b"`
	Label string `json:"label" yaml:"label"`
}

type relationKey struct {
	a, b string
}

func canonical(a, b string) relationKey {
	if b < a {
		a, b = b, a
	}
	return relationKey{a: a, b: b}
}

type Ledger struct {
	catalog    *Catalog
	discovered []string
	known      map[string]bool
	met        []string
	metSet     map[string]bool
	deductions []Deduction
	relations  map[relationKey]string
	firedRules map[string]bool
	world      World
	now        func() time.Time
	bus        *event.Bus
	logger     *slog.Logger
}

// NewLedger creates an empty ledger. now defaults to time.Now.
func NewLedger(catalog *Catalog, world World, now func() time.Time, bus *event.Bus, logger *slog.Logger) *Ledger {
	if now == nil {
		now = time.Now
	}
	l := &Ledger{
		catalog: catalog,
		world:   world,
		now:     now,
		bus:     bus,
		logger:  logger.With("source", "ClueLedger"),
	}
	l.Reset()
	return l
}

func (l *Ledger) Catalog() *Catalog {
	return l.catalog
}

// CanDiscover reports whether id is a known clue that hasn't been discovered yet.
func (l *Ledger) CanDiscover(id string) bool {
	_, ok := l.catalog.Clue(id)
	return ok && !l.known[id]
}

func (l *Ledger) IsDiscovered(id string) bool {
	return l.known[id]
}

// Discover records clue id, sets its derived flags and evaluates the automatic deduction rules. It returns false
// when the clue is unknown or already discovered.
func (l *Ledger) Discover(id string) bool {
	clue, ok := l.catalog.Clue(id)
	if !ok {
		l.logger.Debug("unknown clue", slog.String("clue", id))
		return false
	}
	if l.known[id] {
		return false
	}
	l.known[id] = true
	l.discovered = append(l.discovered, id)
	l.world.AddFlag(flags.Clue(id))
	l.world.AddFlag(flags.Investigated(id))
	l.bus.Publish(event.ClueDiscovered{Clue: id, Importance: string(clue.Importance), Chapter: clue.Chapter})
	l.evaluateRules()
	return true
}

func (l *Ledger) evaluateRules() {
	for _, r := range l.catalog.rules {
		if l.firedRules[r.ID] || len(l.Missing(r.Clues)) > 0 {
			continue
		}
		l.firedRules[r.ID] = true
		if res := l.record(r.Clues, r.Text, r.Flag, r.ID); !res.Recorded {
			l.logger.Error("automatic deduction refused", slog.String("rule", r.ID))
			continue
		}
		for _, rel := range r.Reveals {
			l.SetRelation(rel.A, rel.B, rel.Label)
		}
	}
}

// Missing returns the clues in ids that haven't been discovered, in the given order.
func (l *Ledger) Missing(ids []string) []string {
	var missing []string
	for _, id := range ids {
		if !l.known[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// RecordDeduction appends a deduction resting on clueIDs. Nothing is recorded unless every clue has been
// discovered; the result then lists the missing ones. flag is set on success when not empty.
func (l *Ledger) RecordDeduction(clueIDs []string, text, flag string) DeductionResult {
	return l.record(clueIDs, text, flag, "")
}

func (l *Ledger) record(clueIDs []string, text, flag, rule string) DeductionResult {
	if len(clueIDs) == 0 {
		return DeductionResult{}
	}
	if missing := l.Missing(clueIDs); len(missing) > 0 {
		return DeductionResult{Missing: missing}
	}
	d := Deduction{
		Text:      text,
		ClueIDs:   slices.Clone(clueIDs),
		Timestamp: l.now(),
		Chapter:   l.world.ChapterID(),
		Flag:      flag,
		Rule:      rule,
	}
	l.deductions = append(l.deductions, d)
	if flag != "" {
		l.world.AddFlag(flag)
	}
	l.logger.Debug("deduction recorded", slog.String("flag", flag), slog.String("rule", rule))
	l.bus.Publish(event.DeductionMade{Text: text, Clues: slices.Clone(clueIDs), Flag: flag, Rule: rule})
	return DeductionResult{Recorded: true, Deduction: d}
}

// MeetCharacter records that the player has met id. Characters missing from the catalog are registered anyway.
func (l *Ledger) MeetCharacter(id string) bool {
	if id == "" || l.metSet[id] {
		return false
	}
	_, known := l.catalog.Character(id)
	if !known {
		l.logger.Warn("met character missing from catalog", slog.String("character", id))
	}
	l.metSet[id] = true
	l.met = append(l.met, id)
	l.bus.Publish(event.CharacterMet{Character: id, Known: known})
	return true
}

func (l *Ledger) HasMet(id string) bool {
	return l.metSet[id]
}

// SetRelation reveals how a and b relate. Relations are immutable once revealed: the first label wins regardless of
// argument order.
func (l *Ledger) SetRelation(a, b, label string) bool {
	if a == "" || b == "" || a == b {
		return false
	}
	key := canonical(a, b)
	if _, ok := l.relations[key]; ok {
		return false
	}
	l.relations[key] = label
	l.bus.Publish(event.RelationRevealed{A: key.a, B: key.b, Label: label})
	return true
}

func (l *Ledger) Relation(a, b string) (string, bool) {
	label, ok := l.relations[canonical(a, b)]
	return label, ok
}

// Relations returns the revealed relations ordered by their canonical pair.
func (l *Ledger) Relations() []Relation {
	keys := slices.SortedFunc(maps.Keys(l.relations), func(x, y relationKey) int {
		if x.a != y.a {
			return cmp.Compare(x.a, y.a)
		}
		return cmp.Compare(x.b, y.b)
	})
	relations := make([]Relation, len(keys))
	for i, k := range keys {
		relations[i] = Relation{A: k.a, B: k.b, Label: l.relations[k]}
	}
	return relations
}

// CompletionRatio is the share of catalog clues discovered, between 0 and 1.
func (l *Ledger) CompletionRatio() float64 {
	total := len(l.catalog.clues)
	if total == 0 {
		return 0
	}
	return float64(len(l.discovered)) / float64(total)
}

// MissingCritical returns the critical clues not yet discovered in catalog order.
func (l *Ledger) MissingCritical() []string {
	var missing []string
	for _, c := range l.catalog.clues {
		if c.Importance == Critical && !l.known[c.ID] {
			missing = append(missing, c.ID)
		}
	}
	return missing
}

// DiscoveredByChapter counts the discovered clues per chapter they belong to.
func (l *Ledger) DiscoveredByChapter() map[string]int {
	counts := make(map[string]int)
	for _, id := range l.discovered {
		c, _ := l.catalog.Clue(id)
		counts[c.Chapter]++
	}
	return counts
}

func (l *Ledger) DiscoveredInChapter(chapter string) int {
	return l.DiscoveredByChapter()[chapter]
}

// Discovered returns the discovered clue ids in discovery order.
func (l *Ledger) Discovered() []string {
	return slices.Clone(l.discovered)
}

func (l *Ledger) DiscoveredCount() int {
	return len(l.discovered)
}

// Met returns the met characters in meeting order.
func (l *Ledger) Met() []string {
	return slices.Clone(l.met)
}

func (l *Ledger) Deductions() []Deduction {
	return slices.Clone(l.deductions)
}

func (l *Ledger) Reset() {
	l.discovered = nil
	l.known = make(map[string]bool)
	l.met = nil
	l.metSet = make(map[string]bool)
	l.deductions = nil
	l.relations = make(map[relationKey]string)
	l.firedRules = make(map[string]bool)
}

type Snapshot struct {
	Discovered []string    `json:"discovered"`
	Met        []string    `json:"met"`
	Deductions []Deduction `json:"deductions"`
	Relations  []Relation  `json:"relations"`
	FiredRules []string    `json:"fired_rules"`
}

func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		Discovered: l.Discovered(),
		Met:        l.Met(),
		Deductions: l.Deductions(),
		Relations:  l.Relations(),
		FiredRules: slices.Sorted(maps.Keys(l.firedRules)),
	}
}

// Validate checks s against the catalog, including that every deduction rests on discovered clues.
func (l *Ledger) Validate(s Snapshot) error {
	discovered := make(map[string]bool, len(s.Discovered))
	for _, id := range s.Discovered {
		if _, ok := l.catalog.Clue(id); !ok {
			return errors.Wrap(ErrCorruptSnapshot, "unknown clue", slog.String("clue", id))
		}
		if discovered[id] {
			return errors.Wrap(ErrCorruptSnapshot, "clue discovered twice", slog.String("clue", id))
		}
		discovered[id] = true
	}
	met := make(map[string]bool, len(s.Met))
	for _, id := range s.Met {
		if id == "" || met[id] {
			return errors.Wrap(ErrCorruptSnapshot, "empty or repeated character", slog.String("character", id))
		}
		met[id] = true
	}
	for i, d := range s.Deductions {
		if len(d.ClueIDs) == 0 {
			return errors.Wrap(ErrCorruptSnapshot, "deduction without clues", slog.Int("deduction", i))
		}
		for _, id := range d.ClueIDs {
			if !discovered[id] {
				return errors.Wrap(ErrCorruptSnapshot, "deduction rests on undiscovered clue",
					slog.Int("deduction", i), slog.String("clue", id))
			}
		}
	}
	seen := make(map[relationKey]bool, len(s.Relations))
	for _, r := range s.Relations {
		key := canonical(r.A, r.B)
		if r.A == "" || r.B == "" || r.A == r.B || seen[key] {
			return errors.Wrap(ErrCorruptSnapshot, "invalid relation", slog.String("a", r.A), slog.String("b", r.B))
		}
		seen[key] = true
	}
	for _, id := range s.FiredRules {
		if !l.catalog.hasRule(id) {
			return errors.Wrap(ErrCorruptSnapshot, "unknown rule", slog.String("rule", id))
		}
	}
	return nil
}

func (l *Ledger) Restore(s Snapshot) error {
	if err := l.Validate(s); err != nil {
		return err
	}
	l.Reset()
	for _, id := range s.Discovered {
		l.known[id] = true
	}
	l.discovered = slices.Clone(s.Discovered)
	for _, id := range s.Met {
		l.metSet[id] = true
	}
	l.met = slices.Clone(s.Met)
	l.deductions = slices.Clone(s.Deductions)
	for _, r := range s.Relations {
		l.relations[canonical(r.A, r.B)] = r.Label
	}
	for _, id := range s.FiredRules {
		l.firedRules[id] = true
	}
	return nil
}
