// Package event defines the notifications the narrative engine emits and the synchronous bus that delivers them.
//
// Event is a closed set: every variant lives in this package and subscribers are expected to switch over the
// concrete types. Payloads carry plain values only so that presentation code never holds references into engine
// state.
package event

// Event is implemented only by the variants declared in this package.
type Event interface {
	// Name is a stable identifier suitable for logs and wire formats.
	Name() string
	sealed()
}

type PhaseChanged struct {
	From string
	To   string
}

type ChapterAdvanced struct {
	From string
	To   string
}

// ChapterCompleted is published once per chapter when its required clues are all discovered.
type ChapterCompleted struct {
	Chapter string
}

type TimeSlotChanged struct {
	From string
	To   string
}

// FlagAdded is published only when the flag was not set before.
type FlagAdded struct {
	Flag string
}

type FlagRemoved struct {
	Flag string
}

type LocationChanged struct {
	From string
	To   string
	Cost int
}

type LocationUnlocked struct {
	Location string
}

type PointsChanged struct {
	Current int
	Max     int
}

type PointsConsumed struct {
	Amount int
}

type PointsRecovered struct {
	Amount int
}

// PointsLow is published when a consume takes the points to or below the low threshold.
type PointsLow struct {
	Current int
}

// PointsCritical is published when a consume takes the points to or below the critical threshold.
type PointsCritical struct {
	Current int
}

// PointsExhausted is published when a consume lands exactly on zero.
type PointsExhausted struct{}

type DialogueStarted struct {
	NPC  string
	Node string
}

type LineShown struct {
	NPC     string
	Node    string
	Index   int
	Speaker string
	Text    string
	Emotion string
	Sound   string
}

type ChoiceView struct {
	// Index is the position among the presented choices, which is what selecting a choice expects.
	Index int
	Text  string
}

type ChoicesPresented struct {
	NPC     string
	Node    string
	Choices []ChoiceView
}

type ChoiceSelected struct {
	NPC   string
	Node  string
	Index int
	Text  string
}

type DialogueEnded struct {
	NPC string
}

// DialogueFallback replaces a conversation that could not start, e.g., because the entry node's conditions failed.
type DialogueFallback struct {
	NPC    string
	Text   string
	Reason string
}

type FreeformRequested struct {
	NPC        string
	PlayerText string
}

type FreeformReplied struct {
	NPC      string
	Text     string
	Fallback bool
}

type ClueDiscovered struct {
	Clue       string
	Importance string
	Chapter    string
}

type CharacterMet struct {
	Character string
	// Known is false when the character is missing from the catalog.
	Known bool
}

type DeductionMade struct {
	Text  string
	Clues []string
	Flag  string
	Rule  string
}

type RelationRevealed struct {
	A     string
	B     string
	Label string
}

type AffinityChanged struct {
	NPC   string
	Value int
	Delta int
}

type AffinityThresholdReached struct {
	NPC       string
	Threshold int
}

type ActionRefused struct {
	Action string
	Code   string
	Reason string
}

type ResourceExhausted struct {
	Chapter string
	Policy  string
}

type CutsceneStarted struct {
	Cutscene string
}

type CutsceneFinished struct {
	Cutscene string
}

type EndingReached struct {
	Tier           string
	Accused        string
	CorrectCulprit bool
	ClueRatio      float64
	MeanAffinity   float64
}

func (PhaseChanged) Name() string             { return "phase_changed" }
func (ChapterAdvanced) Name() string          { return "chapter_advanced" }
func (ChapterCompleted) Name() string         { return "chapter_completed" }
func (TimeSlotChanged) Name() string          { return "time_slot_changed" }
func (FlagAdded) Name() string                { return "flag_added" }
func (FlagRemoved) Name() string              { return "flag_removed" }
func (LocationChanged) Name() string          { return "location_changed" }
func (LocationUnlocked) Name() string         { return "location_unlocked" }
func (PointsChanged) Name() string            { return "action_points_changed" }
func (PointsConsumed) Name() string           { return "action_points_consumed" }
func (PointsRecovered) Name() string          { return "action_points_recovered" }
func (PointsLow) Name() string                { return "action_points_low" }
func (PointsCritical) Name() string           { return "action_points_critical" }
func (PointsExhausted) Name() string          { return "action_points_exhausted" }
func (DialogueStarted) Name() string          { return "dialogue_started" }
func (LineShown) Name() string                { return "line_shown" }
func (ChoicesPresented) Name() string         { return "choices_presented" }
func (ChoiceSelected) Name() string           { return "choice_selected" }
func (DialogueEnded) Name() string            { return "dialogue_ended" }
func (DialogueFallback) Name() string         { return "dialogue_fallback" }
func (FreeformRequested) Name() string        { return "freeform_requested" }
func (FreeformReplied) Name() string          { return "freeform_replied" }
func (ClueDiscovered) Name() string           { return "clue_discovered" }
func (CharacterMet) Name() string             { return "character_met" }
func (DeductionMade) Name() string            { return "deduction_made" }
func (RelationRevealed) Name() string         { return "relation_revealed" }
func (AffinityChanged) Name() string          { return "affinity_changed" }
func (AffinityThresholdReached) Name() string { return "affinity_threshold_reached" }
func (ActionRefused) Name() string            { return "action_refused" }
func (ResourceExhausted) Name() string        { return "resource_exhausted" }
func (CutsceneStarted) Name() string          { return "cutscene_started" }
func (CutsceneFinished) Name() string         { return "cutscene_finished" }
func (EndingReached) Name() string            { return "ending_reached" }

func (PhaseChanged) sealed()             {}
func (ChapterAdvanced) sealed()          {}
func (ChapterCompleted) sealed()         {}
func (TimeSlotChanged) sealed()          {}
func (FlagAdded) sealed()                {}
func (FlagRemoved) sealed()              {}
func (LocationChanged) sealed()          {}
func (LocationUnlocked) sealed()         {}
func (PointsChanged) sealed()            {}
func (PointsConsumed) sealed()           {}
func (PointsRecovered) sealed()          {}
func (PointsLow) sealed()                {}
func (PointsCritical) sealed()           {}
func (PointsExhausted) sealed()          {}
func (DialogueStarted) sealed()          {}
func (LineShown) sealed()                {}
func (ChoicesPresented) sealed()         {}
func (ChoiceSelected) sealed()           {}
func (DialogueEnded) sealed()            {}
func (DialogueFallback) sealed()         {}
func (FreeformRequested) sealed()        {}
func (FreeformReplied) sealed()          {}
func (ClueDiscovered) sealed()           {}
func (CharacterMet) sealed()             {}
func (DeductionMade) sealed()            {}
func (RelationRevealed) sealed()         {}
func (AffinityChanged) sealed()          {}
func (AffinityThresholdReached) sealed() {}
func (ActionRefused) sealed()            {}
func (ResourceExhausted) sealed()        {}
func (CutsceneStarted) sealed()          {}
func (CutsceneFinished) sealed()         {}
func (EndingReached) sealed()            {}
