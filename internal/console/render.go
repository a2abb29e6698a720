package console

import (
	"unicode"
	"unicode/utf8"

	"github.com/myrjola/casefile/internal/event"
)

// render prints the events the player should see as they happen.
func (c *Console) render(e event.Event) {
	switch e := e.(type) {
	case event.LineShown:
		speaker := e.Speaker
		if speaker == "" {
			speaker = c.characterName(e.NPC)
		}
		c.printf("%s: %s\n", speaker, e.Text)
	case event.ChoicesPresented:
		for _, choice := range e.Choices {
			c.printf("  [%d] %s\n", choice.Index+1, choice.Text)
		}
	case event.DialogueFallback:
		c.printf("%s: %s\n", c.characterName(e.NPC), e.Text)
	case event.FreeformReplied:
		c.printf("%s: %s\n", c.characterName(e.NPC), e.Text)
	case event.DialogueEnded:
		c.printf("You leave %s.\n", c.characterName(e.NPC))
	case event.ClueDiscovered:
		c.printf("New clue: %s\n", c.clueName(e.Clue))
	case event.DeductionMade:
		c.printf("Deduction: %s\n", e.Text)
	case event.RelationRevealed:
		c.printf("%s and %s: %s\n", c.characterName(e.A), c.characterName(e.B), e.Label)
	case event.AffinityThresholdReached:
		c.printf("%s trusts you more.\n", c.characterName(e.NPC))
	case event.LocationUnlocked:
		if loc, ok := c.engine.Locations.Get(e.Location); ok {
			c.printf("New place to visit: %s\n", loc.Name)
		}
	case event.TimeSlotChanged:
		c.printf("It is now %s.\n", e.To)
	case event.ChapterCompleted:
		c.printf("You have found what this chapter had to offer. Type advance to continue.\n")
	case event.ChapterAdvanced:
		ch := c.engine.State.Chapter()
		c.printf("\nChapter %s: %s\n", ch.ID, ch.Title)
	case event.PointsLow:
		c.printf("You are getting tired (%d action points left).\n", e.Current)
	case event.PointsCritical:
		c.printf("You can barely go on (%d action points left).\n", e.Current)
	case event.PointsExhausted:
		c.printf("You are exhausted.\n")
	case event.ResourceExhausted:
		c.printf("Your time in this chapter has run out.\n")
	case event.CutsceneStarted:
		c.printf("[%s]\n", e.Cutscene)
	case event.EndingReached:
		c.renderEnding(e)
	}
}

func (c *Console) renderEnding(e event.EndingReached) {
	c.printf("\nTHE END\n")
	switch {
	case e.Accused == "":
		c.printf("The case went cold before you named anyone.\n")
	case e.CorrectCulprit:
		c.printf("You named %s, and you were right.\n", c.characterName(e.Accused))
	default:
		c.printf("You named %s. The true culprit remains free.\n", c.characterName(e.Accused))
	}
	c.printf("Ending: %s (clues %.0f%%, trust %.0f)\n", e.Tier, e.ClueRatio*100, e.MeanAffinity) //nolint:mnd // percent
	c.printf("Type new to play again, load to restore a save or quit.\n")
}

func (c *Console) characterName(id string) string {
	if ch, ok := c.engine.Case.Character(id); ok && ch.Name != "" {
		return ch.Name
	}
	return id
}

func (c *Console) clueName(id string) string {
	if clue, ok := c.engine.Clues.Catalog().Clue(id); ok && clue.Name != "" {
		return clue.Name
	}
	return id
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
