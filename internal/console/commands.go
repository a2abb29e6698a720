package console

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/myrjola/casefile/internal/chat"
	"github.com/myrjola/casefile/internal/content"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/flow"
	"github.com/myrjola/casefile/internal/repositories"
	"github.com/myrjola/casefile/internal/state"
)

func init() {
	commands = map[string]command{
		"look":        {"look", "describe where you are and where you can go", cmdLook},
		"go":          {"go <place>", "travel somewhere", cmdGo},
		"talk":        {"talk [person]", "start a conversation", cmdTalk},
		"next":        {"next", "continue the conversation", cmdNext},
		"choose":      {"choose <n>", "pick a reply", cmdChoose},
		"say":         {"say <text>", "ask anything in your own words", cmdSay},
		"bye":         {"bye", "leave the conversation", cmdBye},
		"investigate": {"investigate [thing]", "list what to examine here, or examine it", cmdInvestigate},
		"observe":     {"observe", "look around for anything obvious", cmdObserve},
		"rest":        {"rest", "let time pass and recover some strength", cmdRest},
		"deduce":      {"deduce <clue>, <clue> = <conclusion>", "connect clues", cmdDeduce},
		"accuse":      {"accuse <person>", "name the culprit and close the case", cmdAccuse},
		"advance":     {"advance", "move on to the next chapter", cmdAdvance},
		"status":      {"status", "show the state of the investigation", cmdStatus},
		"clues":       {"clues", "list discovered clues, deductions and relations", cmdClues},
		"new":         {"new", "start the case over", cmdNew},
		"save":        {"save [slot]", "save the game, or list saves", cmdSave},
		"load":        {"load <slot>", "load a saved game", cmdLoad},
		"help":        {"help", "show this list", cmdHelp},
		"quit":        {"quit", "leave the game", cmdQuit},
	}
}

// resolve maps typed text to an id. Unresolved input is passed on as typed so that the engine refuses it by name.
func resolve(r *content.Resolver, input string) string {
	if id, ok := r.Resolve(input); ok {
		return id
	}
	return strings.ToLower(input)
}

// report prints what the result changed that no event describes.
func (c *Console) report(res flow.Result) {
	if res.Refusal != nil {
		c.printf("%s.\n", capitalize(res.Refusal.Reason))
		return
	}
	if res.Cost > 0 {
		c.printf("(%d action point%s spent, %d left)\n", res.Cost, plural(res.Cost), c.engine.Economy.Current())
	}
}

func cmdLook(c *Console, _ context.Context, _ string) bool {
	c.look()
	return false
}

func (c *Console) look() {
	status := c.engine.Status()
	loc, ok := c.engine.Locations.Get(status.Location)
	if !ok {
		c.printf("You are nowhere in particular.\n")
		return
	}
	c.printf("\n%s (%s, %s)\n%s\n", loc.Name, "chapter "+status.Chapter, status.TimeSlot, loc.Description)
	if len(loc.NPCs) > 0 {
		names := make([]string, 0, len(loc.NPCs))
		for _, npc := range loc.NPCs {
			names = append(names, c.characterName(npc))
		}
		c.printf("Here: %s\n", strings.Join(names, ", "))
	}
	c.printf("From here you can go to:\n")
	for _, d := range status.Destinations {
		line := d.Location.Name
		if d.Cost > 0 {
			line += " (" + strconv.Itoa(d.Cost) + " AP)"
		}
		if d.Restriction != nil {
			line += ": " + d.Restriction.Reason
		}
		c.printf("  %s\n", line)
	}
	c.printf("Action points: %d/%d\n", status.Points, status.MaxPoints)
}

func cmdGo(c *Console, _ context.Context, arg string) bool {
	if arg == "" {
		c.printf("Go where?\n")
		return false
	}
	res := c.engine.Flow.RequestMove(resolve(c.places, arg))
	c.report(res)
	if res.OK() {
		c.look()
	}
	return false
}

func cmdTalk(c *Console, _ context.Context, arg string) bool {
	npc := resolve(c.people, arg)
	if arg == "" {
		loc, _ := c.engine.Locations.Get(c.engine.State.Location())
		if len(loc.NPCs) != 1 {
			c.printf("Talk to whom?\n")
			return false
		}
		npc = loc.NPCs[0]
	}
	c.report(c.engine.Flow.RequestTalk(npc))
	return false
}

func cmdNext(c *Console, _ context.Context, _ string) bool {
	c.report(c.engine.Flow.Advance())
	return false
}

func cmdChoose(c *Console, _ context.Context, arg string) bool {
	n, err := strconv.Atoi(arg)
	if err != nil {
		c.printf("Choose a number from the list.\n")
		return false
	}
	c.report(c.engine.Flow.SelectChoice(n - 1))
	return false
}

func cmdSay(c *Console, ctx context.Context, arg string) bool {
	res := c.engine.Flow.BeginFreeform(arg)
	c.report(res)
	if res.Freeform == nil {
		return false
	}
	var (
		reply string
		err   = ErrNoModel
	)
	if c.opts.Bridge != nil {
		reply, err = c.opts.Bridge.Reply(ctx, chat.NewRequest(c.engine.Case, c.opts.Slot, *res.Freeform))
	}
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "free-form reply failed", errors.SlogError(err))
	}
	c.report(c.engine.Flow.CompleteFreeform(reply, err))
	return false
}

func cmdBye(c *Console, _ context.Context, _ string) bool {
	c.report(c.engine.Flow.EndDialogue())
	return false
}

func cmdInvestigate(c *Console, _ context.Context, arg string) bool {
	if arg != "" {
		c.report(c.engine.Flow.RequestDiscoverClue(resolve(c.clues, arg)))
		return false
	}
	if c.engine.State.Phase() == state.PhaseExploration {
		c.report(c.engine.Flow.EnterInvestigation())
	}
	loc, _ := c.engine.Locations.Get(c.engine.State.Location())
	var names []string
	for _, id := range loc.Clues {
		clue, ok := c.engine.Clues.Catalog().Clue(id)
		if !ok || c.engine.Clues.IsDiscovered(id) {
			continue
		}
		if _, idx, known := c.engine.State.ChapterByID(clue.Chapter); clue.Chapter != "" &&
			(!known || idx > c.engine.State.ChapterIndex()) {
			continue
		}
		names = append(names, clue.Name)
	}
	if len(names) == 0 {
		c.printf("There is nothing left to examine here.\n")
		return false
	}
	c.printf("You could examine: %s\n", strings.Join(names, ", "))
	return false
}

func cmdObserve(c *Console, _ context.Context, _ string) bool {
	c.report(c.engine.Flow.RequestObserve())
	return false
}

func cmdRest(c *Console, _ context.Context, _ string) bool {
	c.report(c.engine.Flow.RequestRest())
	return false
}

func cmdDeduce(c *Console, _ context.Context, arg string) bool {
	list, text, _ := strings.Cut(arg, "=")
	var ids []string
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			ids = append(ids, resolve(c.clues, name))
		}
	}
	res := c.engine.Flow.RecordDeduction(ids, strings.TrimSpace(text), "")
	if len(res.Missing) > 0 {
		names := make([]string, len(res.Missing))
		for i, id := range res.Missing {
			names[i] = c.clueName(id)
		}
		c.printf("You have not found: %s.\n", strings.Join(names, ", "))
		return false
	}
	c.report(res)
	return false
}

func cmdAccuse(c *Console, _ context.Context, arg string) bool {
	if arg == "" {
		c.printf("Accuse whom?\n")
		return false
	}
	c.report(c.engine.Flow.RequestAccuse(resolve(c.people, arg)))
	return false
}

func cmdAdvance(c *Console, _ context.Context, _ string) bool {
	res := c.engine.Flow.AdvanceChapter()
	c.report(res)
	if res.OK() && res.Ending == nil {
		c.look()
	}
	return false
}

func cmdStatus(c *Console, _ context.Context, _ string) bool {
	s := c.engine.Status()
	c.printf("Chapter %s: %s (%s)\n", s.Chapter, s.ChapterTitle, s.Phase)
	c.printf("Time: %s. Action points: %d/%d. Actions this chapter: %d.\n",
		s.TimeSlot, s.Points, s.MaxPoints, s.ActionsInChapter)
	c.printf("Clues: %d of %d.\n", s.CluesFound, s.CluesTotal)
	if s.ChapterComplete {
		c.printf("This chapter is complete. Type advance to continue.\n")
	}
	return false
}

func cmdClues(c *Console, _ context.Context, _ string) bool {
	discovered := c.engine.Clues.Discovered()
	if len(discovered) == 0 {
		c.printf("You have found nothing yet.\n")
	}
	for _, id := range discovered {
		clue, _ := c.engine.Clues.Catalog().Clue(id)
		c.printf("- %s: %s\n", clue.Name, clue.Description)
	}
	for _, d := range c.engine.Clues.Deductions() {
		c.printf("* %s\n", d.Text)
	}
	for _, r := range c.engine.Clues.Relations() {
		c.printf("~ %s / %s: %s\n", c.characterName(r.A), c.characterName(r.B), r.Label)
	}
	return false
}

func cmdNew(c *Console, _ context.Context, _ string) bool {
	c.engine.NewGame()
	c.report(c.engine.Flow.StartGame())
	c.look()
	return false
}

func cmdSave(c *Console, ctx context.Context, slot string) bool {
	if c.opts.Saves == nil {
		c.printf("Saving is not available.\n")
		return false
	}
	if slot == "" {
		c.listSaves(ctx)
		return false
	}
	if err := c.opts.Saves.Save(ctx, slot, c.engine.Snapshot()); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "save failed", errors.SlogError(err))
		c.printf("Could not save.\n")
		return false
	}
	if c.opts.Transcripts != nil {
		if err := c.opts.Transcripts.Copy(ctx, c.opts.Slot, slot); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "copy transcripts failed", errors.SlogError(err))
		}
	}
	c.printf("Saved to %s.\n", slot)
	return false
}

func (c *Console) listSaves(ctx context.Context) {
	saves, err := c.opts.Saves.List(ctx)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "list saves failed", errors.SlogError(err))
		c.printf("Could not list saves.\n")
		return
	}
	if len(saves) == 0 {
		c.printf("No saved games.\n")
	}
	for _, s := range saves {
		c.printf("  %s: chapter %s, %s (%s)\n", s.Slot, s.Chapter, s.Phase, s.Updated.Format("2006-01-02 15:04"))
	}
}

func cmdLoad(c *Console, ctx context.Context, slot string) bool {
	if c.opts.Saves == nil {
		c.printf("Saving is not available.\n")
		return false
	}
	snapshot, err := c.opts.Saves.Load(ctx, slot)
	if err == nil {
		err = c.engine.Restore(snapshot)
	}
	switch {
	case errors.Is(err, repositories.ErrSaveNotFound):
		c.printf("There is no save called %q.\n", slot)
		return false
	case err != nil:
		c.logger.LogAttrs(ctx, slog.LevelError, "load failed", errors.SlogError(err))
		c.printf("That save can't be loaded.\n")
		return false
	}
	if c.opts.Transcripts != nil {
		if err = c.opts.Transcripts.Copy(ctx, slot, c.opts.Slot); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "copy transcripts failed", errors.SlogError(err))
		}
	}
	c.printf("Loaded %s.\n", slot)
	c.look()
	return false
}

func cmdHelp(c *Console, _ context.Context, _ string) bool {
	for _, name := range order {
		cmd := commands[name]
		c.printf("  %-38s %s\n", cmd.usage, cmd.help)
	}
	return false
}

func cmdQuit(c *Console, _ context.Context, _ string) bool {
	c.printf("Goodbye.\n")
	return true
}
