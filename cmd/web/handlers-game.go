package main

import (
	"net/http"

	"github.com/myrjola/casefile/internal/content"
	"github.com/myrjola/casefile/internal/engine"
	"github.com/myrjola/casefile/internal/event"
	"github.com/myrjola/casefile/internal/flow"
)

type lineView struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Emotion string `json:"emotion,omitempty"`
}

type choiceView struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type dialogueView struct {
	NPC           string       `json:"npc"`
	Line          *lineView    `json:"line,omitempty"`
	Choices       []choiceView `json:"choices,omitempty"`
	AwaitingReply bool         `json:"awaiting_reply"`
}

type stateView struct {
	engine.Status
	Dialogue *dialogueView `json:"dialogue,omitempty"`
}

type eventView struct {
	Name string      `json:"name"`
	Data event.Event `json:"data"`
}

type actionRequest struct {
	// Target is the id or name of the place, person or clue the action is about.
	Target string   `json:"target"`
	Clues  []string `json:"clues"`
	Text   string   `json:"text"`
	Flag   string   `json:"flag"`
}

type actionResponse struct {
	Result flow.Result `json:"result"`
	Events []eventView `json:"events"`
	State  stateView   `json:"state"`
	// Stream is where the reply to a free-form question can be followed while it is written.
	Stream string `json:"stream,omitempty"`
}

// stateView must be called with app.mu held.
func (app *application) stateView() stateView {
	view := stateView{Status: app.engine.Status()}
	session, ok := app.engine.Dialogue.Session()
	if !ok {
		return view
	}
	d := &dialogueView{NPC: session.NPC, AwaitingReply: session.AwaitingReply}
	if line, shown := app.engine.Dialogue.CurrentLine(); shown {
		d.Line = &lineView{Speaker: line.Speaker, Text: line.Text, Emotion: line.Emotion}
	}
	for _, choice := range app.engine.Dialogue.PresentChoices() {
		d.Choices = append(d.Choices, choiceView{Index: choice.Index, Text: choice.Choice.Text})
	}
	view.Dialogue = d
	return view
}

// perform runs act and collects the events it published. It must be called with app.mu held.
func (app *application) perform(act func() flow.Result) (flow.Result, []eventView) {
	events := []eventView{}
	unsubscribe := app.engine.Subscribe(func(e event.Event) {
		events = append(events, eventView{Name: e.Name(), Data: e})
	})
	defer unsubscribe()
	return act(), events
}

// respond writes the outcome of an action. Refused actions answer 409 Conflict.
func (app *application) respond(w http.ResponseWriter, r *http.Request, res actionResponse) {
	status := http.StatusOK
	switch {
	case res.Result.Refusal != nil:
		status = http.StatusConflict
	case res.Stream != "":
		status = http.StatusAccepted
	}
	app.writeJSON(w, r, status, res)
}

func (app *application) state(w http.ResponseWriter, r *http.Request) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.writeJSON(w, r, http.StatusOK, app.stateView())
}

func resolve(resolver *content.Resolver, input string) string {
	if id, ok := resolver.Resolve(input); ok {
		return id
	}
	return input
}

func (app *application) action(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := readJSON(r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	kind := r.PathValue("kind")
	f := app.engine.Flow

	var act func() flow.Result
	switch kind {
	case "start":
		act = f.StartGame
	case "new":
		if err := app.transcripts.Clear(r.Context(), slot); err != nil {
			app.serverError(w, r, err)
			return
		}
		act = func() flow.Result {
			app.replies.invalidate()
			app.engine.NewGame()
			return f.StartGame()
		}
	case "observe":
		act = f.RequestObserve
	case "rest":
		act = f.RequestRest
	case "advance":
		act = f.AdvanceChapter
	case "enter_investigation":
		act = f.EnterInvestigation
	case "leave_investigation":
		act = f.LeaveInvestigation
	case "play_cutscene":
		// Target is the cutscene id, front ends decide what to show for it.
		act = func() flow.Result { return f.PlayCutscene(req.Target) }
	case "finish_cutscene":
		act = f.FinishCutscene
	case "deduce":
		ids := make([]string, len(req.Clues))
		for i, clue := range req.Clues {
			ids[i] = resolve(app.clues, clue)
		}
		act = func() flow.Result { return f.RecordDeduction(ids, req.Text, req.Flag) }
	case "move", "talk", "investigate", "accuse":
		if req.Target == "" {
			app.clientError(w, r, http.StatusBadRequest, "target is required")
			return
		}
		act = app.targeted(kind, req.Target)
	default:
		app.notFound(w, r, "unknown action "+kind)
		return
	}

	app.mu.Lock()
	defer app.mu.Unlock()
	res, events := app.perform(act)
	app.respond(w, r, actionResponse{Result: res, Events: events, State: app.stateView()})
}

func (app *application) targeted(kind, target string) func() flow.Result {
	f := app.engine.Flow
	switch kind {
	case "move":
		id := resolve(app.places, target)
		return func() flow.Result { return f.RequestMove(id) }
	case "talk":
		id := resolve(app.people, target)
		return func() flow.Result { return f.RequestTalk(id) }
	case "investigate":
		id := resolve(app.clues, target)
		return func() flow.Result { return f.RequestDiscoverClue(id) }
	default:
		id := resolve(app.people, target)
		return func() flow.Result { return f.RequestAccuse(id) }
	}
}
