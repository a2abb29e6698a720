package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/myrjola/casefile/internal/chat"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/flow"
	"github.com/myrjola/casefile/internal/logging"
)

const (
	// replyTimeout bounds producing a free-form reply, which outlives the request that asked for it.
	replyTimeout = 30 * time.Second
	// streamPollInterval is how often the stream looks for a reply that hasn't been published yet.
	streamPollInterval = 20 * time.Millisecond
)

var errNoModel = errors.NewSentinel("no conversation model configured")

// replies tracks the free-form replies being produced and the last reply of every conversation. Every question gets
// a token so that a reply finishing after the game was replaced can't answer a newer question.
type replies struct {
	mu      sync.Mutex
	tokens  uint64
	pending map[string]pendingReply
	last    map[string]string
	wg      sync.WaitGroup
}

type pendingReply struct {
	token uint64
	done  chan struct{}
}

func newReplies() *replies {
	return &replies{
		pending: map[string]pendingReply{},
		last:    map[string]string{},
	}
}

// begin registers a question in conversation id and returns its token.
func (r *replies) begin(id string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pending[id]; ok {
		close(p.done)
	}
	r.tokens++
	r.pending[id] = pendingReply{token: r.tokens, done: make(chan struct{})}
	delete(r.last, id)
	r.wg.Add(1)
	return r.tokens
}

// current reports whether token belongs to the question still waiting for its reply in conversation id.
func (r *replies) current(id string, token uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	return ok && p.token == token
}

// finish records the reply to the question with token. Replies to questions that are no longer current are dropped.
func (r *replies) finish(id string, token uint64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.wg.Done()
	p, ok := r.pending[id]
	if !ok || p.token != token {
		return
	}
	r.last[id] = text
	close(p.done)
	delete(r.pending, id)
}

// invalidate forgets every question and reply when the game is replaced.
func (r *replies) invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pending {
		close(p.done)
	}
	clear(r.pending)
	clear(r.last)
}

// lookup returns a channel closed once the reply of conversation id is finished.
func (r *replies) lookup(id string) (<-chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pending[id]; ok {
		return p.done, true
	}
	if _, ok := r.last[id]; ok {
		done := make(chan struct{})
		close(done)
		return done, true
	}
	return nil, false
}

func (r *replies) text(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[id]
}

func (r *replies) wait() {
	r.wg.Wait()
}

type dialogueRequest struct {
	// Index is the position of the choice among the presented choices.
	Index int    `json:"index"`
	Text  string `json:"text"`
}

func (app *application) dialogue(w http.ResponseWriter, r *http.Request) {
	var req dialogueRequest
	if err := readJSON(r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	f := app.engine.Flow

	var act func() flow.Result
	switch op := r.PathValue("op"); op {
	case "advance":
		act = f.Advance
	case "choose":
		act = func() flow.Result { return f.SelectChoice(req.Index) }
	case "end":
		act = f.EndDialogue
	case "say":
		app.say(w, r, req.Text)
		return
	default:
		app.notFound(w, r, "unknown dialogue operation "+op)
		return
	}

	app.mu.Lock()
	defer app.mu.Unlock()
	res, events := app.perform(act)
	app.respond(w, r, actionResponse{Result: res, Events: events, State: app.stateView()})
}

// say asks the character a free-form question. Without a conversation model the fallback reply is given at once,
// otherwise the reply is produced in the background and can be followed on the stream.
func (app *application) say(w http.ResponseWriter, r *http.Request, text string) {
	app.mu.Lock()
	defer app.mu.Unlock()

	res, events := app.perform(func() flow.Result { return app.engine.Flow.BeginFreeform(text) })
	if res.Freeform == nil {
		app.respond(w, r, actionResponse{Result: res, Events: events, State: app.stateView()})
		return
	}
	question := *res.Freeform
	id := chat.ConversationID(slot, question.NPC)
	token := app.replies.begin(id)

	if app.bridge == nil {
		completed, more := app.perform(func() flow.Result { return app.engine.Flow.CompleteFreeform("", errNoModel) })
		app.replies.finish(id, token, chat.Fallback)
		completed.Freeform = res.Freeform
		app.respond(w, r, actionResponse{Result: completed, Events: append(events, more...), State: app.stateView()})
		return
	}

	// The reply outlives this request but keeps its log attributes.
	ctx := logging.WithAttrs(context.WithoutCancel(r.Context()), slog.String("conversation", id))
	go app.produceReply(ctx, id, token, chat.NewRequest(app.engine.Case, slot, question))

	app.respond(w, r, actionResponse{
		Result: res,
		Events: events,
		State:  app.stateView(),
		Stream: "/api/dialogue/stream?npc=" + url.QueryEscape(question.NPC),
	})
}

func (app *application) produceReply(ctx context.Context, id string, token uint64, req chat.Request) {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	reply, err := app.bridge.Reply(ctx, req)
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelWarn, "free-form reply failed", errors.SlogError(err))
	}

	app.mu.Lock()
	if !app.replies.current(id, token) {
		app.mu.Unlock()
		app.logger.LogAttrs(ctx, slog.LevelInfo, "reply dropped, the game was replaced")
		app.replies.finish(id, token, reply)
		return
	}
	res := app.engine.Flow.CompleteFreeform(reply, err)
	app.mu.Unlock()
	if res.Refusal != nil {
		// The conversation was left while the reply was written.
		app.logger.LogAttrs(ctx, slog.LevelInfo, "reply arrived too late", slog.String("reason", res.Refusal.Reason))
	}
	app.replies.finish(id, token, reply)
}

type chunkEvent struct {
	Text string `json:"text"`
}

// streamReply follows the reply to the last free-form question as server-sent events: "chunk" events while it is
// written and one "done" event with the full reply.
func (app *application) streamReply(w http.ResponseWriter, r *http.Request) {
	npc := r.URL.Query().Get("npc")
	if npc == "" {
		app.mu.Lock()
		if session, ok := app.engine.Dialogue.Session(); ok {
			npc = session.NPC
		}
		app.mu.Unlock()
	}
	id := chat.ConversationID(slot, npc)
	done, ok := app.replies.lookup(id)
	if !ok {
		app.notFound(w, r, "no reply to stream")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		app.serverError(w, r, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	if !app.relayChunks(ctx, w, flusher, id, done) {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
		return
	}
	writeEvent(w, flusher, "done", chunkEvent{Text: app.replies.text(id)})
}

// relayChunks forwards the chunks of the reply in conversation id until the producer finishes. It returns false when
// the client went away.
func (app *application) relayChunks(
	ctx context.Context,
	w http.ResponseWriter,
	flusher http.Flusher,
	id string,
	done <-chan struct{},
) bool {
	for {
		if app.streams.Published(id) {
			if chunks, ok := <-app.streams.Subscribe(id); ok {
				return forwardChunks(ctx, w, flusher, chunks)
			}
		}
		// Not published yet, already finished, or someone else is streaming it.
		select {
		case <-done:
			return true
		case <-ctx.Done():
			return false
		case <-time.After(streamPollInterval):
		}
	}
}

func forwardChunks(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, chunks <-chan string) bool {
	for {
		select {
		case chunk, more := <-chunks:
			if !more {
				return true
			}
			writeEvent(w, flusher, "chunk", chunkEvent{Text: chunk})
		case <-ctx.Done():
			return false
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, name string, v any) {
	data, _ := json.Marshal(v)
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	flusher.Flush()
}
