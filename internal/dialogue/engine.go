// Package dialogue walks the player through scripted conversations.
//
// Only one conversation is active at a time. A session moves through the lines of a node, then either presents the
// choices whose conditions currently pass, follows the node's next reference, or ends. Free-form questions typed by
// the player are handed to an external text producer; the engine only suspends the session until the reply arrives.
package dialogue

import (
	"log/slog"
	"strings"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/event"
	"github.com/myrjola/casefile/internal/flags"
	"github.com/myrjola/casefile/internal/state"
)

var (
	ErrSessionActive     = errors.NewSentinel("a conversation is already active")
	ErrNoSession         = errors.NewSentinel("no active conversation")
	ErrUnknownNPC        = errors.NewSentinel("character has no dialogue")
	ErrNodeUnavailable   = errors.NewSentinel("dialogue node unavailable")
	ErrNotAwaitingChoice = errors.NewSentinel("not awaiting a choice")
	ErrChoiceOutOfRange  = errors.NewSentinel("choice out of range")
	ErrReplyPending      = errors.NewSentinel("waiting for a reply")
	ErrNoPendingReply    = errors.NewSentinel("no reply pending")
	ErrEmptyText         = errors.NewSentinel("empty text")
	ErrCorruptSnapshot   = errors.NewSentinel("corrupt dialogue snapshot")
)

const (
	// DefaultGreeting replaces a conversation that can't start when the character has no greeting of their own.
	DefaultGreeting = "They have nothing to say to you right now."
	// FallbackReply is shown when a free-form question could not be answered.
	FallbackReply = "They look at you blankly and say nothing."
)

// World is the game state conversations read conditions from and write flags and the phase to.
type World interface {
	HasFlag(flag string) bool
	HasAllFlags(required []string) bool
	HasAnyFlag(forbidden []string) bool
	AddFlag(flag string) bool
	RemoveFlag(flag string) bool
	ChapterID() string
	TimeSlot() state.TimeSlot
	SetPhase(p state.Phase)
}

type Affinity interface {
	Adjust(npc string, delta int) int
}

// Session is the transient state of the active conversation.
type Session struct {
	NPC  string `json:"npc"`
	Node string `json:"node"`
	Line int    `json:"line"`
	// AwaitingChoice is true once the lines of the node are exhausted and choices were presented.
	AwaitingChoice bool `json:"awaiting_choice"`
	// AwaitingReply is true while a free-form question is being answered.
	AwaitingReply bool `json:"awaiting_reply"`
}

type AvailableChoice struct {
	// Index is the position among the available choices.
	Index int
	// NodeIndex is the position in the node's full choice list.
	NodeIndex int
	Choice    Choice
}

// FreeformRequest is what the external text producer needs to answer the player.
type FreeformRequest struct {
	NPC        string
	PlayerText string
}

type Engine struct {
	catalog   *Catalog
	world     World
	affinity  Affinity
	greetings func(npc string) string
	session   *Session
	bus       *event.Bus
	logger    *slog.Logger
}

// NewEngine creates an idle engine. greetings returns the fallback line of a character and may be nil.
func NewEngine(
	catalog *Catalog,
	world World,
	affinity Affinity,
	greetings func(npc string) string,
	bus *event.Bus,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		catalog:   catalog,
		world:     world,
		affinity:  affinity,
		greetings: greetings,
		bus:       bus,
		logger:    logger.With("source", "DialogueEngine"),
	}
}

func (e *Engine) Active() bool {
	return e.session != nil
}

// Session returns a copy of the active session.
func (e *Engine) Session() (Session, bool) {
	if e.session == nil {
		return Session{}, false
	}
	return *e.session, true
}

// CanStart reports why a conversation with npc at node can't start, without side effects.
func (e *Engine) CanStart(npc, node string) error {
	if e.session != nil {
		return errors.Wrap(ErrSessionActive, "start dialogue", slog.String("active_npc", e.session.NPC))
	}
	if !e.catalog.HasNPC(npc) {
		return errors.Wrap(ErrUnknownNPC, "start dialogue", slog.String("npc", npc))
	}
	n, ok := e.catalog.Node(npc, node)
	if !ok {
		return errors.Wrap(ErrNodeUnavailable, "node does not exist", slog.String("npc", npc), slog.String("node", node))
	}
	if reason := e.unmet(n.Conditions); reason != "" {
		return errors.Wrap(ErrNodeUnavailable, reason, slog.String("npc", npc), slog.String("node", node))
	}
	return nil
}

// Start opens a conversation with npc at node. When the node is missing or its conditions fail the character's
// greeting is shown instead through DialogueFallback and no session is created.
func (e *Engine) Start(npc, node string) error {
	if node == "" {
		node = StartNode
	}
	if err := e.CanStart(npc, node); err != nil {
		if errors.Is(err, ErrNodeUnavailable) {
			e.bus.Publish(event.DialogueFallback{NPC: npc, Text: e.greeting(npc), Reason: err.Error()})
		}
		return err
	}
	e.session = &Session{NPC: npc, Node: node}
	e.world.SetPhase(state.PhaseDialogue)
	e.world.AddFlag(flags.Talked(npc, e.world.ChapterID()))
	e.bus.Publish(event.DialogueStarted{NPC: npc, Node: node})
	e.enter(node, 0)
	return nil
}

func (e *Engine) greeting(npc string) string {
	if e.greetings != nil {
		if g := e.greetings(npc); g != "" {
			return g
		}
	}
	return DefaultGreeting
}

// unmet returns a description of the first failing condition, or an empty string.
func (e *Engine) unmet(c Conditions) string {
	switch {
	case !e.world.HasAllFlags(c.RequiredFlags):
		return "required flags missing"
	case e.world.HasAnyFlag(c.ForbiddenFlags):
		return "forbidden flag set"
	case c.Chapter != "" && c.Chapter != e.world.ChapterID():
		return "wrong chapter"
	case c.TimeSlot != "" && c.TimeSlot != e.world.TimeSlot().String():
		return "wrong time slot"
	default:
		return ""
	}
}

// enter moves the session to node and shows its first line. hops guards against cycles of nodes without lines.
func (e *Engine) enter(id string, hops int) {
	n, _ := e.catalog.Node(e.session.NPC, id)
	e.session.Node = id
	e.session.Line = 0
	e.session.AwaitingChoice = false
	if len(n.Lines) == 0 {
		e.finishNode(n, hops+1)
		return
	}
	e.showLine(n, 0)
}

func (e *Engine) showLine(n Node, i int) {
	line := n.Lines[i]
	if line.SetFlag != "" {
		e.world.AddFlag(line.SetFlag)
	}
	e.bus.Publish(event.LineShown{
		NPC:     e.session.NPC,
		Node:    n.ID,
		Index:   i,
		Speaker: line.Speaker,
		Text:    line.Text,
		Emotion: line.Emotion,
		Sound:   line.Sound,
	})
}

// finishNode runs once the lines of n have been shown.
func (e *Engine) finishNode(n Node, hops int) {
	if len(n.Choices) == 0 {
		e.follow(n.Next, hops)
		return
	}
	available := e.available(n)
	if len(available) == 0 {
		e.logger.Debug("no available choices, ending dialogue", slog.String("npc", e.session.NPC),
			slog.String("node", n.ID))
		e.End()
		return
	}
	e.session.AwaitingChoice = true
	views := make([]event.ChoiceView, len(available))
	for i, a := range available {
		views[i] = event.ChoiceView{Index: a.Index, Text: a.Choice.Text}
	}
	e.bus.Publish(event.ChoicesPresented{NPC: e.session.NPC, Node: n.ID, Choices: views})
}

// follow continues the conversation at next, ending it when there is no next node or its conditions fail.
func (e *Engine) follow(next string, hops int) {
	if next == "" {
		e.End()
		return
	}
	n, ok := e.catalog.Node(e.session.NPC, next)
	if !ok || hops > len(e.catalog.graphs[e.session.NPC]) {
		e.logger.Error("dialogue cannot continue", slog.String("npc", e.session.NPC), slog.String("node", next))
		e.End()
		return
	}
	if reason := e.unmet(n.Conditions); reason != "" {
		e.logger.Debug("next node conditions unmet, ending dialogue", slog.String("npc", e.session.NPC),
			slog.String("node", next), slog.String("reason", reason))
		e.End()
		return
	}
	e.enter(next, hops)
}

func (e *Engine) available(n Node) []AvailableChoice {
	var available []AvailableChoice
	for i, ch := range n.Choices {
		if !e.world.HasAllFlags(ch.RequiredFlags) || e.world.HasAnyFlag(ch.ForbiddenFlags) {
			continue
		}
		available = append(available, AvailableChoice{Index: len(available), NodeIndex: i, Choice: ch})
	}
	return available
}

// CurrentLine returns the line on display.
func (e *Engine) CurrentLine() (Line, bool) {
	if e.session == nil || e.session.AwaitingChoice {
		return Line{}, false
	}
	n, _ := e.catalog.Node(e.session.NPC, e.session.Node)
	if e.session.Line >= len(n.Lines) {
		return Line{}, false
	}
	return n.Lines[e.session.Line], true
}

// Advance shows the next line, or settles the node once its lines are exhausted. It does nothing and returns false
// when idle, awaiting a choice or waiting for a free-form reply.
func (e *Engine) Advance() bool {
	switch {
	case e.session == nil:
		e.logger.Warn("advance without active dialogue")
		return false
	case e.session.AwaitingChoice:
		e.logger.Warn("advance while awaiting choice", slog.String("npc", e.session.NPC))
		return false
	case e.session.AwaitingReply:
		e.logger.Warn("advance while awaiting reply", slog.String("npc", e.session.NPC))
		return false
	}
	n, _ := e.catalog.Node(e.session.NPC, e.session.Node)
	if e.session.Line+1 < len(n.Lines) {
		e.session.Line++
		e.showLine(n, e.session.Line)
		return true
	}
	e.finishNode(n, 0)
	return true
}

// PresentChoices returns the choices that can be selected right now.
func (e *Engine) PresentChoices() []AvailableChoice {
	if e.session == nil || !e.session.AwaitingChoice {
		return nil
	}
	n, _ := e.catalog.Node(e.session.NPC, e.session.Node)
	return e.available(n)
}

// SelectChoice picks the available choice at index, applies its flag changes and affinity change, and continues
// with its next node.
func (e *Engine) SelectChoice(index int) error {
	if e.session == nil {
		return ErrNoSession
	}
	if e.session.AwaitingReply {
		return ErrReplyPending
	}
	if !e.session.AwaitingChoice {
		return ErrNotAwaitingChoice
	}
	available := e.PresentChoices()
	if index < 0 || index >= len(available) {
		return errors.Wrap(ErrChoiceOutOfRange, "select choice",
			slog.Int("index", index), slog.Int("available", len(available)))
	}
	picked := available[index].Choice
	npc, node := e.session.NPC, e.session.Node
	if picked.SetFlag != "" {
		e.world.AddFlag(picked.SetFlag)
	}
	if picked.ClearFlag != "" {
		e.world.RemoveFlag(picked.ClearFlag)
	}
	if picked.AffinityDelta != 0 && e.affinity != nil {
		e.affinity.Adjust(npc, picked.AffinityDelta)
	}
	e.session.AwaitingChoice = false
	e.bus.Publish(event.ChoiceSelected{NPC: npc, Node: node, Index: index, Text: picked.Text})
	e.follow(picked.Next, 0)
	return nil
}

// End closes the active conversation and returns to exploration. Calling it while idle does nothing.
func (e *Engine) End() {
	if e.session == nil {
		return
	}
	npc := e.session.NPC
	e.session = nil
	e.world.SetPhase(state.PhaseExploration)
	e.bus.Publish(event.DialogueEnded{NPC: npc})
}

// BeginFreeform suspends the session until CompleteFreeform is called with the reply to text.
func (e *Engine) BeginFreeform(text string) (FreeformRequest, error) {
	text = strings.TrimSpace(text)
	switch {
	case e.session == nil:
		return FreeformRequest{}, ErrNoSession
	case e.session.AwaitingReply:
		return FreeformRequest{}, ErrReplyPending
	case text == "":
		return FreeformRequest{}, ErrEmptyText
	}
	e.session.AwaitingReply = true
	e.bus.Publish(event.FreeformRequested{NPC: e.session.NPC, PlayerText: text})
	return FreeformRequest{NPC: e.session.NPC, PlayerText: text}, nil
}

// CompleteFreeform shows reply and resumes the session. When producing the reply failed, FallbackReply is shown
// instead. The reply is displayed as is.
func (e *Engine) CompleteFreeform(reply string, replyErr error) error {
	if e.session == nil {
		return ErrNoSession
	}
	if !e.session.AwaitingReply {
		return ErrNoPendingReply
	}
	e.session.AwaitingReply = false
	fallback := replyErr != nil || strings.TrimSpace(reply) == ""
	if fallback {
		if replyErr != nil {
			e.logger.Warn("free-form reply failed", slog.String("npc", e.session.NPC), errors.SlogError(replyErr))
		}
		reply = FallbackReply
	}
	e.bus.Publish(event.FreeformReplied{NPC: e.session.NPC, Text: reply, Fallback: fallback})
	return nil
}

// Reset drops the active session without events, for starting a new game.
func (e *Engine) Reset() {
	e.session = nil
}

type Snapshot struct {
	Session *Session `json:"session,omitempty"`
}

func (e *Engine) Snapshot() Snapshot {
	if e.session == nil {
		return Snapshot{}
	}
	s := *e.session
	// A pending reply is owned by the caller and is not part of the saved game.
	s.AwaitingReply = false
	return Snapshot{Session: &s}
}

func (e *Engine) Validate(s Snapshot) error {
	if s.Session == nil {
		return nil
	}
	n, ok := e.catalog.Node(s.Session.NPC, s.Session.Node)
	if !ok {
		return errors.Wrap(ErrCorruptSnapshot, "unknown node",
			slog.String("npc", s.Session.NPC), slog.String("node", s.Session.Node))
	}
	if s.Session.Line < 0 || s.Session.Line >= max(len(n.Lines), 1) {
		return errors.Wrap(ErrCorruptSnapshot, "line out of range", slog.Int("line", s.Session.Line))
	}
	if s.Session.AwaitingChoice && len(n.Choices) == 0 {
		return errors.Wrap(ErrCorruptSnapshot, "awaiting choice on a node without choices")
	}
	return nil
}

func (e *Engine) Restore(s Snapshot) error {
	if err := e.Validate(s); err != nil {
		return err
	}
	if s.Session == nil {
		e.session = nil
		return nil
	}
	restored := *s.Session
	restored.AwaitingReply = false
	e.session = &restored
	return nil
}

// HasGraph reports whether npc can be talked to at all.
func (e *Engine) HasGraph(npc string) bool {
	return e.catalog.HasNPC(npc)
}

// HasNode reports whether the graph of npc contains node.
func (e *Engine) HasNode(npc, node string) bool {
	_, ok := e.catalog.Node(npc, node)
	return ok
}

// NPCs lists the characters that have dialogue.
func (e *Engine) NPCs() []string {
	return e.catalog.NPCs()
}
