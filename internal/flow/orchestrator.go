// Package flow validates player actions and settles them across the game components.
//
// Every action runs the same pipeline: guard (phase, points), re-check the domain rules right before committing,
// delegate to the owning component, spend the points, then settle what the action implies: unlocked locations,
// chapter completion and resource exhaustion. A refused action changes nothing and reports a Refusal instead of an
// error. The Orchestrator is the only place that mutates more than one component in a single action.
package flow

import (
	"log/slog"

	"github.com/myrjola/casefile/internal/affinity"
	"github.com/myrjola/casefile/internal/clues"
	"github.com/myrjola/casefile/internal/dialogue"
	"github.com/myrjola/casefile/internal/economy"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/event"
	"github.com/myrjola/casefile/internal/flags"
	"github.com/myrjola/casefile/internal/location"
	"github.com/myrjola/casefile/internal/state"
)

var ErrCorruptSnapshot = errors.NewSentinel("corrupt flow snapshot")

// Metrics records the outcome of settled actions.
type Metrics interface {
	RecordAction(action string, outcome string, cost int)
}

// Components are the parts of the game the orchestrator coordinates.
type Components struct {
	State     *state.Authority
	Economy   *economy.Economy
	Dialogue  *dialogue.Engine
	Clues     *clues.Ledger
	Locations *location.Catalog
	Affinity  *affinity.Ledger
}

type Orchestrator struct {
	cfg Config
	Components
	bus     *event.Bus
	logger  *slog.Logger
	metrics Metrics

	busy             bool
	exhaustedPending bool
	actionsInChapter int
	accused          string
	ending           *Ending
	cutscene         string
}

func New(cfg Config, components Components, bus *event.Bus, logger *slog.Logger, metrics Metrics) *Orchestrator {
	if cfg.Exhaustion == "" {
		cfg.Exhaustion = ExhaustionHalt
	}
	if cfg.RestRecovery <= 0 {
		cfg.RestRecovery = DefaultRestRecovery
	}
	if cfg.Endings == (EndingThresholds{}) {
		cfg.Endings = DefaultEndingThresholds()
	}
	o := &Orchestrator{
		cfg:        cfg,
		Components: components,
		bus:        bus,
		logger:     logger.With("source", "FlowOrchestrator"),
		metrics:    metrics,
	}
	bus.Subscribe(o.handle)
	return o
}

// handle only takes notes. Reactions happen once the current action settles.
func (o *Orchestrator) handle(e event.Event) {
	if _, ok := e.(event.PointsExhausted); ok {
		o.exhaustedPending = true
	}
}

// run executes one player action. A request arriving while another action is still being processed, e.g., from an
// event handler, is refused as busy.
func (o *Orchestrator) run(action Action, act func(res *Result) *Refusal) Result {
	res := Result{Action: action}
	if o.busy {
		return o.refused(res, refuse(CodeBusy, "another action is in progress"))
	}
	o.busy = true
	defer func() {
		o.busy = false
	}()
	if refusal := act(&res); refusal != nil {
		return o.refused(res, refusal)
	}
	if res.Cost > 0 {
		o.actionsInChapter++
	}
	o.settle(&res)
	o.record(action, "ok", res.Cost)
	return res
}

func (o *Orchestrator) refused(res Result, refusal *Refusal) Result {
	res.Refusal = refusal
	res.Cost = 0
	o.logger.Debug("action refused", slog.String("action", string(res.Action)),
		slog.String("code", string(refusal.Code)), slog.String("reason", refusal.Reason))
	o.bus.Publish(event.ActionRefused{Action: string(res.Action), Code: string(refusal.Code), Reason: refusal.Reason})
	o.record(res.Action, string(refusal.Code), 0)
	return res
}

func (o *Orchestrator) record(action Action, outcome string, cost int) {
	if o.metrics != nil {
		o.metrics.RecordAction(string(action), outcome, cost)
	}
}

// guard checks the phase and affordability of an action.
func (o *Orchestrator) guard(action Action, cost int) *Refusal {
	if o.ending != nil {
		return refuse(CodeGameOver, "the case is closed")
	}
	if p := o.State.Phase(); o.cfg.blocked(action, p) {
		return refuse(CodeWrongPhase, "can't %s during %s", action, p)
	}
	return o.afford(cost)
}

func (o *Orchestrator) afford(cost int) *Refusal {
	if cost <= 0 || o.Economy.HasEnough(cost) {
		return nil
	}
	if o.Economy.Current() == 0 {
		return refuse(CodeExhausted, "no action points left, rest or move on to the next chapter")
	}
	return refuse(CodeInsufficientPoints, "needs %d action points, %d left", cost, o.Economy.Current())
}

// spend commits the cost of an action. Callers have checked affordability, so a failure here means the points changed
// between guard and commit.
func (o *Orchestrator) spend(res *Result, cost int) *Refusal {
	if cost <= 0 {
		return nil
	}
	if err := o.Economy.Consume(cost); err != nil {
		o.logger.Debug("spend refused at commit", errors.SlogError(err))
		return o.afford(cost)
	}
	res.Cost = cost
	return nil
}

// settle applies the consequences of an accepted action.
func (o *Orchestrator) settle(res *Result) {
	o.Locations.UnlockByFlags(o.State.HasFlag)
	if id := o.checkChapterCompletion(); id != "" {
		res.ChapterCompleted = id
	}
	// A conversation the player paid for runs to its end before exhaustion is handled.
	if o.exhaustedPending && !o.Dialogue.Active() {
		o.exhaustedPending = false
		o.onExhausted(res)
	}
	if res.Ending == nil && o.ending != nil {
		res.Ending = o.ending
	}
}

// checkChapterCompletion completes the current chapter once its required clues are discovered and the minimum number
// of costed actions was taken. It returns the id of the chapter completed now.
func (o *Orchestrator) checkChapterCompletion() string {
	ch := o.State.Chapter()
	if o.State.HasFlag(flags.ChapterComplete(ch.ID)) {
		return ""
	}
	if len(o.Clues.Missing(ch.RequiredClues)) > 0 || o.actionsInChapter < ch.MinActions {
		return ""
	}
	o.State.AddFlag(flags.ChapterComplete(ch.ID))
	o.logger.Info("chapter completed", slog.String("chapter", ch.ID))
	o.bus.Publish(event.ChapterCompleted{Chapter: ch.ID})
	return ch.ID
}

// ChapterComplete reports whether the current chapter has been completed.
func (o *Orchestrator) ChapterComplete() bool {
	return o.State.HasFlag(flags.ChapterComplete(o.State.ChapterID()))
}

func (o *Orchestrator) onExhausted(res *Result) {
	chapter := o.State.ChapterID()
	o.bus.Publish(event.ResourceExhausted{Chapter: chapter, Policy: string(o.cfg.Exhaustion)})
	if o.cfg.Exhaustion != ExhaustionAdvance || o.ending != nil {
		return
	}
	if o.State.IsTerminal() {
		res.Ending = o.closeCase("")
		return
	}
	o.advanceChapter()
}

func (o *Orchestrator) advanceChapter() {
	if o.Dialogue.Active() {
		o.Dialogue.End()
	}
	if err := o.State.AdvanceChapter(); err != nil {
		o.logger.Error("advance chapter", errors.SlogError(err))
		return
	}
	o.actionsInChapter = 0
	o.State.SetPhase(state.PhaseExploration)
}

// closeCase determines the ending. An empty accused means the case ran out without an accusation.
func (o *Orchestrator) closeCase(accused string) *Ending {
	if o.Dialogue.Active() {
		o.Dialogue.End()
	}
	correct := accused != "" && accused == o.cfg.Culprit
	in := EndingInput{
		CorrectCulprit: correct,
		ClueRatio:      o.Clues.CompletionRatio(),
		MeanAffinity:   o.Affinity.Mean(o.Dialogue.NPCs()),
	}
	ending := &Ending{
		Tier:           DetermineEnding(in, o.cfg.Endings),
		Accused:        accused,
		CorrectCulprit: correct,
		ClueRatio:      in.ClueRatio,
		MeanAffinity:   in.MeanAffinity,
	}
	o.accused = accused
	o.ending = ending
	o.State.SetPhase(state.PhaseEnding)
	o.logger.Info("case closed", slog.String("tier", string(ending.Tier)), slog.String("accused", accused))
	o.bus.Publish(event.EndingReached{
		Tier:           string(ending.Tier),
		Accused:        accused,
		CorrectCulprit: correct,
		ClueRatio:      ending.ClueRatio,
		MeanAffinity:   ending.MeanAffinity,
	})
	return ending
}

// Ending returns the ending reached, or nil while the case is open.
func (o *Orchestrator) Ending() *Ending {
	return o.ending
}

func (o *Orchestrator) Accused() string {
	return o.accused
}

// ActionsInChapter is the number of costed actions taken in the current chapter.
func (o *Orchestrator) ActionsInChapter() int {
	return o.actionsInChapter
}

// Cutscene returns the cutscene playing, if any.
func (o *Orchestrator) Cutscene() string {
	return o.cutscene
}

func (o *Orchestrator) Config() Config {
	return o.cfg
}

func (o *Orchestrator) Reset() {
	o.busy = false
	o.exhaustedPending = false
	o.actionsInChapter = 0
	o.accused = ""
	o.ending = nil
	o.cutscene = ""
}

type Snapshot struct {
	ActionsInChapter int     `json:"actions_in_chapter"`
	Accused          string  `json:"accused,omitempty"`
	Ending           *Ending `json:"ending,omitempty"`
	Cutscene         string  `json:"cutscene,omitempty"`
	ExhaustedPending bool    `json:"exhausted_pending,omitempty"`
}

func (o *Orchestrator) Snapshot() Snapshot {
	s := Snapshot{
		ActionsInChapter: o.actionsInChapter,
		Accused:          o.accused,
		Cutscene:         o.cutscene,
		ExhaustedPending: o.exhaustedPending,
	}
	if o.ending != nil {
		ending := *o.ending
		s.Ending = &ending
	}
	return s
}

func (o *Orchestrator) Validate(s Snapshot) error {
	if s.ActionsInChapter < 0 {
		return errors.Wrap(ErrCorruptSnapshot, "negative action count", slog.Int("actions", s.ActionsInChapter))
	}
	if s.Ending != nil {
		switch s.Ending.Tier {
		case TrueEnding, GoodEnding, NormalEnding, BadEnding:
		default:
			return errors.Wrap(ErrCorruptSnapshot, "unknown ending tier", slog.String("tier", string(s.Ending.Tier)))
		}
	}
	return nil
}

func (o *Orchestrator) Restore(s Snapshot) error {
	if err := o.Validate(s); err != nil {
		return err
	}
	o.Reset()
	o.actionsInChapter = s.ActionsInChapter
	o.accused = s.Accused
	o.cutscene = s.Cutscene
	o.exhaustedPending = s.ExhaustedPending
	if s.Ending != nil {
		ending := *s.Ending
		o.ending = &ending
	}
	return nil
}
