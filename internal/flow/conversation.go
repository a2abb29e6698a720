package flow

import (
	"github.com/myrjola/casefile/internal/dialogue"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/state"
)

// inConversation refuses dialogue actions outside of an active conversation.
func (o *Orchestrator) inConversation() *Refusal {
	if o.ending != nil {
		return refuse(CodeGameOver, "the case is closed")
	}
	if o.State.Phase() != state.PhaseDialogue || !o.Dialogue.Active() {
		return refuse(CodeWrongPhase, "you are not talking to anyone")
	}
	return nil
}

// Advance shows the next line of the active conversation.
func (o *Orchestrator) Advance() Result {
	return o.run(ActionAdvanceDialogue, func(res *Result) *Refusal {
		if r := o.inConversation(); r != nil {
			return r
		}
		session, _ := o.Dialogue.Session()
		switch {
		case session.AwaitingReply:
			return refuse(CodeInvalid, "waiting for an answer")
		case session.AwaitingChoice:
			return refuse(CodeInvalid, "choose what to say first")
		}
		o.Dialogue.Advance()
		return nil
	})
}

// SelectChoice picks the available choice at index and reveals the relations it uncovers.
func (o *Orchestrator) SelectChoice(index int) Result {
	return o.run(ActionChoose, func(res *Result) *Refusal {
		if r := o.inConversation(); r != nil {
			return r
		}
		available := o.Dialogue.PresentChoices()
		if err := o.Dialogue.SelectChoice(index); err != nil {
			return dialogueRefusal(err)
		}
		for _, rel := range available[index].Choice.Reveals {
			o.Clues.SetRelation(rel.A, rel.B, rel.Label)
		}
		return nil
	})
}

// EndDialogue leaves the active conversation. Ending when no conversation is active is accepted and does nothing.
func (o *Orchestrator) EndDialogue() Result {
	return o.run(ActionEndDialogue, func(res *Result) *Refusal {
		o.Dialogue.End()
		return nil
	})
}

// BeginFreeform asks the character an unscripted question. The returned request must be answered with
// CompleteFreeform before the conversation can continue.
func (o *Orchestrator) BeginFreeform(text string) Result {
	return o.run(ActionAsk, func(res *Result) *Refusal {
		if r := o.inConversation(); r != nil {
			return r
		}
		req, err := o.Dialogue.BeginFreeform(text)
		if err != nil {
			return dialogueRefusal(err)
		}
		res.Freeform = &req
		return nil
	})
}

// CompleteFreeform shows the answer to the pending free-form question, or a fallback when replyErr is set.
func (o *Orchestrator) CompleteFreeform(reply string, replyErr error) Result {
	return o.run(ActionReply, func(res *Result) *Refusal {
		if r := o.inConversation(); r != nil {
			return r
		}
		if err := o.Dialogue.CompleteFreeform(reply, replyErr); err != nil {
			return dialogueRefusal(err)
		}
		return nil
	})
}

func dialogueRefusal(err error) *Refusal {
	switch {
	case errors.Is(err, dialogue.ErrChoiceOutOfRange):
		return refuse(CodeInvalid, "there is no such choice")
	case errors.Is(err, dialogue.ErrNotAwaitingChoice):
		return refuse(CodeInvalid, "there is nothing to choose yet")
	case errors.Is(err, dialogue.ErrReplyPending):
		return refuse(CodeBusy, "waiting for an answer")
	case errors.Is(err, dialogue.ErrNoPendingReply):
		return refuse(CodeInvalid, "no question is waiting for an answer")
	case errors.Is(err, dialogue.ErrEmptyText):
		return refuse(CodeInvalid, "say something")
	case errors.Is(err, dialogue.ErrNoSession):
		return refuse(CodeWrongPhase, "you are not talking to anyone")
	default:
		return refuse(CodeInvalid, "%s", err.Error())
	}
}
