package chat

import (
	"fmt"

	"github.com/myrjola/casefile/internal/content"
	"github.com/myrjola/casefile/internal/dialogue"
	"github.com/myrjola/casefile/internal/repositories"
	"github.com/sashabaranov/go-openai"
)

// Fallback is returned when no reply could be produced.
const Fallback = dialogue.FallbackReply

const rules = `Stay in character. Answer in at most three sentences. Never reveal that you are an AI. ` +
	`If you are asked about something you could not know, say so in character.`

// Messages builds the chat for the model: the persona, the earlier exchanges and the new question.
func Messages(req Request, history []repositories.Exchange) []openai.ChatCompletionMessage {
	// The system prompt and the question come on top of the history.
	messages := make([]openai.ChatCompletionMessage, 0, 2+2*len(history))
	messages = append(messages, openai.ChatCompletionMessage{ //nolint:exhaustruct // this is better for readability
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf("%s\n\n%s", req.Persona, rules),
	})
	for _, exchange := range history {
		messages = append(messages,
			openai.ChatCompletionMessage{ //nolint:exhaustruct // this is better for readability
				Role:    openai.ChatMessageRoleUser,
				Content: exchange.Question,
			},
			openai.ChatCompletionMessage{ //nolint:exhaustruct // this is better for readability
				Role:    openai.ChatMessageRoleAssistant,
				Content: exchange.Answer,
			},
		)
	}
	return append(messages, openai.ChatCompletionMessage{ //nolint:exhaustruct // this is better for readability
		Role:    openai.ChatMessageRoleUser,
		Content: req.PlayerText,
	})
}

// NewRequest prepares the question the dialogue suspended on for the character it was put to.
func NewRequest(c *content.Case, slot string, q dialogue.FreeformRequest) Request {
	return Request{
		Slot:       slot,
		NPC:        q.NPC,
		Persona:    persona(c, q.NPC),
		PlayerText: q.PlayerText,
	}
}

func persona(c *content.Case, npc string) string {
	ch, ok := c.Character(npc)
	switch {
	case !ok:
		return fmt.Sprintf("You are %s, a witness in the case %q.", npc, c.Meta.Title)
	case ch.Persona != "":
		return ch.Persona
	default:
		return fmt.Sprintf("You are %s in the case %q. %s", ch.Name, c.Meta.Title, ch.Description)
	}
}
