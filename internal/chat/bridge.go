// Package chat answers free-form questions put to characters with a chat completion model.
//
// Each save slot keeps its own conversation with every character in the transcript repository, so the model sees
// what was said before. While a reply is generated its chunks are published in the broker under [ConversationID] so
// that one consumer can display it as it is being written.
package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/casefile/internal/ai"
	"github.com/myrjola/casefile/internal/broker"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/repositories"
)

// DefaultConsumerTimeout is how long a chunk waits for a consumer before streaming is abandoned.
const DefaultConsumerTimeout = 10 * time.Second

var ErrEmptyReply = errors.NewSentinel("model returned an empty reply")

type Request struct {
	Slot string
	NPC  string
	// Persona is the system prompt describing how the character talks and what they know.
	Persona    string
	PlayerText string
}

// Streams passes reply chunks from the producing goroutine to the consumer displaying them.
type Streams = broker.ChannelBroker[string, string]

type Bridge struct {
	client          *ai.Client
	transcripts     *repositories.TranscriptRepository
	streams         *Streams
	consumerTimeout time.Duration
	logger          *slog.Logger
}

// NewBridge creates a Bridge. streams may be nil when nobody displays replies while they are written.
func NewBridge(
	client *ai.Client,
	transcripts *repositories.TranscriptRepository,
	streams *Streams,
	logger *slog.Logger,
) *Bridge {
	return &Bridge{
		client:          client,
		transcripts:     transcripts,
		streams:         streams,
		consumerTimeout: DefaultConsumerTimeout,
		logger:          logger.With("source", "Bridge"),
	}
}

// WithConsumerTimeout returns a copy of b that waits at most timeout for a consumer to take each chunk.
func (b *Bridge) WithConsumerTimeout(timeout time.Duration) *Bridge {
	c := *b
	c.consumerTimeout = timeout
	return &c
}

// ConversationID identifies the conversation with npc in slot, both in the broker and in logs.
func ConversationID(slot, npc string) string {
	return fmt.Sprintf("%s/%s", slot, npc)
}

// Reply answers req.PlayerText in character and stores the exchange in the transcript.
//
// On failure Reply returns a fallback line together with the error; callers pass both on to the dialogue so that
// the conversation can continue.
func (b *Bridge) Reply(ctx context.Context, req Request) (string, error) {
	id := ConversationID(req.Slot, req.NPC)
	history, err := b.transcripts.Get(ctx, req.Slot, req.NPC)
	if err != nil {
		return Fallback, errors.Wrap(err, "get transcript", slog.String("conversation", id))
	}

	stream, err := b.client.StreamCompletion(ctx, Messages(req, history))
	if err != nil {
		return Fallback, errors.Wrap(err, "start reply", slog.String("conversation", id))
	}
	defer stream.Close()

	var (
		sb     strings.Builder
		chunks chan string
	)
	if b.streams != nil {
		chunks = make(chan string)
		b.streams.Publish(id, chunks)
		defer func() {
			if chunks != nil {
				close(chunks)
			}
			b.streams.Unpublish(id)
		}()
	}
	for {
		response, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return Fallback, errors.Wrap(recvErr, "receive reply", slog.String("conversation", id))
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		sb.WriteString(delta)
		if chunks != nil && delta != "" && !b.send(ctx, chunks, delta) {
			b.logger.LogAttrs(ctx, slog.LevelWarn, "reply consumer gone, continuing without streaming",
				slog.String("conversation", id))
			close(chunks)
			chunks = nil
		}
	}

	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return Fallback, errors.Wrap(ErrEmptyReply, "receive reply", slog.String("conversation", id))
	}
	if err = b.transcripts.Append(ctx, req.Slot, req.NPC, req.PlayerText, answer); err != nil {
		// The player still gets to read the answer even if it is forgotten.
		b.logger.LogAttrs(ctx, slog.LevelError, "could not store exchange", errors.SlogError(err))
	}
	return answer, nil
}

// send reports whether a consumer took delta in time.
func (b *Bridge) send(ctx context.Context, chunks chan<- string, delta string) bool {
	timer := time.NewTimer(b.consumerTimeout)
	defer timer.Stop()
	select {
	case chunks <- delta:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
