// Package broker hands the chunk stream of a free-form reply from the goroutine producing it to the request that
// displays it.
package broker

type publication[TID comparable, TPayload any] struct {
	id      TID
	channel chan TPayload
}

type subscription[TID comparable, TPayload any] struct {
	id      TID
	channel chan chan TPayload
}

// ChannelBroker passes a channel with ID from producer to the first consumer.
// The subsequent consumers will block until producer is finished so that they
// can resolve the situation e.g. by reading the finished reply from the transcript.
//
// The producer of a free-form reply is the goroutine streaming the chat completion.
// The first consumer is the HTTP handler that returns the SSE stream. Subsequent
// consumers are likely caused by connectivity issues. In their case, it's better to
// wait for the producer to finish and return the complete reply at the end.
type ChannelBroker[TID comparable, TPayload any] struct {
	stop        chan struct{}
	publish     chan publication[TID, TPayload]
	unpublish   chan TID
	subscribe   chan subscription[TID, TPayload]
	isPublished chan subscription[TID, TPayload]
}

// NewChannelBroker creates a new ChannelBroker. Run Start in a goroutine and use Stop to end it.
func NewChannelBroker[TID comparable, TPayload any]() *ChannelBroker[TID, TPayload] {
	return &ChannelBroker[TID, TPayload]{
		stop:        make(chan struct{}),
		publish:     make(chan publication[TID, TPayload]),
		unpublish:   make(chan TID),
		subscribe:   make(chan subscription[TID, TPayload]),
		isPublished: make(chan subscription[TID, TPayload]),
	}
}

// Start listening for publish, unpublish, and subscribe events. This function blocks until Stop() is called,
// so it should be called in a goroutine.
func (b *ChannelBroker[TID, TPayload]) Start() {
	published := map[TID]chan TPayload{}
	waiting := map[TID][]chan chan TPayload{}
	for {
		select {
		case <-b.stop:
			for _, subscribers := range waiting {
				for _, s := range subscribers {
					close(s)
				}
			}
			return

		case s := <-b.subscribe:
			c := published[s.id]
			if c == nil || b.stopped() {
				// The producer is finished or hasn't started yet.
				close(s.channel)
				break
			}
			subscribers, taken := waiting[s.id]
			if !taken {
				// First subscriber gets the channel from the producer.
				waiting[s.id] = []chan chan TPayload{}
				s.channel <- c
				break
			}
			// Subsequent subscribers block until the producer is finished.
			waiting[s.id] = append(subscribers, s.channel)

		case s := <-b.isPublished:
			if c := published[s.id]; c != nil && !b.stopped() {
				s.channel <- c
			}
			close(s.channel)

		case p := <-b.publish:
			published[p.id] = p.channel

		case id := <-b.unpublish:
			for _, s := range waiting[id] {
				close(s)
			}
			delete(published, id)
			delete(waiting, id)
		}
	}
}

func (b *ChannelBroker[TID, TPayload]) stopped() bool {
	select {
	case <-b.stop:
		return true
	default:
		return false
	}
}

// Stop the goroutine that handles the broker. Blocked subscribers are released and later calls return at once.
func (b *ChannelBroker[TID, TPayload]) Stop() {
	close(b.stop)
}

// Subscribe to the channel with ID. Returns a channel that will receive the channel corresponding to the ID.
// If the channel is not yet published, the returned channel will be closed.
// If there's already a subscriber, the returned channel will block until the producer is finished and then
// close the returned channel.
func (b *ChannelBroker[TID, TPayload]) Subscribe(id TID) chan chan TPayload {
	channel := make(chan chan TPayload, 1)
	select {
	case b.subscribe <- subscription[TID, TPayload]{id: id, channel: channel}:
	case <-b.stop:
		close(channel)
	}
	return channel
}

// Published reports whether a producer is currently publishing under ID.
func (b *ChannelBroker[TID, TPayload]) Published(id TID) bool {
	channel := make(chan chan TPayload, 1)
	select {
	case b.isPublished <- subscription[TID, TPayload]{id: id, channel: channel}:
	case <-b.stop:
		return false
	}
	c := <-channel
	return c != nil
}

// Publish the channel with ID. The channel will be sent to the first subscriber.
func (b *ChannelBroker[TID, TPayload]) Publish(id TID, channel chan TPayload) {
	select {
	case b.publish <- publication[TID, TPayload]{id: id, channel: channel}:
	case <-b.stop:
	}
}

// Unpublish the channel with ID and release the subscribers waiting for the producer to finish. The producer
// should send on an unbuffered channel so that it blocks until it gets a consumer, with a timeout in case the
// consumer never shows up.
func (b *ChannelBroker[TID, TPayload]) Unpublish(id TID) {
	select {
	case b.unpublish <- id:
	case <-b.stop:
	}
}
