package event

// Handler receives every published event. Handlers may query engine state but must not start a new player action.
type Handler func(Event)

// Bus delivers events synchronously to its subscribers in subscription order.
//
// Publishing from inside a handler does not recurse: the event is queued and delivered once the event currently
// being dispatched has reached every handler. Bus is not safe for concurrent use; the engine processes one action at
// a time.
type Bus struct {
	subscribers []subscriber
	nextID      int
	queue       []Event
	dispatching bool
}

type subscriber struct {
	id      int
	handler Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns a function that removes it again.
func (b *Bus) Subscribe(h Handler) func() {
	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscriber{id: id, handler: h})
	return func() {
		for i, s := range b.subscribers {
			if s.id == id {
				b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e to all subscribers. A nil Bus drops the event.
func (b *Bus) Publish(e Event) {
	if b == nil || e == nil {
		return
	}
	b.queue = append(b.queue, e)
	if b.dispatching {
		return
	}
	b.dispatching = true
	defer func() {
		b.dispatching = false
	}()
	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue = b.queue[1:]
		// Snapshot so that handlers subscribing or unsubscribing don't affect the current delivery.
		subs := append([]subscriber(nil), b.subscribers...)
		for _, s := range subs {
			s.handler(next)
		}
	}
}

// Recorder collects published events. Useful for tests and for presentation layers that drain events after each
// action.
type Recorder struct {
	events []Event
}

// Record is a Handler.
func (r *Recorder) Record(e Event) {
	r.events = append(r.events, e)
}

// Events returns the recorded events in publish order.
func (r *Recorder) Events() []Event {
	return r.events
}

// Drain returns the recorded events and forgets them.
func (r *Recorder) Drain() []Event {
	events := r.events
	r.events = nil
	return events
}

// Names returns the names of the recorded events in publish order.
func (r *Recorder) Names() []string {
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name()
	}
	return names
}

// Of returns the recorded events of type T.
func Of[T Event](r *Recorder) []T {
	var matching []T
	for _, e := range r.events {
		if typed, ok := e.(T); ok {
			matching = append(matching, typed)
		}
	}
	return matching
}
