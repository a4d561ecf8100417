// Package event implements the engine's event delivery seam (spec §6):
// Finished, Looped, and UserAutomation events, posted by the audio
// thread and drained by a dedicated event-consumer thread so that no
// user callback is ever invoked from the audio thread itself (spec §5,
// "Audio-thread rules: ... no user callback invocation").
//
// Grounded on the teacher's internal/audiocore/sources/malgo package's
// errorChan shape (a buffered channel the producer sends on
// non-blockingly, the consumer drains on its own goroutine) rather than
// the property/cmdqueue lock-free MPSC, since events are posted far less
// often than property writes and a buffered channel already gives the
// audio thread a non-blocking, non-allocating Post once the channel is
// warm.
package event

// Kind enumerates the event types spec §6 lists.
type Kind int

const (
	// Finished fires when a source's last generator reaches end of data
	// and the source has no looping generator keeping it alive.
	Finished Kind = iota
	// Looped fires each time a looping generator wraps back to its
	// start.
	Looped
	// UserAutomation fires when a client-scheduled automation point is
	// reached (block-accurate, per spec §1 non-goals).
	UserAutomation
)

// Event is one posted occurrence, carrying the originating handle and an
// optional payload. Param is only meaningful for UserAutomation, where
// it carries the automation point's user-supplied tag.
type Event struct {
	Kind   Kind
	Handle uint64
	Param  int64
}

// Queue is an MPSC event channel: any number of producers (in practice,
// only the audio thread) may Post; a single consumer goroutine drains it
// via Next.
type Queue struct {
	items chan Event
}

// NewQueue creates an event queue with the given backlog capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{items: make(chan Event, capacity)}
}

// Post enqueues ev. Never blocks: if the backlog is full (the consumer
// has fallen behind), the event is dropped rather than stalling the
// audio thread. Safe to call from the audio thread.
func (q *Queue) Post(ev Event) bool {
	select {
	case q.items <- ev:
		return true
	default:
		return false
	}
}

// Next returns the oldest pending event and true, or a zero Event and
// false if the queue is currently empty. Non-blocking; intended for a
// polling consumer (mirrors syz_contextGetNextEvent's polling shape,
// spec §6).
func (q *Queue) Next() (Event, bool) {
	select {
	case ev := <-q.items:
		return ev, true
	default:
		return Event{}, false
	}
}

// Len reports the number of events currently queued. Intended for
// metrics, not the hot path.
func (q *Queue) Len() int {
	return len(q.items)
}
