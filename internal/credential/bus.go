package credential

import "sync"

// Signal names where a credential change was observed.
type Signal string

const (
	// SignalTokenChanged is raised by writes made in this process.
	SignalTokenChanged Signal = "tokenChanged"
	// SignalStorage is raised when another process changed the shared store.
	SignalStorage Signal = "storage"
)

// Event announces that the value stored under Key may have changed.
// Listeners re-read the store rather than trusting a payload.
type Event struct {
	Key    string
	Signal Signal
	Origin string
}

// Bus fans events out to subscribers. Handlers run synchronously on the
// publishing goroutine, in subscription order.
type Bus struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(Event)
	order    []int
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it. The
// returned function is safe to call more than once.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.handlers[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers e to every current subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.handlers[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}
