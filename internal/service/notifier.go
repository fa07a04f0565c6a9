package service

import "sync"

// Notifier fans out "the queue changed" signals to display-layer subscribers,
// which re-read through the facade. It carries no payload on purpose: the
// store is the source of truth.
type Notifier struct {
	mu          sync.Mutex
	subscribers map[int]func()
	nextID      int
}

func NewNotifier() *Notifier {
	return &Notifier{
		subscribers: make(map[int]func()),
	}
}

// Subscribe registers a callback and returns its unsubscribe function.
// Unsubscribing twice is a no-op and is safe during dispatch.
func (n *Notifier) Subscribe(fn func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subscribers[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subscribers, id)
	}
}

// Notify invokes every subscriber. Callbacks run outside the lock so they may
// subscribe or unsubscribe themselves.
func (n *Notifier) Notify() {
	n.mu.Lock()
	subs := make([]func(), 0, len(n.subscribers))
	for _, fn := range n.subscribers {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
