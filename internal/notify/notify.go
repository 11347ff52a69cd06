package notify

import "sync"

// Broadcaster is the single change-notification channel between storage and
// whatever renders it. Notifications carry no payload; subscribers re-query
// the store to learn the new state.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[chan struct{}]struct{}
}

func New() *Broadcaster {
	return &Broadcaster{subs: make(map[chan struct{}]struct{})}
}

// Subscribe registers a listener. The channel has a one-slot buffer: a
// notification arriving while one is already pending coalesces with it.
func (b *Broadcaster) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan struct{}) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Notify wakes every subscriber without blocking. A subscriber that already
// has a pending notification is skipped; it will re-query anyway.
func (b *Broadcaster) Notify() {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
