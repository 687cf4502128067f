package studio

import (
	"sync"
)

// Broadcaster fans loudness events out to subscribers and remembers the
// latest event of every connection.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan LoudnessEvent
	latest      map[string]LoudnessEvent
	dropped     map[string]uint64
	closed      bool
}

// NewBroadcaster creates a new broadcaster instance.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]chan LoudnessEvent),
		latest:      make(map[string]LoudnessEvent),
		dropped:     make(map[string]uint64),
	}
}

// Subscribe adds a subscriber with the given ID and returns its channel.
// Subscribing an existing ID replaces and closes the previous channel.
func (b *Broadcaster) Subscribe(subscriberID string, bufferSize int) <-chan LoudnessEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan LoudnessEvent)
		close(ch)
		return ch
	}
	if old, ok := b.subscribers[subscriberID]; ok {
		close(old)
	}

	ch := make(chan LoudnessEvent, bufferSize)
	b.subscribers[subscriberID] = ch
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, exists := b.subscribers[subscriberID]; exists {
		close(ch)
		delete(b.subscribers, subscriberID)
		delete(b.dropped, subscriberID)
	}
}

// Broadcast sends ev to every subscriber. A subscriber whose channel is full
// misses the event but stays subscribed.
func (b *Broadcaster) Broadcast(ev LoudnessEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.latest[ev.ConnectionID] = ev
	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			b.dropped[id]++
		}
	}
}

// Forget drops the cached latest event of a connection.
func (b *Broadcaster) Forget(connectionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.latest, connectionID)
}

// Latest returns the most recent event of every live connection.
func (b *Broadcaster) Latest() map[string]LoudnessEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]LoudnessEvent, len(b.latest))
	for k, v := range b.latest {
		out[k] = v
	}
	return out
}

// Dropped returns how many events a subscriber missed.
func (b *Broadcaster) Dropped(subscriberID string) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped[subscriberID]
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
