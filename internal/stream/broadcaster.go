package stream

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-rupture-hazard/internal/models"
)

// DefaultBuffer is how many events a subscriber may lag behind before
// further events are dropped for it.
const DefaultBuffer = 100

// Broadcaster fans newly cataloged events out to stream subscribers.
type Broadcaster struct {
	subscribers map[uint64]chan *models.Event
	buffer      int
	nextID      atomic.Uint64
	mu          sync.RWMutex
	dropped     atomic.Uint64
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Broadcaster{
		subscribers: make(map[uint64]chan *models.Event),
		buffer:      buffer,
	}
}

func (b *Broadcaster) Subscribe() (uint64, <-chan *models.Event) {
	id := b.nextID.Add(1)
	ch := make(chan *models.Event, b.buffer)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(e *models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			// Skip slow subscribers
			b.dropped.Add(1)
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped counts deliveries skipped because a subscriber's buffer was full.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
