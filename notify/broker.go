package notify

import (
	"sync"

	"github.com/serisow/docquery/document"
)

// Broker fans document status events out to subscribers (the SSE document
// list handler, tests). Sends never block a publisher: when a subscriber's
// buffer is full the oldest pending event is dropped, so a slow consumer
// still eventually sees the latest status of every document, just not every
// intermediate transition.
type Broker struct {
	mu          sync.Mutex
	subscribers map[chan document.StatusEvent]struct{}
	bufferSize  int
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[chan document.StatusEvent]struct{}),
		bufferSize:  16,
	}
}

// Subscribe registers a new listener. The caller must Unsubscribe when done
// or the channel leaks.
func (b *Broker) Subscribe() chan document.StatusEvent {
	ch := make(chan document.StatusEvent, b.bufferSize)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan document.StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// PublishStatus delivers the event to every subscriber without blocking.
func (b *Broker) PublishStatus(event document.StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Buffer full: drop the oldest event to make room for the
			// newest one. Latest state wins.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// SubscriberCount is used by tests and the health endpoint.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
