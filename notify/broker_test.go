package notify

import (
	"fmt"
	"testing"

	"github.com/serisow/docquery/document"
)

func TestBrokerDeliversToAllSubscribers(t *testing.T) {
	b := NewBroker()
	first := b.Subscribe()
	second := b.Subscribe()
	defer b.Unsubscribe(first)
	defer b.Unsubscribe(second)

	event := document.StatusEvent{DocumentID: "doc-1", Status: document.StatusProcessing}
	b.PublishStatus(event)

	for i, ch := range []chan document.StatusEvent{first, second} {
		select {
		case got := <-ch:
			if got.DocumentID != "doc-1" || got.Status != document.StatusProcessing {
				t.Errorf("subscriber %d received wrong event: %+v", i, got)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()

	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.SubscriberCount())
	}

	b.Unsubscribe(ch)
	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", b.SubscriberCount())
	}
	if _, open := <-ch; open {
		t.Error("channel must be closed after unsubscribe")
	}

	// Double unsubscribe must not panic.
	b.Unsubscribe(ch)
}

func TestBrokerSlowSubscriberKeepsLatestEvent(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Overfill the buffer without draining. Publishing must never block and
	// the newest event must survive the drops.
	total := b.bufferSize + 8
	for i := 0; i < total; i++ {
		b.PublishStatus(document.StatusEvent{DocumentID: fmt.Sprintf("doc-%d", i), Status: document.StatusProcessing})
	}

	var last document.StatusEvent
	received := 0
drain:
	for {
		select {
		case e := <-ch:
			last = e
			received++
		default:
			break drain
		}
	}

	if received == 0 || received > b.bufferSize {
		t.Fatalf("expected between 1 and %d buffered events, got %d", b.bufferSize, received)
	}
	if want := fmt.Sprintf("doc-%d", total-1); last.DocumentID != want {
		t.Errorf("latest event must survive drops: want %s, got %s", want, last.DocumentID)
	}
}

func TestBrokerPublishWithoutSubscribers(t *testing.T) {
	b := NewBroker()
	// Must be a no-op, not a panic.
	b.PublishStatus(document.StatusEvent{DocumentID: "doc-1", Status: document.StatusCompleted})
}
