package events

import (
	"sync/atomic"
	"testing"
)

func TestPublishMatchesFilter(t *testing.T) {
	p := NewInMemoryPublisher()

	var got atomic.Int32
	err := p.Subscribe("sub-1", Filter{
		EventTypes:     []EventType{EventMessagesUpdated},
		ConversationID: "c-1",
	}, func(e *Event) {
		got.Add(1)
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	p.Publish(&Event{Type: EventMessagesUpdated, ConversationID: "c-1", Inserted: 2})
	p.Publish(&Event{Type: EventMessagesUpdated, ConversationID: "c-2", Inserted: 1})
	p.Publish(&Event{Type: EventChannelState, ConversationID: "c-1", ChannelState: "connected"})

	if got.Load() != 1 {
		t.Errorf("handler invocations = %d, want 1", got.Load())
	}
}

func TestPublishEmptyFilterMatchesAll(t *testing.T) {
	p := NewInMemoryPublisher()

	var got atomic.Int32
	if err := p.Subscribe("sub-all", Filter{}, func(e *Event) { got.Add(1) }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	p.Publish(&Event{Type: EventConversationSelected, ConversationID: "c-1"})
	p.Publish(&Event{Type: EventMessageSent, ConversationID: "c-2"})

	if got.Load() != 2 {
		t.Errorf("handler invocations = %d, want 2", got.Load())
	}
}

func TestSubscribeValidation(t *testing.T) {
	p := NewInMemoryPublisher()

	err := p.Subscribe("", Filter{}, func(e *Event) {})
	if err != ErrInvalidSubscriptionID {
		t.Errorf("Subscribe() empty ID error = %v, want %v", err, ErrInvalidSubscriptionID)
	}

	err = p.Subscribe("sub-1", Filter{}, nil)
	if err != ErrNilHandler {
		t.Errorf("Subscribe() nil handler error = %v, want %v", err, ErrNilHandler)
	}

	if err := p.Subscribe("sub-1", Filter{}, func(e *Event) {}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	err = p.Subscribe("sub-1", Filter{}, func(e *Event) {})
	if err != ErrSubscriptionExists {
		t.Errorf("Subscribe() duplicate error = %v, want %v", err, ErrSubscriptionExists)
	}
}

func TestUnsubscribe(t *testing.T) {
	p := NewInMemoryPublisher()

	if err := p.Subscribe("sub-1", Filter{}, func(e *Event) {}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if p.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", p.SubscriberCount())
	}

	if err := p.Unsubscribe("sub-1"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if p.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", p.SubscriberCount())
	}

	if err := p.Unsubscribe("sub-1"); err != ErrSubscriptionNotFound {
		t.Errorf("Unsubscribe() missing error = %v, want %v", err, ErrSubscriptionNotFound)
	}
}

func TestUpdateSubscription(t *testing.T) {
	p := NewInMemoryPublisher()

	var got atomic.Int32
	if err := p.Subscribe("sub-1", Filter{ConversationID: "c-1"}, func(e *Event) { got.Add(1) }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	p.Publish(&Event{Type: EventMessagesUpdated, ConversationID: "c-2"})
	if got.Load() != 0 {
		t.Fatalf("handler fired before filter update")
	}

	if err := p.UpdateSubscription("sub-1", Filter{ConversationID: "c-2"}); err != nil {
		t.Fatalf("UpdateSubscription() error = %v", err)
	}

	p.Publish(&Event{Type: EventMessagesUpdated, ConversationID: "c-2"})
	if got.Load() != 1 {
		t.Errorf("handler invocations = %d, want 1", got.Load())
	}
}
