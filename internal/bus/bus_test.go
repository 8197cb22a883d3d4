package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("socket.", 10)
	defer unsub()

	b.Publish(NewEvent(KindReadinessChanged, "OPEN"))

	select {
	case evt := <-ch:
		if evt.Kind != KindReadinessChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindReadinessChanged)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("unread.", 10)
	defer unsub()

	b.Publish(NewEvent(KindFrameApplied, nil))
	b.Publish(NewEvent(KindUnreadChanged, nil))

	select {
	case evt := <-ch:
		if evt.Kind != KindUnreadChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindUnreadChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("state.", 10)
	unsub()
	unsub()

	b.Publish(NewEvent(KindStateChanged, nil))

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("hangout.", 1)
	defer unsub()

	b.Publish(NewEvent(KindHangoutSent, 1))
	b.Publish(NewEvent(KindHangoutQueued, 2))

	evt := <-ch
	if evt.Kind != KindHangoutSent {
		t.Errorf("got %q, want %s", evt.Kind, KindHangoutSent)
	}
	if b.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", b.Dropped())
	}
}

func TestPublishOnNilBus(t *testing.T) {
	var b *Bus
	b.Publish(NewEvent(KindNavigate, "ACCEPTED"))
}
