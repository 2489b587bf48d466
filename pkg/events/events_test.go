package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversToAllSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{Type: EventSessionCreated, Metadata: map[string]string{"session_id": "s1"}})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case ev := <-sub:
			assert.Equal(t, EventSessionCreated, ev.Type)
			assert.False(t, ev.Timestamp.IsZero())
			assert.Equal(t, "s1", ev.Metadata["session_id"])
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)

	assert.Equal(t, 0, b.SubscriberCount())
	_, ok := <-sub
	assert.False(t, ok)
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Stop()
	b.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.Publish(&Event{Type: EventInstanceDeleted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on stopped broker")
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func TestForwarderRelaysEvents(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	pub := &recordingPublisher{}
	fwd := NewForwarder(b, pub, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fwd.Run(ctx)

	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	b.Publish(&Event{Type: EventInstanceRegistered, Metadata: map[string]string{"instance_id": "i1"}})

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, DefaultSubject, pub.subjects[0])

	var ev Event
	require.NoError(t, json.Unmarshal(pub.payloads[0], &ev))
	assert.Equal(t, EventInstanceRegistered, ev.Type)
	assert.Equal(t, "i1", ev.Metadata["instance_id"])
}

func TestSubscribeFiltersByType(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	deletes := b.Subscribe(EventSessionDeleted, EventInstanceDeleted)
	all := b.Subscribe()

	b.Publish(NewEvent(EventSessionCreated, "session created", nil))
	b.Publish(NewEvent(EventInstanceDeleted, "instance deleted", map[string]string{"instance_id": "i1"}))

	select {
	case event := <-deletes:
		assert.Equal(t, EventInstanceDeleted, event.Type)
	case <-time.After(time.Second):
		t.Fatal("filtered subscriber missed its event")
	}

	for _, expected := range []EventType{EventSessionCreated, EventInstanceDeleted} {
		select {
		case event := <-all:
			assert.Equal(t, expected, event.Type)
		case <-time.After(time.Second):
			t.Fatalf("subscriber missed %s", expected)
		}
	}

	select {
	case event := <-deletes:
		t.Fatalf("unexpected %s delivered to filtered subscriber", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastCountsDrops(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for i := 0; i < cap(sub)+3; i++ {
		b.broadcast(NewEvent(EventInstanceRegistered, "", nil))
	}
	assert.Equal(t, uint64(3), b.Dropped())
	assert.Len(t, sub, cap(sub))
}

func TestNewEvent(t *testing.T) {
	e1 := NewEvent(EventSessionCreated, "session created", map[string]string{"session_id": "s1"})
	e2 := NewEvent(EventSessionCreated, "session created", nil)

	assert.NotEmpty(t, e1.ID)
	assert.NotEqual(t, e1.ID, e2.ID)
	assert.False(t, e1.Timestamp.IsZero())
	assert.Equal(t, "s1", e1.Metadata["session_id"])
}
