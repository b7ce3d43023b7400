package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_UpdatesAreLossy(t *testing.T) {
	b := newBroker()
	sub := b.subscribe()
	id := uuid.New()

	for i := 0; i < 10; i++ {
		b.publish(Event{Kind: EventDevicesUpdated, SessionID: id})
	}
	assert.Len(t, sub.Events(), subscriptionBuffer, "excess updates are dropped, not queued")
}

func TestBroker_CompletionAlwaysDelivered(t *testing.T) {
	b := newBroker()
	sub := b.subscribe()
	id := uuid.New()

	for i := 0; i < subscriptionBuffer; i++ {
		b.publish(Event{Kind: EventDevicesUpdated, SessionID: id})
	}

	published := make(chan struct{})
	go func() {
		b.publish(Event{Kind: EventDiscoveryCompleted, SessionID: id})
		close(published)
	}()

	var got []Event
	for len(got) < subscriptionBuffer+1 {
		select {
		case ev := <-sub.Events():
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatal("completion was not delivered")
		}
	}
	<-published

	assert.Equal(t, EventDiscoveryCompleted, got[len(got)-1].Kind)
	assert.Equal(t, id, got[len(got)-1].SessionID)
}

func TestBroker_CompletionGivesUpOnClosedSubscription(t *testing.T) {
	b := newBroker()
	sub := b.subscribe()
	for i := 0; i < subscriptionBuffer; i++ {
		b.publish(Event{Kind: EventDevicesUpdated})
	}

	published := make(chan struct{})
	go func() {
		b.publish(Event{Kind: EventDiscoveryCompleted})
		close(published)
	}()

	time.Sleep(20 * time.Millisecond)
	sub.Close()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a closed subscription")
	}
}

func TestBroker_StalledCompletionDoesNotBlockOthers(t *testing.T) {
	b := newBroker()
	stalled := b.subscribe()
	defer stalled.Close()
	for i := 0; i < subscriptionBuffer; i++ {
		b.publish(Event{Kind: EventDevicesUpdated})
	}

	go b.publish(Event{Kind: EventDiscoveryCompleted})
	time.Sleep(20 * time.Millisecond)

	returned := make(chan struct{})
	go func() {
		b.publish(Event{Kind: EventDevicesUpdated})
		late := b.subscribe()
		late.Close()
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("broker lock held while a completion waits for a stalled subscriber")
	}
}

func TestBroker_CloseReleasesStalledCompletion(t *testing.T) {
	b := newBroker()
	sub := b.subscribe()
	for i := 0; i < subscriptionBuffer; i++ {
		b.publish(Event{Kind: EventDevicesUpdated})
	}

	published := make(chan struct{})
	go func() {
		b.publish(Event{Kind: EventDiscoveryCompleted})
		close(published)
	}()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		b.close()
		close(closed)
	}()

	for _, ch := range []chan struct{}{published, closed} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("close did not release the pending completion")
		}
	}

	n := 0
	for range sub.Events() {
		n++
	}
	assert.Equal(t, subscriptionBuffer, n, "buffered updates stay readable after close")
}

func TestBroker_Close(t *testing.T) {
	b := newBroker()
	sub := b.subscribe()

	b.close()
	b.close()

	_, ok := <-sub.Events()
	assert.False(t, ok)

	// publishing and unsubscribing after close are no-ops
	b.publish(Event{Kind: EventDiscoveryCompleted})
	sub.Close()

	late := b.subscribe()
	_, ok = <-late.Events()
	assert.False(t, ok)
	late.Close()
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	b := newBroker()
	sub := b.subscribe()
	sub.Close()
	sub.Close()

	_, ok := <-sub.Events()
	require.False(t, ok)
	b.publish(Event{Kind: EventDevicesUpdated})
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "DevicesUpdated", EventDevicesUpdated.String())
	assert.Equal(t, "DiscoveryCompleted", EventDiscoveryCompleted.String())
	assert.Equal(t, "Unknown", EventKind(9).String())
}
