package stream

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-rupture-hazard/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBroadcaster_SubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster(0)

	id, ch := b.Subscribe()
	if b.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", b.SubscriberCount())
	}

	b.Unsubscribe(id)
	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	default:
		t.Error("channel should be closed and readable")
	}

	// Unsubscribing twice is a no-op
	b.Unsubscribe(id)
}

func TestBroadcaster_Broadcast(t *testing.T) {
	b := NewBroadcaster(0)

	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	event := &models.Event{ID: "usgs_test_1", Source: models.SourceUSGS}
	b.Broadcast(event)

	select {
	case received := <-ch:
		if received != event {
			t.Errorf("expected event %s, got %s", event.ID, received.ID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for broadcast")
	}
}

func TestBroadcaster_ConcurrentSubscribeBroadcast(t *testing.T) {
	b := NewBroadcaster(0)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, ch := b.Subscribe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				for range ch {
				}
			}()
			time.Sleep(5 * time.Millisecond)
			b.Unsubscribe(id)
			<-done
		}()
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Broadcast(&models.Event{ID: fmt.Sprintf("broadcast_%d", n)})
		}(i)
	}

	wg.Wait()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster(0)

	var channels []<-chan *models.Event
	for i := 0; i < 5; i++ {
		_, ch := b.Subscribe()
		channels = append(channels, ch)
	}

	b.Close()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", b.SubscriberCount())
	}

	for i, ch := range channels {
		select {
		case _, ok := <-ch:
			if ok {
				t.Errorf("channel %d should be closed", i)
			}
		default:
			t.Errorf("channel %d should be closed and readable", i)
		}
	}
}

func TestBroadcaster_SlowSubscriber(t *testing.T) {
	b := NewBroadcaster(10)

	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	// Fill the buffer + 1 more
	for i := 0; i < 11; i++ {
		b.Broadcast(&models.Event{ID: fmt.Sprintf("flood_%d", i)})
	}

	count := 0
	for len(ch) > 0 {
		<-ch
		count++
	}

	if count != 10 {
		t.Errorf("expected 10 buffered events, got %d", count)
	}
	if b.Dropped() != 1 {
		t.Errorf("expected 1 dropped delivery, got %d", b.Dropped())
	}
}
