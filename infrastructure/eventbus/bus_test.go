package eventbus

import (
	"testing"
	"time"

	"connected/application/events"
)

func TestBus_PublishDeliversToAllSubscribers(t *testing.T) {
	b := New()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(events.Event{Kind: events.KindDeviceFound, DeviceID: "a"})

	for _, ch := range []<-chan events.Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.DeviceID != "a" {
				t.Fatalf("unexpected event: %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBus_SlowSubscriberDropsRatherThanBlocks(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < subscriberCapacity+10; i++ {
		b.Publish(events.Event{Kind: events.KindError})
	}

	count := 0
drain:
	for {
		select {
		case <-ch:
			count++
		default:
			break drain
		}
	}
	if count > subscriberCapacity {
		t.Fatalf("expected at most %d buffered events, got %d", subscriberCapacity, count)
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe()
	unsub()

	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestBus_CloseClosesAllSubscribers(t *testing.T) {
	b := New()
	ch1, _ := b.Subscribe()
	ch2, _ := b.Subscribe()

	b.Close()

	for _, ch := range []<-chan events.Event{ch1, ch2} {
		if _, ok := <-ch; ok {
			t.Fatal("expected channel closed after bus Close")
		}
	}

	// Publish/Subscribe after close must not panic.
	b.Publish(events.Event{})
	ch3, _ := b.Subscribe()
	if _, ok := <-ch3; ok {
		t.Fatal("expected subscribe-after-close to return a closed channel")
	}
}
