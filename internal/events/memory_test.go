package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kandev/raworc/internal/common/logger"
)

func testBus(t *testing.T) *MemoryEventBus {
	t.Helper()
	return NewMemoryEventBus(logger.Default())
}

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	bus := testBus(t)

	var mu sync.Mutex
	var received *Event

	done := make(chan struct{})
	_, err := bus.Subscribe(SubjectSessionStateChanged, func(ctx context.Context, e *Event) error {
		mu.Lock()
		received = e
		mu.Unlock()
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	event := NewEvent("session.state_changed", "worker", map[string]any{"sessionId": "s1"})
	if err := bus.Publish(context.Background(), SubjectSessionStateChanged, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if received == nil || received.ID != event.ID {
		t.Fatalf("expected to receive event %s, got %+v", event.ID, received)
	}
}

func TestMemoryEventBus_WildcardSubject(t *testing.T) {
	bus := testBus(t)

	done := make(chan struct{})
	_, err := bus.Subscribe("raworc.events.session.*", func(ctx context.Context, e *Event) error {
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	event := NewEvent("session.message_received", "api", nil)
	if err := bus.Publish(context.Background(), SubjectSessionMessageReceived, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wildcard subscriber was not invoked")
	}
}

func TestMemoryEventBus_QueueSubscribeLoadBalances(t *testing.T) {
	bus := testBus(t)

	var mu sync.Mutex
	counts := map[string]int{}
	wg := sync.WaitGroup{}
	wg.Add(4)

	for _, name := range []string{"a", "b"} {
		name := name
		_, err := bus.QueueSubscribe(SubjectTaskCompleted, "workers", func(ctx context.Context, e *Event) error {
			mu.Lock()
			counts[name]++
			mu.Unlock()
			wg.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("queue subscribe: %v", err)
		}
	}

	for i := 0; i < 4; i++ {
		if err := bus.Publish(context.Background(), SubjectTaskCompleted, NewEvent("task.completed", "worker", nil)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatal("queue subscribers did not receive all events")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(counts) != 2 {
		t.Fatalf("expected both queue members to receive at least one event, got %v", counts)
	}
}

func TestMemoryEventBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := testBus(t)

	calls := 0
	var mu sync.Mutex
	sub, err := bus.Subscribe(SubjectSessionStateChanged, func(ctx context.Context, e *Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if sub.IsValid() {
		t.Fatal("expected subscription to be invalid after unsubscribe")
	}

	if err := bus.Publish(context.Background(), SubjectSessionStateChanged, NewEvent("session.state_changed", "worker", nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d calls", calls)
	}
}

func TestMemoryEventBus_CloseRejectsFurtherUse(t *testing.T) {
	bus := testBus(t)
	bus.Close()

	if bus.IsConnected() {
		t.Fatal("expected bus to report disconnected after Close")
	}
	if _, err := bus.Subscribe(SubjectSessionStateChanged, func(context.Context, *Event) error { return nil }); err == nil {
		t.Fatal("expected Subscribe to fail on a closed bus")
	}
	if err := bus.Publish(context.Background(), SubjectSessionStateChanged, NewEvent("x", "x", nil)); err == nil {
		t.Fatal("expected Publish to fail on a closed bus")
	}
}
