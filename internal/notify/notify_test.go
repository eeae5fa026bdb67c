package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stampcard/loyalty/internal/antifraud"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []antifraud.StaffEvent
	seen   chan struct{}
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{seen: make(chan struct{}, 16)}
}

func (b *recordingBroadcaster) BroadcastFraudEvent(merchantID string, e antifraud.StaffEvent) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
	b.seen <- struct{}{}
}

func waitFor(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestQueueDeliversToStoreAndBroadcaster(t *testing.T) {
	store := NewMemoryStore()
	bc := newRecordingBroadcaster()
	q := NewQueue(store, bc, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.EnqueueEvent(context.Background(), "m_1", antifraud.StaffEvent{
		Kind: "FRAUD", Reason: "velocity", Scope: "customer",
		Operation: "commit", CustomerID: "cus_1", Count: 5, Limit: 5,
	})
	waitFor(t, bc.seen)

	events, err := store.ListByMerchant(context.Background(), "m_1", 10)
	if err != nil {
		t.Fatalf("ListByMerchant: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("persisted %d events, want 1", len(events))
	}
	if events[0].Reason != "velocity" || events[0].Count != 5 {
		t.Fatalf("persisted event = %+v", events[0])
	}
	if events[0].At.IsZero() {
		t.Fatal("enqueue must stamp At when the caller leaves it zero")
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if len(bc.events) != 1 || bc.events[0].Scope != "customer" {
		t.Fatalf("broadcast events = %+v", bc.events)
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	// No Run goroutine draining, so the channel fills up.
	q := NewQueue(nil, nil, discardLogger())
	for i := 0; i < queueDepth+10; i++ {
		q.EnqueueEvent(context.Background(), "m_1", antifraud.StaffEvent{Reason: "velocity"})
	}
	if got := len(q.events); got != queueDepth {
		t.Fatalf("queue length = %d, want %d (overflow must drop, not block)", got, queueDepth)
	}
}

func TestQueueRunStopsOnCancel(t *testing.T) {
	q := NewQueue(nil, nil, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestMemoryStoreNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := store.Record(ctx, "m_1", antifraud.StaffEvent{
			Reason: "velocity", Count: i, At: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	events, err := store.ListByMerchant(ctx, "m_1", 2)
	if err != nil {
		t.Fatalf("ListByMerchant: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want limit 2", len(events))
	}
	if events[0].Count != 2 || events[1].Count != 1 {
		t.Fatalf("order = [%d %d], want newest first", events[0].Count, events[1].Count)
	}

	other, err := store.ListByMerchant(ctx, "m_other", 10)
	if err != nil {
		t.Fatalf("ListByMerchant other: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("foreign merchant sees %d events", len(other))
	}
}
