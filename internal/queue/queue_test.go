package queue

import (
	"fmt"
	"testing"

	"stream-rush/server/internal/donation"
)

func event(id string) donation.Event {
	return donation.Event{ID: id, ActorID: "actor", Kind: donation.KindHeal}
}

func TestQueueFIFOOrder(t *testing.T) {
	q := New(4, nil)
	for i := 0; i < 3; i++ {
		if !q.Enqueue(event(fmt.Sprintf("ev-%d", i))) {
			t.Fatalf("expected enqueue %d to succeed", i)
		}
	}
	for i := 0; i < 3; i++ {
		ev, ok := q.Dequeue()
		if !ok {
			t.Fatalf("expected dequeue %d to succeed", i)
		}
		if want := fmt.Sprintf("ev-%d", i); ev.ID != want {
			t.Fatalf("expected %s, got %s", want, ev.ID)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestQueueOverflow(t *testing.T) {
	q := New(1, nil)
	if !q.Enqueue(event("one")) {
		t.Fatalf("expected initial enqueue to succeed")
	}
	if q.Enqueue(event("two")) {
		t.Fatalf("expected enqueue to fail at capacity")
	}
	if q.Len() != 1 {
		t.Fatalf("expected length 1, got %d", q.Len())
	}
}

func TestQueuePeekDoesNotConsume(t *testing.T) {
	q := New(2, nil)
	q.Enqueue(event("head"))
	for i := 0; i < 2; i++ {
		ev, ok := q.Peek()
		if !ok || ev.ID != "head" {
			t.Fatalf("expected peek to return head, got %+v ok=%v", ev, ok)
		}
	}
	if q.Len() != 1 {
		t.Fatalf("peek must not consume")
	}
}

func TestQueueRemoveByID(t *testing.T) {
	q := New(4, nil)
	for _, id := range []string{"a", "b", "c"} {
		q.Enqueue(event(id))
	}
	if !q.RemoveByID("b") {
		t.Fatalf("expected removal of a queued id")
	}
	if q.RemoveByID("b") {
		t.Fatalf("expected second removal to report missing")
	}
	var drained []string
	for {
		ev, ok := q.Dequeue()
		if !ok {
			break
		}
		drained = append(drained, ev.ID)
	}
	if len(drained) != 2 || drained[0] != "a" || drained[1] != "c" {
		t.Fatalf("unexpected order after removal: %v", drained)
	}
}

func TestQueueRemoveByIDAfterWraparound(t *testing.T) {
	q := New(3, nil)
	q.Enqueue(event("a"))
	q.Enqueue(event("b"))
	q.Dequeue()
	// Tail wraps past the end of the ring.
	q.Enqueue(event("c"))
	q.Enqueue(event("d"))

	if !q.RemoveByID("c") {
		t.Fatalf("expected removal across the wrap point")
	}
	ev, _ := q.Dequeue()
	if ev.ID != "b" {
		t.Fatalf("expected b first, got %s", ev.ID)
	}
	ev, _ = q.Dequeue()
	if ev.ID != "d" {
		t.Fatalf("expected d second, got %s", ev.ID)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

type captureMetrics struct {
	adds   map[string]uint64
	stores map[string]uint64
}

func newCaptureMetrics() *captureMetrics {
	return &captureMetrics{adds: make(map[string]uint64), stores: make(map[string]uint64)}
}

func (m *captureMetrics) Add(key string, delta uint64)   { m.adds[key] += delta }
func (m *captureMetrics) Store(key string, value uint64) { m.stores[key] = value }

func TestQueueMetrics(t *testing.T) {
	metrics := newCaptureMetrics()
	q := New(1, metrics)
	q.Enqueue(event("a"))
	q.Enqueue(event("b"))
	if metrics.adds[overflowMetricKey] != 1 {
		t.Fatalf("expected one overflow, got %d", metrics.adds[overflowMetricKey])
	}
	if metrics.stores[occupancyMetricKey] != 1 {
		t.Fatalf("expected occupancy 1, got %d", metrics.stores[occupancyMetricKey])
	}
}
