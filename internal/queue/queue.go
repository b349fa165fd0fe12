package queue

import (
	"sync"

	"stream-rush/server/internal/donation"
)

const (
	occupancyMetricKey = "donation_queue_occupancy"
	overflowMetricKey  = "donation_queue_overflow_total"
)

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// Queue stores admitted donations in a fixed-size ring, strict FIFO.
// Kind-based pacing lives entirely in the admission gate; the queue
// never reorders. Safe for concurrent producers and a single consumer.
type Queue struct {
	mu      sync.Mutex
	data    []donation.Event
	head    int
	tail    int
	count   int
	metrics telemetryMetrics
}

// New constructs a queue with the provided capacity.
func New(capacity int, metrics telemetryMetrics) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		data:    make([]donation.Event, capacity),
		metrics: metrics,
	}
}

// Capacity reports the maximum number of donations the queue can hold.
func (q *Queue) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Enqueue appends an event, returning false if the queue is full.
func (q *Queue) Enqueue(ev donation.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.data) {
		if q.metrics != nil {
			q.metrics.Add(overflowMetricKey, 1)
		}
		return false
	}
	q.data[q.tail] = ev
	q.tail = (q.tail + 1) % len(q.data)
	q.count++
	q.storeOccupancyLocked()
	return true
}

// Dequeue removes and returns the oldest event.
func (q *Queue) Dequeue() (donation.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return donation.Event{}, false
	}
	ev := q.data[q.head]
	q.data[q.head] = donation.Event{}
	q.head = (q.head + 1) % len(q.data)
	q.count--
	q.storeOccupancyLocked()
	return ev, true
}

// Peek returns the oldest event without removing it.
func (q *Queue) Peek() (donation.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return donation.Event{}, false
	}
	return q.data[q.head], true
}

// RemoveByID drops the queued event with the given id, preserving the
// order of everything else. Used for administrative cancellation.
func (q *Queue) RemoveByID(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := 0; i < q.count; i++ {
		idx := (q.head + i) % len(q.data)
		if q.data[idx].ID != id {
			continue
		}
		// Shift the tail-side remainder left one slot.
		for j := i; j < q.count-1; j++ {
			from := (q.head + j + 1) % len(q.data)
			to := (q.head + j) % len(q.data)
			q.data[to] = q.data[from]
		}
		q.tail = (q.tail - 1 + len(q.data)) % len(q.data)
		q.data[q.tail] = donation.Event{}
		q.count--
		q.storeOccupancyLocked()
		return true
	}
	return false
}

// Len reports the number of queued donations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Queue) storeOccupancyLocked() {
	if q.metrics == nil {
		return
	}
	q.metrics.Store(occupancyMetricKey, uint64(q.count))
}
