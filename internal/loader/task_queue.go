package loader

import (
	"context"
	"slices"
	"sync"

	"github.com/phrazzld/thumbloader/internal/thumb"
)

// EnqueueResult reports what Enqueue did with a work item
type EnqueueResult int

// Possible enqueue outcomes
const (
	// Queued means the item was added as a new pending entry
	Queued EnqueueResult = iota
	// Relocated means a pending entry for the same image was replaced by the
	// new item at the front of the queue
	Relocated
	// Coalesced means a pending entry for the same image already existed and
	// was left untouched
	Coalesced
	// AlreadyInFlight means the image is being decoded; the new item was dropped
	AlreadyInFlight
)

// String returns a short name for the result, used in logs.
func (r EnqueueResult) String() string {
	switch r {
	case Queued:
		return "queued"
	case Relocated:
		return "relocated"
	case Coalesced:
		return "coalesced"
	case AlreadyInFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// TaskQueue is an ordered, deduplicated set of pending work items plus the set
// of items currently being decoded. A key is present in at most one of the two
// at any time. All operations share one mutex.
type TaskQueue struct {
	mu       sync.Mutex
	pending  []WorkItem
	inFlight map[thumb.Key]WorkItem
	// notify is closed and replaced to wake every blocked TakeNext
	notify chan struct{}
}

// NewTaskQueue creates an empty task queue
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		inFlight: make(map[thumb.Key]WorkItem),
		notify:   make(chan struct{}),
	}
}

// Enqueue adds item to the queue unless an item for the same image is already
// pending or in flight. A pending duplicate is moved to the front, carrying
// the new item's tag and callback, when atFront is set.
func (q *TaskQueue) Enqueue(item WorkItem, atFront bool) EnqueueResult {
	key := item.Key()

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inFlight[key]; ok {
		return AlreadyInFlight
	}

	if idx := q.indexLocked(key); idx >= 0 {
		if !atFront {
			return Coalesced
		}
		q.pending = slices.Delete(q.pending, idx, idx+1)
		q.pending = slices.Insert(q.pending, 0, item)
		return Relocated
	}

	if atFront {
		q.pending = slices.Insert(q.pending, 0, item)
	} else {
		q.pending = append(q.pending, item)
	}
	q.broadcastLocked()
	return Queued
}

// Promote moves the pending item for key to the front of the queue.
// It returns false if the item is absent, in flight, or already first.
func (q *TaskQueue) Promote(key thumb.Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(key)
	if idx < 1 {
		return false
	}
	item := q.pending[idx]
	q.pending = slices.Delete(q.pending, idx, idx+1)
	q.pending = slices.Insert(q.pending, 0, item)
	return true
}

// Cancel removes the pending item for key. It reports whether an item was
// removed; items already in flight cannot be cancelled.
func (q *TaskQueue) Cancel(key thumb.Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(key)
	if idx < 0 {
		return false
	}
	q.pending = slices.Delete(q.pending, idx, idx+1)
	return true
}

// Clear does nothing. It reserves a hook for dropping per-image cached state.
func (q *TaskQueue) Clear(thumb.Key) {}

// TakeNext removes the head of the queue and records it as in flight. It
// blocks while the queue is empty and returns false once ctx is done.
func (q *TaskQueue) TakeNext(ctx context.Context) (WorkItem, bool) {
	for {
		if ctx.Err() != nil {
			return WorkItem{}, false
		}

		q.mu.Lock()
		if len(q.pending) > 0 {
			item := q.pending[0]
			q.pending = slices.Delete(q.pending, 0, 1)
			q.inFlight[item.Key()] = item
			q.mu.Unlock()
			return item, true
		}
		wake := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return WorkItem{}, false
		case <-wake:
		}
	}
}

// Finish removes key from the in-flight set once its decode has completed.
func (q *TaskQueue) Finish(key thumb.Key) {
	q.mu.Lock()
	delete(q.inFlight, key)
	q.mu.Unlock()
}

// Wake releases every goroutine blocked in TakeNext so it re-checks its context.
func (q *TaskQueue) Wake() {
	q.mu.Lock()
	q.broadcastLocked()
	q.mu.Unlock()
}

// Len returns the number of pending items.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight returns the number of items being decoded.
func (q *TaskQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

// Keys returns the pending keys in queue order.
func (q *TaskQueue) Keys() []thumb.Key {
	q.mu.Lock()
	defer q.mu.Unlock()
	keys := make([]thumb.Key, len(q.pending))
	for i, item := range q.pending {
		keys[i] = item.Key()
	}
	return keys
}

// Tags returns the pending tags in queue order.
func (q *TaskQueue) Tags() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	tags := make([]int, len(q.pending))
	for i, item := range q.pending {
		tags[i] = item.Tag
	}
	return tags
}

func (q *TaskQueue) indexLocked(key thumb.Key) int {
	return slices.IndexFunc(q.pending, func(w WorkItem) bool {
		return w.Key() == key
	})
}

func (q *TaskQueue) broadcastLocked() {
	close(q.notify)
	q.notify = make(chan struct{})
}
