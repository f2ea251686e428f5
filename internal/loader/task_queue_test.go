package loader

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/thumbloader/internal/thumb"
)

func keysOf(imgs ...*fakeImage) []thumb.Key {
	keys := make([]thumb.Key, len(imgs))
	for i, img := range imgs {
		keys[i] = img.Key()
	}
	return keys
}

func TestTaskQueue_Enqueue(t *testing.T) {
	a, b, c := newFakeImage("a"), newFakeImage("b"), newFakeImage("c")
	q := NewTaskQueue()

	assert.Equal(t, Queued, q.Enqueue(newItem(a, 1), false))
	assert.Equal(t, Queued, q.Enqueue(newItem(b, 2), false))
	assert.Equal(t, Queued, q.Enqueue(newItem(c, 3), true))

	assert.Equal(t, keysOf(c, a, b), q.Keys())
	assert.Equal(t, []int{3, 1, 2}, q.Tags())
	assert.Equal(t, 3, q.Len())
}

func TestTaskQueue_EnqueueDuplicate(t *testing.T) {
	a, b, c := newFakeImage("a"), newFakeImage("b"), newFakeImage("c")

	t.Run("back insertion of a pending image is a no-op", func(t *testing.T) {
		q := NewTaskQueue()
		q.Enqueue(newItem(a, 1), false)
		q.Enqueue(newItem(b, 2), false)

		assert.Equal(t, Coalesced, q.Enqueue(newItem(a, 9), false))
		assert.Equal(t, keysOf(a, b), q.Keys())
		assert.Equal(t, []int{1, 2}, q.Tags(), "original entry is kept")
	})

	t.Run("front insertion relocates with the newest submission", func(t *testing.T) {
		q := NewTaskQueue()
		q.Enqueue(newItem(a, 1), false)
		q.Enqueue(newItem(b, 2), false)
		q.Enqueue(newItem(c, 3), false)

		assert.Equal(t, Relocated, q.Enqueue(newItem(c, 30), true))
		assert.Equal(t, keysOf(c, a, b), q.Keys())
		assert.Equal(t, []int{30, 1, 2}, q.Tags())
	})

	t.Run("same image twice with front insertion leaves one entry at the front", func(t *testing.T) {
		q := NewTaskQueue()
		q.Enqueue(newItem(b, 2), false)
		q.Enqueue(newItem(a, 1), false)
		q.Enqueue(newItem(a, 1), true)

		assert.Equal(t, keysOf(a, b), q.Keys())
	})

	t.Run("in-flight image is not queued again", func(t *testing.T) {
		q := NewTaskQueue()
		q.Enqueue(newItem(a, 1), false)
		taken, ok := q.TakeNext(context.Background())
		require.True(t, ok)
		require.Equal(t, a.Key(), taken.Key())

		assert.Equal(t, AlreadyInFlight, q.Enqueue(newItem(a, 5), true))
		assert.Equal(t, AlreadyInFlight, q.Enqueue(newItem(a, 5), false))
		assert.Equal(t, 0, q.Len())
		assert.Equal(t, 1, q.InFlight())

		q.Finish(a.Key())
		assert.Equal(t, Queued, q.Enqueue(newItem(a, 5), false), "finished images can be queued again")
	})
}

func TestTaskQueue_Promote(t *testing.T) {
	a, b, c := newFakeImage("a"), newFakeImage("b"), newFakeImage("c")
	q := NewTaskQueue()
	q.Enqueue(newItem(a, 1), false)
	q.Enqueue(newItem(b, 2), false)
	q.Enqueue(newItem(c, 3), false)

	assert.False(t, q.Promote(a.Key()), "head is not moved")
	assert.Equal(t, keysOf(a, b, c), q.Keys())

	assert.True(t, q.Promote(c.Key()))
	assert.Equal(t, keysOf(c, a, b), q.Keys(), "other items keep their relative order")

	assert.False(t, q.Promote(newFakeImage("missing").Key()))
	assert.Equal(t, keysOf(c, a, b), q.Keys())

	taken, ok := q.TakeNext(context.Background())
	require.True(t, ok)
	assert.False(t, q.Promote(taken.Key()), "in-flight items cannot be promoted")
}

func TestTaskQueue_Cancel(t *testing.T) {
	a, b := newFakeImage("a"), newFakeImage("b")
	q := NewTaskQueue()
	q.Enqueue(newItem(a, 1), false)
	q.Enqueue(newItem(b, 2), false)

	assert.True(t, q.Cancel(b.Key()))
	assert.Equal(t, keysOf(a), q.Keys())
	assert.False(t, q.Cancel(b.Key()), "second cancel misses")

	_, ok := q.TakeNext(context.Background())
	require.True(t, ok)
	assert.False(t, q.Cancel(a.Key()), "in-flight items cannot be cancelled")
	assert.Equal(t, 1, q.InFlight())
}

func TestTaskQueue_ClearIsInert(t *testing.T) {
	a := newFakeImage("a")
	q := NewTaskQueue()
	q.Enqueue(newItem(a, 1), false)

	q.Clear(a.Key())

	assert.Equal(t, keysOf(a), q.Keys())
}

func TestTaskQueue_TakeNextMovesHeadInFlight(t *testing.T) {
	a, b := newFakeImage("a"), newFakeImage("b")
	q := NewTaskQueue()
	q.Enqueue(newItem(a, 1), false)
	q.Enqueue(newItem(b, 2), false)

	taken, ok := q.TakeNext(context.Background())

	require.True(t, ok)
	assert.Equal(t, a.Key(), taken.Key())
	assert.Equal(t, 1, taken.Tag)
	assert.Equal(t, keysOf(b), q.Keys())
	assert.Equal(t, 1, q.InFlight())

	q.Finish(a.Key())
	assert.Equal(t, 0, q.InFlight())
}

func TestTaskQueue_TakeNextBlocksUntilEnqueue(t *testing.T) {
	q := NewTaskQueue()
	a := newFakeImage("a")

	got := make(chan WorkItem, 1)
	go func() {
		taken, ok := q.TakeNext(context.Background())
		if ok {
			got <- taken
		}
	}()

	select {
	case <-got:
		t.Fatal("TakeNext returned from an empty queue")
	case <-time.After(30 * time.Millisecond):
	}

	q.Enqueue(newItem(a, 1), false)

	select {
	case taken := <-got:
		assert.Equal(t, a.Key(), taken.Key())
	case <-time.After(time.Second):
		t.Fatal("TakeNext was not woken by Enqueue")
	}
}

func TestTaskQueue_TakeNextStopsOnCancel(t *testing.T) {
	q := NewTaskQueue()
	ctx, cancel := context.WithCancel(context.Background())

	const waiters = 4
	var wg sync.WaitGroup
	results := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.TakeNext(ctx)
			results <- ok
		}()
	}

	cancel()
	q.Wake()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked takers were not released")
	}

	close(results)
	for ok := range results {
		assert.False(t, ok)
	}
}

func TestTaskQueue_TakeNextCancelledWithPendingWork(t *testing.T) {
	q := NewTaskQueue()
	q.Enqueue(newItem(newFakeImage("a"), 1), false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := q.TakeNext(ctx)

	assert.False(t, ok)
	assert.Equal(t, 1, q.Len(), "pending work stays queued for the next run")
}

// checkInvariants verifies no key is duplicated in the pending queue and
// no key is both pending and in flight.
func checkInvariants(t *testing.T, q *TaskQueue) {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[thumb.Key]bool, len(q.pending))
	for _, w := range q.pending {
		key := w.Key()
		assert.False(t, seen[key], "duplicate pending key %s", key)
		seen[key] = true
		_, inFlight := q.inFlight[key]
		assert.False(t, inFlight, "key %s is both pending and in flight", key)
	}
}

func TestTaskQueue_ConcurrentInvariants(t *testing.T) {
	q := NewTaskQueue()
	images := make([]*fakeImage, 12)
	for i := range images {
		images[i] = newFakeImage(fmt.Sprintf("img-%d.jpg", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	var takers sync.WaitGroup
	for i := 0; i < 3; i++ {
		takers.Add(1)
		go func() {
			defer takers.Done()
			for {
				taken, ok := q.TakeNext(ctx)
				if !ok {
					return
				}
				time.Sleep(time.Microsecond)
				q.Finish(taken.Key())
			}
		}()
	}

	var producers sync.WaitGroup
	for p := 0; p < 4; p++ {
		producers.Add(1)
		go func(seed int64) {
			defer producers.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 500; i++ {
				img := images[rng.Intn(len(images))]
				switch rng.Intn(4) {
				case 0:
					q.Enqueue(newItem(img, i), false)
				case 1:
					q.Enqueue(newItem(img, i), true)
				case 2:
					q.Promote(img.Key())
				default:
					q.Cancel(img.Key())
				}
				if i%50 == 0 {
					checkInvariants(t, q)
				}
			}
		}(int64(p))
	}

	producers.Wait()
	checkInvariants(t, q)
	cancel()
	q.Wake()
	takers.Wait()
	checkInvariants(t, q)
}
