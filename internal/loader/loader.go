package loader

import (
	"context"
	"log/slog"
	"sync"

	"github.com/phrazzld/thumbloader/internal/events"
	"github.com/phrazzld/thumbloader/internal/mainloop"
	"github.com/phrazzld/thumbloader/internal/thumb"
)

// State is the lifecycle state of a Loader's worker pool
type State int

// Lifecycle states. A pool moves Stopped -> Running -> Stopping -> Stopped.
const (
	StateStopped State = iota
	StateRunning
	StateStopping
)

// String returns the state name, used in logs.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Config holds configuration options for a Loader
type Config struct {
	// WorkerCount is the number of decode goroutines started per run.
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		WorkerCount: 2,
	}
}

// Option customises a Loader
type Option func(*Loader)

// WithEmitter publishes lifecycle events of every work item to emitter.
func WithEmitter(emitter events.EventEmitter) Option {
	return func(l *Loader) {
		l.emitter = emitter
	}
}

// Loader schedules thumbnail decodes on a pool of worker goroutines and
// delivers the results to per-item callbacks.
type Loader struct {
	queue       *TaskQueue
	exec        mainloop.Executor
	workerCount int
	logger      *slog.Logger
	emitter     events.EventEmitter

	// lifecycleMu guards state and run; it is independent of the queue lock
	lifecycleMu   sync.Mutex
	lifecycleCond *sync.Cond
	state         State
	run           *run
}

// New creates a Loader that posts deferred callbacks to exec. Workers are
// started lazily by the first submission or by EnsureStarted.
func New(exec mainloop.Executor, cfg Config, logger *slog.Logger, opts ...Option) *Loader {
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", cfg.WorkerCount,
			"default_count", 1)
	}

	l := &Loader{
		queue:       NewTaskQueue(),
		exec:        exec,
		workerCount: workerCount,
		logger:      logger.With("component", "image_loader"),
		state:       StateStopped,
	}
	l.lifecycleCond = sync.NewCond(&l.lifecycleMu)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit schedules img for decoding, starting the pool if needed. It never
// returns the bitmap itself; cb receives it on a worker goroutine, or on the
// executor when deliverAsync is set. A nil cb decodes without delivery.
//
// Submitting an image that is already pending is coalesced: with postAtFront
// the pending entry moves to the front and takes the new tag and callback,
// otherwise the call has no effect. Submitting an image that is being decoded
// has no effect; only the callback of the original submission will run.
func (l *Loader) Submit(img thumb.Image, tag int, cb Callback, postAtFront, deliverAsync bool) {
	if img == nil {
		l.logger.Warn("ignoring submission without image", "tag", tag)
		return
	}

	l.EnsureStarted()

	item := WorkItem{
		Image:        img,
		Tag:          tag,
		Callback:     cb,
		DeliverAsync: deliverAsync,
	}
	result := l.queue.Enqueue(item, postAtFront)

	l.logger.Debug("work item submitted",
		"image_key", item.Key(),
		"tag", tag,
		"at_front", postAtFront,
		"deliver_async", deliverAsync,
		"result", result.String())
	l.dumpQueue("submit")

	switch result {
	case Queued:
		l.emit(events.TypeSubmitted, item, nil)
	case Relocated:
		l.emit(events.TypePromoted, item, nil)
	default:
		l.emit(events.TypeCoalesced, item, map[string]string{"result": result.String()})
	}
}

// PromoteToFront moves the pending request for img to the head of the queue.
// It has no effect if img is not pending or is already first.
func (l *Loader) PromoteToFront(img thumb.Image) {
	if l.queue.Promote(img.Key()) {
		l.emit(events.TypePromoted, WorkItem{Image: img}, nil)
		l.dumpQueue("promote")
	}
}

// Cancel removes the pending request for img. It returns true iff a pending
// request was removed; a decode already in progress runs to completion.
func (l *Loader) Cancel(img thumb.Image) bool {
	removed := l.queue.Cancel(img.Key())
	if removed {
		l.emit(events.TypeCancelled, WorkItem{Image: img}, nil)
		l.dumpQueue("cancel")
	}
	return removed
}

// Clear is reserved for invalidating per-image cached state. It currently
// does nothing.
func (l *Loader) Clear(img thumb.Image) {
	l.queue.Clear(img.Key())
}

// EnsureStarted starts the worker pool if it is stopped. It does nothing
// while the pool is running or while a Stop is in progress; items submitted
// during a Stop stay pending until the pool is started again.
func (l *Loader) EnsureStarted() {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()

	if l.state != StateStopped {
		return
	}

	l.run = l.startRun()
	l.state = StateRunning
}

// Stop signals every worker to exit, wakes those waiting for work and blocks
// until all of them have returned. Pending items stay queued for the next
// run. Deferred results not yet delivered when Stop is called are dropped.
func (l *Loader) Stop() {
	l.lifecycleMu.Lock()
	for l.state == StateStopping {
		l.lifecycleCond.Wait()
	}
	if l.state == StateStopped {
		l.lifecycleMu.Unlock()
		return
	}
	r := l.run
	l.state = StateStopping
	l.lifecycleMu.Unlock()

	l.logger.Info("stopping image loader", "run_id", r.id, "worker_count", len(r.workers))
	r.cancel()
	l.queue.Wake()
	r.wg.Wait()

	l.lifecycleMu.Lock()
	l.state = StateStopped
	l.run = nil
	l.lifecycleCond.Broadcast()
	l.lifecycleMu.Unlock()

	l.logger.Info("image loader stopped",
		"run_id", r.id,
		"pending", l.queue.Len())
}

// State returns the current lifecycle state.
func (l *Loader) State() State {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	return l.state
}

// Workers returns the number of workers belonging to the current run, or
// zero when the pool is stopped.
func (l *Loader) Workers() int {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.run == nil {
		return 0
	}
	return len(l.run.workers)
}

// Pending returns the number of queued, not yet started items.
func (l *Loader) Pending() int {
	return l.queue.Len()
}

// InFlight returns the number of items currently being decoded.
func (l *Loader) InFlight() int {
	return l.queue.InFlight()
}

func (l *Loader) dumpQueue(op string) {
	if !l.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.logger.Debug("queue state",
		"op", op,
		"queue_len", l.queue.Len(),
		"in_flight", l.queue.InFlight(),
		"queue_tags", l.queue.Tags())
}

func (l *Loader) emit(eventType events.Type, item WorkItem, payload interface{}) {
	if l.emitter == nil {
		return
	}
	event, err := events.NewEvent(eventType, string(item.Key()), item.Tag, payload)
	if err != nil {
		l.logger.Error("failed to create event", "event_type", eventType, "error", err)
		return
	}
	if err := l.emitter.EmitEvent(context.Background(), event); err != nil {
		l.logger.Debug("event handler failed", "event_type", eventType, "error", err)
	}
}
