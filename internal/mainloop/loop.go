package mainloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Sync when the loop no longer accepts posts
var ErrClosed = errors.New("main loop is closed")

// Executor runs posted functions later on a context it owns.
type Executor interface {
	// Post schedules fn to run on the executor. Functions posted by the same
	// goroutine run in the order they were posted. Post never blocks; it
	// returns false if the executor has been torn down and fn was dropped.
	Post(fn func()) bool
}

// Loop is an Executor whose functions all run on the goroutine calling Run.
// Its queue is unbounded.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	notify  chan struct{}
	closed  bool
	done    chan struct{}
	logger  *slog.Logger
}

// New creates an open Loop. Nothing runs until Run is called.
func New(logger *slog.Logger) *Loop {
	return &Loop{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger.With("component", "main_loop"),
	}
}

// Post implements Executor.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

// Run executes posted functions on the calling goroutine until the loop is
// closed and every accepted function has run. A panicking function is logged
// and does not stop the loop.
func (l *Loop) Run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range batch {
			l.invoke(fn)
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			l.logger.Debug("main loop exited")
			return
		}
		<-l.notify
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("posted function panicked", "panic", r)
		}
	}()
	fn()
}

// Close stops the loop from accepting new posts. Functions already accepted
// still run before Run returns. Close is safe to call more than once.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Sync posts a barrier and waits until it has run, so every function posted
// before the call has completed.
func (l *Loop) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if !l.Post(func() { close(reached) }) {
		return ErrClosed
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
