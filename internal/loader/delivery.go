package loader

import (
	"image"
	"log/slog"

	"github.com/phrazzld/thumbloader/internal/events"
)

// deliver invokes the callback on the current worker goroutine.
func (l *Loader) deliver(item WorkItem, bitmap image.Image, logger *slog.Logger) {
	if l.invoke(item, bitmap, logger) {
		l.emit(events.TypeDelivered, item, nil)
	}
}

// deliverDeferred posts the callback to the executor. The result is dropped if
// the run has been stopped, either before the post or before the posted
// function gets to run, or if the executor no longer accepts posts.
func (l *Loader) deliverDeferred(r *run, item WorkItem, bitmap image.Image, logger *slog.Logger) {
	if r.ctx.Err() != nil {
		l.drop(item, "loader stopped", logger)
		return
	}

	posted := l.exec.Post(func() {
		if r.ctx.Err() != nil {
			l.drop(item, "loader stopped", logger)
			return
		}
		l.deliver(item, bitmap, logger)
	})
	if !posted {
		l.drop(item, "executor closed", logger)
	}
}

func (l *Loader) drop(item WorkItem, reason string, logger *slog.Logger) {
	logger.Debug("deferred delivery dropped", "reason", reason)
	l.emit(events.TypeDropped, item, map[string]string{"reason": reason})
}

// invoke runs the callback, recovering a panic so the calling goroutine keeps
// serving. It reports whether the callback returned normally.
func (l *Loader) invoke(item WorkItem, bitmap image.Image, logger *slog.Logger) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("thumbnail callback panicked", "panic", rec)
			ok = false
		}
	}()
	item.Callback(bitmap)
	return true
}
