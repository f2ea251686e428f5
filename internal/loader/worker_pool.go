package loader

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/thumbloader/internal/events"
	"github.com/phrazzld/thumbloader/internal/thumb"
)

// run is one Running period of the pool: its workers share ctx, which is
// cancelled by Stop.
type run struct {
	id      uuid.UUID
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers []*worker
}

type worker struct {
	id   uuid.UUID
	name string
}

// startRun launches workerCount workers. Caller must hold lifecycleMu.
func (l *Loader) startRun() *run {
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:     uuid.New(),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < l.workerCount; i++ {
		w := &worker{
			id:   uuid.New(),
			name: fmt.Sprintf("image-loader-%d", i),
		}
		r.workers = append(r.workers, w)
		r.wg.Add(1)
		go l.work(r, w)
	}

	l.logger.Info("image loader started",
		"run_id", r.id,
		"worker_count", l.workerCount)
	return r
}

// work takes items off the queue, one by one, decodes them and hands the
// result to the item's callback until the run is stopped.
func (l *Loader) work(r *run, w *worker) {
	defer r.wg.Done()

	logger := l.logger.With("worker_id", w.id, "worker", w.name)
	logger.Debug("starting worker")

	for {
		item, ok := l.queue.TakeNext(r.ctx)
		if !ok {
			logger.Debug("stopping worker")
			return
		}
		l.dumpQueue("take")
		l.process(r, item, logger)
	}
}

// process decodes one claimed item and delivers the result. A failed decode
// is delivered as a nil bitmap.
func (l *Loader) process(r *run, item WorkItem, logger *slog.Logger) {
	logger = logger.With("image_key", item.Key(), "tag", item.Tag)

	start := time.Now()
	bitmap, err := l.decode(r.ctx, item)
	l.queue.Finish(item.Key())

	if err != nil {
		logger.Warn("thumbnail decode failed", "error", err)
		l.emit(events.TypeDecodeFailed, item, map[string]string{"error": err.Error()})
	} else {
		logger.Debug("thumbnail decoded",
			"duration_ms", time.Since(start).Milliseconds(),
			"width", bitmap.Bounds().Dx(),
			"height", bitmap.Bounds().Dy())
		l.emit(events.TypeDecoded, item, map[string]int64{"bytes": thumb.ByteSize(bitmap)})
	}

	if item.Callback == nil {
		return
	}
	if item.DeliverAsync {
		l.deliverDeferred(r, item, bitmap, logger)
		return
	}
	l.deliver(item, bitmap, logger)
}

// decode runs the image's decode operation, converting a panic or an empty
// result into an error.
func (l *Loader) decode(ctx context.Context, item WorkItem) (bitmap image.Image, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			bitmap = nil
			err = fmt.Errorf("%w: %v", ErrDecodePanic, rec)
		}
	}()

	bitmap, err = item.Image.MiniThumb(ctx)
	if err != nil {
		return nil, err
	}
	if bitmap == nil {
		return nil, ErrNoBitmap
	}
	return bitmap, nil
}
