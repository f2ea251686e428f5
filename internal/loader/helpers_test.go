package loader

import (
	"context"
	"image"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/phrazzld/thumbloader/internal/mainloop"
	"github.com/phrazzld/thumbloader/internal/thumb"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// fakeImage is an in-memory thumb.Image whose decode behaviour is scripted
type fakeImage struct {
	key    thumb.Key
	decode func(ctx context.Context) (image.Image, error)
}

func newFakeImage(name string) *fakeImage {
	return &fakeImage{key: thumb.Key("file:///photos/" + name)}
}

// gatedImage blocks its decode until gate is closed, ignoring cancellation
func gatedImage(name string, gate <-chan struct{}) *fakeImage {
	img := newFakeImage(name)
	img.decode = func(context.Context) (image.Image, error) {
		<-gate
		return newBitmap(), nil
	}
	return img
}

func (f *fakeImage) Key() thumb.Key {
	return f.key
}

func (f *fakeImage) MiniThumb(ctx context.Context) (image.Image, error) {
	if f.decode != nil {
		return f.decode(ctx)
	}
	return newBitmap(), nil
}

func newBitmap() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 4, 3))
}

// mockImage implements thumb.Image with testify expectations
type mockImage struct {
	mock.Mock
}

func (m *mockImage) Key() thumb.Key {
	args := m.Called()
	return args.Get(0).(thumb.Key)
}

func (m *mockImage) MiniThumb(ctx context.Context) (image.Image, error) {
	args := m.Called(ctx)
	bitmap, _ := args.Get(0).(image.Image)
	return bitmap, args.Error(1)
}

func startLoop(t *testing.T) *mainloop.Loop {
	t.Helper()
	loop := mainloop.New(setupTestLogger())
	go loop.Run()
	t.Cleanup(func() {
		loop.Close()
		<-loop.Done()
	})
	return loop
}

func newItem(img thumb.Image, tag int) WorkItem {
	return WorkItem{Image: img, Tag: tag}
}
