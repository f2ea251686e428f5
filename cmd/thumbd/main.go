// Package main implements thumbd, which decodes thumbnails for every image
// found under the given directories using the background image loader and
// optionally writes them out as PNG files.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/phrazzld/thumbloader/internal/config"
	"github.com/phrazzld/thumbloader/internal/events"
	"github.com/phrazzld/thumbloader/internal/loader"
	"github.com/phrazzld/thumbloader/internal/mainloop"
	"github.com/phrazzld/thumbloader/internal/platform/logger"
	"github.com/phrazzld/thumbloader/internal/thumb"
)

// errNoInput is returned when no directory was given on the command line
var errNoInput = errors.New("no input directories given")

// options are the command line settings that are not part of config.Config
type options struct {
	configPath string
	outDir     string
	front      []string
	dirs       []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("thumbd: %v", err)
	}
}

// run parses args, decodes every image found and returns the event counts.
func run(ctx context.Context, args []string) (map[events.Type]int, error) {
	v := viper.New()
	opts, err := parseFlags(args, v)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadWith(v, opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("thumbd configuration loaded",
		"worker_count", cfg.Loader.WorkerCount,
		"thumb_size", cfg.Loader.ThumbSize,
		"log_level", cfg.Server.LogLevel)

	images, err := scan(opts.dirs, cfg.Loader.ThumbSize)
	if err != nil {
		return nil, err
	}
	appLogger.Info("images found", "count", len(images), "dirs", strings.Join(opts.dirs, ","))

	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	stats := events.NewStats()
	emitter := events.NewInMemoryEventEmitter(appLogger)
	emitter.RegisterHandler(stats)

	loop := mainloop.New(appLogger)
	l := loader.New(loop, loader.Config{WorkerCount: cfg.Loader.WorkerCount}, appLogger,
		loader.WithEmitter(emitter))

	if len(images) == 0 {
		return stats.Snapshot(), nil
	}

	// Delivered callbacks run on the main loop, so remaining needs no lock
	remaining := len(images)
	for i, img := range images {
		i, img := i, img
		cb := func(bitmap image.Image) {
			if bitmap != nil && opts.outDir != "" {
				if err := writeThumb(opts.outDir, i, img, bitmap); err != nil {
					appLogger.Error("failed to write thumbnail", "path", img.Path(), "error", err)
				}
			}
			remaining--
			if remaining == 0 {
				loop.Close()
			}
		}
		l.Submit(img, i, cb, matchesAny(opts.front, img.Path()), true)
	}

	go func() {
		select {
		case <-ctx.Done():
			appLogger.Warn("interrupted, stopping loader", "pending", l.Pending())
			l.Stop()
			loop.Close()
		case <-loop.Done():
		}
	}()

	loop.Run()
	l.Stop()

	counts := stats.Snapshot()
	appLogger.Info("thumbd finished",
		"decoded", counts[events.TypeDecoded],
		"failed", counts[events.TypeDecodeFailed],
		"delivered", counts[events.TypeDelivered],
		"dropped", counts[events.TypeDropped])
	if ctx.Err() != nil {
		return counts, ctx.Err()
	}
	return counts, nil
}

// parseFlags parses the command line and binds loader flags into v so they
// take precedence over the environment and the config file.
func parseFlags(args []string, v *viper.Viper) (options, error) {
	var opts options

	fs := pflag.NewFlagSet("thumbd", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	fs.StringVarP(&opts.outDir, "out", "o", "", "directory to write PNG thumbnails to")
	fs.StringSliceVar(&opts.front, "front", nil, "file name patterns decoded ahead of the rest")
	fs.IntP("workers", "w", config.DefaultWorkerCount, "number of decode workers")
	fs.IntP("size", "s", config.DefaultThumbSize, "thumbnail bounding box in pixels")
	fs.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	bindings := map[string]string{
		"loader.worker_count": "workers",
		"loader.thumb_size":   "size",
		"server.log_level":    "log-level",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return opts, fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}

	opts.dirs = fs.Args()
	if len(opts.dirs) == 0 {
		return opts, errNoInput
	}
	return opts, nil
}

// matchesAny reports whether the base name of path matches one of patterns.
func matchesAny(patterns []string, path string) bool {
	base := filepath.Base(path)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// writeThumb encodes bitmap as PNG in dir. The index keeps names unique when
// several inputs share a base name.
func writeThumb(dir string, index int, img *thumb.FileImage, bitmap image.Image) error {
	base := strings.TrimSuffix(filepath.Base(img.Path()), filepath.Ext(img.Path()))
	path := filepath.Join(dir, fmt.Sprintf("%04d_%s.png", index, base))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, bitmap); err != nil {
		f.Close()
		return err
	}
	slog.Debug("thumbnail written", "path", path, "bytes", thumb.ByteSize(bitmap))
	return f.Close()
}
