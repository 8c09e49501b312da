package control

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"keywordgate/pkg/engine"
)

// FileWatcher keeps a pipeline in sync with a manifest file on disk.
type FileWatcher struct {
	path     string
	pipeline *engine.Pipeline
	builder  *Builder
	onApply  func()
	logger   *slog.Logger
}

func NewFileWatcher(path string, pipeline *engine.Pipeline, builder *Builder) *FileWatcher {
	if builder == nil {
		builder = &Builder{}
	}
	return &FileWatcher{
		path:     path,
		pipeline: pipeline,
		builder:  builder,
		logger:   slog.Default().With("component", "control", "file", path),
	}
}

// OnApply registers fn to run after every manifest that is applied.
func (f *FileWatcher) OnApply(fn func()) *FileWatcher {
	f.onApply = fn
	return f
}

// Load applies the file once.
func (f *FileWatcher) Load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	return load(f.pipeline, f.builder, data, f.logger, f.onApply)
}

// Run loads the manifest and reapplies it on every change until ctx is done.
// The parent directory is watched so editors that replace the file by rename
// are picked up.
func (f *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("file watcher: %w", err)
	}

	if err := f.Load(); err != nil {
		f.logger.Warn("initial manifest load failed", "error", err)
	}

	target := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := f.Load(); err != nil {
				f.logger.Warn("manifest reload failed, keeping current state", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("watch error", "error", err)
		}
	}
}
