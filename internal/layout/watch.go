package layout

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatchPresets reloads the presets file into the engine whenever it changes
// on disk. Reloads only affect subsequent layout passes; positions already
// merged stay where they are. Blocks until ctx is done.
func WatchPresets(ctx context.Context, log zerolog.Logger, engine *Engine, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory so editors that replace the file (rename+create)
	// keep triggering reloads.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			p, err := LoadPresets(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("presets reload failed, keeping current presets")
				continue
			}
			engine.SetPresets(p)
			log.Info().Str("path", path).Msg("layout presets reloaded")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("presets watcher error")
		}
	}
}
