package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
)

// DefaultDebounce collapses bursts of file events into one run.
const DefaultDebounce = 2 * time.Second

// WatchOptions configures Watch.
type WatchOptions struct {
	// Dirs are watched non-recursively.
	Dirs []string
	// Match selects the file names whose creation triggers a run.
	Match    func(name string) bool
	Debounce time.Duration
}

// Watch runs housekeeping whenever a matching file is created or written
// in one of the watched directories. It blocks until ctx is done.
func (s *Service) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not start file watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range opts.Dirs {
		if err := w.Add(dir); err != nil {
			logging.Log.Warnf("Housekeeping cannot watch %s: %v", dir, err)
			continue
		}
		logging.Log.Debugf("Housekeeping watching %s", dir)
	}
	if len(w.WatchList()) == 0 {
		return fmt.Errorf("no watchable directory among %v", opts.Dirs)
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if opts.Match != nil && !opts.Match(ev.Name) {
				continue
			}
			timer.Reset(opts.Debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logging.Log.Warnf("Housekeeping watcher error: %v", err)
		case <-timer.C:
			if _, err := s.RunNow(); err != nil {
				logging.Log.Errorf("Housekeeping run failed: %v", err)
			}
		}
	}
}
