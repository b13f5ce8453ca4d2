// Package task runs long engine operations in the background and hands the
// caller a handle to observe progress, cancel, and collect the result.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
)

// Reporter receives progress updates from a running operation.
type Reporter interface {
	Report(done, total int, stage string)
}

// Nop is a Reporter that discards updates.
var Nop Reporter = nopReporter{}

type nopReporter struct{}

func (nopReporter) Report(int, int, string) {}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(done, total int, stage string)

func (f ReporterFunc) Report(done, total int, stage string) { f(done, total, stage) }

// Progress is a snapshot of a task's last reported state.
type Progress struct {
	Done    int       `json:"done"`
	Total   int       `json:"total"`
	Stage   string    `json:"stage"`
	Updated time.Time `json:"updated"`
}

// Task is the handle of a background operation producing a T.
type Task[T any] struct {
	ID   string
	Name string

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	progress Progress
	result   T
	err      error
}

// Start runs fn in a new goroutine. fn must observe ctx at its file
// boundaries; cancelling the task cancels ctx.
func Start[T any](ctx context.Context, name string, fn func(context.Context, Reporter) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		ID:     ulid.Make().String(),
		Name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	log := logging.Log.WithFields(map[string]any{"task": name, "task_id": t.ID})
	log.Debug("Task started")

	go func() {
		defer close(t.done)
		defer cancel()
		res, err := fn(ctx, t)
		t.mu.Lock()
		t.result, t.err = res, err
		t.mu.Unlock()
		if err != nil {
			log.WithError(err).Warn("Task finished with error")
			return
		}
		log.Debug("Task finished")
	}()
	return t
}

// Report records progress; it makes *Task usable as the operation's Reporter.
func (t *Task[T]) Report(done, total int, stage string) {
	t.mu.Lock()
	t.progress = Progress{Done: done, Total: total, Stage: stage, Updated: time.Now()}
	t.mu.Unlock()
}

// Progress returns the last reported progress.
func (t *Task[T]) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Cancel asks the operation to stop. It returns immediately.
func (t *Task[T]) Cancel() { t.cancel() }

// Done is closed when the operation has returned.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Result returns the outcome with finished=true once the task is done, or
// finished=false while it is still running.
func (t *Task[T]) Result() (res T, finished bool, err error) {
	select {
	case <-t.done:
	default:
		return res, false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, true, t.err
}

// Wait blocks until the task finishes or ctx is done. A done ctx does not
// cancel the task.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
