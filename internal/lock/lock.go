// Package lock enforces a single writer per document with exclusive OS file
// locks. Lock files live in a state directory and are keyed by the
// document's absolute path, so the document folders stay clean.
package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// ErrLocked is returned in fail-fast mode when another writer holds the lock.
var ErrLocked = errors.New("document is locked by another operation")

// DefaultPollInterval is how often block mode retries.
const DefaultPollInterval = 50 * time.Millisecond

// fileLocker abstracts the platform lock call. Lock must not block.
type fileLocker interface {
	Lock(f *os.File) error
	Unlock(f *os.File) error
}

// Manager hands out document locks.
type Manager struct {
	Dir          string
	PollInterval time.Duration
	// Timeout bounds how long block mode waits; zero waits until ctx is done.
	Timeout time.Duration

	locker fileLocker
}

// NewManager returns a Manager that keeps its lock files in dir.
func NewManager(dir string) *Manager {
	return &Manager{Dir: dir, PollInterval: DefaultPollInterval, locker: newPlatformLocker()}
}

// Lock is a held document lock.
type Lock struct {
	Document string

	f      *os.File
	locker fileLocker
}

// Acquire takes the exclusive lock for the document at path. In block mode
// it retries until the lock is free or ctx is done; in fail mode it returns
// ErrLocked right away.
func (m *Manager) Acquire(ctx context.Context, path string, mode models.LockMode) (*Lock, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create lock directory: %w", err)
	}
	lockPath := m.lockPath(abs)
	poll := m.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	var deadline <-chan time.Time
	if mode != models.LockFailFast && m.Timeout > 0 {
		timer := time.NewTimer(m.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		f, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open lock file: %w", err)
		}
		err = m.locker.Lock(f)
		if err == nil {
			if err := writeOwner(f, abs); err != nil {
				logging.Log.Warnf("Lock on %s held, but the lock file note could not be written: %v", abs, err)
			}
			return &Lock{Document: abs, f: f, locker: m.locker}, nil
		}
		f.Close()
		if !errors.Is(err, ErrLocked) {
			return nil, fmt.Errorf("could not lock %s: %w", abs, err)
		}
		if mode == models.LockFailFast {
			return nil, fmt.Errorf("%s: %w", abs, ErrLocked)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock on %s: %w", abs, ctx.Err())
		case <-deadline:
			return nil, fmt.Errorf("%s: gave up after %v: %w", abs, m.Timeout, ErrLocked)
		case <-time.After(poll):
		}
	}
}

// Release unlocks and closes the lock file. It is safe to call twice.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := l.locker.Unlock(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}

// writeOwner records the locked document in the lock file for anyone
// inspecting the state directory.
func writeOwner(f *os.File, abs string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(abs+"\n"), 0)
	return err
}

func (m *Manager) lockPath(abs string) string {
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(m.Dir, hex.EncodeToString(sum[:12])+".lock")
}
