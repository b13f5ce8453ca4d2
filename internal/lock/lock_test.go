package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

func TestAcquire_FailFast(t *testing.T) {
	m := NewManager(t.TempDir())
	doc := filepath.Join(t.TempDir(), "Hiyori.vtube.json")

	first, err := m.Acquire(context.Background(), doc, models.LockFailFast)
	require.NoError(t, err)

	_, err = m.Acquire(context.Background(), doc, models.LockFailFast)
	assert.True(t, errors.Is(err, ErrLocked), "got %v", err)

	// A different document is independent.
	other, err := m.Acquire(context.Background(), doc+".other", models.LockFailFast)
	require.NoError(t, err)
	require.NoError(t, other.Release())

	require.NoError(t, first.Release())
	require.NoError(t, first.Release())

	again, err := m.Acquire(context.Background(), doc, models.LockFailFast)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquire_BlockWaitsForRelease(t *testing.T) {
	m := NewManager(t.TempDir())
	m.PollInterval = 5 * time.Millisecond
	doc := filepath.Join(t.TempDir(), "Hiyori.vtube.json")

	held, err := m.Acquire(context.Background(), doc, models.LockBlock)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		held.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l, err := m.Acquire(ctx, doc, models.LockBlock)
	require.NoError(t, err)
	require.NoError(t, l.Release())
}

func TestAcquire_BlockHonoursContext(t *testing.T) {
	m := NewManager(t.TempDir())
	m.PollInterval = 5 * time.Millisecond
	doc := filepath.Join(t.TempDir(), "Hiyori.vtube.json")

	held, err := m.Acquire(context.Background(), doc, models.LockBlock)
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, doc, models.LockBlock)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquire_BlockTimeout(t *testing.T) {
	m := NewManager(t.TempDir())
	m.Timeout = 100 * time.Millisecond
	doc := filepath.Join(t.TempDir(), "Hiyori.vtube.json")

	held, err := m.Acquire(context.Background(), doc, models.LockBlock)
	require.NoError(t, err)
	defer held.Release()

	start := time.Now()
	_, err = m.Acquire(context.Background(), doc, models.LockBlock)
	assert.True(t, errors.Is(err, ErrLocked), "got %v", err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquire_WritesOwner(t *testing.T) {
	m := NewManager(t.TempDir())
	doc := filepath.Join(t.TempDir(), "Hiyori.vtube.json")
	abs, err := filepath.Abs(doc)
	require.NoError(t, err)

	l, err := m.Acquire(context.Background(), doc, models.LockFailFast)
	require.NoError(t, err)
	defer l.Release()

	got, err := os.ReadFile(m.lockPath(abs))
	require.NoError(t, err)
	assert.Equal(t, abs+"\n", string(got))
}

func TestWriteOwner_ReportsFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Error(t, writeOwner(f, "/doc"))
}
