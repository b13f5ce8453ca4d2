package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/checksum"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

func setupTest(t *testing.T, keep int) (*Manager, string) {
	t.Helper()
	m := NewManager(keep, checksum.SHA256)
	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	calls := 0
	m.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	path := filepath.Join(t.TempDir(), "Hiyori.vtube.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"v":0}`), 0o644))
	return m, path
}

func TestBackup_CreatesFirstAndTimestamped(t *testing.T) {
	m, path := setupTest(t, 10)

	rec, err := m.Backup(path)
	require.NoError(t, err)
	assert.False(t, rec.First)
	assert.FileExists(t, OriginalPath(path))
	assert.FileExists(t, rec.Path)
	assert.Equal(t, int64(7), rec.Size)
	assert.Contains(t, filepath.Base(rec.Path), "Hiyori.vtube.backup_20261015_")
	assert.True(t, IsBackupFile(rec.Path))
	assert.True(t, IsBackupFile(OriginalPath(path)))
	assert.False(t, IsBackupFile(path))

	// The first backup is written once and keeps the first bytes.
	require.NoError(t, os.WriteFile(path, []byte(`{"v":1}`), 0o644))
	_, err = m.Backup(path)
	require.NoError(t, err)
	orig, err := os.ReadFile(OriginalPath(path))
	require.NoError(t, err)
	assert.Equal(t, `{"v":0}`, string(orig))

	recs, err := m.List(path)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.True(t, recs[0].First)
	assert.True(t, recs[1].CreatedAt.Before(recs[2].CreatedAt))

	latest, err := m.Latest(path)
	require.NoError(t, err)
	assert.Equal(t, recs[2].ID, latest.ID)
}

func TestBackup_MissingDocument(t *testing.T) {
	m := NewManager(0, "")
	_, err := m.Backup(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPrune_KeepsNewestAndFirst(t *testing.T) {
	m, path := setupTest(t, 3)
	var recs []*models.BackupRecord
	for i := 0; i < 5; i++ {
		rec, err := m.Backup(path)
		require.NoError(t, err)
		recs = append(recs, rec)
	}

	// Backup prunes automatically down to Keep.
	list, err := m.List(path)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.True(t, list[0].First)
	assert.Equal(t, recs[2].ID, list[1].ID)
	assert.Equal(t, recs[4].ID, list[3].ID)

	removed, err := m.Prune(path, 1)
	require.NoError(t, err)
	assert.Len(t, removed, 2)
	assert.NoFileExists(t, recs[2].Path)
	assert.FileExists(t, OriginalPath(path))

	removed, err = m.Prune(path, 0)
	require.NoError(t, err)
	assert.Len(t, removed, 1)
	assert.FileExists(t, OriginalPath(path))
}

func TestRestore(t *testing.T) {
	m, path := setupTest(t, 10)
	rec, err := m.Backup(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"v":"broken"`), 0o644))
	require.NoError(t, m.Restore(path, rec))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"v":0}`, string(got))

	found, err := m.Find(path, "original")
	require.NoError(t, err)
	assert.True(t, found.First)
	_, err = m.Find(path, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.True(t, errors.Is(err, ErrNoBackup))
}

func TestRestore_RejectsTamperedBackup(t *testing.T) {
	m, path := setupTest(t, 10)
	rec, err := m.Backup(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(rec.Path, []byte(`{"v":666}`), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(`{"v":2}`), 0o644))

	err = m.Restore(path, rec)
	var ee *models.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, models.KindIntegrity, ee.Kind)

	got, _ := os.ReadFile(path)
	assert.Equal(t, `{"v":2}`, string(got))
}

func TestLatest_NoBackup(t *testing.T) {
	m, path := setupTest(t, 10)
	_, err := m.Latest(path)
	assert.ErrorIs(t, err, ErrNoBackup)
}

func TestBackupBefore_KeepsPinnedSnapshot(t *testing.T) {
	m, path := setupTest(t, 2)

	oldest, err := m.Backup(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(`{"v":1}`), 0o644))
	middle, err := m.Backup(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(`{"v":2}`), 0o644))

	safety, err := m.BackupBefore(path, oldest)
	require.NoError(t, err)

	assert.FileExists(t, oldest.Path)
	assert.FileExists(t, safety.Path)
	assert.NoFileExists(t, middle.Path)

	require.NoError(t, m.Restore(path, oldest))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"v":0}`, string(got))

	// Without a pinned record the oldest snapshot is the one pruned.
	_, err = m.Backup(path)
	require.NoError(t, err)
	assert.NoFileExists(t, oldest.Path)
}
