// filepath: internal/housekeeping/service_test.go
package housekeeping

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// MockDocuments is a mock implementation of DocumentSource.
type MockDocuments struct {
	mock.Mock
}

func (m *MockDocuments) Documents() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockBackups is a mock implementation of BackupPruner.
type MockBackups struct {
	mock.Mock
}

func (m *MockBackups) Prune(path string, keep int) ([]string, error) {
	args := m.Called(path, keep)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockArchives is a mock implementation of ArchiveStore.
type MockArchives struct {
	mock.Mock
}

func (m *MockArchives) ListArchives() ([]models.ArchiveInfo, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ArchiveInfo), args.Error(1)
}

func (m *MockArchives) DeleteArchive(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

// setupTest creates a new service with mock dependencies for testing.
func setupTest(policy Policy) (*Service, *MockDocuments, *MockBackups, *MockArchives) {
	docs, backups, archives := new(MockDocuments), new(MockBackups), new(MockArchives)
	service := NewService(Dependencies{Documents: docs, Backups: backups, Archives: archives, Policy: policy})
	return service, docs, backups, archives
}

func archiveAt(name string, age time.Duration, size int64) models.ArchiveInfo {
	return models.ArchiveInfo{Name: name, Path: "/archives/" + name, Size: size, CreatedAt: time.Now().Add(-age)}
}

func TestScheduleNextRun(t *testing.T) {
	t.Run("Zero interval", func(t *testing.T) {
		service, _, _, _ := setupTest(Policy{})
		assert.Equal(t, DefaultCheckInterval, service.scheduleNextRun())
	})

	t.Run("Next run in future", func(t *testing.T) {
		service, _, _, _ := setupTest(Policy{Interval: time.Hour})
		service.lastRun = time.Now().Add(-30 * time.Minute)
		duration := service.scheduleNextRun()
		assert.True(t, duration > 29*time.Minute && duration < 31*time.Minute)
	})

	t.Run("Next run in past", func(t *testing.T) {
		service, _, _, _ := setupTest(Policy{Interval: time.Hour})
		service.lastRun = time.Now().Add(-90 * time.Minute)
		assert.Equal(t, MinCheckInterval, service.scheduleNextRun())
	})
}

func TestRun_PrunesBackups(t *testing.T) {
	service, docs, backups, archives := setupTest(Policy{KeepBackups: 5})
	docs.On("Documents").Return([]string{"/vts/a.vtube.json", "/vts/b.vtube.json"}, nil)
	backups.On("Prune", "/vts/a.vtube.json", 5).Return([]string{"/vts/a.backup_1.json", "/vts/a.backup_2.json"}, nil)
	backups.On("Prune", "/vts/b.vtube.json", 5).Return(nil, errors.New("permission denied"))
	archives.On("ListArchives").Return([]models.ArchiveInfo{}, nil)

	report, err := service.RunNow()
	require.NoError(t, err)
	assert.Equal(t, 2, report.DocumentsChecked)
	assert.Equal(t, 2, report.BackupsPruned)
	assert.Zero(t, report.ArchivesDeleted)
	backups.AssertExpectations(t)
	assert.False(t, service.LastRun().IsZero())
}

func TestRun_ArchiveRetention(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		deleted []string
		freed   int64
	}{
		{"disabled", Policy{}, nil, 0},
		{"by age", Policy{MaxAge: 30 * 24 * time.Hour}, []string{"old.zip"}, 100},
		{"by count", Policy{MaxCount: 1}, []string{"old.zip", "mid.zip"}, 300},
		{"by disk space", Policy{MaxDiskSpace: 400}, []string{"old.zip"}, 100},
		{"age then space", Policy{MaxAge: 30 * 24 * time.Hour, MaxDiskSpace: 300}, []string{"old.zip", "mid.zip"}, 300},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service, docs, _, archives := setupTest(tc.policy)
			docs.On("Documents").Return([]string{}, nil)
			archives.On("ListArchives").Return([]models.ArchiveInfo{
				archiveAt("new.zip", time.Hour, 150),
				archiveAt("old.zip", 40*24*time.Hour, 100),
				archiveAt("mid.zip", 10*24*time.Hour, 200),
			}, nil)
			for _, name := range tc.deleted {
				archives.On("DeleteArchive", "/archives/"+name).Return(nil).Once()
			}

			report, err := service.RunNow()
			require.NoError(t, err)
			assert.Equal(t, len(tc.deleted), report.ArchivesDeleted)
			assert.Equal(t, tc.freed, report.SpaceFreedBytes)
			archives.AssertExpectations(t)
			archives.AssertNumberOfCalls(t, "DeleteArchive", len(tc.deleted))
		})
	}
}

func TestRun_ListArchivesError(t *testing.T) {
	service, docs, _, archives := setupTest(Policy{})
	docs.On("Documents").Return([]string{}, nil)
	archives.On("ListArchives").Return(nil, errors.New("disk gone"))

	_, err := service.RunNow()
	assert.Error(t, err)
}

func TestRun_DeleteFailureNotCounted(t *testing.T) {
	service, docs, _, archives := setupTest(Policy{MaxCount: 1})
	docs.On("Documents").Return([]string{}, nil)
	archives.On("ListArchives").Return([]models.ArchiveInfo{
		archiveAt("a.zip", 2*time.Hour, 10),
		archiveAt("b.zip", time.Hour, 10),
	}, nil)
	archives.On("DeleteArchive", "/archives/a.zip").Return(errors.New("locked"))

	report, err := service.RunNow()
	require.NoError(t, err)
	assert.Zero(t, report.ArchivesDeleted)
}

func TestWatch_RunsOnNewArchive(t *testing.T) {
	dir := t.TempDir()
	service, _, _, archives := setupTest(Policy{})
	service.Deps.Documents = nil
	archives.On("ListArchives").Return([]models.ArchiveInfo{}, nil)

	runs := make(chan *models.HousekeepingReport, 4)
	service.OnRun = func(r *models.HousekeepingReport) { runs <- r }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- service.Watch(ctx, WatchOptions{
			Dirs:     []string{dir},
			Match:    func(name string) bool { return strings.HasSuffix(name, ".zip") },
			Debounce: 20 * time.Millisecond,
		})
	}()

	// Give the watcher time to register before creating files.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vts_backup_1.zip"), []byte("x"), 0o644))

	select {
	case <-runs:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for housekeeping run")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestWatch_NoDirectory(t *testing.T) {
	service, _, _, _ := setupTest(Policy{})
	err := service.Watch(context.Background(), WatchOptions{Dirs: []string{filepath.Join(t.TempDir(), "missing")}})
	assert.Error(t, err)
}
