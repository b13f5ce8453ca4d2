// filepath: internal/services/housekeeping_service.go
package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/archive"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/events"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/housekeeping"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
)

// Compile-time check to ensure interface is implemented.
var _ HousekeepingService = (*housekeepingService)(nil)

// housekeepingService manages the lifecycle of the background housekeeping
// worker and provides a method for manual triggering.
type housekeepingService struct {
	svc    *Service
	worker *housekeeping.Service
}

// NewHousekeepingService creates a new HousekeepingService.
func NewHousekeepingService(s *Service) *housekeepingService {
	deps := housekeeping.Dependencies{
		Documents: treeDocuments{s.Tree},
		Backups:   s.Backups,
		Archives:  archiveStore{s},
		Policy: housekeeping.Policy{
			Interval:     s.Config.HousekeepingInterval,
			KeepBackups:  s.Config.Backup.Keep,
			MaxAge:       s.Config.ArchiveMaxAge,
			MaxCount:     s.Config.Archive.MaxCount,
			MaxDiskSpace: s.Config.ArchiveMaxDiskSpace,
		},
	}
	hs := &housekeepingService{svc: s, worker: housekeeping.NewService(deps)}
	hs.worker.OnRun = hs.record
	return hs
}

// Start begins the background housekeeping worker.
func (h *housekeepingService) Start() { h.worker.Start() }

// Stop terminates the background housekeeping worker.
func (h *housekeepingService) Stop() { h.worker.Stop() }

// TriggerHousekeeping runs the cleanup tasks once.
func (h *housekeepingService) TriggerHousekeeping() (*models.HousekeepingReport, error) {
	return h.worker.RunNow()
}

// Watch runs housekeeping whenever a new archive lands in the archive
// directory, until ctx is done.
func (h *housekeepingService) Watch(ctx context.Context) error {
	dir := h.svc.Config.Paths.ArchiveDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrap(err)
	}
	return h.worker.Watch(ctx, housekeeping.WatchOptions{
		Dirs:  []string{dir},
		Match: func(name string) bool { return strings.HasSuffix(name, archive.Extension) },
	})
}

func (h *housekeepingService) record(r *models.HousekeepingReport) {
	h.svc.finish(context.Background(), operation{
		Kind:    "housekeeping.run",
		Topic:   events.TopicHousekeepingDone,
		Target:  h.svc.Config.Paths.StateDir,
		Started: h.svc.now(),
		Success: true,
		Summary: r.Message,
		Details: map[string]any{
			"backups_pruned":    r.BackupsPruned,
			"archives_deleted":  r.ArchivesDeleted,
			"space_freed_bytes": r.SpaceFreedBytes,
		},
	})
}

// treeDocuments lists the documents whose backups housekeeping prunes.
type treeDocuments struct{ tree archive.Tree }

func (t treeDocuments) Documents() ([]string, error) {
	docs, err := t.tree.ModelDocuments()
	if err != nil {
		return nil, fmt.Errorf("could not list model documents: %w", err)
	}
	if g := t.tree.GlobalConfig(); storage.Exists(g) {
		docs = append(docs, g)
	}
	return docs, nil
}

// archiveStore adapts the archive directory to housekeeping.ArchiveStore.
type archiveStore struct{ svc *Service }

func (a archiveStore) ListArchives() ([]models.ArchiveInfo, error) { return a.svc.ListArchives() }
func (a archiveStore) DeleteArchive(path string) error            { return a.svc.DeleteArchive(path) }
