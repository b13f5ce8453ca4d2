// filepath: internal/services/backup_service.go
package services

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/events"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// CreateBackup snapshots the document at path while holding its lock.
func (s *Service) CreateBackup(ctx context.Context, path string) (*models.BackupRecord, error) {
	l, err := s.Locks.Acquire(ctx, path, s.lockMode())
	if err != nil {
		return nil, wrap(models.Errorf(models.KindLocked, path, "lock", err, "could not lock document"))
	}
	defer l.Release()

	rec, err := s.Backups.Backup(path)
	if err != nil {
		return nil, wrap(err)
	}
	s.Auditor.Log(ctx, "backup.create", s.Actor, path, map[string]interface{}{"backup_path": rec.Path})
	return rec, nil
}

// ListBackups returns the snapshots of the document at path, oldest first
// with the permanent first backup leading.
func (s *Service) ListBackups(path string) ([]models.BackupRecord, error) {
	recs, err := s.Backups.List(path)
	return recs, wrap(err)
}

// RestoreBackup puts the snapshot id (the newest one when id is empty) back
// in place of the document at path. The current bytes are snapshotted first
// so the restore itself can be undone.
func (s *Service) RestoreBackup(ctx context.Context, path, id string) (*models.BackupRecord, error) {
	started := s.now()

	var rec *models.BackupRecord
	var err error
	if id == "" {
		rec, err = s.Backups.Latest(path)
	} else {
		rec, err = s.Backups.Find(path, id)
	}
	if err != nil {
		return nil, wrap(err)
	}

	l, err := s.Locks.Acquire(ctx, path, s.lockMode())
	if err != nil {
		return nil, wrap(models.Errorf(models.KindLocked, path, "lock", err, "could not lock document"))
	}
	defer l.Release()

	safety, err := s.Backups.BackupBefore(path, rec)
	if err != nil {
		ee := models.Errorf(models.KindIO, path, "backup", err, "could not snapshot document before restore")
		ee.Untouched = true
		return nil, wrap(ee)
	}

	err = s.Backups.Restore(path, rec)
	s.Loader.Invalidate(path)
	s.finish(ctx, operation{
		Kind:       "backup.restore",
		Topic:      events.TopicBackupRestored,
		Target:     path,
		Started:    started,
		Success:    err == nil,
		Summary:    fmt.Sprintf("restored %s", filepath.Base(rec.Path)) + failureSuffix(err),
		BackupPath: safety.Path,
		Details:    map[string]any{"backup_id": rec.ID, "restored_from": rec.Path},
	})
	if err != nil {
		return nil, wrap(err)
	}
	return rec, nil
}

// PruneBackups keeps the newest keep snapshots of path; a negative keep uses
// the configured retention.
func (s *Service) PruneBackups(ctx context.Context, path string, keep int) ([]string, error) {
	removed, err := s.Backups.Prune(path, keep)
	if len(removed) > 0 {
		s.Auditor.Log(ctx, "backup.prune", s.Actor, path, map[string]interface{}{"removed": len(removed)})
	}
	if removed == nil {
		removed = []string{}
	}
	return removed, wrap(err)
}
