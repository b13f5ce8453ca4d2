// filepath: internal/services/archive_service.go
package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/archive"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/events"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/task"
)

// BuildArchive packages the configuration tree. An empty dest writes a
// timestamped archive into the archive directory. It returns the archive
// path and its manifest.
func (s *Service) BuildArchive(ctx context.Context, opts models.ArchiveOptions, dest string, r task.Reporter) (string, *models.ArchiveManifest, error) {
	started := s.now()
	if dest == "" {
		dest = filepath.Join(s.Config.Paths.ArchiveDir, archive.DefaultName(started))
	}
	if opts.AppVersion == "" {
		opts.AppVersion = s.Config.Archive.AppVersion
	}

	manifest, err := s.Archives.BuildFile(ctx, s.Tree, opts, dest, r)
	if err != nil {
		return "", nil, wrap(err)
	}
	s.finish(ctx, operation{
		Kind:    "archive.build",
		Topic:   events.TopicArchiveBuilt,
		Target:  dest,
		Started: started,
		Success: true,
		Summary: fmt.Sprintf("%d files, %d models", manifest.Counts.Files, manifest.Counts.Models),
		Details: map[string]any{"reason": manifest.Reason, "algorithm": manifest.Algorithm},
	})
	return dest, manifest, nil
}

// ListArchives lists the archive directory, newest first.
func (s *Service) ListArchives() ([]models.ArchiveInfo, error) {
	list, err := archive.ListArchives(s.Config.Paths.ArchiveDir)
	if list == nil {
		list = []models.ArchiveInfo{}
	}
	return list, wrap(err)
}

// ArchiveContents returns the manifest of an archive.
func (s *Service) ArchiveContents(path string) (*models.ArchiveManifest, error) {
	m, err := archive.ListContents(path)
	return m, wrap(err)
}

// VerifyArchive re-hashes every entry of an archive.
func (s *Service) VerifyArchive(path string) (models.Report, error) {
	rep, err := archive.Verify(path)
	return rep, wrap(err)
}

// RestoreArchive writes the selected areas of an archive back into the tree.
func (s *Service) RestoreArchive(ctx context.Context, path string, opts models.RestoreOptions, r task.Reporter) (*models.RestoreReport, error) {
	started := s.now()
	if opts.LockMode == "" {
		opts.LockMode = s.lockMode()
	}

	report, err := s.Archives.Restore(ctx, path, s.Tree, opts, r)
	// Documents under the tree may have changed underneath the cache.
	s.Loader.Cache.Flush()
	if report == nil {
		return nil, wrap(err)
	}

	backupPath := ""
	if len(report.PreRestoreBackups) > 0 {
		backupPath = report.PreRestoreBackups[0]
	}
	s.finish(ctx, operation{
		Kind:       "archive.restore",
		Topic:      events.TopicArchiveRestored,
		Target:     path,
		Started:    started,
		Success:    err == nil && report.Success,
		Summary:    fmt.Sprintf("%d restored, %d failed, %d skipped", report.Restored, report.Failed, report.Skipped) + failureSuffix(err),
		BackupPath: backupPath,
		Details: map[string]any{
			"partial_success":     report.PartialSuccess,
			"pre_restore_backups": report.PreRestoreBackups,
		},
	})
	return report, wrap(err)
}

// UploadArchive sends a verified archive to the configured destination and
// returns its object key.
func (s *Service) UploadArchive(ctx context.Context, path string) (string, error) {
	dest := s.Upload
	if dest == nil {
		if s.Config.S3.Bucket == "" {
			return "", fmt.Errorf("%w: no [s3] bucket set", ErrConfig)
		}
		d, err := archive.NewS3Destination(ctx, s.Config.S3.Bucket, s.Config.S3.Region, s.Config.S3.Endpoint)
		if err != nil {
			return "", err
		}
		dest = d
	}

	key, err := archive.Upload(ctx, dest, path, s.Config.S3.Prefix)
	if err != nil {
		return "", wrap(err)
	}
	s.Auditor.Log(ctx, "archive.upload", s.Actor, path, map[string]interface{}{"key": key, "bucket": s.Config.S3.Bucket})
	return key, nil
}

// DeleteArchive removes an archive from the archive directory.
func (s *Service) DeleteArchive(path string) error {
	dir, err := filepath.Abs(s.Config.Paths.ArchiveDir)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if filepath.Dir(abs) != dir {
		return fmt.Errorf("%w: %s is not in the archive directory", ErrValidation, path)
	}
	if err := os.Remove(abs); err != nil {
		return wrap(err)
	}
	logging.Log.Infof("Deleted archive %s", filepath.Base(abs))
	return nil
}
