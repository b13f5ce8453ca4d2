package profile

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/document"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
)

// ApplyOptions tunes Apply.
type ApplyOptions struct {
	RequireBackup bool
	LockMode      models.LockMode
	DryRun        bool
}

// DefaultApplyOptions backs up the global document and waits for its lock.
func DefaultApplyOptions() ApplyOptions {
	return ApplyOptions{RequireBackup: true, LockMode: models.LockBlock}
}

// Apply merges settings into the global document at globalPath: captured
// keys are updated in place or appended, every other key is left alone.
// The write is guarded by the document lock and a backup; a document that
// fails validation after the write is restored from that backup.
func (s *Store) Apply(ctx context.Context, settings models.SettingsSet, globalPath string, opts ApplyOptions) (*models.ProfileApplyResult, error) {
	res := &models.ProfileApplyResult{Changelog: []string{}}
	log := logging.Log.WithFields(logrus.Fields{"document": globalPath, "settings": settings.Len()})

	if !opts.DryRun {
		mode := opts.LockMode
		if mode == "" {
			mode = models.LockBlock
		}
		l, err := s.Locks.Acquire(ctx, globalPath, mode)
		if err != nil {
			ee := models.Errorf(models.KindLocked, "global", "lock", err, "could not lock global document")
			ee.Untouched = true
			return res, ee
		}
		defer l.Release()
	}

	raw, err := os.ReadFile(globalPath)
	if err != nil {
		ee := models.Errorf(models.KindIO, "global", "load", err, "could not read global document")
		ee.Untouched = true
		return res, ee
	}
	g, err := document.ParseGlobal(raw)
	if err != nil {
		ee := models.Errorf(models.KindStructural, "global", "load", err, "could not parse global document")
		ee.Untouched = true
		return res, ee
	}
	if rep := document.ValidateGlobal(g); !rep.OK() {
		first := rep.Errors[0]
		ee := models.Errorf(models.KindValidation, first.Element, first.Check, nil, "global document invalid: %s", first.Message)
		ee.Untouched = true
		return res, ee
	}

	// Merge into a copy so nothing is half-applied on cancellation.
	merged := g.Clone()
	for _, list := range models.SettingLists {
		for _, st := range *settings.List(list) {
			if err := ctx.Err(); err != nil {
				ee := models.Errorf(models.KindCancelled, st.Key, "cancelled", err, "profile apply cancelled")
				ee.Untouched = true
				return res, ee
			}
			outcome, err := merged.Upsert(list, st.Key, st.Value)
			if err != nil {
				ee := models.Errorf(models.KindValidation, st.Key, "merge", err, "could not merge setting")
				ee.Untouched = true
				return res, ee
			}
			switch outcome {
			case document.Updated:
				res.Updated++
				res.Changelog = append(res.Changelog, fmt.Sprintf("update %s.%s", list, st.Key))
			case document.Added:
				res.Added++
				res.Changelog = append(res.Changelog, fmt.Sprintf("add %s.%s", list, st.Key))
			default:
				res.Unchanged++
			}
		}
	}

	out, err := document.SerializeGlobal(merged)
	if err != nil {
		ee := models.Errorf(models.KindStructural, "global", "serialize", err, "could not serialize global document")
		ee.Untouched = true
		return res, ee
	}
	if ee := revalidateGlobal(out); ee != nil {
		ee.Untouched = true
		return res, ee
	}
	if opts.DryRun || res.Updated+res.Added == 0 {
		log.Infof("Profile apply planned: %d updated, %d added", res.Updated, res.Added)
		return res, nil
	}

	var rec *models.BackupRecord
	if opts.RequireBackup {
		rec, err = s.Backups.Backup(globalPath)
		if err != nil {
			ee := models.Errorf(models.KindIO, "global", "backup", err, "backup failed")
			ee.Untouched = true
			return res, ee
		}
		res.BackupPath = rec.Path
	}

	if err := storage.WriteFile(globalPath, out, 0o644); err != nil {
		ee := models.Errorf(models.KindIO, "global", "atomic_write", err, "could not write global document")
		ee.Untouched = true
		return res, ee
	}

	written, err := os.ReadFile(globalPath)
	var ee *models.EngineError
	if err != nil {
		ee = models.Errorf(models.KindIO, "global", "read_back", err, "could not re-read global document")
	} else {
		ee = revalidateGlobal(written)
	}
	if ee != nil {
		s.rollback(globalPath, rec, raw, ee)
		res.RolledBack = ee.RolledBack
		return res, ee
	}

	res.Applied = true
	log.Infof("Profile applied: %d updated, %d added, %d unchanged", res.Updated, res.Added, res.Unchanged)
	return res, nil
}

// ApplyProfile loads the named profile and applies its settings.
func (s *Store) ApplyProfile(ctx context.Context, name, globalPath string, opts ApplyOptions) (*models.ProfileApplyResult, error) {
	p, err := s.Load(name)
	if err != nil {
		return &models.ProfileApplyResult{Changelog: []string{}}, err
	}
	return s.Apply(ctx, p.Settings, globalPath, opts)
}

func (s *Store) rollback(path string, rec *models.BackupRecord, original []byte, ee *models.EngineError) {
	var err error
	if rec != nil {
		err = s.Backups.Restore(path, rec)
	} else {
		err = storage.WriteFile(path, original, 0o644)
	}
	if err != nil {
		logging.Log.Errorf("Rollback of %s failed: %v", path, err)
		ee.Message += fmt.Sprintf("; rollback failed: %v", err)
		return
	}
	ee.RolledBack = true
}

func revalidateGlobal(raw []byte) *models.EngineError {
	g, err := document.ParseGlobal(raw)
	if err != nil {
		return models.Errorf(models.KindStructural, "global", "revalidate", err, "global document failed to parse after merge")
	}
	if rep := document.ValidateGlobal(g); !rep.OK() {
		first := rep.Errors[0]
		return models.Errorf(models.KindValidation, first.Element, first.Check, nil, "global document invalid after merge: %s", first.Message)
	}
	return nil
}
