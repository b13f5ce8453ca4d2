package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/archive"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/document"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// Recover scans every document of the tree and puts the newest backup that
// still validates back in place of each invalid one. With dryRun the scan
// only reports. Documents without a usable backup are reported and left
// alone.
func (s *Service) Recover(ctx context.Context, dryRun bool) (*models.RecoveryReport, error) {
	report := &models.RecoveryReport{DryRun: dryRun, Invalid: []models.RecoveryItem{}}

	docs, err := treeDocuments{s.Tree}.Documents()
	if err != nil {
		return nil, wrap(err)
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, wrap(models.Errorf(models.KindCancelled, doc, "cancelled", err, "recovery cancelled"))
		}
		rep, err := s.ValidateDocument(doc)
		if err != nil {
			logging.Log.Warnf("Recovery: could not check %s: %v", doc, err)
			continue
		}
		report.Checked++
		if rep.OK() {
			continue
		}

		item := models.RecoveryItem{Document: doc, Problem: rep.Errors[0].String()}
		rec, err := s.lastGoodBackup(doc)
		switch {
		case err != nil:
			item.Error = err.Error()
		case dryRun:
			item.BackupID = rec.ID
		default:
			item.BackupID = rec.ID
			if _, err := s.RestoreBackup(ctx, doc, rec.ID); err != nil {
				item.Error = err.Error()
			} else {
				item.Restored = true
				report.Restored++
			}
		}
		report.Invalid = append(report.Invalid, item)
	}

	if !dryRun && len(report.Invalid) > 0 {
		s.Auditor.Log(ctx, "recovery.run", s.Actor, s.Tree.Root, map[string]interface{}{
			"checked": report.Checked, "invalid": len(report.Invalid), "restored": report.Restored,
		})
	}
	logging.Log.Infof("Recovery: %d checked, %d invalid, %d restored", report.Checked, len(report.Invalid), report.Restored)
	return report, nil
}

// lastGoodBackup returns the newest backup of path whose content passes
// validation.
func (s *Service) lastGoodBackup(path string) (*models.BackupRecord, error) {
	recs, err := s.Backups.List(path)
	if err != nil {
		return nil, err
	}
	global := filepath.Base(path) == filepath.Base(archive.GlobalConfigPath)
	// Oldest first; walk back from the newest.
	for i := len(recs) - 1; i >= 0; i-- {
		raw, err := os.ReadFile(recs[i].Path)
		if err != nil {
			continue
		}
		if backupValid(raw, global, filepath.Dir(path)) {
			return &recs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no valid backup of %s", ErrNotFound, filepath.Base(path))
}

func backupValid(raw []byte, global bool, assetDir string) bool {
	if global {
		g, err := document.ParseGlobal(raw)
		if err != nil {
			return false
		}
		rep := document.ValidateGlobal(g)
		return rep.OK()
	}
	doc, err := document.Parse(raw)
	if err != nil {
		return false
	}
	rep := document.Validate(doc, document.ValidateOptions{AssetDir: assetDir})
	return rep.OK()
}
