// filepath: internal/archive/restore.go
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/checksum"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/document"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/task"
)

const msgModelMissing = "model not installed"

// restoreItem is one selected manifest entry and where it goes.
type restoreItem struct {
	Entry  models.ManifestEntry
	Target string
	Exists bool

	backupPath string
	previous   []byte
	written    bool
}

func (it *restoreItem) document() bool {
	return it.Entry.Area != models.AreaModelAssets && it.Entry.Area != models.AreaPluginAuth
}

// Restore writes the selected files of the archive at archivePath back into
// tree. The whole container is verified before anything is written. Files
// are then written one at a time; a file that fails is rolled back on its
// own and the others proceed, so the report may be a partial success.
func (m *Manager) Restore(ctx context.Context, archivePath string, tree Tree, opts models.RestoreOptions, r task.Reporter) (*models.RestoreReport, error) {
	if r == nil {
		r = task.Nop
	}
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid restore options: %w", err)
	}
	report := &models.RestoreReport{Files: []models.FileOutcome{}, PreRestoreBackups: []string{}}

	c, err := openContainer(archivePath)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	// 1. Integrity first: nothing is written unless every entry matches.
	r.Report(0, len(c.manifest.Files), "verify")
	check := c.verify()
	report.Warnings = append(report.Warnings, check.Warnings...)
	if !check.OK() {
		report.Errors = append(report.Errors, check.Errors...)
		logging.Log.Errorf("Restore: archive %s failed verification (%d errors)", filepath.Base(archivePath), len(check.Errors))
		ee := models.Errorf(models.KindIntegrity, check.Errors[0].Element, check.Errors[0].Check, nil, "archive failed verification, nothing restored")
		ee.Untouched = true
		return report, ee
	}

	// 2. Select entries and resolve their targets.
	items := m.selectItems(c.manifest, tree, opts, report)

	// 3. Safety snapshot of every document about to be overwritten.
	if opts.PreRestoreBackup {
		r.Report(0, len(items), "backup")
		for _, it := range items {
			if !it.Exists || !it.document() {
				continue
			}
			rec, err := m.Backups.Backup(it.Target)
			if err != nil {
				ee := models.Errorf(models.KindIO, it.Entry.Path, "pre_restore_backup", err, "could not back up document before restore")
				ee.Untouched = true
				report.Errors = append(report.Errors, ee.Issue())
				return report, ee
			}
			it.backupPath = rec.Path
			report.PreRestoreBackups = append(report.PreRestoreBackups, rec.Path)
		}
	}

	// 4. One file at a time.
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			m.rollbackAll(items[:i])
			for _, done := range items[:i] {
				setOutcome(report, done.Entry.Path, models.FileFailed, "rolled back after cancellation")
			}
			ee := models.Errorf(models.KindCancelled, it.Entry.Path, "cancelled", err, "restore cancelled")
			ee.RolledBack = true
			report.Errors = append(report.Errors, ee.Issue())
			finish(report)
			return report, ee
		}

		if err := m.restoreOne(ctx, c, it, opts); err != nil {
			logging.Log.Warnf("Restore: %s failed: %v", it.Entry.Path, err)
			report.Errors = append(report.Errors, issueOf(it.Entry.Path, err))
			report.Files = append(report.Files, models.FileOutcome{Path: it.Entry.Path, Status: models.FileFailed, Message: err.Error(), BackupPath: it.backupPath})
		} else {
			logging.Log.Debugf("Restore: wrote %s", it.Entry.Path)
			report.Files = append(report.Files, models.FileOutcome{Path: it.Entry.Path, Status: models.FileRestored, BackupPath: it.backupPath})
		}
		r.Report(i+1, len(items), "restore")
	}

	finish(report)
	logging.Log.Infof("Restore: %d restored, %d failed, %d skipped", report.Restored, report.Failed, report.Skipped)
	return report, nil
}

// selectItems picks the manifest entries opts selects. Entries that cannot
// be restored at all are recorded in the report and left out.
func (m *Manager) selectItems(manifest *models.ArchiveManifest, tree Tree, opts models.RestoreOptions, report *models.RestoreReport) []*restoreItem {
	var items []*restoreItem
	for _, e := range manifest.Files {
		if !opts.Includes(e.Area) {
			report.Files = append(report.Files, models.FileOutcome{Path: e.Path, Status: models.FileSkipped, Message: "area not selected"})
			continue
		}
		target, err := tree.Path(e.Path)
		if err != nil {
			report.Files = append(report.Files, models.FileOutcome{Path: e.Path, Status: models.FileFailed, Message: err.Error()})
			report.Errors = append(report.Errors, models.Issue{Kind: models.KindIntegrity, Element: e.Path, Check: "path", Message: err.Error()})
			continue
		}
		it := &restoreItem{Entry: e, Target: target, Exists: storage.Exists(target)}

		if !opts.CreateMissing {
			switch {
			case e.Area == models.AreaModelConfigs && !it.Exists:
				report.Files = append(report.Files, models.FileOutcome{Path: e.Path, Status: models.FileFailed, Message: msgModelMissing})
				report.Errors = append(report.Errors, models.Issue{Kind: models.KindIO, Element: e.Path, Check: "target_exists", Message: msgModelMissing})
				continue
			case e.Area == models.AreaModelAssets && !modelFolderExists(tree, e.Path):
				report.Files = append(report.Files, models.FileOutcome{Path: e.Path, Status: models.FileSkipped, Message: msgModelMissing})
				report.Warnings = append(report.Warnings, models.Issue{Kind: models.KindIO, Element: e.Path, Check: "target_exists", Message: msgModelMissing})
				continue
			}
		}
		items = append(items, it)
	}
	return items
}

// restoreOne writes a single file under its document lock, checks it, and
// puts the previous bytes back when the check fails.
func (m *Manager) restoreOne(ctx context.Context, c *container, it *restoreItem, opts models.RestoreOptions) error {
	data, err := c.read(it.Entry.Path)
	if err != nil {
		return models.Errorf(models.KindIO, it.Entry.Path, "read", err, "could not read archive entry")
	}

	lk, err := m.Locks.Acquire(ctx, it.Target, lockMode(opts.LockMode))
	if err != nil {
		return models.Errorf(models.KindLocked, it.Entry.Path, "lock", err, "could not lock target")
	}
	defer lk.Release()

	if it.Exists {
		prev, err := os.ReadFile(it.Target)
		if err != nil {
			return models.Errorf(models.KindIO, it.Entry.Path, "read", err, "could not read current file")
		}
		it.previous = prev
	}

	if err := storage.WriteFile(it.Target, data, 0o644); err != nil {
		return models.Errorf(models.KindIO, it.Entry.Path, "write", err, "could not write file")
	}
	it.written = true

	if err := revalidate(it); err != nil {
		if rbErr := m.rollback(it); rbErr != nil {
			logging.Log.Errorf("Restore: rollback of %s failed: %v", it.Entry.Path, rbErr)
			return err
		}
		var ee *models.EngineError
		if errors.As(err, &ee) {
			ee.RolledBack = true
		}
		return err
	}
	return nil
}

// revalidate re-reads the written file and checks it against the manifest
// fingerprint and, for documents, the document rules.
func revalidate(it *restoreItem) error {
	ok, err := checksum.MatchFile(it.Target, it.Entry.Fingerprint)
	if err != nil {
		return models.Errorf(models.KindIO, it.Entry.Path, "read_back", err, "could not read back restored file")
	}
	if !ok {
		return models.Errorf(models.KindIntegrity, it.Entry.Path, "fingerprint", nil, "restored file does not match manifest")
	}
	if !it.document() {
		return nil
	}

	raw, err := os.ReadFile(it.Target)
	if err != nil {
		return models.Errorf(models.KindIO, it.Entry.Path, "read_back", err, "could not read back restored file")
	}
	switch it.Entry.Area {
	case models.AreaModelConfigs:
		doc, err := document.Parse(raw)
		if err != nil {
			return models.Errorf(models.KindStructural, it.Entry.Path, "parse", err, "restored document is invalid")
		}
		if rep := document.Validate(doc, document.ValidateOptions{}); !rep.OK() {
			return models.Errorf(models.KindValidation, it.Entry.Path, rep.Errors[0].Check, nil, "restored document is invalid: %s", rep.Errors[0])
		}
	case models.AreaGlobalConfig:
		g, err := document.ParseGlobal(raw)
		if err != nil {
			return models.Errorf(models.KindStructural, it.Entry.Path, "parse", err, "restored settings are invalid")
		}
		if rep := document.ValidateGlobal(g); !rep.OK() {
			return models.Errorf(models.KindValidation, it.Entry.Path, rep.Errors[0].Check, nil, "restored settings are invalid: %s", rep.Errors[0])
		}
	default:
		if !json.Valid(stripUTF8BOM(raw)) {
			return models.Errorf(models.KindStructural, it.Entry.Path, "parse", nil, "restored file is not valid JSON")
		}
	}
	return nil
}

// rollback puts back what was on disk before the item was written.
func (m *Manager) rollback(it *restoreItem) error {
	if !it.written {
		return nil
	}
	var err error
	if it.Exists {
		err = storage.WriteFile(it.Target, it.previous, 0o644)
	} else {
		err = os.Remove(it.Target)
	}
	if err == nil {
		it.written = false
	}
	return err
}

func (m *Manager) rollbackAll(items []*restoreItem) {
	for _, it := range items {
		if err := m.rollback(it); err != nil {
			logging.Log.Errorf("Restore: rollback of %s failed: %v", it.Entry.Path, err)
		}
	}
}

func modelFolderExists(tree Tree, rel string) bool {
	parts := strings.SplitN(rel, "/", 3)
	if len(parts) < 3 {
		return false
	}
	info, err := os.Stat(filepath.Join(tree.Root, parts[0], parts[1]))
	return err == nil && info.IsDir()
}

func setOutcome(report *models.RestoreReport, p, status, msg string) {
	for i := range report.Files {
		if report.Files[i].Path == p {
			report.Files[i].Status = status
			report.Files[i].Message = msg
		}
	}
}

func finish(report *models.RestoreReport) {
	report.Restored, report.Failed, report.Skipped = 0, 0, 0
	for _, f := range report.Files {
		switch f.Status {
		case models.FileRestored:
			report.Restored++
		case models.FileFailed:
			report.Failed++
		case models.FileSkipped:
			report.Skipped++
		}
	}
	report.Success = report.Failed == 0 && report.Restored > 0
	report.PartialSuccess = report.Failed > 0 && report.Restored > 0
}

func issueOf(element string, err error) models.Issue {
	var ee *models.EngineError
	if errors.As(err, &ee) {
		return ee.Issue()
	}
	return models.Issue{Kind: models.KindIO, Element: element, Check: "restore", Message: err.Error()}
}

func lockMode(mode models.LockMode) models.LockMode {
	if mode == "" {
		return models.LockBlock
	}
	return mode
}

func stripUTF8BOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
}
