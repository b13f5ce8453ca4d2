// filepath: internal/services/document_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/archive"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/backup"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/document"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/events"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/idgen"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/profile"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
)

const documentSuffix = ".vtube.json"

// ValidateDocument checks the document at path without changing it. The
// global settings document is recognised by its file name; anything else is
// treated as a model document and its assets are resolved against its folder.
// A document that cannot be parsed yields a report, not an error.
func (s *Service) ValidateDocument(path string) (models.Report, error) {
	var rep models.Report
	if !storage.Exists(path) {
		return rep, wrap(fmt.Errorf("%s: %w", path, os.ErrNotExist))
	}

	if filepath.Base(path) == filepath.Base(archive.GlobalConfigPath) {
		g, _, err := s.Loader.LoadGlobal(path)
		if err != nil {
			return parseReport(err), nil
		}
		return document.ValidateGlobal(g), nil
	}

	doc, _, err := s.Loader.Load(path)
	if err != nil {
		return parseReport(err), nil
	}
	return document.Validate(doc, document.ValidateOptions{AssetDir: filepath.Dir(path)}), nil
}

// parseReport turns a parser failure into report lines.
func parseReport(err error) models.Report {
	var rep models.Report
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		for _, fe := range ve.Errors {
			rep.AddError(ve.Kind, fe.Field, "parse", fe.Message)
		}
		return rep
	}
	rep.AddError(models.KindStructural, "document", "parse", err.Error())
	return rep
}

// ModelDocument resolves path to a single model document. A folder must
// contain exactly one model document besides its backups.
func ModelDocument(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", wrap(err)
	}
	if !info.IsDir() {
		return path, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", wrap(err)
	}
	var found []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, documentSuffix) || backup.IsBackupFile(name) {
			continue
		}
		found = append(found, filepath.Join(path, name))
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: no %s file in %s", ErrNotFound, documentSuffix, path)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %d %s files in %s", ErrConflict, len(found), documentSuffix, path)
	}
}

// RenameModel changes the display name of a model document and, when asked,
// gives it a fresh ModelID so the application treats it as a separate model.
// The write follows the same lock, backup and revalidate sequence as a
// transfer; a document that fails the re-check is restored from the backup.
func (s *Service) RenameModel(ctx context.Context, path, newName string, regenerateID bool) (*models.RenameResult, error) {
	started := s.now()
	res := &models.RenameResult{NewName: newName, Changelog: []string{}}

	err := s.renameModel(ctx, path, newName, regenerateID, res)
	if !res.Applied {
		return res, wrap(err)
	}
	s.finish(ctx, operation{
		Kind:       "model.rename",
		Topic:      events.TopicModelRenamed,
		Target:     res.Document,
		Started:    started,
		Success:    err == nil,
		Summary:    fmt.Sprintf("renamed %q to %q", res.OldName, res.NewName) + failureSuffix(err),
		BackupPath: res.BackupPath,
		Details: map[string]any{
			"old_model_id": res.OldModelID,
			"new_model_id": res.NewModelID,
			"rolled_back":  res.RolledBack,
		},
	})
	return res, wrap(err)
}

func (s *Service) renameModel(ctx context.Context, path, newName string, regenerateID bool, res *models.RenameResult) error {
	untouched := func(kind models.Kind, check string, err error, msg string) error {
		ee := models.Errorf(kind, "document", check, err, "%s", msg)
		ee.Untouched = true
		return ee
	}

	if err := profile.ValidateName(newName); err != nil {
		return untouched(models.KindValidation, "name", err, "invalid model name")
	}
	docPath, err := ModelDocument(path)
	if err != nil {
		return err
	}
	res.Document = docPath
	log := logging.Log.WithFields(logrus.Fields{"document": docPath, "new_name": newName})

	l, err := s.Locks.Acquire(ctx, docPath, s.lockMode())
	if err != nil {
		kind := models.KindLocked
		if ctx.Err() != nil {
			kind = models.KindCancelled
		}
		return untouched(kind, "lock", err, "could not lock model document")
	}
	defer l.Release()

	raw, err := os.ReadFile(docPath)
	if err != nil {
		return untouched(models.KindIO, "load", err, "could not read model document")
	}
	doc, err := document.Parse(raw)
	if err != nil {
		return untouched(models.KindStructural, "load", err, "could not parse model document")
	}
	if rep := document.Validate(doc, document.ValidateOptions{}); !rep.OK() {
		first := rep.Errors[0]
		ee := models.Errorf(models.KindValidation, first.Element, first.Check, nil, "model document invalid: %s", first.Message)
		ee.Untouched = true
		return ee
	}

	res.OldName, res.OldModelID = doc.Name(), doc.ModelID()
	res.NewModelID = res.OldModelID
	if res.OldName == newName && !regenerateID {
		res.Success = true
		log.Info("Model already has this name, nothing to do")
		return nil
	}

	doc.SetName(newName)
	res.Changelog = append(res.Changelog, fmt.Sprintf("Name: %q -> %q", res.OldName, newName))
	if regenerateID {
		id, err := idgen.Unique(func(id string) bool { return id == res.OldModelID })
		if err != nil {
			return untouched(models.KindIO, "model_id", err, "could not generate a ModelID")
		}
		doc.SetModelID(id)
		res.NewModelID = id
		res.Changelog = append(res.Changelog, fmt.Sprintf("ModelID: %s -> %s", res.OldModelID, id))
	}
	out, err := document.Serialize(doc)
	if err != nil {
		return untouched(models.KindStructural, "serialize", err, "could not serialize model document")
	}
	if err := ctx.Err(); err != nil {
		return untouched(models.KindCancelled, "cancelled", err, "rename cancelled before any write")
	}

	rec, err := s.Backups.Backup(docPath)
	if err != nil {
		return untouched(models.KindIO, "backup", err, "backup failed")
	}
	res.BackupPath = rec.Path

	res.Applied = true
	if err := storage.WriteFile(docPath, out, 0o644); err != nil {
		return s.restoreAfterFailure(docPath, rec, res, models.Errorf(models.KindIO, "document", "atomic_write", err, "could not write model document"))
	}
	s.Loader.Invalidate(docPath)

	written, err := os.ReadFile(docPath)
	if err == nil {
		var check *document.Document
		if check, err = document.Parse(written); err == nil {
			if rep := document.Validate(check, document.ValidateOptions{}); !rep.OK() {
				err = fmt.Errorf("%s", rep.Errors[0])
			}
		}
	}
	if err != nil {
		return s.restoreAfterFailure(docPath, rec, res, models.Errorf(models.KindValidation, "document", "revalidate", err, "renamed document failed validation"))
	}

	res.Success = true
	log.WithField("regenerated_id", regenerateID).Info("Model renamed")
	return nil
}

// restoreAfterFailure puts the backup back after a failed write and marks
// the result and error accordingly.
func (s *Service) restoreAfterFailure(path string, rec *models.BackupRecord, res *models.RenameResult, ee *models.EngineError) error {
	if err := s.Backups.Restore(path, rec); err != nil {
		logging.Log.Errorf("Rollback of %s failed: %v", path, err)
		return ee
	}
	s.Loader.Invalidate(path)
	ee.RolledBack = true
	res.RolledBack = true
	return ee
}

func failureSuffix(err error) string {
	if err == nil {
		return ""
	}
	return " (failed: " + err.Error() + ")"
}
