// filepath: internal/transfer/engine.go
// Package transfer copies selected hotkeys and parameter mappings from one
// model document into another. Every transfer is planned in full before the
// target is touched, and any failure after the backup restores the target.
package transfer

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/backup"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/document"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/lock"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/task"
)

var validate = validator.New()

// Engine applies transfers. Loader is optional; without it documents are
// read straight from disk.
type Engine struct {
	Backups *backup.Manager
	Locks   *lock.Manager
	Loader  *document.Loader

	// verify checks serialized target bytes before and after the write.
	// Nil means revalidate.
	verify func(raw []byte) *models.EngineError
}

// NewEngine wires an Engine.
func NewEngine(backups *backup.Manager, locks *lock.Manager, loader *document.Loader) *Engine {
	return &Engine{Backups: backups, Locks: locks, Loader: loader}
}

// ValidateTransfer runs the read-only part of a transfer (document checks,
// selection, asset resolution, conflicts) and reports what would fail. It
// takes no lock and writes nothing.
func (e *Engine) ValidateTransfer(ctx context.Context, srcPath, dstPath string, spec models.TransferSpec) (models.Report, error) {
	var rep models.Report
	if err := checkSpec(spec); err != nil {
		return rep, err
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	p, ee := e.loadPair(srcPath, dstPath)
	if ee != nil {
		rep.Errors = append(rep.Errors, ee.Issue())
		return rep, nil
	}
	ee = e.build(p, spec)
	rep.Warnings = append(rep.Warnings, p.Warnings...)
	rep.Errors = append(rep.Errors, p.ElementErrors...)
	if ee != nil && len(p.ElementErrors) == 0 {
		rep.Errors = append(rep.Errors, ee.Issue())
	}
	return rep, nil
}

// ApplyTransfer executes spec against the target document. The returned
// result is always non-nil; err is a *models.EngineError describing the
// failed element and check, and whether the target was left untouched or
// rolled back.
func (e *Engine) ApplyTransfer(ctx context.Context, srcPath, dstPath string, spec models.TransferSpec, r task.Reporter) (*models.TransferResult, error) {
	if r == nil {
		r = task.Nop
	}
	res := &models.TransferResult{Warnings: []models.Issue{}, Errors: []models.Issue{}, Changelog: []string{}}
	log := logging.Log.WithFields(logrus.Fields{"source": srcPath, "target": dstPath, "dry_run": spec.DryRun})

	if err := checkSpec(spec); err != nil {
		return fail(res, err)
	}

	// Single writer: the plan must describe the target as it will be written.
	if !spec.DryRun {
		l, err := e.Locks.Acquire(ctx, dstPath, lockMode(spec.LockMode))
		if err != nil {
			kind := models.KindLocked
			if ctx.Err() != nil {
				kind = models.KindCancelled
			}
			ee := models.Errorf(kind, "target", "lock", err, "could not lock target document")
			ee.Untouched = true
			return fail(res, ee)
		}
		defer l.Release()
	}

	// Plan: validate both documents, check the selection, resolve assets and
	// detect conflicts.
	r.Report(0, 0, "plan")
	p, ee := e.loadPair(srcPath, dstPath)
	if ee != nil {
		return fail(res, ee)
	}
	if ee := e.build(p, spec); ee != nil {
		res.Warnings = append(res.Warnings, p.Warnings...)
		res.Errors = append(res.Errors, p.ElementErrors...)
		return fail(res, ee)
	}
	res.Warnings = append(res.Warnings, p.Warnings...)
	res.Errors = append(res.Errors, p.ElementErrors...)
	res.HotkeysAdded = len(p.Hotkeys)
	res.MappingsAdded = len(p.Mappings)
	res.FilesCopied, res.FilesSkipped = p.copies()
	if len(p.IDMap) > 0 {
		res.IDMap = p.IDMap
	}
	res.Changelog = append(res.Changelog, p.Changelog...)

	if len(p.ElementErrors) > 0 && (spec.Atomic || len(p.Hotkeys)+len(p.Mappings) == 0) {
		first := p.ElementErrors[0]
		ee := models.Errorf(first.Kind, first.Element, first.Check, nil, "%s", first.Message)
		ee.Untouched = true
		log.WithField("element", first.Element).Warn("Transfer aborted during planning")
		return fail(res, ee)
	}

	if spec.DryRun {
		res.Success = true
		log.Info("Transfer dry run planned")
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		ee := models.Errorf(models.KindCancelled, "target", "cancelled", err, "transfer cancelled before any write")
		ee.Untouched = true
		return fail(res, ee)
	}

	// Nothing is written until the target has a backup.
	var rec *models.BackupRecord
	if spec.RequireBackup {
		r.Report(0, 0, "backup")
		var err error
		rec, err = e.Backups.Backup(dstPath)
		if err != nil {
			ee := models.Errorf(models.KindIO, "target", "backup", err, "backup failed")
			ee.Untouched = true
			return fail(res, ee)
		}
		res.BackupPath = rec.Path
	}

	if ee := e.mutate(ctx, p, r); ee != nil {
		e.rollback(p, rec, ee)
		res.RolledBack = ee.RolledBack
		log.WithError(ee).Warn("Transfer rolled back")
		return fail(res, ee)
	}

	if e.Loader != nil {
		e.Loader.Invalidate(dstPath)
	}
	res.Success = true
	res.Applied = true
	log.WithFields(logrus.Fields{
		"hotkeys":  res.HotkeysAdded,
		"mappings": res.MappingsAdded,
		"files":    res.FilesCopied,
	}).Info("Transfer applied")
	return res, nil
}

// mutate copies assets, appends elements, serializes, revalidates and
// writes. The target file is replaced in one atomic rename.
func (e *Engine) mutate(ctx context.Context, p *plan, r task.Reporter) *models.EngineError {
	total := len(p.Assets) + len(p.Hotkeys) + len(p.Mappings)
	done := 0

	// Assets land before the document that refers to them.
	for _, a := range p.Assets {
		if err := ctx.Err(); err != nil {
			return models.Errorf(models.KindCancelled, a.Rel, "cancelled", err, "transfer cancelled")
		}
		if !a.Skip {
			if _, err := storage.CopyFile(a.Src, a.Dst); err != nil {
				return models.Errorf(models.KindIO, a.Rel, "asset_copy", err, "could not copy asset")
			}
			a.copied = true
			logging.Log.Debugf("Copied asset %s", a.Rel)
		}
		done++
		r.Report(done, total, "assets")
	}

	// Append in selection order.
	doc := p.Dst.Clone()
	for _, ph := range p.Hotkeys {
		if err := ctx.Err(); err != nil {
			return models.Errorf(models.KindCancelled, ph.SourceID, "cancelled", err, "transfer cancelled")
		}
		doc.Hotkeys = append(doc.Hotkeys, ph.Hotkey)
		done++
		r.Report(done, total, "append")
	}
	for _, pm := range p.Mappings {
		if err := ctx.Err(); err != nil {
			return models.Errorf(models.KindCancelled, pm.SourceName, "cancelled", err, "transfer cancelled")
		}
		doc.Mappings = append(doc.Mappings, pm.Mapping)
		done++
		r.Report(done, total, "append")
	}

	out, err := document.Serialize(doc)
	if err != nil {
		return models.Errorf(models.KindStructural, "target", "serialize", err, "could not serialize target")
	}
	if ee := e.check(out); ee != nil {
		return ee
	}
	if err := ctx.Err(); err != nil {
		return models.Errorf(models.KindCancelled, "target", "cancelled", err, "transfer cancelled")
	}

	r.Report(done, total, "write")
	if err := storage.WriteFile(p.DstPath, out, 0o644); err != nil {
		return models.Errorf(models.KindIO, "target", "atomic_write", err, "could not write target")
	}
	p.written = true

	// Read back what landed on disk.
	written, err := os.ReadFile(p.DstPath)
	if err != nil {
		return models.Errorf(models.KindIO, "target", "read_back", err, "could not re-read target")
	}
	return e.check(written)
}

func (e *Engine) check(raw []byte) *models.EngineError {
	if e.verify != nil {
		return e.verify(raw)
	}
	return revalidate(raw)
}

func revalidate(raw []byte) *models.EngineError {
	doc, err := document.Parse(raw)
	if err != nil {
		return models.Errorf(models.KindStructural, "target", "revalidate", err, "target failed to parse after mutation")
	}
	rep := document.Validate(doc, document.ValidateOptions{})
	if !rep.OK() {
		first := rep.Errors[0]
		return models.Errorf(models.KindValidation, first.Element, first.Check, nil, "target invalid after mutation: %s", first.Message)
	}
	return nil
}

// rollback returns the target folder to its pre-transfer state: copied
// assets are deleted and the document bytes are restored.
func (e *Engine) rollback(p *plan, rec *models.BackupRecord, ee *models.EngineError) {
	for _, a := range p.Assets {
		if !a.copied {
			continue
		}
		if err := os.Remove(a.Dst); err != nil && !os.IsNotExist(err) {
			logging.Log.Errorf("Rollback could not remove copied asset %s: %v", a.Dst, err)
		}
		ee.RolledBack = true
	}
	if !p.written {
		if !ee.RolledBack {
			ee.Untouched = true
		}
		return
	}

	var err error
	if rec != nil {
		err = e.Backups.Restore(p.DstPath, rec)
	} else {
		err = storage.WriteFile(p.DstPath, p.DstRaw, 0o644)
	}
	if err != nil {
		logging.Log.Errorf("Rollback of %s failed: %v", p.DstPath, err)
		ee.Message += fmt.Sprintf("; rollback failed: %v", err)
		return
	}
	ee.RolledBack = true
}

func (e *Engine) load(path string) (*document.Document, []byte, error) {
	if e.Loader != nil {
		return e.Loader.Load(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	doc, err := document.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	return doc, raw, nil
}

func checkSpec(spec models.TransferSpec) *models.EngineError {
	if err := validate.Struct(spec); err != nil {
		ee := models.Errorf(models.KindValidation, "spec", "spec_valid", err, "invalid transfer options")
		ee.Untouched = true
		return ee
	}
	if len(spec.HotkeyIDs) == 0 && len(spec.MappingIDs) == 0 {
		ee := models.Errorf(models.KindValidation, "spec", "selection", nil, "nothing selected")
		ee.Untouched = true
		return ee
	}
	return nil
}

func fail(res *models.TransferResult, ee *models.EngineError) (*models.TransferResult, error) {
	res.Success = false
	res.Applied = false
	is := ee.Issue()
	dup := false
	for _, existing := range res.Errors {
		if existing.Element == is.Element && existing.Check == is.Check {
			dup = true
			break
		}
	}
	if !dup {
		res.Errors = append(res.Errors, is)
	}
	return res, ee
}

func lockMode(m models.LockMode) models.LockMode {
	if m == "" {
		return models.LockBlock
	}
	return m
}
