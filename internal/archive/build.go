// filepath: internal/archive/build.go
// Package archive packages a whole configuration tree into a single zip
// container with a fingerprinted manifest, and restores it selectively.
package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/backup"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/checksum"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/lock"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/task"
)

// ManifestName is the first entry of every archive.
const ManifestName = "backup_manifest.json"

// FormatVersion is written into every manifest.
const FormatVersion = 1

// ErrEmptyArchive is returned when the options select no existing file.
var ErrEmptyArchive = errors.New("nothing to archive")

var validate = validator.New()

// Manager builds, inspects and restores archives.
type Manager struct {
	Backups   *backup.Manager
	Locks     *lock.Manager
	Algorithm checksum.Algorithm
	Workers   int

	now func() time.Time
}

// NewManager wires a Manager. Workers defaults to the CPU count.
func NewManager(backups *backup.Manager, locks *lock.Manager, algo checksum.Algorithm) *Manager {
	if algo == "" {
		algo = checksum.Default
	}
	return &Manager{
		Backups:   backups,
		Locks:     locks,
		Algorithm: algo,
		Workers:   runtime.NumCPU(),
		now:       time.Now,
	}
}

// Build writes an archive of the files opts selects from tree to w and
// returns its manifest. Every file is hashed up front and hashed again while
// it is streamed; a file that changes in between fails the build.
func (m *Manager) Build(ctx context.Context, tree Tree, opts models.ArchiveOptions, w io.Writer, r task.Reporter) (*models.ArchiveManifest, error) {
	if r == nil {
		r = task.Nop
	}
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid archive options: %w", err)
	}
	algo := m.Algorithm
	if opts.Algorithm != "" {
		algo = checksum.Algorithm(opts.Algorithm)
	}

	files, err := tree.Collect(opts)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrEmptyArchive
	}
	logging.Log.Infof("Archive: building from %s (%d files)", tree.Root, len(files))

	// 1. Fingerprint everything in parallel.
	entries, err := m.fingerprint(ctx, files, algo, r)
	if err != nil {
		return nil, err
	}

	manifest := &models.ArchiveManifest{
		FormatVersion: FormatVersion,
		CreatedAt:     m.now().UTC(),
		AppVersion:    opts.AppVersion,
		Notes:         opts.Notes,
		Reason:        opts.Reason,
		Algorithm:     string(algo),
		Options:       opts,
		Files:         entries,
	}
	manifest.Counts = countEntries(entries)

	// 2. Manifest first, then the files in manifest order.
	zw := zip.NewWriter(w)
	if err := writeManifest(zw, manifest); err != nil {
		return nil, err
	}
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			logging.Log.Warnf("Archive: build cancelled after %d of %d files", i, len(files))
			return nil, models.Errorf(models.KindCancelled, f.Rel, "cancelled", err, "archive build cancelled")
		}
		if err := writeEntry(zw, f, entries[i], algo); err != nil {
			return nil, err
		}
		r.Report(i+1, len(files), "archive")
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("could not finish archive: %w", err)
	}

	logging.Log.Infof("Archive: wrote %d files (%d models, %d items)", manifest.Counts.Files, manifest.Counts.Models, manifest.Counts.Items)
	return manifest, nil
}

// BuildFile builds an archive at path. The file only appears once the
// archive is complete.
func (m *Manager) BuildFile(ctx context.Context, tree Tree, opts models.ArchiveOptions, path string, r task.Reporter) (*models.ArchiveManifest, error) {
	pr, pw := io.Pipe()

	type built struct {
		manifest *models.ArchiveManifest
		err      error
	}
	done := make(chan built, 1)
	go func() {
		manifest, err := m.Build(ctx, tree, opts, pw, r)
		pw.CloseWithError(err)
		done <- built{manifest, err}
	}()

	_, saveErr := storage.SaveFile(pr, path, 0o644)
	if saveErr != nil {
		pr.CloseWithError(saveErr)
	}
	res := <-done
	if res.err != nil {
		return nil, res.err
	}
	if saveErr != nil {
		return nil, fmt.Errorf("could not write archive: %w", saveErr)
	}
	return res.manifest, nil
}

func (m *Manager) fingerprint(ctx context.Context, files []File, algo checksum.Algorithm, r task.Reporter) ([]models.ManifestEntry, error) {
	entries := make([]models.ManifestEntry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if m.Workers > 0 {
		g.SetLimit(m.Workers)
	}
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fp, size, err := checksum.File(f.Abs, algo)
			if err != nil {
				return models.Errorf(models.KindIO, f.Rel, "read", err, "could not fingerprint file")
			}
			entries[i] = models.ManifestEntry{Path: f.Rel, Area: f.Area, Size: size, Fingerprint: fp}
			return nil
		})
	}
	r.Report(0, len(files), "fingerprint")
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, models.Errorf(models.KindCancelled, "", "cancelled", ctx.Err(), "archive build cancelled")
		}
		return nil, err
	}
	return entries, nil
}

func writeManifest(zw *zip.Writer, manifest *models.ArchiveManifest) error {
	hdr := &zip.FileHeader{Name: ManifestName, Method: zip.Deflate, Modified: manifest.CreatedAt}
	f, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("could not add manifest: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(manifest)
}

// writeEntry streams one file into the archive, hashing it on the way.
func writeEntry(zw *zip.Writer, f File, entry models.ManifestEntry, algo checksum.Algorithm) error {
	src, err := os.Open(f.Abs)
	if err != nil {
		return models.Errorf(models.KindIO, f.Rel, "read", err, "could not open file")
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return models.Errorf(models.KindIO, f.Rel, "read", err, "could not stat file")
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = f.Rel
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("could not add %s: %w", f.Rel, err)
	}
	digest, err := checksum.NewDigest(algo)
	if err != nil {
		return err
	}
	if _, err := io.Copy(io.MultiWriter(dst, digest), src); err != nil {
		return models.Errorf(models.KindIO, f.Rel, "read", err, "could not archive file")
	}
	if digest.Fingerprint() != entry.Fingerprint || digest.Size() != entry.Size {
		return models.Errorf(models.KindIntegrity, f.Rel, "fingerprint", nil, "file changed while the archive was being built")
	}
	return nil
}

func countEntries(entries []models.ManifestEntry) models.ArchiveCounts {
	c := models.ArchiveCounts{Files: len(entries)}
	for _, e := range entries {
		switch e.Area {
		case models.AreaModelConfigs:
			c.Models++
		case models.AreaItemConfigs:
			c.Items++
		}
	}
	return c
}
