// filepath: internal/archive/read.go
package archive

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/checksum"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
)

// Extension is the file extension of archives written by BuildFile.
const Extension = ".zip"

// container is an opened archive with its manifest decoded.
type container struct {
	zr       *zip.ReadCloser
	manifest *models.ArchiveManifest
	entries  map[string]*zip.File
}

func openContainer(path string) (*container, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, models.Errorf(models.KindStructural, filepath.Base(path), "container", err, "not a readable archive")
	}
	c := &container{zr: zr, entries: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		c.entries[f.Name] = f
	}

	mf, ok := c.entries[ManifestName]
	if !ok {
		zr.Close()
		return nil, models.Errorf(models.KindStructural, ManifestName, "manifest_present", nil, "archive has no manifest")
	}
	rc, err := mf.Open()
	if err != nil {
		zr.Close()
		return nil, models.Errorf(models.KindStructural, ManifestName, "manifest_readable", err, "could not open manifest")
	}
	defer rc.Close()

	var manifest models.ArchiveManifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		zr.Close()
		return nil, models.Errorf(models.KindStructural, ManifestName, "manifest_readable", err, "manifest is not valid JSON")
	}
	c.manifest = &manifest
	return c, nil
}

func (c *container) Close() error { return c.zr.Close() }

// read returns the bytes of a manifest entry.
func (c *container) read(path string) ([]byte, error) {
	f, ok := c.entries[path]
	if !ok {
		return nil, fmt.Errorf("entry %s not in archive", path)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// verify checks every manifest entry against the container bytes. It never
// stops at the first problem so the report lists them all.
func (c *container) verify() models.Report {
	var rep models.Report
	listed := make(map[string]bool, len(c.manifest.Files))
	for _, e := range c.manifest.Files {
		listed[e.Path] = true
		if _, err := storage.ResolveUnder("root", e.Path); err != nil {
			rep.AddError(models.KindIntegrity, e.Path, "path", "entry path escapes the configuration tree")
			continue
		}
		f, ok := c.entries[e.Path]
		if !ok {
			rep.AddError(models.KindIntegrity, e.Path, "entry_present", "listed in manifest but missing from archive")
			continue
		}
		rc, err := f.Open()
		if err != nil {
			rep.AddError(models.KindIntegrity, e.Path, "entry_readable", err.Error())
			continue
		}
		fp, size, err := checksum.Reader(rc, algorithmOf(e.Fingerprint))
		rc.Close()
		switch {
		case err != nil:
			rep.AddError(models.KindIntegrity, e.Path, "entry_readable", err.Error())
		case fp != e.Fingerprint:
			rep.AddError(models.KindIntegrity, e.Path, "fingerprint", "content does not match manifest fingerprint")
		case size != e.Size:
			rep.AddError(models.KindIntegrity, e.Path, "size", fmt.Sprintf("size %d does not match manifest size %d", size, e.Size))
		}
	}
	for name := range c.entries {
		if name != ManifestName && !listed[name] && !strings.HasSuffix(name, "/") {
			rep.AddWarning(models.KindIntegrity, name, "unlisted", "entry is not listed in the manifest and will be ignored")
		}
	}
	return rep
}

func algorithmOf(fingerprint string) checksum.Algorithm {
	algo, _, err := checksum.Parse(fingerprint)
	if err != nil {
		return checksum.Default
	}
	return algo
}

// ListContents returns the manifest of the archive at path.
func ListContents(path string) (*models.ArchiveManifest, error) {
	c, err := openContainer(path)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.manifest, nil
}

// Verify re-hashes every entry of the archive at path against its manifest.
// A malformed container is reported as an error line, not returned.
func Verify(path string) (models.Report, error) {
	if _, err := os.Stat(path); err != nil {
		return models.Report{}, err
	}
	c, err := openContainer(path)
	if err != nil {
		var rep models.Report
		var ee *models.EngineError
		if errors.As(err, &ee) {
			rep.Errors = append(rep.Errors, ee.Issue())
			return rep, nil
		}
		return rep, err
	}
	defer c.Close()
	return c.verify(), nil
}

// ListArchives returns the archives in dir, newest first.
func ListArchives(dir string) ([]models.ArchiveInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []models.ArchiveInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, models.ArchiveInfo{
			Name:      e.Name(),
			Path:      filepath.Join(dir, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DefaultName is the file name BuildFile targets when the caller names none.
func DefaultName(t time.Time) string {
	return "vts_backup_" + t.Format("20060102_150405") + Extension
}
