// filepath: internal/backup/backup.go
// Package backup takes immutable snapshots of documents before every
// mutation and restores them on demand or after a failed operation.
//
// Snapshots are co-located with their document:
//
//	Hiyori.vtube.json.original                              first, never pruned
//	Hiyori.vtube.backup_20261015_142233_01JA....json        timestamped
package backup

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/checksum"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
)

// DefaultKeep is the number of timestamped backups retained per document.
const DefaultKeep = 10

const (
	originalSuffix = ".original"
	backupMarker   = ".backup_"
	timeLayout     = "20060102_150405"
)

// ErrNoBackup is returned when a document has no snapshot to restore from.
var ErrNoBackup = errors.New("no backup found")

// Manager creates, lists, prunes and restores snapshots.
type Manager struct {
	Keep      int
	Algorithm checksum.Algorithm

	now     func() time.Time
	mu      sync.Mutex
	entropy io.Reader
}

// NewManager returns a Manager keeping keep timestamped backups (DefaultKeep when keep <= 0).
func NewManager(keep int, algo checksum.Algorithm) *Manager {
	if keep <= 0 {
		keep = DefaultKeep
	}
	if algo == "" {
		algo = checksum.Default
	}
	return &Manager{
		Keep:      keep,
		Algorithm: algo,
		now:       time.Now,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// IsBackupFile reports whether name is a snapshot written by this package.
func IsBackupFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasSuffix(base, originalSuffix) {
		return true
	}
	_, ok := parseBackupName(base)
	return ok
}

// OriginalPath is where the permanent first backup of path lives.
func OriginalPath(path string) string {
	return path + originalSuffix
}

// Backup snapshots the current bytes of path. The first snapshot of a
// document's lifetime is also kept as the permanent .original copy. Bytes
// are durably on disk when Backup returns.
func (m *Manager) Backup(path string) (*models.BackupRecord, error) {
	return m.backup(path, "")
}

// BackupBefore snapshots path ahead of restoring rec. The retention pass
// that follows the snapshot leaves rec's file in place even when it is the
// oldest one left.
func (m *Manager) BackupBefore(path string, rec *models.BackupRecord) (*models.BackupRecord, error) {
	pinned := ""
	if rec != nil {
		pinned = rec.Path
	}
	return m.backup(path, pinned)
}

func (m *Manager) backup(path, pinned string) (*models.BackupRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read document for backup: %w", err)
	}
	fp, err := checksum.Bytes(data, m.Algorithm)
	if err != nil {
		return nil, err
	}

	orig := OriginalPath(path)
	if !storage.Exists(orig) {
		if _, err := storage.SaveFile(bytes.NewReader(data), orig, 0o644); err != nil {
			return nil, fmt.Errorf("could not write first backup: %w", err)
		}
		logging.Log.Infof("Created permanent first backup %s", orig)
	}

	now := m.now()
	id := m.newID(now)
	name := fmt.Sprintf("%s%s%s_%s.json", stem(path), backupMarker, now.Format(timeLayout), id)
	dst := filepath.Join(filepath.Dir(path), name)
	if _, err := storage.SaveFile(bytes.NewReader(data), dst, 0o644); err != nil {
		return nil, fmt.Errorf("could not write backup: %w", err)
	}

	rec := &models.BackupRecord{
		ID:           id.String(),
		DocumentPath: path,
		Path:         dst,
		CreatedAt:    ulid.Time(id.Time()),
		Size:         int64(len(data)),
		Fingerprint:  fp,
	}
	logging.Log.WithField("document", path).Infof("Created backup %s", filepath.Base(dst))

	if removed, err := m.prune(path, m.Keep, pinned); err != nil {
		logging.Log.Warnf("Backup pruning failed for %s: %v", path, err)
	} else if len(removed) > 0 {
		logging.Log.Debugf("Pruned %d old backups of %s", len(removed), path)
	}
	return rec, nil
}

// List returns every snapshot of path: the first backup (if any) followed by
// the timestamped ones, oldest first.
func (m *Manager) List(path string) ([]models.BackupRecord, error) {
	var out []models.BackupRecord

	orig := OriginalPath(path)
	if st, err := os.Stat(orig); err == nil {
		rec := models.BackupRecord{
			ID:           "original",
			DocumentPath: path,
			Path:         orig,
			CreatedAt:    st.ModTime(),
			First:        true,
			Size:         st.Size(),
		}
		rec.Fingerprint, _, _ = checksum.File(orig, m.Algorithm)
		out = append(out, rec)
	}

	stamped, err := m.timestamped(path)
	if err != nil {
		return nil, err
	}
	for _, b := range stamped {
		rec := models.BackupRecord{
			ID:           b.id.String(),
			DocumentPath: path,
			Path:         b.path,
			CreatedAt:    ulid.Time(b.id.Time()),
		}
		if st, err := os.Stat(b.path); err == nil {
			rec.Size = st.Size()
		}
		rec.Fingerprint, _, _ = checksum.File(b.path, m.Algorithm)
		out = append(out, rec)
	}
	return out, nil
}

// Latest returns the newest snapshot, falling back to the first backup.
func (m *Manager) Latest(path string) (*models.BackupRecord, error) {
	recs, err := m.List(path)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoBackup)
	}
	rec := recs[len(recs)-1]
	return &rec, nil
}

// Find returns the snapshot with the given id ("original" for the first backup).
func (m *Manager) Find(path, id string) (*models.BackupRecord, error) {
	recs, err := m.List(path)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if strings.EqualFold(recs[i].ID, id) {
			return &recs[i], nil
		}
	}
	return nil, fmt.Errorf("%s: backup %s: %w", path, id, ErrNoBackup)
}

// Restore replaces path with the snapshot's bytes. The snapshot is verified
// against its recorded fingerprint first, then written through a temp file
// and an atomic rename, so the live document is never left truncated.
func (m *Manager) Restore(path string, rec *models.BackupRecord) error {
	if rec == nil {
		return fmt.Errorf("%s: %w", path, ErrNoBackup)
	}
	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return models.Errorf(models.KindIO, path, "backup_readable", err, "could not read backup %s", rec.Path)
	}
	if rec.Fingerprint != "" {
		ok, err := checksum.Match(data, rec.Fingerprint)
		if err != nil {
			return models.Errorf(models.KindIntegrity, path, "backup_fingerprint", err, "unreadable backup fingerprint")
		}
		if !ok {
			return models.Errorf(models.KindIntegrity, path, "backup_fingerprint", nil, "backup %s does not match its fingerprint", filepath.Base(rec.Path))
		}
	}
	if err := storage.WriteFile(path, data, 0o644); err != nil {
		return models.Errorf(models.KindIO, path, "atomic_write", err, "could not restore document")
	}
	logging.Log.WithField("document", path).Infof("Restored document from %s", filepath.Base(rec.Path))
	return nil
}

// Prune deletes the oldest timestamped snapshots so that at most keep
// remain. The first backup is never touched.
func (m *Manager) Prune(path string, keep int) ([]string, error) {
	return m.prune(path, keep, "")
}

// prune is Prune with one snapshot exempt from deletion. The exempt file
// still counts towards keep.
func (m *Manager) prune(path string, keep int, pinned string) ([]string, error) {
	if keep < 0 {
		keep = m.Keep
	}
	stamped, err := m.timestamped(path)
	if err != nil {
		return nil, err
	}
	excess := len(stamped) - keep
	var removed []string
	for _, victim := range stamped {
		if excess <= 0 {
			break
		}
		if pinned != "" && victim.path == pinned {
			continue
		}
		if err := os.Remove(victim.path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("could not remove %s: %w", victim.path, err)
		}
		removed = append(removed, victim.path)
		excess--
	}
	return removed, nil
}

type stampedBackup struct {
	id   ulid.ULID
	path string
}

func (m *Manager) timestamped(path string) ([]stampedBackup, error) {
	dir := filepath.Dir(path)
	prefix := stem(path) + backupMarker
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []stampedBackup
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		id, ok := parseBackupName(e.Name())
		if !ok {
			continue
		}
		out = append(out, stampedBackup{id: id, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id.Compare(out[j].id) < 0 })
	return out, nil
}

func (m *Manager) newID(t time.Time) ulid.ULID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), m.entropy)
}

// parseBackupName extracts the ULID from "<stem>.backup_<date>_<time>_<ULID>.json".
func parseBackupName(base string) (ulid.ULID, bool) {
	i := strings.LastIndex(base, backupMarker)
	if i < 0 || !strings.HasSuffix(base, ".json") {
		return ulid.ULID{}, false
	}
	rest := strings.TrimSuffix(base[i+len(backupMarker):], ".json")
	parts := strings.Split(rest, "_")
	if len(parts) != 3 {
		return ulid.ULID{}, false
	}
	if _, err := time.Parse(timeLayout, parts[0]+"_"+parts[1]); err != nil {
		return ulid.ULID{}, false
	}
	id, err := ulid.ParseStrict(parts[2])
	if err != nil {
		return ulid.ULID{}, false
	}
	return id, true
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".json")
}
