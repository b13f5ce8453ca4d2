// filepath: internal/profile/profile.go
// Package profile stores named snapshots of the global settings document and
// merges them back into the live document.
package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/backup"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/document"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/lock"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/shared"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
)

// FormatVersion is written into every profile file.
const FormatVersion = 1

var (
	ErrNotFound = errors.New("profile not found")
	ErrExists   = errors.New("profile already exists")
)

// CategoryPatterns lists the key substrings each category captures.
var CategoryPatterns = map[models.ProfileCategory][]string{
	models.CategoryTracking: {"Config_Webcam", "Config_Tracking", "Config_LipsyncType", "Config_UseMicrophone", "Config_LastMicName"},
	models.CategoryAPI:      {"Config_API", "Config_StartAPI", "Config_Live2DAPI"},
	models.CategoryUI:       {"Config_FPSOption", "vts_main_language", "Config_LastBackground", "Config_ShowOnScreen"},
}

// Store keeps one <name>.json file per profile in Dir.
type Store struct {
	Dir     string
	Backups *backup.Manager
	Locks   *lock.Manager
}

// NewStore wires a Store.
func NewStore(dir string, backups *backup.Manager, locks *lock.Manager) *Store {
	return &Store{Dir: dir, Backups: backups, Locks: locks}
}

// SaveOptions carries the optional profile metadata.
type SaveOptions struct {
	Description string
	Tags        []string
	CustomKeys  []string
	AppVersion  string
	NoOverwrite bool
}

// Matcher returns the key filter of a category; nil captures everything.
func Matcher(cat models.ProfileCategory, custom []string) func(string) bool {
	patterns := CategoryPatterns[cat]
	if cat == models.CategoryCustom {
		patterns = custom
	}
	if cat == models.CategoryComplete || len(patterns) == 0 {
		return nil
	}
	return func(key string) bool {
		for _, p := range patterns {
			if strings.Contains(key, p) {
				return true
			}
		}
		return false
	}
}

// Save captures the settings of g selected by category under name.
func (s *Store) Save(g *document.Global, name string, cat models.ProfileCategory, opts SaveOptions) (*models.Profile, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if !cat.IsValid() {
		return nil, fmt.Errorf("unknown profile category %q", cat)
	}
	if cat == models.CategoryCustom && len(opts.CustomKeys) == 0 {
		return nil, fmt.Errorf("custom profile needs at least one key pattern")
	}
	path := s.path(name)
	if opts.NoOverwrite && storage.Exists(path) {
		return nil, fmt.Errorf("%s: %w", name, ErrExists)
	}

	p := &models.Profile{
		Version:     FormatVersion,
		Name:        name,
		Category:    cat,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		AppVersion:  opts.AppVersion,
		Description: opts.Description,
		Tags:        nonNil(opts.Tags),
		Settings:    g.Filter(Matcher(cat, opts.CustomKeys)),
	}
	if cat == models.CategoryCustom {
		p.CustomKeys = opts.CustomKeys
	}
	if err := s.write(path, p); err != nil {
		return nil, err
	}
	logging.Log.WithField("profile", name).Infof("Saved %s profile with %d settings", cat, p.Settings.Len())
	return p, nil
}

// Load reads the profile called name.
func (s *Store) Load(name string) (*models.Profile, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return readProfile(s.path(name))
}

// List returns every profile in the store sorted by name. Unreadable files
// are logged and skipped.
func (s *Store) List() ([]models.ProfileInfo, error) {
	entries, err := os.ReadDir(s.Dir)
	if os.IsNotExist(err) {
		return []models.ProfileInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := []models.ProfileInfo{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.Dir, e.Name())
		p, err := readProfile(path)
		if err != nil {
			logging.Log.Warnf("Skipping unreadable profile %s: %v", e.Name(), err)
			continue
		}
		out = append(out, models.ProfileInfo{
			Name:         p.Name,
			Category:     p.Category,
			CreatedAt:    p.CreatedAt,
			Description:  p.Description,
			Tags:         nonNil(p.Tags),
			SettingCount: p.Settings.Len(),
			Path:         path,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a profile.
func (s *Store) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return err
	}
	logging.Log.WithField("profile", name).Info("Deleted profile")
	return nil
}

// Diff compares the captured settings of two profiles.
func (s *Store) Diff(a, b string) (*models.ProfileDiff, error) {
	pa, err := s.Load(a)
	if err != nil {
		return nil, err
	}
	pb, err := s.Load(b)
	if err != nil {
		return nil, err
	}
	return DiffSettings(pa.Settings, pb.Settings), nil
}

// DiffSettings lists keys only in a, only in b, and keys whose values differ.
func DiffSettings(a, b models.SettingsSet) *models.ProfileDiff {
	d := &models.ProfileDiff{OnlyInA: []models.KeyChange{}, OnlyInB: []models.KeyChange{}, Different: []models.KeyChange{}}
	for _, list := range models.SettingLists {
		la, lb := *a.List(list), *b.List(list)
		inB := make(map[string]json.RawMessage, len(lb))
		for _, st := range lb {
			inB[st.Key] = st.Value
		}
		inA := make(map[string]bool, len(la))
		for _, st := range la {
			inA[st.Key] = true
			vb, ok := inB[st.Key]
			switch {
			case !ok:
				d.OnlyInA = append(d.OnlyInA, models.KeyChange{Type: list, Key: st.Key, A: st.Value})
			case !sameValue(st.Value, vb):
				d.Different = append(d.Different, models.KeyChange{Type: list, Key: st.Key, A: st.Value, B: vb})
			}
		}
		for _, st := range lb {
			if !inA[st.Key] {
				d.OnlyInB = append(d.OnlyInB, models.KeyChange{Type: list, Key: st.Key, B: st.Value})
			}
		}
	}
	return d
}

// Export copies a profile to path.
func (s *Store) Export(name, path string) error {
	p, err := s.Load(name)
	if err != nil {
		return err
	}
	return s.write(path, p)
}

// Import adds the profile file at path to the store. The profile keeps its
// recorded name, or the file stem when it has none.
func (s *Store) Import(path string, overwrite bool) (*models.Profile, error) {
	p, err := readProfile(path)
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		p.Name = storage.Stem(path)
	}
	if err := ValidateName(p.Name); err != nil {
		return nil, err
	}
	dst := s.path(p.Name)
	if !overwrite && storage.Exists(dst) {
		return nil, fmt.Errorf("%s: %w", p.Name, ErrExists)
	}
	if err := s.write(dst, p); err != nil {
		return nil, err
	}
	logging.Log.WithField("profile", p.Name).Infof("Imported profile from %s", path)
	return p, nil
}

// ValidateName rejects names that cannot be used as a file name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `<>:"/\|?*`) {
		return fmt.Errorf("%w: %q", shared.ErrInvalidName, name)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, name+".json")
}

func (s *Store) write(path string, p *models.Profile) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrorEncodeFile, err)
	}
	return storage.WriteFile(path, buf.Bytes(), 0o644)
}

func readProfile(path string) (*models.Profile, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", storage.Stem(path), ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", filepath.Base(path), err)
	}
	if p.Version != FormatVersion {
		return nil, fmt.Errorf("invalid profile %s: unsupported profile_version %d", filepath.Base(path), p.Version)
	}
	for _, list := range models.SettingLists {
		l := p.Settings.List(list)
		if *l == nil {
			*l = []models.Setting{}
		}
	}
	return &p, nil
}

func sameValue(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
