// filepath: internal/archive/tree.go
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/backup"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/document"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
)

// Well-known locations inside the configuration tree.
const (
	GlobalConfigPath     = "Config/vts_config.json"
	CustomParametersPath = "Config/custom_parameters.json"
	VisualEffectsPath    = "Effects/vts_saved_visual_effects.effects.json"
	ModelsDir            = "Live2DModels"
	ItemsDir             = "Items"
	PluginsDir           = "Config/Plugins"

	documentSuffix = ".vtube.json"
	authSuffix     = ".vtsauth"
)

var calibrationPaths = []string{
	"Config/vts_lipsync_ulipsync.json",
	"Config/webcam_calibration_mediapipe.json",
}

// Tree is a configuration tree rooted at the application's data folder.
type Tree struct {
	Root string
}

// NewTree returns the tree for an installation root. Both the install
// folder and its data folder are accepted.
func NewTree(root string) Tree {
	data := filepath.Join(root, "VTube Studio_Data", "StreamingAssets")
	if info, err := os.Stat(data); err == nil && info.IsDir() {
		return Tree{Root: data}
	}
	return Tree{Root: root}
}

// Path resolves a manifest path inside the tree.
func (t Tree) Path(rel string) (string, error) {
	return storage.ResolveUnder(t.Root, rel)
}

// GlobalConfig is the absolute path of the global settings document.
func (t Tree) GlobalConfig() string {
	return filepath.Join(t.Root, filepath.FromSlash(GlobalConfigPath))
}

// ModelDocuments lists every model document of the tree.
func (t Tree) ModelDocuments() ([]string, error) {
	return t.documents(ModelsDir)
}

// File is one file selected for an archive.
type File struct {
	Rel  string
	Abs  string
	Area string
}

// IsDocument reports whether the file is a JSON document that restore revalidates.
func (f File) IsDocument() bool {
	return f.Area != models.AreaModelAssets && f.Area != models.AreaPluginAuth
}

// Collect walks the tree and returns the files selected by opts, sorted by
// path. Backup snapshots are never collected.
func (t Tree) Collect(opts models.ArchiveOptions) ([]File, error) {
	if info, err := os.Stat(t.Root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("configuration tree not found at %s", t.Root)
	}

	seen := make(map[string]bool)
	var files []File
	add := func(abs, area string) {
		if backup.IsBackupFile(abs) {
			return
		}
		rel, err := storage.RelSlash(t.Root, abs)
		if err != nil || seen[rel] {
			return
		}
		seen[rel] = true
		files = append(files, File{Rel: rel, Abs: abs, Area: area})
	}
	addFixed := func(rel, area string) {
		abs := filepath.Join(t.Root, filepath.FromSlash(rel))
		if storage.Exists(abs) {
			add(abs, area)
		}
	}

	if opts.IncludeGlobalConfig {
		addFixed(GlobalConfigPath, models.AreaGlobalConfig)
	}
	if opts.IncludeCustomParameters {
		addFixed(CustomParametersPath, models.AreaCustomParameters)
	}
	if opts.IncludeCalibration {
		for _, rel := range calibrationPaths {
			addFixed(rel, models.AreaCalibration)
		}
	}
	if opts.IncludeVisualEffects {
		addFixed(VisualEffectsPath, models.AreaVisualEffects)
	}

	if opts.IncludeModelConfigs || opts.IncludeModelAssets {
		docs, err := t.documents(ModelsDir)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if opts.IncludeModelConfigs {
				add(doc, models.AreaModelConfigs)
			}
			if opts.IncludeModelAssets {
				for _, asset := range referencedAssets(doc) {
					add(asset, models.AreaModelAssets)
				}
			}
		}
	}

	if opts.IncludeItemConfigs {
		docs, err := t.documents(ItemsDir)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			add(doc, models.AreaItemConfigs)
		}
	}

	if opts.IncludePluginAuth {
		matches, _ := filepath.Glob(filepath.Join(t.Root, filepath.FromSlash(PluginsDir), "*"+authSuffix))
		for _, m := range matches {
			add(m, models.AreaPluginAuth)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

// documents returns the *.vtube.json files one level below dir.
func (t Tree) documents(dir string) ([]string, error) {
	base := filepath.Join(t.Root, dir)
	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not list %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		inner, err := os.ReadDir(filepath.Join(base, e.Name()))
		if err != nil {
			logging.Log.Warnf("Archive: skipping unreadable folder %s: %v", e.Name(), err)
			continue
		}
		for _, f := range inner {
			name := f.Name()
			if f.IsDir() || !strings.HasSuffix(name, documentSuffix) || backup.IsBackupFile(name) {
				continue
			}
			out = append(out, filepath.Join(base, e.Name(), name))
		}
	}
	return out, nil
}

// referencedAssets resolves the files a model document points at: its
// FileReferences entries and the files of its hotkeys. Unparseable
// documents and dangling references contribute nothing.
func referencedAssets(docPath string) []string {
	raw, err := os.ReadFile(docPath)
	if err != nil {
		return nil
	}
	doc, err := document.Parse(raw)
	if err != nil {
		logging.Log.Warnf("Archive: %s is not a valid model document, assets skipped: %v", filepath.Base(docPath), err)
		return nil
	}

	dir := filepath.Dir(docPath)
	var refs []string
	if fr := doc.FileReferences(); fr != nil {
		for _, key := range fr.Keys() {
			if s, ok := fr.String(key); ok && s != "" {
				refs = append(refs, s)
			}
		}
	}
	for _, h := range doc.Hotkeys {
		if f := h.File(); f != "" {
			refs = append(refs, f)
		}
	}

	var out []string
	for _, ref := range refs {
		if path, ok := document.ResolveAsset(dir, ref); ok {
			out = append(out, path)
		}
	}
	return out
}
