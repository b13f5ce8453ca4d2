package document

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
)

// Asset subfolders searched after the model folder itself.
var assetSubdirs = []string{"Expressions", "Animations"}

// ResolveAsset finds the file a hotkey references, looking in the model
// folder first and then in its asset subfolders. References that would
// escape the folder never resolve.
func ResolveAsset(modelDir, file string) (string, bool) {
	for _, rel := range AssetCandidates(file) {
		abs, err := storage.ResolveUnder(modelDir, rel)
		if err != nil {
			continue
		}
		if storage.Exists(abs) {
			return abs, true
		}
	}
	return "", false
}

// AssetCandidates lists the slash-separated paths, relative to the model
// folder, that ResolveAsset tries for file, in order.
func AssetCandidates(file string) []string {
	file = filepath.ToSlash(file)
	candidates := []string{path.Clean(file)}
	for _, sub := range assetSubdirs {
		candidates = append(candidates, path.Join(sub, file))
	}
	return candidates
}

type model3 struct {
	FileReferences struct {
		DisplayInfo string `json:"DisplayInfo"`
	} `json:"FileReferences"`
}

type cdi3 struct {
	Parameters []struct {
		ID string `json:"Id"`
	} `json:"Parameters"`
}

// KnownParameters returns the output parameter ids a model exposes: those
// declared by its display info file plus those already mapped in doc. The
// second result is false when neither source yields anything.
func KnownParameters(doc *Document, modelDir string) (map[string]bool, bool) {
	known := make(map[string]bool)
	for _, m := range doc.Mappings {
		if out := m.Output(); out != "" {
			known[out] = true
		}
	}

	if refs := doc.FileReferences(); refs != nil {
		if modelFile, ok := refs.String("Model"); ok && modelFile != "" {
			for _, id := range displayParameters(modelDir, modelFile) {
				known[id] = true
			}
		}
	}
	return known, len(known) > 0
}

func displayParameters(modelDir, modelFile string) []string {
	path, err := storage.ResolveUnder(modelDir, filepath.ToSlash(modelFile))
	if err != nil {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var m model3
	if json.Unmarshal(raw, &m) != nil || m.FileReferences.DisplayInfo == "" {
		return nil
	}

	cdiPath, err := storage.ResolveUnder(filepath.Dir(path), filepath.ToSlash(m.FileReferences.DisplayInfo))
	if err != nil {
		return nil
	}
	raw, err = os.ReadFile(cdiPath)
	if err != nil {
		return nil
	}
	var c cdi3
	if json.Unmarshal(raw, &c) != nil {
		return nil
	}
	ids := make([]string, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		if p.ID != "" {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
